package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/state"
	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

func setupCoordinator(t *testing.T) (*Coordinator, *state.DB) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return NewCoordinator(db, nil, Timeouts{}), db
}

const threeSubtaskPlan = `[
	{"title": "A", "task_type": "implementation"},
	{"title": "B", "task_type": "implementation"},
	{"title": "C", "task_type": "testing", "depends_on": ["A", "B"]}
]`

func TestPlanTaskCreatesBreakdown(t *testing.T) {
	c, db := setupCoordinator(t)
	ctx := context.Background()

	breakdown, err := c.PlanTask(ctx, "Build the feature\nwith details", "moderate", threeSubtaskPlan, map[string]string{"repo": "demo"})
	if err != nil {
		t.Fatalf("PlanTask failed: %v", err)
	}

	if breakdown.Root.TaskType != models.TaskTypeBreakdown {
		t.Errorf("root type = %q, want breakdown", breakdown.Root.TaskType)
	}
	if breakdown.Root.Title != "Build the feature" {
		t.Errorf("root title = %q", breakdown.Root.Title)
	}
	if len(breakdown.Subtasks) != 3 {
		t.Fatalf("len(subtasks) = %d, want 3", len(breakdown.Subtasks))
	}

	for i, sub := range breakdown.Subtasks {
		got, err := db.GetTask(sub.ID)
		if err != nil {
			t.Fatalf("GetTask(%s) failed: %v", sub.ID, err)
		}
		if got.ParentID != breakdown.Root.ID {
			t.Errorf("subtask %d parent = %q", i, got.ParentID)
		}
		if got.PositionInParent != i {
			t.Errorf("subtask %d position = %d", i, got.PositionInParent)
		}
		wantPath := breakdown.Root.HierarchyPath + "/" + sub.ID
		if got.HierarchyPath != wantPath {
			t.Errorf("subtask %d path = %q, want %q", i, got.HierarchyPath, wantPath)
		}
	}

	// C carries two mandatory edges.
	deps, err := db.ListDependencies(breakdown.Subtasks[2].ID)
	if err != nil {
		t.Fatalf("ListDependencies failed: %v", err)
	}
	if len(deps) != 2 {
		t.Errorf("C has %d dependencies, want 2", len(deps))
	}
}

func TestPlanTaskRejectsBadSpecs(t *testing.T) {
	c, db := setupCoordinator(t)

	_, err := c.PlanTask(context.Background(), "desc", "", `[{"no_title": true}]`, nil)
	var planErr *PlanError
	if !errors.As(err, &planErr) {
		t.Fatalf("PlanTask = %v, want PlanError", err)
	}

	// Validation fails before anything is written.
	tasks, err := db.QueryTasks(state.TaskFilter{}, "", 0, 0)
	if err != nil {
		t.Fatalf("QueryTasks failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("rejected plan wrote %d tasks", len(tasks))
	}
}

func TestNextRecommendedWaitsForAllPrerequisites(t *testing.T) {
	c, _ := setupCoordinator(t)
	ctx := context.Background()

	breakdown, err := c.PlanTask(ctx, "A/B gate C", "", threeSubtaskPlan, nil)
	if err != nil {
		t.Fatalf("PlanTask failed: %v", err)
	}
	a, b, cTask := breakdown.Subtasks[0], breakdown.Subtasks[1], breakdown.Subtasks[2]

	// Completing A must not recommend C while B is incomplete.
	first, err := c.CompleteSubtask(ctx, a.ID, "A done", nil)
	if err != nil {
		t.Fatalf("CompleteSubtask(A) failed: %v", err)
	}
	if first.NextRecommended == nil {
		t.Fatal("no recommendation after A")
	}
	if first.NextRecommended.ID == cTask.ID {
		t.Error("C recommended before B completed")
	}
	if first.NextRecommended.ID != b.ID {
		t.Errorf("recommended %q, want B", first.NextRecommended.Title)
	}

	// After B completes, C becomes the recommendation.
	second, err := c.CompleteSubtask(ctx, b.ID, "B done", nil)
	if err != nil {
		t.Fatalf("CompleteSubtask(B) failed: %v", err)
	}
	if second.NextRecommended == nil || second.NextRecommended.ID != cTask.ID {
		t.Errorf("recommendation after B = %+v, want C", second.NextRecommended)
	}
}

func TestCompleteSubtaskParentProgress(t *testing.T) {
	c, _ := setupCoordinator(t)
	ctx := context.Background()

	breakdown, err := c.PlanTask(ctx, "progress", "", `[
		{"title": "One"}, {"title": "Two"}
	]`, nil)
	if err != nil {
		t.Fatalf("PlanTask failed: %v", err)
	}

	first, err := c.CompleteSubtask(ctx, breakdown.Subtasks[0].ID, "done", nil)
	if err != nil {
		t.Fatalf("CompleteSubtask failed: %v", err)
	}
	p := first.ParentProgress
	if p == nil {
		t.Fatal("no parent progress")
	}
	if p.CompletedChildren != 1 || p.TotalChildren != 2 || p.Percentage != 50 {
		t.Errorf("progress = %+v", p)
	}
	if p.ReadyForCompletion {
		t.Error("ReadyForCompletion with an incomplete sibling")
	}

	second, err := c.CompleteSubtask(ctx, breakdown.Subtasks[1].ID, "done", nil)
	if err != nil {
		t.Fatalf("CompleteSubtask failed: %v", err)
	}
	if !second.ParentProgress.ReadyForCompletion {
		t.Error("ReadyForCompletion false after last sibling completed")
	}
	if second.ParentProgress.Percentage != 100 {
		t.Errorf("percentage = %d, want 100", second.ParentProgress.Percentage)
	}
}

func TestCompleteSubtaskStoresArtifacts(t *testing.T) {
	c, db := setupCoordinator(t)
	ctx := context.Background()

	breakdown, err := c.PlanTask(ctx, "artifacts", "", `[{"title": "One"}]`, nil)
	if err != nil {
		t.Fatalf("PlanTask failed: %v", err)
	}
	sub := breakdown.Subtasks[0]

	_, err = c.CompleteSubtask(ctx, sub.ID, "done", []models.TaskArtifact{
		{Name: "patch", Kind: "diff", Reference: "patches/0001.diff"},
	})
	if err != nil {
		t.Fatalf("CompleteSubtask failed: %v", err)
	}

	artifacts, err := db.ListArtifacts(sub.ID)
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Reference != "patches/0001.diff" {
		t.Errorf("artifacts = %+v", artifacts)
	}

	got, _ := db.GetTask(sub.ID)
	if got.Status != models.TaskStatusCompleted || got.CompletedAt == nil || got.Result != "done" {
		t.Errorf("completed task = %+v", got)
	}
}

func eventsOfType(t *testing.T, db *state.DB, taskID string, typ models.EventType) []models.TaskEvent {
	t.Helper()
	events, err := db.ListEvents(taskID, 50)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	var out []models.TaskEvent
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestTransitionsAppendAuditEvents(t *testing.T) {
	c, db := setupCoordinator(t)
	ctx := context.Background()

	breakdown, err := c.PlanTask(ctx, "audit trail", "", `[{"title": "One"}]`, nil)
	if err != nil {
		t.Fatalf("PlanTask failed: %v", err)
	}
	sub := breakdown.Subtasks[0]

	if _, err := c.GetSpecialistContext(ctx, sub.ID); err != nil {
		t.Fatalf("GetSpecialistContext failed: %v", err)
	}
	if _, err := c.CompleteSubtask(ctx, sub.ID, "done", nil); err != nil {
		t.Fatalf("CompleteSubtask failed: %v", err)
	}

	statuses := eventsOfType(t, db, sub.ID, models.EventStatusChanged)
	if len(statuses) != 2 {
		t.Fatalf("status_changed events = %d, want 2 (activation and completion)", len(statuses))
	}
	stages := eventsOfType(t, db, sub.ID, models.EventStageChanged)
	if len(stages) != 2 {
		t.Fatalf("stage_changed events = %d, want 2", len(stages))
	}
	var sawCompleted bool
	for _, e := range stages {
		if strings.Contains(e.Data, `"to":"completed"`) {
			sawCompleted = true
		}
	}
	if !sawCompleted {
		t.Errorf("no stage_changed event to completed: %+v", stages)
	}
}

func TestCompleteSubtaskRecordsHeldStage(t *testing.T) {
	c, db := setupCoordinator(t)
	ctx := context.Background()

	breakdown, err := c.PlanTask(ctx, "held stage", "", `[{"title": "One"}]`, nil)
	if err != nil {
		t.Fatalf("PlanTask failed: %v", err)
	}
	sub := breakdown.Subtasks[0]

	// Completed without ever being activated. The table has no
	// created -> completed edge, so the stage stays put and the refusal
	// lands in the event log.
	if _, err := c.CompleteSubtask(ctx, sub.ID, "done", nil); err != nil {
		t.Fatalf("CompleteSubtask failed: %v", err)
	}

	got, err := db.GetTask(sub.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != models.TaskStatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.LifecycleStage != models.StageCreated {
		t.Errorf("stage = %q, want created", got.LifecycleStage)
	}

	if n := len(eventsOfType(t, db, sub.ID, models.EventStageChanged)); n != 0 {
		t.Errorf("stage_changed events = %d, want 0", n)
	}
	var held bool
	for _, e := range eventsOfType(t, db, sub.ID, models.EventTaskUpdated) {
		if strings.Contains(e.Data, `"stage_held":"created"`) && strings.Contains(e.Data, `"requested":"completed"`) {
			held = true
		}
	}
	if !held {
		t.Error("no event recording the held stage")
	}
}

func TestGetSpecialistContext(t *testing.T) {
	c, db := setupCoordinator(t)
	ctx := context.Background()

	breakdown, err := c.PlanTask(ctx, "context test", "", `[
		{"title": "Research options", "task_type": "research"},
		{"title": "Implement choice", "task_type": "implementation", "depends_on": ["Research options"]}
	]`, nil)
	if err != nil {
		t.Fatalf("PlanTask failed: %v", err)
	}
	research, impl := breakdown.Subtasks[0], breakdown.Subtasks[1]

	if _, err := c.CompleteSubtask(ctx, research.ID, "Chose approach X", nil); err != nil {
		t.Fatalf("CompleteSubtask failed: %v", err)
	}

	bundle, err := c.GetSpecialistContext(ctx, impl.ID)
	if err != nil {
		t.Fatalf("GetSpecialistContext failed: %v", err)
	}

	for _, want := range []string{
		"## Role: implementer",
		"## Task: Implement choice",
		"## Parent: context test",
		"Research options [completed] result: Chose approach X",
	} {
		if !strings.Contains(bundle, want) {
			t.Errorf("bundle missing %q:\n%s", want, bundle)
		}
	}

	got, _ := db.GetTask(impl.ID)
	if got.Status != models.TaskStatusActive {
		t.Errorf("status = %q, want active", got.Status)
	}
	if got.SpecialistType != models.SpecialistImplementer {
		t.Errorf("specialist = %q, want implementer", got.SpecialistType)
	}
	if got.StartedAt == nil {
		t.Error("StartedAt not set")
	}
}

// failingArtifacts wraps the repository and breaks artifact listing, to
// exercise the compensating status revert in GetSpecialistContext.
type failingArtifacts struct {
	*state.DB
}

func (f *failingArtifacts) ListArtifacts(string) ([]models.TaskArtifact, error) {
	return nil, &state.InfraError{Op: "ListArtifacts", Recoverable: false, Err: errors.New("disk gone")}
}

func TestGetSpecialistContextRevertsOnFailure(t *testing.T) {
	c, db := setupCoordinator(t)
	ctx := context.Background()

	breakdown, err := c.PlanTask(ctx, "revert test", "", `[{"title": "One"}]`, nil)
	if err != nil {
		t.Fatalf("PlanTask failed: %v", err)
	}
	sub := breakdown.Subtasks[0]

	broken := NewCoordinator(&failingArtifacts{DB: db}, nil, Timeouts{})
	if _, err := broken.GetSpecialistContext(ctx, sub.ID); err == nil {
		t.Fatal("GetSpecialistContext succeeded with broken artifact store")
	}

	// The activation must have been compensated.
	got, err := db.GetTask(sub.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != models.TaskStatusPending {
		t.Errorf("status = %q after failed context build, want pending", got.Status)
	}
	if got.StartedAt != nil {
		t.Errorf("StartedAt = %v after failed context build, want nil", got.StartedAt)
	}
}

func TestSynthesizeResults(t *testing.T) {
	c, db := setupCoordinator(t)
	ctx := context.Background()

	breakdown, err := c.PlanTask(ctx, "synthesis test", "", `[
		{"title": "One"}, {"title": "Two"}, {"title": "Three"}
	]`, nil)
	if err != nil {
		t.Fatalf("PlanTask failed: %v", err)
	}
	if _, err := c.CompleteSubtask(ctx, breakdown.Subtasks[0].ID, "first result", nil); err != nil {
		t.Fatalf("CompleteSubtask failed: %v", err)
	}
	if _, err := c.CompleteSubtask(ctx, breakdown.Subtasks[1].ID, "second result", nil); err != nil {
		t.Fatalf("CompleteSubtask failed: %v", err)
	}

	text, err := c.SynthesizeResults(ctx, breakdown.Root.ID)
	if err != nil {
		t.Fatalf("SynthesizeResults failed: %v", err)
	}
	for _, want := range []string{"first result", "second result", "2 of 3 subtasks completed"} {
		if !strings.Contains(text, want) {
			t.Errorf("synthesis missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Three") {
		t.Error("synthesis includes an incomplete subtask")
	}

	// Synthesis mutates no status.
	root, _ := db.GetTask(breakdown.Root.ID)
	if root.Status != models.TaskStatusPending {
		t.Errorf("root status = %q after synthesis, want pending", root.Status)
	}
}

func TestGetStatus(t *testing.T) {
	c, _ := setupCoordinator(t)
	ctx := context.Background()

	breakdown, err := c.PlanTask(ctx, "status test", "", `[{"title": "One"}, {"title": "Two"}]`, nil)
	if err != nil {
		t.Fatalf("PlanTask failed: %v", err)
	}
	if _, err := c.CompleteSubtask(ctx, breakdown.Subtasks[0].ID, "done", nil); err != nil {
		t.Fatalf("CompleteSubtask failed: %v", err)
	}

	report, err := c.GetStatus(ctx, false)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if report.Counts[models.TaskStatusCompleted] != 1 {
		t.Errorf("completed count = %d, want 1", report.Counts[models.TaskStatusCompleted])
	}
	for _, summary := range report.Tasks {
		if summary.Status == models.TaskStatusCompleted {
			t.Errorf("completed task %s listed without includeCompleted", summary.ID)
		}
	}

	full, err := c.GetStatus(ctx, true)
	if err != nil {
		t.Fatalf("GetStatus(includeCompleted) failed: %v", err)
	}
	if len(full.Tasks) != len(report.Tasks)+1 {
		t.Errorf("includeCompleted added %d tasks, want 1", len(full.Tasks)-len(report.Tasks))
	}
}
