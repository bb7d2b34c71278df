package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/lifecycle"
	"github.com/EchoingVesper/vespera-atelier-sub002/internal/state"
	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// Store is the slice of the repository the coordinator needs.
type Store interface {
	state.TaskStore
	state.DependencyStore
	state.AttributeStore
	state.EventStore
}

// Coordinator drives the task workflow over the repository. It holds no
// global state; the process entry point constructs one and passes it to
// whatever serves the protocol layer.
type Coordinator struct {
	store    Store
	roles    RoleLookup
	timeouts Timeouts
}

// NewCoordinator creates a coordinator. A nil roles lookup falls back to
// the built-in role table.
func NewCoordinator(store Store, roles RoleLookup, timeouts Timeouts) *Coordinator {
	if roles == nil {
		roles = BuiltinRoles{}
	}
	return &Coordinator{store: store, roles: roles, timeouts: timeouts}
}

// Breakdown is the result of planning a task.
type Breakdown struct {
	// Root is the created breakdown task.
	Root *models.Task
	// Subtasks are the created children in position order.
	Subtasks []*models.Task
}

// PlanTask validates subtask specs and creates the breakdown: one root
// task plus one child per spec, with sibling dependencies recorded.
// Spec validation failures surface immediately and are never retried.
func (c *Coordinator) PlanTask(ctx context.Context, description, complexity, subtaskSpecs string, taskCtx map[string]string) (*Breakdown, error) {
	ctx, cancel := c.opDeadline(ctx, c.timeouts.perOp())
	defer cancel()

	if strings.TrimSpace(description) == "" {
		return nil, &PlanError{Detail: "empty description"}
	}
	specs, err := ParseSubtaskSpecs(subtaskSpecs)
	if err != nil {
		return nil, err
	}

	root := &models.Task{
		ID:          uuid.New().String(),
		Title:       firstLine(description),
		Description: description,
		TaskType:    models.TaskTypeBreakdown,
		Context:     taskCtx,
	}
	if complexity != "" {
		root.Configuration = map[string]string{"complexity": complexity}
	}
	if err := c.withRetry(ctx, "PlanTask.createRoot", func(context.Context) error {
		return c.store.CreateTask(root)
	}); err != nil {
		return nil, err
	}

	idByTitle := make(map[string]string, len(specs))
	subtasks := make([]*models.Task, 0, len(specs))
	for i, spec := range specs {
		child := &models.Task{
			ID:               spec.ID,
			ParentID:         root.ID,
			Title:            spec.Title,
			Description:      spec.Description,
			TaskType:         models.TaskType(spec.TaskType),
			SpecialistType:   models.SpecialistType(spec.SpecialistType),
			PositionInParent: i,
		}
		op := fmt.Sprintf("PlanTask.createChild[%d]", i)
		if err := c.withRetry(ctx, op, func(context.Context) error {
			return c.store.CreateTask(child)
		}); err != nil {
			return nil, err
		}
		idByTitle[spec.Title] = child.ID
		subtasks = append(subtasks, child)
	}

	for _, spec := range specs {
		for _, depTitle := range spec.DependsOn {
			dep := &models.TaskDependency{
				DependentTaskID:    idByTitle[spec.Title],
				PrerequisiteTaskID: idByTitle[depTitle],
				DependencyType:     models.DependencyCompletion,
				IsMandatory:        true,
				AutoSatisfy:        true,
			}
			if err := c.withRetry(ctx, "PlanTask.addDependency", func(context.Context) error {
				return c.store.AddDependency(dep)
			}); err != nil {
				return nil, err
			}
		}
	}

	log.Printf("[coordinator] planned %s with %d subtasks", root.ID, len(subtasks))
	return &Breakdown{Root: root, Subtasks: subtasks}, nil
}

// firstLine truncates a description to a usable title.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

// GetSpecialistContext binds a specialist to the task, marks it active,
// and renders the context bundle the specialist works from. If bundle
// assembly fails after the task was marked active, the status change is
// reverted before the error returns; the mark and the bundle reads may
// hit different stores, so this is a compensating write, not a rollback.
func (c *Coordinator) GetSpecialistContext(ctx context.Context, taskID string) (string, error) {
	ctx, cancel := c.opDeadline(ctx, c.timeouts.perOp())
	defer cancel()

	var task *models.Task
	if err := c.withRetry(ctx, "GetSpecialistContext.get", func(context.Context) error {
		var err error
		task, err = c.store.GetTask(taskID)
		return err
	}); err != nil {
		return "", err
	}

	if task.SpecialistType == "" {
		task.SpecialistType = defaultSpecialistFor(task.TaskType)
		if err := c.appendEvent(ctx, taskID, models.EventSpecialistAssigned, models.CategoryLifecycle,
			fmt.Sprintf(`{"specialist_type":%q}`, task.SpecialistType)); err != nil {
			return "", err
		}
	}

	prevStatus, prevStage, prevStarted := task.Status, task.LifecycleStage, task.StartedAt
	task.Status = models.TaskStatusActive
	if lifecycle.CanTransition(task.LifecycleStage, models.StageActive) {
		task.LifecycleStage = models.StageActive
	}
	if task.StartedAt == nil {
		now := time.Now()
		task.StartedAt = &now
	}
	if err := c.withRetry(ctx, "GetSpecialistContext.activate", func(context.Context) error {
		return c.store.UpdateTask(task)
	}); err != nil {
		return "", err
	}

	bundle, err := c.buildContextBundle(ctx, task)
	if err != nil {
		task.Status, task.LifecycleStage, task.StartedAt = prevStatus, prevStage, prevStarted
		if revertErr := c.withRetry(ctx, "GetSpecialistContext.revert", func(context.Context) error {
			return c.store.UpdateTask(task)
		}); revertErr != nil {
			log.Printf("[coordinator] revert of %s after failed context build also failed: %v", taskID, revertErr)
		}
		return "", err
	}
	if err := c.recordStatusStage(ctx, task, prevStatus, prevStage, models.StageActive); err != nil {
		return "", err
	}
	return bundle, nil
}

// defaultSpecialistFor maps a task type to the built-in specialist that
// handles it when no explicit binding exists.
func defaultSpecialistFor(t models.TaskType) models.SpecialistType {
	switch t {
	case models.TaskTypeResearch:
		return models.SpecialistResearcher
	case models.TaskTypeTesting:
		return models.SpecialistTester
	case models.TaskTypeDocumentation:
		return models.SpecialistDocumenter
	case models.TaskTypeReview:
		return models.SpecialistReviewer
	case models.TaskTypeBreakdown, models.TaskTypeMilestone:
		return models.SpecialistCoordinator
	default:
		return models.SpecialistImplementer
	}
}

// buildContextBundle renders the specialist-facing context: role, task,
// parent, dependency status lines, artifacts, and metadata.
func (c *Coordinator) buildContextBundle(ctx context.Context, task *models.Task) (string, error) {
	var b strings.Builder

	role, ok := c.roles.Lookup(task.SpecialistType)
	if !ok {
		role = Role{Name: task.SpecialistType.String(), Description: "Specialist for " + task.SpecialistType.String() + " work."}
	}
	fmt.Fprintf(&b, "## Role: %s\n%s\n", role.Name, role.Description)
	if role.Approach != "" {
		fmt.Fprintf(&b, "Approach: %s\n", role.Approach)
	}

	fmt.Fprintf(&b, "\n## Task: %s\n%s\n", task.Title, task.Description)

	if task.ParentID != "" {
		var parent *models.Task
		if err := c.withRetry(ctx, "buildContextBundle.parent", func(context.Context) error {
			var err error
			parent, err = c.store.GetTask(task.ParentID)
			return err
		}); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n## Parent: %s\n%s\n", parent.Title, parent.Description)
	}

	var deps []models.TaskDependency
	if err := c.withRetry(ctx, "buildContextBundle.deps", func(context.Context) error {
		var err error
		deps, err = c.store.ListDependencies(task.ID)
		return err
	}); err != nil {
		return "", err
	}
	if len(deps) > 0 {
		b.WriteString("\n## Dependencies\n")
		for _, dep := range deps {
			var prereq *models.Task
			if err := c.withRetry(ctx, "buildContextBundle.prereq", func(context.Context) error {
				var err error
				prereq, err = c.store.GetTask(dep.PrerequisiteTaskID)
				return err
			}); err != nil {
				return "", err
			}
			line := fmt.Sprintf("- %s [%s]", prereq.Title, prereq.Status)
			if prereq.Status == models.TaskStatusCompleted && prereq.Result != "" {
				line += " result: " + prereq.Result
			}
			b.WriteString(line + "\n")
		}
	}

	var artifacts []models.TaskArtifact
	if err := c.withRetry(ctx, "buildContextBundle.artifacts", func(context.Context) error {
		var err error
		artifacts, err = c.store.ListArtifacts(task.ID)
		return err
	}); err != nil {
		return "", err
	}
	if len(artifacts) > 0 {
		b.WriteString("\n## Artifacts\n")
		for _, a := range artifacts {
			fmt.Fprintf(&b, "- %s (%s): %s\n", a.Name, a.Kind, a.Reference)
		}
	}

	if len(task.Context) > 0 {
		b.WriteString("\n## Metadata\n")
		keys := make([]string, 0, len(task.Context))
		for k := range task.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, task.Context[k])
		}
	}

	return b.String(), nil
}

// CompletionResult is what CompleteSubtask hands back: the completed
// task, the parent's derived progress, and the next actionable sibling
// if one exists. The recommendation is advisory and recomputed fresh on
// every call.
type CompletionResult struct {
	// Task is the completed task.
	Task *models.Task
	// ParentProgress is nil for root tasks.
	ParentProgress *ParentProgress
	// NextRecommended is the next actionable sibling, nil when none.
	NextRecommended *models.Task
}

// CompleteSubtask marks the task completed, stores its artifacts, and
// derives parent progress plus the next recommended task. The two
// derivations run concurrently; neither depends on the other.
func (c *Coordinator) CompleteSubtask(ctx context.Context, taskID, results string, artifacts []models.TaskArtifact) (*CompletionResult, error) {
	ctx, cancel := c.opDeadline(ctx, c.timeouts.perOp())
	defer cancel()

	var task *models.Task
	if err := c.withRetry(ctx, "CompleteSubtask.get", func(context.Context) error {
		var err error
		task, err = c.store.GetTask(taskID)
		return err
	}); err != nil {
		return nil, err
	}

	now := time.Now()
	prevStatus, prevStage := task.Status, task.LifecycleStage
	task.Status = models.TaskStatusCompleted
	if lifecycle.CanTransition(task.LifecycleStage, models.StageCompleted) {
		task.LifecycleStage = models.StageCompleted
	}
	task.Result = results
	task.ProgressPercentage = 100
	task.CompletedAt = &now
	if err := c.withRetry(ctx, "CompleteSubtask.update", func(context.Context) error {
		return c.store.UpdateTask(task)
	}); err != nil {
		return nil, err
	}
	if err := c.recordStatusStage(ctx, task, prevStatus, prevStage, models.StageCompleted); err != nil {
		return nil, err
	}

	for i := range artifacts {
		artifacts[i].TaskID = taskID
		a := &artifacts[i]
		if err := c.withRetry(ctx, "CompleteSubtask.artifact", func(context.Context) error {
			return c.store.AddArtifact(a)
		}); err != nil {
			return nil, err
		}
	}

	if err := c.withRetry(ctx, "CompleteSubtask.satisfy", func(context.Context) error {
		return c.store.SatisfyDependentsOf(taskID)
	}); err != nil {
		return nil, err
	}

	result := &CompletionResult{Task: task}
	if task.ParentID == "" {
		return result, nil
	}

	var (
		wg          sync.WaitGroup
		progress    *ParentProgress
		next        *models.Task
		progressErr error
		nextErr     error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		progress, progressErr = c.parentProgress(ctx, task.ParentID)
	}()
	go func() {
		defer wg.Done()
		next, nextErr = c.nextActionable(ctx, task.ParentID)
	}()
	wg.Wait()

	if progressErr != nil {
		return result, progressErr
	}
	result.ParentProgress = progress
	if nextErr != nil {
		// Progress is still reported even when the recommendation
		// could not be computed.
		return result, nextErr
	}
	result.NextRecommended = next
	return result, nil
}

// parentProgress derives completed/total counts for a parent's children.
func (c *Coordinator) parentProgress(ctx context.Context, parentID string) (*ParentProgress, error) {
	var children []*models.Task
	if err := c.withRetry(ctx, "parentProgress.children", func(context.Context) error {
		var err error
		children, err = c.store.GetChildren(parentID)
		return err
	}); err != nil {
		return nil, err
	}

	progress := &ParentProgress{ParentID: parentID, TotalChildren: len(children), ReadyForCompletion: true}
	for _, child := range children {
		if child.Status == models.TaskStatusCompleted {
			progress.CompletedChildren++
		}
		if !child.Status.Terminal() {
			progress.ReadyForCompletion = false
		}
	}
	if progress.TotalChildren > 0 {
		progress.Percentage = progress.CompletedChildren * 100 / progress.TotalChildren
	}
	return progress, nil
}

// nextActionable scans the parent's children depth first for the next
// task worth starting: pending or in progress, not blocked, dependencies
// satisfied, and (when in progress) no incomplete children of its own.
func (c *Coordinator) nextActionable(ctx context.Context, parentID string) (*models.Task, error) {
	var children []*models.Task
	if err := c.withRetry(ctx, "nextActionable.children", func(context.Context) error {
		var err error
		children, err = c.store.GetChildren(parentID)
		return err
	}); err != nil {
		return nil, err
	}

	for _, child := range children {
		actionable, err := c.isActionable(ctx, child)
		if err != nil {
			return nil, err
		}
		if actionable {
			return child, nil
		}
		if child.Status == models.TaskStatusInProgress {
			// Look inside an in-progress branch before moving on.
			next, err := c.nextActionable(ctx, child.ID)
			if err != nil {
				return nil, err
			}
			if next != nil {
				return next, nil
			}
		}
	}
	return nil, nil
}

func (c *Coordinator) isActionable(ctx context.Context, task *models.Task) (bool, error) {
	if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusInProgress {
		return false, nil
	}

	var check *state.DependencyCheck
	if err := c.withRetry(ctx, "isActionable.deps", func(context.Context) error {
		var err error
		check, err = c.store.CheckDependencies(task.ID)
		return err
	}); err != nil {
		return false, err
	}
	if !check.AllSatisfied {
		return false, nil
	}

	if task.Status == models.TaskStatusInProgress {
		var children []*models.Task
		if err := c.withRetry(ctx, "isActionable.children", func(context.Context) error {
			var err error
			children, err = c.store.GetChildren(task.ID)
			return err
		}); err != nil {
			return false, err
		}
		for _, child := range children {
			if child.Status != models.TaskStatusCompleted {
				return false, nil
			}
		}
	}
	return true, nil
}

// SynthesizeResults gathers the completed children of a parent in
// position order and produces a combined summary. It mutates no task
// status; callers transition the parent explicitly.
func (c *Coordinator) SynthesizeResults(ctx context.Context, parentID string) (string, error) {
	ctx, cancel := c.opDeadline(ctx, c.timeouts.synthesis())
	defer cancel()

	var parent *models.Task
	if err := c.withRetry(ctx, "SynthesizeResults.parent", func(context.Context) error {
		var err error
		parent, err = c.store.GetTask(parentID)
		return err
	}); err != nil {
		return "", err
	}

	var children []*models.Task
	if err := c.withRetry(ctx, "SynthesizeResults.children", func(context.Context) error {
		var err error
		children, err = c.store.GetChildren(parentID)
		return err
	}); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Synthesis: %s\n", parent.Title)
	completed := 0
	for _, child := range children {
		if child.Status != models.TaskStatusCompleted {
			continue
		}
		completed++
		fmt.Fprintf(&b, "\n## %s\n", child.Title)
		if child.Result != "" {
			b.WriteString(child.Result + "\n")
		} else {
			b.WriteString("(no recorded result)\n")
		}
	}
	fmt.Fprintf(&b, "\n%d of %d subtasks completed.\n", completed, len(children))

	if err := c.appendEvent(ctx, parentID, models.EventSynthesisProduced, models.CategoryData,
		fmt.Sprintf(`{"completed":%d,"total":%d}`, completed, len(children))); err != nil {
		return "", err
	}
	return b.String(), nil
}

// TaskSummary is one task's line in a status report.
type TaskSummary struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Status         models.TaskStatus     `json:"status"`
	Stage          models.LifecycleStage `json:"lifecycle_stage"`
	SpecialistType string                `json:"specialist_type,omitempty"`
	HierarchyPath  string                `json:"hierarchy_path"`
	Progress       int                   `json:"progress"`
}

// StatusReport is the aggregate view GetStatus returns.
type StatusReport struct {
	// Counts is the number of tasks per status.
	Counts map[models.TaskStatus]int `json:"counts"`
	// Tasks are per-task summaries in hierarchy order.
	Tasks []TaskSummary `json:"tasks"`
}

// GetStatus reports aggregate counts and per-task summaries. Completed
// and archived tasks are skipped unless includeCompleted is set.
func (c *Coordinator) GetStatus(ctx context.Context, includeCompleted bool) (*StatusReport, error) {
	ctx, cancel := c.opDeadline(ctx, c.timeouts.perOp())
	defer cancel()

	report := &StatusReport{}
	if err := c.withRetry(ctx, "GetStatus.counts", func(context.Context) error {
		var err error
		report.Counts, err = c.store.CountByStatus()
		return err
	}); err != nil {
		return nil, err
	}

	var tasks []*models.Task
	if err := c.withRetry(ctx, "GetStatus.tasks", func(context.Context) error {
		var err error
		tasks, err = c.store.QueryTasks(state.TaskFilter{}, "hierarchy_path", 0, 0)
		return err
	}); err != nil {
		return nil, err
	}

	for _, task := range tasks {
		if !includeCompleted &&
			(task.Status == models.TaskStatusCompleted || task.Status == models.TaskStatusArchived) {
			continue
		}
		report.Tasks = append(report.Tasks, TaskSummary{
			ID:             task.ID,
			Title:          task.Title,
			Status:         task.Status,
			Stage:          task.LifecycleStage,
			SpecialistType: task.SpecialistType.String(),
			HierarchyPath:  task.HierarchyPath,
			Progress:       task.ProgressPercentage,
		})
	}
	return report, nil
}

// recordStatusStage appends the audit events for a persisted status flip
// and stage move. A stage the lifecycle table refused to advance is
// recorded as held rather than dropped, so status and stage never drift
// without a trace in the event log.
func (c *Coordinator) recordStatusStage(ctx context.Context, task *models.Task, prevStatus models.TaskStatus, prevStage, requested models.LifecycleStage) error {
	if task.Status != prevStatus {
		if err := c.appendEvent(ctx, task.ID, models.EventStatusChanged, models.CategoryLifecycle,
			fmt.Sprintf(`{"from":%q,"to":%q}`, prevStatus, task.Status)); err != nil {
			return err
		}
	}
	if task.LifecycleStage != prevStage {
		return c.appendEvent(ctx, task.ID, models.EventStageChanged, models.CategoryLifecycle,
			fmt.Sprintf(`{"from":%q,"to":%q}`, prevStage, task.LifecycleStage))
	}
	if requested != prevStage {
		return c.appendEvent(ctx, task.ID, models.EventTaskUpdated, models.CategoryLifecycle,
			fmt.Sprintf(`{"stage_held":%q,"requested":%q}`, prevStage, requested))
	}
	return nil
}

func (c *Coordinator) appendEvent(ctx context.Context, taskID string, typ models.EventType, cat models.EventCategory, data string) error {
	return c.withRetry(ctx, "appendEvent", func(context.Context) error {
		return c.store.AppendEvent(&models.TaskEvent{
			TaskID:      taskID,
			Type:        typ,
			Category:    cat,
			TriggeredBy: "coordinator",
			Data:        data,
		})
	})
}
