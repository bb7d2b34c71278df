package state

import (
	"errors"
	"testing"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

func mustCreate(t *testing.T, db *DB, id, parentID, title string) *models.Task {
	t.Helper()
	task := &models.Task{ID: id, ParentID: parentID, Title: title}
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask(%s) failed: %v", id, err)
	}
	return task
}

func TestCreateTaskRootPath(t *testing.T) {
	db := setupTestDB(t)

	task := mustCreate(t, db, "root", "", "root task")
	if task.HierarchyPath != "/root" {
		t.Errorf("HierarchyPath = %q, want /root", task.HierarchyPath)
	}
	if task.HierarchyLevel != 0 {
		t.Errorf("HierarchyLevel = %d, want 0", task.HierarchyLevel)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("Status = %q, want pending", task.Status)
	}
	if task.LifecycleStage != models.StageCreated {
		t.Errorf("LifecycleStage = %q, want created", task.LifecycleStage)
	}

	got, err := db.GetTask("root")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Title != "root task" || got.HierarchyPath != "/root" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestCreateTaskChildPath(t *testing.T) {
	db := setupTestDB(t)

	mustCreate(t, db, "root", "", "root")
	child := mustCreate(t, db, "child", "root", "child")

	if child.HierarchyPath != "/root/child" {
		t.Errorf("HierarchyPath = %q, want /root/child", child.HierarchyPath)
	}
	if child.HierarchyLevel != 1 {
		t.Errorf("HierarchyLevel = %d, want 1", child.HierarchyLevel)
	}
}

func TestCreateTaskSiblingPositions(t *testing.T) {
	db := setupTestDB(t)

	mustCreate(t, db, "root", "", "root")
	a := mustCreate(t, db, "a", "root", "a")
	b := mustCreate(t, db, "b", "root", "b")
	c := mustCreate(t, db, "c", "root", "c")

	if a.PositionInParent != 0 || b.PositionInParent != 1 || c.PositionInParent != 2 {
		t.Errorf("positions = %d, %d, %d, want 0, 1, 2",
			a.PositionInParent, b.PositionInParent, c.PositionInParent)
	}

	children, err := db.GetChildren("root")
	if err != nil {
		t.Fatalf("GetChildren failed: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("len(children) = %d, want 3", len(children))
	}
	for i, want := range []string{"a", "b", "c"} {
		if children[i].ID != want {
			t.Errorf("children[%d] = %s, want %s", i, children[i].ID, want)
		}
	}
}

func TestCreateTaskValidation(t *testing.T) {
	db := setupTestDB(t)

	var vErr *ValidationError
	err := db.CreateTask(&models.Task{ID: "t1"})
	if !errors.As(err, &vErr) || vErr.Field != "title" {
		t.Errorf("empty title: got %v, want ValidationError on title", err)
	}

	err = db.CreateTask(&models.Task{ID: "t2", Title: "t", ParentID: "nope"})
	if !errors.As(err, &vErr) || vErr.Field != "parent_id" {
		t.Errorf("missing parent: got %v, want ValidationError on parent_id", err)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetTask("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTask(missing) = %v, want ErrNotFound", err)
	}
}

func TestSoftDelete(t *testing.T) {
	db := setupTestDB(t)

	mustCreate(t, db, "t1", "", "task")
	if err := db.DeleteTask("t1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}

	got, err := db.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask after soft delete failed: %v", err)
	}
	if !got.IsDeleted || got.DeletedAt == nil {
		t.Errorf("task not marked deleted: IsDeleted=%v DeletedAt=%v", got.IsDeleted, got.DeletedAt)
	}

	// Deleting again is a no-op.
	if err := db.DeleteTask("t1"); err != nil {
		t.Errorf("repeat DeleteTask failed: %v", err)
	}

	// Soft-deleted tasks are excluded from queries by default.
	tasks, err := db.QueryTasks(TaskFilter{}, "", 0, 0)
	if err != nil {
		t.Fatalf("QueryTasks failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("QueryTasks returned %d tasks, want 0", len(tasks))
	}

	tasks, err = db.QueryTasks(TaskFilter{IncludeDeleted: true}, "", 0, 0)
	if err != nil {
		t.Fatalf("QueryTasks with IncludeDeleted failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("QueryTasks with IncludeDeleted returned %d tasks, want 1", len(tasks))
	}
}

func TestHardDeleteCascades(t *testing.T) {
	db := setupTestDB(t)

	mustCreate(t, db, "t1", "", "task")
	mustCreate(t, db, "t2", "", "other")
	if err := db.SetAttribute(models.NewStringAttribute("t1", "key", "val")); err != nil {
		t.Fatalf("SetAttribute failed: %v", err)
	}
	if err := db.AddDependency(&models.TaskDependency{
		DependentTaskID:    "t1",
		PrerequisiteTaskID: "t2",
		DependencyType:     models.DependencyCompletion,
		IsMandatory:        true,
	}); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}

	if err := db.HardDeleteTask("t1"); err != nil {
		t.Fatalf("HardDeleteTask failed: %v", err)
	}

	if _, err := db.GetTask("t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTask after hard delete = %v, want ErrNotFound", err)
	}
	attrs, err := db.GetAttributes("t1")
	if err != nil {
		t.Fatalf("GetAttributes failed: %v", err)
	}
	if len(attrs) != 0 {
		t.Errorf("attributes survived hard delete: %+v", attrs)
	}
	deps, err := db.ListDependents("t2")
	if err != nil {
		t.Fatalf("ListDependents failed: %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("dependencies survived hard delete: %+v", deps)
	}
}

func TestGetSubtree(t *testing.T) {
	db := setupTestDB(t)

	mustCreate(t, db, "root", "", "root")
	mustCreate(t, db, "a", "root", "a")
	mustCreate(t, db, "b", "root", "b")
	mustCreate(t, db, "aa", "a", "aa")
	mustCreate(t, db, "aaa", "aa", "aaa")

	subtree, err := db.GetSubtree("root", 0)
	if err != nil {
		t.Fatalf("GetSubtree failed: %v", err)
	}
	if len(subtree) != 4 {
		t.Errorf("full subtree has %d tasks, want 4", len(subtree))
	}

	// maxDepth bounds by relative level.
	shallow, err := db.GetSubtree("root", 1)
	if err != nil {
		t.Fatalf("GetSubtree with depth failed: %v", err)
	}
	if len(shallow) != 2 {
		t.Errorf("depth-1 subtree has %d tasks, want 2", len(shallow))
	}

	// Sibling "b" must not leak into a's subtree.
	aSub, err := db.GetSubtree("a", 0)
	if err != nil {
		t.Fatalf("GetSubtree(a) failed: %v", err)
	}
	for _, task := range aSub {
		if task.ID == "b" {
			t.Error("sibling b leaked into subtree of a")
		}
	}
}

func TestGetAncestors(t *testing.T) {
	db := setupTestDB(t)

	mustCreate(t, db, "root", "", "root")
	mustCreate(t, db, "a", "root", "a")
	mustCreate(t, db, "aa", "a", "aa")

	ancestors, err := db.GetAncestors("aa")
	if err != nil {
		t.Fatalf("GetAncestors failed: %v", err)
	}
	if len(ancestors) != 2 {
		t.Fatalf("len(ancestors) = %d, want 2", len(ancestors))
	}
	if ancestors[0].ID != "root" || ancestors[1].ID != "a" {
		t.Errorf("ancestors = [%s %s], want [root a]", ancestors[0].ID, ancestors[1].ID)
	}

	none, err := db.GetAncestors("root")
	if err != nil {
		t.Fatalf("GetAncestors(root) failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("root has %d ancestors, want 0", len(none))
	}
}

func TestMoveTaskRewritesSubtree(t *testing.T) {
	db := setupTestDB(t)

	mustCreate(t, db, "root", "", "root")
	mustCreate(t, db, "a", "root", "a")
	mustCreate(t, db, "b", "root", "b")
	mustCreate(t, db, "aa", "a", "aa")
	mustCreate(t, db, "aaa", "aa", "aaa")

	// Move a (and its subtree) under b.
	if err := db.MoveTask("a", "b", 0); err != nil {
		t.Fatalf("MoveTask failed: %v", err)
	}

	cases := []struct {
		id    string
		path  string
		level int
	}{
		{"a", "/root/b/a", 2},
		{"aa", "/root/b/a/aa", 3},
		{"aaa", "/root/b/a/aa/aaa", 4},
	}
	for _, tc := range cases {
		got, err := db.GetTask(tc.id)
		if err != nil {
			t.Fatalf("GetTask(%s) failed: %v", tc.id, err)
		}
		if got.HierarchyPath != tc.path {
			t.Errorf("%s path = %q, want %q", tc.id, got.HierarchyPath, tc.path)
		}
		if got.HierarchyLevel != tc.level {
			t.Errorf("%s level = %d, want %d", tc.id, got.HierarchyLevel, tc.level)
		}
	}

	moved, _ := db.GetTask("a")
	if moved.ParentID != "b" {
		t.Errorf("ParentID = %q, want b", moved.ParentID)
	}
}

func TestMoveTaskToRoot(t *testing.T) {
	db := setupTestDB(t)

	mustCreate(t, db, "root", "", "root")
	mustCreate(t, db, "a", "root", "a")
	mustCreate(t, db, "aa", "a", "aa")

	if err := db.MoveTask("a", "", 0); err != nil {
		t.Fatalf("MoveTask to root failed: %v", err)
	}

	a, _ := db.GetTask("a")
	if a.HierarchyPath != "/a" || a.HierarchyLevel != 0 || a.ParentID != "" {
		t.Errorf("a after move: path=%q level=%d parent=%q", a.HierarchyPath, a.HierarchyLevel, a.ParentID)
	}
	aa, _ := db.GetTask("aa")
	if aa.HierarchyPath != "/a/aa" || aa.HierarchyLevel != 1 {
		t.Errorf("aa after move: path=%q level=%d", aa.HierarchyPath, aa.HierarchyLevel)
	}
}

func TestMoveTaskRejectsCycle(t *testing.T) {
	db := setupTestDB(t)

	mustCreate(t, db, "root", "", "root")
	mustCreate(t, db, "a", "root", "a")
	mustCreate(t, db, "aa", "a", "aa")

	snapshot := func() map[string]string {
		paths := make(map[string]string)
		for _, id := range []string{"root", "a", "aa"} {
			task, err := db.GetTask(id)
			if err != nil {
				t.Fatalf("GetTask(%s) failed: %v", id, err)
			}
			paths[id] = task.HierarchyPath
		}
		return paths
	}
	before := snapshot()

	var cycleErr *CycleError
	if err := db.MoveTask("a", "aa", 0); !errors.As(err, &cycleErr) {
		t.Fatalf("MoveTask under own descendant = %v, want CycleError", err)
	}
	if err := db.MoveTask("a", "a", 0); !errors.As(err, &cycleErr) {
		t.Fatalf("MoveTask under self = %v, want CycleError", err)
	}

	// A rejected move must leave every path untouched.
	after := snapshot()
	for id, path := range before {
		if after[id] != path {
			t.Errorf("path of %s changed from %q to %q after rejected move", id, path, after[id])
		}
	}
}

func TestQueryTasksFilters(t *testing.T) {
	db := setupTestDB(t)

	mustCreate(t, db, "root", "", "root")
	a := mustCreate(t, db, "a", "root", "a")
	mustCreate(t, db, "b", "root", "b")

	a.Status = models.TaskStatusCompleted
	if err := db.UpdateTask(a); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	completed, err := db.QueryTasks(TaskFilter{
		Statuses: []models.TaskStatus{models.TaskStatusCompleted},
	}, "", 0, 0)
	if err != nil {
		t.Fatalf("QueryTasks failed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != "a" {
		t.Errorf("status filter returned %+v, want [a]", completed)
	}

	roots, err := db.QueryTasks(TaskFilter{RootOnly: true}, "", 0, 0)
	if err != nil {
		t.Fatalf("QueryTasks roots failed: %v", err)
	}
	if len(roots) != 1 || roots[0].ID != "root" {
		t.Errorf("RootOnly returned %d tasks, want [root]", len(roots))
	}

	children, err := db.QueryTasks(TaskFilter{ParentID: "root"}, "position_in_parent", 0, 0)
	if err != nil {
		t.Fatalf("QueryTasks by parent failed: %v", err)
	}
	if len(children) != 2 {
		t.Errorf("parent filter returned %d tasks, want 2", len(children))
	}
}

func TestQueryTasksPagination(t *testing.T) {
	db := setupTestDB(t)

	for _, id := range []string{"t1", "t2", "t3", "t4", "t5"} {
		mustCreate(t, db, id, "", id)
	}

	page, err := db.QueryTasks(TaskFilter{}, "title", 2, 2)
	if err != nil {
		t.Fatalf("QueryTasks failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != "t3" || page[1].ID != "t4" {
		t.Errorf("page = %+v, want [t3 t4]", page)
	}
}

func TestQueryTasksRejectsBadOrder(t *testing.T) {
	db := setupTestDB(t)

	var vErr *ValidationError
	_, err := db.QueryTasks(TaskFilter{}, "id; DROP TABLE tasks", 0, 0)
	if !errors.As(err, &vErr) {
		t.Errorf("bad order column: got %v, want ValidationError", err)
	}
}

func TestCountByStatus(t *testing.T) {
	db := setupTestDB(t)

	mustCreate(t, db, "t1", "", "t1")
	t2 := mustCreate(t, db, "t2", "", "t2")
	t2.Status = models.TaskStatusActive
	if err := db.UpdateTask(t2); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	counts, err := db.CountByStatus()
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[models.TaskStatusPending] != 1 || counts[models.TaskStatusActive] != 1 {
		t.Errorf("counts = %+v", counts)
	}
}
