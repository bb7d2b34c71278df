package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

const depColumns = `id, dependent_task_id, prerequisite_task_id, dependency_type,
	status, is_mandatory, auto_satisfy, created_at`

// scanDependency reads one dependency row in depColumns order.
func scanDependency(row rowScanner) (*models.TaskDependency, error) {
	var d models.TaskDependency
	var mandatory, autoSatisfy int
	var createdAt string
	err := row.Scan(&d.ID, &d.DependentTaskID, &d.PrerequisiteTaskID, &d.DependencyType,
		&d.Status, &mandatory, &autoSatisfy, &createdAt)
	if err != nil {
		return nil, err
	}
	d.IsMandatory = mandatory != 0
	d.AutoSatisfy = autoSatisfy != 0
	d.CreatedAt, _ = parseTime(createdAt)
	return &d, nil
}

// AddDependency creates a dependency edge after validating both endpoints
// exist and that a mandatory edge would not make the mandatory dependency
// graph cyclic. The check and the insert run in one transaction so the
// graph cannot go cyclic under concurrent additions.
func (db *DB) AddDependency(dep *models.TaskDependency) error {
	if dep.DependentTaskID == "" || dep.PrerequisiteTaskID == "" {
		return &ValidationError{Field: "dependency", Message: "both task ids are required"}
	}
	if dep.DependentTaskID == dep.PrerequisiteTaskID {
		return &CycleError{TaskID: dep.DependentTaskID, TargetID: dep.PrerequisiteTaskID, Graph: "dependency"}
	}
	if dep.ID == "" {
		dep.ID = uuid.New().String()
	}
	if dep.DependencyType == "" {
		dep.DependencyType = models.DependencyCompletion
	}
	if !dep.DependencyType.Valid() {
		return &ValidationError{Field: "dependency_type", Message: fmt.Sprintf("unknown type %q", dep.DependencyType)}
	}
	if dep.Status == "" {
		dep.Status = models.DependencyPending
	}
	if dep.CreatedAt.IsZero() {
		dep.CreatedAt = time.Now()
	}

	return db.Transaction(func(tx *sql.Tx) error {
		for _, id := range []string{dep.DependentTaskID, dep.PrerequisiteTaskID} {
			if _, err := getTaskTx(tx, id); err == sql.ErrNoRows {
				return &ValidationError{Field: "dependency", Message: fmt.Sprintf("task %s not found", id)}
			} else if err != nil {
				return infraErr("AddDependency", err)
			}
		}

		if dep.IsMandatory {
			cyclic, err := wouldCycleTx(tx, dep.DependentTaskID, dep.PrerequisiteTaskID)
			if err != nil {
				return infraErr("AddDependency", err)
			}
			if cyclic {
				return &CycleError{TaskID: dep.DependentTaskID, TargetID: dep.PrerequisiteTaskID, Graph: "dependency"}
			}
		}

		_, err := tx.Exec(`
			INSERT INTO task_dependencies (`+depColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, dep.ID, dep.DependentTaskID, dep.PrerequisiteTaskID, string(dep.DependencyType),
			string(dep.Status), boolInt(dep.IsMandatory), boolInt(dep.AutoSatisfy), formatTime(dep.CreatedAt))
		if err != nil {
			return infraErr("AddDependency", err)
		}

		return appendEventTx(tx, &models.TaskEvent{
			TaskID:      dep.DependentTaskID,
			Type:        models.EventDependencyAdded,
			Category:    models.CategoryStructure,
			TriggeredBy: "repository",
			Data:        fmt.Sprintf(`{"prerequisite":%q}`, dep.PrerequisiteTaskID),
			Timestamp:   dep.CreatedAt,
		})
	})
}

// wouldCycleTx reports whether adding the mandatory edge dependent ->
// prerequisite closes a cycle: true when dependent is already reachable
// from prerequisite over existing mandatory edges. Depth-first search with
// coloring, the same scheme the original dependency validator used.
func wouldCycleTx(tx *sql.Tx, dependent, prerequisite string) (bool, error) {
	rows, err := tx.Query(`
		SELECT dependent_task_id, prerequisite_task_id FROM task_dependencies
		WHERE is_mandatory = 1
	`)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	edges := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return false, err
		}
		edges[from] = append(edges[from], to)
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	visited := make(map[string]bool)
	var visit func(id string) bool
	visit = func(id string) bool {
		if id == dependent {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		for _, next := range edges[id] {
			if visit(next) {
				return true
			}
		}
		return false
	}
	return visit(prerequisite), nil
}

// DependencyCheck is the result of CheckDependencies.
type DependencyCheck struct {
	// AllSatisfied is true when no mandatory, non-waived edge still
	// gates the task.
	AllSatisfied bool
	// Unsatisfied lists the edges that still gate the task.
	Unsatisfied []models.TaskDependency
}

// CheckDependencies evaluates the gating edges of a task. Only mandatory,
// non-waived edges count. Edges marked auto_satisfy are promoted to
// satisfied here when their prerequisite has completed.
func (db *DB) CheckDependencies(taskID string) (*DependencyCheck, error) {
	deps, err := db.ListDependencies(taskID)
	if err != nil {
		return nil, err
	}

	check := &DependencyCheck{AllSatisfied: true}
	for _, dep := range deps {
		if !dep.Gating() {
			continue
		}
		if dep.AutoSatisfy {
			prereq, err := db.GetTask(dep.PrerequisiteTaskID)
			if err != nil {
				return nil, err
			}
			if prereq.Status == models.TaskStatusCompleted {
				if err := db.UpdateDependencyStatus(dep.ID, models.DependencySatisfied); err != nil {
					return nil, err
				}
				continue
			}
		}
		check.AllSatisfied = false
		check.Unsatisfied = append(check.Unsatisfied, dep)
	}
	return check, nil
}

// ListDependencies returns the edges where the task is the dependent.
func (db *DB) ListDependencies(taskID string) ([]models.TaskDependency, error) {
	rows, err := db.Query(`
		SELECT `+depColumns+` FROM task_dependencies
		WHERE dependent_task_id = ? ORDER BY created_at, id
	`, taskID)
	if err != nil {
		return nil, infraErr("ListDependencies", err)
	}
	defer rows.Close()
	return collectDependencies(rows)
}

// ListDependents returns the edges where the task is the prerequisite.
func (db *DB) ListDependents(taskID string) ([]models.TaskDependency, error) {
	rows, err := db.Query(`
		SELECT `+depColumns+` FROM task_dependencies
		WHERE prerequisite_task_id = ? ORDER BY created_at, id
	`, taskID)
	if err != nil {
		return nil, infraErr("ListDependents", err)
	}
	defer rows.Close()
	return collectDependencies(rows)
}

// UpdateDependencyStatus sets the satisfaction state of one edge.
func (db *DB) UpdateDependencyStatus(depID string, status models.DependencyStatus) error {
	if !status.Valid() {
		return &ValidationError{Field: "dependency_status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	res, err := db.Exec(`UPDATE task_dependencies SET status = ? WHERE id = ?`, string(status), depID)
	if err != nil {
		return infraErr("UpdateDependencyStatus", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return infraErr("UpdateDependencyStatus", err)
	}
	if n == 0 {
		return fmt.Errorf("dependency %s: %w", depID, ErrNotFound)
	}
	return nil
}

// SatisfyDependentsOf promotes every auto_satisfy edge whose prerequisite
// is the given task. Called when a task completes.
func (db *DB) SatisfyDependentsOf(prerequisiteID string) error {
	_, err := db.Exec(`
		UPDATE task_dependencies SET status = ?
		WHERE prerequisite_task_id = ? AND auto_satisfy = 1 AND status NOT IN (?, ?)
	`, string(models.DependencySatisfied), prerequisiteID,
		string(models.DependencySatisfied), string(models.DependencyWaived))
	if err != nil {
		return infraErr("SatisfyDependentsOf", err)
	}
	return nil
}

// DependencyGraph is a snapshot of tasks and the edges between them.
type DependencyGraph struct {
	// Tasks maps task ID to task.
	Tasks map[string]*models.Task
	// Edges lists every dependency edge between the tasks.
	Edges []models.TaskDependency
}

// GetDependencyGraph returns the dependency graph. With a root task ID the
// graph is restricted to that task's subtree (root included); with an
// empty root it covers every non-deleted task.
func (db *DB) GetDependencyGraph(rootID string) (*DependencyGraph, error) {
	graph := &DependencyGraph{Tasks: make(map[string]*models.Task)}

	var tasks []*models.Task
	if rootID == "" {
		var err error
		tasks, err = db.QueryTasks(TaskFilter{}, "hierarchy_path", 0, 0)
		if err != nil {
			return nil, err
		}
	} else {
		root, err := db.GetTask(rootID)
		if err != nil {
			return nil, err
		}
		subtree, err := db.GetSubtree(rootID, 0)
		if err != nil {
			return nil, err
		}
		tasks = append([]*models.Task{root}, subtree...)
	}
	for _, t := range tasks {
		graph.Tasks[t.ID] = t
	}

	rows, err := db.Query(`SELECT ` + depColumns + ` FROM task_dependencies ORDER BY created_at, id`)
	if err != nil {
		return nil, infraErr("GetDependencyGraph", err)
	}
	defer rows.Close()

	edges, err := collectDependencies(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		if _, ok := graph.Tasks[e.DependentTaskID]; !ok {
			continue
		}
		if _, ok := graph.Tasks[e.PrerequisiteTaskID]; !ok {
			continue
		}
		graph.Edges = append(graph.Edges, e)
	}
	return graph, nil
}

func collectDependencies(rows *sql.Rows) ([]models.TaskDependency, error) {
	var deps []models.TaskDependency
	for rows.Next() {
		d, err := scanDependency(rows)
		if err != nil {
			return nil, infraErr("collectDependencies", err)
		}
		deps = append(deps, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("collectDependencies", err)
	}
	return deps, nil
}
