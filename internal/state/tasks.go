package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// taskColumns is the column list shared by every task SELECT.
const taskColumns = `id, parent_id, title, description, task_type, specialist_type,
	status, lifecycle_stage, hierarchy_path, hierarchy_level, position_in_parent,
	progress_percentage, result, error, context, configuration,
	created_at, updated_at, started_at, completed_at, due_at, deleted_at, is_deleted`

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row in taskColumns order.
func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var parentID, description, specialist, result, taskErr, ctx, cfg sql.NullString
	var createdAt, updatedAt string
	var startedAt, completedAt, dueAt, deletedAt sql.NullString
	var isDeleted int

	err := row.Scan(&t.ID, &parentID, &t.Title, &description, &t.TaskType, &specialist,
		&t.Status, &t.LifecycleStage, &t.HierarchyPath, &t.HierarchyLevel, &t.PositionInParent,
		&t.ProgressPercentage, &result, &taskErr, &ctx, &cfg,
		&createdAt, &updatedAt, &startedAt, &completedAt, &dueAt, &deletedAt, &isDeleted)
	if err != nil {
		return nil, err
	}

	t.ParentID = parentID.String
	t.Description = description.String
	t.SpecialistType = models.SpecialistType(specialist.String)
	t.Result = result.String
	t.Error = taskErr.String
	t.CreatedAt, _ = parseTime(createdAt)
	t.UpdatedAt, _ = parseTime(updatedAt)
	t.StartedAt = parseNullableTime(startedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	t.DueAt = parseNullableTime(dueAt)
	t.DeletedAt = parseNullableTime(deletedAt)
	t.IsDeleted = isDeleted != 0

	if ctx.Valid && ctx.String != "" {
		if err := json.Unmarshal([]byte(ctx.String), &t.Context); err != nil {
			return nil, fmt.Errorf("decode task %s context: %w", t.ID, err)
		}
	}
	if cfg.Valid && cfg.String != "" {
		if err := json.Unmarshal([]byte(cfg.String), &t.Configuration); err != nil {
			return nil, fmt.Errorf("decode task %s configuration: %w", t.ID, err)
		}
	}
	return &t, nil
}

// encodeMap serializes a string map as JSON, empty maps as NULL.
func encodeMap(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// boolInt converts a bool to SQLite's integer representation.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateTask inserts a new task. The hierarchy path, level, and sibling
// position are computed here from the parent so callers cannot violate
// the path invariant. A task_created event is appended in the same
// transaction.
func (db *DB) CreateTask(t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Title == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if t.TaskType == "" {
		t.TaskType = models.TaskTypeStandard
	}
	if !t.TaskType.Valid() {
		return &ValidationError{Field: "task_type", Message: fmt.Sprintf("unknown type %q", t.TaskType)}
	}
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.LifecycleStage == "" {
		t.LifecycleStage = models.StageCreated
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.UpdatedAt = t.CreatedAt

	return db.Transaction(func(tx *sql.Tx) error {
		if t.ParentID == "" {
			t.HierarchyPath = models.RootPath(t.ID)
			t.HierarchyLevel = 0
		} else {
			parent, err := getTaskTx(tx, t.ParentID)
			if err == sql.ErrNoRows {
				return &ValidationError{Field: "parent_id", Message: fmt.Sprintf("parent task %s not found", t.ParentID)}
			}
			if err != nil {
				return infraErr("CreateTask", err)
			}
			t.HierarchyPath = models.ChildPath(parent.HierarchyPath, t.ID)
			t.HierarchyLevel = parent.HierarchyLevel + 1
			if t.PositionInParent == 0 {
				pos, err := nextSiblingPositionTx(tx, t.ParentID)
				if err != nil {
					return infraErr("CreateTask", err)
				}
				t.PositionInParent = pos
			}
		}

		ctx, err := encodeMap(t.Context)
		if err != nil {
			return &ValidationError{Field: "context", Message: err.Error()}
		}
		cfg, err := encodeMap(t.Configuration)
		if err != nil {
			return &ValidationError{Field: "configuration", Message: err.Error()}
		}

		_, err = tx.Exec(`
			INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, nullString(t.ParentID), t.Title, nullString(t.Description),
			string(t.TaskType), nullString(string(t.SpecialistType)),
			string(t.Status), string(t.LifecycleStage),
			t.HierarchyPath, t.HierarchyLevel, t.PositionInParent,
			t.ProgressPercentage, nullString(t.Result), nullString(t.Error), ctx, cfg,
			formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
			formatNullableTime(t.StartedAt), formatNullableTime(t.CompletedAt),
			formatNullableTime(t.DueAt), formatNullableTime(t.DeletedAt), boolInt(t.IsDeleted))
		if err != nil {
			return infraErr("CreateTask", err)
		}

		return appendEventTx(tx, &models.TaskEvent{
			TaskID:      t.ID,
			Type:        models.EventTaskCreated,
			Category:    models.CategoryLifecycle,
			TriggeredBy: "repository",
			Timestamp:   t.CreatedAt,
		})
	})
}

// nullString converts "" to NULL for storage.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// getTaskTx loads a task inside a transaction. Returns sql.ErrNoRows when
// the task does not exist.
func getTaskTx(tx *sql.Tx, id string) (*models.Task, error) {
	row := tx.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// nextSiblingPositionTx returns one past the highest sibling position.
func nextSiblingPositionTx(tx *sql.Tx, parentID string) (int, error) {
	var max sql.NullInt64
	row := tx.QueryRow(`SELECT MAX(position_in_parent) FROM tasks WHERE parent_id = ? AND is_deleted = 0`, parentID)
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// GetTask retrieves a task by ID, including soft-deleted tasks.
// Returns ErrNotFound when no such task exists.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, infraErr("GetTask", err)
	}
	return t, nil
}

// UpdateTask persists the mutable fields of a task. Hierarchy fields are
// deliberately not written here; use MoveTask for those. Idempotent on
// retry. A task_updated event is appended in the same transaction.
func (db *DB) UpdateTask(t *models.Task) error {
	t.UpdatedAt = time.Now()
	ctx, err := encodeMap(t.Context)
	if err != nil {
		return &ValidationError{Field: "context", Message: err.Error()}
	}
	cfg, err := encodeMap(t.Configuration)
	if err != nil {
		return &ValidationError{Field: "configuration", Message: err.Error()}
	}

	return db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE tasks SET title = ?, description = ?, task_type = ?, specialist_type = ?,
				status = ?, lifecycle_stage = ?, progress_percentage = ?,
				result = ?, error = ?, context = ?, configuration = ?,
				updated_at = ?, started_at = ?, completed_at = ?, due_at = ?,
				deleted_at = ?, is_deleted = ?
			WHERE id = ?
		`, t.Title, nullString(t.Description), string(t.TaskType), nullString(string(t.SpecialistType)),
			string(t.Status), string(t.LifecycleStage), t.ProgressPercentage,
			nullString(t.Result), nullString(t.Error), ctx, cfg,
			formatTime(t.UpdatedAt), formatNullableTime(t.StartedAt), formatNullableTime(t.CompletedAt),
			formatNullableTime(t.DueAt), formatNullableTime(t.DeletedAt), boolInt(t.IsDeleted), t.ID)
		if err != nil {
			return infraErr("UpdateTask", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return infraErr("UpdateTask", err)
		}
		if n == 0 {
			return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
		}

		return appendEventTx(tx, &models.TaskEvent{
			TaskID:      t.ID,
			Type:        models.EventTaskUpdated,
			Category:    models.CategoryData,
			TriggeredBy: "repository",
			Timestamp:   t.UpdatedAt,
		})
	})
}

// DeleteTask soft-deletes a task: it stays queryable by ID but drops out
// of subtree scans and queries. Idempotent on retry.
func (db *DB) DeleteTask(id string) error {
	now := time.Now()
	return db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE tasks SET is_deleted = 1, deleted_at = ?, updated_at = ? WHERE id = ?
		`, formatTime(now), formatTime(now), id)
		if err != nil {
			return infraErr("DeleteTask", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return infraErr("DeleteTask", err)
		}
		if n == 0 {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return appendEventTx(tx, &models.TaskEvent{
			TaskID:      id,
			Type:        models.EventTaskDeleted,
			Category:    models.CategoryLifecycle,
			TriggeredBy: "repository",
			Data:        `{"mode":"soft"}`,
			Timestamp:   now,
		})
	})
}

// HardDeleteTask removes a task and everything it owns: attributes,
// dependency edges in either direction, artifacts, and events.
func (db *DB) HardDeleteTask(id string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM task_attributes WHERE task_id = ?`,
			`DELETE FROM task_artifacts WHERE task_id = ?`,
			`DELETE FROM task_events WHERE task_id = ?`,
		} {
			if _, err := tx.Exec(q, id); err != nil {
				return infraErr("HardDeleteTask", err)
			}
		}
		if _, err := tx.Exec(`DELETE FROM task_dependencies WHERE dependent_task_id = ? OR prerequisite_task_id = ?`, id, id); err != nil {
			return infraErr("HardDeleteTask", err)
		}
		if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
			return infraErr("HardDeleteTask", err)
		}
		return nil
	})
}

// GetChildren returns the direct, non-deleted children of a task in
// sibling order.
func (db *DB) GetChildren(parentID string) ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE parent_id = ? AND is_deleted = 0
		ORDER BY position_in_parent, id
	`, parentID)
	if err != nil {
		return nil, infraErr("GetChildren", err)
	}
	defer rows.Close()
	return collectTasks(rows, "GetChildren")
}

// GetSubtree returns all non-deleted descendants of a task via a
// path-prefix scan, ordered by path. maxDepth bounds how far below the
// task the scan reaches; zero or negative means unbounded.
func (db *DB) GetSubtree(taskID string, maxDepth int) ([]*models.Task, error) {
	root, err := db.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE hierarchy_path LIKE ? AND is_deleted = 0`
	args := []any{likePrefix(root.HierarchyPath)}
	if maxDepth > 0 {
		query += ` AND hierarchy_level <= ?`
		args = append(args, root.HierarchyLevel+maxDepth)
	}
	query += ` ORDER BY hierarchy_path`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, infraErr("GetSubtree", err)
	}
	defer rows.Close()
	return collectTasks(rows, "GetSubtree")
}

// likePrefix builds the LIKE pattern matching strict descendants of path.
// Task IDs are UUIDs, so the path contains no LIKE metacharacters.
func likePrefix(path string) string {
	return path + "/%"
}

// GetAncestors returns the chain of ancestors for a task, ordered root
// first, by walking the task's own path segments.
func (db *DB) GetAncestors(taskID string) ([]*models.Task, error) {
	task, err := db.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	segments := models.PathSegments(task.HierarchyPath)
	if len(segments) <= 1 {
		return nil, nil
	}
	ancestorIDs := segments[:len(segments)-1]

	ancestors := make([]*models.Task, 0, len(ancestorIDs))
	for _, id := range ancestorIDs {
		ancestor, err := db.GetTask(id)
		if err != nil {
			return nil, fmt.Errorf("ancestor %s of task %s: %w", id, taskID, err)
		}
		ancestors = append(ancestors, ancestor)
	}
	return ancestors, nil
}

// MoveTask reparents a task. The cycle guard rejects any move that would
// place a task under its own subtree, with no partial writes. On success
// the task's path and level, and those of every descendant found by
// path-prefix match, are rewritten atomically in one transaction.
func (db *DB) MoveTask(taskID, newParentID string, position int) error {
	if taskID == newParentID {
		return &CycleError{TaskID: taskID, TargetID: newParentID, Graph: "hierarchy"}
	}
	now := time.Now()

	return db.Transaction(func(tx *sql.Tx) error {
		task, err := getTaskTx(tx, taskID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		if err != nil {
			return infraErr("MoveTask", err)
		}

		var newPath string
		var newLevel int
		if newParentID == "" {
			newPath = models.RootPath(taskID)
			newLevel = 0
		} else {
			parent, err := getTaskTx(tx, newParentID)
			if err == sql.ErrNoRows {
				return &ValidationError{Field: "new_parent_id", Message: fmt.Sprintf("parent task %s not found", newParentID)}
			}
			if err != nil {
				return infraErr("MoveTask", err)
			}
			// Cycle guard: the new parent must not be inside the
			// moving task's subtree.
			if parent.HierarchyPath == task.HierarchyPath ||
				len(parent.HierarchyPath) > len(task.HierarchyPath) &&
					parent.HierarchyPath[:len(task.HierarchyPath)+1] == task.HierarchyPath+"/" {
				return &CycleError{TaskID: taskID, TargetID: newParentID, Graph: "hierarchy"}
			}
			newPath = models.ChildPath(parent.HierarchyPath, taskID)
			newLevel = parent.HierarchyLevel + 1
		}

		if position < 0 {
			if newParentID == "" {
				position = 0
			} else {
				position, err = nextSiblingPositionTx(tx, newParentID)
				if err != nil {
					return infraErr("MoveTask", err)
				}
			}
		}

		oldPath := task.HierarchyPath
		levelDelta := newLevel - task.HierarchyLevel

		// Rewrite the moved task and every descendant in one statement.
		// Descendants are identified by path prefix, never by a
		// recursive walk, so the rewrite cannot race a concurrent move.
		_, err = tx.Exec(`
			UPDATE tasks
			SET hierarchy_path = ? || substr(hierarchy_path, ?),
				hierarchy_level = hierarchy_level + ?,
				updated_at = ?
			WHERE hierarchy_path = ? OR hierarchy_path LIKE ?
		`, newPath, len(oldPath)+1, levelDelta, formatTime(now), oldPath, likePrefix(oldPath))
		if err != nil {
			return infraErr("MoveTask", err)
		}

		_, err = tx.Exec(`
			UPDATE tasks SET parent_id = ?, position_in_parent = ? WHERE id = ?
		`, nullString(newParentID), position, taskID)
		if err != nil {
			return infraErr("MoveTask", err)
		}

		data, _ := json.Marshal(map[string]string{
			"old_path": oldPath,
			"new_path": newPath,
		})
		return appendEventTx(tx, &models.TaskEvent{
			TaskID:      taskID,
			Type:        models.EventTaskMoved,
			Category:    models.CategoryStructure,
			TriggeredBy: "repository",
			Data:        string(data),
			Timestamp:   now,
		})
	})
}

// collectTasks drains a task row set.
func collectTasks(rows *sql.Rows, op string) ([]*models.Task, error) {
	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, infraErr(op, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr(op, err)
	}
	return tasks, nil
}
