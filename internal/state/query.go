package state

import (
	"fmt"
	"strings"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// TaskFilter selects tasks for QueryTasks. Zero-valued fields are ignored.
type TaskFilter struct {
	// Statuses restricts to tasks in any of these statuses.
	Statuses []models.TaskStatus
	// Stages restricts to tasks in any of these lifecycle stages.
	Stages []models.LifecycleStage
	// TaskType restricts to one task type.
	TaskType models.TaskType
	// SpecialistType restricts to one specialist role.
	SpecialistType models.SpecialistType
	// ParentID restricts to direct children of this task.
	ParentID string
	// RootOnly restricts to tasks without a parent.
	RootOnly bool
	// PathPrefix restricts to tasks whose hierarchy path starts with
	// this prefix (the prefix's own task is excluded).
	PathPrefix string
	// IncludeDeleted includes soft-deleted tasks.
	IncludeDeleted bool
}

// validOrderColumns are the columns QueryTasks will sort by.
var validOrderColumns = map[string]bool{
	"created_at":         true,
	"updated_at":         true,
	"hierarchy_path":     true,
	"position_in_parent": true,
	"status":             true,
	"title":              true,
}

// QueryTasks returns tasks matching the filter with optional ordering and
// pagination. orderBy must name a known column (optionally suffixed with
// " desc"); empty means created_at.
func (db *DB) QueryTasks(filter TaskFilter, orderBy string, limit, offset int) ([]*models.Task, error) {
	var conds []string
	var args []any

	if !filter.IncludeDeleted {
		conds = append(conds, "is_deleted = 0")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		conds = append(conds, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if len(filter.Stages) > 0 {
		placeholders := make([]string, len(filter.Stages))
		for i, s := range filter.Stages {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		conds = append(conds, fmt.Sprintf("lifecycle_stage IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.TaskType != "" {
		conds = append(conds, "task_type = ?")
		args = append(args, string(filter.TaskType))
	}
	if filter.SpecialistType != "" {
		conds = append(conds, "specialist_type = ?")
		args = append(args, string(filter.SpecialistType))
	}
	if filter.ParentID != "" {
		conds = append(conds, "parent_id = ?")
		args = append(args, filter.ParentID)
	}
	if filter.RootOnly {
		conds = append(conds, "parent_id IS NULL")
	}
	if filter.PathPrefix != "" {
		conds = append(conds, "hierarchy_path LIKE ?")
		args = append(args, likePrefix(filter.PathPrefix))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	column, desc := "created_at", false
	if orderBy != "" {
		parts := strings.Fields(strings.ToLower(orderBy))
		column = parts[0]
		if !validOrderColumns[column] {
			return nil, &ValidationError{Field: "order_by", Message: fmt.Sprintf("cannot sort by %q", orderBy)}
		}
		desc = len(parts) > 1 && parts[1] == "desc"
	}
	query += " ORDER BY " + column
	if desc {
		query += " DESC"
	}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, infraErr("QueryTasks", err)
	}
	defer rows.Close()
	return collectTasks(rows, "QueryTasks")
}

// CountByStatus returns the number of non-deleted tasks per status.
func (db *DB) CountByStatus() (map[models.TaskStatus]int, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM tasks WHERE is_deleted = 0 GROUP BY status`)
	if err != nil {
		return nil, infraErr("CountByStatus", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, infraErr("CountByStatus", err)
		}
		counts[models.TaskStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("CountByStatus", err)
	}
	return counts, nil
}
