// Package models defines the core entities of the orchestration engine:
// tasks, dependencies, events, attributes, artifacts, and scheduled agent
// definitions. The package has no dependencies on other internal packages
// so it can be shared between the repository, coordinator, and scheduler.
package models

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the coarse execution state of a task, as seen by clients.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusActive indicates the task has been handed to a specialist.
	TaskStatusActive TaskStatus = "active"
	// TaskStatusInProgress indicates work on the task is underway.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusBlocked indicates the task cannot proceed.
	TaskStatusBlocked TaskStatus = "blocked"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled before completion.
	TaskStatusCancelled TaskStatus = "cancelled"
	// TaskStatusArchived indicates the task has been retired from active use.
	TaskStatusArchived TaskStatus = "archived"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusActive, TaskStatusInProgress,
		TaskStatusBlocked, TaskStatusCompleted, TaskStatusFailed,
		TaskStatusCancelled, TaskStatusArchived:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further execution happens in this status.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled, TaskStatusArchived:
		return true
	default:
		return false
	}
}

// LifecycleStage is the fine-grained workflow state governed by the
// lifecycle state machine. It is distinct from TaskStatus: status is what
// clients poll, stage is what the transition table constrains.
type LifecycleStage string

const (
	StageCreated    LifecycleStage = "created"
	StagePlanning   LifecycleStage = "planning"
	StageReady      LifecycleStage = "ready"
	StageActive     LifecycleStage = "active"
	StageBlocked    LifecycleStage = "blocked"
	StageReview     LifecycleStage = "review"
	StageCompleted  LifecycleStage = "completed"
	StageFailed     LifecycleStage = "failed"
	StageArchived   LifecycleStage = "archived"
	StageSuperseded LifecycleStage = "superseded"
)

// Valid returns true if the stage is a known value.
func (s LifecycleStage) Valid() bool {
	switch s {
	case StageCreated, StagePlanning, StageReady, StageActive, StageBlocked,
		StageReview, StageCompleted, StageFailed, StageArchived, StageSuperseded:
		return true
	default:
		return false
	}
}

// TaskType classifies the role a task plays in the work tree.
type TaskType string

const (
	// TaskTypeStandard is a plain unit of work.
	TaskTypeStandard TaskType = "standard"
	// TaskTypeBreakdown is a parent task that exists to hold subtasks.
	TaskTypeBreakdown TaskType = "breakdown"
	// TaskTypeMilestone marks a checkpoint in a larger plan.
	TaskTypeMilestone TaskType = "milestone"
	// TaskTypeReview is a review pass over other tasks' output.
	TaskTypeReview TaskType = "review"
	// TaskTypeResearch is an investigation task producing findings.
	TaskTypeResearch TaskType = "research"
	// TaskTypeImplementation is code- or artifact-producing work.
	TaskTypeImplementation TaskType = "implementation"
	// TaskTypeTesting verifies other tasks' output.
	TaskTypeTesting TaskType = "testing"
	// TaskTypeDocumentation produces written docs.
	TaskTypeDocumentation TaskType = "documentation"
)

// Valid returns true if the task type is a known value.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeStandard, TaskTypeBreakdown, TaskTypeMilestone, TaskTypeReview,
		TaskTypeResearch, TaskTypeImplementation, TaskTypeTesting, TaskTypeDocumentation:
		return true
	default:
		return false
	}
}

// Task is the central entity of the orchestration engine: one node in the
// hierarchical work tree. Owned collections (attributes, dependencies,
// artifacts, events) are loaded on demand by the repository, not embedded.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// ParentID is the ID of the parent task, empty for root tasks.
	ParentID string `json:"parent_id,omitempty"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// TaskType classifies this task (standard, breakdown, milestone, ...).
	TaskType TaskType `json:"task_type"`
	// SpecialistType is the role this task is bound to for execution.
	SpecialistType SpecialistType `json:"specialist_type"`
	// Status is the coarse execution state.
	Status TaskStatus `json:"status"`
	// LifecycleStage is the fine-grained workflow state.
	LifecycleStage LifecycleStage `json:"lifecycle_stage"`
	// HierarchyPath is the materialized path of ancestor IDs, e.g. "/root/child".
	HierarchyPath string `json:"hierarchy_path"`
	// HierarchyLevel is the depth of this task; root tasks are level 0.
	HierarchyLevel int `json:"hierarchy_level"`
	// PositionInParent is the sibling ordering index.
	PositionInParent int `json:"position_in_parent"`
	// ProgressPercentage is the reported completion, 0-100.
	ProgressPercentage int `json:"progress_percentage"`
	// Result holds the outcome summary when the task completes.
	Result string `json:"result,omitempty"`
	// Error holds the failure message when the task fails.
	Error string `json:"error,omitempty"`
	// Context holds free-form data supplied at planning time.
	Context map[string]string `json:"context,omitempty"`
	// Configuration holds free-form execution settings.
	Configuration map[string]string `json:"configuration,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `json:"updated_at"`
	// StartedAt is when work began, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// DueAt is the optional deadline for the task.
	DueAt *time.Time `json:"due_at,omitempty"`
	// DeletedAt is when the task was soft-deleted, if it was.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	// IsDeleted marks the task as soft-deleted.
	IsDeleted bool `json:"is_deleted,omitempty"`
}

// RootPath returns the hierarchy path for a root task with the given ID.
func RootPath(id string) string {
	return "/" + id
}

// ChildPath returns the hierarchy path for a child of the given parent path.
func ChildPath(parentPath, id string) string {
	return parentPath + "/" + id
}

// PathSegments splits a hierarchy path into its component task IDs,
// ordered root first.
func PathSegments(path string) []string {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// ValidatePath checks the structural invariant on the task's hierarchy
// fields: a root task has level 0 and a path of "/<id>"; a child task's path
// is its parent's path plus "/<id>".
func (t *Task) ValidatePath(parent *Task) error {
	if t.ParentID == "" {
		if t.HierarchyLevel != 0 {
			return fmt.Errorf("root task %s has level %d, want 0", t.ID, t.HierarchyLevel)
		}
		if t.HierarchyPath != RootPath(t.ID) {
			return fmt.Errorf("root task %s has path %q, want %q", t.ID, t.HierarchyPath, RootPath(t.ID))
		}
		return nil
	}
	if parent == nil {
		return fmt.Errorf("task %s references parent %s which was not supplied", t.ID, t.ParentID)
	}
	if want := ChildPath(parent.HierarchyPath, t.ID); t.HierarchyPath != want {
		return fmt.Errorf("task %s has path %q, want %q", t.ID, t.HierarchyPath, want)
	}
	if want := parent.HierarchyLevel + 1; t.HierarchyLevel != want {
		return fmt.Errorf("task %s has level %d, want %d", t.ID, t.HierarchyLevel, want)
	}
	return nil
}

// ValidateTimestamps checks the temporal ordering invariants: started at or
// after creation, completed at or after both.
func (t *Task) ValidateTimestamps() error {
	if t.StartedAt != nil && t.StartedAt.Before(t.CreatedAt) {
		return fmt.Errorf("task %s started %s before creation %s", t.ID, t.StartedAt, t.CreatedAt)
	}
	if t.CompletedAt != nil {
		if t.CompletedAt.Before(t.CreatedAt) {
			return fmt.Errorf("task %s completed %s before creation %s", t.ID, t.CompletedAt, t.CreatedAt)
		}
		if t.StartedAt != nil && t.CompletedAt.Before(*t.StartedAt) {
			return fmt.Errorf("task %s completed %s before start %s", t.ID, t.CompletedAt, t.StartedAt)
		}
	}
	return nil
}
