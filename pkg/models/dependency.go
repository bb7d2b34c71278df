package models

import "time"

// DependencyType classifies the relationship between a dependent task and
// its prerequisite.
type DependencyType string

const (
	// DependencyCompletion requires the prerequisite to finish first.
	DependencyCompletion DependencyType = "completion"
	// DependencyData requires output data from the prerequisite.
	DependencyData DependencyType = "data"
	// DependencyApproval requires an approval gate on the prerequisite.
	DependencyApproval DependencyType = "approval"
	// DependencyPrerequisite is a generic ordering constraint.
	DependencyPrerequisite DependencyType = "prerequisite"
	// DependencyBlocks marks the prerequisite as actively blocking.
	DependencyBlocks DependencyType = "blocks"
	// DependencyRelated is informational only and never gates execution.
	DependencyRelated DependencyType = "related"
)

// Valid returns true if the dependency type is a known value.
func (d DependencyType) Valid() bool {
	switch d {
	case DependencyCompletion, DependencyData, DependencyApproval,
		DependencyPrerequisite, DependencyBlocks, DependencyRelated:
		return true
	default:
		return false
	}
}

// DependencyStatus tracks whether a dependency edge is satisfied.
type DependencyStatus string

const (
	DependencyPending   DependencyStatus = "pending"
	DependencySatisfied DependencyStatus = "satisfied"
	DependencyFailed    DependencyStatus = "failed"
	DependencyWaived    DependencyStatus = "waived"
	DependencyChecking  DependencyStatus = "checking"
)

// Valid returns true if the dependency status is a known value.
func (d DependencyStatus) Valid() bool {
	switch d {
	case DependencyPending, DependencySatisfied, DependencyFailed,
		DependencyWaived, DependencyChecking:
		return true
	default:
		return false
	}
}

// TaskDependency is a directed edge from a dependent task to a prerequisite
// task. Dependency satisfaction checks consider only mandatory, non-waived
// edges; the graph restricted to mandatory edges must stay acyclic.
type TaskDependency struct {
	// ID is the unique identifier for this edge.
	ID string `json:"id"`
	// DependentTaskID is the task that waits.
	DependentTaskID string `json:"dependent_task_id"`
	// PrerequisiteTaskID is the task that must be satisfied first.
	PrerequisiteTaskID string `json:"prerequisite_task_id"`
	// DependencyType classifies the relationship.
	DependencyType DependencyType `json:"dependency_type"`
	// Status is the current satisfaction state of the edge.
	Status DependencyStatus `json:"dependency_status"`
	// IsMandatory gates execution when true; advisory when false.
	IsMandatory bool `json:"is_mandatory"`
	// AutoSatisfy marks the edge as satisfied automatically when the
	// prerequisite completes.
	AutoSatisfy bool `json:"auto_satisfy"`
	// CreatedAt is when the edge was created.
	CreatedAt time.Time `json:"created_at"`
}

// Gating returns true if this edge currently gates the dependent task:
// mandatory and neither satisfied nor waived.
func (d *TaskDependency) Gating() bool {
	if !d.IsMandatory {
		return false
	}
	return d.Status != DependencySatisfied && d.Status != DependencyWaived
}
