package models

import "time"

// EventType names what happened to a task.
type EventType string

const (
	// EventTaskCreated records task creation.
	EventTaskCreated EventType = "task_created"
	// EventTaskUpdated records a field-level update.
	EventTaskUpdated EventType = "task_updated"
	// EventTaskDeleted records a soft or hard delete.
	EventTaskDeleted EventType = "task_deleted"
	// EventTaskMoved records a hierarchy move.
	EventTaskMoved EventType = "task_moved"
	// EventStatusChanged records a coarse status transition.
	EventStatusChanged EventType = "status_changed"
	// EventStageChanged records a lifecycle stage transition.
	EventStageChanged EventType = "stage_changed"
	// EventSpecialistAssigned records binding a specialist role.
	EventSpecialistAssigned EventType = "specialist_assigned"
	// EventDependencyAdded records a new dependency edge.
	EventDependencyAdded EventType = "dependency_added"
	// EventArtifactStored records an artifact reference being attached.
	EventArtifactStored EventType = "artifact_stored"
	// EventSynthesisProduced records a parent-level synthesis.
	EventSynthesisProduced EventType = "synthesis_produced"
)

// EventCategory groups event types for filtering.
type EventCategory string

const (
	// CategoryLifecycle covers status and stage transitions.
	CategoryLifecycle EventCategory = "lifecycle"
	// CategoryStructure covers hierarchy and dependency mutations.
	CategoryStructure EventCategory = "structure"
	// CategoryData covers result, artifact, and attribute changes.
	CategoryData EventCategory = "data"
)

// TaskEvent is one immutable entry in a task's audit trail. Events are
// appended on every meaningful mutation and never updated; removal happens
// only through explicit retention cleanup.
type TaskEvent struct {
	// EventID is the unique identifier for this event.
	EventID string `json:"event_id"`
	// TaskID is the task the event belongs to.
	TaskID string `json:"task_id"`
	// Type names what happened.
	Type EventType `json:"event_type"`
	// Category groups the event for filtering.
	Category EventCategory `json:"event_category"`
	// TriggeredBy identifies the actor (client, coordinator, scheduler).
	TriggeredBy string `json:"triggered_by"`
	// Data holds event-specific details, serialized as JSON.
	Data string `json:"data,omitempty"`
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}
