package orchestrator

import (
	"fmt"
	"time"
)

// TimeoutError reports an operation that ran out of time. The outcome of
// the underlying repository writes is unknown; callers should re-query
// status instead of assuming failure.
type TimeoutError struct {
	// Op is the operation that timed out.
	Op string
	// Elapsed is how long the operation ran before the deadline.
	Elapsed time.Duration
	// OutcomeUnknown is always true; it exists so callers checking the
	// struct see the semantics spelled out.
	OutcomeUnknown bool
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s (outcome unknown, re-check status)", e.Op, e.Elapsed.Round(time.Millisecond))
}

// Response is the structured result every coordinator operation returns.
// On failure it still carries the task id, a human-readable message, and
// whatever partial progress was safely computable.
type Response struct {
	// TaskID is the task the operation acted on, when known.
	TaskID string `json:"task_id,omitempty"`
	// OK reports whether the operation succeeded.
	OK bool `json:"ok"`
	// Message is a human-readable summary or error description.
	Message string `json:"message"`
	// CorrelationID ties the response to log lines for debugging.
	CorrelationID string `json:"correlation_id"`
	// ParentProgress carries parent progress when it was computable,
	// even on a partially failed operation.
	ParentProgress *ParentProgress `json:"parent_progress,omitempty"`
}

// ParentProgress summarizes how far a parent task's children have come.
type ParentProgress struct {
	// ParentID is the parent task.
	ParentID string `json:"parent_id"`
	// CompletedChildren is the number of completed children.
	CompletedChildren int `json:"completed_children"`
	// TotalChildren is the total number of children.
	TotalChildren int `json:"total_children"`
	// Percentage is CompletedChildren over TotalChildren.
	Percentage int `json:"percentage"`
	// ReadyForCompletion is true when every child is terminal.
	ReadyForCompletion bool `json:"ready_for_completion"`
}
