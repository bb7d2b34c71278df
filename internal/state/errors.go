package state

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// InfraError wraps a storage-layer failure so that database driver error
// types never cross the repository boundary. Recoverable marks failures
// that are worth retrying (locks, busy handles); schema and constraint
// violations are not.
type InfraError struct {
	// Op names the repository operation that failed.
	Op string
	// Recoverable indicates whether a retry may succeed.
	Recoverable bool
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *InfraError) Error() string {
	return fmt.Sprintf("storage failure in %s (recoverable=%v): %v", e.Op, e.Recoverable, e.Err)
}

// Unwrap returns the underlying cause.
func (e *InfraError) Unwrap() error {
	return e.Err
}

// infraErr wraps err as a recoverable infrastructure error.
func infraErr(op string, err error) error {
	return &InfraError{Op: op, Recoverable: true, Err: err}
}

// ValidationError reports malformed input to a repository operation:
// missing targets, bad identifiers, out-of-range values. Validation
// failures are never retried.
type ValidationError struct {
	// Field is the offending input, when identifiable.
	Field string
	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CycleError reports a mutation that would make the hierarchy or the
// mandatory dependency graph cyclic. The mutation is rejected with no
// partial writes.
type CycleError struct {
	// TaskID is the task whose mutation was rejected.
	TaskID string
	// TargetID is the parent or prerequisite that would close the cycle.
	TargetID string
	// Graph names which graph would become cyclic: "hierarchy" or "dependency".
	Graph string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("%s cycle: task %s cannot link to %s", e.Graph, e.TaskID, e.TargetID)
}
