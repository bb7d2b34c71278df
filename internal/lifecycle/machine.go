// Package lifecycle implements the task lifecycle state machine: a fixed
// transition table over lifecycle stages, plus lookup helpers for
// diagnostics and a heuristic for suggesting the next stage.
package lifecycle

import (
	"fmt"
	"sort"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// transitions is the fixed table of allowed stage transitions.
// Self-transitions are deliberately absent: re-entering the current stage
// is rejected like any other transition outside the table.
var transitions = map[models.LifecycleStage][]models.LifecycleStage{
	models.StageCreated:    {models.StagePlanning, models.StageReady, models.StageActive, models.StageArchived},
	models.StagePlanning:   {models.StageReady, models.StageBlocked, models.StageArchived},
	models.StageReady:      {models.StageActive, models.StageBlocked, models.StageArchived},
	models.StageActive:     {models.StageBlocked, models.StageReview, models.StageCompleted, models.StageFailed, models.StageArchived},
	models.StageBlocked:    {models.StageReady, models.StageActive, models.StageFailed, models.StageArchived},
	models.StageReview:     {models.StageActive, models.StageCompleted, models.StageFailed, models.StageArchived},
	models.StageCompleted:  {models.StageArchived, models.StageSuperseded},
	models.StageFailed:     {models.StageReady, models.StageActive, models.StageArchived},
	models.StageArchived:   {},
	models.StageSuperseded: {models.StageArchived},
}

// TransitionError reports a rejected lifecycle transition. It names both
// the current and the requested stage so callers can surface exactly what
// was attempted.
type TransitionError struct {
	// From is the task's current stage.
	From models.LifecycleStage
	// To is the requested stage.
	To models.LifecycleStage
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("lifecycle transition %s -> %s is not allowed", e.From, e.To)
}

// CanTransition reports whether moving from one stage to another is allowed
// by the table. Unknown stages and self-transitions return false.
func CanTransition(from, to models.LifecycleStage) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates a requested transition, returning a TransitionError
// when the table does not allow it.
func Transition(from, to models.LifecycleStage) error {
	if !from.Valid() || !to.Valid() {
		return &TransitionError{From: from, To: to}
	}
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// AllowedTransitions returns the stages reachable in one step from the
// given stage. The returned slice is a copy.
func AllowedTransitions(from models.LifecycleStage) []models.LifecycleStage {
	allowed := transitions[from]
	out := make([]models.LifecycleStage, len(allowed))
	copy(out, allowed)
	return out
}

// IsTerminal reports whether the stage has no outgoing transitions.
func IsTerminal(stage models.LifecycleStage) bool {
	return stage.Valid() && len(transitions[stage]) == 0
}

// ShortestPath returns the shortest sequence of stages from one stage to
// another, inclusive of both endpoints, found by breadth-first search over
// the table. The second return is false when no path exists. Used for
// diagnostics: "to get from X to Y the task would have to pass through...".
func ShortestPath(from, to models.LifecycleStage) ([]models.LifecycleStage, bool) {
	if !from.Valid() || !to.Valid() {
		return nil, false
	}
	if from == to {
		return []models.LifecycleStage{from}, true
	}

	prev := map[models.LifecycleStage]models.LifecycleStage{}
	visited := map[models.LifecycleStage]bool{from: true}
	queue := []models.LifecycleStage{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		// Stable expansion order keeps the result deterministic when
		// multiple shortest paths exist.
		next := AllowedTransitions(cur)
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		for _, n := range next {
			if visited[n] {
				continue
			}
			visited[n] = true
			prev[n] = cur
			if n == to {
				path := []models.LifecycleStage{to}
				for at := to; at != from; at = prev[at] {
					path = append([]models.LifecycleStage{prev[at]}, path...)
				}
				return path, true
			}
			queue = append(queue, n)
		}
	}
	return nil, false
}

// TaskSnapshot carries the context the suggestion heuristic looks at.
type TaskSnapshot struct {
	// Stage is the task's current lifecycle stage.
	Stage models.LifecycleStage
	// HasError is true when the task has a reported error.
	HasError bool
	// ProgressPercentage is the reported completion, 0-100.
	ProgressPercentage int
	// DependenciesSatisfied is true when no mandatory edge still gates
	// the task.
	DependenciesSatisfied bool
	// HasSubtasks is true when the task has children.
	HasSubtasks bool
	// SubtasksTerminal is true when every child is in a terminal status.
	SubtasksTerminal bool
}

// SuggestNext recommends the next stage for a task given its context, or
// returns the current stage when nothing better is evident. The suggestion
// is always a legal transition.
func SuggestNext(snap TaskSnapshot) models.LifecycleStage {
	switch snap.Stage {
	case models.StageCreated:
		if snap.HasSubtasks {
			return models.StagePlanning
		}
		return models.StageReady
	case models.StagePlanning:
		if snap.DependenciesSatisfied {
			return models.StageReady
		}
		return models.StageBlocked
	case models.StageReady:
		if !snap.DependenciesSatisfied {
			return models.StageBlocked
		}
		return models.StageActive
	case models.StageActive:
		if snap.HasError {
			return models.StageFailed
		}
		if snap.ProgressPercentage >= 100 {
			if snap.HasSubtasks && !snap.SubtasksTerminal {
				return snap.Stage
			}
			return models.StageReview
		}
		return snap.Stage
	case models.StageBlocked:
		if snap.DependenciesSatisfied {
			return models.StageReady
		}
		return snap.Stage
	case models.StageReview:
		if snap.HasError {
			return models.StageFailed
		}
		return models.StageCompleted
	case models.StageFailed:
		return models.StageReady
	default:
		return snap.Stage
	}
}
