package scheduler

import (
	"strconv"
	"strings"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// EvalConditions evaluates a hook's trigger conditions against an event
// context. An empty condition list always passes. Mode all requires every
// condition to hold, any requires at least one.
func EvalConditions(conds []models.TriggerCondition, mode models.ConditionMode, eventCtx map[string]string) bool {
	if len(conds) == 0 {
		return true
	}
	if mode == "" {
		mode = models.ConditionAll
	}

	for _, cond := range conds {
		pass := evalCondition(cond, eventCtx)
		if mode == models.ConditionAll && !pass {
			return false
		}
		if mode == models.ConditionAny && pass {
			return true
		}
	}
	return mode == models.ConditionAll
}

// evalCondition evaluates one field/op/value triple. Numeric operators
// require both sides to parse as numbers; a side that does not parse
// fails the condition rather than falling back to string comparison.
func evalCondition(cond models.TriggerCondition, eventCtx map[string]string) bool {
	got, present := eventCtx[cond.Field]

	switch cond.Op {
	case models.OpExists:
		return present
	case models.OpEquals:
		return present && got == cond.Value
	case models.OpNotEquals:
		return present && got != cond.Value
	case models.OpContains:
		return present && strings.Contains(got, cond.Value)
	case models.OpGreaterThan, models.OpLessThan:
		if !present {
			return false
		}
		lhs, err1 := strconv.ParseFloat(got, 64)
		rhs, err2 := strconv.ParseFloat(cond.Value, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		if cond.Op == models.OpGreaterThan {
			return lhs > rhs
		}
		return lhs < rhs
	default:
		return false
	}
}
