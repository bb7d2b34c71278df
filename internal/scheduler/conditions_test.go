package scheduler

import (
	"testing"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

func TestEvalConditions(t *testing.T) {
	ctx := map[string]string{
		"status":   "completed",
		"priority": "7",
		"title":    "fix login flow",
	}

	tests := []struct {
		name  string
		conds []models.TriggerCondition
		mode  models.ConditionMode
		want  bool
	}{
		{name: "empty always passes", want: true},
		{
			name:  "eq match",
			conds: []models.TriggerCondition{{Field: "status", Op: models.OpEquals, Value: "completed"}},
			want:  true,
		},
		{
			name:  "eq mismatch",
			conds: []models.TriggerCondition{{Field: "status", Op: models.OpEquals, Value: "failed"}},
			want:  false,
		},
		{
			name:  "eq absent field",
			conds: []models.TriggerCondition{{Field: "missing", Op: models.OpEquals, Value: ""}},
			want:  false,
		},
		{
			name:  "ne",
			conds: []models.TriggerCondition{{Field: "status", Op: models.OpNotEquals, Value: "failed"}},
			want:  true,
		},
		{
			name:  "contains",
			conds: []models.TriggerCondition{{Field: "title", Op: models.OpContains, Value: "login"}},
			want:  true,
		},
		{
			name:  "exists present",
			conds: []models.TriggerCondition{{Field: "priority", Op: models.OpExists}},
			want:  true,
		},
		{
			name:  "exists absent",
			conds: []models.TriggerCondition{{Field: "assignee", Op: models.OpExists}},
			want:  false,
		},
		{
			name:  "gt numeric",
			conds: []models.TriggerCondition{{Field: "priority", Op: models.OpGreaterThan, Value: "5"}},
			want:  true,
		},
		{
			name:  "lt numeric",
			conds: []models.TriggerCondition{{Field: "priority", Op: models.OpLessThan, Value: "5"}},
			want:  false,
		},
		{
			name:  "gt non-numeric side fails",
			conds: []models.TriggerCondition{{Field: "status", Op: models.OpGreaterThan, Value: "5"}},
			want:  false,
		},
		{
			name: "all requires every condition",
			conds: []models.TriggerCondition{
				{Field: "status", Op: models.OpEquals, Value: "completed"},
				{Field: "priority", Op: models.OpGreaterThan, Value: "10"},
			},
			mode: models.ConditionAll,
			want: false,
		},
		{
			name: "any requires one condition",
			conds: []models.TriggerCondition{
				{Field: "status", Op: models.OpEquals, Value: "failed"},
				{Field: "priority", Op: models.OpGreaterThan, Value: "5"},
			},
			mode: models.ConditionAny,
			want: true,
		},
		{
			name: "any with none passing",
			conds: []models.TriggerCondition{
				{Field: "status", Op: models.OpEquals, Value: "failed"},
				{Field: "priority", Op: models.OpGreaterThan, Value: "100"},
			},
			mode: models.ConditionAny,
			want: false,
		},
		{
			name:  "blank mode means all",
			conds: []models.TriggerCondition{{Field: "status", Op: models.OpEquals, Value: "failed"}},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvalConditions(tt.conds, tt.mode, ctx); got != tt.want {
				t.Errorf("EvalConditions() = %v, want %v", got, tt.want)
			}
		})
	}
}
