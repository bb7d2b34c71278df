package orchestrator

import (
	"errors"
	"strings"
	"testing"
)

func TestParseSubtaskSpecs(t *testing.T) {
	raw := `[
		{"title": "Design schema", "task_type": "standard", "specialist_type": "architect"},
		{"title": "Implement API", "task_type": "implementation", "depends_on": ["Design schema"]},
		{"title": "Write tests", "task_type": "testing", "depends_on": ["Implement API"]}
	]`

	specs, err := ParseSubtaskSpecs(raw)
	if err != nil {
		t.Fatalf("ParseSubtaskSpecs failed: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("len(specs) = %d, want 3", len(specs))
	}
	if specs[0].SpecialistType != "architect" {
		t.Errorf("specialist = %q, want architect", specs[0].SpecialistType)
	}
	for i, spec := range specs {
		if spec.ID == "" {
			t.Errorf("spec %d has no generated id", i)
		}
	}
}

func TestParseSubtaskSpecsKeepsSuppliedIDs(t *testing.T) {
	specs, err := ParseSubtaskSpecs(`[{"id": "fixed-id", "title": "One"}]`)
	if err != nil {
		t.Fatalf("ParseSubtaskSpecs failed: %v", err)
	}
	if specs[0].ID != "fixed-id" {
		t.Errorf("id = %q, want fixed-id", specs[0].ID)
	}
}

func TestParseSubtaskSpecsEmbeddedInProse(t *testing.T) {
	raw := "Here is the plan:\n```json\n[{\"title\": \"Only task\"}]\n```\nDone."
	specs, err := ParseSubtaskSpecs(raw)
	if err != nil {
		t.Fatalf("ParseSubtaskSpecs failed: %v", err)
	}
	if len(specs) != 1 || specs[0].Title != "Only task" {
		t.Errorf("specs = %+v", specs)
	}
}

func TestParseSubtaskSpecsRejections(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		detail string
	}{
		{"no array", "just prose", "no JSON array"},
		{"empty array", "[]", "empty subtask list"},
		{"missing title", `[{"description": "no title"}]`, "no title"},
		{"duplicate title", `[{"title": "A"}, {"title": "A"}]`, "duplicate"},
		{"unknown dependency", `[{"title": "A", "depends_on": ["B"]}]`, "unknown sibling"},
		{"self dependency", `[{"title": "A", "depends_on": ["A"]}]`, "depends on itself"},
		{"bad task type", `[{"title": "A", "task_type": "sideways"}]`, "unknown task_type"},
		{"bad specialist", `[{"title": "A", "specialist_type": "NOT VALID!"}]`, "invalid specialist"},
		{"cycle", `[{"title": "A", "depends_on": ["B"]}, {"title": "B", "depends_on": ["A"]}]`, "circular"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSubtaskSpecs(tt.raw)
			var planErr *PlanError
			if !errors.As(err, &planErr) {
				t.Fatalf("got %v, want PlanError", err)
			}
			if !strings.Contains(planErr.Detail, tt.detail) {
				t.Errorf("detail = %q, want substring %q", planErr.Detail, tt.detail)
			}
		})
	}
}
