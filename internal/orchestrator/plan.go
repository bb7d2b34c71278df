package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// subtaskSpec is the JSON shape of one subtask in a plan request.
type subtaskSpec struct {
	ID             string   `json:"id,omitempty"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	TaskType       string   `json:"task_type,omitempty"`
	SpecialistType string   `json:"specialist_type,omitempty"`
	DependsOn      []string `json:"depends_on,omitempty"`
}

// PlanError is a validation failure in a subtask spec document. It is
// never retried; the caller must fix the input.
type PlanError struct {
	// Detail describes what was wrong with the specs.
	Detail string
}

// Error implements the error interface.
func (e *PlanError) Error() string {
	return "invalid subtask specs: " + e.Detail
}

// ParseSubtaskSpecs extracts and validates the subtask spec array from a
// plan request. The document may be a bare JSON array or an array
// embedded in surrounding text (AI clients wrap output in prose or code
// fences more often than not).
func ParseSubtaskSpecs(raw string) ([]subtaskSpec, error) {
	jsonStart := strings.Index(raw, "[")
	jsonEnd := strings.LastIndex(raw, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return nil, &PlanError{Detail: fmt.Sprintf("no JSON array found in %d chars of input", len(raw))}
	}

	var specs []subtaskSpec
	if err := json.Unmarshal([]byte(raw[jsonStart:jsonEnd+1]), &specs); err != nil {
		return nil, &PlanError{Detail: fmt.Sprintf("unmarshal: %v", err)}
	}
	if len(specs) == 0 {
		return nil, &PlanError{Detail: "empty subtask list"}
	}

	titles := make(map[string]bool, len(specs))
	for i := range specs {
		spec := &specs[i]
		if strings.TrimSpace(spec.Title) == "" {
			return nil, &PlanError{Detail: fmt.Sprintf("subtask %d has no title", i)}
		}
		if titles[spec.Title] {
			return nil, &PlanError{Detail: fmt.Sprintf("duplicate subtask title %q", spec.Title)}
		}
		titles[spec.Title] = true

		// Deterministic ids when supplied, generated otherwise.
		if spec.ID == "" {
			spec.ID = uuid.New().String()
		}
		if spec.TaskType == "" {
			spec.TaskType = string(models.TaskTypeStandard)
		}
		if !models.TaskType(spec.TaskType).Valid() {
			return nil, &PlanError{Detail: fmt.Sprintf("subtask %q has unknown task_type %q", spec.Title, spec.TaskType)}
		}
		if spec.SpecialistType != "" {
			parsed, err := models.ParseSpecialistType(spec.SpecialistType)
			if err != nil {
				return nil, &PlanError{Detail: fmt.Sprintf("subtask %q: %v", spec.Title, err)}
			}
			spec.SpecialistType = string(parsed)
		}
	}

	for _, spec := range specs {
		for _, dep := range spec.DependsOn {
			if !titles[dep] {
				return nil, &PlanError{Detail: fmt.Sprintf("subtask %q depends on unknown sibling %q", spec.Title, dep)}
			}
			if dep == spec.Title {
				return nil, &PlanError{Detail: fmt.Sprintf("subtask %q depends on itself", spec.Title)}
			}
		}
	}

	if err := validateNoSpecCycles(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// validateNoSpecCycles rejects circular depends_on chains among sibling
// specs before anything touches the repository.
func validateNoSpecCycles(specs []subtaskSpec) error {
	deps := make(map[string][]string, len(specs))
	for _, spec := range specs {
		deps[spec.Title] = spec.DependsOn
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	mark := make(map[string]int, len(specs))

	var visit func(title string, path []string) error
	visit = func(title string, path []string) error {
		switch mark[title] {
		case done:
			return nil
		case visiting:
			return &PlanError{Detail: fmt.Sprintf("circular dependency: %s -> %s", strings.Join(path, " -> "), title)}
		}
		mark[title] = visiting
		for _, dep := range deps[title] {
			if err := visit(dep, append(path, title)); err != nil {
				return err
			}
		}
		mark[title] = done
		return nil
	}

	for _, spec := range specs {
		if err := visit(spec.Title, nil); err != nil {
			return err
		}
	}
	return nil
}
