package models

import (
	"fmt"
	"regexp"
	"strings"
)

// SpecialistType identifies the role a task is bound to for execution
// guidance. The built-in roles cover the common breakdown shapes; anything
// else is a custom role string validated against a charset and length rule,
// so downstream code can still switch exhaustively over the built-ins.
type SpecialistType string

const (
	// SpecialistArchitect designs structure and breaks down work.
	SpecialistArchitect SpecialistType = "architect"
	// SpecialistImplementer writes the code or produces the artifact.
	SpecialistImplementer SpecialistType = "implementer"
	// SpecialistResearcher investigates and reports findings.
	SpecialistResearcher SpecialistType = "researcher"
	// SpecialistTester verifies behavior against acceptance criteria.
	SpecialistTester SpecialistType = "tester"
	// SpecialistDocumenter writes documentation.
	SpecialistDocumenter SpecialistType = "documenter"
	// SpecialistReviewer reviews completed work.
	SpecialistReviewer SpecialistType = "reviewer"
	// SpecialistDebugger diagnoses and fixes failures.
	SpecialistDebugger SpecialistType = "debugger"
	// SpecialistCoordinator synthesizes results across subtasks.
	SpecialistCoordinator SpecialistType = "coordinator"
)

// customSpecialistPattern constrains custom role names: lowercase start,
// then lowercase letters, digits, or underscores, 2-50 chars total.
var customSpecialistPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,49}$`)

// BuiltinSpecialists returns the closed set of built-in specialist types.
func BuiltinSpecialists() []SpecialistType {
	return []SpecialistType{
		SpecialistArchitect, SpecialistImplementer, SpecialistResearcher,
		SpecialistTester, SpecialistDocumenter, SpecialistReviewer,
		SpecialistDebugger, SpecialistCoordinator,
	}
}

// IsBuiltin returns true if the type is one of the built-in roles.
func (s SpecialistType) IsBuiltin() bool {
	switch s {
	case SpecialistArchitect, SpecialistImplementer, SpecialistResearcher,
		SpecialistTester, SpecialistDocumenter, SpecialistReviewer,
		SpecialistDebugger, SpecialistCoordinator:
		return true
	default:
		return false
	}
}

// Valid returns true if the type is a built-in role or a well-formed
// custom role name.
func (s SpecialistType) Valid() bool {
	if s.IsBuiltin() {
		return true
	}
	return customSpecialistPattern.MatchString(string(s))
}

// String returns the role name.
func (s SpecialistType) String() string {
	return string(s)
}

// ParseSpecialistType normalizes and validates a specialist type string.
// Built-in names map to their constants; anything else must match the
// custom role pattern.
func ParseSpecialistType(raw string) (SpecialistType, error) {
	s := SpecialistType(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return "", fmt.Errorf("specialist type is empty")
	}
	if !s.Valid() {
		return "", fmt.Errorf("invalid specialist type %q: must be a built-in role or match %s", raw, customSpecialistPattern)
	}
	return s, nil
}
