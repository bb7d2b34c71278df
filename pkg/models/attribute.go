package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// AttributeType is the declared value type of a task attribute.
type AttributeType string

const (
	AttributeString  AttributeType = "string"
	AttributeNumber  AttributeType = "number"
	AttributeBoolean AttributeType = "boolean"
	AttributeDate    AttributeType = "date"
	AttributeJSON    AttributeType = "json"
)

// Valid returns true if the attribute type is a known value.
func (a AttributeType) Valid() bool {
	switch a {
	case AttributeString, AttributeNumber, AttributeBoolean, AttributeDate, AttributeJSON:
		return true
	default:
		return false
	}
}

// TaskAttribute is a typed key/value pair owned by a task. Values are
// stored as strings and converted through the type-aware getters so a
// value written with one of the setters reads back identically.
type TaskAttribute struct {
	// TaskID is the owning task.
	TaskID string `json:"task_id"`
	// Name is the attribute key, unique per task.
	Name string `json:"name"`
	// Type declares how Value should be interpreted.
	Type AttributeType `json:"type"`
	// Value is the serialized attribute value.
	Value string `json:"value"`
	// Indexed marks the attribute for indexed lookup.
	Indexed bool `json:"indexed"`
}

// NewStringAttribute builds a string attribute.
func NewStringAttribute(taskID, name, value string) TaskAttribute {
	return TaskAttribute{TaskID: taskID, Name: name, Type: AttributeString, Value: value}
}

// NewNumberAttribute builds a number attribute.
func NewNumberAttribute(taskID, name string, value float64) TaskAttribute {
	return TaskAttribute{TaskID: taskID, Name: name, Type: AttributeNumber, Value: strconv.FormatFloat(value, 'g', -1, 64)}
}

// NewBooleanAttribute builds a boolean attribute.
func NewBooleanAttribute(taskID, name string, value bool) TaskAttribute {
	return TaskAttribute{TaskID: taskID, Name: name, Type: AttributeBoolean, Value: strconv.FormatBool(value)}
}

// NewDateAttribute builds a date attribute stored as RFC 3339.
func NewDateAttribute(taskID, name string, value time.Time) TaskAttribute {
	return TaskAttribute{TaskID: taskID, Name: name, Type: AttributeDate, Value: value.UTC().Format(time.RFC3339)}
}

// NewJSONAttribute builds a JSON attribute from any marshalable value.
func NewJSONAttribute(taskID, name string, value any) (TaskAttribute, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return TaskAttribute{}, fmt.Errorf("marshal attribute %s: %w", name, err)
	}
	return TaskAttribute{TaskID: taskID, Name: name, Type: AttributeJSON, Value: string(data)}, nil
}

// AsString returns the value for string attributes.
func (a TaskAttribute) AsString() (string, error) {
	if a.Type != AttributeString {
		return "", fmt.Errorf("attribute %s is %s, not string", a.Name, a.Type)
	}
	return a.Value, nil
}

// AsNumber returns the value for number attributes.
func (a TaskAttribute) AsNumber() (float64, error) {
	if a.Type != AttributeNumber {
		return 0, fmt.Errorf("attribute %s is %s, not number", a.Name, a.Type)
	}
	v, err := strconv.ParseFloat(a.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number attribute %s: %w", a.Name, err)
	}
	return v, nil
}

// AsBoolean returns the value for boolean attributes.
func (a TaskAttribute) AsBoolean() (bool, error) {
	if a.Type != AttributeBoolean {
		return false, fmt.Errorf("attribute %s is %s, not boolean", a.Name, a.Type)
	}
	v, err := strconv.ParseBool(a.Value)
	if err != nil {
		return false, fmt.Errorf("parse boolean attribute %s: %w", a.Name, err)
	}
	return v, nil
}

// AsDate returns the value for date attributes.
func (a TaskAttribute) AsDate() (time.Time, error) {
	if a.Type != AttributeDate {
		return time.Time{}, fmt.Errorf("attribute %s is %s, not date", a.Name, a.Type)
	}
	v, err := time.Parse(time.RFC3339, a.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date attribute %s: %w", a.Name, err)
	}
	return v, nil
}

// AsJSON unmarshals the value for JSON attributes into out.
func (a TaskAttribute) AsJSON(out any) error {
	if a.Type != AttributeJSON {
		return fmt.Errorf("attribute %s is %s, not json", a.Name, a.Type)
	}
	if err := json.Unmarshal([]byte(a.Value), out); err != nil {
		return fmt.Errorf("unmarshal json attribute %s: %w", a.Name, err)
	}
	return nil
}
