package models

import (
	"testing"
	"time"
)

// TestAttributeRoundTrip covers one attribute of each typed kind: writing
// through the constructor and reading through the type-aware getter must
// yield the same value.
func TestAttributeRoundTrip(t *testing.T) {
	str := NewStringAttribute("t1", "notes", "hello world")
	if v, err := str.AsString(); err != nil || v != "hello world" {
		t.Errorf("string round trip: v=%q err=%v", v, err)
	}

	num := NewNumberAttribute("t1", "score", 42.5)
	if v, err := num.AsNumber(); err != nil || v != 42.5 {
		t.Errorf("number round trip: v=%v err=%v", v, err)
	}

	boolean := NewBooleanAttribute("t1", "urgent", true)
	if v, err := boolean.AsBoolean(); err != nil || !v {
		t.Errorf("boolean round trip: v=%v err=%v", v, err)
	}

	when := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	date := NewDateAttribute("t1", "deadline", when)
	if v, err := date.AsDate(); err != nil || !v.Equal(when) {
		t.Errorf("date round trip: v=%v err=%v", v, err)
	}

	payload := map[string]int{"a": 1, "b": 2}
	jsonAttr, err := NewJSONAttribute("t1", "counts", payload)
	if err != nil {
		t.Fatalf("NewJSONAttribute failed: %v", err)
	}
	var got map[string]int
	if err := jsonAttr.AsJSON(&got); err != nil {
		t.Fatalf("AsJSON failed: %v", err)
	}
	if got["a"] != 1 || got["b"] != 2 {
		t.Errorf("json round trip: got %v", got)
	}
}

func TestAttributeTypeMismatch(t *testing.T) {
	num := NewNumberAttribute("t1", "score", 3)
	if _, err := num.AsString(); err == nil {
		t.Error("AsString on number attribute should fail")
	}
	if _, err := num.AsDate(); err == nil {
		t.Error("AsDate on number attribute should fail")
	}

	str := NewStringAttribute("t1", "notes", "not a number")
	if _, err := str.AsNumber(); err == nil {
		t.Error("AsNumber on string attribute should fail")
	}
}
