package models

import "time"

// TaskArtifact is a reference to externally stored task output. The
// orchestration engine never holds artifact content, only enough metadata
// to hand the reference to a specialist or a synthesis pass.
type TaskArtifact struct {
	// ID is the unique identifier for this artifact reference.
	ID string `json:"id"`
	// TaskID is the owning task.
	TaskID string `json:"task_id"`
	// Name is the display name of the artifact.
	Name string `json:"name"`
	// Kind describes the artifact (file, log, report, diff, ...).
	Kind string `json:"kind,omitempty"`
	// Reference locates the artifact in external storage.
	Reference string `json:"reference"`
	// SizeBytes is the reported size, zero when unknown.
	SizeBytes int64 `json:"size_bytes,omitempty"`
	// CreatedAt is when the reference was recorded.
	CreatedAt time.Time `json:"created_at"`
}
