package state

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// SetAttribute upserts a typed attribute on a task.
func (db *DB) SetAttribute(attr models.TaskAttribute) error {
	if attr.TaskID == "" || attr.Name == "" {
		return &ValidationError{Field: "attribute", Message: "task_id and name are required"}
	}
	if !attr.Type.Valid() {
		return &ValidationError{Field: "type", Message: "unknown attribute type " + string(attr.Type)}
	}
	_, err := db.Exec(`
		INSERT INTO task_attributes (task_id, name, type, value, indexed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(task_id, name) DO UPDATE SET type = excluded.type,
			value = excluded.value, indexed = excluded.indexed
	`, attr.TaskID, attr.Name, string(attr.Type), attr.Value, boolInt(attr.Indexed))
	if err != nil {
		return infraErr("SetAttribute", err)
	}
	return nil
}

// GetAttributes returns all attributes of a task.
func (db *DB) GetAttributes(taskID string) ([]models.TaskAttribute, error) {
	rows, err := db.Query(`
		SELECT task_id, name, type, value, indexed FROM task_attributes
		WHERE task_id = ? ORDER BY name
	`, taskID)
	if err != nil {
		return nil, infraErr("GetAttributes", err)
	}
	defer rows.Close()
	return collectAttributes(rows)
}

// SearchByAttribute returns attributes across tasks matching a name/value
// pair. When indexedOnly is set, only attributes flagged as indexed are
// considered.
func (db *DB) SearchByAttribute(name, value string, indexedOnly bool) ([]models.TaskAttribute, error) {
	query := `SELECT task_id, name, type, value, indexed FROM task_attributes
		WHERE name = ? AND value = ?`
	args := []any{name, value}
	if indexedOnly {
		query += ` AND indexed = 1`
	}
	query += ` ORDER BY task_id`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, infraErr("SearchByAttribute", err)
	}
	defer rows.Close()
	return collectAttributes(rows)
}

func collectAttributes(rows *sql.Rows) ([]models.TaskAttribute, error) {
	var attrs []models.TaskAttribute
	for rows.Next() {
		var a models.TaskAttribute
		var indexed int
		if err := rows.Scan(&a.TaskID, &a.Name, &a.Type, &a.Value, &indexed); err != nil {
			return nil, infraErr("collectAttributes", err)
		}
		a.Indexed = indexed != 0
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("collectAttributes", err)
	}
	return attrs, nil
}

// AddArtifact records an artifact reference on a task and appends an
// artifact_stored event.
func (db *DB) AddArtifact(artifact *models.TaskArtifact) error {
	if artifact.TaskID == "" || artifact.Reference == "" {
		return &ValidationError{Field: "artifact", Message: "task_id and reference are required"}
	}
	if artifact.ID == "" {
		artifact.ID = uuid.New().String()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO task_artifacts (id, task_id, name, kind, reference, size_bytes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, artifact.ID, artifact.TaskID, artifact.Name, nullString(artifact.Kind),
			artifact.Reference, artifact.SizeBytes, formatTime(artifact.CreatedAt))
		if err != nil {
			return infraErr("AddArtifact", err)
		}
		return appendEventTx(tx, &models.TaskEvent{
			TaskID:      artifact.TaskID,
			Type:        models.EventArtifactStored,
			Category:    models.CategoryData,
			TriggeredBy: "repository",
			Timestamp:   artifact.CreatedAt,
		})
	})
}

// ListArtifacts returns a task's artifact references in creation order.
func (db *DB) ListArtifacts(taskID string) ([]models.TaskArtifact, error) {
	rows, err := db.Query(`
		SELECT id, task_id, name, kind, reference, size_bytes, created_at
		FROM task_artifacts WHERE task_id = ? ORDER BY created_at, id
	`, taskID)
	if err != nil {
		return nil, infraErr("ListArtifacts", err)
	}
	defer rows.Close()

	var artifacts []models.TaskArtifact
	for rows.Next() {
		var a models.TaskArtifact
		var kind sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &a.TaskID, &a.Name, &kind, &a.Reference, &a.SizeBytes, &createdAt); err != nil {
			return nil, infraErr("ListArtifacts", err)
		}
		a.Kind = kind.String
		a.CreatedAt, _ = parseTime(createdAt)
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("ListArtifacts", err)
	}
	return artifacts, nil
}
