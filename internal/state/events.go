package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// appendEventTx inserts an event within an open transaction, so that every
// mutation and its audit record commit or roll back together.
func appendEventTx(tx *sql.Tx, event *models.TaskEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_, err := tx.Exec(`
		INSERT INTO task_events (event_id, task_id, event_type, event_category, triggered_by, data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.EventID, event.TaskID, string(event.Type), string(event.Category),
		nullString(event.TriggeredBy), nullString(event.Data), formatTime(event.Timestamp))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// AppendEvent records a standalone event outside any other mutation.
func (db *DB) AppendEvent(event *models.TaskEvent) error {
	if event.TaskID == "" {
		return &ValidationError{Field: "task_id", Message: "must not be empty"}
	}
	err := db.Transaction(func(tx *sql.Tx) error {
		return appendEventTx(tx, event)
	})
	if err != nil {
		return infraErr("AppendEvent", err)
	}
	return nil
}

// ListEvents returns a task's events oldest first. limit bounds the result
// when positive.
func (db *DB) ListEvents(taskID string, limit int) ([]models.TaskEvent, error) {
	query := `SELECT event_id, task_id, event_type, event_category, triggered_by, data, timestamp
		FROM task_events WHERE task_id = ? ORDER BY timestamp, event_id`
	args := []any{taskID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, infraErr("ListEvents", err)
	}
	defer rows.Close()

	var events []models.TaskEvent
	for rows.Next() {
		var e models.TaskEvent
		var triggeredBy, data sql.NullString
		var ts string
		if err := rows.Scan(&e.EventID, &e.TaskID, &e.Type, &e.Category, &triggeredBy, &data, &ts); err != nil {
			return nil, infraErr("ListEvents", err)
		}
		e.TriggeredBy = triggeredBy.String
		e.Data = data.String
		e.Timestamp, _ = parseTime(ts)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr("ListEvents", err)
	}
	return events, nil
}

// PurgeEvents deletes events older than the given age. This is the only
// sanctioned removal path for the otherwise append-only event log.
// Returns the number of events deleted.
func (db *DB) PurgeEvents(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := db.Exec(`DELETE FROM task_events WHERE timestamp < ?`, formatTime(cutoff))
	if err != nil {
		return 0, infraErr("PurgeEvents", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, infraErr("PurgeEvents", err)
	}
	return count, nil
}
