// Package state provides the SQLite-backed task repository: hierarchical
// task storage, dependency edges, the append-only event log, and the
// timed/hook agent registry. It is the only component permitted to write
// the task graph.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps an SQLite database connection with repository operations.
// A single RWMutex serializes writes while allowing concurrent reads,
// matching SQLite's single-writer model.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// GlobalDBPath returns the path to the global Vespera database.
func GlobalDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "vespera", "vespera.db")
}

// ProjectDBPath returns the path to the project-local database.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".vespera", "state.db")
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// OpenProject opens the project-local database.
func OpenProject(projectRoot string) (*DB, error) {
	return Open(ProjectDBPath(projectRoot))
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Tasks},
		{2, migrationV2Dependencies},
		{3, migrationV3EventsAttributes},
		{4, migrationV4Agents},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements

const migrationV1Tasks = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	parent_id TEXT,
	title TEXT NOT NULL,
	description TEXT,
	task_type TEXT NOT NULL DEFAULT 'standard',
	specialist_type TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	lifecycle_stage TEXT NOT NULL DEFAULT 'created',
	hierarchy_path TEXT NOT NULL,
	hierarchy_level INTEGER NOT NULL DEFAULT 0,
	position_in_parent INTEGER NOT NULL DEFAULT 0,
	progress_percentage INTEGER NOT NULL DEFAULT 0,
	result TEXT,
	error TEXT,
	context TEXT,
	configuration TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	started_at DATETIME,
	completed_at DATETIME,
	due_at DATETIME,
	deleted_at DATETIME,
	is_deleted INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_tasks_parent_id ON tasks(parent_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_hierarchy_path ON tasks(hierarchy_path);
`

const migrationV2Dependencies = `
CREATE TABLE IF NOT EXISTS task_dependencies (
	id TEXT PRIMARY KEY,
	dependent_task_id TEXT NOT NULL,
	prerequisite_task_id TEXT NOT NULL,
	dependency_type TEXT NOT NULL DEFAULT 'completion',
	status TEXT NOT NULL DEFAULT 'pending',
	is_mandatory INTEGER NOT NULL DEFAULT 1,
	auto_satisfy INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	UNIQUE(dependent_task_id, prerequisite_task_id)
);

CREATE INDEX IF NOT EXISTS idx_deps_dependent ON task_dependencies(dependent_task_id);
CREATE INDEX IF NOT EXISTS idx_deps_prerequisite ON task_dependencies(prerequisite_task_id);
`

const migrationV3EventsAttributes = `
CREATE TABLE IF NOT EXISTS task_events (
	event_id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	event_category TEXT NOT NULL,
	triggered_by TEXT,
	data TEXT,
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_task_id ON task_events(task_id);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON task_events(timestamp);

CREATE TABLE IF NOT EXISTS task_attributes (
	task_id TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	value TEXT,
	indexed INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (task_id, name)
);

CREATE INDEX IF NOT EXISTS idx_attributes_name_value ON task_attributes(name, value);

CREATE TABLE IF NOT EXISTS task_artifacts (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	name TEXT NOT NULL,
	kind TEXT,
	reference TEXT NOT NULL,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_task_id ON task_artifacts(task_id);
`

const migrationV4Agents = `
CREATE TABLE IF NOT EXISTS timed_agents (
	agent_id TEXT PRIMARY KEY,
	template_id TEXT NOT NULL,
	schedule_type TEXT NOT NULL,
	schedule_config TEXT NOT NULL,
	context TEXT,
	last_execution DATETIME,
	next_execution DATETIME,
	execution_count INTEGER NOT NULL DEFAULT 0,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS hook_agents (
	hook_id TEXT PRIMARY KEY,
	template_id TEXT NOT NULL,
	event_name TEXT NOT NULL,
	conditions TEXT,
	condition_mode TEXT,
	context TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hooks_event_name ON hook_agents(event_name);
`

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// Transaction runs the given function within a transaction. Hierarchy and
// dependency mutations go through here so the two graphs cannot diverge.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// formatNullableTime formats an optional time for SQLite storage.
func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}
