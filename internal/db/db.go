// Package db provides the SQLite connection and schema shared by the
// sandbox backend and the reconciliation history.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Resource state - generic JSON state store keyed by (kind, id)
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS resource_state (
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			payload TEXT NOT NULL,
			version INTEGER DEFAULT 1,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (kind, id)
		);
		CREATE INDEX IF NOT EXISTS idx_resource_state_kind ON resource_state(kind);
	`)
	if err != nil {
		return fmt.Errorf("failed to create resource_state table: %w", err)
	}

	// Reconcile runs - one row per invocation
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reconcile_runs (
			run_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			dry_run INTEGER NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			incomplete INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL,
			changed INTEGER NOT NULL,
			failed INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON reconcile_runs(started_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create reconcile_runs table: %w", err)
	}

	// Reconcile changes - per-change outcomes, removed with their run
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reconcile_changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES reconcile_runs(run_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			resource_key TEXT NOT NULL,
			change_type TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			description TEXT,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_changes_run ON reconcile_changes(run_id, seq);
	`)
	if err != nil {
		return fmt.Errorf("failed to create reconcile_changes table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
