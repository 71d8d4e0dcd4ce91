// Package ledger keeps an append-only history of reconciliation runs and
// the outcome of every change they computed.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dokzlo13/streamctl/internal/controller"
)

// ErrRunNotFound is returned when a run ID is not in the history.
var ErrRunNotFound = errors.New("run not found")

// Run summarizes one reconciliation invocation.
type Run struct {
	RunID      string    `yaml:"runId"`
	Mode       string    `yaml:"mode"`
	DryRun     bool      `yaml:"dryRun"`
	StartedAt  time.Time `yaml:"startedAt"`
	FinishedAt time.Time `yaml:"finishedAt"`
	Incomplete bool      `yaml:"incomplete,omitempty"`
	Total      int       `yaml:"total"`
	Changed    int       `yaml:"changed"`
	Failed     int       `yaml:"failed"`
}

// Change is the recorded outcome of one change of a run.
type Change struct {
	RunID       string `yaml:"runId"`
	Seq         int    `yaml:"seq"`
	Kind        string `yaml:"kind"`
	Key         string `yaml:"key"`
	Type        string `yaml:"type"`
	Status      string `yaml:"status"`
	Reason      string `yaml:"reason,omitempty"`
	Description string `yaml:"description"`
	Error       string `yaml:"error,omitempty"`
}

// Ledger stores run history in SQLite.
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends a report to the history in a single transaction.
func (l *Ledger) Record(ctx context.Context, report *controller.Report) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reconcile_runs (run_id, mode, dry_run, started_at, finished_at, incomplete, total, changed, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, string(report.Mode), report.DryRun,
		report.StartedAt.UTC().Unix(), report.FinishedAt.UTC().Unix(), report.Incomplete,
		len(report.Outcomes), report.Changed(), report.Failed())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reconcile_changes (run_id, seq, kind, resource_key, change_type, status, reason, description, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare change insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range report.Outcomes {
		var errText sql.NullString
		if o.Err != nil {
			errText = sql.NullString{String: o.Err.Error(), Valid: true}
		}
		_, err := stmt.ExecContext(ctx, report.RunID, i, o.Kind, string(o.Key), string(o.Type),
			string(o.Status), string(o.Reason), o.Description, errText)
		if err != nil {
			return fmt.Errorf("failed to insert change %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Runs returns the most recent runs, newest first.
func (l *Ledger) Runs(limit int) ([]*Run, error) {
	rows, err := l.db.Query(`
		SELECT run_id, mode, dry_run, started_at, finished_at, incomplete, total, changed, failed
		FROM reconcile_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Run returns a single run.
func (l *Ledger) Run(runID string) (*Run, error) {
	row := l.db.QueryRow(`
		SELECT run_id, mode, dry_run, started_at, finished_at, incomplete, total, changed, failed
		FROM reconcile_runs
		WHERE run_id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// Changes returns the recorded changes of a run in computation order.
func (l *Ledger) Changes(runID string) ([]*Change, error) {
	rows, err := l.db.Query(`
		SELECT run_id, seq, kind, resource_key, change_type, status, reason, description, error
		FROM reconcile_changes
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []*Change
	for rows.Next() {
		var c Change
		var reason, description, errText sql.NullString

		err := rows.Scan(&c.RunID, &c.Seq, &c.Kind, &c.Key, &c.Type, &c.Status, &reason, &description, &errText)
		if err != nil {
			return nil, err
		}

		c.Reason = reason.String
		c.Description = description.String
		c.Error = errText.String
		changes = append(changes, &c)
	}
	return changes, rows.Err()
}

// DeleteOlderThan removes runs started before the retention window along
// with their changes.
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := l.db.Exec(`
		DELETE FROM reconcile_runs WHERE started_at < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var startedAt, finishedAt int64

	err := s.Scan(&run.RunID, &run.Mode, &run.DryRun, &startedAt, &finishedAt,
		&run.Incomplete, &run.Total, &run.Changed, &run.Failed)
	if err != nil {
		return nil, err
	}

	run.StartedAt = time.Unix(startedAt, 0).UTC()
	run.FinishedAt = time.Unix(finishedAt, 0).UTC()
	return &run, nil
}
