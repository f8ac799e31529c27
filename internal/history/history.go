// Package history keeps a SQLite ledger of snapdeck runs and the outcome of
// every target they attempted.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/root4loot/snapdeck"
)

// FileName is the database file created inside the history directory.
const FileName = "history.db"

// Outcome statuses.
const (
	StatusCaptured  = "captured"
	StatusFailed    = "failed"
	StatusDuplicate = "duplicate"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// DB is the run ledger.
type DB struct {
	db   *sql.DB
	path string
}

// Run is one recorded batch.
type Run struct {
	ID         int64
	Name       string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Attempted  int
	Succeeded  int
	Failed     int
	Duplicates int
	Pages      int
	Output     string
}

// Target is the recorded outcome of one target of a run.
type Target struct {
	Index  int
	Target string
	URL    string
	Status string
	Error  string
}

// Open opens or creates the ledger in dir.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &DB{db: db, path: path}
	if err := h.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return h, nil
}

// Path returns the database file path.
func (h *DB) Path() string {
	return h.path
}

// Close closes the database.
func (h *DB) Close() error {
	return h.db.Close()
}

func (h *DB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		mode TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		attempted INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		duplicates INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		output TEXT
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		target TEXT NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := h.db.ExecContext(ctx, schema)
	return err
}

// RecordRun stores a finished batch and its outcomes in one transaction and
// returns the new run ID.
func (h *DB) RecordRun(ctx context.Context, name, mode string, summary *snapdeck.Summary) (int64, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (name, mode, started_at, finished_at, attempted, succeeded, failed, duplicates, pages, output)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		name, mode,
		formatTime(summary.StartedAt), formatTime(summary.FinishedAt),
		summary.Attempted, summary.Succeeded, summary.Failed, summary.Duplicates, summary.Pages,
		summary.Output,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO outcomes (run_id, idx, target, url, status, error)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range summary.Outcomes {
		var errText string
		if o.Err != nil {
			errText = o.Err.Error()
		}
		if _, err := stmt.ExecContext(ctx, id, i, o.Target, o.URL, status(o), errText); err != nil {
			return 0, fmt.Errorf("failed to insert outcome for %s: %w", o.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs first. A limit below 1 returns all.
func (h *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
	SELECT id, name, mode, started_at, finished_at, attempted, succeeded, failed, duplicates, pages, COALESCE(output, '')
	FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run.
func (h *DB) GetRun(ctx context.Context, id int64) (Run, error) {
	row := h.db.QueryRowContext(ctx, `
	SELECT id, name, mode, started_at, finished_at, attempted, succeeded, failed, duplicates, pages, COALESCE(output, '')
	FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return run, err
}

// Targets returns the outcomes of a run in input order.
func (h *DB) Targets(ctx context.Context, runID int64) ([]Target, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT idx, target, url, status, COALESCE(error, '')
	FROM outcomes WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var targets []Target
	for rows.Next() {
		var t Target
		if err := rows.Scan(&t.Index, &t.Target, &t.URL, &t.Status, &t.Error); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var started, finished string
	err := s.Scan(&run.ID, &run.Name, &run.Mode, &started, &finished,
		&run.Attempted, &run.Succeeded, &run.Failed, &run.Duplicates, &run.Pages, &run.Output)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return run, nil
}

func status(o snapdeck.Outcome) string {
	switch {
	case o.Err != nil:
		return StatusFailed
	case o.Duplicate:
		return StatusDuplicate
	default:
		return StatusCaptured
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
