// SPDX-License-Identifier: MPL-2.0

// Package history keeps a local SQLite log of provisioning runs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"sensorprep/internal/provision"
)

// FileName is the database file inside the state directory.
const FileName = "history.db"

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	started   TEXT NOT NULL,
	finished  TEXT NOT NULL,
	state     TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	error     TEXT NOT NULL DEFAULT '',
	reasons   TEXT NOT NULL DEFAULT '[]',
	rebooted  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS steps (
	run_id      INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	step        TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	warnings    TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (run_id, position)
);`

type (
	// Store is the run history database.
	Store struct {
		db   *sql.DB
		path string
	}

	// Run is one recorded provisioning run.
	Run struct {
		ID       int64
		Started  time.Time
		Finished time.Time
		State    provision.RunState
		ExitCode int
		Error    string
		// Reasons are the reboot reasons of the run.
		Reasons  []string
		Rebooted bool
		// Steps is only populated by Get.
		Steps []Step
	}

	// Step is one recorded step result.
	Step struct {
		Name     provision.StepName
		Outcome  provision.Outcome
		Duration time.Duration
		Error    string
		Warnings []string
	}
)

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps the foreign key pragma in effect.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history tables: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores a run report and returns its id.
func (s *Store) Record(ctx context.Context, r *provision.Report) (id int64, retErr error) {
	reasons, err := json.Marshal(nonNil(r.Reboot.Reasons))
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started, finished, state, exit_code, error, reasons, rebooted) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTime(r.Started), formatTime(r.Finished), string(r.State), int(r.ExitCode()),
		errString(r.Err), string(reasons), r.Reboot.Accepted && r.Err == nil)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, step := range r.Steps {
		warnings, err := json.Marshal(nonNil(step.Warnings))
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO steps (run_id, position, step, outcome, duration_ms, error, warnings) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, string(step.Step), string(step.Outcome), step.Duration.Milliseconds(), errString(step.Err), string(warnings)); err != nil {
			return 0, fmt.Errorf("insert step %s: %w", step.Step, err)
		}
	}
	return id, tx.Commit()
}

// List returns the most recent runs, newest first. limit <= 0 returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started, finished, state, exit_code, error, reasons, rebooted FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

// Get returns one run with its steps.
func (s *Store) Get(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started, finished, state, exit_code, error, reasons, rebooted FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT step, outcome, duration_ms, error, warnings FROM steps WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("select steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			step       Step
			name       string
			outcome    string
			durationMS int64
			warnings   string
		)
		if err := rows.Scan(&name, &outcome, &durationMS, &step.Error, &warnings); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		step.Name = provision.StepName(name)
		step.Outcome = provision.Outcome(outcome)
		step.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(warnings), &step.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
		run.Steps = append(run.Steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run               Run
		started, finished string
		state             string
		reasons           string
	)
	if err := sc.Scan(&run.ID, &started, &finished, &state, &run.ExitCode, &run.Error, &reasons, &run.Rebooted); err != nil {
		return Run{}, err
	}
	var err error
	if run.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("decode started: %w", err)
	}
	if run.Finished, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, fmt.Errorf("decode finished: %w", err)
	}
	run.State = provision.RunState(state)
	if err := json.Unmarshal([]byte(reasons), &run.Reasons); err != nil {
		return Run{}, fmt.Errorf("decode reasons: %w", err)
	}
	return run, nil
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Count returns how many recorded steps ended with outcome.
func (r Run) Count(outcome provision.Outcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == outcome {
			n++
		}
	}
	return n
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
