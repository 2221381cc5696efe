// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jeranaias/redcell-tui/internal/redteam"
)

// ErrRunNotFound indicates no run exists with the requested ID.
var ErrRunNotFound = errors.New("run not found")

// =============================================================================
// RECORD TYPES
// =============================================================================

// RunRecord is one red-team sweep.
type RunRecord struct {
	ID        int64
	Endpoint  string
	StartedAt time.Time
	// Counts per verdict, denormalized for cheap listing.
	Answered int
	Blocked  int
	Errored  int
}

// ResultRecord is one probe's outcome within a run.
type ResultRecord struct {
	ID       int64
	RunID    int64
	Category string
	Prompt   string
	Verdict  string
	Response string
	// Diagnostic is the rendered diagnostic for blocked/errored probes.
	Diagnostic string
}

// =============================================================================
// STORE
// =============================================================================

// schema is applied on every Open; CREATE IF NOT EXISTS keeps it idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	endpoint   TEXT NOT NULL,
	started_at TEXT NOT NULL,
	answered   INTEGER NOT NULL DEFAULT 0,
	blocked    INTEGER NOT NULL DEFAULT 0,
	errored    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS results (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	category   TEXT NOT NULL,
	prompt     TEXT NOT NULL,
	verdict    TEXT NOT NULL,
	response   TEXT NOT NULL DEFAULT '',
	diagnostic TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
`

// Store is the SQLite-backed result store. Safe for concurrent use; SQLite
// serializes writers internally.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the store location under the redcell config directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".redcell", "redteam.db"), nil
}

// Open opens (creating if needed) the store at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records one completed sweep and its results atomically, returning
// the new run's ID.
func (s *Store) SaveRun(endpoint string, startedAt time.Time, results []redteam.Result) (int64, error) {
	var answered, blocked, errored int
	for _, r := range results {
		switch r.Verdict {
		case redteam.VerdictAnswered:
			answered++
		case redteam.VerdictBlocked:
			blocked++
		default:
			errored++
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO runs (endpoint, started_at, answered, blocked, errored) VALUES (?, ?, ?, ?, ?)`,
		endpoint, startedAt.UTC().Format(time.RFC3339), answered, blocked, errored,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO results (run_id, category, prompt, verdict, response, diagnostic) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		diagnostic := ""
		if r.Verdict != redteam.VerdictAnswered {
			diagnostic = r.Diagnostic.Markdown()
		}
		if _, err := stmt.Exec(runID, r.Prompt.Category, r.Prompt.Text, string(r.Verdict), r.Response, diagnostic); err != nil {
			return 0, fmt.Errorf("insert result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	query := `SELECT id, endpoint, started_at, answered, blocked, errored FROM runs ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started string
		if err := rows.Scan(&r.ID, &r.Endpoint, &started, &r.Answered, &r.Blocked, &r.Errored); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunResults returns the probe outcomes of one run in insertion order.
func (s *Store) RunResults(runID int64) ([]ResultRecord, error) {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, category, prompt, verdict, response, diagnostic FROM results WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []ResultRecord
	for rows.Next() {
		var r ResultRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.Category, &r.Prompt, &r.Verdict, &r.Response, &r.Diagnostic); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteRun removes a run and, through the cascade, its results.
func (s *Store) DeleteRun(runID int64) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
	}
	return nil
}
