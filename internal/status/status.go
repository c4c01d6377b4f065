// Package status keeps a ledger of generation runs in SQLite.
package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dusk-indust/testweave/internal/pipeline"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("status: run not found")

// OutcomeError labels runs that ended with an error instead of a terminal
// phase.
const OutcomeError = "error"

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	suite        TEXT,
	outcome      TEXT NOT NULL,
	verified     INTEGER NOT NULL DEFAULT 0,
	attempts     INTEGER NOT NULL DEFAULT 0,
	scenarios    INTEGER NOT NULL DEFAULT 0,
	fragments    INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	arbitrations INTEGER NOT NULL DEFAULT 0,
	location     TEXT,
	diagnostic   TEXT,
	error        TEXT,
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started ON runs(started_at);
CREATE TABLE IF NOT EXISTS transitions (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	from_phase TEXT NOT NULL,
	to_phase   TEXT NOT NULL,
	attempt    INTEGER NOT NULL,
	at         TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// Record is one ledger row.
type Record struct {
	RunID        string
	Source       string
	Suite        string // qualified suite name
	Outcome      string // terminal phase, or OutcomeError
	Verified     bool
	Attempts     int
	Scenarios    int
	Fragments    int
	Skipped      int
	Arbitrations int
	Location     string
	Diagnostic   string
	Error        string
	Started      time.Time
	Finished     time.Time
	Transitions  []pipeline.Transition
}

// FromResult builds a record from a pipeline run and the error Run returned.
func FromResult(res *pipeline.Result, runErr error) Record {
	r := Record{
		RunID:        res.RunID,
		Source:       res.Path,
		Outcome:      res.Phase.String(),
		Verified:     res.Verified,
		Attempts:     res.Attempts,
		Scenarios:    res.Scenarios,
		Fragments:    res.Fragments,
		Skipped:      res.Skipped,
		Arbitrations: res.Arbitrations,
		Location:     res.Location,
		Diagnostic:   res.Diagnostic,
		Started:      res.Started,
		Finished:     res.Finished,
		Transitions:  append([]pipeline.Transition(nil), res.History...),
	}
	if res.Artifact.TypeName != "" {
		r.Suite = res.Artifact.QualifiedName()
	}
	if runErr != nil {
		r.Outcome = OutcomeError
		r.Error = runErr.Error()
	}
	return r
}

// Ledger stores run records.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path, creating its directory.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("status: create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("status: open sqlite: %w", err)
	}
	// One writer; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("status: ping sqlite: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	if _, err := l.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("status: enable foreign keys: %w", err)
	}
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("status: create schema: %w", err)
	}
	var v int
	err := l.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := l.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("status: set schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("status: read schema version: %w", err)
	case v != schemaVersion:
		return fmt.Errorf("status: unknown schema version %d", v)
	}
	return nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores r, replacing any earlier record with the same run ID.
func (l *Ledger) Record(ctx context.Context, r Record) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("status: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM transitions WHERE run_id = ?", r.RunID); err != nil {
		return fmt.Errorf("status: clear transitions: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(id, source, suite, outcome, verified, attempts, scenarios, fragments, skipped,
		 arbitrations, location, diagnostic, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Source, r.Suite, r.Outcome, r.Verified, r.Attempts, r.Scenarios, r.Fragments,
		r.Skipped, r.Arbitrations, r.Location, r.Diagnostic, r.Error,
		formatTime(r.Started), formatTime(r.Finished))
	if err != nil {
		return fmt.Errorf("status: insert run %s: %w", r.RunID, err)
	}
	for i, tr := range r.Transitions {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO transitions (run_id, seq, from_phase, to_phase, attempt, at) VALUES (?, ?, ?, ?, ?, ?)",
			r.RunID, i, tr.From.String(), tr.To.String(), tr.Attempt, formatTime(tr.At))
		if err != nil {
			return fmt.Errorf("status: insert transition %d of %s: %w", i, r.RunID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("status: commit: %w", err)
	}
	return nil
}

const runColumns = `id, source, suite, outcome, verified, attempts, scenarios, fragments, skipped,
	arbitrations, location, diagnostic, error, started_at, finished_at`

// List returns up to limit records, newest first. A non-positive limit
// returns every record. Transitions are not loaded.
func (l *Ledger) List(ctx context.Context, limit int) ([]Record, error) {
	q := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("status: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns the record of one run with its transitions.
func (l *Ledger) Get(ctx context.Context, runID string) (Record, error) {
	row := l.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return Record{}, err
	}

	rows, err := l.db.QueryContext(ctx,
		"SELECT from_phase, to_phase, attempt, at FROM transitions WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return Record{}, fmt.Errorf("status: transitions of %s: %w", runID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var from, to, at string
		var tr pipeline.Transition
		if err := rows.Scan(&from, &to, &tr.Attempt, &at); err != nil {
			return Record{}, fmt.Errorf("status: scan transition: %w", err)
		}
		var ok bool
		if tr.From, ok = pipeline.ParsePhase(from); !ok {
			return Record{}, fmt.Errorf("status: unknown phase %q", from)
		}
		if tr.To, ok = pipeline.ParsePhase(to); !ok {
			return Record{}, fmt.Errorf("status: unknown phase %q", to)
		}
		tr.At = parseTime(at)
		r.Transitions = append(r.Transitions, tr)
	}
	return r, rows.Err()
}

// Summary counts records by outcome.
func (l *Ledger) Summary(ctx context.Context) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM runs GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("status: summary: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("status: scan summary: %w", err)
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Record, error) {
	var r Record
	var suite, location, diagnostic, errText sql.NullString
	var started, finished string
	err := s.Scan(&r.RunID, &r.Source, &suite, &r.Outcome, &r.Verified, &r.Attempts, &r.Scenarios,
		&r.Fragments, &r.Skipped, &r.Arbitrations, &location, &diagnostic, &errText, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, err
	}
	if err != nil {
		return Record{}, fmt.Errorf("status: scan run: %w", err)
	}
	r.Suite = nullStr(suite)
	r.Location = nullStr(location)
	r.Diagnostic = nullStr(diagnostic)
	r.Error = nullStr(errText)
	r.Started = parseTime(started)
	r.Finished = parseTime(finished)
	return r, nil
}

func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
