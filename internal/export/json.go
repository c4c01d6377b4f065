// Package export renders run history as JSON reports and Mermaid diagrams.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/testweave/internal/status"
)

// RunReport is the top-level JSON export structure.
type RunReport struct {
	ExportedAt string         `json:"exportedAt"`
	Summary    map[string]int `json:"summary"`
	Runs       []RunExport    `json:"runs"`
}

// RunExport describes one recorded run.
type RunExport struct {
	ID           string             `json:"id"`
	Source       string             `json:"source"`
	Suite        string             `json:"suite,omitempty"`
	Outcome      string             `json:"outcome"`
	Verified     bool               `json:"verified"`
	Attempts     int                `json:"attempts"`
	Scenarios    int                `json:"scenarios"`
	Fragments    int                `json:"fragments"`
	Skipped      int                `json:"skipped,omitempty"`
	Arbitrations int                `json:"arbitrations,omitempty"`
	Location     string             `json:"location,omitempty"`
	Diagnostic   string             `json:"diagnostic,omitempty"`
	Error        string             `json:"error,omitempty"`
	Started      string             `json:"started"`
	DurationMS   int64              `json:"durationMs"`
	Transitions  []TransitionExport `json:"transitions,omitempty"`
}

// TransitionExport is one phase change.
type TransitionExport struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Attempt int    `json:"attempt"`
	At      string `json:"at"`
}

// Ledger is the read side of status.Ledger.
type Ledger interface {
	List(ctx context.Context, limit int) ([]status.Record, error)
	Get(ctx context.Context, runID string) (status.Record, error)
}

var _ Ledger = (*status.Ledger)(nil)

// ExportRuns builds a report of the newest limit runs, transitions included.
func ExportRuns(ctx context.Context, l Ledger, limit int, now time.Time) (*RunReport, error) {
	recs, err := l.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("export: list runs: %w", err)
	}
	report := &RunReport{
		ExportedAt: now.UTC().Format(time.RFC3339),
		Summary:    make(map[string]int),
		Runs:       make([]RunExport, 0, len(recs)),
	}
	for _, rec := range recs {
		full, err := l.Get(ctx, rec.RunID)
		if err != nil {
			return nil, fmt.Errorf("export: run %s: %w", rec.RunID, err)
		}
		report.Summary[full.Outcome]++
		report.Runs = append(report.Runs, FromRecord(full))
	}
	return report, nil
}

// FromRecord converts one ledger record.
func FromRecord(r status.Record) RunExport {
	out := RunExport{
		ID:           r.RunID,
		Source:       r.Source,
		Suite:        r.Suite,
		Outcome:      r.Outcome,
		Verified:     r.Verified,
		Attempts:     r.Attempts,
		Scenarios:    r.Scenarios,
		Fragments:    r.Fragments,
		Skipped:      r.Skipped,
		Arbitrations: r.Arbitrations,
		Location:     r.Location,
		Diagnostic:   r.Diagnostic,
		Error:        r.Error,
		Started:      r.Started.UTC().Format(time.RFC3339),
	}
	if r.Finished.After(r.Started) {
		out.DurationMS = r.Finished.Sub(r.Started).Milliseconds()
	}
	for _, t := range r.Transitions {
		out.Transitions = append(out.Transitions, TransitionExport{
			From:    t.From.String(),
			To:      t.To.String(),
			Attempt: t.Attempt,
			At:      t.At.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	return nil
}
