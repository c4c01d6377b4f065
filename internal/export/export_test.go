package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/testweave/internal/index"
	"github.com/dusk-indust/testweave/internal/pipeline"
	"github.com/dusk-indust/testweave/internal/status"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func repairedHistory() []pipeline.Transition {
	return []pipeline.Transition{
		{From: pipeline.PhaseAnalyzing, To: pipeline.PhaseSkeletonGenerated, At: t0},
		{From: pipeline.PhaseSkeletonGenerated, To: pipeline.PhaseMembersGenerated, At: t0},
		{From: pipeline.PhaseMembersGenerated, To: pipeline.PhaseAssembled, At: t0},
		{From: pipeline.PhaseAssembled, To: pipeline.PhasePersisted, At: t0},
		{From: pipeline.PhasePersisted, To: pipeline.PhaseVerifying, At: t0},
		{From: pipeline.PhaseVerifying, To: pipeline.PhaseRepairing, Attempt: 1, At: t0},
		{From: pipeline.PhaseRepairing, To: pipeline.PhaseAssembled, Attempt: 1, At: t0},
		{From: pipeline.PhaseAssembled, To: pipeline.PhasePersisted, Attempt: 1, At: t0},
		{From: pipeline.PhasePersisted, To: pipeline.PhaseVerifying, Attempt: 1, At: t0},
		{From: pipeline.PhaseVerifying, To: pipeline.PhaseVerifiedOK, Attempt: 1, At: t0},
	}
}

// ---------------------------------------------------------------------------
// JSON
// ---------------------------------------------------------------------------

func TestExportRuns(t *testing.T) {
	l, err := status.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.Record(ctx, status.Record{
		RunID: "a", Source: "calc/calc.go", Suite: "calc.CalcSuite", Outcome: "verified-ok",
		Verified: true, Attempts: 1, Started: t0, Finished: t0.Add(1500 * time.Millisecond),
		Transitions: repairedHistory(),
	}))
	require.NoError(t, l.Record(ctx, status.Record{
		RunID: "b", Source: "bad.go", Outcome: status.OutcomeError, Error: "unparsable",
		Started: t0.Add(time.Minute), Finished: t0.Add(time.Minute),
	}))

	report, err := ExportRuns(ctx, l, 0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T10:00:00Z", report.ExportedAt)
	assert.Equal(t, map[string]int{"verified-ok": 1, "error": 1}, report.Summary)
	require.Len(t, report.Runs, 2)

	assert.Equal(t, "b", report.Runs[0].ID)
	assert.Equal(t, "unparsable", report.Runs[0].Error)
	assert.Empty(t, report.Runs[0].Transitions)

	a := report.Runs[1]
	assert.Equal(t, int64(1500), a.DurationMS)
	require.Len(t, a.Transitions, 10)
	assert.Equal(t, TransitionExport{From: "verifying", To: "repairing", Attempt: 1, At: "2026-03-01T09:00:00Z"}, a.Transitions[5])

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, report))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "runs")
	assert.NotContains(t, buf.String(), `"location"`)
}

type brokenLedger struct{}

func (brokenLedger) List(context.Context, int) ([]status.Record, error) {
	return nil, errors.New("disk gone")
}

func (brokenLedger) Get(context.Context, string) (status.Record, error) {
	return status.Record{}, status.ErrNotFound
}

func TestExportRuns_Error(t *testing.T) {
	_, err := ExportRuns(context.Background(), brokenLedger{}, 5, t0)
	assert.ErrorContains(t, err, "disk gone")
}

// ---------------------------------------------------------------------------
// Mermaid
// ---------------------------------------------------------------------------

func TestPhaseDiagram(t *testing.T) {
	got := PhaseDiagram(repairedHistory())
	lines := strings.Split(strings.TrimSpace(got), "\n")

	assert.Equal(t, "stateDiagram-v2", lines[0])
	assert.Equal(t, "  [*] --> Analyzing", lines[1])
	assert.Contains(t, got, "  Analyzing --> SkeletonGenerated\n")
	assert.Contains(t, got, "  Verifying --> Repairing : attempt 1\n")
	assert.Equal(t, "  VerifiedOk --> [*]", lines[len(lines)-1])
}

func TestPhaseDiagram_Partial(t *testing.T) {
	assert.Equal(t, "stateDiagram-v2\n", PhaseDiagram(nil))

	got := PhaseDiagram(repairedHistory()[:3])
	assert.NotContains(t, got, "--> [*]\n")
}

func TestImportDiagram(t *testing.T) {
	snap := index.NewSnapshot("/proj", []index.File{
		{Path: "cmd/app/main.go", Language: index.LangGo, Imports: []string{"example.com/proj/internal/store", "fmt"}},
		{Path: "internal/store/store.go", Language: index.LangGo},
		{Path: "internal/store/cache.go", Language: index.LangGo, Imports: []string{"example.com/proj/internal/store"}},
	}, nil)

	got := ImportDiagram(snap)
	assert.True(t, strings.HasPrefix(got, "graph TD\n"))
	assert.Contains(t, got, `subgraph N0["cmd/app"]`)
	assert.Contains(t, got, `["cache.go"]`)
	assert.Equal(t, 1, strings.Count(got, "-->"), "self imports and stdlib are dropped")
}
