//go:build e2e

// Package e2e drives a full generation run against a real go toolchain: a
// scripted A2A agent supplies the members behind a failing first provider,
// the suite is written to a temporary module, fails once, is repaired and
// verified with go test.
package e2e

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/testweave/internal/a2a"
	"github.com/dusk-indust/testweave/internal/agent"
	"github.com/dusk-indust/testweave/internal/analyzer"
	"github.com/dusk-indust/testweave/internal/export"
	"github.com/dusk-indust/testweave/internal/pipeline"
	"github.com/dusk-indust/testweave/internal/provider"
	"github.com/dusk-indust/testweave/internal/status"
)

const goMod = `module example.com/calc

go 1.25

require github.com/stretchr/testify v1.11.1
`

const calcSource = `package calc

// Calculator adds numbers.
type Calculator struct{}

// Add returns a+b.
func (c *Calculator) Add(a, b int) int { return a + b }
`

// wrongMember compiles but asserts the wrong sum.
const wrongMember = "<response><status>DONE</status><code>\n" +
	"func (s *CalculatorSuite) TestAddSumsOperands() {\n" +
	"\ts.Equal(6, (&Calculator{}).Add(2, 3))\n" +
	"}\n</code></response>"

const repairedSuite = `<response><status>DONE</status><code>
package calc

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type CalculatorSuite struct {
	suite.Suite
}

func TestCalculatorSuite(t *testing.T) {
	suite.Run(t, new(CalculatorSuite))
}

func (s *CalculatorSuite) TestAddSumsOperands() {
	s.Equal(5, (&Calculator{}).Add(2, 3))
}
</code></response>`

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte(goMod), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "calc.go"), []byte(calcSource), 0o644))
	return root
}

// startAgent serves a scripted A2A agent answering every message with text.
func startAgent(t *testing.T, text string) string {
	t.Helper()
	ag := a2a.NewAgent(func(_ context.Context, _ a2a.Message) ([]a2a.Artifact, error) {
		return []a2a.Artifact{a2a.NewArtifact("member", a2a.TextPart(text))}, nil
	})
	srv := httptest.NewServer(a2a.NewServer(agent.Card("e2e"), ag).HTTPHandler())
	t.Cleanup(srv.Close)
	return srv.URL
}

// TestPipeline_E2E_RepairToGreen generates a suite whose first verification
// fails, repairs it with a whole-file replacement and verifies it with go test.
func TestPipeline_E2E_RepairToGreen(t *testing.T) {
	root := newProject(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	offline := provider.Func(func(context.Context, string, string) (string, error) {
		return "", errors.New("connection refused")
	})
	chain, err := provider.NewChain([]provider.Named{
		{Name: "offline", Provider: offline},
		{Name: "remote", Provider: provider.NewA2A(startAgent(t, wrongMember), nil)},
	})
	require.NoError(t, err)

	repair := provider.Func(func(context.Context, string, string) (string, error) {
		return repairedSuite, nil
	})
	reg := agent.NewRegistry(chain, agent.WithRoleProvider(agent.RoleRepair, repair))

	metrics := pipeline.NewMetrics()
	p, err := pipeline.New(pipeline.Config{Root: root, MaxRepairs: 2}, pipeline.Deps{
		Analyzer: analyzer.NewGoAnalyzer(root),
		Agents:   reg,
		Writer:   pipeline.FileWriter{},
		Harness: &pipeline.GoTestHarness{
			Timeout: 3 * time.Minute,
			Env:     []string{"GOFLAGS=-mod=mod"},
		},
	}, pipeline.WithMetrics(metrics))
	require.NoError(t, err)

	res, err := p.Run(ctx, "calc.go", calcSource)
	require.NoError(t, err)

	assert.True(t, res.Verified, "diagnostic:\n%s", res.Diagnostic)
	assert.Equal(t, pipeline.PhaseVerifiedOK, res.Phase)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.Diagnostic)
	assert.Greater(t, chain.Stats().Fallbacks, int64(0))

	written, err := os.ReadFile(filepath.Join(root, "calculator_suite_test.go"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "s.Equal(5, (&Calculator{}).Add(2, 3))")

	ledger, err := status.Open(filepath.Join(root, ".testweave", "runs.db"))
	require.NoError(t, err)
	defer ledger.Close()
	require.NoError(t, ledger.Record(ctx, status.FromResult(res, nil)))

	rec, err := ledger.Get(ctx, res.RunID)
	require.NoError(t, err)
	diagram := export.PhaseDiagram(rec.Transitions)
	assert.Contains(t, diagram, "Verifying --> Repairing : attempt 1")
	assert.True(t, strings.HasSuffix(diagram, "VerifiedOk --> [*]\n"))
}

// TestPipeline_E2E_RetriesExhausted never receives a passing suite and stops
// after the configured number of repairs.
func TestPipeline_E2E_RetriesExhausted(t *testing.T) {
	root := newProject(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	remote := provider.NewA2A(startAgent(t, wrongMember), nil)
	reg := agent.NewRegistry(remote, agent.WithRoleProvider(agent.RoleRepair, provider.Func(
		func(context.Context, string, string) (string, error) {
			return wrongMember, nil
		})))

	p, err := pipeline.New(pipeline.Config{Root: root, MaxRepairs: 1}, pipeline.Deps{
		Analyzer: analyzer.NewGoAnalyzer(root),
		Agents:   reg,
		Writer:   pipeline.FileWriter{},
		Harness:  &pipeline.GoTestHarness{Timeout: 3 * time.Minute, Env: []string{"GOFLAGS=-mod=mod"}},
	})
	require.NoError(t, err)

	res, err := p.Run(ctx, "calc.go", calcSource)
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, pipeline.PhaseMaxRetriesExhausted, res.Phase)
	assert.Equal(t, 1, res.Attempts)
}
