//go:build cgo

package mcptools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/testweave/internal/agent"
	"github.com/dusk-indust/testweave/internal/analyzer"
	"github.com/dusk-indust/testweave/internal/pipeline"
	"github.com/dusk-indust/testweave/internal/provider"
	"github.com/dusk-indust/testweave/internal/status"
)

const calcSource = `package calc

type Calculator struct{}

func (c *Calculator) Add(a, b int) int { return a + b }
`

// passingHarness accepts every suite.
type passingHarness struct{ names []string }

func (h *passingHarness) Run(_ context.Context, _, name string) (pipeline.Verdict, error) {
	h.names = append(h.names, name)
	return pipeline.Verdict{Passed: true}, nil
}

// scripted answers every role with the same test method.
func scripted(context.Context, string, string) (string, error) {
	return "<code>func (s *CalculatorSuite) TestAdd() {\n\ts.Equal(3, (&Calculator{}).Add(1, 2))\n}</code>", nil
}

// setupServerClient wires an MCP server and client together using in-memory
// transports.
func setupServerClient(t *testing.T, svc *Service) *mcp.ClientSession {
	t.Helper()

	server := NewServer(svc)
	st, ct := mcp.NewInMemoryTransports()
	ctx := context.Background()

	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.NotNil(t, res.StructuredContent)
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestMCPListTools(t *testing.T) {
	session := setupServerClient(t, NewService(t.TempDir()))

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{"generate_suite", "list_runs", "merge_fragments", "sanitize_fragment", "validate_syntax"}, names)
}

func TestMCPValidateSyntax(t *testing.T) {
	session := setupServerClient(t, NewService(t.TempDir()))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "validate_syntax",
		Arguments: ValidateInput{Code: "func (s *X) TestY() {}"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	out := decode[ValidateOutput](t, result)
	assert.True(t, out.Valid)
	assert.Equal(t, "decls", out.Granularity)
}

func TestMCPGenerateSuite(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "calc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "calc", "calculator.go"), []byte(calcSource), 0o644))

	ledger, err := status.Open(filepath.Join(root, ".testweave", "runs.db"))
	require.NoError(t, err)
	defer ledger.Close()

	harness := &passingHarness{}
	factory := func() (*pipeline.Pipeline, error) {
		return pipeline.New(pipeline.Config{Root: root}, pipeline.Deps{
			Analyzer: analyzer.NewGoAnalyzer(root),
			Agents:   agent.NewRegistry(provider.Func(scripted)),
			Writer:   pipeline.FileWriter{},
			Harness:  harness,
		})
	}
	session := setupServerClient(t, NewService(root, WithPipeline(factory), WithLedger(ledger)))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "generate_suite",
		Arguments: GenerateInput{Path: "calc/calculator.go"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	out := decode[GenerateOutput](t, result)
	assert.True(t, out.Verified)
	assert.Equal(t, "verified-ok", out.Phase)
	assert.Equal(t, "calc.CalculatorSuite", out.Suite)
	assert.Contains(t, out.Body, "TestAdd")
	assert.FileExists(t, out.Location)
	assert.Equal(t, []string{"calc.CalculatorSuite"}, harness.names)

	rec, err := ledger.Get(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Equal(t, "verified-ok", rec.Outcome)

	listed, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "list_runs",
		Arguments: ListRunsInput{},
	})
	require.NoError(t, err)
	runs := decode[ListRunsOutput](t, listed)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, out.RunID, runs.Runs[0].ID)
}

func TestMCPToolErrorSetsIsError(t *testing.T) {
	session := setupServerClient(t, NewService(t.TempDir()))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "generate_suite",
		Arguments: GenerateInput{Path: "calc.go"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
