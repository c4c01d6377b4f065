package mcptools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dusk-indust/testweave/internal/pipeline"
	"github.com/dusk-indust/testweave/internal/status"
	"github.com/dusk-indust/testweave/internal/synth"
)

const defaultListLimit = 20

// ErrGenerationDisabled is returned by GenerateSuite when the service was built
// without a pipeline factory.
var ErrGenerationDisabled = errors.New("mcptools: generation is not configured")

// Ledger records and lists runs. *status.Ledger satisfies it.
type Ledger interface {
	Record(ctx context.Context, r status.Record) error
	List(ctx context.Context, limit int) ([]status.Record, error)
	Summary(ctx context.Context) (map[string]int, error)
}

var _ Ledger = (*status.Ledger)(nil)

// Service holds the collaborators used by MCP tool handlers.
type Service struct {
	root        string
	merger      *synth.Merger
	newPipeline pipeline.Factory
	ledger      Ledger
	logger      *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPipeline enables generate_suite.
func WithPipeline(f pipeline.Factory) ServiceOption {
	return func(s *Service) { s.newPipeline = f }
}

// WithLedger records generate_suite runs and enables list_runs.
func WithLedger(l Ledger) ServiceOption {
	return func(s *Service) { s.ledger = l }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service rooted at the project directory root.
func NewService(root string, opts ...ServiceOption) *Service {
	s := &Service{root: root, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	s.merger = synth.NewMerger(synth.WithLogger(s.logger))
	return s
}

// SanitizeFragment extracts code from raw generation output.
func (s *Service) SanitizeFragment(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SanitizeInput,
) (*mcp.CallToolResult, FragmentOutput, error) {
	return nil, fragmentOutput(synth.Sanitize(input.Raw)), nil
}

// ValidateSyntax reports the first granularity at which code parses.
func (s *Service) ValidateSyntax(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ValidateInput,
) (*mcp.CallToolResult, ValidateOutput, error) {
	g := synth.Detect(input.Code)
	return nil, ValidateOutput{Valid: g != synth.GranularityNone, Granularity: g.String()}, nil
}

// MergeFragments sanitizes every raw fragment and merges the structural ones
// into the target suite.
func (s *Service) MergeFragments(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input MergeInput,
) (*mcp.CallToolResult, MergeOutput, error) {
	if input.Package == "" || input.TypeName == "" {
		return nil, MergeOutput{}, fmt.Errorf("package and typeName are required")
	}

	var frags []synth.Fragment
	skipped := 0
	for i, raw := range input.Fragments {
		f := synth.Sanitize(raw)
		if !f.Granularity.Structural() {
			skipped++
			continue
		}
		f.Target = fmt.Sprintf("fragment-%d", i)
		frags = append(frags, f)
	}

	target := synth.Artifact{
		Package:     input.Package,
		PackagePath: input.PackagePath,
		TypeName:    input.TypeName,
		Body:        input.Target,
	}
	merged, err := s.merger.Merge(target, frags)
	if err != nil {
		return nil, MergeOutput{}, fmt.Errorf("merge: %w", err)
	}

	out := MergeOutput{
		Body:    merged.Body,
		Imports: merged.Imports,
		Merged:  len(frags),
		Skipped: skipped,
	}
	for _, is := range synth.CheckCoherence(frags) {
		out.Issues = append(out.Issues, CoherenceIssue(is))
	}
	return nil, out, nil
}

// GenerateSuite runs the full generation pipeline for one source file.
func (s *Service) GenerateSuite(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateInput,
) (*mcp.CallToolResult, GenerateOutput, error) {
	if s.newPipeline == nil {
		return nil, GenerateOutput{}, ErrGenerationDisabled
	}
	if input.Path == "" {
		return nil, GenerateOutput{}, fmt.Errorf("path is required")
	}
	source := input.Source
	if source == "" {
		data, err := os.ReadFile(filepath.Join(s.root, input.Path))
		if err != nil {
			return nil, GenerateOutput{}, fmt.Errorf("read source: %w", err)
		}
		source = string(data)
	}

	p, err := s.newPipeline()
	if err != nil {
		return nil, GenerateOutput{}, fmt.Errorf("build pipeline: %w", err)
	}
	res, runErr := p.Run(ctx, input.Path, source)
	if s.ledger != nil && res != nil {
		if err := s.ledger.Record(ctx, status.FromResult(res, runErr)); err != nil {
			s.logger.Warn("mcptools: record run", zap.String("run", res.RunID), zap.Error(err))
		}
	}
	if runErr != nil {
		return nil, GenerateOutput{}, runErr
	}

	out := GenerateOutput{
		RunID:      res.RunID,
		Phase:      res.Phase.String(),
		Verified:   res.Verified,
		Attempts:   res.Attempts,
		Location:   res.Location,
		Diagnostic: res.Diagnostic,
		Body:       res.Artifact.Body,
	}
	if res.Artifact.TypeName != "" {
		out.Suite = res.Artifact.QualifiedName()
	}
	return nil, out, nil
}

// ListRuns returns the newest recorded runs.
func (s *Service) ListRuns(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListRunsInput,
) (*mcp.CallToolResult, ListRunsOutput, error) {
	if s.ledger == nil {
		return nil, ListRunsOutput{}, fmt.Errorf("no run ledger configured")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	recs, err := s.ledger.List(ctx, limit)
	if err != nil {
		return nil, ListRunsOutput{}, err
	}
	sum, err := s.ledger.Summary(ctx)
	if err != nil {
		return nil, ListRunsOutput{}, err
	}
	out := ListRunsOutput{Runs: make([]RunSummary, 0, len(recs)), Summary: sum}
	for _, r := range recs {
		out.Runs = append(out.Runs, RunSummary{
			ID:       r.RunID,
			Source:   r.Source,
			Suite:    r.Suite,
			Outcome:  r.Outcome,
			Attempts: r.Attempts,
			Started:  r.Started.UTC().Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

func fragmentOutput(f synth.Fragment) FragmentOutput {
	return FragmentOutput{
		Package:     f.Package,
		TypeName:    f.TypeName,
		Imports:     f.Imports,
		Body:        f.Body,
		Source:      string(f.Source),
		Granularity: f.Granularity.String(),
		Structural:  f.Granularity.Structural(),
	}
}
