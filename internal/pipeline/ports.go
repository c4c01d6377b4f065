package pipeline

import (
	"context"

	"github.com/dusk-indust/testweave/internal/analyzer"
	"github.com/dusk-indust/testweave/internal/synth"
)

// Analyzer extracts the read-only description of a source file.
type Analyzer interface {
	Analyze(ctx context.Context, path, source string) (*analyzer.SourceUnit, error)
}

// Planner lists the behaviors to test for a unit.
type Planner interface {
	Plan(ctx context.Context, u *analyzer.SourceUnit) ([]analyzer.Scenario, error)
}

// Writer persists an artifact under root and returns its location.
type Writer interface {
	Write(ctx context.Context, a synth.Artifact, root string) (string, error)
}

// Verdict is the outcome of one verification run.
type Verdict struct {
	Passed bool
	Output string
}

// Harness runs the suite named qualifiedName ("pkg/path.SuiteType") under
// root.
type Harness interface {
	Run(ctx context.Context, root, qualifiedName string) (Verdict, error)
}

// Masker redacts sensitive text. It is applied to every context before
// generation.
type Masker interface {
	Mask(text string) string
}

// Retriever enriches generation context between review rounds.
type Retriever interface {
	Augment(ctx context.Context, query, background string) (string, error)
}

// Compile-time interface checks.
var (
	_ Analyzer = (*analyzer.GoAnalyzer)(nil)
	_ Planner  = analyzer.HeuristicPlanner{}
	_ Planner  = (*analyzer.AgentPlanner)(nil)
	_ Writer   = (*FileWriter)(nil)
	_ Harness  = (*GoTestHarness)(nil)
)
