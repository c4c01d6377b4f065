// Package pipeline coordinates one generation run: analyze a source file,
// generate a suite skeleton and one test per planned scenario, assemble and
// persist the suite, then verify it and repair it within a bounded budget.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dusk-indust/testweave/internal/agent"
	"github.com/dusk-indust/testweave/internal/analyzer"
	"github.com/dusk-indust/testweave/internal/consensus"
	"github.com/dusk-indust/testweave/internal/mask"
	"github.com/dusk-indust/testweave/internal/synth"
)

// DefaultMaxRepairs is the repair budget of a run.
const DefaultMaxRepairs = 2

// ErrMissingDependency is returned by New when a required port is nil.
var ErrMissingDependency = errors.New("pipeline: missing dependency")

// Config holds the run parameters.
type Config struct {
	Root         string // project root; suites are written and verified here
	MaxRepairs   int    // 0 means DefaultMaxRepairs, negative disables repair
	UseConsensus bool   // generate members through peer review
	Rounds       int    // review rounds; 0 means consensus.DefaultRounds
}

func (c Config) maxRepairs() int {
	switch {
	case c.MaxRepairs == 0:
		return DefaultMaxRepairs
	case c.MaxRepairs < 0:
		return 0
	}
	return c.MaxRepairs
}

// Deps are the ports a pipeline drives. Analyzer, Agents, Writer and Harness
// are required.
type Deps struct {
	Analyzer  Analyzer
	Planner   Planner // defaults to analyzer.HeuristicPlanner
	Agents    *agent.Registry
	Writer    Writer
	Harness   Harness
	Masker    Masker    // defaults to mask.New()
	Retriever Retriever // optional, used between review rounds
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgress routes progress events to pr.
func WithProgress(pr *ProgressReporter) Option {
	return func(p *Pipeline) { p.progress = pr }
}

// WithMetrics records run metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// Result is the outcome of one run.
type Result struct {
	RunID      string
	Path       string
	Unit       *analyzer.SourceUnit
	Artifact   synth.Artifact
	Location   string
	Verified   bool
	Phase      Phase
	Attempts   int
	Diagnostic string // last verification failure, empty when verified
	History    []Transition

	Scenarios    int
	Fragments    int // member fragments merged
	Skipped      int // member fragments that were unusable
	Arbitrations int

	Started  time.Time
	Finished time.Time
}

// Pipeline runs generation for one source unit at a time. Runs on the same
// instance are serialized.
type Pipeline struct {
	cfg    Config
	deps   Deps
	merger *synth.Merger

	logger   *zap.Logger
	progress *ProgressReporter
	metrics  *Metrics
	now      func() time.Time

	mu sync.Mutex
}

// New creates a Pipeline.
func New(cfg Config, deps Deps, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.Analyzer == nil:
		return nil, fmt.Errorf("%w: analyzer", ErrMissingDependency)
	case deps.Agents == nil:
		return nil, fmt.Errorf("%w: agent registry", ErrMissingDependency)
	case deps.Writer == nil:
		return nil, fmt.Errorf("%w: writer", ErrMissingDependency)
	case deps.Harness == nil:
		return nil, fmt.Errorf("%w: harness", ErrMissingDependency)
	}
	if deps.Planner == nil {
		deps.Planner = analyzer.HeuristicPlanner{}
	}
	if deps.Masker == nil {
		deps.Masker = mask.New()
	}

	p := &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.merger = synth.NewMerger(synth.WithLogger(p.logger))
	return p, nil
}

// run is the per-call state of Run.
type run struct {
	res    *Result
	state  *State
	brief  agent.Brief
	base   synth.Artifact // identity of the suite, empty body
	logger *zap.Logger
}

// Run generates, persists and verifies a suite for the file at path with the
// given content.
//
// Errors are returned only for an unparsable source, a suite that cannot be
// assembled or written, and cancellation. Every other failure degrades: an
// unusable generation is skipped, and verification failures end the run in
// PhaseMaxRetriesExhausted or PhaseRepairAborted with Verified false.
func (p *Pipeline) Run(ctx context.Context, path, source string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := &run{
		res:   &Result{RunID: uuid.NewString(), Path: path, Started: p.now()},
		state: NewState(p.now),
	}
	r.logger = p.logger.With(zap.String("run", r.res.RunID), zap.String("source", path))
	r.logger.Info("pipeline: run started")

	err := p.execute(ctx, r, source)

	r.res.Finished = p.now()
	r.res.Phase = r.state.Phase
	r.res.Attempts = r.state.Attempt
	r.res.History = append([]Transition(nil), r.state.History...)
	r.res.Verified = r.state.Phase == PhaseVerifiedOK
	if !r.res.Verified {
		r.res.Diagnostic = r.state.Diagnostic
	}

	outcome := r.state.Phase.String()
	if err != nil {
		outcome = "error"
		p.emit(r, ProgressFailed, err.Error())
		r.logger.Warn("pipeline: run failed", zap.Stringer("phase", r.state.Phase), zap.Error(err))
	} else {
		r.logger.Info("pipeline: run finished",
			zap.Stringer("phase", r.state.Phase),
			zap.Int("attempts", r.state.Attempt),
			zap.String("location", r.res.Location))
	}
	p.metrics.observeRun(outcome, r.res.Finished.Sub(r.res.Started))

	return r.res, err
}

func (p *Pipeline) execute(ctx context.Context, r *run, source string) error {
	p.emit(r, ProgressWorking, "")
	unit, err := p.deps.Analyzer.Analyze(ctx, r.res.Path, source)
	if err != nil {
		return fmt.Errorf("pipeline: analyze %s: %w", r.res.Path, err)
	}
	r.res.Unit = unit

	suiteType := synth.SuiteTypeName(unit.TypeName)
	r.base = synth.Artifact{Package: unit.Package, PackagePath: unit.Dir, TypeName: suiteType}
	r.brief = agent.Brief{
		Package:     unit.Package,
		PackagePath: unit.Dir,
		SourcePath:  unit.Path,
		SourceType:  unit.TypeName,
		SuiteType:   suiteType,
		Kind:        string(unit.Kind),
		Members:     unit.Signatures(),
		Context:     p.deps.Masker.Mask(source),
	}
	r.brief.Directives = agent.CapabilitiesFor(unit.Imports).Directives(r.brief)

	skeleton, err := p.skeleton(ctx, r)
	if err != nil {
		return err
	}
	if err := p.advance(r, PhaseSkeletonGenerated); err != nil {
		return err
	}

	fragments, err := p.members(ctx, r, unit)
	if err != nil {
		return err
	}
	if err := p.advance(r, PhaseMembersGenerated); err != nil {
		return err
	}

	artifact, err := p.merger.Merge(skeleton, fragments)
	if err != nil {
		return fmt.Errorf("pipeline: assemble: %w", err)
	}
	r.res.Artifact = artifact
	if err := p.advance(r, PhaseAssembled); err != nil {
		return err
	}

	return p.verify(ctx, r, artifact)
}

// skeleton generates the suite layout. An unusable answer degrades to the
// canonical skeleton.
func (p *Pipeline) skeleton(ctx context.Context, r *run) (synth.Artifact, error) {
	var frags []synth.Fragment
	raw, err := p.ask(ctx, agent.RoleSkeleton, r.brief)
	switch {
	case err != nil && ctx.Err() != nil:
		return synth.Artifact{}, err
	case err != nil:
		r.logger.Warn("pipeline: skeleton generation failed, using canonical skeleton", zap.Error(err))
	default:
		frag := synth.Sanitize(raw)
		frag.Target = "skeleton"
		if !frag.Empty() && frag.Granularity.Structural() {
			frags = append(frags, frag)
		} else {
			r.logger.Warn("pipeline: unusable skeleton, using canonical skeleton",
				zap.Stringer("granularity", frag.Granularity))
		}
	}

	out, err := p.merger.Merge(r.base, frags)
	if err != nil {
		return synth.Artifact{}, fmt.Errorf("pipeline: skeleton: %w", err)
	}
	return out, nil
}

// members generates one fragment per planned scenario.
func (p *Pipeline) members(ctx context.Context, r *run, unit *analyzer.SourceUnit) ([]synth.Fragment, error) {
	scenarios, err := p.deps.Planner.Plan(ctx, unit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		r.logger.Warn("pipeline: planning failed, using heuristic plan", zap.Error(err))
		scenarios, _ = analyzer.HeuristicPlanner{}.Plan(ctx, unit)
	}
	r.res.Scenarios = len(scenarios)

	var protocol *consensus.Protocol
	if p.cfg.UseConsensus {
		if protocol, err = p.protocol(); err != nil {
			return nil, err
		}
	}

	var frags []synth.Fragment
	for _, sc := range scenarios {
		b := r.brief
		b.Member = sc.Member
		b.Behavior = sc.Behavior

		raw, err := p.generateMember(ctx, r, protocol, b)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			r.logger.Warn("pipeline: member generation failed",
				zap.String("member", sc.Member), zap.Error(err))
			p.skip(r)
			continue
		}

		frag := synth.Sanitize(raw)
		frag.Target = sc.Member
		if frag.Empty() || !frag.Granularity.Structural() {
			r.logger.Debug("pipeline: skipping unusable member fragment",
				zap.String("member", sc.Member),
				zap.Stringer("granularity", frag.Granularity))
			p.skip(r)
			continue
		}
		frags = append(frags, frag)
	}
	r.res.Fragments = len(frags)
	return frags, nil
}

func (p *Pipeline) generateMember(ctx context.Context, r *run, protocol *consensus.Protocol, b agent.Brief) (string, error) {
	if protocol == nil {
		return p.ask(ctx, agent.RoleWorker, b)
	}
	mission, err := agent.PersonaFor(agent.RoleWorker).Mission(b)
	if err != nil {
		return "", err
	}
	out, err := protocol.Run(ctx, mission, b.Context)
	if err != nil {
		return "", err
	}
	if out.Arbitrated {
		r.res.Arbitrations++
		p.metrics.arbitrated()
	}
	return out.Artifact, nil
}

func (p *Pipeline) protocol() (*consensus.Protocol, error) {
	team, err := consensus.TeamFrom(p.deps.Agents)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	opts := []consensus.Option{consensus.WithLogger(p.logger)}
	if p.cfg.Rounds > 0 {
		opts = append(opts, consensus.WithRounds(p.cfg.Rounds))
	}
	if p.deps.Retriever != nil {
		opts = append(opts, consensus.WithRetriever(maskedRetriever{p.deps.Retriever, p.deps.Masker}))
	}
	return consensus.New(team, opts...)
}

// verify persists the artifact and runs the verify/repair loop until a
// terminal phase.
func (p *Pipeline) verify(ctx context.Context, r *run, artifact synth.Artifact) error {
	maxRepairs := p.cfg.maxRepairs()
	for {
		loc, err := p.deps.Writer.Write(ctx, artifact, p.cfg.Root)
		if err != nil {
			return fmt.Errorf("pipeline: persist: %w", err)
		}
		r.res.Location = loc
		if err := p.advance(r, PhasePersisted); err != nil {
			return err
		}
		if err := p.advance(r, PhaseVerifying); err != nil {
			return err
		}

		verdict, err := p.deps.Harness.Run(ctx, p.cfg.Root, harnessName(artifact))
		p.metrics.verified()
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			verdict = Verdict{Passed: false, Output: err.Error()}
		}
		if verdict.Passed {
			r.state.Diagnostic = ""
			return p.advance(r, PhaseVerifiedOK)
		}
		r.state.Diagnostic = verdict.Output
		r.logger.Info("pipeline: verification failed", zap.Int("attempt", r.state.Attempt))

		if r.state.Attempt >= maxRepairs {
			return p.advance(r, PhaseMaxRetriesExhausted)
		}
		if err := p.advance(r, PhaseRepairing); err != nil {
			return err
		}

		repaired, ok, err := p.repair(ctx, r, artifact)
		if err != nil {
			return err
		}
		if !ok {
			return p.advance(r, PhaseRepairAborted)
		}
		artifact = repaired
		r.res.Artifact = artifact
		if err := p.advance(r, PhaseAssembled); err != nil {
			return err
		}
	}
}

// repair asks for a fixed suite. A whole file replaces the artifact, a
// declaration list is merged into a fresh canonical skeleton and anything
// else aborts the repair.
func (p *Pipeline) repair(ctx context.Context, r *run, broken synth.Artifact) (synth.Artifact, bool, error) {
	p.metrics.repaired()
	b := r.brief
	b.Draft = broken.Body
	b.Diagnostic = p.deps.Masker.Mask(r.state.Diagnostic)

	raw, err := p.ask(ctx, agent.RoleRepair, b)
	if err != nil {
		if ctx.Err() != nil {
			return synth.Artifact{}, false, err
		}
		r.logger.Warn("pipeline: repair generation failed", zap.Error(err))
		return synth.Artifact{}, false, nil
	}

	frag := synth.Sanitize(raw)
	var out synth.Artifact
	switch frag.Granularity {
	case synth.GranularityFile:
		out, err = p.merger.Replace(broken, frag.Body)
	case synth.GranularityDecls:
		out, err = p.merger.Merge(r.base, []synth.Fragment{frag})
	default:
		r.logger.Warn("pipeline: unusable repair",
			zap.Stringer("granularity", frag.Granularity),
			zap.Bool("empty", frag.Empty()))
		return synth.Artifact{}, false, nil
	}
	if err != nil {
		r.logger.Warn("pipeline: repair does not assemble", zap.Error(err))
		return synth.Artifact{}, false, nil
	}
	return out, true, nil
}

func (p *Pipeline) ask(ctx context.Context, role agent.Role, b agent.Brief) (string, error) {
	ag, err := p.deps.Agents.Spawn(role)
	if err != nil {
		return "", fmt.Errorf("pipeline: %w", err)
	}
	return ag.Ask(ctx, b)
}

func (p *Pipeline) advance(r *run, next Phase) error {
	if err := r.state.Advance(next); err != nil {
		return err
	}
	status := ProgressComplete
	msg := ""
	switch next {
	case PhaseMaxRetriesExhausted, PhaseRepairAborted:
		status, msg = ProgressFailed, firstLine(r.state.Diagnostic)
	case PhaseRepairing, PhaseVerifying:
		status = ProgressWorking
	}
	p.emit(r, status, msg)
	r.logger.Debug("pipeline: phase", zap.Stringer("phase", next), zap.Int("attempt", r.state.Attempt))
	return nil
}

func (p *Pipeline) emit(r *run, status ProgressStatus, msg string) {
	p.progress.Emit(ProgressEvent{
		RunID:   r.res.RunID,
		Source:  r.res.Path,
		Phase:   r.state.Phase,
		Status:  status,
		Attempt: r.state.Attempt,
		Message: msg,
	})
}

func (p *Pipeline) skip(r *run) {
	r.res.Skipped++
	p.metrics.skipped()
}

// harnessName is the "pkg/path.Suite" name the harness runs; an artifact at
// the project root yields ".Suite".
func harnessName(a synth.Artifact) string {
	return a.PackagePath + "." + a.TypeName
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// maskedRetriever masks whatever the retriever adds to the context.
type maskedRetriever struct {
	r Retriever
	m Masker
}

func (mr maskedRetriever) Augment(ctx context.Context, query, background string) (string, error) {
	out, err := mr.r.Augment(ctx, query, background)
	if err != nil {
		return "", err
	}
	return mr.m.Mask(out), nil
}
