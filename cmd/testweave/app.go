package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dusk-indust/testweave/internal/a2a"
	"github.com/dusk-indust/testweave/internal/agent"
	"github.com/dusk-indust/testweave/internal/analyzer"
	"github.com/dusk-indust/testweave/internal/config"
	"github.com/dusk-indust/testweave/internal/index"
	"github.com/dusk-indust/testweave/internal/mask"
	"github.com/dusk-indust/testweave/internal/pipeline"
	"github.com/dusk-indust/testweave/internal/provider"
	"github.com/dusk-indust/testweave/internal/status"
)

// errNoProviders is returned when a command needs generation but the project
// declares no providers.
var errNoProviders = errors.New("no providers configured; add a providers list to testweave.yml")

// app is the wiring shared by every command: project settings, logger and the
// collaborators built from them.
type app struct {
	root   string // absolute project root
	cfg    *config.ProjectConfig
	logger *zap.Logger
}

func loadApp() (*app, error) {
	root, err := filepath.Abs(rootFlags.projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(rootFlags.verbose)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &app{root: root, cfg: cfg, logger: logger}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// outputRoot is where suites are written and verified.
func (a *app) outputRoot() string {
	if a.cfg.OutputDir == "" {
		return a.root
	}
	return config.Resolve(a.root, a.cfg.OutputDir)
}

func (a *app) openLedger() (*status.Ledger, error) {
	return status.Open(config.Resolve(a.root, a.cfg.LedgerPath))
}

// buildProvider creates the adapter for one configured backend, wrapped with
// the generation timeout.
func (a *app) buildProvider(pc config.ProviderConfig) (provider.Provider, error) {
	var p provider.Provider
	switch pc.Kind {
	case config.KindOpenAI:
		var key string
		if pc.APIKeyEnv != "" {
			key = os.Getenv(pc.APIKeyEnv)
			if key == "" {
				a.logger.Warn("testweave: api key variable is empty",
					zap.String("provider", pc.Name), zap.String("env", pc.APIKeyEnv))
			}
		}
		p = provider.NewOpenAI(provider.OpenAIConfig{APIKey: key, BaseURL: pc.BaseURL, Model: pc.Model})
	case config.KindA2A:
		p = provider.NewA2A(pc.Endpoint, a2a.NewHTTPClient(a2a.WithUserAgent("testweave/"+version)))
	default:
		return nil, fmt.Errorf("provider %q: unknown kind %q", pc.Name, pc.Kind)
	}
	return provider.WithTimeout(p, a.cfg.GenerationTimeout), nil
}

// buildRegistry binds the fallback chain as the default provider and the
// configured single providers to their roles.
func (a *app) buildRegistry() (*agent.Registry, error) {
	if len(a.cfg.Providers) == 0 {
		return nil, errNoProviders
	}
	built := make(map[string]provider.Provider, len(a.cfg.Providers))
	named := make([]provider.Named, 0, len(a.cfg.Providers))
	for _, pc := range a.cfg.Providers {
		p, err := a.buildProvider(pc)
		if err != nil {
			return nil, err
		}
		built[pc.Name] = p
		named = append(named, provider.Named{Name: pc.Name, Provider: p})
	}

	chainOpts := []provider.ChainOption{provider.WithLogger(a.logger)}
	if a.cfg.RateLimit.RPS > 0 {
		chainOpts = append(chainOpts, provider.WithRateLimit(a.cfg.RateLimit.RPS, a.cfg.RateLimit.Burst))
	}
	chain, err := provider.NewChain(named, chainOpts...)
	if err != nil {
		return nil, err
	}

	reg := agent.NewRegistry(chain, agent.WithLogger(a.logger))
	for role, name := range a.cfg.Roles {
		if err := reg.Bind(agent.Role(role), built[name]); err != nil {
			return nil, fmt.Errorf("roles: %w", err)
		}
	}
	return reg, nil
}

// buildIndex loads the saved snapshot, or indexes the project when none was
// saved, for reviewer retrieval. Failures are logged and disable retrieval.
func (a *app) buildIndex(ctx context.Context) pipeline.Retriever {
	if a.cfg.Index.Disabled {
		return nil
	}
	var h index.Holder
	if path := config.Resolve(a.root, a.cfg.Index.KuzuPath); exists(path) {
		snap, err := loadSnapshot(ctx, path)
		if err == nil {
			h.Store(snap)
			return index.NewRetriever(&h, 0)
		}
		a.logger.Warn("testweave: saved index unreadable, rebuilding", zap.String("path", path), zap.Error(err))
	}

	b := index.NewBuilder(
		index.WithLanguages(index.ParseLanguages(a.cfg.Index.Languages)...),
		index.WithExcludes(a.cfg.Index.Excludes...),
		index.WithLogger(a.logger),
	)
	snap, err := b.Build(ctx, a.root)
	if err != nil {
		a.logger.Warn("testweave: index unavailable", zap.Error(err))
		return nil
	}
	h.Store(snap)
	return index.NewRetriever(&h, 0)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// session carries the per-invocation collaborators shared by every pipeline
// a command builds.
type session struct {
	registry  *agent.Registry
	retriever pipeline.Retriever
	progress  *pipeline.ProgressReporter
	metrics   *pipeline.Metrics
	masker    *mask.Redactor
}

func (a *app) newSession(ctx context.Context) (*session, error) {
	reg, err := a.buildRegistry()
	if err != nil {
		return nil, err
	}
	return &session{
		registry:  reg,
		retriever: a.buildIndex(ctx),
		progress:  pipeline.NewProgressReporter(),
		metrics:   pipeline.NewMetrics(),
		masker:    mask.New(),
	}, nil
}

// pipelineFactory returns a Factory building one pipeline per source file.
func (a *app) pipelineFactory(s *session, overrides pipeline.Config) pipeline.Factory {
	return func() (*pipeline.Pipeline, error) {
		cfg := pipeline.Config{
			Root:         a.outputRoot(),
			MaxRepairs:   a.cfg.MaxRepairs,
			UseConsensus: a.cfg.UseConsensus || overrides.UseConsensus,
			Rounds:       a.cfg.Rounds,
		}
		if overrides.MaxRepairs != 0 {
			cfg.MaxRepairs = overrides.MaxRepairs
		}
		if overrides.Rounds != 0 {
			cfg.Rounds = overrides.Rounds
		}

		deps := pipeline.Deps{
			Analyzer:  analyzer.NewGoAnalyzer(a.root),
			Agents:    s.registry,
			Writer:    pipeline.FileWriter{},
			Harness:   &pipeline.GoTestHarness{Binary: a.cfg.GoBinary, Timeout: a.cfg.VerifyTimeout},
			Masker:    s.masker,
			Retriever: s.retriever,
		}
		if a.cfg.Planner == "agent" {
			planner, err := s.registry.Spawn(agent.RolePlanner)
			if err != nil {
				return nil, err
			}
			deps.Planner = analyzer.NewAgentPlanner(planner, a.logger)
		}
		return pipeline.New(cfg, deps,
			pipeline.WithLogger(a.logger),
			pipeline.WithProgress(s.progress),
			pipeline.WithMetrics(s.metrics),
		)
	}
}
