package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/testweave/internal/pipeline"
	"github.com/dusk-indust/testweave/internal/status"
)

var generateFlags struct {
	consensus   bool
	maxRepairs  int
	rounds      int
	concurrency int
	quiet       bool
}

var generateCmd = &cobra.Command{
	Use:   "generate <file.go>...",
	Short: "Generate and verify a test suite for each source file",
	Long: `Generates a testify suite for every given Go source file, writes it next to
the package under test, runs it with 'go test' and repairs it on failure.

Paths are relative to --project-root. Every run is recorded in the run ledger;
see 'testweave status'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.BoolVar(&generateFlags.consensus, "consensus", false, "route member generation through peer review")
	f.IntVar(&generateFlags.maxRepairs, "max-repairs", 0, "repair attempts per file (0 uses the configured value)")
	f.IntVar(&generateFlags.rounds, "rounds", 0, "review rounds before arbitration (0 uses the configured value)")
	f.IntVar(&generateFlags.concurrency, "concurrency", 0, "files processed in parallel (0 uses the configured value)")
	f.BoolVarP(&generateFlags.quiet, "quiet", "q", false, "do not print progress")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	sources, err := readSources(a.root, args)
	if err != nil {
		return err
	}

	sess, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	ledger, err := a.openLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	var wg sync.WaitGroup
	events := sess.progress.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		printProgress(cmd.ErrOrStderr(), events, generateFlags.quiet)
	}()

	limit := generateFlags.concurrency
	if limit <= 0 {
		limit = a.cfg.Concurrency
	}
	factory := a.pipelineFactory(sess, pipeline.Config{
		UseConsensus: generateFlags.consensus,
		MaxRepairs:   generateFlags.maxRepairs,
		Rounds:       generateFlags.rounds,
	})
	results, batchErr := pipeline.RunBatch(ctx, sources, limit, factory)
	sess.progress.Close()
	wg.Wait()
	if n := sess.progress.Dropped(); n > 0 {
		a.logger.Debug("testweave: progress events dropped", zap.Int64("count", n))
	}

	failed := 0
	out := cmd.OutOrStdout()
	for _, br := range results {
		if br.Result != nil {
			if err := ledger.Record(ctx, status.FromResult(br.Result, br.Err)); err != nil {
				a.logger.Warn("testweave: record run", zap.String("path", br.Path), zap.Error(err))
			}
		}
		switch {
		case br.Err != nil:
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", br.Path, br.Err)
		case br.Result.Verified:
			fmt.Fprintf(out, "✓ %s -> %s (attempts: %d)\n", br.Path, relTo(a.root, br.Result.Location), br.Result.Attempts)
		default:
			failed++
			fmt.Fprintf(out, "✗ %s: %s after %d attempt(s)\n", br.Path, br.Result.Phase, br.Result.Attempts)
		}
	}

	a.logger.Debug("testweave: generation finished",
		zap.Int("files", len(results)),
		zap.Int("failed", failed),
		zap.Int64("generationCalls", sess.registry.Calls()))

	if batchErr != nil {
		return batchErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) not verified", failed, len(results))
	}
	return nil
}

func readSources(root string, paths []string) ([]pipeline.Source, error) {
	sources := make([]pipeline.Source, 0, len(paths))
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, p)
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		sources = append(sources, pipeline.Source{Path: relTo(root, abs), Content: string(data)})
	}
	return sources, nil
}

func printProgress(w io.Writer, events <-chan pipeline.ProgressEvent, quiet bool) {
	for ev := range events {
		if !quiet {
			fmt.Fprintln(w, pipeline.FormatProgress(ev))
		}
	}
}

// relTo returns path relative to root when it lies inside it.
func relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
