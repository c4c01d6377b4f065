package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchLimit bounds concurrent runs in RunBatch.
const DefaultBatchLimit = 4

// Source is one file to generate a suite for.
type Source struct {
	Path    string
	Content string
}

// BatchResult pairs a source with its run outcome. Err holds the run's error,
// if any; a failed run never stops the others.
type BatchResult struct {
	Path   string
	Result *Result
	Err    error
}

// Factory builds a fresh pipeline for one source.
type Factory func() (*Pipeline, error)

// RunBatch generates suites for distinct sources concurrently, at most limit
// at a time, with one pipeline per source. Results are returned in source
// order. The returned error is a factory failure or cancellation of ctx;
// either stops runs that have not started.
func RunBatch(ctx context.Context, sources []Source, limit int, newPipeline Factory) ([]BatchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	results := make([]BatchResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, src := range sources {
		results[i].Path = src.Path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			p, err := newPipeline()
			if err != nil {
				results[i].Err = err
				return fmt.Errorf("pipeline: batch: %s: %w", src.Path, err)
			}
			res, err := p.Run(gctx, src.Path, src.Content)
			results[i].Result, results[i].Err = res, err
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return results, err
}
