package provider

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dusk-indust/testweave/internal/synth"
)

// Compile-time interface check.
var _ Provider = (*Chain)(nil)

// Chain tries providers in order. A provider that fails with a transport
// error, or answers with a failure or quota marker, hands the call to the
// next one. A deadline overrun or cancellation ends the call immediately.
// When every provider has failed the chain answers FailedArtifact.
//
// The chain keeps its own fallback counter; it is unrelated to any repair
// budget of the caller.
type Chain struct {
	providers []Named
	limiter   *rate.Limiter
	logger    *zap.Logger

	calls     atomic.Int64
	fallbacks atomic.Int64
	exhausted atomic.Int64
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithRateLimit throttles calls to at most rps per second with the given
// burst. A non-positive rps disables the limiter.
func WithRateLimit(rps float64, burst int) ChainOption {
	return func(c *Chain) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the chain's logger.
func WithLogger(l *zap.Logger) ChainOption {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChain creates a Chain over providers, tried in the given order.
func NewChain(providers []Named, opts ...ChainOption) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	c := &Chain{
		providers: append([]Named(nil), providers...),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate runs the fallback sequence for one call.
func (c *Chain) Generate(ctx context.Context, mission, background string) (string, error) {
	for i, p := range c.providers {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("provider: rate limit wait: %w", err)
			}
		}
		c.calls.Add(1)

		out, err := p.Provider.Generate(ctx, mission, background)
		if err == nil && !synth.Exhausted(out) {
			return out, nil
		}
		if err != nil && (IsDeadline(err) || errors.Is(err, context.Canceled)) {
			c.logger.Warn("chain: call aborted",
				zap.String("provider", p.Name),
				zap.Error(err))
			return "", err
		}

		reason := "quota or failure marker in response"
		if err != nil {
			reason = err.Error()
		}
		if i < len(c.providers)-1 {
			c.fallbacks.Add(1)
			c.logger.Warn("chain: falling back",
				zap.String("from", p.Name),
				zap.String("to", c.providers[i+1].Name),
				zap.String("reason", reason))
			continue
		}
		c.logger.Warn("chain: last provider failed",
			zap.String("provider", p.Name),
			zap.String("reason", reason))
	}

	c.exhausted.Add(1)
	c.logger.Error("chain: all providers exhausted", zap.Int("providers", len(c.providers)))
	return FailedArtifact, nil
}

// ChainStats is a snapshot of a chain's counters.
type ChainStats struct {
	Calls     int64 // individual provider calls
	Fallbacks int64 // hand-offs to the next provider
	Exhausted int64 // calls answered with FailedArtifact
}

// Stats returns the current counters.
func (c *Chain) Stats() ChainStats {
	return ChainStats{
		Calls:     c.calls.Load(),
		Fallbacks: c.fallbacks.Load(),
		Exhausted: c.exhausted.Load(),
	}
}
