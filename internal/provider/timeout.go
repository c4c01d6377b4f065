package provider

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds every Generate call of p by d. A zero or negative d
// returns p unchanged.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &timeoutProvider{inner: p, timeout: d}
}

type timeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

func (t *timeoutProvider) Generate(ctx context.Context, mission, background string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.inner.Generate(ctx, mission, background)
	if err != nil {
		if IsDeadline(ctx.Err()) {
			return "", fmt.Errorf("provider: generation exceeded %s: %w", t.timeout, ctx.Err())
		}
		return "", err
	}
	return out, nil
}
