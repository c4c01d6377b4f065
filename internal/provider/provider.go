// Package provider defines the text-generation port and its adapters: the
// fallback Chain, per-call timeouts, an OpenAI-compatible chat client and a
// remote A2A agent.
package provider

import (
	"context"
	"errors"
)

// FailedArtifact is the designated text returned when every provider in a
// chain has failed. It is itself a sanitizer sentinel, so downstream parsing
// treats it as "no output".
const FailedArtifact = "GENERATION_FAILED"

var (
	// ErrNoProviders is returned when a chain is built without providers.
	ErrNoProviders = errors.New("provider: no providers configured")

	// ErrEmptyResponse is returned by adapters when the backend answered
	// without any content.
	ErrEmptyResponse = errors.New("provider: empty response")
)

// Provider generates text for a mission given supporting context.
type Provider interface {
	Generate(ctx context.Context, mission, background string) (string, error)
}

// Func adapts an ordinary function to the Provider interface.
type Func func(ctx context.Context, mission, background string) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, mission, background string) (string, error) {
	return f(ctx, mission, background)
}

// Named pairs a provider with a label for logs and metrics.
type Named struct {
	Name     string
	Provider Provider
}

// IsDeadline reports whether err is a deadline overrun. Deadline overruns are
// hard failures: they are never retried nor handed to a fallback provider.
func IsDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
