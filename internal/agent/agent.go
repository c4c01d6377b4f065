package agent

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dusk-indust/testweave/internal/a2a"
	"github.com/dusk-indust/testweave/internal/provider"
)

// Compile-time interface check.
var _ provider.Provider = (*Agent)(nil)

// Agent is a persona bound to a provider. It is itself a Provider: every
// mission it forwards is prefixed with the persona's standing instructions.
type Agent struct {
	persona  Persona
	provider provider.Provider
	logger   *zap.Logger
	calls    atomic.Int64
}

// Role returns the agent's role.
func (a *Agent) Role() Role {
	return a.persona.Role
}

// Persona returns the agent's persona.
func (a *Agent) Persona() Persona {
	return a.persona
}

// Generate forwards one call to the bound provider.
func (a *Agent) Generate(ctx context.Context, mission, background string) (string, error) {
	a.calls.Add(1)
	a.logger.Debug("agent: generate",
		zap.Stringer("role", a.persona.Role),
		zap.Int("mission_bytes", len(mission)),
		zap.Int("background_bytes", len(background)))

	out, err := a.provider.Generate(ctx, a.persona.System()+"\n\n"+mission, background)
	if err != nil {
		return "", fmt.Errorf("agent: %s: %w", a.persona.Role, err)
	}
	return out, nil
}

// Ask renders the persona's mission for b and generates with b.Context as the
// background.
func (a *Agent) Ask(ctx context.Context, b Brief) (string, error) {
	mission, err := a.persona.Mission(b)
	if err != nil {
		return "", err
	}
	return a.Generate(ctx, mission, b.Context)
}

// Calls returns how many generation calls the agent has made.
func (a *Agent) Calls() int64 {
	return a.calls.Load()
}

// Card describes testweave as an A2A agent.
func Card(version string) a2a.AgentCard {
	return a2a.AgentCard{
		Name:        "testweave",
		Description: "Generates, verifies and repairs testify suites for Go source files",
		Version:     version,
		Skills: []a2a.AgentSkill{
			{
				ID:          "generate-suite",
				Name:        "Generate Suite",
				Description: "Takes a Go source file path relative to the served root and returns the verified test suite",
				Tags:        []string{"go", "testing", "codegen"},
			},
		},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/x-go"},
	}
}
