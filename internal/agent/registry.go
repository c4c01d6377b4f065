package agent

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dusk-indust/testweave/internal/provider"
)

var (
	// ErrUnknownRole is returned for a role outside the package constants.
	ErrUnknownRole = errors.New("agent: unknown role")

	// ErrNoProvider is returned when a role has no provider bound and the
	// registry has no default.
	ErrNoProvider = errors.New("agent: no provider bound")
)

// Registry maps roles to the providers that serve them and hands out agents.
// Roles without an explicit binding use the default provider.
type Registry struct {
	mu       sync.Mutex
	fallback provider.Provider
	bound    map[Role]provider.Provider
	spawned  map[Role]*Agent
	logger   *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger handed to spawned agents.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRoleProvider binds role to p at construction.
func WithRoleProvider(role Role, p provider.Provider) RegistryOption {
	return func(r *Registry) {
		if role.Valid() && p != nil {
			r.bound[role] = p
		}
	}
}

// NewRegistry creates a Registry whose roles default to def. def may be nil
// when every role used is bound explicitly.
func NewRegistry(def provider.Provider, opts ...RegistryOption) *Registry {
	r := &Registry{
		fallback: def,
		bound:    make(map[Role]provider.Provider),
		spawned:  make(map[Role]*Agent),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bind binds role to p, replacing any earlier agent for that role.
func (r *Registry) Bind(role Role, p provider.Provider) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, string(role))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound[role] = p
	delete(r.spawned, role)
	return nil
}

// Spawn returns the agent for role, creating it on first use.
func (r *Registry) Spawn(role Role) (*Agent, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, string(role))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if ag, ok := r.spawned[role]; ok {
		return ag, nil
	}
	p := r.bound[role]
	if p == nil {
		p = r.fallback
	}
	if p == nil {
		return nil, fmt.Errorf("%w for role %q", ErrNoProvider, string(role))
	}
	ag := &Agent{
		persona:  PersonaFor(role),
		provider: p,
		logger:   r.logger.With(zap.String("agent", PersonaFor(role).Name)),
	}
	r.spawned[role] = ag
	return ag, nil
}

// MustSpawn is Spawn for callers that have already validated the registry.
func (r *Registry) MustSpawn(role Role) *Agent {
	ag, err := r.Spawn(role)
	if err != nil {
		panic(err)
	}
	return ag
}

// Calls sums the generation calls of every spawned agent.
func (r *Registry) Calls() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, ag := range r.spawned {
		n += ag.Calls()
	}
	return n
}
