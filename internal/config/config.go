// Package config loads project settings from testweave.yml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// File names tried by Load, in order.
var FileNames = []string{"testweave.yml", "testweave.yaml"}

const (
	DefaultGenerationTimeout = 90 * time.Second
	DefaultVerifyTimeout     = 2 * time.Minute
	DefaultConcurrency       = 4
	DefaultLedgerPath        = ".testweave/runs.db"
	DefaultKuzuPath          = ".testweave/index.kuzu"
	DefaultGoBinary          = "go"
)

// Provider kinds.
const (
	KindOpenAI = "openai"
	KindA2A    = "a2a"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// ProjectConfig holds project-level settings loaded from testweave.yml.
type ProjectConfig struct {
	OutputDir    string `yaml:"outputDir,omitempty"` // suites are written and verified here; default project dir
	MaxRepairs   int    `yaml:"maxRepairs,omitempty"`
	Rounds       int    `yaml:"rounds,omitempty"`
	UseConsensus bool   `yaml:"useConsensus,omitempty"`
	Planner      string `yaml:"planner,omitempty"` // "heuristic" (default) or "agent"
	Concurrency  int    `yaml:"concurrency,omitempty"`
	GoBinary     string `yaml:"goBinary,omitempty"`
	LedgerPath   string `yaml:"ledgerPath,omitempty"`

	GenerationTimeout time.Duration `yaml:"generationTimeout,omitempty"`
	VerifyTimeout     time.Duration `yaml:"verifyTimeout,omitempty"`

	// Providers form the default fallback chain, tried in order.
	Providers []ProviderConfig `yaml:"providers,omitempty"`
	// Roles binds a role to a single named provider instead of the chain.
	Roles map[string]string `yaml:"roles,omitempty"`

	RateLimit RateLimit   `yaml:"rateLimit,omitempty"`
	Index     IndexConfig `yaml:"index,omitempty"`
}

// ProviderConfig describes one generation backend.
type ProviderConfig struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"` // openai | a2a
	Model     string `yaml:"model,omitempty"`
	BaseURL   string `yaml:"baseURL,omitempty"`
	APIKeyEnv string `yaml:"apiKeyEnv,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
}

// RateLimit throttles generation calls client-side. Zero RPS disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps,omitempty"`
	Burst int     `yaml:"burst,omitempty"`
}

// IndexConfig controls the symbol index used for retrieval.
type IndexConfig struct {
	Languages []string `yaml:"languages,omitempty"`
	Excludes  []string `yaml:"excludes,omitempty"`
	KuzuPath  string   `yaml:"kuzuPath,omitempty"`
	Disabled  bool     `yaml:"disabled,omitempty"`
}

// Load reads testweave.yml or testweave.yaml from dir. A missing file is not
// an error: the defaults are returned.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		cfg, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		return cfg, nil
	}
	cfg := &ProjectConfig{}
	cfg.applyDefaults()
	return cfg, nil
}

// Parse decodes and validates YAML settings.
func Parse(data []byte) (*ProjectConfig, error) {
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ProjectConfig) applyDefaults() {
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = DefaultGenerationTimeout
	}
	if c.VerifyTimeout <= 0 {
		c.VerifyTimeout = DefaultVerifyTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.LedgerPath == "" {
		c.LedgerPath = DefaultLedgerPath
	}
	if c.GoBinary == "" {
		c.GoBinary = DefaultGoBinary
	}
	if c.Planner == "" {
		c.Planner = "heuristic"
	}
	if c.Index.KuzuPath == "" {
		c.Index.KuzuPath = DefaultKuzuPath
	}
}

// Validate checks cross-field constraints.
func (c *ProjectConfig) Validate() error {
	if c.Planner != "heuristic" && c.Planner != "agent" {
		return fmt.Errorf("%w: planner %q is neither heuristic nor agent", ErrInvalid, c.Planner)
	}
	if c.Rounds < 0 {
		return fmt.Errorf("%w: rounds must not be negative", ErrInvalid)
	}
	names := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("%w: provider %d has no name", ErrInvalid, i)
		}
		if names[p.Name] {
			return fmt.Errorf("%w: provider %q declared twice", ErrInvalid, p.Name)
		}
		names[p.Name] = true
		switch p.Kind {
		case KindOpenAI:
		case KindA2A:
			if p.Endpoint == "" {
				return fmt.Errorf("%w: a2a provider %q needs an endpoint", ErrInvalid, p.Name)
			}
		default:
			return fmt.Errorf("%w: provider %q has unknown kind %q", ErrInvalid, p.Name, p.Kind)
		}
	}
	for role, name := range c.Roles {
		if !names[name] {
			return fmt.Errorf("%w: role %q uses undeclared provider %q", ErrInvalid, role, name)
		}
	}
	return nil
}

// Provider returns the provider named name.
func (c *ProjectConfig) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// Resolve returns path made absolute against dir when it is relative.
func Resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
