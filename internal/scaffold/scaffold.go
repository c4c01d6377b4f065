// Package scaffold installs testweave into a project: a starter
// testweave.yml and an MCP server entry in .mcp.json.
package scaffold

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigTemplate is the starter testweave.yml.
//
//go:embed templates/testweave.yml
var ConfigTemplate []byte

// ServerName is the key of the testweave entry in .mcp.json.
const ServerName = "testweave"

var mcpEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "testweave",
  "args": ["serve-mcp"]
}`)

// Action is what Install did with one file.
type Action string

const (
	Created Action = "created"
	Updated Action = "updated"
	Skipped Action = "skipped"
)

// Step reports one installed file.
type Step struct {
	Path   string // relative to the project root
	Action Action
}

// mcpConfig is the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// Install writes the starter config and the MCP entry under root. Existing
// files and entries are kept unless force is set.
func Install(root string, force bool) ([]Step, error) {
	cfgStep, err := writeConfig(filepath.Join(root, "testweave.yml"), force)
	if err != nil {
		return nil, err
	}
	mcpStep, err := mergeMCPConfig(filepath.Join(root, ".mcp.json"), force)
	if err != nil {
		return nil, err
	}
	return []Step{cfgStep, mcpStep}, nil
}

func writeConfig(path string, force bool) (Step, error) {
	step := Step{Path: filepath.Base(path), Action: Created}
	if _, err := os.Stat(path); err == nil {
		if !force {
			step.Action = Skipped
			return step, nil
		}
		step.Action = Updated
	}
	if err := os.WriteFile(path, ConfigTemplate, 0o644); err != nil {
		return Step{}, fmt.Errorf("scaffold: write %s: %w", path, err)
	}
	return step, nil
}

// mergeMCPConfig creates or merges the testweave entry into .mcp.json,
// keeping every other server.
func mergeMCPConfig(path string, force bool) (Step, error) {
	step := Step{Path: filepath.Base(path), Action: Created}
	var cfg mcpConfig

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Step{}, fmt.Errorf("scaffold: parse %s: %w", path, err)
		}
		step.Action = Updated
	case !errors.Is(err, os.ErrNotExist):
		return Step{}, fmt.Errorf("scaffold: read %s: %w", path, err)
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}
	if _, exists := cfg.MCPServers[ServerName]; exists && !force {
		step.Action = Skipped
		return step, nil
	}
	cfg.MCPServers[ServerName] = mcpEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return Step{}, fmt.Errorf("scaffold: marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return Step{}, fmt.Errorf("scaffold: write %s: %w", path, err)
	}
	return step, nil
}
