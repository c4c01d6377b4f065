package analyzer

import (
	"bufio"
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dusk-indust/testweave/internal/agent"
	"github.com/dusk-indust/testweave/internal/synth"
)

// MaxScenariosPerMember bounds the plan for one member.
const MaxScenariosPerMember = 3

// Scenario is one behavior to verify on one member.
type Scenario struct {
	Member   string
	Behavior string
}

// HeuristicPlanner plans from signatures alone.
type HeuristicPlanner struct{}

// Plan returns scenarios for every exported member, or every member when
// none is exported.
func (HeuristicPlanner) Plan(_ context.Context, u *SourceUnit) ([]Scenario, error) {
	var out []Scenario
	for _, m := range u.Exported() {
		out = append(out, Scenario{Member: m.Name, Behavior: "returns the expected result for representative input"})
		results := resultList(m.Signature)
		if strings.Contains(results, "error") {
			out = append(out, Scenario{Member: m.Name, Behavior: "returns an error for invalid input"})
		}
		if params := paramList(m.Signature); strings.Contains(params, "[]") ||
			strings.Contains(params, "map[") || strings.Contains(params, "string") {
			out = append(out, Scenario{Member: m.Name, Behavior: "handles empty input"})
		}
	}
	return out, nil
}

// paramList returns the parameter text of a func signature.
func paramList(sig string) string {
	lo, hi := paramBounds(sig)
	if lo < 0 {
		return ""
	}
	return sig[lo+1 : hi]
}

// resultList returns the text after the parameter list.
func resultList(sig string) string {
	_, hi := paramBounds(sig)
	if hi < 0 {
		return ""
	}
	return sig[hi+1:]
}

// paramBounds locates the parentheses of the parameter list, skipping a
// receiver.
func paramBounds(sig string) (int, int) {
	s := sig
	offset := 0
	if strings.HasPrefix(s, "func (") {
		end := matchParen(s, len("func "))
		if end < 0 {
			return -1, -1
		}
		offset = end + 1
		s = s[offset:]
	}
	lo := strings.IndexByte(s, '(')
	if lo < 0 {
		return -1, -1
	}
	hi := matchParen(s, lo)
	if hi < 0 {
		return -1, -1
	}
	return offset + lo, offset + hi
}

func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Asker renders a brief into a mission and generates an answer.
type Asker interface {
	Ask(ctx context.Context, b agent.Brief) (string, error)
}

// AgentPlanner asks a planner agent for scenarios and falls back to the
// heuristic plan when the answer is unusable.
type AgentPlanner struct {
	asker    Asker
	fallback HeuristicPlanner
	logger   *zap.Logger
}

// NewAgentPlanner creates a planner backed by asker.
func NewAgentPlanner(asker Asker, logger *zap.Logger) *AgentPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentPlanner{asker: asker, logger: logger}
}

// Plan asks for "Member: behavior" lines and keeps the ones naming a known
// member, at most MaxScenariosPerMember each.
func (p *AgentPlanner) Plan(ctx context.Context, u *SourceUnit) ([]Scenario, error) {
	raw, err := p.asker.Ask(ctx, agent.Brief{
		Package:     u.Package,
		PackagePath: u.Dir,
		SourcePath:  u.Path,
		SourceType:  u.TypeName,
		Kind:        string(u.Kind),
		Members:     u.Signatures(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		p.logger.Warn("analyzer: planner failed, using heuristic plan",
			zap.String("unit", u.Path), zap.Error(err))
		return p.fallback.Plan(ctx, u)
	}

	scenarios := ParseScenarios(raw, u)
	if len(scenarios) == 0 {
		p.logger.Warn("analyzer: planner returned no usable scenarios, using heuristic plan",
			zap.String("unit", u.Path))
		return p.fallback.Plan(ctx, u)
	}
	return scenarios, nil
}

// ParseScenarios reads "Member: behavior" lines from the code section of a
// planner response, or from the whole response without one. Lines naming an
// unknown member are dropped.
func ParseScenarios(raw string, u *SourceUnit) []Scenario {
	text := raw
	if body, ok := synth.FindLabel(raw, synth.LabelCode); ok {
		text = body
	}

	perMember := make(map[string]int)
	var out []Scenario
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimLeft(line, "-*0123456789. ")
		name, behavior, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.Trim(strings.TrimSpace(name), "`")
		behavior = strings.TrimSpace(behavior)
		m, known := u.Member(name)
		if !known || behavior == "" || perMember[m.Name] >= MaxScenariosPerMember {
			continue
		}
		perMember[m.Name]++
		out = append(out, Scenario{Member: m.Name, Behavior: behavior})
	}
	return out
}
