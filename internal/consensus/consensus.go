// Package consensus runs the peer-review protocol: a worker drafts, a
// reviewer approves or rejects with feedback, and after a bounded number of
// rejected rounds an arbitrator settles the draft.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/dusk-indust/testweave/internal/agent"
	"github.com/dusk-indust/testweave/internal/provider"
	"github.com/dusk-indust/testweave/internal/synth"
)

// DefaultRounds is the number of review rounds before arbitration.
const DefaultRounds = 2

// ErrIncompleteTeam is returned when a team role has no provider.
var ErrIncompleteTeam = errors.New("consensus: team needs a worker, a reviewer and an arbitrator")

// Verdict is a reviewer's decision on one draft.
type Verdict int

const (
	Rejected Verdict = iota
	Approved
)

var verdictNames = [...]string{"REJECTED", "APPROVED"}

func (v Verdict) String() string {
	if int(v) < len(verdictNames) {
		return verdictNames[v]
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Team binds the three protocol roles to providers.
type Team struct {
	Worker     provider.Provider
	Reviewer   provider.Provider
	Arbitrator provider.Provider
}

// TeamFrom spawns the three roles from a registry.
func TeamFrom(r *agent.Registry) (Team, error) {
	var t Team
	var err error
	if t.Worker, err = spawn(r, agent.RoleWorker); err != nil {
		return Team{}, err
	}
	if t.Reviewer, err = spawn(r, agent.RoleReviewer); err != nil {
		return Team{}, err
	}
	if t.Arbitrator, err = spawn(r, agent.RoleArbitrator); err != nil {
		return Team{}, err
	}
	return t, nil
}

func spawn(r *agent.Registry, role agent.Role) (provider.Provider, error) {
	ag, err := r.Spawn(role)
	if err != nil {
		return nil, fmt.Errorf("consensus: %w", err)
	}
	return ag, nil
}

// Retriever enriches the context between rounds with material relevant to
// the latest feedback.
type Retriever interface {
	Augment(ctx context.Context, query, background string) (string, error)
}

// Outcome is the result of one protocol run.
type Outcome struct {
	// Artifact is the raw response accepted as final: the approved draft or
	// the arbitrator's answer.
	Artifact   string
	Approved   bool
	Arbitrated bool
	Rounds     int
	Feedback   []string
	Calls      int
}

// Protocol runs review rounds for one team.
type Protocol struct {
	team      Team
	rounds    int
	retriever Retriever
	logger    *zap.Logger
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithRounds sets the number of review rounds. Values below 1 keep the
// default.
func WithRounds(n int) Option {
	return func(p *Protocol) {
		if n > 0 {
			p.rounds = n
		}
	}
}

// WithRetriever sets the context augmenter used between rounds.
func WithRetriever(r Retriever) Option {
	return func(p *Protocol) {
		p.retriever = r
	}
}

// WithLogger sets the protocol logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Protocol) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Protocol for team.
func New(team Team, opts ...Option) (*Protocol, error) {
	if team.Worker == nil || team.Reviewer == nil || team.Arbitrator == nil {
		return nil, ErrIncompleteTeam
	}
	p := &Protocol{
		team:   team,
		rounds: DefaultRounds,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Rounds returns the configured number of review rounds.
func (p *Protocol) Rounds() int {
	return p.rounds
}

// Run drafts, reviews and, if no round is approved, arbitrates. It makes at
// most 2*Rounds+1 provider calls. A provider error aborts the run.
func (p *Protocol) Run(ctx context.Context, mission, background string) (Outcome, error) {
	var out Outcome
	var draft string
	roundContext := background

	for round := 1; round <= p.rounds; round++ {
		out.Rounds = round

		var err error
		draft, err = p.team.Worker.Generate(ctx, mission, withFeedback(roundContext, out.Feedback))
		out.Calls++
		if err != nil {
			return out, fmt.Errorf("consensus: round %d: worker: %w", round, err)
		}

		review, err := p.review(ctx, mission, draft, background)
		out.Calls++
		if err != nil {
			return out, fmt.Errorf("consensus: round %d: reviewer: %w", round, err)
		}

		verdict := ParseVerdict(review)
		p.logger.Debug("consensus: review",
			zap.Int("round", round),
			zap.Stringer("verdict", verdict))

		if verdict == Approved {
			out.Artifact = draft
			out.Approved = true
			return out, nil
		}

		fb := ParseFeedback(review)
		out.Feedback = append(out.Feedback, fb)

		if p.retriever != nil && round < p.rounds {
			augmented, err := p.retriever.Augment(ctx, fb, roundContext)
			if err != nil {
				p.logger.Warn("consensus: retrieval failed, keeping context",
					zap.Int("round", round), zap.Error(err))
			} else {
				roundContext = augmented
			}
		}
	}

	final, err := p.arbitrate(ctx, mission, draft, background, out.Feedback)
	out.Calls++
	if err != nil {
		return out, fmt.Errorf("consensus: arbitrator: %w", err)
	}
	p.logger.Info("consensus: arbitrated",
		zap.Int("rounds", out.Rounds),
		zap.Int("feedback", len(out.Feedback)))

	out.Artifact = final
	out.Arbitrated = true
	return out, nil
}

func (p *Protocol) review(ctx context.Context, mission, draft, background string) (string, error) {
	m, err := agent.PersonaFor(agent.RoleReviewer).Mission(agent.Brief{
		Mission: mission,
		Draft:   draftCode(draft),
	})
	if err != nil {
		return "", err
	}
	return p.team.Reviewer.Generate(ctx, m, background)
}

func (p *Protocol) arbitrate(ctx context.Context, mission, draft, background string, feedback []string) (string, error) {
	m, err := agent.PersonaFor(agent.RoleArbitrator).Mission(agent.Brief{
		Mission:  mission,
		Draft:    draftCode(draft),
		Feedback: feedback,
	})
	if err != nil {
		return "", err
	}
	return p.team.Arbitrator.Generate(ctx, m, background)
}

// draftCode shows the reviewer the code of a draft when it can be extracted,
// the raw draft otherwise.
func draftCode(draft string) string {
	if frag := synth.Sanitize(draft); !frag.Empty() {
		return frag.Body
	}
	return draft
}

// withFeedback folds the feedback history into the worker's context.
func withFeedback(background string, feedback []string) string {
	if len(feedback) == 0 {
		return background
	}
	var b strings.Builder
	b.WriteString(background)
	if background != "" {
		b.WriteString("\n\n")
	}
	b.WriteString("Reviewer feedback on earlier drafts:")
	for i, fb := range feedback {
		fmt.Fprintf(&b, "\n%d. %s", i+1, fb)
	}
	return b.String()
}

var verdictWord = regexp.MustCompile(`\b(APPROVED|REJECTED)\b`)

// negations flip a verdict word that follows them in the same clause.
var negations = map[string]bool{
	"not": true, "no": true, "never": true, "cannot": true, "can't": true,
	"won't": true, "isn't": true, "wasn't": true, "shouldn't": true, "wouldn't": true,
}

// negationWindow is how many words before a verdict word are checked.
const negationWindow = 3

// ParseVerdict reads a reviewer response. The status label wins; without one
// the first APPROVED or REJECTED word decides. A negated APPROVED ("cannot
// be APPROVED") and anything unrecognised are rejections.
func ParseVerdict(raw string) Verdict {
	if status, ok := synth.FindLabel(raw, synth.LabelStatus); ok {
		if v, ok := verdictIn(strings.ToUpper(status)); ok {
			return v
		}
	}
	if v, ok := verdictIn(raw); ok {
		return v
	}
	return Rejected
}

func verdictIn(s string) (Verdict, bool) {
	loc := verdictWord.FindStringIndex(s)
	if loc == nil {
		return Rejected, false
	}
	if s[loc[0]:loc[1]] == "REJECTED" || negated(s[:loc[0]]) {
		return Rejected, true
	}
	return Approved, true
}

// negated reports whether the clause ending at the end of prefix contains a
// negation within negationWindow words.
func negated(prefix string) bool {
	if i := strings.LastIndexAny(prefix, ".!?;:,\n"); i >= 0 {
		prefix = prefix[i+1:]
	}
	words := strings.Fields(strings.ToLower(strings.ReplaceAll(prefix, "’", "'")))
	if len(words) > negationWindow {
		words = words[len(words)-negationWindow:]
	}
	for _, w := range words {
		if negations[strings.Trim(w, `"'()*_`)] {
			return true
		}
	}
	return false
}

// ParseFeedback returns the feedback label of a reviewer response, or the
// whole response with markup stripped.
func ParseFeedback(raw string) string {
	if fb, ok := synth.FindLabel(raw, synth.LabelFeedback); ok && strings.TrimSpace(fb) != "" {
		return strings.TrimSpace(fb)
	}
	return strings.TrimSpace(synth.StripMarkup(raw))
}
