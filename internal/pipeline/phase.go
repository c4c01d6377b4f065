package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrIllegalTransition is returned when a run tries to move between phases
// the transition table does not connect. It signals a programming error.
var ErrIllegalTransition = errors.New("pipeline: illegal phase transition")

// Phase is a step of one generation run.
type Phase int

const (
	PhaseAnalyzing Phase = iota
	PhaseSkeletonGenerated
	PhaseMembersGenerated
	PhaseAssembled
	PhasePersisted
	PhaseVerifying
	PhaseVerifiedOK
	PhaseRepairing
	PhaseMaxRetriesExhausted
	PhaseRepairAborted
)

var phaseNames = [...]string{
	"analyzing",
	"skeleton-generated",
	"members-generated",
	"assembled",
	"persisted",
	"verifying",
	"verified-ok",
	"repairing",
	"max-retries-exhausted",
	"repair-aborted",
}

func (p Phase) String() string {
	if int(p) >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, bool) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), true
		}
	}
	return 0, false
}

// Terminal reports whether a run ends in p.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseVerifiedOK, PhaseMaxRetriesExhausted, PhaseRepairAborted:
		return true
	}
	return false
}

// transitions is the fixed table of legal moves.
var transitions = map[Phase][]Phase{
	PhaseAnalyzing:         {PhaseSkeletonGenerated},
	PhaseSkeletonGenerated: {PhaseMembersGenerated},
	PhaseMembersGenerated:  {PhaseAssembled},
	PhaseAssembled:         {PhasePersisted},
	PhasePersisted:         {PhaseVerifying},
	PhaseVerifying:         {PhaseVerifiedOK, PhaseRepairing, PhaseMaxRetriesExhausted},
	PhaseRepairing:         {PhaseAssembled, PhaseRepairAborted},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition records one phase change.
type Transition struct {
	From    Phase
	To      Phase
	Attempt int
	At      time.Time
}

// State is the coordinator-owned state of one run.
type State struct {
	Phase      Phase
	Attempt    int // repair calls made so far
	Diagnostic string
	History    []Transition

	now func() time.Time
}

// NewState starts a run in PhaseAnalyzing.
func NewState(now func() time.Time) *State {
	if now == nil {
		now = time.Now
	}
	return &State{Phase: PhaseAnalyzing, now: now}
}

// Advance moves the state to next. Entering PhaseRepairing counts one repair
// attempt.
func (s *State) Advance(next Phase) error {
	if !CanTransition(s.Phase, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.Phase, next)
	}
	if next == PhaseRepairing {
		s.Attempt++
	}
	s.History = append(s.History, Transition{
		From:    s.Phase,
		To:      next,
		Attempt: s.Attempt,
		At:      s.now(),
	})
	s.Phase = next
	return nil
}
