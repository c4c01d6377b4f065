package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_String(t *testing.T) {
	for i := range phaseNames {
		p := Phase(i)
		got, ok := ParsePhase(p.String())
		require.True(t, ok, p.String())
		assert.Equal(t, p, got)
	}
	assert.Equal(t, "Phase(42)", Phase(42).String())
	_, ok := ParsePhase("done")
	assert.False(t, ok)
}

func TestPhase_Terminal(t *testing.T) {
	for i := range phaseNames {
		p := Phase(i)
		// Terminal phases have no way out and every other phase has one.
		assert.Equal(t, p.Terminal(), len(transitions[p]) == 0, p.String())
	}
}

func TestState_LegalPath(t *testing.T) {
	tick := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewState(func() time.Time { return tick })

	path := []Phase{
		PhaseSkeletonGenerated,
		PhaseMembersGenerated,
		PhaseAssembled,
		PhasePersisted,
		PhaseVerifying,
		PhaseRepairing,
		PhaseAssembled,
		PhasePersisted,
		PhaseVerifying,
		PhaseRepairing,
		PhaseRepairAborted,
	}
	for _, next := range path {
		require.NoError(t, s.Advance(next))
	}

	assert.Equal(t, PhaseRepairAborted, s.Phase)
	assert.Equal(t, 2, s.Attempt)
	require.Len(t, s.History, len(path))
	assert.Equal(t, Transition{From: PhaseAnalyzing, To: PhaseSkeletonGenerated, At: tick}, s.History[0])
	assert.Equal(t, Transition{From: PhaseVerifying, To: PhaseRepairing, Attempt: 1, At: tick}, s.History[5])
}

func TestState_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		from []Phase // legal path to the starting phase
		to   Phase
	}{
		{name: "skip skeleton", to: PhaseMembersGenerated},
		{name: "verify before persist", from: []Phase{PhaseSkeletonGenerated, PhaseMembersGenerated, PhaseAssembled}, to: PhaseVerifying},
		{name: "repair without verify", from: []Phase{PhaseSkeletonGenerated, PhaseMembersGenerated, PhaseAssembled}, to: PhaseRepairing},
		{name: "leave terminal", from: []Phase{PhaseSkeletonGenerated, PhaseMembersGenerated, PhaseAssembled, PhasePersisted, PhaseVerifying, PhaseVerifiedOK}, to: PhaseRepairing},
		{name: "self loop", to: PhaseAnalyzing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(nil)
			for _, p := range tt.from {
				require.NoError(t, s.Advance(p))
			}
			before := *s

			err := s.Advance(tt.to)
			require.ErrorIs(t, err, ErrIllegalTransition)
			assert.Equal(t, before.Phase, s.Phase)
			assert.Len(t, s.History, len(before.History))
		})
	}
}
