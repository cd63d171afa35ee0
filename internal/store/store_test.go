package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/gate"
	"github.com/danielpatrickdp/cotherapist/internal/orchestrator"
	"github.com/danielpatrickdp/cotherapist/internal/reasoning"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ orchestrator.Recorder = (*Store)(nil)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "turns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fullTurn(id string) orchestrator.Turn {
	tox := 0.12
	score := eval.Score{Empathy: 0.8, Safety: 1, Overall: 0.7}
	ts := traits.Neutral()
	ts.Openness = 0.65
	return orchestrator.Turn{
		ID:               id,
		CreatedAt:        time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		UserText:         "I can't sleep",
		RetrievedContext: []string{"sleep hygiene helps"},
		Trace: []reasoning.Step{
			{Kind: reasoning.StepNeedsAssessment, Content: "general_support"},
			{Kind: reasoning.StepInitialResponse, Content: "Try a routine."},
		},
		ResponseText:  "Try a routine.",
		Safe:          true,
		ReasoningUsed: true,
		Signals:       gate.SafetySignals{ToxicityScore: &tox},
		Evaluation:    &score,
		Traits:        &ts,
		Duration:      1500 * time.Millisecond,
	}
}

func TestRecordAndGetTurn(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	want := fullTurn("t-1")
	require.NoError(t, s.RecordTurn(ctx, want))

	got, err := s.Turn(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecordMinimalTurn(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	crisis := orchestrator.Turn{
		ID:       "t-crisis",
		UserText: "I want to end my life",
		Signals:  gate.SafetySignals{CrisisDetected: true, CrisisType: gate.CrisisSuicide},
	}
	require.NoError(t, s.RecordTurn(ctx, crisis))

	got, err := s.Turn(ctx, "t-crisis")
	require.NoError(t, err)
	assert.False(t, got.Safe)
	assert.Nil(t, got.RetrievedContext)
	assert.Nil(t, got.Trace)
	assert.Nil(t, got.Evaluation)
	assert.Nil(t, got.Traits)
	assert.Equal(t, gate.CrisisSuicide, got.Signals.CrisisType)
	assert.False(t, got.CreatedAt.IsZero(), "created_at should be filled on insert")
}

func TestTurnNotFound(t *testing.T) {
	s := tempStore(t)
	_, err := s.Turn(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateIDRejected(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordTurn(ctx, fullTurn("dup")))
	assert.Error(t, s.RecordTurn(ctx, fullTurn("dup")))
}

func TestRecordRejectsUnencodableScores(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	turn := fullTurn("nan")
	turn.Evaluation = &eval.Score{Overall: math.NaN()}

	err := s.RecordTurn(ctx, turn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal evaluation")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTurnRejectsBadTimestamp(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turn_log (id, created_at, user_text, response, safe, crisis_detected,
			reasoning_used, signals_json, duration_ns)
		 VALUES ('bad-ts', 'yesterday', 'hi', 'hello', 1, 0, 0, '{}', 0)`)
	require.NoError(t, err)

	_, err = s.Turn(ctx, "bad-ts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "created_at")
}

func TestRecentAndCrisisTurns(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c", "d"} {
		turn := fullTurn(id)
		if i%2 == 1 {
			turn.Signals = gate.SafetySignals{CrisisDetected: true, CrisisType: gate.CrisisSelfHarm}
		}
		require.NoError(t, s.RecordTurn(ctx, turn))
	}

	recent, err := s.RecentTurns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"d", "c", "b"}, []string{recent[0].ID, recent[1].ID, recent[2].ID})

	crisis, err := s.CrisisTurns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, crisis, 2)
	assert.Equal(t, "d", crisis[0].ID)
	assert.Equal(t, "b", crisis[1].ID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestReopenKeepsTurns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turns.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordTurn(context.Background(), fullTurn("keep")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
