package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchAspect_Monotonic(t *testing.T) {
	patterns := DefaultAspectPatterns()

	p, exact, ok := MatchAspect(3.08, patterns)
	require.True(t, ok)
	require.Equal(t, PatternOld, p.Pattern)
	require.InDelta(t, 0.9, exact, 1e-9)

	_, near, ok := MatchAspect(3.08*1.10, patterns)
	require.True(t, ok)
	require.InDelta(t, 0.45, near, 1e-9)

	_, edge, ok := MatchAspect(3.08*1.19, patterns)
	require.True(t, ok)
	require.InDelta(t, 0.045, edge, 1e-9)

	require.Greater(t, exact, near)
	require.Greater(t, near, edge)
	require.Greater(t, edge, 0.0)

	_, outside, ok := MatchAspect(3.08*1.25, patterns)
	require.False(t, ok)
	require.Zero(t, outside)
}

func TestMatchAspect_Motorcycle(t *testing.T) {
	p, score, ok := MatchAspect(1.18, DefaultAspectPatterns())
	require.True(t, ok)
	require.Equal(t, PatternMotorcycle, p.Pattern)
	require.InDelta(t, 0.9, score, 1e-9)
}

func TestScoreWeights_Combine(t *testing.T) {
	w := DefaultScoreWeights()
	got := w.Combine(ScoreBreakdown{Aspect: 1, Segmentation: 1, Solidity: 1, Position: 1, Area: 1})
	require.InDelta(t, 5.0, got, 1e-9)
	require.Greater(t, w.Segmentation, w.Aspect)
	require.Greater(t, w.Aspect, w.Solidity)
}
