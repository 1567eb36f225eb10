//go:build gocv
// +build gocv

package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"plate-reader/internal/domain/entity"
)

func TestGenerate_ScoresAndShrinksTop(t *testing.T) {
	frame := fillGray(640, 480, 90)
	contours := []entity.Contour{
		rectContour(170, 300, 478, 400, 5), // 3.08 — старый формат
		rectContour(100, 60, 300, 160, 5),  // 2.0 — US
	}

	got := newTestGenerator(nil).Generate(context.Background(), frame, contours)
	require.Len(t, got, 2)

	top := got[0]
	require.Equal(t, entity.PatternOld, top.Pattern)
	require.Equal(t, entity.SourceContourAnalysis, top.Source)
	require.True(t, top.Shrunk)
	require.InDelta(t, 0.9, top.Scores.Aspect, 1e-9)
	require.InDelta(t, 0.5, top.Scores.Segmentation, 1e-9)
	require.InDelta(t, 1.0, top.Scores.Solidity, 1e-9)
	require.InDelta(t, 350.0/480.0, top.Scores.Position, 1e-9)
	require.InDelta(t, entity.DefaultScoreWeights().Combine(top.Scores), top.Score, 1e-9)
	require.Less(t, top.Quad.Area(), 308.0*100.0)

	require.Equal(t, entity.PatternUS, got[1].Pattern)
	require.False(t, got[1].Shrunk)
	require.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestGenerate_DropsDuplicateContours(t *testing.T) {
	frame := fillGray(640, 480, 90)
	c := rectContour(170, 300, 478, 400, 5)

	got := newTestGenerator(nil).Generate(context.Background(), frame, []entity.Contour{c, c, c})
	require.Len(t, got, 1)
}
