//go:build gocv
// +build gocv

package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func binaryWithBlobs(rects ...image.Rectangle) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, 400, 130))
	for _, r := range rects {
		fillRect(g, r, color.Gray{Y: 255})
	}
	return g
}

func rowOfBlobs(n, step int) []image.Rectangle {
	rects := make([]image.Rectangle, n)
	for i := range rects {
		x := 10 + step*i
		rects[i] = image.Rect(x, 35, x+20, 95)
	}
	return rects
}

func TestJudgeScore_SevenAlignedIsTop(t *testing.T) {
	j := NewBinarizationJudge(DefaultJudgeConfig())

	score := j.Score(binaryWithBlobs(rowOfBlobs(7, 50)...))
	require.InDelta(t, 1.0, score, 1e-9)

	misaligned := rowOfBlobs(7, 50)
	misaligned[2] = misaligned[2].Add(image.Pt(0, 30))
	misaligned[5] = misaligned[5].Add(image.Pt(0, -30))
	require.Less(t, j.Score(binaryWithBlobs(misaligned...)), score)
}

func TestJudgeScore_RejectsWrongCounts(t *testing.T) {
	j := NewBinarizationJudge(DefaultJudgeConfig())

	require.Zero(t, j.Score(binaryWithBlobs(rowOfBlobs(2, 50)...)))
	require.Zero(t, j.Score(binaryWithBlobs(rowOfBlobs(10, 38)...)))
}

func TestJudgeScore_IgnoresImplausibleBlobs(t *testing.T) {
	j := NewBinarizationJudge(DefaultJudgeConfig())

	blobs := rowOfBlobs(7, 50)
	// широкая полоса и точка не считаются символами
	blobs = append(blobs, image.Rect(0, 0, 400, 10), image.Rect(380, 110, 383, 113))
	require.InDelta(t, 1.0, j.Score(binaryWithBlobs(blobs...)), 1e-9)
}

func TestBinarize_PicksDarkTextRecipe(t *testing.T) {
	j := NewBinarizationJudge(DefaultJudgeConfig())

	variants, err := j.Variants(plateCrop(7))
	require.NoError(t, err)
	require.Len(t, variants, 2)

	best, err := j.Binarize(plateCrop(7))
	require.NoError(t, err)
	require.Equal(t, "dark_blackhat", best.RecipeID)
	require.Greater(t, best.JudgeScore, 0.95)
	require.Equal(t, image.Rect(0, 0, 400, 130), best.Image.Rect)
}

func TestBinarize_BlankCropIsUnusable(t *testing.T) {
	j := NewBinarizationJudge(DefaultJudgeConfig())

	v, err := j.Binarize(fillGray(400, 130, 230))
	require.ErrorIs(t, err, ErrNoUsableBinarization)
	require.NotNil(t, v.Image)
	for _, p := range v.Image.Pix {
		require.Zero(t, p)
	}
}
