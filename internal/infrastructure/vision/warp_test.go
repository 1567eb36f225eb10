package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"plate-reader/internal/domain/entity"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 2), G: uint8(y * 4), B: 100, A: 255})
		}
	}
	return img
}

func TestWarp_AxisAlignedQuadIsCrop(t *testing.T) {
	src := gradient(100, 50)
	quad := entity.Quad{TL: entity.Pt(10, 10), TR: entity.Pt(59, 10), BR: entity.Pt(59, 29), BL: entity.Pt(10, 29)}

	out, err := NewPerspectiveWarper().Warp(src, quad, 50, 20)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 50, 20), out.Rect)

	for _, p := range []image.Point{{0, 0}, {49, 0}, {49, 19}, {0, 19}, {25, 10}} {
		require.Equal(t, src.NRGBAAt(p.X+10, p.Y+10), out.NRGBAAt(p.X, p.Y), "pixel %v", p)
	}
}

func TestWarp_DegenerateQuad(t *testing.T) {
	src := gradient(100, 50)
	flat := entity.Quad{TL: entity.Pt(10, 10), TR: entity.Pt(50, 10), BR: entity.Pt(50, 10), BL: entity.Pt(10, 10)}

	_, err := NewPerspectiveWarper().Warp(src, flat, 40, 20)
	require.ErrorIs(t, err, ErrDegenerateQuad)
}

func TestScoringSize(t *testing.T) {
	w, h := scoringSize(4.7)
	require.Equal(t, [2]int{520, 110}, [2]int{w, h})
	w, h = scoringSize(3.0)
	require.Equal(t, [2]int{400, 130}, [2]int{w, h})
	w, h = scoringSize(1.2)
	require.Equal(t, [2]int{200, 160}, [2]int{w, h})
	w, h = scoringSize(2.0)
	require.Equal(t, [2]int{300, 150}, [2]int{w, h})
}
