package entity

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderQuad_PermutationInvariant(t *testing.T) {
	tl, tr, br, bl := Pt(10, 12), Pt(110, 8), Pt(115, 50), Pt(5, 55)
	want := Quad{TL: tl, TR: tr, BR: br, BL: bl}

	pts := [4]Point{tl, tr, br, bl}
	var permute func(k int)
	permute = func(k int) {
		if k == len(pts) {
			require.Equal(t, want, OrderQuad(pts))
			return
		}
		for i := k; i < len(pts); i++ {
			pts[k], pts[i] = pts[i], pts[k]
			permute(k + 1)
			pts[k], pts[i] = pts[i], pts[k]
		}
	}
	permute(0)
}

func TestQuad_AspectRatio(t *testing.T) {
	q := RectQuad(image.Rect(0, 0, 308, 100))
	require.InDelta(t, 3.08, q.AspectRatio(), 1e-9)
	require.InDelta(t, 308*100, q.Area(), 1e-9)

	require.Zero(t, Quad{}.AspectRatio())
}

func TestQuad_ShrinkCapsVertexMove(t *testing.T) {
	q := RectQuad(image.Rect(0, 0, 300, 100))
	s := q.Shrink(0.25, 0.15)

	maxMove := 0.15 * 100
	for i, p := range s.Points() {
		moved := p.Sub(q.Points()[i]).Norm()
		require.LessOrEqual(t, moved, maxMove+1e-9)
	}
	// смещение к центру: (150,50) - (0,0) = 158 * 0.25 > 15, значит упираемся в предел
	require.InDelta(t, maxMove, s.TL.Sub(q.TL).Norm(), 1e-9)
	require.Less(t, s.Area(), q.Area())
	require.InDelta(t, q.Centroid().X, s.Centroid().X, 1e-9)
	require.InDelta(t, q.Centroid().Y, s.Centroid().Y, 1e-9)
}

func TestQuad_ShrinkSmallMoveNotCapped(t *testing.T) {
	q := RectQuad(image.Rect(0, 0, 40, 100))
	s := q.Shrink(0.1, 0.15)
	// до центра (20,50) ≈ 53.85, 10% = 5.385 < 15
	require.InDelta(t, math.Hypot(20, 50)*0.1, s.TL.Sub(q.TL).Norm(), 1e-9)
}

func TestQuad_IoU(t *testing.T) {
	a := RectQuad(image.Rect(0, 0, 100, 100))
	b := RectQuad(image.Rect(50, 0, 150, 100))

	require.InDelta(t, 1.0, a.IoU(a), 1e-9)
	require.InDelta(t, 5000.0/15000.0, a.IoU(b), 1e-9)
	require.Zero(t, a.IoU(RectQuad(image.Rect(200, 200, 300, 300))))
}

func TestContour_Geometry(t *testing.T) {
	c := Contour{Points: []image.Point{{10, 10}, {60, 10}, {60, 30}, {10, 30}}}
	require.InDelta(t, 1000, c.Area(), 1e-9)
	require.InDelta(t, 140, c.Perimeter(), 1e-9)
	require.Equal(t, image.Rect(10, 10, 61, 31), c.Bounds())
}
