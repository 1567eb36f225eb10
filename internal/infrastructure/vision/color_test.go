//go:build gocv
// +build gocv

package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHSVColorAnalyzer_BlueStripOnTop(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 40))
	fillRect(img, img.Bounds(), color.NRGBA{R: 235, G: 235, B: 235, A: 255})
	fillRect(img, image.Rect(0, 0, 100, 10), color.NRGBA{R: 20, G: 60, B: 200, A: 255})

	stats := NewHSVColorAnalyzer(DefaultColorConfig()).Analyze(img)
	require.InDelta(t, 0.25, stats.BlueRatio, 1e-9)
	require.InDelta(t, 0.5, stats.UpperBlueRatio, 1e-9)
	require.Zero(t, stats.RedRatio)
}

func TestHSVColorAnalyzer_Red(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	fillRect(img, img.Bounds(), color.NRGBA{R: 200, G: 20, B: 20, A: 255})

	stats := NewHSVColorAnalyzer(DefaultColorConfig()).Analyze(img)
	require.InDelta(t, 1.0, stats.RedRatio, 1e-9)
	require.InDelta(t, 1.0, stats.UpperRedRatio, 1e-9)
	require.Zero(t, stats.BlueRatio)
}
