//go:build gocv
// +build gocv

package app

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"plate-reader/internal/domain/entity"
	"plate-reader/internal/domain/plate"
	"plate-reader/internal/infrastructure/vision"
)

// syntheticFrame серый кадр 640×480 с белым номером 290×100, синей полосой
// сверху и семью тёмными символами.
func syntheticFrame() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 640, 480))
	fill := func(r image.Rectangle, c color.Color) {
		draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
	}
	fill(img.Rect, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	fill(image.Rect(170, 300, 460, 400), color.NRGBA{R: 230, G: 230, B: 230, A: 255})
	fill(image.Rect(170, 300, 460, 315), color.NRGBA{R: 20, G: 60, B: 200, A: 255})
	for i := 0; i < 7; i++ {
		x := 170 + 30 + 35*i
		fill(image.Rect(x, 320, x+20, 380), color.NRGBA{R: 20, G: 20, B: 20, A: 255})
	}
	return img
}

func plateOutline() entity.Contour {
	var pts []image.Point
	for x := 170; x < 460; x += 5 {
		pts = append(pts, image.Pt(x, 300))
	}
	for y := 300; y < 400; y += 5 {
		pts = append(pts, image.Pt(460, y))
	}
	for x := 460; x > 170; x -= 5 {
		pts = append(pts, image.Pt(x, 400))
	}
	for y := 400; y > 300; y -= 5 {
		pts = append(pts, image.Pt(170, y))
	}
	return entity.Contour{Points: pts}
}

type constOCR entity.OCRText

func (o constOCR) Recognize(context.Context, image.Image) (entity.OCRText, error) {
	return entity.OCRText(o), nil
}

func TestPipelineRead_SyntheticFrame(t *testing.T) {
	log, _ := test.NewNullLogger()
	warper := vision.NewPerspectiveWarper()
	judgeCfg := vision.DefaultJudgeConfig()
	judge := vision.NewBinarizationJudge(judgeCfg)

	p := NewPipeline(PipelineDeps{
		Edges:         fakeEdges{contours: []entity.Contour{plateOutline()}},
		Generator:     vision.NewCandidateGenerator(vision.DefaultGeneratorConfig(), warper, judge, nil, log),
		Warper:        warper,
		Binarizer:     judge,
		Segmenter:     vision.NewCharacterSegmenter(judgeCfg.Rules),
		Recognizer:    constOCR{Text: "ABC1D23", Confidences: confs(7, 0.95)},
		Colors:        vision.NewHSVColorAnalyzer(vision.DefaultColorConfig()),
		Validator:     plate.NewValidator(0.65),
		Disambiguator: plate.NewDisambiguator(0.12),
	}, PipelineOptions{TopK: 5, CropWidth: 400, CropHeight: 130}, log)

	reading, err := p.Read(context.Background(), syntheticFrame(), nil)
	require.NoError(t, err)
	require.True(t, reading.Found())
	require.Equal(t, "ABC1D23", reading.Text)
	require.Equal(t, entity.FormatMercosul, reading.Format)
	require.Equal(t, 0, reading.SourceCandidateRank)
	require.InDelta(t, 0.95, reading.Confidence, 1e-9)
	require.Greater(t, reading.Colors.UpperBlueRatio, 0.12)
	require.True(t, reading.Candidates[0].Shrunk)
	require.NotNil(t, reading.Binary)
}
