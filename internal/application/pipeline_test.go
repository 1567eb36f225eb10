package app

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"plate-reader/internal/domain/entity"
	"plate-reader/internal/domain/plate"
)

type fakeEdges struct {
	contours []entity.Contour
	err      error
}

func (f fakeEdges) Detect(context.Context, image.Image) (*entity.EdgeMap, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entity.EdgeMap{Edges: image.NewGray(image.Rect(0, 0, 1, 1)), Contours: f.contours}, nil
}

type fixedGenerator []entity.Candidate

func (g fixedGenerator) Generate(context.Context, image.Image, []entity.Contour) []entity.Candidate {
	return g
}

// markWarper заливает кроп яркостью TL.X четырёхугольника, чтобы фейки
// ниже по конвейеру знали, какой кандидат обрабатывают.
type markWarper struct{}

func (markWarper) Warp(_ image.Image, quad entity.Quad, w, h int) (*image.NRGBA, error) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	v := uint8(quad.TL.X)
	draw.Draw(img, img.Rect, &image.Uniform{C: color.NRGBA{R: v, G: v, B: v, A: 255}}, image.Point{}, draw.Src)
	return img, nil
}

func markOf(img image.Image) uint8 {
	b := img.Bounds()
	v := color.GrayModel.Convert(img.At(b.Min.X, b.Min.Y)).(color.Gray).Y
	if v > 127 {
		v = 255 - v
	}
	return v
}

type markBinarizer struct {
	fail map[uint8]bool
}

func (b markBinarizer) Binarize(crop image.Image) (entity.BinarizationVariant, error) {
	mark := markOf(crop)
	g := image.NewGray(crop.Bounds())
	draw.Draw(g, g.Rect, &image.Uniform{C: color.Gray{Y: mark}}, image.Point{}, draw.Src)
	v := entity.BinarizationVariant{RecipeID: "fake", Image: g, JudgeScore: 0.5}
	if b.fail[mark] {
		return v, errors.New("judge below floor")
	}
	return v, nil
}

type fixedSegmenter []entity.CharacterBlob

func (s fixedSegmenter) Segment(*image.Gray) []entity.CharacterBlob { return s }

type fixedColors entity.ColorStats

func (c fixedColors) Analyze(image.Image) entity.ColorStats { return entity.ColorStats(c) }

// markOCR отвечает по метке изображения и считает вызовы.
type markOCR struct {
	mu      sync.Mutex
	answers map[uint8]entity.OCRText
	panics  map[uint8]bool
	calls   map[uint8]int
}

func newMarkOCR(answers map[uint8]entity.OCRText) *markOCR {
	return &markOCR{answers: answers, panics: map[uint8]bool{}, calls: map[uint8]int{}}
}

func (o *markOCR) Recognize(_ context.Context, img image.Image) (entity.OCRText, error) {
	mark := markOf(img)
	o.mu.Lock()
	o.calls[mark]++
	o.mu.Unlock()
	if o.panics[mark] {
		panic("engine crashed")
	}
	if out, ok := o.answers[mark]; ok {
		return out, nil
	}
	return entity.OCRText{}, errors.New("no text")
}

// scriptedOCR отдаёт ответы по очереди.
type scriptedOCR struct {
	answers []entity.OCRText
}

func (o *scriptedOCR) Recognize(context.Context, image.Image) (entity.OCRText, error) {
	if len(o.answers) == 0 {
		return entity.OCRText{}, errors.New("script exhausted")
	}
	out := o.answers[0]
	o.answers = o.answers[1:]
	return out, nil
}

type recorder struct {
	events []entity.ProgressEvent
}

func (r *recorder) Notify(e entity.ProgressEvent) { r.events = append(r.events, e) }

func (r *recorder) steps(step entity.ProgressStep) int {
	n := 0
	for _, e := range r.events {
		if e.Step == step {
			n++
		}
	}
	return n
}

func candidateAt(x float64, score float64) entity.Candidate {
	return entity.Candidate{
		Quad:  entity.OrderQuad([4]entity.Point{entity.Pt(x, 10), entity.Pt(x+300, 10), entity.Pt(x+300, 110), entity.Pt(x, 110)}),
		Score: score,
	}
}

func confs(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newFakePipeline(cands []entity.Candidate, bin markBinarizer, ocr interface {
	Recognize(context.Context, image.Image) (entity.OCRText, error)
}, colors entity.ColorStats, opts PipelineOptions) *Pipeline {
	log, _ := test.NewNullLogger()
	return NewPipeline(PipelineDeps{
		Edges:         fakeEdges{},
		Generator:     fixedGenerator(cands),
		Warper:        markWarper{},
		Binarizer:     bin,
		Segmenter:     fixedSegmenter(nil),
		Recognizer:    ocr,
		Colors:        fixedColors(colors),
		Validator:     plate.NewValidator(0.65),
		Disambiguator: plate.NewDisambiguator(0.12),
	}, opts, log)
}

func testFrame() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 640, 480))
}

func TestPipelineRead_StopsAtFirstValidCandidate(t *testing.T) {
	ocr := newMarkOCR(map[uint8]entity.OCRText{
		20: {Text: "XYZ"},
		30: {Text: "ABC1234", Confidences: confs(7, 0.9)},
		40: {Text: "DEF5678"},
	})
	p := newFakePipeline(
		[]entity.Candidate{candidateAt(10, 0.9), candidateAt(20, 0.8), candidateAt(30, 0.7), candidateAt(40, 0.6)},
		markBinarizer{fail: map[uint8]bool{10: true}},
		ocr,
		entity.ColorStats{},
		PipelineOptions{TopK: 5},
	)

	reading, err := p.Read(context.Background(), testFrame(), nil)
	require.NoError(t, err)
	require.True(t, reading.Found())
	require.Equal(t, "ABC1234", reading.Text)
	require.Equal(t, entity.FormatOld, reading.Format)
	require.Equal(t, 2, reading.SourceCandidateRank)
	require.InDelta(t, 0.9, reading.Confidence, 1e-9)

	require.Len(t, reading.Attempts, 3)
	require.Equal(t, entity.OutcomeBadBinarization, reading.Attempts[0].Outcome)
	require.Equal(t, entity.OutcomeValidationEmpty, reading.Attempts[1].Outcome)
	require.Equal(t, entity.OutcomeSuccess, reading.Attempts[2].Outcome)
	require.Zero(t, ocr.calls[10])
	require.Zero(t, ocr.calls[40])
}

func TestPipelineRead_Exhausted(t *testing.T) {
	ocr := newMarkOCR(map[uint8]entity.OCRText{
		10: {Text: "??"},
		30: {Text: "ABC1234"},
	})
	ocr.panics[20] = true
	p := newFakePipeline(
		[]entity.Candidate{candidateAt(10, 0.9), candidateAt(20, 0.8), candidateAt(50, 0.7), candidateAt(30, 0.6)},
		markBinarizer{},
		ocr,
		entity.ColorStats{},
		PipelineOptions{TopK: 3},
	)
	rec := &recorder{}

	reading, err := p.Read(context.Background(), testFrame(), rec)
	require.NoError(t, err)
	require.False(t, reading.Found())
	require.Equal(t, entity.StatusInvalid, reading.Status)
	require.Equal(t, -1, reading.SourceCandidateRank)
	require.Len(t, reading.Attempts, 3)
	require.Equal(t, entity.OutcomeValidationEmpty, reading.Attempts[0].Outcome)
	require.Equal(t, entity.OutcomeOCRFailed, reading.Attempts[1].Outcome)
	require.Equal(t, entity.OutcomeOCRFailed, reading.Attempts[2].Outcome)
	require.Zero(t, ocr.calls[30])

	require.Equal(t, 2, rec.steps(entity.StepFallback))
	require.Equal(t, 3, rec.steps(entity.StepCandidate))
	require.Equal(t, entity.StepFinalResult, rec.events[len(rec.events)-1].Step)
}

func TestPipelineRead_NoCandidates(t *testing.T) {
	p := newFakePipeline(nil, markBinarizer{}, newMarkOCR(nil), entity.ColorStats{}, PipelineOptions{})

	reading, err := p.Read(context.Background(), testFrame(), nil)
	require.NoError(t, err)
	require.Equal(t, entity.StatusNoCandidate, reading.Status)
	require.Empty(t, reading.Attempts)
}

func TestPipelineRead_EdgeFailurePropagates(t *testing.T) {
	p := newFakePipeline(nil, markBinarizer{}, newMarkOCR(nil), entity.ColorStats{}, PipelineOptions{})
	boom := errors.New("camera offline")
	p.deps.Edges = fakeEdges{err: boom}

	_, err := p.Read(context.Background(), testFrame(), nil)
	require.ErrorIs(t, err, boom)
}

func TestPipelineRead_ObserverPanicIsSwallowed(t *testing.T) {
	ocr := newMarkOCR(map[uint8]entity.OCRText{10: {Text: "ABC1234"}})
	p := newFakePipeline([]entity.Candidate{candidateAt(10, 0.9)}, markBinarizer{}, ocr, entity.ColorStats{}, PipelineOptions{})

	observer := portFunc(func(entity.ProgressEvent) { panic("observer crashed") })
	reading, err := p.Read(context.Background(), testFrame(), observer)
	require.NoError(t, err)
	require.Equal(t, "ABC1234", reading.Text)
}

func TestPipelineRead_SeparatorKeepsOldFormat(t *testing.T) {
	ocr := newMarkOCR(map[uint8]entity.OCRText{10: {Text: "ABC-1D23"}})
	p := newFakePipeline([]entity.Candidate{candidateAt(10, 0.9)}, markBinarizer{}, ocr,
		entity.ColorStats{UpperBlueRatio: 0.4}, PipelineOptions{})

	reading, err := p.Read(context.Background(), testFrame(), nil)
	require.NoError(t, err)
	require.Equal(t, "ABC1023", reading.Text)
	require.Equal(t, entity.FormatOld, reading.Format)
	// без уверенностей берётся оценка судьи
	require.InDelta(t, 0.5, reading.Confidence, 1e-9)
}

func TestPipelineRead_CharacterFallback(t *testing.T) {
	var blobs []entity.CharacterBlob
	for i := 0; i < 7; i++ {
		blobs = append(blobs, entity.CharacterBlob{Box: image.Rect(30+50*i, 35, 50+50*i, 95), Order: i})
	}
	answers := []entity.OCRText{{Text: ""}, {Text: "#!"}}
	for _, c := range "ABC1D23" {
		answers = append(answers, entity.OCRText{Text: string(c), Confidences: []float64{0.8}})
	}
	p := newFakePipeline([]entity.Candidate{candidateAt(10, 0.9)}, markBinarizer{}, &scriptedOCR{answers: answers},
		entity.ColorStats{UpperBlueRatio: 0.3}, PipelineOptions{CharacterFallback: true, CharacterPadding: 8})
	p.deps.Segmenter = fixedSegmenter(blobs)

	reading, err := p.Read(context.Background(), testFrame(), nil)
	require.NoError(t, err)
	require.Equal(t, "ABC1D23", reading.Text)
	require.Equal(t, entity.FormatMercosul, reading.Format)
	require.InDelta(t, 0.8, reading.Confidence, 1e-9)
	require.Equal(t, "|#!|ABC1D23", reading.Attempts[0].RawText)
}

// spyWarper запоминает четырёхугольники, переданные на выпрямление.
type spyWarper struct {
	markWarper
	quads []entity.Quad
}

func (w *spyWarper) Warp(frame image.Image, quad entity.Quad, width, height int) (*image.NRGBA, error) {
	w.quads = append(w.quads, quad)
	return w.markWarper.Warp(frame, quad, width, height)
}

func TestPipelineRead_ShrinksFallbackCandidates(t *testing.T) {
	top := candidateAt(10, 0.9)
	top.Shrunk = true
	next := candidateAt(100, 0.8)

	ocr := &scriptedOCR{answers: []entity.OCRText{{Text: "ABC1234"}}}
	p := newFakePipeline([]entity.Candidate{top, next}, markBinarizer{fail: map[uint8]bool{10: true}}, ocr,
		entity.ColorStats{}, PipelineOptions{ShrinkFactor: 0.25, ShrinkCap: 0.15})
	warper := &spyWarper{}
	p.deps.Warper = warper

	reading, err := p.Read(context.Background(), testFrame(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, reading.SourceCandidateRank)

	shrunk := next.Quad.Shrink(0.25, 0.15)
	require.Equal(t, []entity.Quad{top.Quad, shrunk}, warper.quads)
	require.Equal(t, shrunk, reading.Quad)
	require.Less(t, shrunk.Area(), next.Quad.Area())
}

type portFunc func(entity.ProgressEvent)

func (f portFunc) Notify(e entity.ProgressEvent) { f(e) }
