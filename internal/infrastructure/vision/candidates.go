package vision

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"plate-reader/internal/domain/entity"
	"plate-reader/internal/domain/port"
)

// CropScorer оценивает, насколько кроп похож на строку символов.
type CropScorer interface {
	Evaluate(crop image.Image) float64
}

// GeneratorConfig геометрические фильтры и веса ранжирования.
type GeneratorConfig struct {
	MinAreaRatio      float64
	MaxAreaRatio      float64
	MinWidth          int
	MinHeight         int
	BorderMargin      float64
	BorderMarginRatio float64
	MinBoxRatio       float64
	MaxBoxRatio       float64
	Epsilons          []float64
	Patterns          []entity.AspectPattern
	Weights           entity.ScoreWeights
	AreaScale         float64
	CascadeWeights    entity.ScoreWeights
	CascadeAreaScale  float64
	ShrinkFactor      float64
	ShrinkCap         float64
	DuplicateIoU      float64
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MinAreaRatio:      0.003,
		MaxAreaRatio:      0.25,
		MinWidth:          50,
		MinHeight:         15,
		BorderMargin:      20,
		BorderMarginRatio: 0.02,
		MinBoxRatio:       0.8,
		MaxBoxRatio:       6.0,
		Epsilons:          []float64{0.02, 0.03, 0.05, 0.08, 0.10},
		Patterns:          entity.DefaultAspectPatterns(),
		Weights:           entity.DefaultScoreWeights(),
		AreaScale:         15,
		CascadeWeights:    entity.ScoreWeights{Aspect: 2.0, Segmentation: 2.5, Position: 0.3, Area: 0.2},
		CascadeAreaScale:  20,
		ShrinkFactor:      0.25,
		ShrinkCap:         0.15,
		DuplicateIoU:      0.9,
	}
}

// CandidateGenerator превращает контуры (и прямоугольники каскада) в ранжированные гипотезы.
type CandidateGenerator struct {
	cfg    GeneratorConfig
	warper port.Warper
	scorer CropScorer
	rects  port.RectDetector
	log    logrus.FieldLogger
}

// NewCandidateGenerator rects может быть nil.
func NewCandidateGenerator(cfg GeneratorConfig, warper port.Warper, scorer CropScorer, rects port.RectDetector, log logrus.FieldLogger) *CandidateGenerator {
	return &CandidateGenerator{cfg: cfg, warper: warper, scorer: scorer, rects: rects, log: log}
}

// Generate возвращает кандидатов по убыванию оценки. Пустой результат — не ошибка.
func (g *CandidateGenerator) Generate(ctx context.Context, frame image.Image, contours []entity.Contour) []entity.Candidate {
	img := toNRGBA(frame)
	size := img.Rect.Size()

	var candidates []entity.Candidate
	for _, c := range contours {
		box := c.Bounds()
		if !g.passesGeometry(c, box, size) {
			continue
		}
		quad, ok := g.extractQuad(c)
		if !ok {
			continue
		}
		solidity := 1.0
		if qa := quad.Area(); qa > 0 {
			solidity = math.Min(1, c.Area()/qa)
		}
		if cand, ok := g.score(img, quad, box, entity.SourceContourAnalysis, solidity); ok {
			candidates = append(candidates, cand)
		}
	}

	if g.rects != nil {
		rects, err := g.rects.DetectRects(ctx, frame)
		if err != nil {
			g.log.WithField("error", err).Warn("secondary detector failed")
		}
		for _, r := range rects {
			r = r.Sub(frame.Bounds().Min)
			if cand, ok := g.score(img, entity.RectQuad(r), r, entity.SourceSecondaryDetector, 1.0); ok {
				candidates = append(candidates, cand)
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	candidates = g.dropDuplicates(candidates)

	if len(candidates) > 0 && g.cfg.ShrinkFactor > 0 {
		top := &candidates[0]
		top.Quad = top.Quad.Shrink(g.cfg.ShrinkFactor, g.cfg.ShrinkCap)
		top.Shrunk = true
	}
	return candidates
}

func (g *CandidateGenerator) passesGeometry(c entity.Contour, box image.Rectangle, frame image.Point) bool {
	frameArea := float64(frame.X * frame.Y)
	if frameArea == 0 {
		return false
	}
	rel := c.Area() / frameArea
	if rel < g.cfg.MinAreaRatio || rel > g.cfg.MaxAreaRatio {
		return false
	}

	w, h := box.Dx(), box.Dy()
	if w < g.cfg.MinWidth || h < g.cfg.MinHeight {
		return false
	}

	margin := math.Min(g.cfg.BorderMargin, float64(min(frame.X, frame.Y))*g.cfg.BorderMarginRatio)
	if float64(box.Min.X) < margin || float64(box.Min.Y) < margin ||
		float64(box.Max.X) > float64(frame.X)-margin || float64(box.Max.Y) > float64(frame.Y)-margin {
		return false
	}

	ratio := float64(w) / float64(h)
	return ratio >= g.cfg.MinBoxRatio && ratio <= g.cfg.MaxBoxRatio
}

// extractQuad аппроксимирует контур четырёхугольником; если ни один допуск
// не дал ровно 4 вершины, берётся повёрнутый прямоугольник минимальной площади.
func (g *CandidateGenerator) extractQuad(c entity.Contour) (entity.Quad, bool) {
	perimeter := c.Perimeter()
	for _, eps := range g.cfg.Epsilons {
		approx, err := approxQuad(c.Points, eps*perimeter)
		if err != nil {
			g.log.WithField("error", err).Debug("polygon approximation failed")
			return entity.Quad{}, false
		}
		if len(approx) != 4 {
			continue
		}
		var pts [4]entity.Point
		for i, p := range approx {
			pts[i] = entity.Pt(float64(p.X), float64(p.Y))
		}
		return entity.OrderQuad(pts), true
	}

	rect, err := minAreaRect(c.Points)
	if err != nil {
		return entity.Quad{}, false
	}
	return entity.OrderQuad(rect), true
}

func (g *CandidateGenerator) score(frame *image.NRGBA, quad entity.Quad, box image.Rectangle, source entity.CandidateSource, solidity float64) (entity.Candidate, bool) {
	ratio := quad.AspectRatio()
	pattern, aspect, ok := entity.MatchAspect(ratio, g.cfg.Patterns)
	if !ok {
		return entity.Candidate{}, false
	}

	weights, areaScale := g.cfg.Weights, g.cfg.AreaScale
	if source == entity.SourceSecondaryDetector {
		weights, areaScale = g.cfg.CascadeWeights, g.cfg.CascadeAreaScale
	}

	size := frame.Rect.Size()
	scores := entity.ScoreBreakdown{
		Aspect:   aspect,
		Solidity: solidity,
		Position: math.Min(1, quad.Centroid().Y/float64(size.Y)),
		Area:     math.Min(1, quad.Area()/float64(size.X*size.Y)*areaScale),
	}

	w, h := scoringSize(ratio)
	if crop, err := g.warper.Warp(frame, quad, w, h); err == nil {
		scores.Segmentation = g.scorer.Evaluate(crop)
	} else {
		g.log.WithField("error", err).Debug("candidate warp failed during scoring")
	}

	return entity.Candidate{
		Quad:    quad,
		Box:     box,
		Source:  source,
		Pattern: pattern.Pattern,
		Ratio:   ratio,
		Scores:  scores,
		Score:   weights.Combine(scores),
	}, true
}

// dropDuplicates убирает кандидатов, почти совпадающих с уже принятым более сильным.
func (g *CandidateGenerator) dropDuplicates(sorted []entity.Candidate) []entity.Candidate {
	if g.cfg.DuplicateIoU <= 0 {
		return sorted
	}
	kept := sorted[:0:0]
	for _, c := range sorted {
		dup := false
		for _, k := range kept {
			if boxIoU(c.Box, k.Box) >= g.cfg.DuplicateIoU {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
		}
	}
	return kept
}

func boxIoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}
