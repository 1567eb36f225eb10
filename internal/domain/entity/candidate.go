package entity

import (
	"image"
	"math"
)

// CandidateSource откуда получена гипотеза.
type CandidateSource string

const (
	SourceContourAnalysis   CandidateSource = "contour_analysis"
	SourceSecondaryDetector CandidateSource = "secondary_detector"
)

// PlatePattern именованный шаблон пропорций номера.
type PlatePattern string

const (
	PatternOld        PlatePattern = "br_old"
	PatternMercosul   PlatePattern = "br_mercosul"
	PatternMotorcycle PlatePattern = "br_motorcycle"
	PatternUS         PlatePattern = "us"
	PatternEU         PlatePattern = "eu"
)

// AspectPattern целевое отношение сторон и относительный допуск.
type AspectPattern struct {
	Pattern   PlatePattern
	Ideal     float64
	Tolerance float64
}

// DefaultAspectPatterns таблица шаблонов по умолчанию.
func DefaultAspectPatterns() []AspectPattern {
	return []AspectPattern{
		{Pattern: PatternOld, Ideal: 3.08, Tolerance: 0.20},
		{Pattern: PatternMercosul, Ideal: 2.89, Tolerance: 0.20},
		{Pattern: PatternMotorcycle, Ideal: 1.18, Tolerance: 0.15},
		{Pattern: PatternUS, Ideal: 2.00, Tolerance: 0.15},
		{Pattern: PatternEU, Ideal: 4.73, Tolerance: 0.15},
	}
}

// AspectScoreCeiling максимум оценки пропорций.
const AspectScoreCeiling = 0.9

// MatchAspect ищет ближайший шаблон в пределах допуска.
// Оценка линейно падает от 0.9 при идеальном отношении до 0 на границе допуска.
func MatchAspect(ratio float64, patterns []AspectPattern) (AspectPattern, float64, bool) {
	var (
		best  AspectPattern
		score float64
		found bool
	)
	for _, p := range patterns {
		if p.Ideal <= 0 || p.Tolerance <= 0 {
			continue
		}
		diff := math.Abs(ratio-p.Ideal) / p.Ideal
		if diff > p.Tolerance {
			continue
		}
		s := (1 - diff/p.Tolerance) * AspectScoreCeiling
		if !found || s > score {
			best, score, found = p, s, true
		}
	}
	return best, score, found
}

// ScoreBreakdown составляющие итоговой оценки кандидата.
type ScoreBreakdown struct {
	Aspect       float64 `json:"aspect"`
	Segmentation float64 `json:"segmentation"`
	Solidity     float64 `json:"solidity"`
	Position     float64 `json:"position"`
	Area         float64 `json:"area"`
}

// ScoreWeights веса составляющих.
type ScoreWeights struct {
	Aspect       float64
	Segmentation float64
	Solidity     float64
	Position     float64
	Area         float64
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Aspect: 1.5, Segmentation: 2.0, Solidity: 0.8, Position: 0.3, Area: 0.4}
}

// Combine взвешенная сумма составляющих.
func (w ScoreWeights) Combine(b ScoreBreakdown) float64 {
	return w.Aspect*b.Aspect +
		w.Segmentation*b.Segmentation +
		w.Solidity*b.Solidity +
		w.Position*b.Position +
		w.Area*b.Area
}

// Candidate гипотеза области номера.
type Candidate struct {
	Quad    Quad
	Box     image.Rectangle
	Source  CandidateSource
	Pattern PlatePattern
	Ratio   float64
	Scores  ScoreBreakdown
	Score   float64
	// Shrunk выставляется только у лучшего кандидата после ранжирования.
	Shrunk bool
}
