package vision

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"plate-reader/internal/domain/entity"
)

var ErrNoUsableBinarization = errors.New("no usable binarization")

// TextPolarity какой текст выделяет рецепт.
type TextPolarity int

const (
	DarkText  TextPolarity = iota // black-hat: тёмные символы на светлом фоне
	LightText                     // top-hat: светлые символы на тёмном фоне
)

// Recipe морфологический рецепт бинаризации.
type Recipe struct {
	ID       string
	Polarity TextPolarity
	KernelW  int
	KernelH  int
	Sigma    float64
}

// BlobRules условия правдоподобия символа.
type BlobRules struct {
	MinAspect    float64 // высота / ширина
	MaxAspect    float64
	MinAreaRatio float64 // площадь рамки к площади изображения, не включая границу
	MaxAreaRatio float64
	MinSolidity  float64
}

func (r BlobRules) plausible(b blob, total int) bool {
	w, h := b.Box.Dx(), b.Box.Dy()
	if w == 0 || total == 0 {
		return false
	}
	aspect := float64(h) / float64(w)
	if aspect < r.MinAspect || aspect > r.MaxAspect {
		return false
	}
	rel := float64(w*h) / float64(total)
	if rel <= r.MinAreaRatio || rel >= r.MaxAreaRatio {
		return false
	}
	return b.Solidity() > r.MinSolidity
}

// JudgeConfig параметры оценки вариантов бинаризации.
type JudgeConfig struct {
	Recipes      []Recipe
	Rules        BlobRules
	MinBlobs     int
	MaxBlobs     int
	TargetBlobs  int
	CountWeight  float64
	HeightWeight float64
	AlignWeight  float64
	Floor        float64
	CleanupSize  int
}

func DefaultJudgeConfig() JudgeConfig {
	return JudgeConfig{
		Recipes: []Recipe{
			{ID: "dark_blackhat", Polarity: DarkText, KernelW: 38, KernelH: 3, Sigma: 1.1},
			{ID: "light_tophat", Polarity: LightText, KernelW: 45, KernelH: 5, Sigma: 1.1},
		},
		Rules: BlobRules{
			MinAspect:    1.0,
			MaxAspect:    6.0,
			MinAreaRatio: 0.003,
			MaxAreaRatio: 0.30,
			MinSolidity:  0.4,
		},
		MinBlobs:     3,
		MaxBlobs:     9,
		TargetBlobs:  7,
		CountWeight:  0.4,
		HeightWeight: 0.3,
		AlignWeight:  0.3,
		Floor:        0.1,
		CleanupSize:  3,
	}
}

// BinarizationJudge строит варианты бинаризации и выбирает тот,
// где лучше всего видна строка символов.
type BinarizationJudge struct {
	cfg JudgeConfig
}

func NewBinarizationJudge(cfg JudgeConfig) *BinarizationJudge {
	return &BinarizationJudge{cfg: cfg}
}

// Variants все варианты бинаризации кропа с оценками, в порядке рецептов.
func (j *BinarizationJudge) Variants(crop image.Image) ([]entity.BinarizationVariant, error) {
	gray := toGray(crop)
	out := make([]entity.BinarizationVariant, 0, len(j.cfg.Recipes))
	for _, r := range j.cfg.Recipes {
		bin, err := applyRecipe(gray, r)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: %w", r.ID, err)
		}
		out = append(out, entity.BinarizationVariant{
			RecipeID:   r.ID,
			Image:      bin,
			JudgeScore: j.Score(bin),
		})
	}
	return out, nil
}

// Evaluate лучшая оценка среди вариантов; используется при ранжировании кандидатов.
func (j *BinarizationJudge) Evaluate(crop image.Image) float64 {
	variants, err := j.Variants(crop)
	if err != nil {
		return 0
	}
	best := 0.0
	for _, v := range variants {
		best = math.Max(best, v.JudgeScore)
	}
	return best
}

// Binarize возвращает лучший вариант после финального открытия.
// Если лучший ниже порога, возвращается чёрное изображение и ErrNoUsableBinarization.
func (j *BinarizationJudge) Binarize(crop image.Image) (entity.BinarizationVariant, error) {
	variants, err := j.Variants(crop)
	if err != nil {
		return entity.BinarizationVariant{}, err
	}
	if len(variants) == 0 {
		return entity.BinarizationVariant{}, ErrNoUsableBinarization
	}

	best := variants[0]
	for _, v := range variants[1:] {
		if v.JudgeScore > best.JudgeScore {
			best = v
		}
	}
	if best.JudgeScore < j.cfg.Floor {
		return entity.BinarizationVariant{
			RecipeID:   best.RecipeID,
			Image:      image.NewGray(best.Image.Rect),
			JudgeScore: best.JudgeScore,
		}, ErrNoUsableBinarization
	}

	if k := j.cfg.CleanupSize; k > 1 {
		cleaned, err := openBinary(best.Image, k)
		if err != nil {
			return entity.BinarizationVariant{}, fmt.Errorf("cleanup: %w", err)
		}
		best.Image = cleaned
	}
	return best, nil
}

// Score оценка бинарного изображения: число символов, одинаковость высот, выравнивание по строке.
func (j *BinarizationJudge) Score(bin *image.Gray) float64 {
	blobs := plausibleBlobs(bin, j.cfg.Rules)
	n := len(blobs)
	if n < j.cfg.MinBlobs || n > j.cfg.MaxBlobs {
		return 0
	}

	heights := make([]float64, n)
	centers := make([]float64, n)
	for i, b := range blobs {
		heights[i] = float64(b.Box.Dy())
		centers[i] = float64(b.Box.Min.Y) + float64(b.Box.Dy())/2
	}

	target := float64(j.cfg.TargetBlobs)
	countScore := 1 - math.Abs(target-float64(n))/target

	heightScore := 0.0
	if med := median(heights); med > 0 {
		heightScore = math.Max(0, 1-stddev(heights)/med)
	}

	alignScore := math.Max(0, 1-stddev(centers)/float64(bin.Rect.Dy())*2)

	return j.cfg.CountWeight*countScore + j.cfg.HeightWeight*heightScore + j.cfg.AlignWeight*alignScore
}

// plausibleBlobs контуры, похожие на символы; ошибка OpenCV даёт пустой срез.
func plausibleBlobs(bin *image.Gray, rules BlobRules) []blob {
	blobs, err := externalBlobs(bin)
	if err != nil {
		return nil
	}
	total := bin.Rect.Dx() * bin.Rect.Dy()
	var out []blob
	for _, b := range blobs {
		if rules.plausible(b, total) {
			out = append(out, b)
		}
	}
	return out
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	m := len(s) / 2
	if len(s)%2 == 1 {
		return s[m]
	}
	return (s[m-1] + s[m]) / 2
}

func stddev(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	var ss float64
	for _, x := range v {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(len(v)))
}
