package vision

import (
	"image"

	"plate-reader/internal/domain/entity"
)

// hsvBand диапазон HSV в 8-битной шкале OpenCV (H 0..180).
type hsvBand struct {
	HMin, HMax uint8
	SMin, VMin uint8
}

// ColorConfig полосы синего и красного.
type ColorConfig struct {
	Blue []hsvBand
	Red  []hsvBand
}

func DefaultColorConfig() ColorConfig {
	return ColorConfig{
		Blue: []hsvBand{{HMin: 88, HMax: 135, SMin: 70, VMin: 60}},
		Red: []hsvBand{
			{HMin: 0, HMax: 10, SMin: 70, VMin: 50},
			{HMin: 170, HMax: 180, SMin: 70, VMin: 50},
		},
	}
}

// HSVColorAnalyzer считает доли синих и красных пикселей кропа и его верхней половины.
type HSVColorAnalyzer struct {
	cfg ColorConfig
}

func NewHSVColorAnalyzer(cfg ColorConfig) *HSVColorAnalyzer {
	return &HSVColorAnalyzer{cfg: cfg}
}

// Analyze при ошибке OpenCV возвращает нулевые доли: цвет тогда не влияет на выбор формата.
func (a *HSVColorAnalyzer) Analyze(crop image.Image) entity.ColorStats {
	b := crop.Bounds()
	w, h := b.Dx(), b.Dy()
	upper := h / 2
	if w == 0 || upper == 0 {
		return entity.ColorStats{}
	}

	blue, upperBlue, err := hsvCounts(crop, a.cfg.Blue)
	if err != nil {
		return entity.ColorStats{}
	}
	red, upperRed, err := hsvCounts(crop, a.cfg.Red)
	if err != nil {
		return entity.ColorStats{}
	}

	total, top := float64(w*h), float64(w*upper)
	return entity.ColorStats{
		BlueRatio:      float64(blue) / total,
		RedRatio:       float64(red) / total,
		UpperBlueRatio: float64(upperBlue) / top,
		UpperRedRatio:  float64(upperRed) / top,
	}
}
