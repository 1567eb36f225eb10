package vision

import (
	"errors"
	"image"
)

var errTooFewPoints = errors.New("contour has too few points")

// blob внешний контур бинарного изображения.
type blob struct {
	Box      image.Rectangle
	Area     float64
	HullArea float64
}

func (b blob) Solidity() float64 {
	if b.HullArea <= 0 {
		return 0
	}
	return b.Area / b.HullArea
}
