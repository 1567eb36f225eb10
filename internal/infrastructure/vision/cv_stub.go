//go:build !gocv
// +build !gocv

package vision

import (
	"image"

	"plate-reader/internal/domain/entity"
)

func applyRecipe(gray *image.Gray, r Recipe) (*image.Gray, error) {
	_ = gray
	_ = r
	return nil, errGoCVDisabled
}

func openBinary(bin *image.Gray, k int) (*image.Gray, error) {
	_ = bin
	_ = k
	return nil, errGoCVDisabled
}

func externalBlobs(bin *image.Gray) ([]blob, error) {
	_ = bin
	return nil, errGoCVDisabled
}

func approxQuad(pts []image.Point, eps float64) ([]image.Point, error) {
	_ = pts
	_ = eps
	return nil, errGoCVDisabled
}

func minAreaRect(pts []image.Point) ([4]entity.Point, error) {
	_ = pts
	return [4]entity.Point{}, errGoCVDisabled
}

func hsvCounts(crop image.Image, bands []hsvBand) (int, int, error) {
	_ = crop
	_ = bands
	return 0, 0, errGoCVDisabled
}
