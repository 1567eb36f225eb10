//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"
	"image"

	"plate-reader/config"
	"plate-reader/internal/domain/entity"
)

var errGoCVDisabled = errors.New("gocv build tag is not enabled")

type GoCVEdgeSource struct {
	Presets []config.CannyPreset
}

// NewGoCVEdgeSource создаёт источник-заглушку (без OpenCV).
func NewGoCVEdgeSource(presets []config.CannyPreset) *GoCVEdgeSource {
	return &GoCVEdgeSource{Presets: presets}
}

// Detect возвращает ошибку, если сборка без тега gocv.
func (s *GoCVEdgeSource) Detect(ctx context.Context, frame image.Image) (*entity.EdgeMap, error) {
	_ = ctx
	_ = frame
	return nil, errGoCVDisabled
}

type GoCVCascadeDetector struct{}

// NewGoCVCascadeDetector возвращает ошибку, если сборка без тега gocv.
func NewGoCVCascadeDetector(path string) (*GoCVCascadeDetector, error) {
	_ = path
	return nil, errGoCVDisabled
}

// DetectRects возвращает ошибку, если сборка без тега gocv.
func (d *GoCVCascadeDetector) DetectRects(ctx context.Context, frame image.Image) ([]image.Rectangle, error) {
	_ = ctx
	_ = frame
	return nil, errGoCVDisabled
}

func (d *GoCVCascadeDetector) Close() error {
	return nil
}
