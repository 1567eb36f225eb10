package port

import (
	"context"
	"image"

	"plate-reader/internal/domain/entity"
)

// EdgeSource интерфейс источника границ и контуров кадра
type EdgeSource interface {
	// Detect строит объединённую карту границ по всем пресетам и возвращает контуры
	Detect(ctx context.Context, frame image.Image) (*entity.EdgeMap, error)
}

// RectDetector вторичный детектор номеров (каскад)
type RectDetector interface {
	// DetectRects возвращает осевые прямоугольники предполагаемых номеров
	DetectRects(ctx context.Context, frame image.Image) ([]image.Rectangle, error)
}

// CandidateGenerator строит и ранжирует гипотезы области номера
type CandidateGenerator interface {
	Generate(ctx context.Context, frame image.Image, contours []entity.Contour) []entity.Candidate
}

// Warper выпрямляет четырёхугольник в прямоугольник заданного размера
type Warper interface {
	Warp(src image.Image, quad entity.Quad, width, height int) (*image.NRGBA, error)
}

// Binarizer выбирает лучший вариант бинаризации кропа
type Binarizer interface {
	Binarize(crop image.Image) (entity.BinarizationVariant, error)
}

// Segmenter делит бинарный номер на символы
type Segmenter interface {
	Segment(binary *image.Gray) []entity.CharacterBlob
}

// ColorAnalyzer считает доли цветов кропа
type ColorAnalyzer interface {
	Analyze(crop image.Image) entity.ColorStats
}

// FrameCodec декодирует снимки и готовит изображения для ответа и хранения
type FrameCodec interface {
	Decode(data []byte) (image.Image, error)
	EncodeJPEG(img image.Image) ([]byte, error)
	EncodePNG(img image.Image) ([]byte, error)
	// Annotate возвращает копию кадра с обведённым четырёхугольником
	Annotate(frame image.Image, quad entity.Quad) image.Image
}
