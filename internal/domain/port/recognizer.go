package port

import (
	"context"
	"image"

	"plate-reader/internal/domain/entity"
)

// Recognizer интерфейс OCR-движка. Экземпляр не разделяется между горутинами.
type Recognizer interface {
	// Recognize возвращает текст и уверенность по символам (пусто или по одному на символ)
	Recognize(ctx context.Context, img image.Image) (entity.OCRText, error)
}
