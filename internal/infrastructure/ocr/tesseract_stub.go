//go:build !tesseract
// +build !tesseract

package ocr

import (
	"context"
	"errors"
	"image"

	"plate-reader/internal/domain/entity"
)

type TesseractRecognizer struct{}

// NewTesseractRecognizer возвращает ошибку, если сборка без тега tesseract.
func NewTesseractRecognizer(language string) (*TesseractRecognizer, error) {
	_ = language
	return nil, errors.New("tesseract build tag is not enabled")
}

// Recognize возвращает ошибку, если сборка без тега tesseract.
func (r *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) (entity.OCRText, error) {
	_ = ctx
	_ = img
	return entity.OCRText{}, errors.New("tesseract build tag is not enabled")
}

func (r *TesseractRecognizer) Close() error {
	return nil
}
