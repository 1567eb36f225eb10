// Package ocr адаптеры OCR-движков к port.Recognizer.
package ocr

import (
	"fmt"
	"io"

	"plate-reader/internal/domain/port"
)

// PlateChars символы, которые могут встретиться на номере.
const PlateChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// minHeight ниже этой высоты изображение увеличивается перед распознаванием.
const minHeight = 100

// Engine распознаватель с освобождаемыми ресурсами.
type Engine interface {
	port.Recognizer
	io.Closer
}

// New создаёт движок по имени. Каждый вызов возвращает новый экземпляр — по одному на воркер.
func New(name, language string) (Engine, error) {
	switch name {
	case "tesseract":
		engine, err := NewTesseractRecognizer(language)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", name)
	}
}
