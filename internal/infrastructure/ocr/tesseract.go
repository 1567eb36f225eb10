//go:build tesseract
// +build tesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"plate-reader/internal/domain/entity"
)

// TesseractRecognizer OCR на Tesseract. Клиент не потокобезопасен,
// поэтому вызовы сериализуются; для параллельной работы нужен отдельный экземпляр.
type TesseractRecognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractRecognizer создаёт клиента с латинскими буквами и цифрами.
func NewTesseractRecognizer(language string) (*TesseractRecognizer, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Номера не слова языка: словари только мешают.
	for _, dawg := range []gosseract.SettableVariable{"load_system_dawg", "load_freq_dawg"} {
		if err := client.SetVariable(dawg, "false"); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set %s: %w", dawg, err)
		}
	}

	if err := client.SetWhitelist(PlateChars); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}

	return &TesseractRecognizer{client: client}, nil
}

// Recognize распознаёт строку (или одиночный символ для узких изображений)
// и возвращает уверенность каждого символа в диапазоне 0..1.
func (r *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) (entity.OCRText, error) {
	_ = ctx
	b := img.Bounds()
	if b.Empty() {
		return entity.OCRText{}, fmt.Errorf("empty image")
	}

	mode := gosseract.PSM_SINGLE_LINE
	if b.Dx() < b.Dy() {
		mode = gosseract.PSM_SINGLE_CHAR
	}

	var src image.Image = img
	if b.Dy() < minHeight {
		src = imaging.Resize(img, 0, minHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.PNG); err != nil {
		return entity.OCRText{}, fmt.Errorf("failed to encode image: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetPageSegMode(mode); err != nil {
		return entity.OCRText{}, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := r.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return entity.OCRText{}, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_SYMBOL)
	if err != nil {
		return entity.OCRText{}, fmt.Errorf("OCR failed: %w", err)
	}

	var (
		text  strings.Builder
		confs []float64
	)
	for _, box := range boxes {
		for _, ch := range strings.TrimSpace(box.Word) {
			text.WriteRune(ch)
			confs = append(confs, box.Confidence/100)
		}
	}
	return entity.OCRText{Text: text.String(), Confidences: confs}, nil
}

// Close освобождает ресурсы Tesseract.
func (r *TesseractRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
