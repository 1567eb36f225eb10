package entity

import (
	"image"
	"strings"
	"time"
)

// ReadingStatus итог обработки кадра.
type ReadingStatus string

const (
	StatusOK          ReadingStatus = "ok"
	StatusNoCandidate ReadingStatus = "no_plate_found"
	StatusInvalid     ReadingStatus = "invalid"
)

// AttemptOutcome итог попытки одного кандидата.
type AttemptOutcome string

const (
	OutcomeSuccess         AttemptOutcome = "success"
	OutcomeWarpFailed      AttemptOutcome = "warp_failed"
	OutcomeBadBinarization AttemptOutcome = "bad_binarization"
	OutcomeOCRFailed       AttemptOutcome = "ocr_failed"
	OutcomeValidationEmpty AttemptOutcome = "validation_empty"
)

// CandidateAttempt запись о попытке кандидата.
type CandidateAttempt struct {
	Rank    int            `json:"rank"`
	Outcome AttemptOutcome `json:"outcome"`
	RawText string         `json:"raw_text,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// PlateReading итоговое чтение кадра.
type PlateReading struct {
	Text                string
	Format              PlateFormat
	SourceCandidateRank int
	Confidence          float64
	Status              ReadingStatus
	Interpretations     ValidationResult
	Colors              ColorStats
	Candidates          []Candidate
	Attempts            []CandidateAttempt
	// Crop и Binary относятся к выбранному кандидату.
	Quad   Quad
	Crop   image.Image
	Binary *image.Gray
}

// Found сообщает, прочитан ли валидный номер.
func (r *PlateReading) Found() bool {
	return r != nil && r.Status == StatusOK
}

// TopQuad четырёхугольник кандидата с рангом 0, если он есть.
func (r *PlateReading) TopQuad() (Quad, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return Quad{}, false
	}
	return r.Candidates[0].Quad, true
}

// ReadingRecord сохранённое чтение.
type ReadingRecord struct {
	ID             string      `json:"id"`
	Plate          string      `json:"plate"`
	Format         PlateFormat `json:"format"`
	Confidence     float64     `json:"confidence"`
	SourceImage    string      `json:"source_image"`
	CropImage      string      `json:"crop_image"`
	AnnotatedImage string      `json:"annotated_image"`
	CapturedAt     time.Time   `json:"captured_at"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ReadingFilter условия выборки записей.
type ReadingFilter struct {
	Plate string
	From  time.Time
	To    time.Time
	Limit int
}

// Match проверяет запись по фильтру (подстрока номера без учёта регистра).
func (f ReadingFilter) Match(r ReadingRecord) bool {
	if f.Plate != "" && !strings.Contains(strings.ToUpper(r.Plate), strings.ToUpper(f.Plate)) {
		return false
	}
	if !f.From.IsZero() && r.CapturedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.CapturedAt.After(f.To) {
		return false
	}
	return true
}
