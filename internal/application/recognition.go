package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"plate-reader/internal/domain/entity"
	"plate-reader/internal/domain/port"
)

// ErrFrameDecode снимок не удалось декодировать.
var ErrFrameDecode = errors.New("frame decode failed")

// RecognitionOutput результат распознавания одного снимка.
type RecognitionOutput struct {
	Reading *entity.PlateReading
	// Annotated JPEG кадра с выделенным номером; nil, если выделять нечего.
	Annotated []byte
	// Record сохранённая запись; nil, если номер не найден или это повтор.
	Record    *entity.ReadingRecord
	Duplicate bool
}

// RecognitionService связывает конвейер с хранилищами.
// Кадры обрабатываются по одному: OCR-движок конвейера не реентерабелен.
type RecognitionService struct {
	pipeline    *Pipeline
	codec       port.FrameCodec
	readings    port.ReadingRepository
	images      port.ImageStore
	guard       port.DuplicateGuard
	dedupWindow time.Duration
	log         logrus.FieldLogger
	now         func() time.Time

	mu sync.Mutex
}

// RecognitionDeps хранилища сервиса; любое из них может быть nil.
type RecognitionDeps struct {
	Readings    port.ReadingRepository
	Images      port.ImageStore
	Guard       port.DuplicateGuard
	DedupWindow time.Duration
}

// NewRecognitionService создаёт сервис распознавания снимков.
func NewRecognitionService(pipeline *Pipeline, codec port.FrameCodec, deps RecognitionDeps, log logrus.FieldLogger) *RecognitionService {
	return &RecognitionService{
		pipeline:    pipeline,
		codec:       codec,
		readings:    deps.Readings,
		images:      deps.Images,
		guard:       deps.Guard,
		dedupWindow: deps.DedupWindow,
		log:         log,
		now:         time.Now,
	}
}

// Recognize читает номер со снимка и сохраняет успешное чтение.
// Отмена ctx проверяется только до начала кадра: начатый кадр дорабатывается.
// При ошибке сохранения возвращается и результат, и ошибка.
func (s *RecognitionService) Recognize(ctx context.Context, photo []byte, capturedAt time.Time, observer port.ProgressObserver) (*RecognitionOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame, err := s.codec.Decode(photo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrameDecode, err)
	}

	inflight := context.WithoutCancel(ctx)

	s.mu.Lock()
	reading, err := s.pipeline.Read(inflight, frame, observer)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := &RecognitionOutput{Reading: reading}

	quad, ok := reading.TopQuad()
	if reading.Found() {
		quad, ok = reading.Quad, true
	}
	if ok {
		annotated, err := s.codec.EncodeJPEG(s.codec.Annotate(frame, quad))
		if err != nil {
			s.log.WithField("error", err).Warn("failed to encode annotated frame")
		} else {
			out.Annotated = annotated
		}
	}

	if !reading.Found() || s.readings == nil {
		return out, nil
	}

	if capturedAt.IsZero() {
		capturedAt = s.now()
	}
	record, duplicate, err := s.persist(inflight, photo, out.Annotated, reading, capturedAt)
	out.Record = record
	out.Duplicate = duplicate
	if err != nil {
		return out, fmt.Errorf("persist reading: %w", err)
	}
	return out, nil
}

// persist отмечает номер в фильтре повторов и сохраняет запись. Если сохранение
// не удалось, отметка снимается, чтобы повторная попытка не считалась повтором.
func (s *RecognitionService) persist(ctx context.Context, photo, annotated []byte, reading *entity.PlateReading, capturedAt time.Time) (*entity.ReadingRecord, bool, error) {
	if s.guard != nil {
		allowed, err := s.guard.Allow(ctx, reading.Text, s.dedupWindow)
		if err != nil {
			return nil, false, fmt.Errorf("duplicate guard: %w", err)
		}
		if !allowed {
			s.log.WithField("plate", reading.Text).Info("skipping repeated plate")
			return nil, true, nil
		}
	}

	record, err := s.save(ctx, photo, annotated, reading, capturedAt)
	if err != nil {
		if s.guard != nil {
			if ferr := s.guard.Forget(ctx, reading.Text); ferr != nil {
				s.log.WithFields(logrus.Fields{"plate": reading.Text, "error": ferr}).Warn("failed to release duplicate guard")
			}
		}
		return nil, false, err
	}
	return record, false, nil
}

func (s *RecognitionService) save(ctx context.Context, photo, annotated []byte, reading *entity.PlateReading, capturedAt time.Time) (*entity.ReadingRecord, error) {
	record := entity.ReadingRecord{
		ID:         uuid.NewString(),
		Plate:      reading.Text,
		Format:     reading.Format,
		Confidence: reading.Confidence,
		CapturedAt: capturedAt,
		CreatedAt:  s.now(),
	}

	if s.images != nil {
		var err error
		if record.SourceImage, err = s.images.Put(ctx, record.ID+"/source", photo, http.DetectContentType(photo)); err != nil {
			return nil, fmt.Errorf("store source image: %w", err)
		}
		if reading.Crop != nil {
			crop, err := s.codec.EncodePNG(reading.Crop)
			if err != nil {
				return nil, fmt.Errorf("encode crop: %w", err)
			}
			if record.CropImage, err = s.images.Put(ctx, record.ID+"/crop.png", crop, "image/png"); err != nil {
				return nil, fmt.Errorf("store crop image: %w", err)
			}
		}
		if annotated != nil {
			if record.AnnotatedImage, err = s.images.Put(ctx, record.ID+"/annotated.jpg", annotated, "image/jpeg"); err != nil {
				return nil, fmt.Errorf("store annotated image: %w", err)
			}
		}
	}

	if err := s.readings.Save(ctx, record); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"id":         record.ID,
		"plate":      record.Plate,
		"format":     record.Format,
		"confidence": record.Confidence,
	}).Info("reading saved")
	return &record, nil
}

// ListReadings возвращает сохранённые чтения по фильтру.
func (s *RecognitionService) ListReadings(ctx context.Context, filter entity.ReadingFilter) ([]entity.ReadingRecord, error) {
	if s.readings == nil {
		return nil, nil
	}
	return s.readings.List(ctx, filter)
}
