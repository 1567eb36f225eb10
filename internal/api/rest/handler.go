package rest

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	app "plate-reader/internal/application"
	"plate-reader/internal/domain/entity"
	"plate-reader/pkg/log"
)

const (
	recognizeTimeout = 60 * time.Second
	maxListLimit     = 500
)

type ReadingHandler struct {
	log         *logrus.Logger
	validator   *validator.Validate
	recognition *app.RecognitionService
}

func NewReadingHandler(log *logrus.Logger, v *validator.Validate, recognition *app.RecognitionService) *ReadingHandler {
	return &ReadingHandler{log: log, validator: v, recognition: recognition}
}

func (h *ReadingHandler) Start(srv fiber.Router) {
	readings := srv.Group("/readings")
	readings.Post("/", h.Create)
	readings.Post("", h.Create)
	readings.Get("/", h.List)
	readings.Get("", h.List)
}

type listQuery struct {
	Plate string `query:"plate" validate:"omitempty,alphanum,max=16"`
	From  string `query:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To    string `query:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit int    `query:"limit" validate:"gte=0,lte=500"`
}

// Create распознаёт загруженный снимок (multipart-поле image).
func (h *ReadingHandler) Create(ctx *fiber.Ctx) error {
	requestID := requestIDOf(ctx)

	file, err := ctx.FormFile("image")
	if err != nil {
		return h.fail(ctx, requestID, fiber.StatusBadRequest, "IMAGE_REQUIRED", "multipart field 'image' is required", err)
	}

	capturedAt := time.Time{}
	if raw := ctx.FormValue("captured_at"); raw != "" {
		capturedAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return h.fail(ctx, requestID, fiber.StatusBadRequest, "VALIDATION_ERROR", "captured_at must be RFC3339", err)
		}
	}

	f, err := file.Open()
	if err != nil {
		return h.fail(ctx, requestID, fiber.StatusBadRequest, "IMAGE_UNREADABLE", "cannot open uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return h.fail(ctx, requestID, fiber.StatusBadRequest, "IMAGE_UNREADABLE", "cannot read uploaded file", err)
	}

	c, cancel := context.WithTimeout(ctx.UserContext(), recognizeTimeout)
	defer cancel()

	out, err := h.recognition.Recognize(c, data, capturedAt, nil)
	switch {
	case errors.Is(err, app.ErrFrameDecode):
		return h.fail(ctx, requestID, fiber.StatusBadRequest, "INVALID_IMAGE", "image cannot be decoded", err)
	case out == nil:
		return h.fail(ctx, requestID, fiber.StatusInternalServerError, "INTERNAL_ERROR", "recognition failed", err)
	case err != nil:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("reading was not persisted")
	}

	status := fiber.StatusOK
	if out.Record != nil {
		status = fiber.StatusCreated
	}
	return ctx.Status(status).JSON(toOutput(out))
}

// List возвращает сохранённые чтения по номеру и интервалу времени.
func (h *ReadingHandler) List(ctx *fiber.Ctx) error {
	requestID := requestIDOf(ctx)

	var q listQuery
	if err := ctx.QueryParser(&q); err != nil {
		return h.fail(ctx, requestID, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid query", err)
	}
	if err := h.validator.Struct(q); err != nil {
		return h.fail(ctx, requestID, fiber.StatusBadRequest, "VALIDATION_ERROR", "Validation failed: "+err.Error(), err)
	}

	filter := entity.ReadingFilter{Plate: q.Plate, Limit: q.Limit}
	if filter.Limit == 0 {
		filter.Limit = maxListLimit
	}
	// формат уже проверен валидатором
	if q.From != "" {
		filter.From, _ = time.Parse(time.RFC3339, q.From)
	}
	if q.To != "" {
		filter.To, _ = time.Parse(time.RFC3339, q.To)
	}

	records, err := h.recognition.ListReadings(ctx.UserContext(), filter)
	if err != nil {
		return h.fail(ctx, requestID, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to list readings", err)
	}
	if records == nil {
		records = []entity.ReadingRecord{}
	}
	return ctx.JSON(fiber.Map{"readings": records})
}

func (h *ReadingHandler) fail(ctx *fiber.Ctx, requestID string, status int, code, message string, err error) error {
	fields := log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"code":       code,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	entry := h.log.WithFields(fields)
	if status >= 500 {
		entry.Error(message)
	} else {
		entry.Warn(message)
	}
	return ctx.Status(status).JSON(fiber.Map{"error": message, "code": code})
}
