package rest

import (
	"bytes"
	"context"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	app "plate-reader/internal/application"
	"plate-reader/internal/domain/entity"
	"plate-reader/internal/infrastructure/storage"
	"plate-reader/internal/infrastructure/vision"
	"plate-reader/pkg/log"
)

type noEdges struct{}

func (noEdges) Detect(context.Context, image.Image) (*entity.EdgeMap, error) {
	return &entity.EdgeMap{}, nil
}

type noCandidates struct{}

func (noCandidates) Generate(context.Context, image.Image, []entity.Contour) []entity.Candidate {
	return nil
}

func newTestServer(t *testing.T, opts ...ServerOption) (*fiber.App, *storage.MemoryReadingRepository) {
	t.Helper()
	logger := log.Discard()
	readings := storage.NewMemoryReadingRepository()

	pipeline := app.NewPipeline(app.PipelineDeps{Edges: noEdges{}, Generator: noCandidates{}}, app.PipelineOptions{}, logger)
	svc := app.NewRecognitionService(pipeline, vision.NewCodec(), app.RecognitionDeps{Readings: readings}, logger)

	srv, err := NewServer(append([]ServerOption{
		WithFiber(NewFiber(4 * 1024 * 1024)),
		WithLogger(logger),
		WithRecognition(svc),
	}, opts...)...)
	require.NoError(t, err)
	srv.RegisterHandler()
	return srv.App(), readings
}

func multipartBody(t *testing.T, field string, data []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if data != nil {
		part, err := w.CreateFormFile(field, "frame.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range extra {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, jsoniter.Unmarshal(data, v))
}

func TestHealth(t *testing.T) {
	engine, _ := newTestServer(t)

	resp, err := engine.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(RequestIDKey))
}

func TestCreateReading(t *testing.T) {
	engine, _ := newTestServer(t)

	frame, err := vision.EncodePNG(image.NewNRGBA(image.Rect(0, 0, 64, 48)))
	require.NoError(t, err)

	body, contentType := multipartBody(t, "image", frame, map[string]string{"captured_at": "2024-05-01T12:00:00Z"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/readings", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := engine.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ReadingResponse
	decodeJSON(t, resp, &out)
	require.Equal(t, entity.StatusNoCandidate, out.Status)
	require.Equal(t, -1, out.SourceCandidateRank)
	require.Nil(t, out.Record)
}

func TestCreateReading_BadInput(t *testing.T) {
	engine, _ := newTestServer(t)

	cases := []struct {
		name  string
		data  []byte
		extra map[string]string
		code  string
	}{
		{name: "missing image", code: "IMAGE_REQUIRED"},
		{name: "undecodable", data: []byte("plain text"), code: "INVALID_IMAGE"},
		{name: "bad timestamp", data: []byte("x"), extra: map[string]string{"captured_at": "yesterday"}, code: "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, "image", tc.data, tc.extra)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/readings", body)
			req.Header.Set("Content-Type", contentType)

			resp, err := engine.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var out map[string]string
			decodeJSON(t, resp, &out)
			require.Equal(t, tc.code, out["code"])
		})
	}
}

func TestListReadings(t *testing.T) {
	engine, readings := newTestServer(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, readings.Save(ctx, entity.ReadingRecord{ID: "1", Plate: "ABC1D23", CapturedAt: base}))
	require.NoError(t, readings.Save(ctx, entity.ReadingRecord{ID: "2", Plate: "XYZ9876", CapturedAt: base.Add(time.Hour)}))

	resp, err := engine.Test(httptest.NewRequest(http.MethodGet, "/api/v1/readings?plate=abc&to=2024-05-01T12:30:00Z", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Readings []entity.ReadingRecord `json:"readings"`
	}
	decodeJSON(t, resp, &out)
	require.Len(t, out.Readings, 1)
	require.Equal(t, "ABC1D23", out.Readings[0].Plate)

	resp, err = engine.Test(httptest.NewRequest(http.MethodGet, "/api/v1/readings?from=yesterday", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	engine, _ := newTestServer(t, WithRateLimit(0.001, 1))

	resp, err := engine.Test(httptest.NewRequest(http.MethodGet, "/api/v1/readings", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = engine.Test(httptest.NewRequest(http.MethodGet, "/api/v1/readings", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, err = engine.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWithRateLimit_RejectsZeroBurst(t *testing.T) {
	_, err := NewServer(WithFiber(NewFiber(1024)), WithLogger(log.Discard()), WithRateLimit(1, 0))
	require.Error(t, err)
}

func TestStreamRequiresUpgrade(t *testing.T) {
	engine, _ := newTestServer(t)

	resp, err := engine.Test(httptest.NewRequest(http.MethodGet, "/ws/readings", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestToEvent(t *testing.T) {
	ev := toEvent(entity.ProgressEvent{
		Step:    entity.StepBinarization,
		Message: "dark",
		Payload: entity.BinarizationVariant{RecipeID: "dark_blackhat", Image: image.NewGray(image.Rect(0, 0, 4, 4)), JudgeScore: 0.8},
	})
	require.NotEmpty(t, ev.Image)
	require.Equal(t, map[string]any{"recipe": "dark_blackhat", "judge_score": 0.8}, ev.Data)

	ev = toEvent(entity.ProgressEvent{Step: entity.StepOCRText, Payload: "ABC1234"})
	require.Equal(t, "ABC1234", ev.Data)
	require.Empty(t, ev.Image)
}
