package app

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"plate-reader/internal/domain/entity"
	"plate-reader/internal/infrastructure/storage"
	"plate-reader/internal/infrastructure/vision"
)

func encodedFrame(t *testing.T) []byte {
	t.Helper()
	data, err := vision.EncodePNG(testFrame())
	require.NoError(t, err)
	return data
}

func newTestRecognition(t *testing.T, ocr *markOCR, cands []entity.Candidate) (*RecognitionService, *storage.MemoryReadingRepository) {
	t.Helper()
	log, _ := test.NewNullLogger()
	images, err := storage.NewDiskImageStore(t.TempDir())
	require.NoError(t, err)
	readings := storage.NewMemoryReadingRepository()

	p := newFakePipeline(cands, markBinarizer{}, ocr, entity.ColorStats{}, PipelineOptions{})
	svc := NewRecognitionService(p, vision.NewCodec(), RecognitionDeps{
		Readings:    readings,
		Images:      images,
		Guard:       storage.NewMemoryDuplicateGuard(),
		DedupWindow: time.Minute,
	}, log)
	return svc, readings
}

func TestRecognize_PersistsOncePerWindow(t *testing.T) {
	ocr := newMarkOCR(map[uint8]entity.OCRText{10: {Text: "ABC1234", Confidences: confs(7, 0.9)}})
	svc, readings := newTestRecognition(t, ocr, []entity.Candidate{candidateAt(10, 0.9)})
	ctx := context.Background()
	captured := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	out, err := svc.Recognize(ctx, encodedFrame(t), captured, nil)
	require.NoError(t, err)
	require.True(t, out.Reading.Found())
	require.NotEmpty(t, out.Annotated)
	require.NotNil(t, out.Record)
	require.Equal(t, "ABC1234", out.Record.Plate)
	require.Equal(t, captured, out.Record.CapturedAt)
	require.NotEmpty(t, out.Record.ID)

	for _, path := range []string{out.Record.SourceImage, out.Record.CropImage, out.Record.AnnotatedImage} {
		_, err := os.Stat(path)
		require.NoError(t, err)
	}

	again, err := svc.Recognize(ctx, encodedFrame(t), captured, nil)
	require.NoError(t, err)
	require.True(t, again.Duplicate)
	require.Nil(t, again.Record)

	list, err := svc.ListReadings(ctx, entity.ReadingFilter{Plate: "abc"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	all, err := readings.List(ctx, entity.ReadingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestRecognize_CancelledBeforeFrame(t *testing.T) {
	ocr := newMarkOCR(nil)
	svc, _ := newTestRecognition(t, ocr, []entity.Candidate{candidateAt(10, 0.9)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Recognize(ctx, encodedFrame(t), time.Time{}, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, ocr.calls)
}

func TestRecognize_UndecodableFrame(t *testing.T) {
	svc, _ := newTestRecognition(t, newMarkOCR(nil), nil)

	_, err := svc.Recognize(context.Background(), []byte("not an image"), time.Time{}, nil)
	require.ErrorIs(t, err, ErrFrameDecode)
}

func TestRecognize_NoPlateIsNotSaved(t *testing.T) {
	svc, readings := newTestRecognition(t, newMarkOCR(nil), nil)

	out, err := svc.Recognize(context.Background(), encodedFrame(t), time.Time{}, nil)
	require.NoError(t, err)
	require.Equal(t, entity.StatusNoCandidate, out.Reading.Status)
	require.Nil(t, out.Annotated)
	require.Nil(t, out.Record)

	all, err := readings.List(context.Background(), entity.ReadingFilter{})
	require.NoError(t, err)
	require.Empty(t, all)
}

// flakyReadings отказывает в первом сохранении.
type flakyReadings struct {
	*storage.MemoryReadingRepository
	failures int
	calls    int
}

func (r *flakyReadings) Save(ctx context.Context, record entity.ReadingRecord) error {
	r.calls++
	if r.calls <= r.failures {
		return errors.New("db down")
	}
	return r.MemoryReadingRepository.Save(ctx, record)
}

func TestRecognize_FailedSaveDoesNotMarkDuplicate(t *testing.T) {
	log, _ := test.NewNullLogger()
	ocr := newMarkOCR(map[uint8]entity.OCRText{10: {Text: "ABC1234"}})
	p := newFakePipeline([]entity.Candidate{candidateAt(10, 0.9)}, markBinarizer{}, ocr, entity.ColorStats{}, PipelineOptions{})
	readings := &flakyReadings{MemoryReadingRepository: storage.NewMemoryReadingRepository(), failures: 1}
	svc := NewRecognitionService(p, vision.NewCodec(), RecognitionDeps{
		Readings:    readings,
		Guard:       storage.NewMemoryDuplicateGuard(),
		DedupWindow: time.Minute,
	}, log)
	ctx := context.Background()

	out, err := svc.Recognize(ctx, encodedFrame(t), time.Time{}, nil)
	require.Error(t, err)
	require.NotNil(t, out)
	require.True(t, out.Reading.Found())
	require.Nil(t, out.Record)
	require.False(t, out.Duplicate)

	retry, err := svc.Recognize(ctx, encodedFrame(t), time.Time{}, nil)
	require.NoError(t, err)
	require.False(t, retry.Duplicate)
	require.NotNil(t, retry.Record)
	require.Equal(t, 2, readings.calls)
}
