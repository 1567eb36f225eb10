package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"plate-reader/internal/domain/entity"
	"plate-reader/internal/domain/port"
)

// EvalStatus итог оценки одного снимка.
type EvalStatus string

const (
	EvalCorrect         EvalStatus = "correct"
	EvalIncorrect       EvalStatus = "incorrect"
	EvalDetectionFailed EvalStatus = "detection_failed"
	EvalOCRFailed       EvalStatus = "ocr_failed"
	EvalReadError       EvalStatus = "read_error"
	EvalNoGroundTruth   EvalStatus = "no_ground_truth"
	EvalCriticalError   EvalStatus = "critical_error"
)

// DetectionIoU минимальное перекрытие, при котором номер считается найденным,
// если в разметке нет текста.
const DetectionIoU = 0.5

// GroundTruth разметка снимка из файла-спутника.
type GroundTruth struct {
	Plate string
	Quad  *entity.Quad
}

// ParseGroundTruth читает строки "plate: ABC1234" и "corners: x,y x,y x,y x,y".
// ok=false, если ни одной из них нет.
func ParseGroundTruth(r io.Reader) (GroundTruth, bool, error) {
	var gt GroundTruth
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "plate":
			gt.Plate = strings.ToUpper(strings.ReplaceAll(value, "-", ""))
		case "corners":
			quad, err := parseCorners(value)
			if err != nil {
				return GroundTruth{}, false, err
			}
			gt.Quad = &quad
		}
	}
	if err := sc.Err(); err != nil {
		return GroundTruth{}, false, err
	}
	return gt, gt.Plate != "" || gt.Quad != nil, nil
}

func parseCorners(value string) (entity.Quad, error) {
	fields := strings.Fields(value)
	if len(fields) != 4 {
		return entity.Quad{}, fmt.Errorf("corners: expected 4 points, got %d", len(fields))
	}
	var pts [4]entity.Point
	for i, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return entity.Quad{}, fmt.Errorf("corners: bad point %q", f)
		}
		x, errX := strconv.ParseFloat(xs, 64)
		y, errY := strconv.ParseFloat(ys, 64)
		if err := errors.Join(errX, errY); err != nil {
			return entity.Quad{}, fmt.Errorf("corners: bad point %q: %w", f, err)
		}
		pts[i] = entity.Pt(x, y)
	}
	return entity.OrderQuad(pts), nil
}

// EvalResult оценка одного снимка.
type EvalResult struct {
	File      string
	Status    EvalStatus
	Expected  string
	Predicted string
	Distance  int
	IoU       float64
	HasIoU    bool
	Error     string
}

// EvalReport сводка прогона.
type EvalReport struct {
	Results  []EvalResult
	Counts   map[EvalStatus]int
	Accuracy float64
	MeanIoU  float64
	Elapsed  time.Duration
}

// Failures строки для журнала ошибок.
func (r *EvalReport) Failures() []string {
	var lines []string
	for _, res := range r.Results {
		switch res.Status {
		case EvalIncorrect:
			lines = append(lines, fmt.Sprintf("%s | expected: %s | read: %s | distance: %d", res.File, res.Expected, res.Predicted, res.Distance))
		case EvalDetectionFailed:
			lines = append(lines, fmt.Sprintf("%s | expected: %s | error: plate not detected", res.File, res.Expected))
		case EvalOCRFailed:
			lines = append(lines, fmt.Sprintf("%s | expected: %s | error: no valid text (read: %s)", res.File, res.Expected, res.Predicted))
		case EvalReadError, EvalCriticalError:
			lines = append(lines, fmt.Sprintf("%s | %s: %s", res.File, res.Status, res.Error))
		}
	}
	return lines
}

// Summarize считает итоги. Точность — доля correct среди всех результатов.
func Summarize(results []EvalResult, elapsed time.Duration) *EvalReport {
	sorted := append([]EvalResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].File < sorted[j].File })

	report := &EvalReport{Results: sorted, Counts: make(map[EvalStatus]int), Elapsed: elapsed}
	var (
		iouSum float64
		iouN   int
	)
	for _, r := range sorted {
		report.Counts[r.Status]++
		if r.HasIoU {
			iouSum += r.IoU
			iouN++
		}
	}
	if len(sorted) > 0 {
		report.Accuracy = float64(report.Counts[EvalCorrect]) / float64(len(sorted))
	}
	if iouN > 0 {
		report.MeanIoU = iouSum / float64(iouN)
	}
	return report
}

// FrameReader читает номер с кадра; *Pipeline реализует его.
type FrameReader interface {
	Read(ctx context.Context, frame image.Image, observer port.ProgressObserver) (*entity.PlateReading, error)
}

// ReaderFactory создаёт читатель с собственным OCR-движком для одного воркера.
type ReaderFactory func() (FrameReader, io.Closer, error)

// Evaluator прогоняет конвейер по набору размеченных снимков.
type Evaluator struct {
	factory ReaderFactory
	codec   port.FrameCodec
	workers int
	log     logrus.FieldLogger
}

// NewEvaluator workers<=0 означает по воркеру на CPU.
func NewEvaluator(factory ReaderFactory, codec port.FrameCodec, workers int, log logrus.FieldLogger) *Evaluator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Evaluator{factory: factory, codec: codec, workers: workers, log: log}
}

// Run оценивает файлы параллельно. onDone вызывается после каждого снимка.
// Отмена ctx останавливает выдачу новых снимков; начатые дорабатываются.
func (e *Evaluator) Run(ctx context.Context, files []string, onDone func(EvalResult)) (*EvalReport, error) {
	start := time.Now()
	jobs := make(chan string)

	var (
		mu      sync.Mutex
		results = make([]EvalResult, 0, len(files))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for _, f := range files {
			select {
			case jobs <- f:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < min(e.workers, max(len(files), 1)); i++ {
		g.Go(func() error {
			reader, closer, err := e.factory()
			if err != nil {
				return fmt.Errorf("create pipeline: %w", err)
			}
			if closer != nil {
				defer closer.Close()
			}

			for path := range jobs {
				res := e.evaluate(context.WithoutCancel(gctx), reader, path)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				if onDone != nil {
					onDone(res)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return Summarize(results, time.Since(start)), err
	}
	return Summarize(results, time.Since(start)), nil
}

func (e *Evaluator) evaluate(ctx context.Context, reader FrameReader, path string) (res EvalResult) {
	res.File = filepath.Base(path)

	gt, ok, err := readGroundTruth(path)
	if err != nil {
		res.Status, res.Error = EvalReadError, err.Error()
		return res
	}
	if !ok {
		res.Status = EvalNoGroundTruth
		return res
	}
	res.Expected = gt.Plate

	data, err := os.ReadFile(path)
	if err != nil {
		res.Status, res.Error = EvalReadError, err.Error()
		return res
	}
	frame, err := e.codec.Decode(data)
	if err != nil {
		res.Status, res.Error = EvalReadError, err.Error()
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(logrus.Fields{"file": res.File, "panic": r}).Error("evaluation crashed")
			res.Status, res.Error = EvalCriticalError, fmt.Sprint(r)
		}
	}()

	reading, err := reader.Read(ctx, frame, nil)
	if err != nil {
		res.Status, res.Error = EvalCriticalError, err.Error()
		return res
	}

	if top, found := reading.TopQuad(); found && gt.Quad != nil {
		res.IoU, res.HasIoU = top.IoU(*gt.Quad), true
	}
	res.Predicted = reading.Text
	return classify(res, gt, reading)
}

func classify(res EvalResult, gt GroundTruth, reading *entity.PlateReading) EvalResult {
	if len(reading.Candidates) == 0 {
		res.Status = EvalDetectionFailed
		return res
	}

	if gt.Plate == "" {
		if res.HasIoU && res.IoU >= DetectionIoU {
			res.Status = EvalCorrect
		} else {
			res.Status = EvalDetectionFailed
		}
		return res
	}

	if !reading.Found() {
		for _, a := range reading.Attempts {
			if a.RawText != "" {
				res.Predicted = a.RawText
				break
			}
		}
		res.Status = EvalOCRFailed
		return res
	}

	res.Distance = levenshtein.ComputeDistance(gt.Plate, reading.Text)
	res.Status = EvalIncorrect
	if reading.Text == gt.Plate {
		res.Status = EvalCorrect
		return res
	}
	for _, in := range reading.Interpretations {
		if in.Text == gt.Plate {
			res.Status = EvalCorrect
			break
		}
	}
	return res
}

func readGroundTruth(imagePath string) (GroundTruth, bool, error) {
	f, err := os.Open(strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".txt")
	if errors.Is(err, fs.ErrNotExist) {
		return GroundTruth{}, false, nil
	}
	if err != nil {
		return GroundTruth{}, false, err
	}
	defer f.Close()
	return ParseGroundTruth(f)
}

// ListImages возвращает jpg/jpeg/png из каталога по имени; sample>0 — случайная выборка.
func ListImages(dir string, sample int, rng *rand.Rand) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	if sample > 0 && sample < len(files) {
		rng.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })
		files = files[:sample]
		sort.Strings(files)
	}
	return files, nil
}
