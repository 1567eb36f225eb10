package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"plate-reader/internal/domain/entity"
	"plate-reader/internal/domain/plate"
	"plate-reader/internal/domain/port"
)

// Ошибки отдельных шагов кандидата. Оборачивают исходную ошибку шага.
var (
	ErrWarpFailed      = errors.New("warp failed")
	ErrBadBinarization = errors.New("bad binarization")
	ErrOCRFailed       = errors.New("ocr failed")
	ErrValidationEmpty = errors.New("no valid interpretation")
)

// PipelineOptions параметры поиска по кандидатам.
type PipelineOptions struct {
	TopK              int
	CropWidth         int
	CropHeight        int
	CharacterFallback bool
	CharacterPadding  int
	// ShrinkFactor и ShrinkCap сжимают кандидатов, которых не сжал генератор;
	// ShrinkFactor<=0 отключает сжатие.
	ShrinkFactor float64
	ShrinkCap    float64
}

// PipelineDeps компоненты конвейера. Recognizer принадлежит вызывающему
// и не должен использоваться другим конвейером одновременно.
type PipelineDeps struct {
	Edges         port.EdgeSource
	Generator     port.CandidateGenerator
	Warper        port.Warper
	Binarizer     port.Binarizer
	Segmenter     port.Segmenter
	Recognizer    port.Recognizer
	Colors        port.ColorAnalyzer
	Validator     *plate.Validator
	Disambiguator *plate.Disambiguator
}

// Pipeline читает номер с одного кадра, перебирая кандидатов по рангу.
type Pipeline struct {
	deps PipelineDeps
	opts PipelineOptions
	log  logrus.FieldLogger
}

func NewPipeline(deps PipelineDeps, opts PipelineOptions, log logrus.FieldLogger) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.CropWidth <= 0 || opts.CropHeight <= 0 {
		opts.CropWidth, opts.CropHeight = 400, 130
	}
	return &Pipeline{deps: deps, opts: opts, log: log}
}

// candidateRead результат успешного кандидата.
type candidateRead struct {
	choice  entity.Interpretation
	quad    entity.Quad
	result  entity.ValidationResult
	colors  entity.ColorStats
	crop    *image.NRGBA
	binary  entity.BinarizationVariant
	conf    float64
	rawText string
}

// Read обрабатывает кадр. Ошибка возвращается только при сбое инфраструктуры;
// «номер не найден» и «ни один кандидат не прочитан» — обычные статусы чтения.
func (p *Pipeline) Read(ctx context.Context, frame image.Image, observer port.ProgressObserver) (*entity.PlateReading, error) {
	obs := newSafeObserver(observer, p.log)
	obs.emit(entity.StepStart, "processing frame", frame.Bounds().Size())

	edges, err := p.deps.Edges.Detect(ctx, frame)
	if err != nil {
		obs.emit(entity.StepError, "edge detection failed", err.Error())
		return nil, fmt.Errorf("detect edges: %w", err)
	}
	obs.emit(entity.StepEdges, "edge map ready", edges.Edges)

	candidates := p.deps.Generator.Generate(ctx, frame, edges.Contours)
	obs.emit(entity.StepCandidatesFound, fmt.Sprintf("%d candidates", len(candidates)), candidates)

	reading := &entity.PlateReading{
		SourceCandidateRank: -1,
		Candidates:          candidates,
	}
	if len(candidates) == 0 {
		reading.Status = entity.StatusNoCandidate
		obs.emit(entity.StepFinalResult, "no plate candidates", reading)
		return reading, nil
	}

	limit := min(p.opts.TopK, len(candidates))
	for rank := 0; rank < limit; rank++ {
		if rank > 0 {
			obs.emit(entity.StepFallback, fmt.Sprintf("trying candidate %d", rank), rank)
		}
		obs.emit(entity.StepCandidate, fmt.Sprintf("candidate %d score %.3f", rank, candidates[rank].Score), candidates[rank])

		read, err := p.tryCandidate(ctx, frame, candidates[rank], obs)
		attempt := entity.CandidateAttempt{Rank: rank, Outcome: outcomeOf(err)}
		if read != nil {
			attempt.RawText = read.rawText
		}
		if err != nil {
			attempt.Error = err.Error()
			p.log.WithFields(logrus.Fields{
				"rank":    rank,
				"outcome": attempt.Outcome,
				"error":   err,
			}).Debug("candidate rejected")
		}
		reading.Attempts = append(reading.Attempts, attempt)
		if err != nil {
			continue
		}

		reading.Status = entity.StatusOK
		reading.Text = read.choice.Text
		reading.Format = read.choice.Format
		reading.SourceCandidateRank = rank
		reading.Confidence = read.conf
		reading.Interpretations = read.result
		reading.Colors = read.colors
		reading.Quad = read.quad
		reading.Crop = read.crop
		reading.Binary = read.binary.Image
		obs.emit(entity.StepCandidateChosen, fmt.Sprintf("candidate %d read %s", rank, read.choice.Text), read.choice)
		break
	}

	if reading.Status != entity.StatusOK {
		reading.Status = entity.StatusInvalid
	}
	obs.emit(entity.StepFinalResult, string(reading.Status), reading)
	return reading, nil
}

// tryCandidate Warp → Judge → Segment → OCR → Assemble → Validate → Disambiguate.
// При неудаче возвращает обёрнутую ошибку шага; частичный результат может
// содержать сырой текст OCR.
func (p *Pipeline) tryCandidate(ctx context.Context, frame image.Image, cand entity.Candidate, obs *safeObserver) (*candidateRead, error) {
	quad := cand.Quad
	if !cand.Shrunk && p.opts.ShrinkFactor > 0 {
		quad = quad.Shrink(p.opts.ShrinkFactor, p.opts.ShrinkCap)
	}

	crop, err := p.deps.Warper.Warp(frame, quad, p.opts.CropWidth, p.opts.CropHeight)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWarpFailed, err)
	}
	obs.emit(entity.StepPlateCrop, "plate crop", crop)

	variant, err := p.deps.Binarizer.Binarize(crop)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadBinarization, err)
	}
	obs.emit(entity.StepBinarization, fmt.Sprintf("%s judge %.3f", variant.RecipeID, variant.JudgeScore), variant)

	blobs := p.deps.Segmenter.Segment(variant.Image)
	obs.emit(entity.StepCharacters, fmt.Sprintf("%d characters", len(blobs)), blobs)

	colors := p.deps.Colors.Analyze(crop)

	text, rawText, err := p.readText(ctx, crop, variant.Image, blobs)
	read := &candidateRead{rawText: rawText}
	if err != nil {
		return read, err
	}
	obs.emit(entity.StepOCRText, text.Text, text.Text)

	result := p.deps.Validator.Validate(text.Text, text.Confidences)
	if text.HasSeparator {
		result = result.WithFormat(entity.FormatOld)
	}
	obs.emit(entity.StepValidation, fmt.Sprintf("%d interpretations", len(result)), result)

	choice, ok := p.deps.Disambiguator.Choose(result, colors)
	if !ok {
		return read, fmt.Errorf("%w: %q", ErrValidationEmpty, text.Text)
	}

	read.choice = choice
	read.quad = quad
	read.result = result
	read.colors = colors
	read.crop = crop
	read.binary = variant
	read.conf = confidence(text.Confidences, choice.Text, variant.JudgeScore)
	return read, nil
}

// readText распознаёт бинарное изображение, затем цветной кроп, затем
// посимвольно. Берётся первый текст, похожий на номер; иначе самый длинный.
func (p *Pipeline) readText(ctx context.Context, crop *image.NRGBA, binary *image.Gray, blobs []entity.CharacterBlob) (plate.Assembled, string, error) {
	var (
		best    plate.Assembled
		raw     []string
		lastErr error
		okCount int
	)
	consider := func(out entity.OCRText) bool {
		okCount++
		raw = append(raw, out.Text)
		asm := plate.Assemble(out.Text, out.Confidences)
		if asm.PlateShaped || len(asm.Text) > len(best.Text) {
			best = asm
		}
		return asm.PlateShaped
	}

	for _, img := range []image.Image{imaging.Invert(binary), crop} {
		out, err := p.recognize(ctx, img)
		if err != nil {
			lastErr = err
			continue
		}
		if consider(out) {
			return best, strings.Join(raw, "|"), nil
		}
	}

	if p.opts.CharacterFallback && len(blobs) > 0 {
		out, err := p.recognizeCharacters(ctx, crop, blobs)
		if err != nil {
			lastErr = err
		} else if consider(out) {
			return best, strings.Join(raw, "|"), nil
		}
	}

	if okCount == 0 {
		return best, "", lastErr
	}
	return best, strings.Join(raw, "|"), nil
}

// recognizeCharacters распознаёт каждый символ отдельно с отступом и склеивает.
// Уверенности сохраняются, только если каждый символ дал ровно один знак.
func (p *Pipeline) recognizeCharacters(ctx context.Context, crop *image.NRGBA, blobs []entity.CharacterBlob) (entity.OCRText, error) {
	var (
		b       strings.Builder
		confs   []float64
		aligned = true
		okCount int
		lastErr error
	)
	for _, blob := range blobs {
		r := blob.Box.Inset(-p.opts.CharacterPadding).Intersect(crop.Rect)
		if r.Empty() {
			aligned = false
			continue
		}
		out, err := p.recognize(ctx, crop.SubImage(r))
		if err != nil {
			lastErr = err
			aligned = false
			continue
		}
		okCount++
		asm := plate.Assemble(out.Text, out.Confidences)
		if asm.Text == "" {
			aligned = false
			continue
		}
		b.WriteByte(asm.Text[0])
		if len(asm.Confidences) > 0 {
			confs = append(confs, asm.Confidences[0])
		} else {
			aligned = false
		}
	}
	if okCount == 0 {
		return entity.OCRText{}, lastErr
	}

	text := entity.OCRText{Text: b.String()}
	if aligned && len(confs) == len(text.Text) {
		text.Confidences = confs
	}
	return text, nil
}

// recognize вызывает OCR и превращает панику адаптера в ErrOCRFailed.
func (p *Pipeline) recognize(ctx context.Context, img image.Image) (out entity.OCRText, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = entity.OCRText{}
			err = fmt.Errorf("%w: panic: %v", ErrOCRFailed, r)
		}
	}()

	out, err = p.deps.Recognizer.Recognize(ctx, img)
	if err != nil {
		return entity.OCRText{}, fmt.Errorf("%w: %w", ErrOCRFailed, err)
	}
	if len(out.Confidences) != 0 && len(out.Confidences) != len([]rune(out.Text)) {
		out.Confidences = nil
	}
	return out, nil
}

// confidence средняя уверенность символов выбранного текста; без них — оценка судьи.
func confidence(confs []float64, text string, judge float64) float64 {
	if len(confs) == 0 || len(confs) != len(text) {
		return judge
	}
	var sum float64
	for _, c := range confs {
		sum += c
	}
	return sum / float64(len(confs))
}

func outcomeOf(err error) entity.AttemptOutcome {
	switch {
	case err == nil:
		return entity.OutcomeSuccess
	case errors.Is(err, ErrWarpFailed):
		return entity.OutcomeWarpFailed
	case errors.Is(err, ErrBadBinarization):
		return entity.OutcomeBadBinarization
	case errors.Is(err, ErrOCRFailed):
		return entity.OutcomeOCRFailed
	default:
		return entity.OutcomeValidationEmpty
	}
}
