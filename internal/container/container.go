package container

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"plate-reader/config"
	app "plate-reader/internal/application"
	"plate-reader/internal/domain/plate"
	"plate-reader/internal/domain/port"
	"plate-reader/internal/infrastructure/ocr"
	"plate-reader/internal/infrastructure/storage"
	"plate-reader/internal/infrastructure/vision"
)

type Container struct {
	UserService        *app.UserService
	RecognitionService *app.RecognitionService

	closers []io.Closer
}

// New собирает сервисы приложения по конфигурации.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Container, error) {
	c := &Container{}

	pipeline, closer, err := NewPipeline(cfg, log)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, closer)

	readings, err := c.readingRepository(ctx, cfg, log)
	if err != nil {
		c.Close()
		return nil, err
	}

	images, err := imageStore(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	var guard port.DuplicateGuard = storage.NewMemoryDuplicateGuard()
	if cfg.RedisAddress != "" {
		redisGuard := storage.NewRedisDuplicateGuard(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB, log)
		c.closers = append(c.closers, redisGuard)
		guard = redisGuard
	}

	c.UserService = app.NewUserService(storage.NewMemoryUserRepository())
	c.RecognitionService = app.NewRecognitionService(pipeline, vision.NewCodec(), app.RecognitionDeps{
		Readings:    readings,
		Images:      images,
		Guard:       guard,
		DedupWindow: cfg.DedupWindow,
	}, log)

	return c, nil
}

// NewPipeline создаёт конвейер с собственным OCR-движком. Закрывающий
// объект освобождает движок и каскад.
func NewPipeline(cfg *config.Config, log *logrus.Logger) (*app.Pipeline, io.Closer, error) {
	engine, err := ocr.New(cfg.OCREngine, cfg.OCRLanguage)
	if err != nil {
		return nil, nil, fmt.Errorf("ocr engine: %w", err)
	}
	closers := closerList{engine}

	var rects port.RectDetector
	if cfg.CascadePath != "" {
		cascade, err := vision.NewGoCVCascadeDetector(cfg.CascadePath)
		if err != nil {
			closers.Close()
			return nil, nil, fmt.Errorf("cascade detector: %w", err)
		}
		closers = append(closers, cascade)
		rects = cascade
	}

	judgeCfg := vision.DefaultJudgeConfig()
	judgeCfg.Floor = cfg.Pipeline.JudgeFloor
	judge := vision.NewBinarizationJudge(judgeCfg)

	genCfg := vision.DefaultGeneratorConfig()
	genCfg.ShrinkFactor = cfg.Pipeline.ShrinkFactor
	genCfg.ShrinkCap = cfg.Pipeline.ShrinkCap

	warper := vision.NewPerspectiveWarper()

	pipeline := app.NewPipeline(app.PipelineDeps{
		Edges:         vision.NewGoCVEdgeSource(cfg.Pipeline.CannyPresets),
		Generator:     vision.NewCandidateGenerator(genCfg, warper, judge, rects, log),
		Warper:        warper,
		Binarizer:     judge,
		Segmenter:     vision.NewCharacterSegmenter(judgeCfg.Rules),
		Recognizer:    engine,
		Colors:        vision.NewHSVColorAnalyzer(vision.DefaultColorConfig()),
		Validator:     plate.NewValidator(cfg.Pipeline.LowConfidenceThreshold),
		Disambiguator: plate.NewDisambiguator(cfg.Pipeline.BlueThreshold),
	}, app.PipelineOptions{
		TopK:              cfg.Pipeline.TopK,
		CropWidth:         cfg.Pipeline.CropWidth,
		CropHeight:        cfg.Pipeline.CropHeight,
		CharacterFallback: cfg.Pipeline.CharacterFallback,
		CharacterPadding:  8,
		ShrinkFactor:      genCfg.ShrinkFactor,
		ShrinkCap:         genCfg.ShrinkCap,
	}, log)

	return pipeline, closers, nil
}

func (c *Container) readingRepository(ctx context.Context, cfg *config.Config, log *logrus.Logger) (port.ReadingRepository, error) {
	if cfg.StorageDriver != "postgres" {
		return storage.NewMemoryReadingRepository(), nil
	}
	repo, err := storage.NewPostgresReadingRepository(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	c.closers = append(c.closers, repo)
	return repo, nil
}

func imageStore(cfg *config.Config) (port.ImageStore, error) {
	if cfg.ImageStore == "s3" {
		return storage.NewS3ImageStore(cfg.AWS, "readings")
	}
	return storage.NewDiskImageStore(cfg.ImageDir)
}

// Close освобождает ресурсы в обратном порядке создания.
func (c *Container) Close() error {
	return closerList(c.closers).Close()
}

type closerList []io.Closer

func (l closerList) Close() error {
	var errs []error
	for i := len(l) - 1; i >= 0; i-- {
		if err := l[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
