package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// CannyPreset пара порогов детектора границ.
type CannyPreset struct {
	Low  float64
	High float64
}

// Config настройки сервиса распознавания номеров.
type Config struct {
	AppEnv   string `validate:"required"`
	LogLevel string `validate:"required,oneof=trace debug info warn error"`
	LogFile  string

	HTTPAddr      string  `validate:"required"`
	RateLimit     float64 `validate:"gte=0"`
	RateBurst     int     `validate:"gte=1"`
	TelegramToken string

	OCREngine   string `validate:"required,oneof=tesseract"`
	OCRLanguage string `validate:"required"`
	CascadePath string

	Pipeline PipelineConfig

	StorageDriver string `validate:"required,oneof=memory postgres"`
	DatabaseURL   string `validate:"required_if=StorageDriver postgres"`

	ImageStore string `validate:"required,oneof=disk s3"`
	ImageDir   string `validate:"required_if=ImageStore disk"`
	AWS        AWSConfig

	DedupWindow   time.Duration `validate:"gte=0"`
	RedisAddress  string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
}

// PipelineConfig числовые параметры поиска и чтения номера.
type PipelineConfig struct {
	TopK                   int           `validate:"gte=1,lte=50"`
	BlueThreshold          float64       `validate:"gte=0,lte=1"`
	LowConfidenceThreshold float64       `validate:"gte=0,lte=1"`
	JudgeFloor             float64       `validate:"gte=0,lte=1"`
	ShrinkFactor           float64       `validate:"gte=0,lt=1"`
	ShrinkCap              float64       `validate:"gte=0,lt=1"`
	CropWidth              int           `validate:"gte=32"`
	CropHeight             int           `validate:"gte=16"`
	CannyPresets           []CannyPreset `validate:"min=1"`
	CharacterFallback      bool
}

// AWSConfig доступ к S3 для хранения снимков.
type AWSConfig struct {
	Region          string
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	presets, err := parseCannyPresets(getEnv("CANNY_PRESETS", "50:150,100:200,150:250"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		RateLimit:     getEnvFloat("RATE_LIMIT", 2),
		RateBurst:     getEnvInt("RATE_BURST", 5),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		OCREngine:     getEnv("OCR_ENGINE", "tesseract"),
		OCRLanguage:   getEnv("OCR_LANGUAGE", "eng"),
		CascadePath:   getEnv("CASCADE_PATH", ""),
		Pipeline: PipelineConfig{
			TopK:                   getEnvInt("TOP_K", 5),
			BlueThreshold:          getEnvFloat("BLUE_THRESHOLD", 0.12),
			LowConfidenceThreshold: getEnvFloat("LOW_CONFIDENCE_THRESHOLD", 0.65),
			JudgeFloor:             getEnvFloat("JUDGE_FLOOR", 0.1),
			ShrinkFactor:           getEnvFloat("SHRINK_FACTOR", 0.25),
			ShrinkCap:              getEnvFloat("SHRINK_CAP", 0.15),
			CropWidth:              getEnvInt("CROP_WIDTH", 400),
			CropHeight:             getEnvInt("CROP_HEIGHT", 130),
			CannyPresets:           presets,
			CharacterFallback:      getEnvBool("CHARACTER_FALLBACK", true),
		},
		StorageDriver: getEnv("STORAGE_DRIVER", "memory"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		ImageStore:    getEnv("IMAGE_STORE", "disk"),
		ImageDir:      getEnv("IMAGE_DIR", "./storage/images"),
		AWS: AWSConfig{
			Region:          os.Getenv("AWS_REGION"),
			BucketName:      os.Getenv("AWS_BUCKET_NAME"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},
		DedupWindow:   getEnvDuration("DEDUP_WINDOW", 0),
		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.ImageStore == "s3" && cfg.AWS.BucketName == "" {
		return nil, fmt.Errorf("invalid config: AWS_BUCKET_NAME is required for s3 image store")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// parseCannyPresets разбирает строку вида "50:150,100:200".
func parseCannyPresets(raw string) ([]CannyPreset, error) {
	var presets []CannyPreset
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		low, high, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid canny preset %q", part)
		}
		l, err := strconv.ParseFloat(low, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid canny preset %q: %w", part, err)
		}
		h, err := strconv.ParseFloat(high, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid canny preset %q: %w", part, err)
		}
		if l >= h {
			return nil, fmt.Errorf("invalid canny preset %q: low must be below high", part)
		}
		presets = append(presets, CannyPreset{Low: l, High: h})
	}
	return presets, nil
}
