package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"plate-reader/config"
	"plate-reader/internal/domain/port"
)

// DiskImageStore хранит изображения в каталоге
type DiskImageStore struct {
	dir string
}

// NewDiskImageStore создаёт каталог при необходимости
func NewDiskImageStore(dir string) (*DiskImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &DiskImageStore{dir: dir}, nil
}

// Put записывает файл и возвращает его путь
func (s *DiskImageStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	_ = ctx
	_ = contentType
	path := filepath.Join(s.dir, filepath.Clean("/"+name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// S3ImageStore хранит изображения в бакете S3
type S3ImageStore struct {
	uploader   *s3manager.Uploader
	bucketName string
	prefix     string
}

// NewS3ImageStore создаёт сессию AWS по статическим ключам
func NewS3ImageStore(cfg config.AWSConfig, prefix string) (*S3ImageStore, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, err
	}

	return &S3ImageStore{
		uploader:   s3manager.NewUploader(sess),
		bucketName: cfg.BucketName,
		prefix:     strings.Trim(prefix, "/"),
	}, nil
}

// Put загружает объект и возвращает его адрес
func (s *S3ImageStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := strings.TrimLeft(name, "/")
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}

	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return out.Location, nil
}

// Проверка реализации интерфейса
var (
	_ port.ImageStore = (*DiskImageStore)(nil)
	_ port.ImageStore = (*S3ImageStore)(nil)
)
