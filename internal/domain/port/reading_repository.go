package port

import (
	"context"
	"time"

	"plate-reader/internal/domain/entity"
)

// ReadingRepository интерфейс хранилища прочитанных номеров
type ReadingRepository interface {
	// Save сохраняет запись о прочитанном номере
	Save(ctx context.Context, record entity.ReadingRecord) error

	// List возвращает записи по фильтру, новые первыми
	List(ctx context.Context, filter entity.ReadingFilter) ([]entity.ReadingRecord, error)
}

// ImageStore интерфейс хранилища изображений
type ImageStore interface {
	// Put сохраняет изображение и возвращает его адрес
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// DuplicateGuard не даёт сохранять один и тот же номер чаще заданного окна
type DuplicateGuard interface {
	// Allow возвращает true, если номер можно сохранить сейчас
	Allow(ctx context.Context, plate string, window time.Duration) (bool, error)

	// Forget снимает отметку Allow, если номер так и не был сохранён
	Forget(ctx context.Context, plate string) error
}
