package storage

import (
	"context"
	"sort"
	"sync"

	"plate-reader/internal/domain/entity"
	"plate-reader/internal/domain/port"
)

// MemoryReadingRepository in-memory хранилище прочитанных номеров
type MemoryReadingRepository struct {
	mu      sync.RWMutex
	records []entity.ReadingRecord
}

// NewMemoryReadingRepository создаёт новое in-memory хранилище
func NewMemoryReadingRepository() *MemoryReadingRepository {
	return &MemoryReadingRepository{}
}

// Save добавляет запись
func (r *MemoryReadingRepository) Save(ctx context.Context, record entity.ReadingRecord) error {
	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()

	return nil
}

// List возвращает записи по фильтру, новые первыми
func (r *MemoryReadingRepository) List(ctx context.Context, filter entity.ReadingFilter) ([]entity.ReadingRecord, error) {
	r.mu.RLock()
	out := make([]entity.ReadingRecord, 0, len(r.records))
	for _, rec := range r.records {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Проверка реализации интерфейса
var _ port.ReadingRepository = (*MemoryReadingRepository)(nil)
