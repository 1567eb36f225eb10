package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"plate-reader/internal/domain/port"
)

// MemoryDuplicateGuard помнит время последнего сохранения каждого номера
type MemoryDuplicateGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryDuplicateGuard создаёт in-memory фильтр повторов
func NewMemoryDuplicateGuard() *MemoryDuplicateGuard {
	return &MemoryDuplicateGuard{seen: make(map[string]time.Time), now: time.Now}
}

// Allow разрешает сохранение, если номер не сохранялся последние window
func (g *MemoryDuplicateGuard) Allow(ctx context.Context, plate string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.seen[plate]; ok && now.Sub(last) < window {
		return false, nil
	}
	g.seen[plate] = now
	return true, nil
}

// Forget забывает номер
func (g *MemoryDuplicateGuard) Forget(ctx context.Context, plate string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.seen, plate)
	return nil
}

// RedisDuplicateGuard фильтр повторов на Redis (SET NX с TTL), общий для нескольких процессов
type RedisDuplicateGuard struct {
	client *redis.Client
	log    *logrus.Logger
}

// NewRedisDuplicateGuard подключается к Redis
func NewRedisDuplicateGuard(addr, password string, db int, log *logrus.Logger) *RedisDuplicateGuard {
	log.Info(fmt.Sprintf("Connecting to Redis at %s...", addr))

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		log.Info("Successfully connected to Redis")
	}

	return &RedisDuplicateGuard{client: client, log: log}
}

// Allow ставит ключ с TTL window; если ключ уже есть — это повтор
func (g *RedisDuplicateGuard) Allow(ctx context.Context, plate string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	key := "plate:recent:" + plate
	ok, err := g.client.SetNX(ctx, key, time.Now().Unix(), window).Result()
	if err != nil {
		g.log.Error(fmt.Sprintf("Error setting key %s: %v", key, err))
		return false, err
	}
	return ok, nil
}

// Forget удаляет ключ номера
func (g *RedisDuplicateGuard) Forget(ctx context.Context, plate string) error {
	key := "plate:recent:" + plate
	if err := g.client.Del(ctx, key).Err(); err != nil {
		g.log.Error(fmt.Sprintf("Error deleting key %s: %v", key, err))
		return err
	}
	return nil
}

// Close закрывает соединение с Redis
func (g *RedisDuplicateGuard) Close() error {
	return g.client.Close()
}

// Проверка реализации интерфейса
var (
	_ port.DuplicateGuard = (*MemoryDuplicateGuard)(nil)
	_ port.DuplicateGuard = (*RedisDuplicateGuard)(nil)
)
