package storage

import (
	"context"
	"sync"

	"plate-reader/internal/domain/entity"
	"plate-reader/internal/domain/port"
)

// MemoryUserRepository хранит диалоговое состояние пользователей в памяти процесса
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[int64]entity.User
}

// NewMemoryUserRepository создаёт пустое хранилище
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[int64]entity.User)}
}

// Get возвращает копию, наружу указатели на внутреннее состояние не уходят
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.lookup(userID, chatID)
	return &user, nil
}

// Update выполняет fn под блокировкой и сохраняет результат, если fn не вернула ошибку
func (r *MemoryUserRepository) Update(ctx context.Context, userID, chatID int64, fn func(*entity.User) error) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.lookup(userID, chatID)
	if err := fn(&user); err != nil {
		return nil, err
	}
	r.users[userID] = user

	out := user
	return &out, nil
}

func (r *MemoryUserRepository) lookup(userID, chatID int64) entity.User {
	if user, ok := r.users[userID]; ok {
		if chatID != 0 {
			user.ChatID = chatID
		}
		return user
	}
	user := *entity.NewUser(userID, chatID)
	r.users[userID] = user
	return user
}

var _ port.UserRepository = (*MemoryUserRepository)(nil)
