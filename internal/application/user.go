package app

import (
	"context"
	"errors"

	"plate-reader/internal/domain/entity"
	"plate-reader/internal/domain/port"
)

// ErrBusy у пользователя уже идёт распознавание.
var ErrBusy = errors.New("previous photo is still being processed")

// UserService ведёт диалоговое состояние пользователей бота.
type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

// BeginCheck переводит пользователя в ожидание фото.
func (s *UserService) BeginCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.setState(ctx, userID, chatID, entity.StateAwaitingPhoto)
}

// Cancel возвращает пользователя в главное меню.
func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.setState(ctx, userID, chatID, entity.StateMainMenu)
}

// StartProcessing занимает пользователя на время распознавания; второе фото
// до завершения первого отклоняется с ErrBusy.
func (s *UserService) StartProcessing(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, func(u *entity.User) error {
		if !u.AcceptsPhoto() {
			return ErrBusy
		}
		u.SetState(entity.StateProcessing)
		return nil
	})
}

// FinishProcessing освобождает пользователя и запоминает прочитанный номер.
func (s *UserService) FinishProcessing(ctx context.Context, userID, chatID int64, plate string) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, func(u *entity.User) error {
		u.SetState(entity.StateMainMenu)
		if plate != "" {
			u.LastPlate = plate
		}
		return nil
	})
}

func (s *UserService) setState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	return s.repo.Update(ctx, userID, chatID, func(u *entity.User) error {
		u.SetState(state)
		return nil
	})
}
