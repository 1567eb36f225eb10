package port

import "plate-reader/internal/domain/entity"

// ProgressObserver получатель событий обработки, без подтверждения
type ProgressObserver interface {
	Notify(event entity.ProgressEvent)
}

// ProgressFunc адаптер функции к ProgressObserver
type ProgressFunc func(event entity.ProgressEvent)

func (f ProgressFunc) Notify(event entity.ProgressEvent) {
	f(event)
}
