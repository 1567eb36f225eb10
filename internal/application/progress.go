package app

import (
	"github.com/sirupsen/logrus"

	"plate-reader/internal/domain/entity"
	"plate-reader/internal/domain/port"
)

// safeObserver глушит паники наблюдателя: обработка кадра от него не зависит.
type safeObserver struct {
	next port.ProgressObserver
	log  logrus.FieldLogger
}

func newSafeObserver(next port.ProgressObserver, log logrus.FieldLogger) *safeObserver {
	return &safeObserver{next: next, log: log}
}

func (o *safeObserver) emit(step entity.ProgressStep, message string, payload any) {
	o.Notify(entity.ProgressEvent{Step: step, Message: message, Payload: payload})
}

func (o *safeObserver) Notify(event entity.ProgressEvent) {
	if o == nil || o.next == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.log.WithFields(logrus.Fields{
				"step":  event.Step,
				"panic": r,
			}).Warn("progress observer failed")
		}
	}()
	o.next.Notify(event)
}
