package rest

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	app "plate-reader/internal/application"
	"plate-reader/internal/domain/entity"
	"plate-reader/internal/domain/port"
)

const (
	maxReadTimeout = 60 * time.Second
	writeTimeout   = 10 * time.Second
)

// StreamHandler принимает снимок по websocket и отдаёт ход обработки событиями.
type StreamHandler struct {
	log         *logrus.Logger
	recognition *app.RecognitionService
}

func NewStreamHandler(log *logrus.Logger, recognition *app.RecognitionService) *StreamHandler {
	return &StreamHandler{log: log, recognition: recognition}
}

func (h *StreamHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Use("/readings", wsMiddleware)
	srv.Get("/readings", websocket.New(h.handleWebSocket))
}

func (h *StreamHandler) handleWebSocket(c *websocket.Conn) {
	h.log.Info("Reading stream client connected")
	defer h.log.Info("Reading stream client disconnected")

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			return
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Reading stream error: %v", err)
			}
			return
		}

		if messageType != websocket.BinaryMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		if !h.process(c, message) {
			return
		}
	}
}

// process возвращает false, если соединение больше не пригодно для записи.
func (h *StreamHandler) process(c *websocket.Conn, frame []byte) bool {
	alive := true
	observer := port.ProgressFunc(func(e entity.ProgressEvent) {
		// итог отправляется ниже вместе с записью и размеченным кадром
		if e.Step == entity.StepFinalResult || !alive {
			return
		}
		alive = h.send(c, toEvent(e))
	})

	out, err := h.recognition.Recognize(context.Background(), frame, time.Time{}, observer)
	if out == nil {
		return h.send(c, EventResponse{Step: entity.StepError, Message: err.Error()}) && alive
	}
	if err != nil {
		h.log.Errorf("Reading was not persisted: %v", err)
	}
	return h.send(c, EventResponse{Step: entity.StepFinalResult, Message: string(out.Reading.Status), Data: toOutput(out)}) && alive
}

func (h *StreamHandler) send(c *websocket.Conn, event EventResponse) bool {
	data, err := jsoniter.Marshal(event)
	if err != nil {
		h.log.Errorf("Error encoding event: %v", err)
		return true
	}
	if err := c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		h.log.Errorf("Error setting write deadline: %v", err)
		return false
	}
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		h.log.Errorf("Error writing event: %v", err)
		return false
	}
	return true
}
