package rest

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	app "plate-reader/internal/application"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	log         *logrus.Logger
	validator   *validator.Validate
	recognition *app.RecognitionService
	handlers    []handler

	ratePerSecond float64
	rateBurst     int
}

type handler interface {
	Start(srv fiber.Router)
}

// NewFiber создаёт fiber-приложение с кодеком json-iterator.
func NewFiber(bodyLimit int) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               "plate-reader",
		BodyLimit:             bodyLimit,
		StrictRouting:         true,
		CaseSensitive:         true,
		DisableStartupMessage: true,
		JSONEncoder:           jsoniter.Marshal,
		JSONDecoder:           jsoniter.Unmarshal,
	})
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.recognition == nil {
		return nil, fmt.Errorf("recognition service is required")
	}
	if server.validator == nil {
		server.validator = validator.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(v *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = v
		return nil
	}
}

func WithRecognition(svc *app.RecognitionService) ServerOption {
	return func(s *Server) error {
		s.recognition = svc
		return nil
	}
}

// WithRateLimit ограничивает частоту запросов к распознаванию с одного IP;
// perSecond<=0 отключает ограничение.
func WithRateLimit(perSecond float64, burst int) ServerOption {
	return func(s *Server) error {
		if perSecond > 0 && burst < 1 {
			return fmt.Errorf("rate burst must be positive, got %d", burst)
		}
		s.ratePerSecond, s.rateBurst = perSecond, burst
		return nil
	}
}

// RegisterHandler подключает middleware и маршруты.
func (s *Server) RegisterHandler() {
	s.engine.Use(RequestID(), Logger(s.log))
	s.setupHealthCheck()

	readings := NewReadingHandler(s.log, s.validator, s.recognition)
	s.handlers = append(s.handlers, readings)

	var limits []fiber.Handler
	if s.ratePerSecond > 0 {
		limits = append(limits, RateLimit(s.log, s.ratePerSecond, s.rateBurst))
	}

	router := s.engine.Group("/api/v1", limits...)
	for _, h := range s.handlers {
		h.Start(router)
	}

	NewStreamHandler(s.log, s.recognition).Start(s.engine.Group("/ws", limits...))
}

// App доступ к fiber-приложению (для тестов через app.Test).
func (s *Server) App() *fiber.App {
	return s.engine
}

func (s *Server) Run(addr string) error {
	s.log.Infof("HTTP server listening on %s", addr)
	return s.engine.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.engine.ShutdownWithContext(ctx)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"status": "ok",
		})
	})
}
