package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"plate-reader/config"
	telegram "plate-reader/internal/api"
	"plate-reader/internal/api/rest"
	"plate-reader/internal/container"
	"plate-reader/pkg/log"
)

const bodyLimit = 20 * 1024 * 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.NewLogger(log.Options{Level: "info"}).Fatalf("Failed to load config: %v", err)
	}

	logger := log.NewLogger(log.Options{Level: cfg.LogLevel, File: cfg.LogFile, Env: cfg.AppEnv})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Собираем сервисы приложения
	appContainer, err := container.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to build services: %v", err)
	}
	defer appContainer.Close()

	server, err := rest.NewServer(
		rest.WithFiber(rest.NewFiber(bodyLimit)),
		rest.WithLogger(logger),
		rest.WithRecognition(appContainer.RecognitionService),
		rest.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	)
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}
	server.RegisterHandler()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(cfg.HTTPAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer, logger)
		if err != nil {
			logger.Fatalf("Failed to create bot: %v", err)
		}
		g.Go(func() error {
			logger.Info("Bot is running...")
			return bot.Run(gctx)
		})
	} else {
		logger.Warn("TELEGRAM_TOKEN is empty, bot is disabled")
	}

	if err := g.Wait(); err != nil {
		logger.Errorf("Service stopped with error: %v", err)
		appContainer.Close()
		os.Exit(1)
	}
	logger.Info("Service stopped")
}
