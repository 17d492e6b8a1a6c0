// Package main запускает HTTP-сервер сервиса продажи билетов на события.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/ticketing-system/internal/config"
	"github.com/mmeshcher/ticketing-system/internal/handler"
	"github.com/mmeshcher/ticketing-system/internal/logger"
	"github.com/mmeshcher/ticketing-system/internal/middleware"
	"github.com/mmeshcher/ticketing-system/internal/notify"
	"github.com/mmeshcher/ticketing-system/internal/repository"
	"github.com/mmeshcher/ticketing-system/internal/service"
)

func main() {
	// .env необязателен: в контейнере конфигурация приходит из окружения.
	_ = godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("logger initialization error: %v", err)
	}
	defer zl.Sync()

	sugar := zl.Sugar()

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var notifier service.Notifier = notify.Nop{}
	if cfg.RabbitMQURL != "" {
		publisher, err := notify.Dial(ctx, cfg.RabbitMQURL, zl)
		if err != nil {
			sugar.Fatalw("rabbitmq connection error", "error", err.Error())
		}
		defer publisher.Close()
		notifier = publisher
	} else {
		sugar.Info("RABBITMQ_URL is empty, notifications are disabled")
	}

	svc := service.NewService(repo, notifier, zl)
	defer func() {
		if err := svc.Close(); err != nil {
			sugar.Warnw("close service", "error", err.Error())
		}
	}()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if cfg.JWTSecret == "" {
		sugar.Warn("JWT_SECRET is empty, tokens will not survive a restart")
	}

	h := handler.NewHandler(svc, zl, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting ticketing server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
		os.Exit(1)
	}
}
