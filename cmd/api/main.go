package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/photocap/internal/api"
	"github.com/saturnino-fabrica-de-software/photocap/internal/app"
	"github.com/saturnino-fabrica-de-software/photocap/internal/config"
	"github.com/saturnino-fabrica-de-software/photocap/internal/metrics"
	"github.com/saturnino-fabrica-de-software/photocap/internal/webhook"
	"github.com/saturnino-fabrica-de-software/photocap/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting Photocap API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("provider", cfg.ProviderType),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Capability.Available() {
		logger.Warn("starting without face search", slog.String("reason", a.Capability.Reason))
	}

	retention := metrics.NewRetention(a.Metrics, logger, cfg.AuditRetention, time.Hour)
	go retention.Start(ctx)
	defer retention.Stop()

	hub := ws.NewHub()
	a.Photos.WithPublisher(hub)

	if cfg.WebhookURL != "" {
		notifier := webhook.NewNotifier(webhook.DefaultConfig(cfg.WebhookURL, cfg.WebhookSecret), logger)
		go notifier.Run(ctx)
		a.Photos.WithPublisher(notifier)
	}

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		PhotoService: a.Photos,
		DB:           a.Pool,
		Cleaners: map[string]api.Cleaner{
			"search_rate_limits": a.RateLimiter,
			"cache_entries":      a.Cache,
		},
		Hub:             hub,
		ProviderName:    a.ProviderName(),
		SearchAvailable: a.Capability.Available(),
		MaxUploadBytes:  int64(cfg.MaxUploadBytes),
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	done := make(chan error, 1)
	go func() { done <- router.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out")
	}

	logger.Info("server stopped")
	return nil
}
