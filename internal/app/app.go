// Package app assembles the database, face provider and photo service from
// configuration. Both the HTTP server and the CLI start from here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/photocap/internal/audit"
	"github.com/saturnino-fabrica-de-software/photocap/internal/cache"
	"github.com/saturnino-fabrica-de-software/photocap/internal/config"
	"github.com/saturnino-fabrica-de-software/photocap/internal/database"
	"github.com/saturnino-fabrica-de-software/photocap/internal/face"
	"github.com/saturnino-fabrica-de-software/photocap/internal/metrics"
	"github.com/saturnino-fabrica-de-software/photocap/internal/ratelimit"
	"github.com/saturnino-fabrica-de-software/photocap/internal/repository"
	"github.com/saturnino-fabrica-de-software/photocap/internal/service"
)

const searchRateWindow = time.Minute

type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	Capability  face.Capability
	RateLimiter *ratelimit.RateLimiter
	Cache       *cache.PGCache
	Metrics     *metrics.Repository
	Photos      *service.PhotoService
}

// New migrates the database, opens the pool and builds the photo service.
// A face provider that cannot be built leaves search unavailable instead of
// failing.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	poolCfg := database.DefaultPoolConfig(cfg.DatabaseURL)

	if err := migrate(poolCfg); err != nil {
		return nil, err
	}
	logger.Info("database schema up to date")

	pool, err := database.NewPgxPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	capability := face.ResolveCapability(cfg, logger)
	limiter := ratelimit.NewRateLimiter(pool, searchRateWindow)
	statsCache := cache.NewPGCache(pool)
	searchMetrics := metrics.NewRepository(pool)

	photos := service.NewPhotoService(
		repository.NewPhotoAnalysisRepository(pool),
		repository.NewSearchAuditRepository(pool),
		capability.Provider,
		face.MatchConfig(cfg),
		logger,
	).
		WithRateLimiter(limiter, cfg.SearchRateLimit).
		WithStorage(cfg.UploadDir, cfg.AnnotatedDir).
		WithTextDetector(textDetector(cfg, logger)).
		WithStatsCache(statsCache, cfg.StatsCacheTTL).
		WithSearchMetrics(searchMetrics).
		WithAuditLogger(audit.NewSlogLogger(logger))

	return &App{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Capability:  capability,
		RateLimiter: limiter,
		Cache:       statsCache,
		Metrics:     searchMetrics,
		Photos:      photos,
	}, nil
}

func migrate(cfg database.PoolConfig) error {
	db, err := database.NewPool(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := database.MigrateUp(db, cfg.DSN); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

func (a *App) ProviderName() string {
	if a.Capability.Provider == nil {
		return ""
	}
	return a.Capability.Provider.Name()
}

func (a *App) Close() {
	a.Pool.Close()
}

func textDetector(cfg *config.Config, logger *slog.Logger) service.TextRegionDetector {
	if d := face.NewTextDetector(cfg, logger); d != nil {
		return d
	}
	return nil
}
