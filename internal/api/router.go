package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/photocap/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/photocap/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/photocap/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/photocap/internal/service"
	"github.com/saturnino-fabrica-de-software/photocap/internal/ws"
)

const cleanupInterval = 5 * time.Minute

// Cleaner removes expired rows, such as search rate limit windows or cache
// entries.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type Dependencies struct {
	PhotoService    handler.PhotoService
	DB              handler.Pinger
	Cleaners        map[string]Cleaner
	Hub             *ws.Hub
	ProviderName    string
	SearchAvailable bool
	MaxUploadBytes  int64
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
	cancel      context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	cfg := fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Photocap API",
	}
	if deps != nil && deps.MaxUploadBytes > 0 {
		// multipart overhead on top of the image itself
		cfg.BodyLimit = int(deps.MaxUploadBytes) + 1024*1024
	}

	return &Router{
		app:    fiber.New(cfg),
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var healthHandler *handler.HealthHandler
	if r.deps != nil {
		healthHandler = handler.NewHealthHandler(r.deps.DB, r.deps.ProviderName, r.deps.SearchAvailable)
	} else {
		healthHandler = handler.NewHealthHandler(nil, "", false)
	}
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	v1 := r.app.Group("/v1")

	// Only configure photo routes if dependencies were provided
	if r.deps == nil || r.deps.PhotoService == nil {
		return
	}

	// Per-client limits for the whole API; search has its own shared
	// limiter in the service.
	r.rateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	v1.Use(r.rateLimiter.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	if len(r.deps.Cleaners) > 0 {
		go r.runCleanup(ctx)
	}

	photoHandler := handler.NewPhotoHandler(r.deps.PhotoService, r.deps.MaxUploadBytes, r.logger)

	events := v1.Group("/events/:event_id")
	events.Post("/photos", photoHandler.Ingest)
	events.Get("/photos/:photo_id/analysis", photoHandler.Analysis)
	events.Post("/search", photoHandler.Search)
	events.Get("/stats", photoHandler.Stats)
	events.Post("/reindex", photoHandler.Reindex)
	events.Get("/search-metrics", photoHandler.SearchMetrics)

	if r.deps.Hub != nil {
		go r.deps.Hub.Run(ctx)
		events.Get("/live", ws.UpgradeMiddleware(service.ValidEventID), ws.Handler(r.deps.Hub))
	}
}

func (r *Router) runCleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, cleaner := range r.deps.Cleaners {
				removed, err := cleaner.CleanupExpired(ctx)
				if err != nil {
					r.logger.Warn("cleanup failed", "target", name, "error", err)
					continue
				}
				if removed > 0 {
					r.logger.Debug("expired rows removed", "target", name, "count", removed)
				}
			}
		}
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// stops cleanup and the live hub
	if r.cancel != nil {
		r.cancel()
	}

	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
