package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db              Pinger
	searchAvailable bool
	provider        string
}

// NewHealthHandler creates a health handler. A nil db skips the database
// check in Ready.
func NewHealthHandler(db Pinger, provider string, searchAvailable bool) *HealthHandler {
	return &HealthHandler{
		db:              db,
		searchAvailable: searchAvailable,
		provider:        provider,
	}
}

type HealthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version,omitempty"`
	Database        string `json:"database,omitempty"`
	Provider        string `json:"provider,omitempty"`
	SearchAvailable *bool  `json:"search_available,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: "0.1.0",
	})
}

// Ready reports database connectivity and whether face search is offered.
// A server without face search is still ready.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:          "ready",
		Provider:        h.provider,
		SearchAvailable: &h.searchAvailable,
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := h.db.Ping(ctx); err != nil {
			resp.Status = "not_ready"
			resp.Database = "unreachable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
		}
		resp.Database = "ok"
	}

	return c.JSON(resp)
}
