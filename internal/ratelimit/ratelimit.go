package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
)

// DB interface for database operations
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// RateLimiter provides PostgreSQL-based fixed window rate limiting.
// Counters live in the database so every API replica shares them.
type RateLimiter struct {
	db     DB
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a rate limiter backed by db (usually a *pgxpool.Pool).
func NewRateLimiter(db DB, window time.Duration) *RateLimiter {
	return &RateLimiter{
		db:     db,
		window: window,
		now:    time.Now,
	}
}

// SearchKey identifies the counter for searches against one event from one client.
func SearchKey(eventID, clientIP string) string {
	return fmt.Sprintf("search_rate:%s:%s", eventID, clientIP)
}

// Allow increments the counter for key and returns
// domain.ErrSearchRateLimitExceeded once it passes limit within the window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int) error {
	if limit <= 0 {
		return nil
	}

	now := r.now()
	windowEnd := now.Add(r.window)

	query := `
		WITH current_count AS (
			INSERT INTO rate_limit_counters (key, count, window_start, window_end)
			VALUES ($1, 1, $2, $3)
			ON CONFLICT (key)
			DO UPDATE SET
				count = CASE
					WHEN rate_limit_counters.window_end <= $2 THEN 1
					ELSE rate_limit_counters.count + 1
				END,
				window_start = CASE
					WHEN rate_limit_counters.window_end <= $2 THEN $2
					ELSE rate_limit_counters.window_start
				END,
				window_end = CASE
					WHEN rate_limit_counters.window_end <= $2 THEN $3
					ELSE rate_limit_counters.window_end
				END
			RETURNING count
		)
		SELECT count FROM current_count
	`

	var count int
	if err := r.db.QueryRow(ctx, query, key, now, windowEnd).Scan(&count); err != nil {
		return fmt.Errorf("check rate limit: %w", err)
	}

	if count > limit {
		return domain.ErrSearchRateLimitExceeded.WithError(
			fmt.Errorf("%d/%d requests in window", count, limit))
	}

	return nil
}

// CleanupExpired removes counters whose window closed over an hour ago.
func (r *RateLimiter) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM rate_limit_counters WHERE window_end < NOW() - INTERVAL '1 hour'`
	result, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("cleanup rate limits: %w", err)
	}
	return result.RowsAffected(), nil
}

// CurrentCount returns the count in the open window for key, 0 when none.
func (r *RateLimiter) CurrentCount(ctx context.Context, key string) (int, error) {
	query := `
		SELECT count
		FROM rate_limit_counters
		WHERE key = $1 AND window_end > $2
	`

	var count int
	err := r.db.QueryRow(ctx, query, key, r.now()).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current rate limit count: %w", err)
	}

	return count, nil
}

// Reset clears the counter for key.
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	query := `DELETE FROM rate_limit_counters WHERE key = $1`
	if _, err := r.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}
