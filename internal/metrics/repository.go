// Package metrics summarises search activity from the search audit trail.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
)

// DB is satisfied by *pgxpool.Pool and pgxmock.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// SearchSummary aggregates the searches of one event since a point in time.
type SearchSummary struct {
	EventID      string                         `json:"event_id"`
	Since        time.Time                      `json:"since"`
	Searches     int64                          `json:"searches"`
	Outcomes     map[domain.SearchOutcome]int64 `json:"outcomes"`
	MatchRate    float64                        `json:"match_rate"`
	AvgResults   float64                        `json:"avg_results"`
	AvgLatencyMs float64                        `json:"avg_latency_ms"`
	P99LatencyMs float64                        `json:"p99_latency_ms"`
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Summary computes outcome counts and latency figures over search_audits.
func (r *Repository) Summary(ctx context.Context, eventID string, since time.Time) (*SearchSummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE outcome = $3),
		       COUNT(*) FILTER (WHERE outcome = $4),
		       COUNT(*) FILTER (WHERE outcome = $5),
		       COUNT(*) FILTER (WHERE outcome = $6),
		       COALESCE(AVG(results_count), 0)::float8,
		       COALESCE(AVG(latency_ms), 0)::float8,
		       COALESCE(percentile_cont(0.99) WITHIN GROUP (ORDER BY latency_ms), 0)::float8
		FROM search_audits
		WHERE event_id = $1 AND created_at >= $2
	`

	var matched, noMatches, noFace, unprocessable int64
	summary := &SearchSummary{EventID: eventID, Since: since}

	err := r.db.QueryRow(ctx, query,
		eventID,
		since,
		domain.OutcomeMatched,
		domain.OutcomeNoMatches,
		domain.OutcomeNoFaceInQuery,
		domain.OutcomeQueryUnprocessable,
	).Scan(
		&summary.Searches,
		&matched,
		&noMatches,
		&noFace,
		&unprocessable,
		&summary.AvgResults,
		&summary.AvgLatencyMs,
		&summary.P99LatencyMs,
	)
	if err != nil {
		return nil, fmt.Errorf("event %s: search summary: %w", eventID, err)
	}

	summary.Outcomes = map[domain.SearchOutcome]int64{
		domain.OutcomeMatched:            matched,
		domain.OutcomeNoMatches:          noMatches,
		domain.OutcomeNoFaceInQuery:      noFace,
		domain.OutcomeQueryUnprocessable: unprocessable,
	}
	if summary.Searches > 0 {
		summary.MatchRate = float64(matched) / float64(summary.Searches)
	}

	return summary, nil
}

// DeleteBefore removes audit rows created before cutoff.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM search_audits WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete search audits: %w", err)
	}
	return result.RowsAffected(), nil
}
