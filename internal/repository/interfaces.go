package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool used by the repositories. It is
// satisfied by pgxmock.PgxPoolIface in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PhotoAnalysisRepositoryInterface defines operations for photo analysis data access
type PhotoAnalysisRepositoryInterface interface {
	Create(ctx context.Context, analysis *domain.PhotoAnalysis) error
	GetByPhotoID(ctx context.Context, eventID, photoID string) (*domain.PhotoAnalysis, error)
	ListByEvent(ctx context.Context, eventID string) ([]*domain.PhotoAnalysis, error)
	ReplaceDescriptors(ctx context.Context, id uuid.UUID, descriptors []domain.Descriptor, version string) error
	Stats(ctx context.Context, eventID, currentVersion string) (*domain.EventStats, error)
}

// SearchAuditRepositoryInterface defines operations for search audit logging
type SearchAuditRepositoryInterface interface {
	Create(ctx context.Context, audit *domain.SearchAudit) error
}
