package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
)

type PhotoAnalysisRepository struct {
	pool PgxPool
}

func NewPhotoAnalysisRepository(pool PgxPool) *PhotoAnalysisRepository {
	return &PhotoAnalysisRepository{pool: pool}
}

// Create stores the analysis and its descriptors in one transaction so a
// search never observes a half-written analysis.
func (r *PhotoAnalysisRepository) Create(ctx context.Context, analysis *domain.PhotoAnalysis) error {
	query := `
		INSERT INTO photo_analyses (id, event_id, photo_id, image_path, faces, text_regions, descriptor_version, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING processed_at
	`

	if analysis.ID == uuid.Nil {
		analysis.ID = uuid.New()
	}
	if analysis.Faces == nil {
		analysis.Faces = []domain.FaceRegion{}
	}
	if analysis.TextRegions == nil {
		analysis.TextRegions = []domain.TextRegion{}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("create photo analysis: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, query,
		analysis.ID,
		analysis.EventID,
		analysis.PhotoID,
		analysis.ImagePath,
		analysis.Faces,
		analysis.TextRegions,
		analysis.DescriptorVersion,
	).Scan(&analysis.ProcessedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPhotoExists
		}
		return fmt.Errorf("create photo analysis: %w", err)
	}

	if err := insertDescriptors(ctx, tx, analysis.ID, analysis.Descriptors); err != nil {
		return fmt.Errorf("create photo analysis: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("create photo analysis: commit: %w", err)
	}
	return nil
}

func (r *PhotoAnalysisRepository) GetByPhotoID(ctx context.Context, eventID, photoID string) (*domain.PhotoAnalysis, error) {
	query := `
		SELECT id, event_id, photo_id, image_path, faces, text_regions, descriptor_version, processed_at
		FROM photo_analyses
		WHERE event_id = $1 AND photo_id = $2
	`

	var a domain.PhotoAnalysis
	err := r.pool.QueryRow(ctx, query, eventID, photoID).Scan(
		&a.ID,
		&a.EventID,
		&a.PhotoID,
		&a.ImagePath,
		&a.Faces,
		&a.TextRegions,
		&a.DescriptorVersion,
		&a.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get photo analysis: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT analysis_id, face_index, descriptor
		FROM face_descriptors
		WHERE analysis_id = $1
		ORDER BY face_index
	`, a.ID)
	if err != nil {
		return nil, fmt.Errorf("get photo analysis descriptors: %w", err)
	}

	byAnalysis, err := scanDescriptors(rows)
	if err != nil {
		return nil, fmt.Errorf("get photo analysis descriptors: %w", err)
	}
	attachDescriptors(&a, byAnalysis[a.ID])

	return &a, nil
}

// ListByEvent returns every analysis of the event in ingestion order.
func (r *PhotoAnalysisRepository) ListByEvent(ctx context.Context, eventID string) ([]*domain.PhotoAnalysis, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, photo_id, image_path, faces, text_regions, descriptor_version, processed_at
		FROM photo_analyses
		WHERE event_id = $1
		ORDER BY processed_at, id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list photo analyses: %w", err)
	}

	analyses := make([]*domain.PhotoAnalysis, 0)
	for rows.Next() {
		var a domain.PhotoAnalysis
		if err := rows.Scan(
			&a.ID,
			&a.EventID,
			&a.PhotoID,
			&a.ImagePath,
			&a.Faces,
			&a.TextRegions,
			&a.DescriptorVersion,
			&a.ProcessedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan photo analysis: %w", err)
		}
		analyses = append(analyses, &a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list photo analyses: %w", err)
	}

	if len(analyses) == 0 {
		return analyses, nil
	}

	descRows, err := r.pool.Query(ctx, `
		SELECT d.analysis_id, d.face_index, d.descriptor
		FROM face_descriptors d
		INNER JOIN photo_analyses p ON p.id = d.analysis_id
		WHERE p.event_id = $1
		ORDER BY d.analysis_id, d.face_index
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list photo analysis descriptors: %w", err)
	}

	byAnalysis, err := scanDescriptors(descRows)
	if err != nil {
		return nil, fmt.Errorf("list photo analysis descriptors: %w", err)
	}
	for _, a := range analyses {
		attachDescriptors(a, byAnalysis[a.ID])
	}

	return analyses, nil
}

// ReplaceDescriptors swaps every stored descriptor of one analysis and
// records the version they were extracted with.
func (r *PhotoAnalysisRepository) ReplaceDescriptors(ctx context.Context, id uuid.UUID, descriptors []domain.Descriptor, version string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replace descriptors: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := tx.Exec(ctx, `
		UPDATE photo_analyses SET descriptor_version = $2 WHERE id = $1
	`, id, version)
	if err != nil {
		return fmt.Errorf("replace descriptors: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrAnalysisNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM face_descriptors WHERE analysis_id = $1`, id); err != nil {
		return fmt.Errorf("replace descriptors: %w", err)
	}

	if err := insertDescriptors(ctx, tx, id, descriptors); err != nil {
		return fmt.Errorf("replace descriptors: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("replace descriptors: commit: %w", err)
	}
	return nil
}

func (r *PhotoAnalysisRepository) Stats(ctx context.Context, eventID, currentVersion string) (*domain.EventStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(jsonb_array_length(p.faces)), 0),
			(SELECT COUNT(*) FROM face_descriptors d INNER JOIN photo_analyses pa ON pa.id = d.analysis_id WHERE pa.event_id = $1),
			COUNT(*) FILTER (WHERE p.descriptor_version <> $2)
		FROM photo_analyses p
		WHERE p.event_id = $1
	`

	stats := domain.EventStats{EventID: eventID, DescriptorVersion: currentVersion}
	err := r.pool.QueryRow(ctx, query, eventID, currentVersion).Scan(
		&stats.PhotosAnalyzed,
		&stats.FacesDetected,
		&stats.FacesDescribed,
		&stats.StaleAnalyses,
	)
	if err != nil {
		return nil, fmt.Errorf("photo analysis stats: %w", err)
	}
	return &stats, nil
}

func insertDescriptors(ctx context.Context, tx pgx.Tx, analysisID uuid.UUID, descriptors []domain.Descriptor) error {
	query := `
		INSERT INTO face_descriptors (analysis_id, face_index, descriptor)
		VALUES ($1, $2, $3)
	`
	for i, d := range descriptors {
		if len(d) == 0 {
			continue
		}
		if _, err := tx.Exec(ctx, query, analysisID, i, pgvector.NewVector(d)); err != nil {
			return fmt.Errorf("insert descriptor %d: %w", i, err)
		}
	}
	return nil
}

type storedDescriptor struct {
	index int
	value domain.Descriptor
}

func scanDescriptors(rows pgx.Rows) (map[uuid.UUID][]storedDescriptor, error) {
	defer rows.Close()

	out := make(map[uuid.UUID][]storedDescriptor)
	for rows.Next() {
		var (
			id     uuid.UUID
			index  int
			vector *pgvector.Vector
		)
		if err := rows.Scan(&id, &index, &vector); err != nil {
			return nil, err
		}
		if vector == nil || len(vector.Slice()) == 0 {
			continue
		}
		out[id] = append(out[id], storedDescriptor{index: index, value: domain.Descriptor(vector.Slice())})
	}
	return out, rows.Err()
}

// attachDescriptors aligns stored descriptors with the analysis faces.
// Faces without a stored descriptor get nil.
func attachDescriptors(a *domain.PhotoAnalysis, stored []storedDescriptor) {
	a.Descriptors = make([]domain.Descriptor, len(a.Faces))
	for _, s := range stored {
		if s.index >= 0 && s.index < len(a.Descriptors) {
			a.Descriptors[s.index] = s.value
		}
	}
}
