//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saturnino-fabrica-de-software/photocap/internal/database"
	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
)

func setupIntegrationTest(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "photocap_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/photocap_test?sslmode=disable", host, port.Port())

	sqlDB, err := database.NewPool(database.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = database.MigrateUp(sqlDB, dsn)
	require.NoError(t, err)

	pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func testAnalysis(eventID, photoID string, faces int, version string) *domain.PhotoAnalysis {
	a := &domain.PhotoAnalysis{
		EventID:           eventID,
		PhotoID:           photoID,
		ImagePath:         "/photos/" + photoID + ".jpg",
		DescriptorVersion: version,
	}
	for i := 0; i < faces; i++ {
		a.Faces = append(a.Faces, domain.FaceRegion{X: i * 100, Y: 10, Width: 80, Height: 80, Confidence: 0.95})
		a.Descriptors = append(a.Descriptors, domain.Descriptor{float32(i) + 0.5, 0.25, 0.125})
	}
	return a
}

func TestIntegration_PhotoAnalysisRepository(t *testing.T) {
	pool := setupIntegrationTest(t)
	repo := NewPhotoAnalysisRepository(pool)
	ctx := context.Background()

	first := testAnalysis("gala", "IMG_1", 2, "classical-v1")
	second := testAnalysis("gala", "IMG_2", 0, "classical-v1")
	other := testAnalysis("launch", "IMG_1", 1, "classical-v0")

	t.Run("Create stores analyses and descriptors", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Create(ctx, second))
		require.NoError(t, repo.Create(ctx, other))

		assert.NotEqual(t, uuid.Nil, first.ID)
		assert.False(t, first.ProcessedAt.IsZero())
	})

	t.Run("Create rejects a duplicate photo", func(t *testing.T) {
		err := repo.Create(ctx, testAnalysis("gala", "IMG_1", 1, "classical-v1"))
		assert.ErrorIs(t, err, domain.ErrPhotoExists)
	})

	t.Run("GetByPhotoID returns faces with descriptors", func(t *testing.T) {
		got, err := repo.GetByPhotoID(ctx, "gala", "IMG_1")
		require.NoError(t, err)

		assert.Equal(t, first.ID, got.ID)
		require.Len(t, got.Faces, 2)
		assert.Equal(t, 100, got.Faces[1].X)
		assert.Equal(t, domain.Descriptor{1.5, 0.25, 0.125}, got.DescriptorAt(1))
	})

	t.Run("GetByPhotoID not found", func(t *testing.T) {
		_, err := repo.GetByPhotoID(ctx, "gala", "IMG_404")
		assert.ErrorIs(t, err, domain.ErrAnalysisNotFound)
	})

	t.Run("ListByEvent is scoped and ordered", func(t *testing.T) {
		got, err := repo.ListByEvent(ctx, "gala")
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, "IMG_1", got[0].PhotoID)
		assert.Equal(t, 2, got[0].DescriptorCount())
		assert.Equal(t, "IMG_2", got[1].PhotoID)
		assert.Empty(t, got[1].Faces)
	})

	t.Run("Stats counts stale analyses", func(t *testing.T) {
		stats, err := repo.Stats(ctx, "launch", "classical-v1")
		require.NoError(t, err)

		assert.Equal(t, 1, stats.PhotosAnalyzed)
		assert.Equal(t, 1, stats.FacesDetected)
		assert.Equal(t, 1, stats.FacesDescribed)
		assert.Equal(t, 1, stats.StaleAnalyses)
	})

	t.Run("ReplaceDescriptors updates version and vectors", func(t *testing.T) {
		err := repo.ReplaceDescriptors(ctx, other.ID, []domain.Descriptor{{9, 9, 9}}, "classical-v1")
		require.NoError(t, err)

		got, err := repo.GetByPhotoID(ctx, "launch", "IMG_1")
		require.NoError(t, err)
		assert.Equal(t, "classical-v1", got.DescriptorVersion)
		assert.Equal(t, domain.Descriptor{9, 9, 9}, got.DescriptorAt(0))

		stats, err := repo.Stats(ctx, "launch", "classical-v1")
		require.NoError(t, err)
		assert.Equal(t, 0, stats.StaleAnalyses)
	})

	t.Run("ReplaceDescriptors unknown analysis", func(t *testing.T) {
		err := repo.ReplaceDescriptors(ctx, uuid.New(), nil, "classical-v1")
		assert.ErrorIs(t, err, domain.ErrAnalysisNotFound)
	})
}

func TestIntegration_SearchAuditRepository(t *testing.T) {
	pool := setupIntegrationTest(t)
	repo := NewSearchAuditRepository(pool)
	ctx := context.Background()

	photoID := "IMG_7"
	similarity := 0.82
	audit := &domain.SearchAudit{
		EventID:            "gala",
		Outcome:            domain.OutcomeMatched,
		ResultsCount:       3,
		TopMatchPhotoID:    &photoID,
		TopMatchSimilarity: &similarity,
		Threshold:          0.6,
		LatencyMs:          120,
		ClientIP:           "10.0.0.1",
	}

	require.NoError(t, repo.Create(ctx, audit))
	assert.NotEqual(t, uuid.Nil, audit.ID)
	assert.False(t, audit.CreatedAt.IsZero())

	var outcome string
	var count int
	err := pool.QueryRow(ctx, "SELECT outcome, results_count FROM search_audits WHERE id = $1", audit.ID).Scan(&outcome, &count)
	require.NoError(t, err)
	assert.Equal(t, "matched", outcome)
	assert.Equal(t, 3, count)
}
