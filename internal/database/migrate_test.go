//go:build integration

package database_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saturnino-fabrica-de-software/photocap/internal/database"
)

func startPostgres(t *testing.T) string {
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

	return fmt.Sprintf("postgres://test:test@%s:%s/photocap_test?sslmode=disable", host, port.Port())
}

// TestMigratorIntegration tests the migration functionality
func TestMigratorIntegration(t *testing.T) {
	dsn := startPostgres(t)

	db, err := database.NewPool(database.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	t.Run("Up runs migrations successfully", func(t *testing.T) {
		migrator, err := database.NewMigrator(db, "photocap_test")
		require.NoError(t, err)

		require.NoError(t, migrator.Up())
		// a second run is a no-op
		require.NoError(t, migrator.Up())

		for _, table := range []string{"photo_analyses", "face_descriptors", "search_audits", "rate_limit_counters", "cache_entries"} {
			assertTableExists(t, db, table)
		}

		version, dirty, err := migrator.Version()
		require.NoError(t, err)
		assert.False(t, dirty, "migration should not be dirty")
		assert.Equal(t, uint(2), version, "should be at version 2")
	})

	t.Run("Schema validation after migration", func(t *testing.T) {
		columns := getTableColumns(t, db, "photo_analyses")
		for _, col := range []string{"id", "event_id", "photo_id", "image_path", "faces", "text_regions", "descriptor_version", "processed_at"} {
			assert.Contains(t, columns, col, "photo_analyses should have column %s", col)
		}

		columns = getTableColumns(t, db, "face_descriptors")
		assert.Equal(t, []string{"analysis_id", "face_index", "descriptor"}, columns)

		assert.Contains(t, getTableIndexes(t, db, "photo_analyses"), "idx_photo_analyses_event")
		assert.Contains(t, getTableIndexes(t, db, "search_audits"), "idx_search_audits_event")
		assert.Contains(t, getTableIndexes(t, db, "rate_limit_counters"), "idx_rate_limit_window_end")
		assert.Contains(t, getTableIndexes(t, db, "cache_entries"), "idx_cache_entries_expires_at")
	})

	t.Run("Descriptors cascade with their analysis", func(t *testing.T) {
		var analysisID string
		err := db.QueryRow(`
			INSERT INTO photo_analyses (id, event_id, photo_id, faces, descriptor_version)
			VALUES (gen_random_uuid(), $1, $2, $3, $4)
			RETURNING id
		`, "gala", "IMG_1", `[{"x":0,"y":0,"width":10,"height":10,"confidence":0.95}]`, "classical-v1").Scan(&analysisID)
		require.NoError(t, err)

		_, err = db.Exec(`INSERT INTO face_descriptors (analysis_id, face_index, descriptor) VALUES ($1, 0, '[0.1,0.2,0.3]')`, analysisID)
		require.NoError(t, err)

		_, err = db.Exec("DELETE FROM photo_analyses WHERE id = $1", analysisID)
		require.NoError(t, err)

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM face_descriptors WHERE analysis_id = $1", analysisID).Scan(&count))
		assert.Equal(t, 0, count, "descriptors should be deleted via CASCADE")
	})

	t.Run("Down drops the schema", func(t *testing.T) {
		migrator, err := database.NewMigrator(db, "photocap_test")
		require.NoError(t, err)

		require.NoError(t, migrator.Down())

		version, _, err := migrator.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(0), version)
	})
}

func TestMigrateUp(t *testing.T) {
	dsn := startPostgres(t)

	db, err := database.NewPool(database.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	version, err := database.MigrateUp(db, dsn)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	pool, err := database.NewPgxPool(context.Background(), database.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	defer pool.Close()

	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM photo_analyses").Scan(&n))
	assert.Equal(t, 0, n)
}

// Helper functions

func assertTableExists(t *testing.T, db *sql.DB, tableName string) {
	t.Helper()

	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, tableName).Scan(&exists)

	require.NoError(t, err)
	assert.True(t, exists, "table %s should exist", tableName)
}

func getTableColumns(t *testing.T, db *sql.DB, tableName string) []string {
	t.Helper()

	rows, err := db.Query(`
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = $1
		ORDER BY ordinal_position
	`, tableName)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var col string
		require.NoError(t, rows.Scan(&col))
		columns = append(columns, col)
	}

	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, tableName string) []string {
	t.Helper()

	rows, err := db.Query(`
		SELECT indexname
		FROM pg_indexes
		WHERE schemaname = 'public'
		AND tablename = $1
	`, tableName)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var indexes []string
	for rows.Next() {
		var idx string
		require.NoError(t, rows.Scan(&idx))
		indexes = append(indexes, idx)
	}

	return indexes
}
