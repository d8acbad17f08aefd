package config

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("production writes json at info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&Config{Environment: "production"}, &buf)

		logger.Debug("hidden")
		logger.Info("photo ingested", "event_id", "gala")

		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "photo ingested", line["msg"])
		assert.Equal(t, "photocap", line["app"])
		assert.Equal(t, "gala", line["event_id"])
	})

	t.Run("development logs debug as text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&Config{Environment: "development"}, &buf)

		logger.Debug("scan finished")
		assert.Contains(t, buf.String(), "msg=\"scan finished\"")
		assert.Contains(t, buf.String(), "source=")
	})

	t.Run("LOG_LEVEL overrides the default", func(t *testing.T) {
		logger := NewLogger(&Config{Environment: "production", LogLevel: "warn"}, &bytes.Buffer{})
		assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
		assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
	})
}
