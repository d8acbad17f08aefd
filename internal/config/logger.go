package config

import (
	"io"
	"log/slog"
)

// NewLogger writes JSON in production and text elsewhere. LOG_LEVEL
// overrides the environment's default level (info in production, debug
// otherwise).
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: cfg.IsDevelopment(),
		Level:     cfg.logLevel(),
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With("app", "photocap")
}

func (c *Config) logLevel() slog.Level {
	var level slog.Level
	if c.LogLevel != "" && level.UnmarshalText([]byte(c.LogLevel)) == nil {
		return level
	}
	if c.IsProduction() {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
