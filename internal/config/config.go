package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port           int    `envconfig:"PORT" default:"3000"`
	Environment    string `envconfig:"ENV" default:"development"`
	LogLevel       string `envconfig:"LOG_LEVEL"` // debug, info, warn or error
	MaxUploadBytes int    `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	UploadDir      string `envconfig:"UPLOAD_DIR" default:"uploads/originals"`
	AnnotatedDir   string `envconfig:"ANNOTATED_DIR" default:"uploads/processed"`

	// Database, required by Load
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Provider
	ProviderType string `envconfig:"FACE_PROVIDER" default:"classical"`
	CascadePath  string `envconfig:"CASCADE_PATH" default:"cascade/facefinder"`

	// Detector
	DetectScaleStep   float64 `envconfig:"DETECT_SCALE_STEP" default:"1.1"`
	DetectShiftFactor float64 `envconfig:"DETECT_SHIFT_FACTOR" default:"0.1"`
	DetectMinVotes    int     `envconfig:"DETECT_MIN_VOTES" default:"8"`
	DetectMinSize     Size    `envconfig:"DETECT_MIN_SIZE" default:"50x50"`
	DetectMaxSize     Size    `envconfig:"DETECT_MAX_SIZE" default:"400x400"`
	DetectMinArea     int     `envconfig:"DETECT_MIN_AREA" default:"2500"`
	DetectEqualize    bool    `envconfig:"DETECT_EQUALIZE" default:"true"`

	// Text regions (bib numbers) are boxed alongside faces
	DetectText bool `envconfig:"DETECT_TEXT" default:"true"`

	// Descriptor
	DescriptorSize int `envconfig:"DESCRIPTOR_SIZE" default:"128"`
	DescriptorBins int `envconfig:"DESCRIPTOR_BINS" default:"32"`

	// Matching
	MatchThreshold     float64 `envconfig:"MATCH_THRESHOLD" default:"0.6"`
	MatchWorkers       int     `envconfig:"MATCH_WORKERS" default:"4"`
	MatchStrictVersion bool    `envconfig:"MATCH_STRICT_VERSION" default:"false"`
	MatchMaxResults    int     `envconfig:"MATCH_MAX_RESULTS" default:"20"` // 0 returns every match

	// Rate limiting (searches per client per minute, 0 disables)
	SearchRateLimit int `envconfig:"SEARCH_RATE_LIMIT" default:"30"`

	// Stats cache TTL, 0 disables; search audits older than AUDIT_RETENTION
	// are pruned, 0 keeps them
	StatsCacheTTL  time.Duration `envconfig:"STATS_CACHE_TTL" default:"30s"`
	AuditRetention time.Duration `envconfig:"AUDIT_RETENTION" default:"2160h"`

	// Webhook receiving corpus events, disabled when empty
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
}

// Size is a window size written as "WxH", e.g. "50x50".
type Size struct {
	Width  int
	Height int
}

// Decode implements envconfig.Decoder.
func (s *Size) Decode(value string) error {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(value)), "x")
	if len(parts) != 2 {
		return fmt.Errorf("invalid size %q: expected WxH", value)
	}

	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return fmt.Errorf("invalid size width %q: %w", value, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return fmt.Errorf("invalid size height %q: %w", value, err)
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid size %q: dimensions must be positive", value)
	}

	s.Width, s.Height = w, h
	return nil
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Load reads the full configuration. DATABASE_URL is required.
func Load() (*Config, error) {
	cfg, err := LoadLocal()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("load config: required key DATABASE_URL missing value")
	}
	return cfg, nil
}

// LoadLocal reads the configuration for commands that only run the vision
// pipeline and never touch the database.
func LoadLocal() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.DetectScaleStep <= 1 {
		return fmt.Errorf("DETECT_SCALE_STEP must be greater than 1, got %v", c.DetectScaleStep)
	}
	if c.DetectMinSize.Width > c.DetectMaxSize.Width || c.DetectMinSize.Height > c.DetectMaxSize.Height {
		return fmt.Errorf("DETECT_MIN_SIZE %s exceeds DETECT_MAX_SIZE %s", c.DetectMinSize, c.DetectMaxSize)
	}
	if c.DescriptorSize < 8 {
		return fmt.Errorf("DESCRIPTOR_SIZE must be at least 8, got %d", c.DescriptorSize)
	}
	if c.DescriptorBins < 2 {
		return fmt.Errorf("DESCRIPTOR_BINS must be at least 2, got %d", c.DescriptorBins)
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be between 0 and 1, got %v", c.MatchThreshold)
	}
	if c.MatchWorkers < 1 {
		return fmt.Errorf("MATCH_WORKERS must be at least 1, got %d", c.MatchWorkers)
	}
	if c.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	if c.MatchMaxResults < 0 {
		return fmt.Errorf("MATCH_MAX_RESULTS must not be negative, got %d", c.MatchMaxResults)
	}
	if c.WebhookURL != "" && !strings.HasPrefix(c.WebhookURL, "http://") && !strings.HasPrefix(c.WebhookURL, "https://") {
		return fmt.Errorf("WEBHOOK_URL must be an http(s) URL, got %q", c.WebhookURL)
	}
	if c.StatsCacheTTL < 0 || c.AuditRetention < 0 {
		return errors.New("STATS_CACHE_TTL and AUDIT_RETENTION must not be negative")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
