// Package descriptor turns one face region into a fixed-length feature vector
// built from an ordered pipeline of named feature groups.
package descriptor

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
)

// pipelineRevision changes whenever a group is added, removed, reordered or
// computed differently.
const pipelineRevision = "v1"

type Config struct {
	Size int // canonical crop edge in pixels
	Bins int // intensity histogram bins
}

func DefaultConfig() Config {
	return Config{Size: 128, Bins: 32}
}

type Extractor struct {
	cfg     Config
	groups  []group
	length  int
	version string
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Extractor, error) {
	if cfg.Size < 8 {
		return nil, fmt.Errorf("descriptor size must be at least 8, got %d", cfg.Size)
	}
	if cfg.Bins < 2 {
		return nil, fmt.Errorf("descriptor bins must be at least 2, got %d", cfg.Bins)
	}
	if logger == nil {
		logger = slog.Default()
	}

	groups := pipeline(cfg)
	length := 0
	for _, g := range groups {
		length += g.size
	}

	return &Extractor{
		cfg:     cfg,
		groups:  groups,
		length:  length,
		version: fmt.Sprintf("%s/s%d/b%d", pipelineRevision, cfg.Size, cfg.Bins),
		logger:  logger,
	}, nil
}

// Len is the number of values in every descriptor this extractor emits.
func (e *Extractor) Len() int { return e.length }

// Version identifies the descriptor layout. Descriptors with different
// versions are not directly comparable.
func (e *Extractor) Version() string { return e.version }

func (e *Extractor) Config() Config { return e.cfg }

// Groups lists the feature groups in concatenation order with their sizes.
func (e *Extractor) Groups() []GroupInfo {
	out := make([]GroupInfo, len(e.groups))
	for i, g := range e.groups {
		out[i] = GroupInfo{Name: g.name, Size: g.size}
	}
	return out
}

type GroupInfo struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Extract computes the descriptor of region in img. It returns nil when the
// image is missing or the region does not lie inside it.
func (e *Extractor) Extract(img *raster.Image, region domain.FaceRegion) domain.Descriptor {
	if img == nil {
		e.logger.Warn("extract skipped: unreadable image")
		return nil
	}
	if !region.Within(img.Bounds()) {
		e.logger.Warn("extract skipped: region outside image",
			"region", region.Rect(),
			"bounds", img.Bounds(),
		)
		return nil
	}

	crop, err := img.CropResize(region.Rect(), e.cfg.Size)
	if err != nil {
		e.logger.Warn("extract skipped: crop failed", "error", err)
		return nil
	}

	f := newFace(crop, img.Channels() >= 3)

	out := make(domain.Descriptor, 0, e.length)
	for _, g := range e.groups {
		values := g.compute(f)
		if len(values) != g.size {
			e.logger.Error("feature group size mismatch",
				"group", g.name,
				"want", g.size,
				"got", len(values),
			)
			return nil
		}
		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			out = append(out, float32(v))
		}
	}
	return out
}

// ExtractFile loads path and extracts the descriptor of region.
func (e *Extractor) ExtractFile(path string, region domain.FaceRegion) domain.Descriptor {
	img, err := raster.Load(path)
	if err != nil {
		e.logger.Warn("extract skipped: unreadable image", "path", path, "error", err)
		return nil
	}
	return e.Extract(img, region)
}
