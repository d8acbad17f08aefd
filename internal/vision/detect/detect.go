// Package detect locates candidate face regions with a multi-scale cascade
// classifier followed by vote grouping and two geometric post-filters.
package detect

import (
	"image"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
)

// Confidence is attached to every emitted region. The cascade does not model
// per-region confidence, so this is a constant and not a probability.
const Confidence = 0.95

// groupEps is the relative tolerance used when merging neighbouring windows.
const groupEps = 0.2

type Size struct {
	Width  int
	Height int
}

type Config struct {
	ScaleStep   float64 // window growth factor between scales
	ShiftFactor float64 // window stride as a fraction of the window size
	MinVotes    int     // a group needs more than MinVotes raw windows
	MinSize     Size
	MaxSize     Size
	MinArea     int  // regions below this pixel area are dropped
	Equalize    bool // histogram-equalize before scanning
}

func DefaultConfig() Config {
	return Config{
		ScaleStep:   1.1,
		ShiftFactor: 0.1,
		MinVotes:    8,
		MinSize:     Size{Width: 50, Height: 50},
		MaxSize:     Size{Width: 400, Height: 400},
		MinArea:     2500,
		Equalize:    true,
	}
}

// Window is one raw positive window reported by a Classifier.
type Window struct {
	Rect  image.Rectangle
	Score float32
}

// ScanParams drive a single multi-scale sweep. Windows are square.
type ScanParams struct {
	MinSize     int
	MaxSize     int
	ScaleStep   float64
	ShiftFactor float64
}

// Classifier runs a cascade over an intensity image and returns every raw
// positive window, before any grouping.
type Classifier interface {
	Scan(gray *image.Gray, params ScanParams) []Window
}

type Detector struct {
	classifier Classifier
	cfg        Config
	logger     *slog.Logger
}

func New(classifier Classifier, cfg Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
	}
}

func (d *Detector) Config() Config {
	return d.cfg
}

// Detect returns the face regions found in img. Failures are logged and
// yield an empty slice.
func (d *Detector) Detect(img *raster.Image) []domain.FaceRegion {
	if img == nil {
		d.logger.Warn("detect skipped: unreadable image")
		return []domain.FaceRegion{}
	}

	gray := img.Gray()
	if d.cfg.Equalize {
		gray = raster.EqualizeHist(gray)
	}

	windows := d.classifier.Scan(gray, d.scanParams())
	grouped := groupWindows(windows, d.cfg.MinVotes, groupEps)

	bounds := img.Bounds()
	candidates := make([]domain.FaceRegion, 0, len(grouped))
	for _, r := range grouped {
		region := domain.FaceRegion{
			X:          r.Min.X,
			Y:          r.Min.Y,
			Width:      r.Dx(),
			Height:     r.Dy(),
			Confidence: Confidence,
		}
		if !region.Within(bounds) {
			d.logger.Debug("region outside image dropped", "region", r, "bounds", bounds)
			continue
		}
		if region.Area() < d.cfg.MinArea {
			continue
		}
		candidates = append(candidates, region)
	}

	faces := suppressOverlaps(candidates)

	d.logger.Debug("faces detected",
		"windows", len(windows),
		"groups", len(grouped),
		"candidates", len(candidates),
		"faces", len(faces),
	)

	return faces
}

// DetectFile loads path and runs Detect on it.
func (d *Detector) DetectFile(path string) []domain.FaceRegion {
	img, err := raster.Load(path)
	if err != nil {
		d.logger.Warn("detect skipped: unreadable image", "path", path, "error", err)
		return []domain.FaceRegion{}
	}
	return d.Detect(img)
}

// scanParams maps the rectangular size limits onto square windows.
func (d *Detector) scanParams() ScanParams {
	return ScanParams{
		MinSize:     max(d.cfg.MinSize.Width, d.cfg.MinSize.Height),
		MaxSize:     min(d.cfg.MaxSize.Width, d.cfg.MaxSize.Height),
		ScaleStep:   d.cfg.ScaleStep,
		ShiftFactor: d.cfg.ShiftFactor,
	}
}
