// Package classical implements provider.FaceProvider with a cascade detector,
// hand-crafted descriptors and fused vector similarity. No learned embedding
// model is involved.
package classical

import (
	"context"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/provider"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/descriptor"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/detect"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/similarity"
)

const Name = "classical"

type Config struct {
	Detector   detect.Config
	Descriptor descriptor.Config
}

func DefaultConfig() Config {
	return Config{
		Detector:   detect.DefaultConfig(),
		Descriptor: descriptor.DefaultConfig(),
	}
}

type Provider struct {
	detector  *detect.Detector
	extractor *descriptor.Extractor
}

// NewProvider builds the pipeline around an already loaded classifier.
func NewProvider(classifier detect.Classifier, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	extractor, err := descriptor.New(cfg.Descriptor, logger.With("component", "descriptor"))
	if err != nil {
		return nil, err
	}

	return &Provider{
		detector:  detect.New(classifier, cfg.Detector, logger.With("component", "detector")),
		extractor: extractor,
	}, nil
}

func (p *Provider) Name() string { return Name }

func (p *Provider) DetectFaces(ctx context.Context, img *raster.Image) ([]domain.FaceRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.detector.Detect(img), nil
}

func (p *Provider) ExtractDescriptor(ctx context.Context, img *raster.Image, face domain.FaceRegion) (domain.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.extractor.Extract(img, face), nil
}

func (p *Provider) CompareDescriptors(a, b domain.Descriptor) float64 {
	return similarity.Score(a, b)
}

func (p *Provider) DescriptorVersion() string {
	return p.extractor.Version()
}

// DescriptorLen is the length of every descriptor this provider emits.
func (p *Provider) DescriptorLen() int {
	return p.extractor.Len()
}

var _ provider.FaceProvider = (*Provider)(nil)
