package face

import (
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/photocap/internal/config"
	"github.com/saturnino-fabrica-de-software/photocap/internal/match"
	"github.com/saturnino-fabrica-de-software/photocap/internal/provider"
	"github.com/saturnino-fabrica-de-software/photocap/internal/provider/classical"
	"github.com/saturnino-fabrica-de-software/photocap/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/descriptor"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/detect"
)

// ProviderType defines supported face provider types
type ProviderType string

const (
	// ProviderTypeClassical is the cascade + hand-crafted descriptor pipeline
	ProviderTypeClassical ProviderType = "classical"
	// ProviderTypeMock is the deterministic provider for dev/test
	ProviderTypeMock ProviderType = "mock"
)

// NewFaceProvider creates a FaceProvider instance based on configuration
//
// Environment variables:
//   - FACE_PROVIDER: "classical" or "mock" (default: "classical")
//   - CASCADE_PATH: pigo cascade file used by the classical provider
//   - DETECT_*, DESCRIPTOR_*: pipeline parameters
func NewFaceProvider(cfg *config.Config, logger *slog.Logger) (provider.FaceProvider, error) {
	switch ProviderType(cfg.ProviderType) {
	case ProviderTypeClassical, "":
		return createClassicalProvider(cfg, logger)

	case ProviderTypeMock:
		return mock.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s)",
			cfg.ProviderType, ProviderTypeClassical, ProviderTypeMock)
	}
}

// createClassicalProvider loads the cascade and assembles the pipeline
func createClassicalProvider(cfg *config.Config, logger *slog.Logger) (provider.FaceProvider, error) {
	classifier, err := detect.LoadPigo(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("create classical provider: %w", err)
	}

	prov, err := classical.NewProvider(classifier, classical.Config{
		Detector:   DetectorConfig(cfg),
		Descriptor: DescriptorConfig(cfg),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create classical provider: %w", err)
	}

	return prov, nil
}

// Capability tells callers whether face search can be offered. When the
// provider cannot be built the rest of the application keeps running and
// search endpoints report that the feature is unavailable.
type Capability struct {
	Provider provider.FaceProvider
	Reason   string
}

func (c Capability) Available() bool {
	return c.Provider != nil
}

// ResolveCapability builds the configured provider, degrading to an
// unavailable capability instead of failing.
func ResolveCapability(cfg *config.Config, logger *slog.Logger) Capability {
	prov, err := NewFaceProvider(cfg, logger)
	if err != nil {
		logger.Warn("face search unavailable", "provider", cfg.ProviderType, "error", err)
		return Capability{Reason: err.Error()}
	}

	logger.Info("face provider ready",
		"provider", prov.Name(),
		"descriptor_version", prov.DescriptorVersion(),
	)
	return Capability{Provider: prov}
}

func DetectorConfig(cfg *config.Config) detect.Config {
	return detect.Config{
		ScaleStep:   cfg.DetectScaleStep,
		ShiftFactor: cfg.DetectShiftFactor,
		MinVotes:    cfg.DetectMinVotes,
		MinSize:     detect.Size{Width: cfg.DetectMinSize.Width, Height: cfg.DetectMinSize.Height},
		MaxSize:     detect.Size{Width: cfg.DetectMaxSize.Width, Height: cfg.DetectMaxSize.Height},
		MinArea:     cfg.DetectMinArea,
		Equalize:    cfg.DetectEqualize,
	}
}

func DescriptorConfig(cfg *config.Config) descriptor.Config {
	return descriptor.Config{
		Size: cfg.DescriptorSize,
		Bins: cfg.DescriptorBins,
	}
}

func MatchConfig(cfg *config.Config) match.Config {
	return match.Config{
		Threshold:     cfg.MatchThreshold,
		Workers:       cfg.MatchWorkers,
		StrictVersion: cfg.MatchStrictVersion,
		MaxResults:    cfg.MatchMaxResults,
	}
}

// NewTextDetector returns the bib text detector, or nil when DETECT_TEXT is
// off.
func NewTextDetector(cfg *config.Config, logger *slog.Logger) *detect.TextDetector {
	if !cfg.DetectText {
		return nil
	}
	return detect.NewTextDetector(detect.DefaultTextConfig(), logger.With("component", "text_detector"))
}
