package mock

import (
	"context"
	"crypto/sha256"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/provider"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/similarity"
)

const (
	Name                = "mock"
	Version             = "mock/v1"
	descriptorDimension = 64
	minImageSide        = 32
	sampleSize          = 16
)

// Provider implementa provider.FaceProvider para testes e desenvolvimento.
// Every image large enough holds exactly one face covering its central 80%.
type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) DetectFaces(ctx context.Context, img *raster.Image) ([]domain.FaceRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil || img.Width() < minImageSide || img.Height() < minImageSide {
		return []domain.FaceRegion{}, nil
	}

	w, h := img.Width(), img.Height()
	return []domain.FaceRegion{
		{
			X:          w / 10,
			Y:          h / 10,
			Width:      w * 8 / 10,
			Height:     h * 8 / 10,
			Confidence: 0.99,
		},
	}, nil
}

// ExtractDescriptor gera descritor determinístico a partir do hash da região.
func (p *Provider) ExtractDescriptor(ctx context.Context, img *raster.Image, face domain.FaceRegion) (domain.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil || !face.Within(img.Bounds()) {
		return nil, nil
	}

	crop, err := img.CropResize(face.Rect(), sampleSize)
	if err != nil {
		return nil, nil
	}
	return generateDescriptor(crop.Pix), nil
}

func (p *Provider) CompareDescriptors(a, b domain.Descriptor) float64 {
	return similarity.Score(a, b)
}

func (p *Provider) DescriptorVersion() string { return Version }

func generateDescriptor(pixels []byte) domain.Descriptor {
	hash := sha256.Sum256(pixels)
	d := make(domain.Descriptor, descriptorDimension)
	for i := range d {
		d[i] = float32(hash[i%len(hash)]) / 255
	}
	return d
}

var _ provider.FaceProvider = (*Provider)(nil)
