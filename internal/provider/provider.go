package provider

import (
	"context"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
)

// FaceProvider is the face pipeline used by ingestion and search.
//
// Malformed but readable input never produces an error: detection yields no
// regions and extraction yields a nil descriptor. Errors are reserved for
// cancellation and infrastructure failures.
type FaceProvider interface {
	// Name identifies the provider in logs and audit records.
	Name() string

	// DetectFaces locates face regions in the image. A nil image yields none.
	DetectFaces(ctx context.Context, img *raster.Image) ([]domain.FaceRegion, error)

	// ExtractDescriptor computes the descriptor of one face, or nil when the
	// region cannot be described.
	ExtractDescriptor(ctx context.Context, img *raster.Image, face domain.FaceRegion) (domain.Descriptor, error)

	// CompareDescriptors returns a similarity in [0,1]; 0 when either side
	// is nil.
	CompareDescriptors(a, b domain.Descriptor) float64

	// DescriptorVersion identifies the layout of descriptors this provider
	// produces. Stored descriptors with another version need re-extraction.
	DescriptorVersion() string
}

// Analyze runs detection and extraction over every face of img. The returned
// descriptors are aligned with the regions and may contain nil entries.
func Analyze(ctx context.Context, p FaceProvider, img *raster.Image) ([]domain.FaceRegion, []domain.Descriptor, error) {
	faces, err := p.DetectFaces(ctx, img)
	if err != nil {
		return nil, nil, err
	}

	descriptors := make([]domain.Descriptor, len(faces))
	for i, f := range faces {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		d, err := p.ExtractDescriptor(ctx, img, f)
		if err != nil {
			return nil, nil, err
		}
		descriptors[i] = d
	}
	return faces, descriptors, nil
}
