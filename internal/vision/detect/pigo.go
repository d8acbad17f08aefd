package detect

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// PigoClassifier runs a pico-style binary cascade (e.g. "facefinder").
type PigoClassifier struct {
	cascade *pigo.Pigo
}

// LoadPigo reads and unpacks the cascade file at path.
func LoadPigo(path string) (*PigoClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	return NewPigo(data)
}

func NewPigo(data []byte) (*PigoClassifier, error) {
	cascade, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}
	return &PigoClassifier{cascade: cascade}, nil
}

// Scan implements Classifier. Pigo reports window centres; they are turned
// into top-left anchored squares.
func (p *PigoClassifier) Scan(gray *image.Gray, params ScanParams) []Window {
	b := gray.Bounds()
	cParams := pigo.CascadeParams{
		MinSize:     params.MinSize,
		MaxSize:     params.MaxSize,
		ShiftFactor: params.ShiftFactor,
		ScaleFactor: params.ScaleStep,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   b.Dy(),
			Cols:   b.Dx(),
			Dim:    gray.Stride,
		},
	}

	dets := p.cascade.RunCascade(cParams, 0.0)

	windows := make([]Window, 0, len(dets))
	for _, det := range dets {
		if det.Q <= 0 {
			continue
		}
		half := det.Scale / 2
		x, y := det.Col-half, det.Row-half
		windows = append(windows, Window{
			Rect:  image.Rect(x, y, x+det.Scale, y+det.Scale),
			Score: det.Q,
		})
	}
	return windows
}
