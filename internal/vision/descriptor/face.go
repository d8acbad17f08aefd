package descriptor

import (
	"image"

	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
)

// face is the canonical crop shared by all feature groups.
type face struct {
	size  int
	rgba  *image.RGBA
	gray8 []uint8   // row-major intensity 0..255
	gray  []float64 // gray8 / 255
	color bool      // source had at least three channels
}

func newFace(crop *image.RGBA, color bool) *face {
	size := crop.Bounds().Dx()
	g := raster.ToGray(crop)

	gray8 := make([]uint8, size*size)
	gray := make([]float64, size*size)
	for y := 0; y < size; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+size]
		copy(gray8[y*size:], row)
		for x, v := range row {
			gray[y*size+x] = float64(v) / 255
		}
	}

	return &face{
		size:  size,
		rgba:  crop,
		gray8: gray8,
		gray:  gray,
		color: color,
	}
}
