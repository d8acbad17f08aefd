package edge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSobel(t *testing.T) {
	const w, h = 6, 5
	img := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img[y*w+x] = float64(x)
		}
	}

	gx, gy := Sobel(img, w, h)
	for y := 0; y < h; y++ {
		for x := 1; x < w-1; x++ {
			assert.InDelta(t, 8, gx[y*w+x], 1e-12)
			assert.InDelta(t, 0, gy[y*w+x], 1e-12)
		}
		// reflected border mirrors the ramp so the slope cancels out
		assert.InDelta(t, 0, gx[y*w], 1e-12)
	}
}

func TestCanny(t *testing.T) {
	const w, h = 16, 16

	t.Run("vertical step", func(t *testing.T) {
		img := make([]uint8, w*h)
		for y := 0; y < h; y++ {
			for x := w / 2; x < w; x++ {
				img[y*w+x] = 255
			}
		}

		edges := Canny(img, w, h, 50, 150)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				want := uint8(0)
				if x == w/2-1 {
					want = 255
				}
				assert.Equal(t, want, edges[y*w+x], "pixel (%d,%d)", x, y)
			}
		}
	})

	t.Run("flat image", func(t *testing.T) {
		img := make([]uint8, w*h)
		for i := range img {
			img[i] = 90
		}
		for _, e := range Canny(img, w, h, 50, 150) {
			assert.Zero(t, e)
		}
	})
}

func TestReflect101(t *testing.T) {
	assert.Equal(t, 1, Reflect101(-1, 5))
	assert.Equal(t, 3, Reflect101(5, 5))
	assert.Equal(t, 0, Reflect101(0, 5))
	assert.Equal(t, 0, Reflect101(3, 1))
}

func TestGaussianBlur5(t *testing.T) {
	const w, h = 9, 7

	t.Run("flat image is unchanged", func(t *testing.T) {
		img := make([]uint8, w*h)
		for i := range img {
			img[i] = 77
		}
		assert.Equal(t, img, GaussianBlur5(img, w, h))
	})

	t.Run("impulse spreads as the binomial kernel", func(t *testing.T) {
		img := make([]uint8, w*h)
		img[3*w+4] = 255
		out := GaussianBlur5(img, w, h)
		require.Len(t, out, w*h)

		// 255 * 36 / 256 at the centre, 255 * 24 / 256 beside it
		assert.Equal(t, uint8(36), out[3*w+4])
		assert.Equal(t, uint8(24), out[3*w+5])
		assert.Equal(t, uint8(24), out[2*w+4])
		assert.Equal(t, uint8(1), out[1*w+2])
		assert.Zero(t, out[0])
	})
}
