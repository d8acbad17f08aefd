// Package raster decodes photos into read-only images and provides the
// pixel conversions shared by detection and descriptor extraction.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrEmptyImage = errors.New("image has no pixels")

// Image wraps a decoded photo. It is never mutated after construction.
type Image struct {
	src      image.Image
	format   string
	channels int
}

// Decode reads an encoded image from memory.
func Decode(data []byte) (*Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return newImage(img, format)
}

// Load reads and decodes the image stored at path.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	return Decode(data)
}

// FromImage wraps an already decoded image.
func FromImage(img image.Image) (*Image, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	return newImage(img, "")
}

func newImage(img image.Image, format string) (*Image, error) {
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return &Image{src: img, format: format, channels: channelCount(img)}, nil
}

func channelCount(img image.Image) int {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	default:
		return 3
	}
}

func (i *Image) Width() int          { return i.src.Bounds().Dx() }
func (i *Image) Height() int         { return i.src.Bounds().Dy() }
func (i *Image) Channels() int       { return i.channels }
func (i *Image) Format() string      { return i.format }
func (i *Image) Source() image.Image { return i.src }

// Bounds returns the zero-origin rectangle that face regions refer to.
func (i *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.Width(), i.Height())
}

// Gray converts the whole image to 8-bit intensity using
// Y = 0.299R + 0.587G + 0.114B, origin at (0,0).
func (i *Image) Gray() *image.Gray {
	return ToGray(i.src)
}

// CropResize copies the sub-rectangle r (in zero-origin coordinates) into a new
// RGBA image resized to size x size with bilinear interpolation.
func (i *Image) CropResize(r image.Rectangle, size int) (*image.RGBA, error) {
	if r.Empty() || !r.In(i.Bounds()) {
		return nil, fmt.Errorf("crop %v outside image bounds %v", r, i.Bounds())
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid crop size %d", size)
	}

	srcRect := r.Add(i.src.Bounds().Min)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), i.src, srcRect, draw.Src, nil)
	return dst, nil
}

// ToGray converts any image to an 8-bit luminance image with origin (0,0).
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+b.Dx()], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return gray
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			gray.Pix[y*gray.Stride+x] = Luma(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
		}
	}
	return gray
}

// Luma returns the rounded ITU-R BT.601 luminance.
func Luma(r, g, b uint8) uint8 {
	y := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	return uint8(math.Min(255, math.Round(y)))
}

// EqualizeHist spreads the intensity histogram of gray over the full 0..255
// range. The input is not modified.
func EqualizeHist(gray *image.Gray) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(b)
	total := b.Dx() * b.Dy()
	if total == 0 {
		return out
	}

	var hist [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}

	// Ignore the first occupied bin so the darkest level maps to zero.
	i := 0
	for i < 256 && hist[i] == 0 {
		i++
	}
	var lut [256]uint8
	if hist[i] == total {
		for k := range lut {
			lut[k] = uint8(i)
		}
	} else {
		scale := 255.0 / float64(total-hist[i])
		sum := 0
		for i++; i < 256; i++ {
			sum += hist[i]
			lut[i] = uint8(math.Min(255, math.Round(float64(sum)*scale)))
		}
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetGray(x, y, color.Gray{Y: lut[gray.GrayAt(x, y).Y]})
		}
	}
	return out
}
