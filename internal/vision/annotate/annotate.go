// Package annotate draws detection boxes onto a copy of a photo.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
)

const (
	FaceLabel   = "Face"
	TextLabel   = "Text"
	thickness   = 2
	labelOffset = 10
)

var (
	FaceColor = color.RGBA{G: 255, A: 255}
	TextColor = color.RGBA{B: 255, A: 255}
)

// Layer is a set of boxes drawn in one colour with one label.
type Layer struct {
	Boxes []image.Rectangle
	Label string
	Color color.RGBA
}

// Faces boxes face regions in green.
func Faces(regions []domain.FaceRegion) Layer {
	l := Layer{Label: FaceLabel, Color: FaceColor}
	for _, r := range regions {
		l.Boxes = append(l.Boxes, r.Rect())
	}
	return l
}

// Texts boxes text regions in blue.
func Texts(regions []domain.TextRegion) Layer {
	l := Layer{Label: TextLabel, Color: TextColor}
	for _, r := range regions {
		l.Boxes = append(l.Boxes, r.Rect())
	}
	return l
}

// Draw returns a copy of img with every layer drawn in order. The source
// image is left untouched.
func Draw(img *raster.Image, layers ...Layer) *image.RGBA {
	src := img.Source()
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, l := range layers {
		for _, b := range l.Boxes {
			rect := b.Intersect(out.Bounds())
			if rect.Empty() {
				continue
			}
			strokeRect(out, rect, l.Color)
			if l.Label != "" {
				drawLabel(out, l.Label, l.Color, b.Min.X, b.Min.Y-labelOffset)
			}
		}
	}
	return out
}

// Save draws layers onto img and writes the result to path. The encoder is
// picked from the extension (.png, otherwise JPEG).
func Save(img *raster.Image, path string, layers ...Layer) error {
	if img == nil {
		return fmt.Errorf("annotate %s: no image", path)
	}
	out := Draw(img, layers...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("annotate %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("annotate %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(f, out)
	default:
		err = jpeg.Encode(f, out, &jpeg.Options{Quality: 90})
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("annotate %s: %w", path, err)
	}
	return nil
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	fill := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), fill, image.Point{}, draw.Src)
	}
}

func drawLabel(dst *image.RGBA, label string, c color.RGBA, x, baseline int) {
	if baseline < basicfont.Face7x13.Ascent {
		baseline = basicfont.Face7x13.Ascent
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(label)
}
