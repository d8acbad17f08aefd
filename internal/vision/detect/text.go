package detect

import (
	"image"
	"log/slog"
	"math"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/edge"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
)

// TextConfidence is attached to every text region. Like Confidence it is a
// constant, not a probability.
const TextConfidence = 0.6

type TextConfig struct {
	CannyLow  int
	CannyHigh int
	MinArea   float64 // contour area must exceed this
	MinWidth  int     // bounding box width must exceed this
	MinHeight int     // bounding box height must exceed this
	MinAspect float64 // width/height strictly between MinAspect and MaxAspect
	MaxAspect float64
}

func DefaultTextConfig() TextConfig {
	return TextConfig{
		CannyLow:  50,
		CannyHigh: 150,
		MinArea:   100,
		MinWidth:  20,
		MinHeight: 10,
		MinAspect: 0.5,
		MaxAspect: 10,
	}
}

// TextDetector finds edge clusters shaped like printed text, such as the
// numbers on race bibs. It reads nothing: there is no OCR.
type TextDetector struct {
	cfg    TextConfig
	logger *slog.Logger
}

func NewTextDetector(cfg TextConfig, logger *slog.Logger) *TextDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextDetector{cfg: cfg, logger: logger}
}

// Detect blurs the intensity image, marks Canny edges and keeps the outer
// contours of edge clusters that pass the area, size and aspect filters.
// Regions are ordered by contour discovery (top to bottom, left to right).
func (d *TextDetector) Detect(img *raster.Image) []domain.TextRegion {
	if img == nil {
		d.logger.Warn("text detection skipped: unreadable image")
		return []domain.TextRegion{}
	}

	w, h := img.Width(), img.Height()
	pix := grayPixels(img.Gray())
	edges := edge.Canny(edge.GaussianBlur5(pix, w, h), w, h, d.cfg.CannyLow, d.cfg.CannyHigh)

	contours := outerContours(edges, w, h)
	regions := make([]domain.TextRegion, 0)
	for _, c := range contours {
		area := polygonArea(c.points)
		if area <= d.cfg.MinArea {
			continue
		}
		bw, bh := c.bounds.Dx(), c.bounds.Dy()
		if bw <= d.cfg.MinWidth || bh <= d.cfg.MinHeight {
			continue
		}
		aspect := float64(bw) / float64(bh)
		if aspect <= d.cfg.MinAspect || aspect >= d.cfg.MaxAspect {
			continue
		}
		regions = append(regions, domain.TextRegion{
			X:          c.bounds.Min.X,
			Y:          c.bounds.Min.Y,
			Width:      bw,
			Height:     bh,
			Area:       area,
			Confidence: TextConfidence,
		})
	}

	d.logger.Debug("text regions detected", "contours", len(contours), "regions", len(regions))
	return regions
}

// grayPixels returns the rows of gray packed without stride padding.
func grayPixels(gray *image.Gray) []uint8 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if gray.Stride == w {
		return gray.Pix[:w*h]
	}
	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		copy(out[y*w:(y+1)*w], gray.Pix[y*gray.Stride:y*gray.Stride+w])
	}
	return out
}

type contour struct {
	points []image.Point
	bounds image.Rectangle
}

// 8-neighbourhood, clockwise on screen starting east.
var ring = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

// outerContours traces the outer border of every 8-connected cluster of
// non-zero pixels that is not enclosed by another cluster. Background is
// 4-connected; pixels past the image edge count as background.
func outerContours(mask []uint8, w, h int) []contour {
	on := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && mask[y*w+x] != 0
	}

	// background reachable from outside the image
	outside := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))
	seed := func(x, y int) {
		i := y*w + x
		if mask[i] == 0 && !outside[i] {
			outside[i] = true
			queue = append(queue, i)
		}
	}
	for x := 0; x < w; x++ {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := 0; y < h; y++ {
		seed(0, y)
		seed(w-1, y)
	}
	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		x, y := i%w, i/w
		for _, n := range [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+n.X, y+n.Y
			if nx >= 0 && ny >= 0 && nx < w && ny < h {
				seed(nx, ny)
			}
		}
	}
	touchesOutside := func(x, y int) bool {
		if x == 0 || y == 0 || x == w-1 || y == h-1 {
			return true
		}
		return outside[y*w+x-1] || outside[y*w+x+1] || outside[(y-1)*w+x] || outside[(y+1)*w+x]
	}

	label := make([]int32, w*h)
	var next int32
	out := make([]contour, 0)
	stack := make([]int, 0, 64)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask[y*w+x] == 0 || label[y*w+x] != 0 {
				continue
			}
			next++
			bounds := image.Rect(x, y, x+1, y+1)
			external := false
			pixels := 0

			stack = append(stack[:0], y*w+x)
			label[y*w+x] = next
			for len(stack) > 0 {
				i := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				px, py := i%w, i/w
				pixels++
				bounds = bounds.Union(image.Rect(px, py, px+1, py+1))
				if !external && touchesOutside(px, py) {
					external = true
				}
				for _, n := range ring {
					nx, ny := px+n.X, py+n.Y
					if on(nx, ny) && label[ny*w+nx] == 0 {
						label[ny*w+nx] = next
						stack = append(stack, ny*w+nx)
					}
				}
			}

			if !external {
				continue
			}
			out = append(out, contour{
				points: traceBorder(on, image.Pt(x, y), pixels),
				bounds: bounds,
			})
		}
	}
	return out
}

// traceBorder follows the outer border of the cluster whose first pixel in
// raster order is start, returning pixel centres in tracing order. pixels
// bounds the walk.
func traceBorder(on func(x, y int) bool, start image.Point, pixels int) []image.Point {
	// nothing lies above or to the left of start, so the clockwise scan
	// from west meets the first neighbour along the border
	first := -1
	for k := 0; k < 8; k++ {
		d := (4 + k) % 8
		p := start.Add(ring[d])
		if on(p.X, p.Y) {
			first = d
			break
		}
	}
	if first < 0 {
		return []image.Point{start}
	}

	second := start.Add(ring[first])
	points := make([]image.Point, 0, 16)
	prev, cur := second, start
	for steps := 0; steps < 4*pixels+8; steps++ {
		back := direction(cur, prev)
		var nxt image.Point
		for k := 1; k <= 8; k++ {
			d := (back - k + 16) % 8
			p := cur.Add(ring[d])
			if on(p.X, p.Y) {
				nxt = p
				break
			}
		}
		points = append(points, cur)
		if nxt == start && cur == second {
			break
		}
		prev, cur = cur, nxt
	}
	return points
}

func direction(from, to image.Point) int {
	d := to.Sub(from)
	for i, r := range ring {
		if r == d {
			return i
		}
	}
	return 0
}

// polygonArea is the shoelace area of a closed polygon.
func polygonArea(points []image.Point) float64 {
	if len(points) < 3 {
		return 0
	}
	sum := 0
	for i, p := range points {
		q := points[(i+1)%len(points)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(float64(sum)) / 2
}
