package descriptor

import (
	"math"

	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/edge"
)

// group is one named block of the descriptor. compute must return exactly
// size values.
type group struct {
	name    string
	size    int
	compute func(f *face) []float64
}

// pipeline lists the feature groups in concatenation order. Reordering or
// resizing any group requires bumping pipelineRevision.
func pipeline(cfg Config) []group {
	return []group{
		{name: "intensity", size: 7, compute: intensityStats},
		{name: "histogram", size: cfg.Bins, compute: func(f *face) []float64 { return histogram(f, cfg.Bins) }},
		{name: "edges", size: 5, compute: edgeStats},
		{name: "gradients", size: 14, compute: gradientStats},
		{name: "moments", size: 5, compute: momentStats},
		{name: "frequency", size: 4, compute: frequencyStats},
		{name: "color", size: 6, compute: colorStats},
	}
}

// intensityStats: mean, std, min, max, p25, p50, p75.
func intensityStats(f *face) []float64 {
	m, s := meanStd(f.gray)
	lo, hi := minMax(f.gray)
	return append([]float64{m, s, lo, hi}, percentiles(f.gray, 25, 50, 75)...)
}

// histogram counts intensities over [0,1] in equal bins and normalizes the
// counts to sum to one.
func histogram(f *face, bins int) []float64 {
	counts := make([]float64, bins)
	for _, v := range f.gray {
		idx := int(v * float64(bins))
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}

	total := 0.0
	for _, c := range counts {
		total += c
	}
	for i := range counts {
		counts[i] /= total + 1e-7
	}
	return counts
}

// edgeStats: mean, std, density, p50, p75 of the 0/255 edge map.
func edgeStats(f *face) []float64 {
	edges := edge.Canny(f.gray8, f.size, f.size, 50, 150)

	values := make([]float64, len(edges))
	marked := 0
	for i, e := range edges {
		values[i] = float64(e)
		if e > 0 {
			marked++
		}
	}

	m, s := meanStd(values)
	p := percentiles(values, 50, 75)
	return []float64{m, s, float64(marked) / float64(len(values)), p[0], p[1]}
}

// gradientStats: mean, std, p50, p75 of gx, gy and magnitude, then mean and
// std of direction.
func gradientStats(f *face) []float64 {
	gx, gy := edge.Sobel(f.gray, f.size, f.size)

	mag := make([]float64, len(gx))
	dir := make([]float64, len(gx))
	for i := range gx {
		mag[i] = math.Hypot(gx[i], gy[i])
		dir[i] = math.Atan2(gy[i], gx[i])
	}

	out := make([]float64, 0, 14)
	out = append(out, summary(gx, 50, 75)...)
	out = append(out, summary(gy, 50, 75)...)
	out = append(out, summary(mag, 50, 75)...)
	m, s := meanStd(dir)
	return append(out, m, s)
}

// momentStats: centroid and second-order central moments over the 8-bit
// intensity image, each divided by the total mass. Zero mass yields zeros.
func momentStats(f *face) []float64 {
	var m00, m10, m01 float64
	for y := 0; y < f.size; y++ {
		for x := 0; x < f.size; x++ {
			v := float64(f.gray8[y*f.size+x])
			m00 += v
			m10 += float64(x) * v
			m01 += float64(y) * v
		}
	}
	if m00 == 0 {
		return make([]float64, 5)
	}

	cx, cy := m10/m00, m01/m00
	var mu20, mu02, mu11 float64
	for y := 0; y < f.size; y++ {
		dy := float64(y) - cy
		for x := 0; x < f.size; x++ {
			v := float64(f.gray8[y*f.size+x])
			dx := float64(x) - cx
			mu20 += dx * dx * v
			mu02 += dy * dy * v
			mu11 += dx * dy * v
		}
	}

	return []float64{cx, cy, mu20 / m00, mu02 / m00, mu11 / m00}
}

// frequencyStats: mean, std, p50, p75 of log(|F|+1) where F is the 2-D DFT
// of the normalized intensity. Quadrant order does not affect these values.
func frequencyStats(f *face) []float64 {
	spectrum := logMagnitude(f.gray, f.size, f.size)
	return summary(spectrum, 50, 75)
}

// colorStats: mean and std of H, S and V in 8-bit HSV (H in [0,180)).
// Single-channel sources yield zeros.
func colorStats(f *face) []float64 {
	if !f.color {
		return make([]float64, 6)
	}

	n := f.size * f.size
	h := make([]float64, 0, n)
	s := make([]float64, 0, n)
	v := make([]float64, 0, n)
	for y := 0; y < f.size; y++ {
		for x := 0; x < f.size; x++ {
			c := f.rgba.RGBAAt(x, y)
			hh, ss, vv := hsv8(c.R, c.G, c.B)
			h = append(h, float64(hh))
			s = append(s, float64(ss))
			v = append(v, float64(vv))
		}
	}

	hm, hs := meanStd(h)
	sm, ss := meanStd(s)
	vm, vs := meanStd(v)
	return []float64{hm, hs, sm, ss, vm, vs}
}

// hsv8 converts RGB to 8-bit HSV with hue halved into [0,180).
func hsv8(r, g, b uint8) (uint8, uint8, uint8) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	v := math.Max(rf, math.Max(gf, bf))
	lo := math.Min(rf, math.Min(gf, bf))
	diff := v - lo

	var s float64
	if v > 0 {
		s = math.Round(255 * diff / v)
	}

	var h float64
	if diff > 0 {
		switch v {
		case rf:
			h = 60 * (gf - bf) / diff
		case gf:
			h = 120 + 60*(bf-rf)/diff
		default:
			h = 240 + 60*(rf-gf)/diff
		}
		if h < 0 {
			h += 360
		}
	}
	h = math.Round(h / 2)
	if h >= 180 {
		h -= 180
	}

	return uint8(h), uint8(s), uint8(v)
}
