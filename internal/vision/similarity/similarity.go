// Package similarity fuses five classical vector similarities into a single
// score in [0,1]. The fusion is a heuristic ensemble, not a metric.
package similarity

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
)

const (
	Pearson   = "pearson"
	Euclidean = "euclidean"
	Cosine    = "cosine"
	MeanDiff  = "mean_difference"
	Manhattan = "manhattan"
)

// Component is one similarity that could be computed for a pair.
type Component struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Score returns the mean of the computable components, or 0 when either
// descriptor is missing or no component is defined.
func Score(a, b domain.Descriptor) float64 {
	comps := Components(a, b)
	if len(comps) == 0 {
		return 0
	}

	sum := 0.0
	for _, c := range comps {
		sum += c.Value
	}
	return sum / float64(len(comps))
}

// Components computes every defined component, each clamped to [0,1].
// Descriptors of different length are compared over the shorter length.
func Components(a, b domain.Descriptor) []Component {
	n := min(len(a), len(b))
	if n == 0 {
		return nil
	}

	x, y := toFloat64(a[:n]), toFloat64(b[:n])
	// A canonical argument order makes the result exactly symmetric.
	if less(y, x) {
		x, y = y, x
	}

	comps := make([]Component, 0, 5)
	add := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		comps = append(comps, Component{Name: name, Value: clamp01(v)})
	}

	if n > 1 {
		add(Pearson, stat.Correlation(x, y, nil))
	}

	normX, normY := floats.Norm(x, 2), floats.Norm(y, 2)
	if sum := normX + normY; sum > 0 {
		add(Euclidean, 1-floats.Distance(x, y, 2)/sum)
	}

	if normX > 0 && normY > 0 {
		add(Cosine, floats.Dot(x, y)/(normX*normY))
	}

	manhattan := floats.Distance(x, y, 1)
	if peak := math.Max(floats.Max(x), floats.Max(y)); peak > 0 {
		add(MeanDiff, 1-(manhattan/float64(n))/peak)
	}

	if l1 := floats.Norm(x, 1) + floats.Norm(y, 1); l1 > 0 {
		add(Manhattan, 1-manhattan/l1)
	}

	return comps
}

func toFloat64(d domain.Descriptor) []float64 {
	out := make([]float64, len(d))
	for i, v := range d {
		out[i] = float64(v)
	}
	return out
}

// less orders vectors lexicographically.
func less(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
