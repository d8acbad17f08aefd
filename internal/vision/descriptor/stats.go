package descriptor

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// meanStd returns the mean and population standard deviation of x.
func meanStd(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(x, nil)
}

// percentiles returns the requested percentiles (0..100) of x using linear
// interpolation between closest ranks. x is not modified.
func percentiles(x []float64, ps ...float64) []float64 {
	out := make([]float64, len(ps))
	if len(x) == 0 {
		return out
	}

	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	n := len(sorted)
	for i, p := range ps {
		pos := p / 100 * float64(n-1)
		lo := int(math.Floor(pos))
		hi := min(lo+1, n-1)
		frac := pos - float64(lo)
		out[i] = sorted[lo] + (sorted[hi]-sorted[lo])*frac
	}
	return out
}

// summary appends mean, std and the given percentiles of x.
func summary(x []float64, ps ...float64) []float64 {
	m, s := meanStd(x)
	return append([]float64{m, s}, percentiles(x, ps...)...)
}

func minMax(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	return floats.Min(x), floats.Max(x)
}
