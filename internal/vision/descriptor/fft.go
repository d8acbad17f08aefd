package descriptor

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// logMagnitude computes log(|F|+1) of the unnormalized 2-D DFT of a
// row-major w x h image, rows first then columns.
func logMagnitude(img []float64, w, h int) []float64 {
	data := make([]complex128, w*h)
	for i, v := range img {
		data[i] = complex(v, 0)
	}

	rowFFT := fourier.NewCmplxFFT(w)
	row := make([]complex128, w)
	for y := 0; y < h; y++ {
		rowFFT.Coefficients(row, data[y*w:(y+1)*w])
		copy(data[y*w:], row)
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	out := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = data[y*w+x]
		}
		colFFT.Coefficients(out, col)
		for y := 0; y < h; y++ {
			data[y*w+x] = out[y]
		}
	}

	spectrum := make([]float64, w*h)
	for i, c := range data {
		spectrum[i] = math.Log(cmplx.Abs(c) + 1)
	}
	return spectrum
}
