package edge

// gauss5 is the 5-tap binomial kernel a 5x5 Gaussian falls back to when no
// sigma is given. Weights sum to 16.
var gauss5 = [5]int{1, 4, 6, 4, 1}

// GaussianBlur5 smooths a row-major 8-bit image with a separable 5x5
// Gaussian and reflected borders. Results are rounded to nearest.
func GaussianBlur5(img []uint8, w, h int) []uint8 {
	tmp := make([]int, w*h)
	for y := 0; y < h; y++ {
		row := img[y*w : y*w+w]
		for x := 0; x < w; x++ {
			sum := 0
			for k, g := range gauss5 {
				sum += g * int(row[Reflect101(x+k-2, w)])
			}
			tmp[y*w+x] = sum
		}
	}

	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for k, g := range gauss5 {
				sum += g * tmp[Reflect101(y+k-2, h)*w+x]
			}
			// two passes of weight 16
			out[y*w+x] = uint8((sum + 128) >> 8)
		}
	}
	return out
}
