package edge

// Reflect101 maps an out-of-range index onto [0,n) mirroring around the edge
// pixels without repeating them (gfedcb|abcdefgh|gfedcba).
func Reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// Sobel returns the 3x3 Sobel derivatives of a row-major w x h image with
// reflected borders.
func Sobel(img []float64, w, h int) ([]float64, []float64) {
	gx := make([]float64, w*h)
	gy := make([]float64, w*h)

	at := func(x, y int) float64 {
		return img[Reflect101(y, h)*w+Reflect101(x, w)]
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tl, t, tr := at(x-1, y-1), at(x, y-1), at(x+1, y-1)
			l, r := at(x-1, y), at(x+1, y)
			bl, b, br := at(x-1, y+1), at(x, y+1), at(x+1, y+1)

			gx[y*w+x] = (tr + 2*r + br) - (tl + 2*l + bl)
			gy[y*w+x] = (bl + 2*b + br) - (tl + 2*t + tr)
		}
	}
	return gx, gy
}
