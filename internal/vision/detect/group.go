package detect

import (
	"image"
	"math"
)

// groupWindows clusters raw windows whose edges all lie within eps of each
// other, averages every cluster and keeps those backed by more than minVotes
// windows. Clusters nested inside a better-supported cluster are dropped.
func groupWindows(windows []Window, minVotes int, eps float64) []image.Rectangle {
	if len(windows) == 0 {
		return nil
	}

	labels, nclasses := partition(windows, eps)

	type acc struct {
		x, y, w, h int
		n          int
	}
	sums := make([]acc, nclasses)
	for i, w := range windows {
		s := &sums[labels[i]]
		s.x += w.Rect.Min.X
		s.y += w.Rect.Min.Y
		s.w += w.Rect.Dx()
		s.h += w.Rect.Dy()
		s.n++
	}

	rects := make([]image.Rectangle, nclasses)
	for i, s := range sums {
		inv := 1 / float64(s.n)
		x := int(math.Round(float64(s.x) * inv))
		y := int(math.Round(float64(s.y) * inv))
		w := int(math.Round(float64(s.w) * inv))
		h := int(math.Round(float64(s.h) * inv))
		rects[i] = image.Rect(x, y, x+w, y+h)
	}

	out := make([]image.Rectangle, 0, nclasses)
	for i, r1 := range rects {
		n1 := sums[i].n
		if n1 <= minVotes {
			continue
		}

		nested := false
		for j, r2 := range rects {
			n2 := sums[j].n
			if j == i || n2 <= minVotes {
				continue
			}
			dx := int(math.Round(float64(r2.Dx()) * eps))
			dy := int(math.Round(float64(r2.Dy()) * eps))
			if r1.Min.X >= r2.Min.X-dx &&
				r1.Min.Y >= r2.Min.Y-dy &&
				r1.Max.X <= r2.Max.X+dx &&
				r1.Max.Y <= r2.Max.Y+dy &&
				(n2 > max(3, n1) || n1 < 3) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, r1)
		}
	}
	return out
}

// partition assigns every window a class label using union-find over the
// similarity predicate. Labels are numbered in order of first appearance.
func partition(windows []Window, eps float64) ([]int, int) {
	parent := make([]int, len(windows))
	for i := range parent {
		parent[i] = i
	}

	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := range windows {
		for j := i + 1; j < len(windows); j++ {
			if similarRects(windows[i].Rect, windows[j].Rect, eps) {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[rj] = ri
				}
			}
		}
	}

	labels := make([]int, len(windows))
	ids := make(map[int]int)
	for i := range windows {
		root := find(i)
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}
		labels[i] = id
	}
	return labels, len(ids)
}

func similarRects(a, b image.Rectangle, eps float64) bool {
	delta := eps * float64(min(a.Dx(), b.Dx())+min(a.Dy(), b.Dy())) * 0.5
	return math.Abs(float64(a.Min.X-b.Min.X)) <= delta &&
		math.Abs(float64(a.Min.Y-b.Min.Y)) <= delta &&
		math.Abs(float64(a.Max.X-b.Max.X)) <= delta &&
		math.Abs(float64(a.Max.Y-b.Max.Y)) <= delta
}
