package detect

import (
	"math"
	"sort"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
)

// suppressOverlaps removes near-duplicate regions greedily. Regions are
// visited by descending area (ties by y, then x). A visited region is too
// close to a kept one when their centres are closer than half its own
// min(width, height). If it is smaller than the kept region it is dropped;
// otherwise the kept region is removed and the scan continues. Removals made
// before a drop stand.
func suppressOverlaps(regions []domain.FaceRegion) []domain.FaceRegion {
	ordered := make([]domain.FaceRegion, len(regions))
	copy(ordered, regions)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Area() != b.Area() {
			return a.Area() > b.Area()
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	kept := make([]domain.FaceRegion, 0, len(ordered))
	for _, r := range ordered {
		cx, cy := r.Center()
		limit := float64(min(r.Width, r.Height)) * 0.5

		tooClose := false
		survivors := make([]domain.FaceRegion, 0, len(kept)+1)
		for i, k := range kept {
			kx, ky := k.Center()
			if math.Hypot(cx-kx, cy-ky) < limit {
				if r.Area() < k.Area() {
					tooClose = true
					survivors = append(survivors, kept[i:]...)
					break
				}
				continue
			}
			survivors = append(survivors, k)
		}

		if !tooClose {
			survivors = append(survivors, r)
		}
		kept = survivors
	}
	return kept
}
