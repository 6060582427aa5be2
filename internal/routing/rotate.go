package routing

import (
	"sort"

	"delivery-planner/internal/models"
)

// RotateToDepot cyclically rotates path so the stop nearest the depot comes
// first. Membership and cyclic order are preserved; ties keep the earlier stop.
func RotateToDepot(path []Point, depot models.Coordinates) []Point {
	if len(path) < 2 {
		return append([]Point{}, path...)
	}
	start, best := 0, haversineMiles(depot, path[0].Coordinates)
	for i := 1; i < len(path); i++ {
		if d := haversineMiles(depot, path[i].Coordinates); d < best {
			start, best = i, d
		}
	}
	out := make([]Point, 0, len(path))
	out = append(out, path[start:]...)
	out = append(out, path[:start]...)
	return out
}

// splitOutliers separates the candidates that belong in the outlier bucket:
// explicitly flagged ids, plus, when factor > 0, points whose distance to the
// centroid exceeds factor times the median distance. Both slices keep input order.
func splitOutliers(points []Point, flagged []int64, factor float64) (kept, outliers []Point) {
	flag := make(map[int64]bool, len(flagged))
	for _, id := range flagged {
		flag[id] = true
	}

	var far map[int64]bool
	if factor > 0 && len(points) > 2 {
		far = distantPoints(points, factor)
	}

	kept = make([]Point, 0, len(points))
	outliers = make([]Point, 0)
	for _, p := range points {
		if flag[p.ID] || far[p.ID] {
			outliers = append(outliers, p)
			continue
		}
		kept = append(kept, p)
	}
	return kept, outliers
}

func distantPoints(points []Point, factor float64) map[int64]bool {
	c := centroid(points)
	d := make([]float64, len(points))
	for i, p := range points {
		d[i] = haversineMiles(c, p.Coordinates)
	}
	sorted := append([]float64{}, d...)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}
	if median <= 0 {
		return nil
	}

	far := make(map[int64]bool)
	for i, p := range points {
		if d[i] > factor*median {
			far[p.ID] = true
		}
	}
	return far
}
