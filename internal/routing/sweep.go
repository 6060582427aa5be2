package routing

import (
	"math"
	"sort"
)

// sweepPartitioner sorts points by polar angle around the centroid, starts the
// sweep after the widest angular gap and cuts the sweep into k sectors of
// roughly equal time weight.
type sweepPartitioner struct {
	weights Weights
}

func (s *sweepPartitioner) Partition(points []Point, k int) ([][]Point, error) {
	if err := checkPartitionInput(points, k); err != nil {
		return nil, err
	}
	if len(points) <= k {
		return singletons(points, k), nil
	}

	seq := sweepOrder(points)

	n := len(seq)
	weight := make([]float64, n)
	total := 0.0
	for i, p := range seq {
		w := s.weights.MinPerStop
		if i > 0 {
			w += dist(seq[i-1], p) * s.weights.MinPerMile
		}
		weight[i] = w
		total += w
	}
	if total <= 0 {
		for i := range weight {
			weight[i] = 1
		}
		total = float64(n)
	}
	target := total / float64(k)

	groups := emptyGroups(k)
	g, acc := 0, 0.0
	for i, p := range seq {
		groups[g] = append(groups[g], p)
		acc += weight[i]

		groupsLeft := k - g - 1
		if groupsLeft == 0 {
			continue
		}
		pointsLeft := n - i - 1
		if pointsLeft == groupsLeft || acc >= target*float64(g+1) {
			g++
		}
	}
	return groups, nil
}

// sweepOrder returns points sorted by bearing around their centroid,
// rotated to begin just after the widest gap between neighbours
func sweepOrder(points []Point) []Point {
	c := centroid(points)
	angles := make([]float64, len(points))
	idx := make([]int, len(points))
	for i, p := range points {
		angles[i] = bearing(c, p)
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return angles[idx[a]] < angles[idx[b]] })

	n := len(idx)
	start := 0
	widest := -1.0
	for i := 0; i < n; i++ {
		prev := angles[idx[(i-1+n)%n]]
		cur := angles[idx[i]]
		gap := cur - prev
		if i == 0 {
			gap += 2 * math.Pi
		}
		if gap > widest {
			start, widest = i, gap
		}
	}

	ordered := make([]Point, n)
	for i := range ordered {
		ordered[i] = points[idx[(start+i)%n]]
	}
	return ordered
}
