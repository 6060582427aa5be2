package routing

import (
	"math"

	"delivery-planner/internal/models"
)

// kmeansPartitioner runs Lloyd's k-means on (lat, lng) with farthest-point
// seeding and a fixed iteration cap
type kmeansPartitioner struct {
	iterations int
}

func (p *kmeansPartitioner) Partition(points []Point, k int) ([][]Point, error) {
	if err := checkPartitionInput(points, k); err != nil {
		return nil, err
	}
	if len(points) <= k {
		return singletons(points, k), nil
	}
	if coincident(points) {
		return nil, &DegenerateGeometryError{Strategy: models.StrategyKMeans, Reason: "all points coincide"}
	}

	centers := farthestPointSeeds(points, k)
	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}

	for it := 0; it < p.iterations; it++ {
		changed := false
		for i, pt := range points {
			c := nearestCenter(centers, pt.Coordinates)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		recomputeCenters(points, assign, centers)
	}

	groups := make([][]Point, k)
	for i := range groups {
		groups[i] = []Point{}
	}
	for i, c := range assign {
		groups[c] = append(groups[c], points[i])
	}
	fillEmptyGroups(groups, centers)
	return groups, nil
}

// farthestPointSeeds starts from the point farthest from the global centroid,
// then repeatedly picks the point maximizing its minimum distance to the
// chosen centers. Ties keep the first point found.
func farthestPointSeeds(points []Point, k int) []models.Coordinates {
	chosen := make([]bool, len(points))
	minD := make([]float64, len(points))

	c := centroid(points)
	first, best := 0, -1.0
	for i, p := range points {
		if d := planarDist2(c, p.Coordinates); d > best {
			first, best = i, d
		}
	}

	centers := make([]models.Coordinates, 0, k)
	centers = append(centers, points[first].Coordinates)
	chosen[first] = true
	for i, p := range points {
		minD[i] = planarDist2(points[first].Coordinates, p.Coordinates)
	}

	for len(centers) < k {
		next, best := -1, -1.0
		for i := range points {
			if chosen[i] {
				continue
			}
			if minD[i] > best {
				next, best = i, minD[i]
			}
		}
		chosen[next] = true
		centers = append(centers, points[next].Coordinates)
		for i, p := range points {
			if d := planarDist2(points[next].Coordinates, p.Coordinates); d < minD[i] {
				minD[i] = d
			}
		}
	}
	return centers
}

// nearestCenter breaks ties toward the lower index
func nearestCenter(centers []models.Coordinates, c models.Coordinates) int {
	best, bestD := 0, math.Inf(1)
	for i, ctr := range centers {
		if d := planarDist2(ctr, c); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// recomputeCenters moves each center to the mean of its members.
// A center with no members stays where it is.
func recomputeCenters(points []Point, assign []int, centers []models.Coordinates) {
	sums := make([]models.Coordinates, len(centers))
	counts := make([]int, len(centers))
	for i, c := range assign {
		sums[c].Lat += points[i].Lat
		sums[c].Lng += points[i].Lng
		counts[c]++
	}
	for i := range centers {
		if counts[i] == 0 {
			continue
		}
		centers[i] = models.Coordinates{
			Lat: sums[i].Lat / float64(counts[i]),
			Lng: sums[i].Lng / float64(counts[i]),
		}
	}
}

// fillEmptyGroups hands each empty group the member of the largest group that
// sits farthest from that group's center
func fillEmptyGroups(groups [][]Point, centers []models.Coordinates) {
	for {
		empty := -1
		for i, g := range groups {
			if len(g) == 0 {
				empty = i
				break
			}
		}
		if empty < 0 {
			return
		}

		donor := -1
		for i, g := range groups {
			if len(g) > 1 && (donor < 0 || len(g) > len(groups[donor])) {
				donor = i
			}
		}
		if donor < 0 {
			return
		}

		far, farD := 0, -1.0
		for i, p := range groups[donor] {
			if d := planarDist2(centers[donor], p.Coordinates); d > farD {
				far, farD = i, d
			}
		}
		moved := groups[donor][far]
		groups[donor] = append(groups[donor][:far:far], groups[donor][far+1:]...)
		groups[empty] = append(groups[empty], moved)
		centers[empty] = moved.Coordinates
	}
}
