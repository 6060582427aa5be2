package routing

import (
	"fmt"

	"delivery-planner/internal/models"
)

const kmeansIterations = 10

// NewPartitioner returns the partitioner for strategy
func NewPartitioner(strategy models.PartitionStrategy, w Weights) (Partitioner, error) {
	switch strategy {
	case models.StrategyKMeans, "":
		return &kmeansPartitioner{iterations: kmeansIterations}, nil
	case models.StrategyCityLocked:
		return &cityLockedPartitioner{inner: &kmeansPartitioner{iterations: kmeansIterations}}, nil
	case models.StrategyMorton:
		return &mortonPartitioner{}, nil
	case models.StrategyAreaSweep:
		return &sweepPartitioner{weights: w}, nil
	}
	return nil, &InputError{Reason: fmt.Sprintf("unknown partition strategy %q", strategy)}
}

func checkPartitionInput(points []Point, k int) error {
	if k <= 0 {
		return &InputError{Reason: fmt.Sprintf("driver count must be positive, got %d", k)}
	}
	return validatePoints(points)
}

// singletons puts each point in its own group and pads the rest empty.
// Used when there are no more points than groups.
func singletons(points []Point, k int) [][]Point {
	groups := make([][]Point, k)
	for i, p := range points {
		groups[i] = []Point{p}
	}
	for i := len(points); i < k; i++ {
		groups[i] = []Point{}
	}
	return groups
}

func emptyGroups(k int) [][]Point {
	groups := make([][]Point, k)
	for i := range groups {
		groups[i] = []Point{}
	}
	return groups
}

// planarDist2 is squared euclidean distance on raw (lat, lng)
func planarDist2(a, b models.Coordinates) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return dLat*dLat + dLng*dLng
}
