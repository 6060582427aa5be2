package routing

import (
	"fmt"

	"delivery-planner/internal/models"
)

// Options holds the planner tunables; see DefaultOptions
type Options = models.PlanOptions

// Partitioner splits candidates into exactly k groups.
// Every candidate appears in exactly one group; groups are non-empty
// whenever len(points) >= k.
type Partitioner interface {
	Partition(points []Point, k int) ([][]Point, error)
}

// InputError is returned for malformed input: bad k, non-finite
// coordinates reaching the partitioner, unknown stops or slots in edits
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid planning input: %s", e.Reason)
}

// DegenerateGeometryError marks inputs the requested strategy cannot split
// cleanly. The planner recovers by falling back to an unlocked seam.
type DegenerateGeometryError struct {
	Strategy models.PartitionStrategy
	Reason   string
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("degenerate geometry for %s: %s", e.Strategy, e.Reason)
}

// DefaultOptions returns the documented defaults
func DefaultOptions() Options {
	return Options{
		Drivers:               4,
		Day:                   models.AllDays,
		ActiveOnly:            true,
		Strategy:              models.StrategyKMeans,
		MinutesPerMile:        3.0,
		MinutesPerStop:        4.0,
		TargetSpreadMinutes:   0,
		MaxPasses:             200,
		SeedCount:             4,
		SoftCapFactor:         1.6,
		CitySlackMinutes:      30,
		OutlierDistanceFactor: 0,
	}
}

func weightsOf(opts Options) Weights {
	return Weights{MinPerMile: opts.MinutesPerMile, MinPerStop: opts.MinutesPerStop}
}
