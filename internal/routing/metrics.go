package routing

import "delivery-planner/internal/models"

// Weights converts a path into estimated minutes
type Weights struct {
	MinPerMile float64
	MinPerStop float64
}

// Minutes = miles × per-mile rate + stops × per-stop service time
func (w Weights) Minutes(miles float64, stops int) float64 {
	return miles*w.MinPerMile + float64(stops)*w.MinPerStop
}

// PathMinutes is the estimated completion time of an ordered route
func (w Weights) PathMinutes(path []Point) float64 {
	if len(path) == 0 {
		return 0
	}
	return w.Minutes(PathMiles(path), len(path))
}

// Measure recomputes the metrics of an ordered route
func Measure(path []Point, w Weights) models.RouteMetrics {
	miles := PathMiles(path)
	return models.RouteMetrics{
		DistanceMiles: miles,
		Stops:         len(path),
		Minutes:       w.Minutes(miles, len(path)),
		Centroid:      centroid(path),
	}
}
