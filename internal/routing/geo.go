package routing

import (
	"math"

	"delivery-planner/internal/models"
)

const earthRadiusMiles = 3958.8

// Point is a geocoded candidate as seen by the engine
type Point struct {
	ID   int64
	City string
	models.Coordinates
}

// haversineMiles returns the great-circle distance between two coordinates
func haversineMiles(a, b models.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMiles * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func dist(a, b Point) float64 {
	return haversineMiles(a.Coordinates, b.Coordinates)
}

// PathMiles sums consecutive legs of an open path (no return leg)
func PathMiles(path []Point) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += dist(path[i-1], path[i])
	}
	return total
}

// centroid returns the mean lat/lng; zero value for an empty set
func centroid(points []Point) models.Coordinates {
	if len(points) == 0 {
		return models.Coordinates{}
	}
	var lat, lng float64
	for _, p := range points {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(points))
	return models.Coordinates{Lat: lat / n, Lng: lng / n}
}

type bbox struct {
	minLat, maxLat, minLng, maxLng float64
}

func boundsOf(points []Point) bbox {
	b := bbox{
		minLat: math.Inf(1), maxLat: math.Inf(-1),
		minLng: math.Inf(1), maxLng: math.Inf(-1),
	}
	for _, p := range points {
		b.minLat = math.Min(b.minLat, p.Lat)
		b.maxLat = math.Max(b.maxLat, p.Lat)
		b.minLng = math.Min(b.minLng, p.Lng)
		b.maxLng = math.Max(b.maxLng, p.Lng)
	}
	return b
}

// span is width plus height in degrees; 0 for an empty or single-point box
func (b bbox) span() float64 {
	if math.IsInf(b.minLat, 1) {
		return 0
	}
	return (b.maxLat - b.minLat) + (b.maxLng - b.minLng)
}

// coincident reports whether every point sits on the same coordinate
func coincident(points []Point) bool {
	for i := 1; i < len(points); i++ {
		if points[i].Lat != points[0].Lat || points[i].Lng != points[0].Lng {
			return false
		}
	}
	return true
}

// bearing returns the polar angle of p around c in radians, in [0, 2π)
func bearing(c models.Coordinates, p Point) float64 {
	x := (p.Lng - c.Lng) * math.Cos(c.Lat*math.Pi/180)
	y := p.Lat - c.Lat
	a := math.Atan2(y, x)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
