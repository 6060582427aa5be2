package testutil

import (
	"fmt"
	"math"
	"math/rand"

	"delivery-planner/internal/models"
)

// milesPerDegreeLat is close enough for fixture layout
const milesPerDegreeLat = 69.0

// NewStop builds an active, geocoded stop scheduled every day
func NewStop(id int64, city string, lat, lng float64) models.Stop {
	s := models.Stop{
		ID:      id,
		Name:    fmt.Sprintf("Stop %d", id),
		Address: fmt.Sprintf("%d Main St, %s", id, city),
		City:    city,
		Active:  true,
	}
	s.SetCoords(models.Coordinates{Lat: lat, Lng: lng})
	return s
}

// Cluster returns n stops scattered uniformly inside a disk of radiusMiles
// around center. ids start at firstID. The layout depends only on seed.
func Cluster(seed int64, firstID int64, n int, city string, center models.Coordinates, radiusMiles float64) []models.Stop {
	rng := rand.New(rand.NewSource(seed))
	lngScale := math.Cos(center.Lat * math.Pi / 180)

	stops := make([]models.Stop, n)
	for i := range stops {
		r := radiusMiles * math.Sqrt(rng.Float64())
		theta := 2 * math.Pi * rng.Float64()
		dLat := r * math.Sin(theta) / milesPerDegreeLat
		dLng := r * math.Cos(theta) / (milesPerDegreeLat * lngScale)
		stops[i] = NewStop(firstID+int64(i), city, center.Lat+dLat, center.Lng+dLng)
	}
	return stops
}

// Lakewood and Monsey are about 50 miles apart
var (
	Lakewood = models.Coordinates{Lat: 40.0821, Lng: -74.2097}
	Monsey   = models.Coordinates{Lat: 41.1112, Lng: -74.0685}
)

// TwoCities returns perCity stops around Lakewood followed by perCity around Monsey
func TwoCities(seed int64, perCity int) []models.Stop {
	stops := Cluster(seed, 1, perCity, "Lakewood", Lakewood, 3)
	return append(stops, Cluster(seed+1, int64(perCity)+1, perCity, "Monsey", Monsey, 3)...)
}

// Ring places n stops evenly on a circle of radiusMiles around center
func Ring(firstID int64, n int, center models.Coordinates, radiusMiles float64) []models.Stop {
	lngScale := math.Cos(center.Lat * math.Pi / 180)
	stops := make([]models.Stop, n)
	for i := range stops {
		theta := 2 * math.Pi * float64(i) / float64(n)
		dLat := radiusMiles * math.Sin(theta) / milesPerDegreeLat
		dLng := radiusMiles * math.Cos(theta) / (milesPerDegreeLat * lngScale)
		stops[i] = NewStop(firstID+int64(i), "", center.Lat+dLat, center.Lng+dLng)
	}
	return stops
}

// Line places n stops due east of start, spacingMiles apart
func Line(firstID int64, n int, start models.Coordinates, spacingMiles float64) []models.Stop {
	lngScale := math.Cos(start.Lat * math.Pi / 180)
	stops := make([]models.Stop, n)
	for i := range stops {
		dLng := float64(i) * spacingMiles / (milesPerDegreeLat * lngScale)
		stops[i] = NewStop(firstID+int64(i), "", start.Lat, start.Lng+dLng)
	}
	return stops
}
