package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-planner/internal/models"
	"delivery-planner/internal/testutil"
)

func TestRotateToDepot(t *testing.T) {
	path := pointsOf(testutil.Line(1, 5, testutil.Lakewood, 1))
	depot := path[3].Coordinates

	rotated := RotateToDepot(path, depot)

	assert.Equal(t, []int64{4, 5, 1, 2, 3}, idsOf(rotated))
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, idsOf(path))
}

func TestRotateToDepotTiesKeepEarlier(t *testing.T) {
	path := []Point{
		{ID: 1, Coordinates: models.Coordinates{Lat: 40, Lng: -74}},
		{ID: 2, Coordinates: models.Coordinates{Lat: 41, Lng: -74}},
		{ID: 3, Coordinates: models.Coordinates{Lat: 40, Lng: -74}},
	}

	depot := models.Coordinates{Lat: 40, Lng: -74}

	assert.Equal(t, []int64{1, 2, 3}, idsOf(RotateToDepot(path, depot)))
	assert.Equal(t, []int64{3, 2}, idsOf(RotateToDepot(path[1:], depot)))
	assert.Empty(t, RotateToDepot(nil, models.Coordinates{}))
}

func TestSplitOutliers(t *testing.T) {
	points := pointsOf(testutil.Cluster(9, 1, 10, "", testutil.Lakewood, 1))
	far := Point{ID: 50, Coordinates: testutil.Monsey}
	points = append(points, far)

	kept, outliers := splitOutliers(points, []int64{2}, 0)
	assert.Equal(t, []int64{2}, idsOf(outliers))
	assert.Len(t, kept, 10)

	kept, outliers = splitOutliers(points, nil, 4)
	require.Len(t, outliers, 1)
	assert.Equal(t, int64(50), outliers[0].ID)
	assert.Len(t, kept, 10)
}

func TestMeasure(t *testing.T) {
	path := pointsOf(testutil.Line(1, 3, testutil.Lakewood, 1))
	w := Weights{MinPerMile: 3, MinPerStop: 4}

	m := Measure(path, w)

	assert.Equal(t, 3, m.Stops)
	assert.InDelta(t, 2.0, m.DistanceMiles, 0.02)
	assert.InDelta(t, 3*m.DistanceMiles+12, m.Minutes, 1e-9)
	assert.Equal(t, 0.0, w.PathMinutes(nil))
}
