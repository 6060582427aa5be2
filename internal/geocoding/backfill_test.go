package geocoding_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-planner/internal/geocoding"
	"delivery-planner/internal/models"
	"delivery-planner/internal/sqlite"
	"delivery-planner/internal/testutil"
)

func TestBackfill(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	geocoded := testutil.NewStop(0, "Lakewood", 40.08, -74.21)
	_, err = store.Stops().Create(ctx, &geocoded)
	require.NoError(t, err)

	known := models.Stop{Name: "Known", Address: "12 Oak St", City: "Lakewood", Active: true}
	_, err = store.Stops().Create(ctx, &known)
	require.NoError(t, err)
	unknown := models.Stop{Name: "Unknown", Address: "99 Nowhere Rd", City: "Monsey", Active: true}
	_, err = store.Stops().Create(ctx, &unknown)
	require.NoError(t, err)

	g := testutil.NewMockGeocoder()
	g.Set("12 Oak St, Lakewood", models.Coordinates{Lat: 40.09, Lng: -74.22})

	report, err := geocoding.Backfill(ctx, store.Stops(), g, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, []int64{unknown.ID}, report.Failed)
	assert.Equal(t, 2, g.CallCount())

	got, err := store.Stops().GetByID(ctx, known.ID)
	require.NoError(t, err)
	c, ok := got.GetCoords()
	require.True(t, ok)
	assert.Equal(t, 40.09, c.Lat)

	pending, err := store.Stops().ListUngeocoded(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, unknown.ID, pending[0].ID)
}

func TestBackfillCancelled(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()

	s := models.Stop{Name: "A", Address: "1 Elm St", Active: true}
	_, err = store.Stops().Create(context.Background(), &s)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = geocoding.Backfill(ctx, store.Stops(), testutil.NewMockGeocoder(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueryFor(t *testing.T) {
	tests := []struct {
		address, city, want string
	}{
		{"12 Oak St", "Lakewood", "12 Oak St, Lakewood"},
		{"12 Oak St, Lakewood NJ", "lakewood", "12 Oak St, Lakewood NJ"},
		{"  12 Oak St ", "", "12 Oak St"},
		{"", "Monsey", "Monsey"},
	}
	for _, tt := range tests {
		s := models.Stop{Address: tt.address, City: tt.city}
		assert.Equal(t, tt.want, geocoding.QueryFor(&s))
	}
}
