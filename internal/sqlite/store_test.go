package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-planner/internal/database"
	"delivery-planner/internal/models"
	"delivery-planner/internal/testutil"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreImplementsDataStore(t *testing.T) {
	var _ database.DataStore = setupTestStore(t)
}

func TestStopCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	repo := store.Stops()

	stop := testutil.NewStop(0, "Lakewood", 40.0821, -74.2097)
	stop.Days = []models.Weekday{models.Monday, models.Friday}

	created, err := repo.Create(ctx, &stop)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Lakewood", got.City)
	assert.Equal(t, []models.Weekday{models.Monday, models.Friday}, got.Days)
	assert.True(t, got.Active)
	coords, ok := got.GetCoords()
	require.True(t, ok)
	assert.Equal(t, 40.0821, coords.Lat)

	got.Active = false
	got.Name = "Renamed"
	_, err = repo.Update(ctx, got)
	require.NoError(t, err)

	updated, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.False(t, updated.Active)

	require.NoError(t, repo.Delete(ctx, created.ID))
	missing, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Delete(ctx, created.ID)
	assert.True(t, errors.Is(err, database.ErrNotFound))
}

func TestStopListAndSearch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	repo := store.Stops()

	for _, s := range testutil.TwoCities(1, 3) {
		s := s
		_, err := repo.Create(ctx, &s)
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 6)

	monsey, err := repo.List(ctx, "Monsey")
	require.NoError(t, err)
	assert.Len(t, monsey, 3)

	some, err := repo.GetByIDs(ctx, []int64{all[0].ID, all[5].ID})
	require.NoError(t, err)
	assert.Len(t, some, 2)

	none, err := repo.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStopUngeocodedAndSetCoordinates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	repo := store.Stops()

	bare := models.Stop{Name: "No coords", Address: "1 Nowhere Rd", Active: true}
	_, err := repo.Create(ctx, &bare)
	require.NoError(t, err)
	located := testutil.NewStop(0, "Monsey", 41.11, -74.07)
	_, err = repo.Create(ctx, &located)
	require.NoError(t, err)

	pending, err := repo.ListUngeocoded(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, bare.ID, pending[0].ID)

	require.NoError(t, repo.SetCoordinates(ctx, bare.ID, models.Coordinates{Lat: 40.1, Lng: -74.2}))

	pending, err = repo.ListUngeocoded(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	err = repo.SetCoordinates(ctx, 9999, models.Coordinates{})
	assert.True(t, errors.Is(err, database.ErrNotFound))
}

func TestSettingsRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	initial, err := store.Settings().Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, initial.Depot)

	settings := &models.Settings{
		Depot: &models.Coordinates{Lat: 40.09, Lng: -74.21},
		Defaults: models.PlanOptions{
			Drivers:        5,
			Strategy:       models.StrategyCityLocked,
			MinutesPerMile: 2.5,
			MinutesPerStop: 3,
		},
	}
	require.NoError(t, store.Settings().Update(ctx, settings))

	got, err := store.Settings().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings, got)
}

func samplePlan(id string) *models.SavedPlan {
	slots := models.NewDriverSlots(2)
	return &models.SavedPlan{
		ID:      id,
		Day:     models.Tuesday,
		Options: models.PlanOptions{Drivers: 2, Strategy: models.StrategyKMeans},
		Result: models.PlanResult{
			Routes: []models.PlannedRoute{
				{Driver: slots[0], StopIDs: []int64{3, 1, 2}, Metrics: models.RouteMetrics{DistanceMiles: 2.5, Stops: 3, Minutes: 19.5}},
				{Driver: slots[1], StopIDs: []int64{}},
			},
			Outliers: models.PlannedRoute{Driver: models.OutlierDriverSlot(), StopIDs: []int64{9}, Metrics: models.RouteMetrics{Stops: 1, Minutes: 4}},
			Excluded: []models.Exclusion{{StopID: 4, Reason: models.ExcludedUngeocoded}},
			Summary:  models.PlanSummary{Strategy: models.StrategyKMeans, Routed: 3, Outliers: 1, Excluded: 1},
		},
		CreatedAt: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
	}
}

func TestPlanSaveAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	plan := samplePlan("plan-1")
	require.NoError(t, store.Plans().Save(ctx, plan))

	got, err := store.Plans().GetByID(ctx, "plan-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, plan.Result, got.Result)
	assert.Equal(t, plan.Options, got.Options)
	assert.Equal(t, models.Tuesday, got.Day)
	assert.Empty(t, got.ParentID)
	assert.True(t, plan.CreatedAt.Equal(got.CreatedAt))

	missing, err := store.Plans().GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPlanListAndDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := samplePlan("plan-1")
	second := samplePlan("plan-2")
	second.ParentID = "plan-1"
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	require.NoError(t, store.Plans().Save(ctx, first))
	require.NoError(t, store.Plans().Save(ctx, second))

	items, total, err := store.Plans().List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "plan-2", items[0].ID)
	assert.Equal(t, "plan-1", items[0].ParentID)
	assert.Equal(t, 2, items[0].Drivers)
	assert.Equal(t, 3, items[0].Summary.Routed)

	require.NoError(t, store.Plans().Delete(ctx, "plan-1"))
	err = store.Plans().Delete(ctx, "plan-1")
	assert.True(t, errors.Is(err, database.ErrNotFound))

	items, total, err = store.Plans().List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
}
