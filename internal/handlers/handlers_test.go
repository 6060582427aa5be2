package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-planner/internal/models"
	"delivery-planner/internal/routing"
	"delivery-planner/internal/sqlite"
	"delivery-planner/internal/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.MockGeocoder) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	geocoder := testutil.NewMockGeocoder()
	geocoder.Set("12 Oak St, Lakewood", models.Coordinates{Lat: 40.09, Lng: -74.22})

	return &Handler{
		DB:             store,
		Geocoder:       geocoder,
		Defaults:       routing.DefaultOptions(),
		GeocodeRetries: 1,
	}, geocoder
}

func seedStops(t *testing.T, h *Handler, stops []models.Stop) {
	t.Helper()
	for _, s := range stops {
		s := s
		s.ID = 0
		_, err := h.DB.Stops().Create(context.Background(), &s)
		require.NoError(t, err)
	}
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestHandleHealthCheck(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.HandleHealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "connected", resp["database"])
}

func TestHandleCreateStopGeocodes(t *testing.T) {
	h, geocoder := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleCreateStop(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stops", jsonBody(t, map[string]interface{}{
		"name": "Oak", "address": "12 Oak St", "city": "Lakewood", "days": []string{"Monday", "thu"},
	})))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var stop models.Stop
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stop))
	assert.NotZero(t, stop.ID)
	assert.True(t, stop.Active)
	assert.Equal(t, []models.Weekday{models.Monday, models.Thursday}, stop.Days)
	require.NotNil(t, stop.Lat)
	assert.Equal(t, 40.09, *stop.Lat)
	assert.Equal(t, 1, geocoder.CallCount())
}

func TestHandleCreateStopWithCoordinates(t *testing.T) {
	h, geocoder := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleCreateStop(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stops", jsonBody(t, map[string]interface{}{
		"name": "Pinned", "address": "1 Elm St", "lat": 41.1, "lng": -74.07, "active": false,
	})))

	require.Equal(t, http.StatusCreated, rec.Code)
	var stop models.Stop
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stop))
	assert.False(t, stop.Active)
	assert.Equal(t, 0, geocoder.CallCount())
}

func TestHandleCreateStopErrors(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid json", `{`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing address", `{"name":"A"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"lat without lng", `{"name":"A","address":"B","lat":1}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad day", `{"name":"A","address":"B","lat":1,"lng":2,"days":["someday"]}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"geocoding fails", `{"name":"A","address":"99 Nowhere Rd"}`, http.StatusUnprocessableEntity, "GEOCODING_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleCreateStop(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stops", bytes.NewBufferString(tt.body)))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestStopLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)
	seedStops(t, h, []models.Stop{testutil.NewStop(0, "Lakewood", 40.08, -74.21)})

	rec := httptest.NewRecorder()
	h.HandleListStops(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stops?search=lake", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list StopListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Equal(t, 1, list.Total)
	id := list.Stops[0].ID

	path := fmt.Sprintf("/api/v1/stops/%d", id)
	rec = httptest.NewRecorder()
	h.HandleUpdateStop(rec, httptest.NewRequest(http.MethodPut, path, jsonBody(t, map[string]interface{}{
		"name": "Renamed", "address": list.Stops[0].Address, "city": "Lakewood", "active": false,
	})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.HandleGetStop(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Stop
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Renamed", got.Name)
	assert.False(t, got.Active)
	assert.NotNil(t, got.Lat, "coordinates survive an update that keeps the address")

	rec = httptest.NewRecorder()
	h.HandleDeleteStop(rec, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleGetStop(rec, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleDeleteStop(rec, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleGetStop(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stops/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGeocodeBackfill(t *testing.T) {
	h, _ := newTestHandler(t)
	ctx := context.Background()
	_, err := h.DB.Stops().Create(ctx, &models.Stop{Name: "Oak", Address: "12 Oak St", City: "Lakewood", Active: true})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.HandleGeocodeBackfill(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stops/geocode", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, 1.0, report["resolved"])
}

func TestSettingsRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t)

	defaults := routing.DefaultOptions()
	defaults.Drivers = 6
	rec := httptest.NewRecorder()
	h.HandleUpdateSettings(rec, httptest.NewRequest(http.MethodPut, "/api/v1/settings", jsonBody(t, models.Settings{
		Depot:    &models.Coordinates{Lat: 40.08, Lng: -74.21},
		Defaults: defaults,
	})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.HandleGetSettings(rec, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Settings
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.NotNil(t, got.Depot)
	assert.Equal(t, 6, got.Defaults.Drivers)

	opts, err := h.planDefaults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, opts.Drivers)
	require.NotNil(t, opts.Depot)
	assert.Equal(t, 40.08, opts.Depot.Lat)
}

func TestSettingsRejectsBadDefaults(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleUpdateSettings(rec, httptest.NewRequest(http.MethodPut, "/api/v1/settings",
		bytes.NewBufferString(`{"defaults":{"drivers":2,"strategy":"bogus"}}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func createPlan(t *testing.T, h *Handler, body string) models.SavedPlan {
	t.Helper()
	rec := httptest.NewRecorder()
	h.HandleCreatePlan(rec, httptest.NewRequest(http.MethodPost, "/api/v1/plans", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var plan models.SavedPlan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&plan))
	return plan
}

func TestHandleCreatePlan(t *testing.T) {
	h, _ := newTestHandler(t)
	seedStops(t, h, testutil.TwoCities(1, 6))

	plan := createPlan(t, h, `{"drivers":3,"strategy":"city_locked"}`)

	assert.NotEmpty(t, plan.ID)
	assert.Empty(t, plan.ParentID)
	assert.Equal(t, models.StrategyCityLocked, plan.Options.Strategy)
	require.Len(t, plan.Result.Routes, 3)
	assert.Equal(t, 12, plan.Result.Summary.Routed+plan.Result.Summary.Outliers)

	rec := httptest.NewRecorder()
	h.HandleListPlans(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list PlanListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 1, list.Total)

	rec = httptest.NewRecorder()
	h.HandlePlanAction(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans/"+plan.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.SavedPlan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	for i := range plan.Result.Routes {
		assert.Equal(t, plan.Result.Routes[i].StopIDs, got.Result.Routes[i].StopIDs)
	}
}

func TestHandleCreatePlanEmptyBodyUsesDefaults(t *testing.T) {
	h, _ := newTestHandler(t)
	seedStops(t, h, testutil.TwoCities(2, 4))

	plan := createPlan(t, h, "")
	assert.Len(t, plan.Result.Routes, routing.DefaultOptions().Drivers)
}

func TestHandleCreatePlanInvalidOptions(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, body := range []string{`{"drivers":0}`, `{"strategy":"bogus"}`, `{"rotate_to_depot":true}`, `[`} {
		rec := httptest.NewRecorder()
		h.HandleCreatePlan(rec, httptest.NewRequest(http.MethodPost, "/api/v1/plans", bytes.NewBufferString(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestHandleCreatePlanStoreFailure(t *testing.T) {
	h, _ := newTestHandler(t)
	require.NoError(t, h.DB.Close())

	rec := httptest.NewRecorder()
	h.HandleCreatePlan(rec, httptest.NewRequest(http.MethodPost, "/api/v1/plans", bytes.NewBufferString(`{"drivers":2}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestHandlePlanEdits(t *testing.T) {
	h, _ := newTestHandler(t)
	seedStops(t, h, testutil.TwoCities(3, 5))
	plan := createPlan(t, h, `{"drivers":2}`)

	var moved int64
	for _, r := range plan.Result.Routes {
		if len(r.StopIDs) > 0 {
			moved = r.StopIDs[0]
			break
		}
	}
	require.NotZero(t, moved)

	rec := httptest.NewRecorder()
	h.HandlePlanAction(rec, httptest.NewRequest(http.MethodPost, "/api/v1/plans/"+plan.ID+"/move",
		bytes.NewBufferString(fmt.Sprintf(`{"stop_id":%d,"to":"outlier"}`, moved))))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var edited models.SavedPlan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&edited))
	assert.Equal(t, plan.ID, edited.ParentID)
	assert.Equal(t, []int64{moved}, edited.Result.Outliers.StopIDs)

	original, err := h.DB.Plans().GetByID(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Empty(t, original.Result.Outliers.StopIDs)

	rec = httptest.NewRecorder()
	h.HandlePlanAction(rec, httptest.NewRequest(http.MethodPost, "/api/v1/plans/"+plan.ID+"/reverse",
		bytes.NewBufferString(`{"slot":"0"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reversed models.SavedPlan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reversed))
	want := append([]int64{}, plan.Result.Routes[0].StopIDs...)
	for i, j := 0, len(want)-1; i < j; i, j = i+1, j-1 {
		want[i], want[j] = want[j], want[i]
	}
	assert.Equal(t, want, reversed.Result.Routes[0].StopIDs)

	rec = httptest.NewRecorder()
	h.HandlePlanAction(rec, httptest.NewRequest(http.MethodPost, "/api/v1/plans/"+plan.ID+"/resequence",
		bytes.NewBufferString(`{"slot":"7"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.HandlePlanAction(rec, httptest.NewRequest(http.MethodPost, "/api/v1/plans/"+plan.ID+"/move",
		bytes.NewBufferString(`{"stop_id":424242,"to":"0"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, before, err := h.DB.Plans().List(context.Background(), 100, 0)
	require.NoError(t, err)
	for _, tc := range []struct{ action, body string }{
		{"move", fmt.Sprintf(`{"stop_id":%d}`, moved)},
		{"move", fmt.Sprintf(`{"stop_id":%d,"slot":"0"}`, moved)},
		{"reverse", `{}`},
		{"resequence", `{"to":"0"}`},
	} {
		rec = httptest.NewRecorder()
		h.HandlePlanAction(rec, httptest.NewRequest(http.MethodPost, "/api/v1/plans/"+plan.ID+"/"+tc.action,
			bytes.NewBufferString(tc.body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s %s", tc.action, tc.body)
		assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	}
	_, after, err := h.DB.Plans().List(context.Background(), 100, 0)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestHandleExportPlan(t *testing.T) {
	h, _ := newTestHandler(t)
	seedStops(t, h, testutil.TwoCities(4, 3))
	plan := createPlan(t, h, `{"drivers":2}`)

	rec := httptest.NewRecorder()
	h.HandlePlanAction(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans/"+plan.ID+"/export?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), plan.ID+".csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1+6)

	rec = httptest.NewRecorder()
	h.HandlePlanAction(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans/"+plan.ID+"/export?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePlanActionRouting(t *testing.T) {
	h, _ := newTestHandler(t)
	seedStops(t, h, testutil.TwoCities(5, 2))
	plan := createPlan(t, h, `{"drivers":1}`)

	tests := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/api/v1/plans/does-not-exist", http.StatusNotFound},
		{http.MethodGet, "/api/v1/plans/" + plan.ID + "/bogus", http.StatusNotFound},
		{http.MethodPut, "/api/v1/plans/" + plan.ID, http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/plans/" + plan.ID + "/move", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/v1/plans/" + plan.ID, http.StatusNoContent},
		{http.MethodDelete, "/api/v1/plans/" + plan.ID, http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.HandlePlanAction(rec, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.status, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestHandleListPlansValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, q := range []string{"limit=0", "limit=abc", "offset=-1"} {
		rec := httptest.NewRecorder()
		h.HandleListPlans(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestHandleAddressSearch(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleAddressSearch(rec, httptest.NewRequest(http.MethodGet, "/api/v1/address-search?address=12+Oak+St,+Lakewood", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var results []map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, "12 Oak St, Lakewood", results[0]["display_name"])

	rec = httptest.NewRecorder()
	h.HandleAddressSearch(rec, httptest.NewRequest(http.MethodGet, "/api/v1/address-search?address=ab", nil))
	assert.Equal(t, "[]\n", rec.Body.String())
}
