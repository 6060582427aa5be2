package geocoding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGeocoder(url string) *nominatimGeocoder {
	return NewNominatimGeocoder(url, time.Millisecond).(*nominatimGeocoder)
}

func respond(w http.ResponseWriter, results ...nominatimResponse) {
	if results == nil {
		results = []nominatimResponse{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func TestNominatimGeocodeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/search")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "120 Main St, Lakewood", r.URL.Query().Get("q"))
		respond(w, nominatimResponse{Lat: "40.0821", Lon: "-74.2097", DisplayName: "120 Main St, Lakewood, NJ"})
	}))
	defer server.Close()

	result, err := newTestGeocoder(server.URL).Geocode(context.Background(), "120 Main St, Lakewood")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 40.0821, result.Coords.Lat)
	assert.Equal(t, -74.2097, result.Coords.Lng)
	assert.Equal(t, "120 Main St, Lakewood, NJ", result.DisplayName)
}

func TestNominatimGeocodeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w)
	}))
	defer server.Close()

	result, err := newTestGeocoder(server.URL).Geocode(context.Background(), "Nowhere")

	require.Error(t, err)
	assert.Nil(t, result)
	var geoErr *ErrGeocodingFailed
	require.ErrorAs(t, err, &geoErr)
	assert.Contains(t, geoErr.Reason, "no results found")
}

func TestNominatimGeocodeHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	_, err := newTestGeocoder(server.URL).Geocode(context.Background(), "Test Address")

	var geoErr *ErrGeocodingFailed
	require.ErrorAs(t, err, &geoErr)
	assert.Contains(t, geoErr.Reason, "HTTP 500")
}

func TestNominatimGeocodeInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	result, err := newTestGeocoder(server.URL).Geocode(context.Background(), "Test Address")

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestNominatimGeocodeInvalidLatLon(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, nominatimResponse{Lat: "invalid", Lon: "-74.0060", DisplayName: "Test"})
	}))
	defer server.Close()

	_, err := newTestGeocoder(server.URL).Geocode(context.Background(), "Test Address")

	var geoErr *ErrGeocodingFailed
	require.ErrorAs(t, err, &geoErr)
	assert.Contains(t, geoErr.Reason, "invalid latitude")
}

func TestNominatimSearchSkipsBadEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		respond(w,
			nominatimResponse{Lat: "40.1", Lon: "-74.2", DisplayName: "First"},
			nominatimResponse{Lat: "bad", Lon: "-74.2", DisplayName: "Broken"},
			nominatimResponse{Lat: "40.3", Lon: "-74.4", DisplayName: "Third"},
		)
	}))
	defer server.Close()

	results, err := newTestGeocoder(server.URL).Search(context.Background(), "Main St", 5)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "First", results[0].DisplayName)
	assert.Equal(t, "Third", results[1].DisplayName)
}

func TestNominatimGeocodeRateLimiting(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		respond(w, nominatimResponse{Lat: "40.7128", Lon: "-74.0060", DisplayName: "Test"})
	}))
	defer server.Close()

	geocoder := NewNominatimGeocoder(server.URL, 50*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := geocoder.Geocode(context.Background(), "Test")
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	// first request uses the burst token, the next two wait 50ms each
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond, "Rate limiting not working")
	assert.Equal(t, int32(3), requestCount.Load())
}

func TestNominatimGeocodeWithRetrySuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		respond(w, nominatimResponse{Lat: "40.7128", Lon: "-74.0060", DisplayName: "New York"})
	}))
	defer server.Close()

	result, err := newTestGeocoder(server.URL).GeocodeWithRetry(context.Background(), "New York", 3)

	require.NoError(t, err)
	assert.Equal(t, 40.7128, result.Coords.Lat)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestNominatimGeocodeWithRetryAllFail(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result, err := newTestGeocoder(server.URL).GeocodeWithRetry(context.Background(), "Test", 2)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestNominatimGeocodeContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		respond(w, nominatimResponse{Lat: "40.7128", Lon: "-74.0060", DisplayName: "Test"})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	result, err := newTestGeocoder(server.URL).Geocode(ctx, "Test")

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestNominatimGeocodeUserAgent(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		respond(w, nominatimResponse{Lat: "40.7128", Lon: "-74.0060", DisplayName: "Test"})
	}))
	defer server.Close()

	_, err := newTestGeocoder(server.URL).Geocode(context.Background(), "Test")

	require.NoError(t, err)
	assert.Equal(t, "DeliveryPlanner/1.0", userAgent)
}

func TestNewNominatimGeocoderDefaults(t *testing.T) {
	g := NewNominatimGeocoder("", 0).(*nominatimGeocoder)
	assert.Equal(t, DefaultBaseURL, g.baseURL)
	assert.NotNil(t, g.limiter)
}
