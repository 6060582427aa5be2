package testutil

import (
	"context"
	"strings"
	"sync"

	"delivery-planner/internal/geocoding"
	"delivery-planner/internal/models"
)

// MockGeocoder resolves addresses from a fixed table and records every call.
// Unknown addresses fail with ErrGeocodingFailed.
type MockGeocoder struct {
	mu        sync.Mutex
	Addresses map[string]models.Coordinates
	Calls     []string
}

func NewMockGeocoder() *MockGeocoder {
	return &MockGeocoder{Addresses: make(map[string]models.Coordinates)}
}

// Set registers coordinates for an address
func (m *MockGeocoder) Set(address string, c models.Coordinates) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Addresses[normalize(address)] = c
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (*geocoding.GeocodingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, address)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := m.Addresses[normalize(address)]
	if !ok {
		return nil, &geocoding.ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}
	return &geocoding.GeocodingResult{Coords: c, DisplayName: address}, nil
}

func (m *MockGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*geocoding.GeocodingResult, error) {
	return m.Geocode(ctx, address)
}

func (m *MockGeocoder) Search(ctx context.Context, query string, limit int) ([]geocoding.GeocodingResult, error) {
	res, err := m.Geocode(ctx, query)
	if err != nil {
		return []geocoding.GeocodingResult{}, nil
	}
	return []geocoding.GeocodingResult{*res}, nil
}

// CallCount returns how many lookups were made
func (m *MockGeocoder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
