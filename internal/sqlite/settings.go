package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"delivery-planner/internal/models"
)

type settingsRepository struct {
	store *Store
}

func (r *settingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT depot_lat, depot_lng, defaults_json FROM settings WHERE id = 1`

	var s models.Settings
	var lat, lng sql.NullFloat64
	var defaults string

	err := r.store.db.QueryRowContext(ctx, query).Scan(&lat, &lng, &defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	if lat.Valid && lng.Valid {
		s.Depot = &models.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	if defaults != "" {
		if err := json.Unmarshal([]byte(defaults), &s.Defaults); err != nil {
			return nil, fmt.Errorf("failed to decode planner defaults: %w", err)
		}
	}

	return &s, nil
}

func (r *settingsRepository) Update(ctx context.Context, s *models.Settings) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var lat, lng *float64
	if s.Depot != nil {
		lat, lng = &s.Depot.Lat, &s.Depot.Lng
	}

	defaults, err := json.Marshal(s.Defaults)
	if err != nil {
		return fmt.Errorf("failed to encode planner defaults: %w", err)
	}

	query := `UPDATE settings SET depot_lat = ?, depot_lng = ?, defaults_json = ? WHERE id = 1`
	if _, err := r.store.db.ExecContext(ctx, query, lat, lng, string(defaults)); err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	return nil
}
