package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"delivery-planner/internal/models"
)

type settingsRepository struct {
	pool *pgxpool.Pool
}

func (r *settingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var s models.Settings
	var lat, lng *float64
	var defaults string

	err := r.pool.QueryRow(ctx, `SELECT depot_lat, depot_lng, defaults_json FROM settings WHERE id = 1`).
		Scan(&lat, &lng, &defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	if lat != nil && lng != nil {
		s.Depot = &models.Coordinates{Lat: *lat, Lng: *lng}
	}
	if defaults != "" {
		if err := json.Unmarshal([]byte(defaults), &s.Defaults); err != nil {
			return nil, fmt.Errorf("failed to decode planner defaults: %w", err)
		}
	}
	return &s, nil
}

func (r *settingsRepository) Update(ctx context.Context, s *models.Settings) error {
	var lat, lng *float64
	if s.Depot != nil {
		lat, lng = &s.Depot.Lat, &s.Depot.Lng
	}

	defaults, err := json.Marshal(s.Defaults)
	if err != nil {
		return fmt.Errorf("failed to encode planner defaults: %w", err)
	}

	_, err = r.pool.Exec(ctx, `UPDATE settings SET depot_lat = $1, depot_lng = $2, defaults_json = $3 WHERE id = 1`,
		lat, lng, string(defaults))
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}
