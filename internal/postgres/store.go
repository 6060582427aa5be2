package postgres

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"delivery-planner/internal/database"
)

const schemaVersion = 2

// Store is a PostgreSQL-backed data store implementing database.DataStore.
// It shares its table layout with the SQLite store.
type Store struct {
	pool *pgxpool.Pool

	stopRepo     database.StopRepository
	planRepo     database.PlanRepository
	settingsRepo database.SettingsRepository
}

// New opens a connection pool for dsn and makes sure the schema exists
func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.stopRepo = &stopRepository{pool: pool}
	store.planRepo = &planRepository{pool: pool}
	store.settingsRepo = &settingsRepository{pool: pool}

	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS stops (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION,
		lng DOUBLE PRECISION,
		days TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		depot_lat DOUBLE PRECISION,
		depot_lng DOUBLE PRECISION,
		defaults_json TEXT NOT NULL DEFAULT ''
	);
	INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING;

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		parent_id TEXT,
		day TEXT NOT NULL,
		drivers INTEGER NOT NULL,
		options_json TEXT NOT NULL,
		summary_json TEXT NOT NULL,
		excluded_json TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS plan_slots (
		plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		slot_kind TEXT NOT NULL,
		slot_index INTEGER NOT NULL,
		color TEXT NOT NULL,
		label TEXT NOT NULL,
		distance_miles DOUBLE PRECISION NOT NULL DEFAULT 0,
		stop_count INTEGER NOT NULL DEFAULT 0,
		minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		centroid_lat DOUBLE PRECISION NOT NULL DEFAULT 0,
		centroid_lng DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (plan_id, slot_kind, slot_index)
	);

	CREATE TABLE IF NOT EXISTS plan_routes (
		plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		slot_kind TEXT NOT NULL,
		slot_index INTEGER NOT NULL,
		position INTEGER NOT NULL,
		stop_id BIGINT NOT NULL,
		PRIMARY KEY (plan_id, slot_kind, slot_index, position)
	);

	CREATE INDEX IF NOT EXISTS idx_stops_name ON stops(name);
	CREATE INDEX IF NOT EXISTS idx_plans_created ON plans(created_at DESC);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var version int
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version == 0 {
		if _, err := s.pool.Exec(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, schemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		log.Printf("PostgreSQL schema initialized (version %d)", schemaVersion)
	}
	return nil
}

// Close releases pool resources
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Stops() database.StopRepository        { return s.stopRepo }
func (s *Store) Plans() database.PlanRepository        { return s.planRepo }
func (s *Store) Settings() database.SettingsRepository { return s.settingsRepo }

// Stat returns connection pool statistics
func (s *Store) Stat() *pgxpool.Stat {
	return s.pool.Stat()
}
