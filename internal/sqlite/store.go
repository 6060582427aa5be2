package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"delivery-planner/internal/database"

	_ "modernc.org/sqlite"
)

const (
	DefaultDBFileName = "data.db"
	schemaVersion     = 2
)

// Store is a SQLite-based data store implementing database.DataStore
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	stopRepo     database.StopRepository
	planRepo     database.PlanRepository
	settingsRepo database.SettingsRepository
}

// New creates a new SQLite store at the specified path.
// ":memory:" opens a private in-memory database.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Printf("Opening SQLite database at: %s", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.stopRepo = &stopRepository{store: store}
	store.planRepo = &planRepository{store: store}
	store.settingsRepo = &settingsRepository{store: store}

	return store, nil
}

// GetDBPath returns the current database file path
func (s *Store) GetDBPath() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist, create everything
		return s.createSchema()
	}

	if version < schemaVersion {
		if err := s.runMigrations(version); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) createSchema() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (2);

	-- Stops
	CREATE TABLE IF NOT EXISTS stops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		lat REAL,
		lng REAL,
		days TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Settings (single row table)
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		depot_lat REAL,
		depot_lng REAL,
		defaults_json TEXT NOT NULL DEFAULT ''
	);
	INSERT OR IGNORE INTO settings (id) VALUES (1);

	-- Saved plans
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		parent_id TEXT,
		day TEXT NOT NULL,
		drivers INTEGER NOT NULL,
		options_json TEXT NOT NULL,
		summary_json TEXT NOT NULL,
		excluded_json TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	-- One row per route (active slots and the outlier bucket)
	CREATE TABLE IF NOT EXISTS plan_slots (
		plan_id TEXT NOT NULL,
		slot_kind TEXT NOT NULL,
		slot_index INTEGER NOT NULL,
		color TEXT NOT NULL,
		label TEXT NOT NULL,
		distance_miles REAL NOT NULL DEFAULT 0,
		stop_count INTEGER NOT NULL DEFAULT 0,
		minutes REAL NOT NULL DEFAULT 0,
		centroid_lat REAL NOT NULL DEFAULT 0,
		centroid_lng REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (plan_id, slot_kind, slot_index),
		FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE
	);

	-- Ordered stops per route
	CREATE TABLE IF NOT EXISTS plan_routes (
		plan_id TEXT NOT NULL,
		slot_kind TEXT NOT NULL,
		slot_index INTEGER NOT NULL,
		position INTEGER NOT NULL,
		stop_id INTEGER NOT NULL,
		PRIMARY KEY (plan_id, slot_kind, slot_index, position),
		FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_stops_name ON stops(name);
	CREATE INDEX IF NOT EXISTS idx_plans_created ON plans(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("SQLite schema initialized (version %d)", schemaVersion)
	return nil
}

func (s *Store) runMigrations(fromVersion int) error {
	if fromVersion < 2 {
		if _, err := s.db.Exec("ALTER TABLE plans ADD COLUMN parent_id TEXT"); err != nil {
			return fmt.Errorf("failed to migrate to version 2: %w", err)
		}
	}

	_, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		// Checkpoint WAL before closing
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Repository accessors
func (s *Store) Stops() database.StopRepository        { return s.stopRepo }
func (s *Store) Plans() database.PlanRepository        { return s.planRepo }
func (s *Store) Settings() database.SettingsRepository { return s.settingsRepo }
