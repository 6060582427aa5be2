// Package storage selects and opens the configured data store.
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"delivery-planner/internal/config"
	"delivery-planner/internal/database"
	"delivery-planner/internal/metrics"
	"delivery-planner/internal/postgres"
	"delivery-planner/internal/sqlite"
)

// Open returns the store named by cfg.Driver
func Open(ctx context.Context, cfg config.StoreConfig) (database.DataStore, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.New(cfg.Path)
	case config.DriverPostgres:
		log.Printf("Connecting to PostgreSQL")
		return postgres.New(ctx, cfg.DSN, cfg.MaxConns)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// ReportPoolMetrics copies pool stats into the metrics gauges every interval
// until ctx is done. Stores without a connection pool are ignored.
func ReportPoolMetrics(ctx context.Context, store database.DataStore, interval time.Duration) {
	pg, ok := store.(*postgres.Store)
	if !ok {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(pg.Stat())
			}
		}
	}()
}
