// Command plan builds a delivery plan from the configured store or a stop
// file and writes the driver manifest to stdout or a file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"delivery-planner/internal/config"
	"delivery-planner/internal/database"
	"delivery-planner/internal/export"
	"delivery-planner/internal/geocoding"
	"delivery-planner/internal/metrics"
	"delivery-planner/internal/models"
	"delivery-planner/internal/routing"
	"delivery-planner/internal/storage"
)

type flags struct {
	config   string
	stops    string
	out      string
	format   string
	drivers  int
	day      string
	strategy string
	save     bool
	geocode  bool
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "path to a YAML config file")
	flag.StringVar(&f.stops, "stops", "", "read stops from a .json, .yaml or .csv file instead of the store")
	flag.StringVar(&f.out, "out", "", "write the manifest here (default stdout); the extension picks the format")
	flag.StringVar(&f.format, "format", "", "manifest format: json, yaml or csv")
	flag.IntVar(&f.drivers, "drivers", 0, "number of drivers (overrides config)")
	flag.StringVar(&f.day, "day", "", "schedule day: mon..sun or all (overrides config)")
	flag.StringVar(&f.strategy, "strategy", "", "partition strategy (overrides config)")
	flag.BoolVar(&f.save, "save", false, "save the plan to the store")
	flag.BoolVar(&f.geocode, "geocode", false, "geocode stored stops missing coordinates before planning")
	flag.Parse()

	if err := run(context.Background(), f); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(ctx context.Context, f flags) error {
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}

	opts, err := applyOverrides(cfg.Planner, f)
	if err != nil {
		return err
	}

	var store database.DataStore
	if f.stops == "" || f.save || f.geocode {
		store, err = storage.Open(ctx, cfg.Store)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()
	}

	if f.geocode {
		g := geocoding.NewNominatimGeocoder(cfg.Geocoding.BaseURL, time.Duration(cfg.Geocoding.IntervalMS)*time.Millisecond)
		report, err := geocoding.Backfill(ctx, store.Stops(), g, cfg.Geocoding.MaxRetries)
		if err != nil {
			return fmt.Errorf("geocode backfill: %w", err)
		}
		log.Printf("Geocoded %d of %d stops (%d failed)", report.Resolved, report.Attempted, len(report.Failed))
	}

	stops, err := loadStops(ctx, f.stops, store)
	if err != nil {
		return err
	}

	if opts.Depot == nil && store != nil {
		if settings, err := store.Settings().Get(ctx); err == nil && settings.Depot != nil {
			opts.Depot = settings.Depot
		}
	}

	planner, err := routing.NewPlanner(opts)
	if err != nil {
		return err
	}
	start := time.Now()
	result, err := planner.Plan(stops)
	if err != nil {
		metrics.ObservePlan(opts.Strategy, nil, time.Since(start))
		return err
	}
	metrics.ObservePlan(opts.Strategy, &result.Summary, time.Since(start))

	plan := &models.SavedPlan{
		ID:        uuid.NewString(),
		Day:       planner.Options().Day,
		Options:   planner.Options(),
		Result:    *result,
		CreatedAt: time.Now().UTC(),
	}
	if f.save {
		if err := store.Plans().Save(ctx, plan); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
		log.Printf("Saved plan %s", plan.ID)
	}

	return writeManifest(f, plan, stops)
}

func applyOverrides(opts models.PlanOptions, f flags) (models.PlanOptions, error) {
	if f.drivers != 0 {
		opts.Drivers = f.drivers
	}
	if f.day != "" {
		day, err := models.ParseWeekday(f.day)
		if err != nil {
			return opts, err
		}
		opts.Day = day
	}
	if f.strategy != "" {
		s, err := models.ParseStrategy(f.strategy)
		if err != nil {
			return opts, err
		}
		opts.Strategy = s
	}
	return opts, nil
}

func loadStops(ctx context.Context, path string, store database.DataStore) ([]models.Stop, error) {
	if path == "" {
		return store.Stops().List(ctx, "")
	}
	format, err := export.ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return export.ReadStops(file, format)
}

func writeManifest(f flags, plan *models.SavedPlan, stops []models.Stop) error {
	name := f.format
	if name == "" && f.out != "" {
		name = filepath.Ext(f.out)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if f.out != "" {
		file, err := os.Create(f.out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	return export.Write(w, format, export.BuildManifest(plan, stops))
}
