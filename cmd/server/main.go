package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"delivery-planner/internal/config"
	"delivery-planner/internal/geocoding"
	"delivery-planner/internal/handlers"
	"delivery-planner/internal/server"
	"delivery-planner/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Printf("Initializing data store (%s)...", cfg.Store.Driver)
	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to initialize data store: %w", err)
	}
	if cfg.Server.Metrics {
		storage.ReportPoolMetrics(ctx, store, 15*time.Second)
	}

	geocoder := geocoding.NewNominatimGeocoder(cfg.Geocoding.BaseURL,
		time.Duration(cfg.Geocoding.IntervalMS)*time.Millisecond)

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		Metrics:      cfg.Server.Metrics,
	}, &handlers.Handler{
		DB:             store,
		Geocoder:       geocoder,
		Defaults:       cfg.Planner,
		GeocodeRetries: cfg.Geocoding.MaxRetries,
	})

	actualAddr, err := srv.Start()
	if err != nil {
		store.Close()
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Printf("Delivery planner listening on http://%s", actualAddr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	log.Printf("Received signal %v, starting graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
