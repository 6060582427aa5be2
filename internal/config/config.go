package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"delivery-planner/internal/database"
	"delivery-planner/internal/models"
	"delivery-planner/internal/routing"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig       `mapstructure:"server"`
	Store     StoreConfig        `mapstructure:"store"`
	Geocoding GeocodingConfig    `mapstructure:"geocoding"`
	Planner   models.PlanOptions `mapstructure:"planner"`
}

type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	Metrics      bool   `mapstructure:"metrics"`
}

// StoreConfig selects the persistence backend. Driver is "sqlite" or "postgres".
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type GeocodingConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	IntervalMS int    `mapstructure:"interval_ms"`
	MaxRetries int    `mapstructure:"max_retries"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Load reads configuration from an optional .env file, an optional YAML
// config file and PLANNER_* environment variables, in increasing precedence.
// An empty path searches ./planner.yaml and ./configs/planner.yaml.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[CONFIG] Ignoring unreadable .env: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("planner")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		_ = v.ReadInConfig() // OK if missing
	}

	// PLANNER_STORE_DRIVER -> store.driver
	v.SetEnvPrefix("PLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Store.Driver == DriverSQLite && cfg.Store.Path == "" {
		p, err := database.GetDefaultDBPath()
		if err != nil {
			return nil, err
		}
		cfg.Store.Path = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Printf("[CONFIG] Loaded %s", used)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.metrics", true)

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.path", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.max_conns", 10)

	v.SetDefault("geocoding.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoding.interval_ms", 1000)
	v.SetDefault("geocoding.max_retries", 3)

	d := routing.DefaultOptions()
	v.SetDefault("planner.drivers", d.Drivers)
	v.SetDefault("planner.day", string(d.Day))
	v.SetDefault("planner.active_only", d.ActiveOnly)
	v.SetDefault("planner.strategy", string(d.Strategy))
	v.SetDefault("planner.minutes_per_mile", d.MinutesPerMile)
	v.SetDefault("planner.minutes_per_stop", d.MinutesPerStop)
	v.SetDefault("planner.rotate_to_depot", d.RotateToDepot)
	v.SetDefault("planner.target_spread_minutes", d.TargetSpreadMinutes)
	v.SetDefault("planner.max_passes", d.MaxPasses)
	v.SetDefault("planner.seed_count", d.SeedCount)
	v.SetDefault("planner.soft_cap_factor", d.SoftCapFactor)
	v.SetDefault("planner.city_slack_minutes", d.CitySlackMinutes)
	v.SetDefault("planner.outlier_distance_factor", d.OutlierDistanceFactor)
	v.SetDefault("planner.parallel", d.Parallel)
}

// Validate checks that required configuration fields are present and sane
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, "store.dsn is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	if c.Geocoding.IntervalMS < 0 {
		errs = append(errs, "geocoding.interval_ms must not be negative")
	}
	if c.Geocoding.MaxRetries < 1 {
		errs = append(errs, "geocoding.max_retries must be at least 1")
	}

	if _, err := routing.NewPlanner(c.Planner); err != nil {
		errs = append(errs, "planner: "+err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
