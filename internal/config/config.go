// Package config loads run configuration from a YAML file, a .env file and
// FS_-prefixed environment variables, in increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/talgya/mini-industry/internal/builder"
	"github.com/talgya/mini-industry/internal/city"
	"github.com/talgya/mini-industry/internal/engine"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/transport"
	"github.com/talgya/mini-industry/internal/world"
)

// Config is the main configuration struct combining all sub-configs
type Config struct {
	Sim         SimConfig         `mapstructure:"sim"`
	Economy     EconomyConfig     `mapstructure:"economy"`
	Builder     builder.Config    `mapstructure:"builder"`
	Transport   transport.Config  `mapstructure:"transport"`
	City        city.Config       `mapstructure:"city"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	API         APIConfig         `mapstructure:"api"`
}

// SimConfig holds world generation and clock settings.
type SimConfig struct {
	// Seed drives terrain, city placement and every simulation RNG.
	Seed int64 `mapstructure:"seed"`

	// Catalog is the YAML file with goods and factory descriptors.
	Catalog string `mapstructure:"catalog" validate:"required"`

	Width  int `mapstructure:"width" validate:"min=16,max=4096"`
	Height int `mapstructure:"height" validate:"min=16,max=4096"`

	Cities   int `mapstructure:"cities" validate:"min=0"`
	Towns    int `mapstructure:"towns" validate:"min=0"`
	Villages int `mapstructure:"villages" validate:"min=0"`

	// TickInterval is the wall-clock time per tick at speed 1.
	TickInterval time.Duration `mapstructure:"tick_interval" validate:"min=0"`
	Speed        int           `mapstructure:"speed" validate:"min=1,max=100"`
}

// EconomyConfig holds the knobs shared by every production unit.
type EconomyConfig struct {
	// Accounting is fixed per save; a loaded world keeps its own.
	Accounting             string `mapstructure:"accounting" validate:"required,oneof=legacy classic jit2 modern"`
	MaxIntransitPercentage int64  `mapstructure:"max_intransit_percentage" validate:"min=0"`
	PowerBoostMaxDelta     int64  `mapstructure:"power_boost_max_delta" validate:"min=1"`
	ArrivalSlotMs          int64  `mapstructure:"arrival_slot_ms" validate:"min=1"`
	MinShipmentUnits       int64  `mapstructure:"min_shipment_units" validate:"min=1"`
	DistributionIntervalMs int64  `mapstructure:"distribution_interval_ms" validate:"min=1"`
	InactiveAfterMs        int64  `mapstructure:"inactive_after_ms" validate:"min=0"`
	PowerPerBase           int64  `mapstructure:"power_per_base" validate:"min=0"`
}

// Settings converts the section into unit settings.
func (e EconomyConfig) Settings() (factory.Settings, error) {
	acc, ok := factory.ParseAccounting(e.Accounting)
	if !ok {
		return factory.Settings{}, fmt.Errorf("unknown accounting mode %q", e.Accounting)
	}
	return factory.Settings{
		Accounting:             acc,
		MaxIntransitPercentage: e.MaxIntransitPercentage,
		PowerBoostMaxDelta:     e.PowerBoostMaxDelta,
		ArrivalSlotMs:          e.ArrivalSlotMs,
		MinShipmentUnits:       e.MinShipmentUnits,
		DistributionIntervalMs: e.DistributionIntervalMs,
		InactiveAfterMs:        e.InactiveAfterMs,
		PowerPerBase:           e.PowerPerBase,
	}, nil
}

// PersistenceConfig locates the save database and snapshot files.
type PersistenceConfig struct {
	DBPath      string `mapstructure:"db_path" validate:"required"`
	SnapshotDir string `mapstructure:"snapshot_dir"`
	// SaveEveryMonths is how often the running world is written to the database.
	SaveEveryMonths int `mapstructure:"save_every_months" validate:"min=1"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
	// AdminKey is the bearer token for POST endpoints. Empty disables them.
	AdminKey string `mapstructure:"admin_key"`
	// RateLimit is the sustained requests per second allowed per client.
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`
	RateBurst int     `mapstructure:"rate_burst" validate:"min=1"`
}

// MetricsConfig holds metrics collection and exposure configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Interval is how often the collector polls the simulation.
	Interval time.Duration `mapstructure:"interval" validate:"required_if=Enabled true"`
	Path     string        `mapstructure:"path"`
}

// Options converts the simulation sections into engine options.
func (c *Config) Options() (engine.Options, error) {
	settings, err := c.Economy.Settings()
	if err != nil {
		return engine.Options{}, err
	}
	gen := world.DefaultGenConfig()
	gen.Width, gen.Height = c.Sim.Width, c.Sim.Height
	return engine.Options{
		Seed:      c.Sim.Seed,
		World:     gen,
		Cities:    c.Sim.Cities,
		Towns:     c.Sim.Towns,
		Villages:  c.Sim.Villages,
		Economy:   settings,
		City:      c.City,
		Transport: c.Transport,
		Builder:   c.Builder,
	}, nil
}

// LoadConfig loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml)
// 3. Defaults (lowest priority)
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("FS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
