package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/talgya/mini-industry/internal/builder"
	"github.com/talgya/mini-industry/internal/city"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/transport"
)

// SetDefaults registers a default for every key. Registered keys are also
// the ones AutomaticEnv can override.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sim.seed", 42)
	v.SetDefault("sim.catalog", "data/catalog.yaml")
	v.SetDefault("sim.width", 128)
	v.SetDefault("sim.height", 128)
	v.SetDefault("sim.cities", 3)
	v.SetDefault("sim.towns", 5)
	v.SetDefault("sim.villages", 8)
	v.SetDefault("sim.tick_interval", 250*time.Millisecond)
	v.SetDefault("sim.speed", 1)

	econ := factory.DefaultSettings()
	v.SetDefault("economy.accounting", econ.Accounting.String())
	v.SetDefault("economy.max_intransit_percentage", econ.MaxIntransitPercentage)
	v.SetDefault("economy.power_boost_max_delta", econ.PowerBoostMaxDelta)
	v.SetDefault("economy.arrival_slot_ms", econ.ArrivalSlotMs)
	v.SetDefault("economy.min_shipment_units", econ.MinShipmentUnits)
	v.SetDefault("economy.distribution_interval_ms", econ.DistributionIntervalMs)
	v.SetDefault("economy.inactive_after_ms", econ.InactiveAfterMs)
	v.SetDefault("economy.power_per_base", econ.PowerPerBase)

	b := builder.DefaultConfig()
	v.SetDefault("builder.attempts_per_input", b.AttemptsPerInput)
	v.SetDefault("builder.search_radius", b.SearchRadius)
	v.SetDefault("builder.max_radius", b.MaxRadius)
	v.SetDefault("builder.min_distance", b.MinDistance)
	v.SetDefault("builder.max_depth", b.MaxDepth)
	v.SetDefault("builder.initial_chains", b.InitialChains)

	tr := transport.DefaultConfig()
	v.SetDefault("transport.stop_capacity", tr.StopCapacity)
	v.SetDefault("transport.coverage_radius", tr.CoverageRadius)
	v.SetDefault("transport.max_route_distance", tr.MaxRouteDistance)
	v.SetDefault("transport.ms_per_tile", tr.MsPerTile)
	v.SetDefault("transport.pickup_interval_ms", tr.PickupIntervalMs)
	v.SetDefault("transport.vehicle_capacity", tr.VehicleCapacity)

	c := city.DefaultConfig()
	v.SetDefault("city.max_distance", c.MaxDistance)
	v.SetDefault("city.pax_per_thousand", c.PaxPerThousand)
	v.SetDefault("city.mail_per_thousand", c.MailPerThousand)
	v.SetDefault("city.growth_permille", c.GrowthPermille)

	v.SetDefault("persistence.db_path", "data/industry.db")
	v.SetDefault("persistence.snapshot_dir", "data/snapshots")
	v.SetDefault("persistence.save_every_months", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.interval", 5*time.Second)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.admin_key", "")
	v.SetDefault("api.rate_limit", 20.0)
	v.SetDefault("api.rate_burst", 40)
}

// Default returns the configuration used when no file or environment
// overrides anything.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("config defaults do not decode: " + err.Error())
	}
	return &cfg
}
