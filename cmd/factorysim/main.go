// Command factorysim runs, inspects and packages factory supply-chain worlds.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/mini-industry/internal/config"
	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/engine"
	"github.com/talgya/mini-industry/internal/persistence"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "factorysim",
		Short: "Factory production and supply-chain simulation",
		Long: `factorysim grows a tile world of factories linked into supply chains,
moves goods between them and reports on the economy.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml or ./configs/config.yaml)")

	rootCmd.AddCommand(newRunCmd(), newGenerateCmd(), newReportCmd(), newPackCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the process logger.
func setup() (*config.Config, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, closer, err := cfg.Logging.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, func() { closer.Close() }, nil
}

func loadCatalog(cfg *config.Config) (*descriptor.Catalog, error) {
	cat := descriptor.NewCatalog(nil)
	n, err := descriptor.LoadFile(cfg.Sim.Catalog, cat)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	slog.Info("descriptor catalog loaded", "path", cfg.Sim.Catalog, "factories", n, "digest", cat.Digest())
	return cat, nil
}

// newWorld regenerates the map for seed and wires an empty simulation.
func newWorld(cfg *config.Config, cat *descriptor.Catalog, seed int64) (*engine.Simulation, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	opts.Seed = seed
	return engine.NewWorld(cat, opts), nil
}

// restore rebuilds a saved world: the map is regenerated from the saved
// seed, then the snapshot file or database state is applied. It returns
// false when there is nothing to restore.
func restore(cfg *config.Config, cat *descriptor.Catalog, db *persistence.DB, snapshot string) (*engine.Simulation, bool, error) {
	if snapshot != "" {
		st, err := persistence.ReadSnapshot(snapshot)
		if err != nil {
			return nil, false, fmt.Errorf("read snapshot: %w", err)
		}
		sim, err := newWorld(cfg, cat, st.Meta.Seed)
		if err != nil {
			return nil, false, err
		}
		if err := persistence.Apply(sim, st); err != nil {
			return nil, false, err
		}
		return sim, true, nil
	}
	if db == nil || !db.HasWorldState() {
		return nil, false, nil
	}
	st, err := db.LoadState()
	if err != nil {
		return nil, false, err
	}
	sim, err := newWorld(cfg, cat, st.Meta.Seed)
	if err != nil {
		return nil, false, err
	}
	if err := persistence.Apply(sim, st); err != nil {
		return nil, false, err
	}
	return sim, true, nil
}
