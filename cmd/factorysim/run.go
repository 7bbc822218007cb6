package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/talgya/mini-industry/internal/api"
	"github.com/talgya/mini-industry/internal/engine"
	"github.com/talgya/mini-industry/internal/metrics"
	"github.com/talgya/mini-industry/internal/persistence"
)

func newRunCmd() *cobra.Command {
	var ticks uint64
	var snapshot string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation, resuming the saved world if there is one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSim(ticks, snapshot)
		},
	}
	cmd.Flags().Uint64Var(&ticks, "ticks", 0, "advance this many ticks as fast as possible, save and exit")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "resume from a snapshot file instead of the database")
	return cmd
}

func runSim(ticks uint64, snapshot string) error {
	cfg, done, err := setup()
	if err != nil {
		return err
	}
	defer done()

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.Persistence.DBPath), 0o755); err != nil {
		return err
	}
	db, err := persistence.Open(cfg.Persistence.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Persistence.DBPath)

	// ── Load or Generate World State ─────────────────────────────────
	sim, resumed, err := restore(cfg, cat, db, snapshot)
	if err != nil {
		return err
	}
	if resumed {
		slog.Info("world state restored",
			"world", sim.ID,
			"factories", sim.Factories.Len(),
			"tick", sim.LastTick,
			"sim_time", engine.SimTime(sim.LastTick),
		)
	} else {
		slog.Info("no saved state found, generating new world...")
		if sim, err = newWorld(cfg, cat, cfg.Sim.Seed); err != nil {
			return err
		}
		built := sim.Populate(cfg.Builder.InitialChains)
		slog.Info("world ready", "factories", built, "cities", len(sim.Cities.Cities()))
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Tick = sim.LastTick
	eng.Interval = cfg.Sim.TickInterval
	eng.Speed = float64(cfg.Sim.Speed)
	sim.Wire(eng)

	months := 0
	eng.OnMonth = func(tick uint64) {
		sim.TickMonth(tick)
		months++
		if months%cfg.Persistence.SaveEveryMonths != 0 {
			return
		}
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("monthly save failed", "error", err)
		}
	}
	if cfg.Persistence.SnapshotDir != "" {
		eng.OnYear = func(tick uint64) {
			path := filepath.Join(cfg.Persistence.SnapshotDir, fmt.Sprintf("%d.snap.zst", tick))
			if err := persistence.WriteSnapshot(path, persistence.Capture(sim)); err != nil {
				slog.Error("yearly snapshot failed", "error", err)
				return
			}
			slog.Info("snapshot written", "path", path)
		}
	}

	if ticks > 0 {
		start := time.Now()
		eng.RunTicks(ticks)
		slog.Info("ticks complete", "ticks", ticks, "elapsed", time.Since(start), "sim_time", engine.SimTime(eng.Tick))
		return db.SaveWorldState(sim)
	}

	// ── Metrics & API ─────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		collector := metrics.NewCollector()
		if err := collector.Register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		collector.Start(ctx, sim, cfg.Metrics.Interval)
		defer collector.Stop()
		gatherer = reg
	}

	var server *api.Server
	if cfg.API.Enabled {
		if cfg.API.AdminKey == "" {
			slog.Warn("FS_API_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		server = &api.Server{
			Sim:         sim,
			Eng:         eng,
			DB:          db,
			Addr:        cfg.API.Addr,
			AdminKey:    cfg.API.AdminKey,
			Gatherer:    gatherer,
			MetricsPath: cfg.Metrics.Path,
			SnapshotDir: cfg.Persistence.SnapshotDir,
			Limiter:     api.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateBurst),
		}
		server.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\n%d factories across %d cities on a %dx%d map.\n",
		sim.Factories.Len(), len(sim.Cities.Cities()), sim.Map.Width, sim.Map.Height)
	if server != nil {
		fmt.Printf("API: http://localhost%s/api/v1/status\n", cfg.API.Addr)
	}
	if resumed {
		fmt.Printf("Resuming from tick %d (%s)\n", sim.LastTick, engine.SimTime(sim.LastTick))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	if server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("API shutdown", "error", err)
		}
	}

	slog.Info("final save...")
	if err := db.SaveWorldState(sim); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	fmt.Println("Simulation stopped. World state saved.")
	return nil
}
