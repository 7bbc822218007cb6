package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/mini-industry/internal/persistence"
)

func newGenerateCmd() *cobra.Command {
	var seed int64
	var chains int
	var out string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and populate a world, print a summary and optionally write a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, done, err := setup()
			if err != nil {
				return err
			}
			defer done()

			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				seed = cfg.Sim.Seed
			}
			if !cmd.Flags().Changed("chains") {
				chains = cfg.Builder.InitialChains
			}

			sim, err := newWorld(cfg, cat, seed)
			if err != nil {
				return err
			}
			built := sim.Populate(chains)

			w := cmd.OutOrStdout()
			titleColor.Fprintf(w, "\nGenerated %dx%d world from seed %d\n", sim.Map.Width, sim.Map.Height, seed)
			sectionColor.Fprintln(w, "\nTerrain")
			printTerrain(w, sim.Map)
			printWorld(w, sim)

			if out != "" {
				if err := persistence.WriteSnapshot(out, persistence.Capture(sim)); err != nil {
					return fmt.Errorf("write snapshot: %w", err)
				}
				info, err := os.Stat(out)
				if err != nil {
					return err
				}
				successColor.Fprintf(w, "\n%d factories written to %s (%s)\n", built, out, humanize.Bytes(uint64(info.Size())))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "world seed (default from config)")
	cmd.Flags().IntVar(&chains, "chains", 0, "initial supply chains (default from config)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the generated world to this snapshot file")
	return cmd
}
