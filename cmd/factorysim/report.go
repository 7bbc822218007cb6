package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/mini-industry/internal/persistence"
)

func newReportCmd() *cobra.Command {
	var snapshot string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the factories, goods and cities of a saved world",
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

			var db *persistence.DB
			if snapshot == "" {
				if _, err := os.Stat(cfg.Persistence.DBPath); err != nil {
					return errors.New("no saved world: run the simulation first or pass --snapshot")
				}
				if db, err = persistence.Open(cfg.Persistence.DBPath); err != nil {
					return err
				}
				defer db.Close()
			}

			sim, ok, err := restore(cfg, cat, db, snapshot)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("database holds no saved world")
			}
			printWorld(cmd.OutOrStdout(), sim)
			return nil
		},
	}
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "report on a snapshot file instead of the database")
	return cmd
}
