package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/talgya/mini-industry/internal/descriptor"
)

func newPackCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Compile the YAML descriptor catalog into a binary pak file",
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

			var buf bytes.Buffer
			if err := descriptor.WritePak(&buf, cat.All()); err != nil {
				return err
			}

			// Read the pak back so a record the binary format cannot carry
			// fails here rather than at load time.
			check := descriptor.NewCatalog(cat.Goods)
			n, err := descriptor.ReadPak(bytes.NewReader(buf.Bytes()), check)
			if err != nil {
				return fmt.Errorf("verify pak: %w", err)
			}
			if n != cat.Len() {
				return fmt.Errorf("verify pak: read %d of %d descriptors", n, cat.Len())
			}

			if out == "" {
				out = cfg.Sim.Catalog[:len(cfg.Sim.Catalog)-len(filepath.Ext(cfg.Sim.Catalog))] + ".pak"
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			table := tablewriter.NewTable(w,
				tablewriter.WithHeader([]string{"Descriptor", "Placement", "Size", "Productivity", "Inputs", "Outputs"}),
			)
			for _, f := range check.All() {
				table.Append([]string{
					f.Name,
					f.Placement.String(),
					fmt.Sprintf("%dx%d", f.Size.W, f.Size.H),
					fmt.Sprint(f.Productivity),
					fmt.Sprint(len(f.Supplies)),
					fmt.Sprint(len(f.Products)),
				})
			}
			_ = table.Render()
			successColor.Fprintf(w, "%d descriptors packed into %s (%s)\n", n, out, humanize.Bytes(uint64(buf.Len())))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "pak file to write (default: catalog path with .pak)")
	return cmd
}
