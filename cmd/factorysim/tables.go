package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/engine"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/world"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	sectionColor = color.New(color.FgYellow)
	successColor = color.New(color.FgGreen, color.Bold)
)

func printTerrain(w io.Writer, m *world.Map) {
	counts := world.TerrainCounts(m)
	terrains := make([]world.Terrain, 0, len(counts))
	for t := range counts {
		terrains = append(terrains, t)
	}
	sort.Slice(terrains, func(i, j int) bool { return counts[terrains[i]] > counts[terrains[j]] })

	total := m.TileCount()
	table := tablewriter.NewTable(w, tablewriter.WithHeader([]string{"Terrain", "Tiles", "Share"}))
	for _, t := range terrains {
		n := counts[t]
		table.Append([]string{
			world.TerrainName(t),
			humanize.Comma(int64(n)),
			fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total)),
		})
	}
	_ = table.Render()
}

// printFactories groups units by descriptor with a count per status.
func printFactories(w io.Writer, units []*factory.Unit) {
	type row struct {
		count    int
		prod     int64
		byStatus map[factory.Status]int
	}
	rows := make(map[string]*row)
	for _, u := range units {
		r := rows[u.Name()]
		if r == nil {
			r = &row{byStatus: make(map[factory.Status]int)}
			rows[u.Name()] = r
		}
		r.count++
		r.prod += u.ProdBase()
		r.byStatus[u.Status()]++
	}
	names := make([]string, 0, len(rows))
	for name := range rows {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Descriptor", "Count", "Production", "Good", "Medium", "Bad", "Inactive"}),
	)
	for _, name := range names {
		r := rows[name]
		table.Append([]string{
			name,
			humanize.Comma(int64(r.count)),
			humanize.Comma(r.prod),
			fmt.Sprint(r.byStatus[factory.StatusGood]),
			fmt.Sprint(r.byStatus[factory.StatusMedium]),
			fmt.Sprint(r.byStatus[factory.StatusBad]),
			fmt.Sprint(r.byStatus[factory.StatusInactive]),
		})
	}
	_ = table.Render()
}

// printGoods totals stored output and waiting input per goods type.
func printGoods(w io.Writer, units []*factory.Unit) {
	stored := make(map[economy.GoodsID]int64)
	waiting := make(map[economy.GoodsID]int64)
	transit := make(map[economy.GoodsID]int64)
	for _, u := range units {
		for _, b := range u.Outputs() {
			stored[b.Goods] += economy.WholeUnits(b.Quantity)
		}
		for _, b := range u.Inputs() {
			waiting[b.Goods] += economy.WholeUnits(b.Quantity)
			transit[b.Goods] += economy.WholeUnits(b.Transit)
		}
	}
	seen := make(map[economy.GoodsID]bool)
	var goods []economy.GoodsID
	for _, m := range []map[economy.GoodsID]int64{stored, waiting, transit} {
		for g := range m {
			if !seen[g] {
				seen[g] = true
				goods = append(goods, g)
			}
		}
	}
	sort.Slice(goods, func(i, j int) bool { return goods[i] < goods[j] })

	table := tablewriter.NewTable(w, tablewriter.WithHeader([]string{"Goods", "Stored", "Input Stock", "In Transit"}))
	for _, g := range goods {
		table.Append([]string{
			string(g),
			humanize.Comma(stored[g]),
			humanize.Comma(waiting[g]),
			humanize.Comma(transit[g]),
		})
	}
	_ = table.Render()
}

func printCities(w io.Writer, sim *engine.Simulation) {
	cities := append(sim.Cities.Cities()[:0:0], sim.Cities.Cities()...)
	sort.Slice(cities, func(i, j int) bool { return cities[i].Population > cities[j].Population })

	table := tablewriter.NewTable(w, tablewriter.WithHeader([]string{"City", "Size", "Position", "Population", "Factories"}))
	for _, c := range cities {
		table.Append([]string{
			c.Name,
			c.Size.String(),
			c.Position.String(),
			humanize.Comma(int64(c.Population)),
			fmt.Sprint(len(c.Targets())),
		})
	}
	_ = table.Render()
}

// printWorld writes the full report of a simulation.
func printWorld(w io.Writer, sim *engine.Simulation) {
	sim.View(func(s *engine.Simulation) {
		titleColor.Fprintf(w, "\nWorld %s\n", s.ID)
		fmt.Fprintf(w, "Seed %d, %dx%d tiles, tick %s (%s), %s accounting\n",
			s.Seed, s.Map.Width, s.Map.Height,
			humanize.Comma(int64(s.LastTick)), engine.SimTime(s.LastTick), s.Settings.Accounting)

		sectionColor.Fprintln(w, "\nFactories")
		printFactories(w, s.Factories.Units())

		sectionColor.Fprintln(w, "\nGoods")
		printGoods(w, s.Factories.Units())

		sectionColor.Fprintln(w, "\nCities")
		printCities(w, s)

		st := s.Network.Stats()
		sectionColor.Fprintln(w, "\nTransport")
		fmt.Fprintf(w, "%s stops, %s units waiting, %s delivered, %s shipments total\n",
			humanize.Comma(int64(len(s.Network.Stops()))),
			humanize.Comma(st.Waiting),
			humanize.Comma(st.Delivered),
			humanize.Comma(s.Stats.Shipments))
		fmt.Fprintf(w, "Power: %s supplied of %s demanded\n",
			humanize.Comma(s.Stats.PowerSupply), humanize.Comma(s.Stats.PowerDemand))
	})
}
