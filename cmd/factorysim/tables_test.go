package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-industry/internal/builder"
	"github.com/talgya/mini-industry/internal/city"
	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/engine"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/transport"
	"github.com/talgya/mini-industry/internal/world"
)

func TestPrintWorldReportsSections(t *testing.T) {
	cat := descriptor.NewCatalog(nil)
	_, err := descriptor.LoadFile("../../data/catalog.yaml", cat)
	require.NoError(t, err)

	sim := engine.NewWorld(cat, engine.Options{
		Seed:      7,
		World:     world.SmallTestConfig(),
		Cities:    1,
		Economy:   factory.DefaultSettings(),
		City:      city.DefaultConfig(),
		Transport: transport.DefaultConfig(),
		Builder:   builder.DefaultConfig(),
	})
	sim.Populate(2)

	var buf bytes.Buffer
	printWorld(&buf, sim)
	out := buf.String()

	assert.Contains(t, out, sim.ID)
	for _, section := range []string{"Factories", "Goods", "Cities", "Transport", "Power:"} {
		assert.Contains(t, out, section)
	}
	for _, u := range sim.Factories.Units() {
		assert.Contains(t, out, u.Name())
	}
}

func TestPrintTerrainCoversMap(t *testing.T) {
	m := world.Generate(world.SmallTestConfig())

	var buf bytes.Buffer
	printTerrain(&buf, m)

	for terrain := range world.TerrainCounts(m) {
		assert.Contains(t, buf.String(), world.TerrainName(terrain))
	}
}
