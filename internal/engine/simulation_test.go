package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-industry/internal/builder"
	"github.com/talgya/mini-industry/internal/city"
	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/transport"
	"github.com/talgya/mini-industry/internal/world"
)

func testCatalog(t *testing.T) *descriptor.Catalog {
	t.Helper()
	c := descriptor.NewCatalog(nil)
	require.NoError(t, c.Goods.Add(economy.Goods{ID: "Coal"}))
	require.NoError(t, c.Add(&descriptor.Factory{
		Name:           "Mine",
		Size:           world.Size{W: 2, H: 2},
		Productivity:   16,
		Chance:         10,
		Climates:       world.AllClimates,
		ElectricBoost:  128,
		ElectricDemand: 32,
		Products:       []descriptor.Product{{Goods: "Coal", Capacity: 200, Factor: economy.FactorOne}},
	}))
	require.NoError(t, c.Add(&descriptor.Factory{
		Name:                "Plant",
		Size:                world.Size{W: 2, H: 2},
		Productivity:        8,
		Chance:              5,
		Climates:            world.AllClimates,
		ElectricityProducer: true,
		Supplies:            []descriptor.Supply{{Goods: "Coal", Capacity: 100, Consumption: economy.FactorOne}},
	}))
	return c
}

func testOptions() Options {
	return Options{
		Seed:      3,
		World:     world.SmallTestConfig(),
		Cities:    1,
		Towns:     1,
		Economy:   factory.DefaultSettings(),
		City:      city.DefaultConfig(),
		Transport: transport.DefaultConfig(),
		Builder:   builder.DefaultConfig(),
	}
}

func newTestSim(t *testing.T) *Simulation {
	t.Helper()
	return NewSimulation(world.NewMap(48, 48), testCatalog(t), nil, testOptions())
}

func buildPair(t *testing.T, s *Simulation) (mine, plant *factory.Unit) {
	t.Helper()
	s.Update(func(s *Simulation) {
		var err error
		mine, err = s.Factories.Build(s.Catalog.Get("Mine"), world.Coord{X: 10, Y: 10}, 0, 0)
		require.NoError(t, err)
		plant, err = s.Factories.Build(s.Catalog.Get("Plant"), world.Coord{X: 14, Y: 10}, 0, 0)
		require.NoError(t, err)
		require.NoError(t, s.Factories.Link(plant, mine))
		s.ensureStop(mine)
		s.ensureStop(plant)
	})
	return mine, plant
}

func TestTickShipsAndDelivers(t *testing.T) {
	s := newTestSim(t)
	_, plant := buildPair(t, s)
	e := NewEngine()
	s.Wire(e)

	e.RunTicks(64)

	assert.Positive(t, s.Stats.Shipments)
	assert.Positive(t, s.Stats.Delivered)
	assert.Zero(t, s.Stats.Lost)
	assert.Positive(t, plant.Input("Coal").Stat(0, economy.StatIn))
	assert.Equal(t, uint64(64), s.CurrentTick())
}

func TestPowerGridFeedsElectricBoost(t *testing.T) {
	s := newTestSim(t)
	mine, plant := buildPair(t, s)

	// Units start fully supplied; the unpowered grid drops the boost at once.
	s.Tick(1)
	assert.Positive(t, mine.ElectricBoost())
	s.Tick(2)
	assert.Positive(t, s.Stats.PowerDemand)
	assert.Zero(t, s.Stats.PowerSupply, "plant has no coal yet")
	assert.Zero(t, mine.ElectricBoost())

	plant.Deliver("Coal", economy.Units(100))
	for tick := uint64(3); tick < 7; tick++ {
		s.Tick(tick)
	}
	assert.Positive(t, s.Stats.PowerSupply)
	assert.Positive(t, mine.ElectricBoost())
	assert.LessOrEqual(t, mine.ElectricBoost(), int64(128))
}

func TestPopulateBuildsStops(t *testing.T) {
	s := newTestSim(t)

	built := s.Populate(2)

	require.Positive(t, built)
	assert.Equal(t, built, s.Stats.Factories)
	for _, u := range s.Factories.Units() {
		assert.NotEmpty(t, s.Network.StopsAt(u.Tiles()), u.Name())
	}
}

func TestAdoptRestoresSavedUnits(t *testing.T) {
	src := newTestSim(t)
	buildPair(t, src)
	var recs []factory.Record
	for _, u := range src.Factories.Units() {
		recs = append(recs, u.Record())
	}

	dst := newTestSim(t)
	var units []*factory.Unit
	for _, rec := range recs {
		u, warnings := factory.Restore(rec, dst.Catalog, dst.Settings)
		require.Empty(t, warnings)
		units = append(units, u)
	}
	dst.Adopt(units)

	require.Equal(t, 2, dst.Factories.Len())
	plant := dst.Factories.At(world.Coord{X: 14, Y: 10})
	require.NotNil(t, plant)
	assert.Equal(t, []world.Coord{{X: 10, Y: 10}}, plant.Suppliers())
	assert.Len(t, dst.Network.Stops(), 2)
}

func TestMetricsSnapshotCountsUnits(t *testing.T) {
	s := newTestSim(t)
	buildPair(t, s)
	s.Tick(1)

	snap := s.MetricsSnapshot()

	assert.Equal(t, uint64(1), snap.Tick)
	assert.Equal(t, map[string]int{"Mine": 1, "Plant": 1}, snap.ByDescriptor)
	assert.Equal(t, int64(16), snap.Stored["Coal"])
}

func TestMonthlyTickRefreshesStats(t *testing.T) {
	s := newTestSim(t)
	buildPair(t, s)
	e := NewEngine()
	s.Wire(e)

	e.RunTicks(TicksPerMonth)

	assert.Equal(t, 2, s.Stats.Factories)
	total := 0
	for _, n := range s.Stats.ByStatus {
		total += n
	}
	assert.Equal(t, 2, total)
}

func TestNewWorldPlacesCities(t *testing.T) {
	s := NewWorld(testCatalog(t), testOptions())

	assert.Equal(t, 32, s.Map.Width)
	assert.LessOrEqual(t, len(s.Cities.Cities()), 2)
	assert.Len(t, s.Builder.Anchors, len(s.Cities.Cities()))
	assert.NotEmpty(t, s.ID)
}

func TestRestoreShipmentsReturnsUnroutableCargo(t *testing.T) {
	s := newTestSim(t)
	mine, plant := buildPair(t, s)
	mine.Output("Coal").Quantity = 0
	plant.GoodsDeparted("Coal", economy.Units(20))

	s.RestoreShipments([]transport.Shipment{
		{Goods: "Coal", Amount: 20, From: mine.Pos(), To: plant.Pos()},
		{Goods: "Coal", Amount: 5, From: world.Coord{X: 40, Y: 40}, To: plant.Pos()},
	})

	assert.Equal(t, int64(20), s.Network.Stats().Waiting)
	assert.Equal(t, economy.Units(15), plant.Input("Coal").Transit)
	assert.Zero(t, mine.Output("Coal").Quantity, "unknown origin keeps nothing")
}
