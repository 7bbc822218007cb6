package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/world"
)

func desc(name string, prod, chance int, in, out economy.GoodsID) *descriptor.Factory {
	d := &descriptor.Factory{
		Name:         name,
		Size:         world.Size{W: 2, H: 2},
		Productivity: prod,
		Chance:       chance,
		Climates:     world.AllClimates,
	}
	if in != "" {
		d.Supplies = []descriptor.Supply{{Goods: in, Capacity: 100, Consumption: economy.FactorOne}}
	}
	if out != "" {
		d.Products = []descriptor.Product{{Goods: out, Capacity: 100, Factor: economy.FactorOne}}
	}
	return d
}

func testCatalog(t *testing.T) *descriptor.Catalog {
	t.Helper()
	c := descriptor.NewCatalog(nil)
	for _, g := range []economy.GoodsID{"Coal", "Stone", "Grain", "Flour", "Oil", "Goods"} {
		require.NoError(t, c.Goods.Add(economy.Goods{ID: g}))
	}
	rig := desc("Rig", 16, 0, "", "Oil")
	rig.Placement = descriptor.PlaceWater
	shop := desc("Shop", 8, 0, "Goods", "")
	shop.Placement = descriptor.PlaceCity
	for _, d := range []*descriptor.Factory{
		desc("Mine", 16, 10, "", "Coal"),
		desc("Quarry", 16, 50, "", "Stone"),
		desc("Plant", 8, 5, "Coal", ""),
		desc("Farm", 16, 10, "", "Grain"),
		desc("Mill", 12, 10, "Grain", "Flour"),
		desc("Bakery", 8, 5, "Flour", ""),
		rig,
		shop,
	} {
		require.NoError(t, c.Add(d))
	}
	return c
}

func setup(t *testing.T, cfg Config) (*Builder, *factory.Registry) {
	t.Helper()
	s := factory.DefaultSettings()
	reg := factory.NewRegistry(world.NewMap(64, 64), testCatalog(t), &s, 1)
	return New(reg, cfg, 7), reg
}

func place(t *testing.T, reg *factory.Registry, name string, pos world.Coord) *factory.Unit {
	t.Helper()
	u, err := reg.Build(reg.Catalog.Get(name), pos, 0, 0)
	require.NoError(t, err)
	return u
}

func requireSymmetric(t *testing.T, reg *factory.Registry) {
	t.Helper()
	for _, u := range reg.Units() {
		for _, pos := range u.Suppliers() {
			s := reg.At(pos)
			require.NotNil(t, s)
			assert.Contains(t, s.Consumers(), u.Pos())
		}
		for _, pos := range u.Consumers() {
			c := reg.At(pos)
			require.NotNil(t, c)
			assert.Contains(t, c.Suppliers(), u.Pos())
		}
	}
}

func TestResolveBuildsOneProducerWhenNoneExist(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	plant := place(t, reg, "Plant", world.Coord{X: 20, Y: 20})

	built := b.Resolve(Request{Consumer: plant.Pos(), Goods: "Coal", Parent: world.NoSite, Depth: 1})

	assert.Equal(t, 1, built)
	require.Equal(t, 2, reg.Len())
	require.Len(t, plant.Suppliers(), 1)
	mine := reg.At(plant.Suppliers()[0])
	require.NotNil(t, mine)
	assert.Equal(t, "Mine", mine.Name())
	assert.Equal(t, []world.Coord{plant.Pos()}, mine.Consumers())
	assert.Empty(t, b.Pending())
	requireSymmetric(t, reg)
}

func TestResolveReusesProducerInRange(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	plant := place(t, reg, "Plant", world.Coord{X: 20, Y: 20})
	mine := place(t, reg, "Mine", world.Coord{X: 26, Y: 20})

	built := b.Resolve(Request{Consumer: plant.Pos(), Goods: "Coal", Parent: world.NoSite, Depth: 1})

	assert.Zero(t, built)
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []world.Coord{mine.Pos()}, plant.Suppliers())
	assert.Equal(t, int64(1), b.Stats().Linked)
}

func TestResolveSharesSpareBetweenConsumers(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	plant := place(t, reg, "Plant", world.Coord{X: 20, Y: 20})
	mine := place(t, reg, "Mine", world.Coord{X: 26, Y: 20})
	for _, pos := range []world.Coord{{X: 50, Y: 50}, {X: 50, Y: 40}} {
		require.NoError(t, reg.Link(place(t, reg, "Plant", pos), mine))
	}

	// 16 shared three ways leaves 5 of the 8 needed.
	built := b.Resolve(Request{Consumer: plant.Pos(), Goods: "Coal", Parent: world.NoSite, Depth: 1})

	assert.Equal(t, 1, built)
	assert.Len(t, plant.Suppliers(), 2)
	assert.Contains(t, plant.Suppliers(), mine.Pos())
	requireSymmetric(t, reg)
}

func TestResolveAlreadySatisfied(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	plant := place(t, reg, "Plant", world.Coord{X: 20, Y: 20})
	mine := place(t, reg, "Mine", world.Coord{X: 40, Y: 40})
	require.NoError(t, reg.Link(plant, mine))

	assert.Zero(t, b.Resolve(Request{Consumer: plant.Pos(), Goods: "Coal", Depth: 1}))
	assert.Equal(t, 2, reg.Len())
}

func TestResolveQueuesNewProducerInputs(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	bakery := place(t, reg, "Bakery", world.Coord{X: 20, Y: 20})

	require.Equal(t, 1, b.Resolve(Request{Consumer: bakery.Pos(), Goods: "Flour", Parent: world.NoSite, Depth: 1}))

	mill := reg.At(bakery.Suppliers()[0])
	require.NotNil(t, mill)
	assert.Equal(t, []Request{{Consumer: mill.Pos(), Goods: "Grain", Parent: bakery.Pos(), Depth: 2}}, b.Pending())
}

func TestResolveCountsProducerLeftUnlinked(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	plant := place(t, reg, "Plant", world.Coord{X: 20, Y: 20})
	// The consumer is demolished while its first producer goes up.
	b.OnBuild = func(u *factory.Unit) { reg.Remove(plant) }

	built := b.Resolve(Request{Consumer: plant.Pos(), Goods: "Coal", Parent: world.NoSite, Depth: 1})

	assert.Equal(t, 1, built)
	assert.Equal(t, int64(built), b.Stats().Built)
	assert.Zero(t, b.Stats().Linked)
	require.Equal(t, 1, reg.Len())
	mine := reg.Units()[0]
	assert.Equal(t, "Mine", mine.Name())
	assert.Empty(t, mine.Consumers())
	assert.Empty(t, b.Pending())
}

func TestResolveMissingConsumerIsAbandoned(t *testing.T) {
	b, _ := setup(t, DefaultConfig())
	assert.Zero(t, b.Resolve(Request{Consumer: world.Coord{X: 3, Y: 3}, Goods: "Coal"}))
	assert.Equal(t, int64(1), b.Stats().Abandoned)
}

func TestResolveUnacceptedGoodsPanics(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	plant := place(t, reg, "Plant", world.Coord{X: 20, Y: 20})
	assert.Panics(t, func() {
		b.Resolve(Request{Consumer: plant.Pos(), Goods: "Stone"})
	})
}

func TestBuildWholeChain(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	var seen []string
	b.OnBuild = func(u *factory.Unit) { seen = append(seen, u.Name()) }

	built := b.Build(reg.Catalog.Get("Bakery"), world.Coord{X: 32, Y: 32})

	assert.Equal(t, 3, built)
	assert.Equal(t, []string{"Bakery", "Mill", "Farm"}, seen)
	bakery := reg.At(world.Coord{X: 32, Y: 32})
	require.NotNil(t, bakery)
	mill := reg.At(bakery.Suppliers()[0])
	require.NotNil(t, mill)
	require.Len(t, mill.Suppliers(), 1)
	assert.Equal(t, "Farm", reg.At(mill.Suppliers()[0]).Name())
	requireSymmetric(t, reg)
}

func TestBuildStopsAtMaxDepth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 1
	b, reg := setup(t, cfg)

	assert.Equal(t, 2, b.Build(reg.Catalog.Get("Bakery"), world.Coord{X: 32, Y: 32}))
	assert.Empty(t, b.Pending())
}

func TestFindSiteWithoutValidTile(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	for i := range reg.Map.Tiles {
		reg.Map.Tiles[i].Terrain = world.TerrainOcean
	}

	site := b.FindSite(reg.Catalog.Get("Mine"), world.Coord{X: 32, Y: 32}, 5)

	assert.Equal(t, NoSite, site)
	assert.False(t, site.Found())
	assert.Zero(t, b.Build(reg.Catalog.Get("Plant"), world.Coord{X: 32, Y: 32}))
	assert.Equal(t, int64(1), b.Stats().NoSite)
}

func TestFindSiteOnWater(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	for i := range reg.Map.Tiles {
		if reg.Map.Tiles[i].Coord.X >= 40 {
			reg.Map.Tiles[i].Terrain = world.TerrainOcean
		}
	}
	rig := reg.Catalog.Get("Rig")

	site := b.FindSite(rig, world.Coord{X: 35, Y: 10}, 10)

	require.True(t, site.Found())
	assert.GreaterOrEqual(t, site.Pos.X, 40)
	assert.Equal(t, world.TerrainOcean, reg.Map.Get(site.Pos).Terrain)
	assert.False(t, b.FindSite(rig, world.Coord{X: 10, Y: 10}, 10).Found())
}

func TestFindSiteNextToRoad(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	shop := reg.Catalog.Get("Shop")
	require.False(t, b.FindSite(shop, world.Coord{X: 20, Y: 20}, 5).Found())

	for x := 0; x < reg.Map.Width; x++ {
		reg.Map.Get(world.Coord{X: x, Y: 24}).Road = true
	}
	site := b.FindSite(shop, world.Coord{X: 20, Y: 20}, 5)

	require.True(t, site.Found())
	assert.Equal(t, 22, site.Pos.Y, "footprint ends right above the road")
}

func TestFindSiteKeepsSameTypeApart(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	place(t, reg, "Mine", world.Coord{X: 10, Y: 10})

	site := b.FindSite(reg.Catalog.Get("Mine"), world.Coord{X: 10, Y: 10}, 12)

	require.True(t, site.Found())
	assert.Greater(t, world.Distance(site.Pos, world.Coord{X: 10, Y: 10}), DefaultConfig().MinDistance)
}

func TestPopulateBuildsLinkedChains(t *testing.T) {
	b, reg := setup(t, DefaultConfig())

	built := b.Populate(3)

	assert.Positive(t, built)
	assert.Equal(t, built, reg.Len())
	assert.Equal(t, int64(built), b.Stats().Built)
	requireSymmetric(t, reg)
	for _, u := range reg.Units() {
		if u.Descriptor().IsConsumer() {
			assert.NotEmpty(t, u.Suppliers(), u.Name())
		}
	}
}

func TestPickWeightedSkipsZeroChance(t *testing.T) {
	b, reg := setup(t, DefaultConfig())
	ds := []*descriptor.Factory{reg.Catalog.Get("Rig"), reg.Catalog.Get("Mine")}
	for i := 0; i < 20; i++ {
		assert.Equal(t, "Mine", pickWeighted(b.rng, ds).Name)
	}
	assert.Nil(t, pickWeighted(b.rng, ds[:1]))
}
