package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-industry/internal/builder"
	"github.com/talgya/mini-industry/internal/city"
	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/engine"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/transport"
	"github.com/talgya/mini-industry/internal/world"
)

func testCatalog(t *testing.T) *descriptor.Catalog {
	t.Helper()
	c := descriptor.NewCatalog(nil)
	require.NoError(t, c.Goods.Add(economy.Goods{ID: "Coal"}))
	require.NoError(t, c.Goods.Add(economy.Goods{ID: "Grain"}))
	require.NoError(t, c.Add(&descriptor.Factory{
		Name:         "Mine",
		Size:         world.Size{W: 2, H: 2},
		Productivity: 16,
		Chance:       10,
		Climates:     world.AllClimates,
		Products:     []descriptor.Product{{Goods: "Coal", Capacity: 200, Factor: economy.FactorOne}},
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
	require.NoError(t, c.Add(&descriptor.Factory{
		Name:         "Farm",
		Size:         world.Size{W: 1, H: 1},
		Productivity: 16,
		Climates:     world.AllClimates,
		Products:     []descriptor.Product{{Goods: "Grain", Capacity: 100, Factor: economy.FactorOne}},
		Fields: &descriptor.FieldGroup{
			MaxFields:   4,
			MinFields:   2,
			StartFields: 2,
			Classes:     []descriptor.FieldClass{{Name: "Wheat", Production: 4, Capacity: 50, Weight: 1}},
		},
	}))
	return c
}

func newSim(t *testing.T, acc factory.Accounting) *engine.Simulation {
	t.Helper()
	settings := factory.DefaultSettings()
	settings.Accounting = acc
	return engine.NewSimulation(world.NewMap(48, 48), testCatalog(t), nil, engine.Options{
		Seed:      9,
		Economy:   settings,
		City:      city.DefaultConfig(),
		Transport: transport.DefaultConfig(),
		Builder:   builder.DefaultConfig(),
	})
}

var farmPos = world.Coord{X: 30, Y: 30}

// runningSim returns a mine feeding a plant, plus a farm with fields, after
// enough ticks for goods to be stored, waiting and moving.
func runningSim(t *testing.T, acc factory.Accounting) *engine.Simulation {
	t.Helper()
	s := newSim(t, acc)
	s.Update(func(s *engine.Simulation) {
		mine, err := s.Factories.Build(s.Catalog.Get("Mine"), world.Coord{X: 10, Y: 10}, 0, 0)
		require.NoError(t, err)
		plant, err := s.Factories.Build(s.Catalog.Get("Plant"), world.Coord{X: 14, Y: 10}, 0, 0)
		require.NoError(t, err)
		require.NoError(t, s.Factories.Link(plant, mine))
		s.Network.AddStop(mine.Center())
		s.Network.AddStop(plant.Center())
		farm, err := s.Factories.Build(s.Catalog.Get("Farm"), farmPos, 0, 0)
		require.NoError(t, err)
		require.Len(t, farm.Fields(), 2)
	})
	for tick := uint64(1); tick <= 40; tick++ {
		s.Tick(tick)
	}
	return s
}

type unitView struct {
	ProdBase  int64
	Inputs    []factory.BufferRecord
	Outputs   []factory.BufferRecord
	Suppliers []world.Coord
	Consumers []world.Coord
	Fields    []factory.Field
}

func unitsOf(s *engine.Simulation) map[world.Coord]unitView {
	out := make(map[world.Coord]unitView)
	s.View(func(s *engine.Simulation) {
		for _, u := range s.Factories.Units() {
			rec := u.Record()
			out[rec.Pos] = unitView{rec.ProdBase, rec.Inputs, rec.Outputs, rec.Suppliers, rec.Consumers, rec.Fields}
		}
	})
	return out
}

func heldByNetwork(s *engine.Simulation) int64 {
	st := s.Network.Stats()
	return st.Waiting + st.InTransit
}

func TestDatabaseRoundTrip(t *testing.T) {
	src := runningSim(t, factory.AccountingModern)
	db, err := Open(filepath.Join(t.TempDir(), "world.db"))
	require.NoError(t, err)
	defer db.Close()

	assert.False(t, db.HasWorldState())
	require.NoError(t, db.SaveWorldState(src))
	assert.True(t, db.HasWorldState())

	dst := newSim(t, factory.AccountingModern)
	loaded, err := db.LoadWorldState(dst)
	require.NoError(t, err)
	require.True(t, loaded)

	assert.Equal(t, src.ID, dst.ID)
	assert.Equal(t, uint64(40), dst.CurrentTick())
	assert.Equal(t, unitsOf(src), unitsOf(dst))
	assert.Equal(t, heldByNetwork(src), heldByNetwork(dst))
	assert.Len(t, dst.Network.Stops(), 2)

	farm := dst.Factories.At(farmPos)
	require.NotNil(t, farm)
	assert.GreaterOrEqual(t, len(farm.Fields()), 2)
	for _, f := range farm.Fields() {
		assert.Same(t, farm, dst.Factories.UnitOn(f.Pos), "field tiles are occupied again")
	}
}

func TestSaveReplacesPreviousState(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "world.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SaveWorldState(runningSim(t, factory.AccountingModern)))
	require.NoError(t, db.SaveWorldState(newSim(t, factory.AccountingModern)))

	st, err := db.LoadState()
	require.NoError(t, err)
	assert.Empty(t, st.Factories)
	assert.Empty(t, st.Shipments)
	assert.Equal(t, uint64(0), st.Meta.Tick)
}

func TestAccountingComesFromSave(t *testing.T) {
	src := runningSim(t, factory.AccountingLegacy)
	st := Capture(src)
	assert.Equal(t, "legacy", st.Meta.Accounting)

	dst := newSim(t, factory.AccountingModern)
	require.NoError(t, Apply(dst, st))

	assert.Equal(t, factory.AccountingLegacy, dst.Settings.Accounting)
	for _, rec := range Capture(dst).Factories {
		for _, in := range rec.Inputs {
			assert.Nil(t, in.Demand, "legacy saves carry no demand")
		}
	}
}

func TestApplyRejectsOtherMapSize(t *testing.T) {
	st := Capture(runningSim(t, factory.AccountingModern))
	dst := engine.NewSimulation(world.NewMap(32, 32), testCatalog(t), nil, engine.Options{
		Economy:   factory.DefaultSettings(),
		Transport: transport.DefaultConfig(),
		Builder:   builder.DefaultConfig(),
	})

	err := Apply(dst, st)

	assert.ErrorIs(t, err, ErrMapMismatch)
	assert.Zero(t, dst.Factories.Len())
}

func TestApplyRejectsUnknownAccounting(t *testing.T) {
	st := Capture(newSim(t, factory.AccountingModern))
	st.Meta.Accounting = "barter"

	assert.Error(t, Apply(newSim(t, factory.AccountingModern), st))
}

func TestApplyKeepsMissingDescriptorAsPlaceholder(t *testing.T) {
	st := Capture(runningSim(t, factory.AccountingModern))
	for i := range st.Factories {
		if st.Factories[i].Descriptor == "Plant" {
			st.Factories[i].Descriptor = "RetiredPlant"
		}
	}
	dst := newSim(t, factory.AccountingModern)

	require.NoError(t, Apply(dst, st))

	assert.Equal(t, 3, dst.Factories.Len())
	mine := dst.Factories.At(world.Coord{X: 10, Y: 10})
	require.NotNil(t, mine)
	assert.Empty(t, mine.Consumers(), "links to placeholders are dropped")
}

func TestRecentEventsNewestFirst(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "world.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SaveState(State{
		Meta: Meta{Version: FormatVersion, Accounting: "jit2"},
		Events: []engine.Event{
			{Tick: 1, Description: "first", Category: "build"},
			{Tick: 2, Description: "second", Category: "expand"},
			{Tick: 3, Description: "third", Category: "report"},
		},
	}))

	events, err := db.RecentEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "third", events[0].Description)
	assert.Equal(t, "second", events[1].Description)
}

func TestMetaKeys(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "world.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.GetMeta("operator")
	assert.Error(t, err)
	require.NoError(t, db.SaveMeta("operator", "ops"))
	v, err := db.GetMeta("operator")
	require.NoError(t, err)
	assert.Equal(t, "ops", v)
	assert.False(t, db.HasWorldState())
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := runningSim(t, factory.AccountingModern)
	path := filepath.Join(t.TempDir(), "snapshots", "40.snap.zst")
	st := Capture(src)

	require.NoError(t, WriteSnapshot(path, st))

	meta, err := ReadSnapshotMeta(path)
	require.NoError(t, err)
	assert.Equal(t, st.Meta, meta)

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, st.Meta, got.Meta)
	assert.Len(t, got.Factories, 3)

	dst := newSim(t, factory.AccountingModern)
	require.NoError(t, Apply(dst, got))
	assert.Equal(t, unitsOf(src), unitsOf(dst))
	assert.Equal(t, heldByNetwork(src), heldByNetwork(dst))
}

func TestReadSnapshotMissingFile(t *testing.T) {
	_, err := ReadSnapshot(filepath.Join(t.TempDir(), "absent.snap.zst"))
	assert.Error(t, err)
}
