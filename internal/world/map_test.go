package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOccupyArea(t *testing.T) {
	m := NewMap(10, 10)
	owner := FactoryOwner(Coord{X: 2, Y: 2})

	require.NoError(t, m.OccupyArea(Coord{X: 2, Y: 2}, Size{W: 2, H: 3}, owner))
	assert.Equal(t, OwnerFactory, m.Get(Coord{X: 3, Y: 4}).Owner.Kind)

	// Overlapping footprint is rejected without touching anything.
	err := m.OccupyArea(Coord{X: 3, Y: 4}, Size{W: 2, H: 2}, FactoryOwner(Coord{X: 3, Y: 4}))
	assert.Error(t, err)
	assert.True(t, m.Get(Coord{X: 4, Y: 5}).Free())

	// Off the map edge.
	assert.False(t, m.AreaFree(Coord{X: 9, Y: 9}, Size{W: 2, H: 1}))

	m.ReleaseArea(Coord{X: 2, Y: 2}, Size{W: 2, H: 3})
	assert.True(t, m.AreaFree(Coord{X: 2, Y: 2}, Size{W: 2, H: 3}))
}

func TestOwnerVariantNeverBoth(t *testing.T) {
	assert.True(t, FactoryOwner(Coord{X: 1, Y: 1}).Valid())
	assert.True(t, FieldOwner(Coord{X: 1, Y: 1}).Valid())
	assert.True(t, CityOwner("Ironford").Valid())
	assert.True(t, Owner{}.Valid())

	both := Owner{Kind: OwnerCity, City: "Ironford", Factory: Coord{X: 1, Y: 1}}
	assert.False(t, both.Valid())
	factoryWithCity := Owner{Kind: OwnerFactory, City: "Ironford"}
	assert.False(t, factoryWithCity.Valid())

	m := NewMap(4, 4)
	assert.Error(t, m.Occupy(Coord{X: 0, Y: 0}, both))
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := SmallTestConfig()
	a := Generate(cfg)
	b := Generate(cfg)

	require.Equal(t, a.TileCount(), b.TileCount())
	for i := range a.Tiles {
		assert.Equal(t, a.Tiles[i].Terrain, b.Tiles[i].Terrain)
		assert.Equal(t, a.Tiles[i].Height, b.Tiles[i].Height)
	}
	// The map border is pushed under water.
	assert.Equal(t, TerrainOcean, a.Get(Coord{X: 0, Y: 0}).Terrain)
}

func TestPlaceCitiesRespectsSpacing(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.Seed = 7
	m := Generate(cfg)
	seeds := PlaceCities(m, 7, 2, 3, 4)
	require.NotEmpty(t, seeds)

	for i := range seeds {
		tile := m.Get(seeds[i].Coord)
		assert.Equal(t, OwnerCity, tile.Owner.Kind)
		assert.Equal(t, seeds[i].Name, tile.Owner.City)
		for j := i + 1; j < len(seeds); j++ {
			assert.GreaterOrEqual(t, Distance(seeds[i].Coord, seeds[j].Coord), 8)
		}
	}
}

func TestSizeRotation(t *testing.T) {
	s := Size{W: 3, H: 1}
	assert.Equal(t, Size{W: 1, H: 3}, s.Rotated(1))
	assert.Equal(t, s, s.Rotated(2))
	assert.Equal(t, 3, s.Area())
}
