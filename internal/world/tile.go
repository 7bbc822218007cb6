// Package world provides the tile grid, terrain, climate and the per-tile
// occupancy map shared by the factory registry and the supply-chain builder.
// Coordinates are square tiles (x, y) with the origin in the north-west corner.
package world

import "fmt"

// Coord is a tile position.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NoSite is returned by placement searches that found nothing.
var NoSite = Coord{X: -1, Y: -1}

// Add returns c offset by d.
func (c Coord) Add(d Coord) Coord {
	return Coord{X: c.X + d.X, Y: c.Y + d.Y}
}

func (c Coord) String() string {
	return fmt.Sprintf("%d,%d", c.X, c.Y)
}

// Less orders coordinates row-major, used for deterministic iteration.
func (c Coord) Less(o Coord) bool {
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.X < o.X
}

// Size is a footprint in tiles.
type Size struct {
	W int `yaml:"w" json:"w"`
	H int `yaml:"h" json:"h"`
}

// Area returns the number of tiles covered.
func (s Size) Area() int {
	return s.W * s.H
}

// Rotated swaps the dimensions for odd rotations.
func (s Size) Rotated(rotation int) Size {
	if rotation%2 == 1 {
		return Size{W: s.H, H: s.W}
	}
	return s
}

// NeighborDirections are the four cardinal offsets.
var NeighborDirections = [4]Coord{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

// Neighbors returns the four adjacent tiles.
func (c Coord) Neighbors() [4]Coord {
	var result [4]Coord
	for i, d := range NeighborDirections {
		result[i] = c.Add(d)
	}
	return result
}

// Distance is the Manhattan distance between two tiles.
func Distance(a, b Coord) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Terrain types for tiles.
type Terrain uint8

const (
	TerrainPlains Terrain = iota
	TerrainForest
	TerrainMountain
	TerrainCoast // land touching open water
	TerrainRiver
	TerrainDesert
	TerrainSwamp
	TerrainTundra
	TerrainOcean
)

// IsWater reports whether boats float here.
func (t Terrain) IsWater() bool {
	return t == TerrainOcean || t == TerrainRiver
}

// Climate zones, used as a bitset by factory descriptors.
type Climate uint8

const (
	ClimateWater Climate = iota
	ClimateDesert
	ClimateTropic
	ClimateMediterranean
	ClimateTemperate
	ClimateTundra
	ClimateRocky
	ClimateArctic
)

// ClimateSet is a bitset of climates.
type ClimateSet uint16

// AllClimates accepts every land climate.
const AllClimates ClimateSet = 0xFE

// Has reports whether the set contains c.
func (s ClimateSet) Has(c Climate) bool {
	return s&(1<<c) != 0
}

// ClimatesOf builds a set.
func ClimatesOf(cs ...Climate) ClimateSet {
	var s ClimateSet
	for _, c := range cs {
		s |= 1 << c
	}
	return s
}

// OwnerKind discriminates what a tile belongs to.
type OwnerKind uint8

const (
	OwnerNone OwnerKind = iota
	OwnerFactory
	OwnerField
	OwnerCity
)

// Owner records who occupies a tile. Exactly one of Factory (for factory
// buildings and fields) or City is meaningful, selected by Kind.
type Owner struct {
	Kind    OwnerKind `json:"kind"`
	Factory Coord     `json:"factory,omitempty"`
	City    string    `json:"city,omitempty"`
}

// FactoryOwner tags a tile as part of the factory at pos.
func FactoryOwner(pos Coord) Owner {
	return Owner{Kind: OwnerFactory, Factory: pos}
}

// FieldOwner tags a tile as a field of the factory at pos.
func FieldOwner(pos Coord) Owner {
	return Owner{Kind: OwnerField, Factory: pos}
}

// CityOwner tags a tile as built up by a city.
func CityOwner(name string) Owner {
	return Owner{Kind: OwnerCity, City: name}
}

// Valid reports whether the variant is consistent: a factory-kind owner
// never carries a city name and a city owner never carries a factory position.
func (o Owner) Valid() bool {
	switch o.Kind {
	case OwnerNone:
		return o.City == "" && o.Factory == Coord{}
	case OwnerFactory, OwnerField:
		return o.City == ""
	case OwnerCity:
		return o.City != "" && o.Factory == Coord{}
	}
	return false
}

// Tile is a single map square.
type Tile struct {
	Coord   Coord   `json:"coord"`
	Terrain Terrain `json:"terrain"`
	Climate Climate `json:"climate"`

	// Height is the quantised elevation used for flatness checks.
	Height int `json:"height"`

	Elevation   float64 `json:"elevation"`   // 0.0 (sea level) to 1.0 (peak)
	Rainfall    float64 `json:"rainfall"`    // 0.0 (arid) to 1.0 (tropical)
	Temperature float64 `json:"temperature"` // 0.0 (frozen) to 1.0 (hot)

	Road  bool  `json:"road,omitempty"`
	Owner Owner `json:"owner"`
}

// Free reports whether nothing is built on the tile.
func (t *Tile) Free() bool {
	return t.Owner.Kind == OwnerNone && !t.Road
}
