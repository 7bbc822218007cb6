package world

import "fmt"

// Map holds the complete tile grid.
type Map struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Tiles  []Tile `json:"-"` // row-major
}

// NewMap creates a map of plains tiles in the temperate climate.
func NewMap(w, h int) *Map {
	m := &Map{
		Width:  w,
		Height: h,
		Tiles:  make([]Tile, w*h),
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t := &m.Tiles[y*w+x]
			t.Coord = Coord{X: x, Y: y}
			t.Terrain = TerrainPlains
			t.Climate = ClimateTemperate
		}
	}
	return m
}

// InBounds returns true if the coordinate lies on the map.
func (m *Map) InBounds(c Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < m.Width && c.Y < m.Height
}

// Get returns the tile at c, or nil if out of bounds.
func (m *Map) Get(c Coord) *Tile {
	if !m.InBounds(c) {
		return nil
	}
	return &m.Tiles[c.Y*m.Width+c.X]
}

// TileCount returns the total number of tiles.
func (m *Map) TileCount() int {
	return len(m.Tiles)
}

// Footprint lists the tiles covered by size at origin.
func Footprint(origin Coord, size Size) []Coord {
	out := make([]Coord, 0, size.Area())
	for dy := 0; dy < size.H; dy++ {
		for dx := 0; dx < size.W; dx++ {
			out = append(out, Coord{X: origin.X + dx, Y: origin.Y + dy})
		}
	}
	return out
}

// AreaFree reports whether every tile of the footprint exists and is unoccupied.
func (m *Map) AreaFree(origin Coord, size Size) bool {
	for _, c := range Footprint(origin, size) {
		t := m.Get(c)
		if t == nil || !t.Free() {
			return false
		}
	}
	return true
}

// Occupy tags a single tile. It fails if the tile is taken.
func (m *Map) Occupy(c Coord, o Owner) error {
	if !o.Valid() {
		return fmt.Errorf("occupy %s: inconsistent owner %+v", c, o)
	}
	t := m.Get(c)
	if t == nil {
		return fmt.Errorf("occupy %s: out of bounds", c)
	}
	if t.Owner.Kind != OwnerNone {
		return fmt.Errorf("occupy %s: already owned", c)
	}
	t.Owner = o
	return nil
}

// OccupyArea tags every tile of the footprint. Nothing is changed on failure.
func (m *Map) OccupyArea(origin Coord, size Size, o Owner) error {
	if !m.AreaFree(origin, size) {
		return fmt.Errorf("occupy area %s %dx%d: not free", origin, size.W, size.H)
	}
	for _, c := range Footprint(origin, size) {
		m.Get(c).Owner = o
	}
	return nil
}

// Release clears the owner of the tile at c.
func (m *Map) Release(c Coord) {
	if t := m.Get(c); t != nil {
		t.Owner = Owner{}
	}
}

// ReleaseArea clears a footprint.
func (m *Map) ReleaseArea(origin Coord, size Size) {
	for _, c := range Footprint(origin, size) {
		m.Release(c)
	}
}

// Flat reports whether all footprint tiles share one height.
func (m *Map) Flat(origin Coord, size Size) bool {
	first := m.Get(origin)
	if first == nil {
		return false
	}
	for _, c := range Footprint(origin, size) {
		t := m.Get(c)
		if t == nil || t.Height != first.Height {
			return false
		}
	}
	return true
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(%dx%d, tiles=%d)", m.Width, m.Height, m.TileCount())
}
