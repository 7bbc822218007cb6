package builder

import (
	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/world"
)

// Site is a validated footprint origin and rotation.
type Site struct {
	Pos      world.Coord
	Rotation int
}

// NoSite is the placement search's "nothing found" result.
var NoSite = Site{Pos: world.NoSite}

// Found reports whether the search produced a site.
func (s Site) Found() bool { return s.Pos != world.NoSite }

// FindSite searches square rings of growing size around anchor, up to radius,
// for a footprint where d may be built. Rings are scanned row-major so the
// result is deterministic. Returns NoSite when nothing in the window fits.
func (b *Builder) FindSite(d *descriptor.Factory, anchor world.Coord, radius int) Site {
	rotations := []int{0}
	if d.Size.W != d.Size.H {
		rotations = append(rotations, 1)
	}
	for r := 0; r <= radius; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if max(abs(dx), abs(dy)) != r {
					continue
				}
				pos := anchor.Add(world.Coord{X: dx, Y: dy})
				for _, rot := range rotations {
					if b.validSite(d, pos, rot) {
						return Site{Pos: pos, Rotation: rot}
					}
				}
			}
		}
	}
	return NoSite
}

// validSite applies the placement rules of d to the footprint at pos.
func (b *Builder) validSite(d *descriptor.Factory, pos world.Coord, rotation int) bool {
	m := b.reg.Map
	size := d.Size.Rotated(rotation)
	if !m.AreaFree(pos, size) {
		return false
	}
	tiles := world.Footprint(pos, size)
	for _, c := range tiles {
		t := m.Get(c)
		if d.Placement == descriptor.PlaceWater {
			if t.Terrain != world.TerrainOcean {
				return false
			}
			continue
		}
		if t.Terrain.IsWater() || !d.Climates.Has(t.Climate) {
			return false
		}
		if d.Placement == descriptor.PlaceForest && t.Terrain != world.TerrainForest {
			return false
		}
	}
	if d.Placement != descriptor.PlaceWater && !m.Flat(pos, size) {
		return false
	}
	if !b.clear(pos, size) {
		return false
	}
	var adjacent func(*world.Tile) bool
	switch d.Placement {
	case descriptor.PlaceCity:
		adjacent = func(t *world.Tile) bool { return t.Road }
	case descriptor.PlaceRiver:
		adjacent = func(t *world.Tile) bool { return t.Terrain == world.TerrainRiver }
	case descriptor.PlaceShore:
		adjacent = func(t *world.Tile) bool { return t.Terrain == world.TerrainOcean }
	}
	if adjacent != nil && !b.touches(tiles, adjacent) {
		return false
	}
	return b.separated(d, pos)
}

// clear keeps a one-tile gap between factory buildings.
func (b *Builder) clear(pos world.Coord, size world.Size) bool {
	ring := world.Footprint(pos.Add(world.Coord{X: -1, Y: -1}), world.Size{W: size.W + 2, H: size.H + 2})
	for _, c := range ring {
		if t := b.reg.Map.Get(c); t != nil && t.Owner.Kind == world.OwnerFactory {
			return false
		}
	}
	return true
}

// touches reports whether any tile edge-adjacent to the footprint satisfies ok.
func (b *Builder) touches(tiles []world.Coord, ok func(*world.Tile) bool) bool {
	for _, c := range tiles {
		for _, n := range c.Neighbors() {
			if t := b.reg.Map.Get(n); t != nil && ok(t) {
				return true
			}
		}
	}
	return false
}

// separated enforces the minimum distance between factories of the same type.
func (b *Builder) separated(d *descriptor.Factory, pos world.Coord) bool {
	if b.cfg.MinDistance <= 0 {
		return true
	}
	for _, u := range b.reg.Within(pos, b.cfg.MinDistance) {
		if u.Descriptor() == d || u.Name() == d.Name {
			return false
		}
	}
	return true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
