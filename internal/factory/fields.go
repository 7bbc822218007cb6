package factory

import (
	"fmt"
	"log/slog"

	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/world"
)

func (u *Unit) fieldClass(class int) (production, capacity int64, ok bool) {
	if !u.desc.HasFields() || class < 0 || class >= len(u.desc.Fields.Classes) {
		return 0, 0, false
	}
	fc := u.desc.Fields.Classes[class]
	return int64(fc.Production), int64(fc.Capacity), true
}

func (u *Unit) attachField(f Field) error {
	prod, _, ok := u.fieldClass(f.Class)
	if !ok {
		return fmt.Errorf("field class %d of %s", f.Class, u.desc.Name)
	}
	u.fields = append(u.fields, f)
	u.prodBase += prod
	u.recalcCapacities()
	return nil
}

func (u *Unit) detachField(pos world.Coord) bool {
	for i, f := range u.fields {
		if f.Pos != pos {
			continue
		}
		prod, _, _ := u.fieldClass(f.Class)
		u.fields = append(u.fields[:i], u.fields[i+1:]...)
		u.prodBase = max(u.prodBase-prod, 1)
		u.recalcCapacities()
		if lost := u.clipToCapacity(); lost > 0 {
			slog.Debug("stock above reduced capacity discarded", "factory", u.desc.Name, "pos", u.pos, "lost", economy.WholeUnits(lost))
		}
		return true
	}
	return false
}

// fieldRadius bounds how far from the footprint a field may be placed.
const fieldRadius = 3

// AddField places a field of the given class for u. The tile must be free land.
func (r *Registry) AddField(u *Unit, pos world.Coord, class int) error {
	t := r.Map.Get(pos)
	if t == nil || !t.Free() || t.Terrain.IsWater() {
		return fmt.Errorf("field at %s: tile unavailable", pos)
	}
	if _, _, ok := u.fieldClass(class); !ok {
		return fmt.Errorf("field at %s: class %d of %s", pos, class, u.Name())
	}
	if err := r.Map.Occupy(pos, world.FieldOwner(u.pos)); err != nil {
		return fmt.Errorf("field at %s: %w", pos, err)
	}
	if err := u.attachField(Field{Pos: pos, Class: class}); err != nil {
		r.Map.Release(pos)
		return err
	}
	r.refreshConsumersOf(u)
	return nil
}

// RemoveField deletes a field and its production share.
func (r *Registry) RemoveField(u *Unit, pos world.Coord) bool {
	if !u.detachField(pos) {
		return false
	}
	r.Map.Release(pos)
	r.refreshConsumersOf(u)
	return true
}

// growFields spawns fields probabilistically, and unconditionally while the
// unit is below its minimum.
func (r *Registry) growFields(u *Unit, deltaT int64) {
	if !u.desc.HasFields() || u.placeholder {
		return
	}
	fg := u.desc.Fields
	if len(u.fields) >= fg.MaxFields {
		return
	}
	if len(u.fields) >= fg.MinFields {
		// Probability is per production interval in 1/10000.
		if r.rng.Int63n(10000*economy.DeltaT) >= int64(fg.Probability)*deltaT {
			return
		}
	}
	r.spawnField(u)
}

// spawnField picks a free tile around the footprint and a weighted class.
func (r *Registry) spawnField(u *Unit) bool {
	sites := r.fieldSites(u)
	if len(sites) == 0 {
		return false
	}
	pos := sites[r.rng.Intn(len(sites))]
	return r.AddField(u, pos, r.pickFieldClass(u)) == nil
}

func (r *Registry) fieldSites(u *Unit) []world.Coord {
	sz := u.Size()
	var out []world.Coord
	for y := u.pos.Y - fieldRadius; y < u.pos.Y+sz.H+fieldRadius; y++ {
		for x := u.pos.X - fieldRadius; x < u.pos.X+sz.W+fieldRadius; x++ {
			c := world.Coord{X: x, Y: y}
			if t := r.Map.Get(c); t != nil && t.Free() && !t.Terrain.IsWater() {
				out = append(out, c)
			}
		}
	}
	return out
}

func (r *Registry) pickFieldClass(u *Unit) int {
	classes := u.desc.Fields.Classes
	total := 0
	for _, fc := range classes {
		total += fc.Weight
	}
	if total <= 0 {
		return 0
	}
	pick := r.rng.Intn(total)
	for i, fc := range classes {
		if pick < fc.Weight {
			return i
		}
		pick -= fc.Weight
	}
	return len(classes) - 1
}
