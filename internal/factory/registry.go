package factory

import (
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"sort"

	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/world"
)

// CityLinker registers units with nearby cities as passenger and mail targets.
type CityLinker interface {
	Register(u *Unit) []string
	Unregister(u *Unit)
}

// Registry owns every unit of a simulation, keyed by origin tile, and keeps
// the tile map's occupancy in step with them.
type Registry struct {
	Map      *world.Map
	Catalog  *descriptor.Catalog
	Settings *Settings
	Cities   CityLinker

	units map[world.Coord]*Unit
	order []*Unit
	rng   *rand.Rand
}

// NewRegistry creates an empty registry.
func NewRegistry(m *world.Map, cat *descriptor.Catalog, s *Settings, seed int64) *Registry {
	return &Registry{
		Map:      m,
		Catalog:  cat,
		Settings: s,
		units:    make(map[world.Coord]*Unit),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Rand exposes the registry's deterministic random source.
func (r *Registry) Rand() *rand.Rand { return r.rng }

// Build places a new unit. The footprint must be free; base productivity is
// rolled from the descriptor range and start fields are spawned.
func (r *Registry) Build(d *descriptor.Factory, pos world.Coord, rotation, owner int) (*Unit, error) {
	if _, taken := r.units[pos]; taken {
		return nil, fmt.Errorf("build %s at %s: origin taken", d.Name, pos)
	}
	prod := int64(d.Productivity)
	if d.Range > 0 {
		prod += int64(r.rng.Intn(d.Range + 1))
	}
	u := NewUnit(d, r.Settings, pos, rotation, owner, prod)
	if err := r.Insert(u); err != nil {
		return nil, fmt.Errorf("build %s: %w", d.Name, err)
	}
	if d.HasFields() {
		for i := 0; i < d.Fields.StartFields; i++ {
			if !r.spawnField(u) {
				break
			}
		}
	}
	if r.Cities != nil && (d.PaxDemand > 0 || d.MailDemand > 0) {
		u.SetTargetCities(r.Cities.Register(u))
	}
	slog.Debug("factory built", "name", d.Name, "pos", pos, "policy", u.policy, "prod", u.prodBase)
	return u, nil
}

// Insert indexes an existing unit and occupies its footprint and fields.
func (r *Registry) Insert(u *Unit) error {
	if _, taken := r.units[u.pos]; taken {
		return fmt.Errorf("insert at %s: origin taken", u.pos)
	}
	if err := r.Map.OccupyArea(u.pos, u.Size(), world.FactoryOwner(u.pos)); err != nil {
		return fmt.Errorf("insert at %s: %w", u.pos, err)
	}
	kept := u.fields[:0]
	for _, f := range u.fields {
		if err := r.Map.Occupy(f.Pos, world.FieldOwner(u.pos)); err != nil {
			slog.Warn("dropping field on occupied tile", "factory", u.Name(), "field", f.Pos, "error", err)
			prod, _, _ := u.fieldClass(f.Class)
			u.prodBase = max(u.prodBase-prod, 1)
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) != len(u.fields) {
		u.fields = kept
		u.recalcCapacities()
		if lost := u.clipToCapacity(); lost > 0 {
			slog.Warn("stock above reduced capacity discarded", "factory", u.Name(), "pos", u.pos, "lost", economy.WholeUnits(lost))
		}
	}
	r.units[u.pos] = u
	r.order = append(r.order, u)
	return nil
}

// At returns the unit with origin pos, or nil.
func (r *Registry) At(pos world.Coord) *Unit {
	return r.units[pos]
}

// Get is At with an error for missing units.
func (r *Registry) Get(pos world.Coord) (*Unit, error) {
	if u := r.units[pos]; u != nil {
		return u, nil
	}
	return nil, fmt.Errorf("factory at %s: %w", pos, ErrNoSuchFactory)
}

// UnitOn returns the unit whose building or field covers tile c, or nil.
func (r *Registry) UnitOn(c world.Coord) *Unit {
	t := r.Map.Get(c)
	if t == nil {
		return nil
	}
	switch t.Owner.Kind {
	case world.OwnerFactory, world.OwnerField:
		return r.units[t.Owner.Factory]
	}
	return nil
}

// Units returns every unit in construction order.
func (r *Registry) Units() []*Unit { return r.order }

func (r *Registry) Len() int { return len(r.order) }

// Within returns units whose origin lies within radius of center, nearest
// first and ties broken by position.
func (r *Registry) Within(center world.Coord, radius int) []*Unit {
	var out []*Unit
	for _, u := range r.order {
		if world.Distance(center, u.pos) <= radius {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := world.Distance(center, out[i].pos), world.Distance(center, out[j].pos)
		if di != dj {
			return di < dj
		}
		return out[i].pos.Less(out[j].pos)
	})
	return out
}

// insertCoord adds c to a sorted list unless present.
func insertCoord(list []world.Coord, c world.Coord) ([]world.Coord, bool) {
	i := sort.Search(len(list), func(i int) bool { return !list[i].Less(c) })
	if i < len(list) && list[i] == c {
		return list, false
	}
	return slices.Insert(list, i, c), true
}

// sortedUnique sorts a coordinate list and drops duplicates.
func sortedUnique(list []world.Coord) []world.Coord {
	slices.SortFunc(list, func(a, b world.Coord) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return slices.Compact(list)
}

func removeCoord(list []world.Coord, c world.Coord) ([]world.Coord, bool) {
	i := slices.Index(list, c)
	if i < 0 {
		return list, false
	}
	return slices.Delete(list, i, i+1), true
}

// shares reports whether supplier produces something consumer accepts.
func shares(consumer, supplier *Unit) bool {
	for _, in := range consumer.inputs {
		if supplier.Output(in.Goods) != nil {
			return true
		}
	}
	return false
}

// Link connects a supplier to a consumer on both sides. Linking twice is a no-op.
func (r *Registry) Link(consumer, supplier *Unit) error {
	if consumer == supplier {
		return fmt.Errorf("link %s to itself", consumer.pos)
	}
	if consumer.placeholder || supplier.placeholder {
		return fmt.Errorf("link %s -> %s: placeholder", supplier.pos, consumer.pos)
	}
	if r.units[consumer.pos] != consumer || r.units[supplier.pos] != supplier {
		return fmt.Errorf("link %s -> %s: %w", supplier.pos, consumer.pos, ErrNoSuchFactory)
	}
	if !shares(consumer, supplier) {
		return fmt.Errorf("link %s -> %s: no common goods", supplier.pos, consumer.pos)
	}
	var added bool
	consumer.suppliers, added = insertCoord(consumer.suppliers, supplier.pos)
	supplier.consumers, _ = insertCoord(supplier.consumers, consumer.pos)
	if added {
		r.refreshSupplyCaps(consumer)
	}
	return nil
}

// Unlink removes a link on both sides.
func (r *Registry) Unlink(consumer, supplier *Unit) {
	var removed bool
	consumer.suppliers, removed = removeCoord(consumer.suppliers, supplier.pos)
	supplier.consumers, _ = removeCoord(supplier.consumers, consumer.pos)
	if removed {
		r.refreshSupplyCaps(consumer)
	}
}

// refreshSupplyCaps recomputes a consumer's legacy in-transit caps from its suppliers.
func (r *Registry) refreshSupplyCaps(c *Unit) {
	for i := range c.supplyCapSum {
		c.supplyCapSum[i] = 0
	}
	for _, pos := range c.suppliers {
		s := r.units[pos]
		if s == nil {
			continue
		}
		for i, in := range c.inputs {
			if out := s.Output(in.Goods); out != nil {
				c.supplyCapSum[i] += out.Max
			}
		}
	}
	c.recalcTransitCaps()
}

// refreshConsumersOf updates consumers after a supplier's capacity changed.
func (r *Registry) refreshConsumersOf(s *Unit) {
	for _, pos := range s.consumers {
		if c := r.units[pos]; c != nil {
			r.refreshSupplyCaps(c)
		}
	}
}

// Remove deletes a unit, its links, fields, tiles and city registrations.
func (r *Registry) Remove(u *Unit) {
	if r.units[u.pos] != u {
		return
	}
	for _, pos := range slices.Clone(u.suppliers) {
		if s := r.units[pos]; s != nil {
			r.Unlink(u, s)
		}
	}
	for _, pos := range slices.Clone(u.consumers) {
		if c := r.units[pos]; c != nil {
			r.Unlink(c, u)
		}
	}
	for _, f := range u.fields {
		r.Map.Release(f.Pos)
	}
	u.fields = nil
	r.Map.ReleaseArea(u.pos, u.Size())
	if r.Cities != nil && len(u.targetCities) > 0 {
		r.Cities.Unregister(u)
	}
	u.targetCities = nil
	delete(r.units, u.pos)
	if i := slices.Index(r.order, u); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	slog.Debug("factory removed", "name", u.Name(), "pos", u.pos)
}

// Step advances every unit by deltaT milliseconds and grows fields.
func (r *Registry) Step(deltaT int64) {
	for _, u := range r.order {
		u.Step(deltaT)
		r.growFields(u, deltaT)
	}
}

// NewMonth rolls statistics and gives each unit its chance to expand.
func (r *Registry) NewMonth() {
	for _, u := range r.order {
		u.NewMonth()
		d := u.desc
		if u.placeholder || d.ExpandProbability <= 0 || u.expansions >= d.ExpandTimes {
			continue
		}
		if r.rng.Intn(10000) >= d.ExpandProbability {
			continue
		}
		amount := int64(d.ExpandMinimum)
		if d.ExpandRange > 0 {
			amount += int64(r.rng.Intn(d.ExpandRange + 1))
		}
		if amount <= 0 {
			continue
		}
		u.Expand(amount)
		r.refreshConsumersOf(u)
		slog.Info("factory expanded", "name", u.Name(), "pos", u.pos, "amount", amount, "prod", u.prodBase)
	}
}
