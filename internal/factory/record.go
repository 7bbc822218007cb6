package factory

import (
	"fmt"
	"log/slog"

	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/world"
)

// BufferRecord is the saved state of one buffer. Demand is only present in
// saves made under the modern accounting mode.
type BufferRecord struct {
	Goods    economy.GoodsID                             `json:"goods"`
	Quantity int64                                       `json:"quantity"`
	Transit  int64                                       `json:"transit"`
	Demand   *int64                                      `json:"demand,omitempty"`
	Stats    [economy.MaxMonths][economy.StatCount]int64 `json:"stats"`
}

// Record is the saved state of a unit. Descriptors are referenced by name.
type Record struct {
	Descriptor string      `json:"descriptor"`
	Pos        world.Coord `json:"pos"`
	Rotation   int         `json:"rotation"`
	Owner      int         `json:"owner"`
	Accounting Accounting  `json:"accounting"`

	ProdBase   int64 `json:"prod_base"`
	Remainder  int64 `json:"remainder"`
	Expansions int   `json:"expansions"`

	Inputs  []BufferRecord `json:"inputs"`
	Outputs []BufferRecord `json:"outputs"`

	Suppliers    []world.Coord `json:"suppliers"`
	Consumers    []world.Coord `json:"consumers"`
	Fields       []Field       `json:"fields"`
	TargetCities []string      `json:"target_cities"`

	ElectricBoost     int64        `json:"electric_boost"`
	PowerSatisfaction int64        `json:"power_satisfaction"`
	Pax               ArrivalStats `json:"pax"`
	Mail              ArrivalStats `json:"mail"`

	IdleMs   int64 `json:"idle_ms"`
	DistMs   int64 `json:"dist_ms"`
	RROffset int   `json:"rr_offset"`
}

func saveBuffer(b *economy.Buffer, modern bool) BufferRecord {
	br := BufferRecord{
		Goods:    b.Goods,
		Quantity: b.Quantity,
		Transit:  b.Transit,
		Stats:    b.Stats,
	}
	if modern {
		d := b.Demand
		br.Demand = &d
	}
	return br
}

// Record captures the unit for saving.
func (u *Unit) Record() Record {
	modern := u.settings.Accounting == AccountingModern
	rec := Record{
		Descriptor:        u.desc.Name,
		Pos:               u.pos,
		Rotation:          u.rotation,
		Owner:             u.owner,
		Accounting:        u.settings.Accounting,
		ProdBase:          u.prodBase,
		Remainder:         u.remainder,
		Expansions:        u.expansions,
		Suppliers:         append([]world.Coord(nil), u.suppliers...),
		Consumers:         append([]world.Coord(nil), u.consumers...),
		Fields:            append([]Field(nil), u.fields...),
		TargetCities:      append([]string(nil), u.targetCities...),
		ElectricBoost:     u.electricBoost,
		PowerSatisfaction: u.powerSatisfaction,
		Pax:               u.pax,
		Mail:              u.mail,
		IdleMs:            u.idleMs,
		DistMs:            u.distMs,
		RROffset:          u.rrOffset,
	}
	for _, b := range u.inputs {
		rec.Inputs = append(rec.Inputs, saveBuffer(b, modern))
	}
	for _, b := range u.outputs {
		rec.Outputs = append(rec.Outputs, saveBuffer(b, modern))
	}
	return rec
}

// placeholderCapacity sizes the buffers of a unit whose descriptor is gone.
const placeholderCapacity = 100

// placeholderDescriptor stands in for a descriptor missing from the catalog,
// keeping the saved goods so stock is not lost.
func placeholderDescriptor(rec Record) *descriptor.Factory {
	d := &descriptor.Factory{
		Name:         rec.Descriptor,
		Size:         world.Size{W: 1, H: 1},
		Productivity: int(max(rec.ProdBase, 1)),
		Climates:     world.AllClimates,
	}
	for _, in := range rec.Inputs {
		d.Supplies = append(d.Supplies, descriptor.Supply{Goods: in.Goods, Capacity: placeholderCapacity, Consumption: economy.FactorOne})
	}
	for _, out := range rec.Outputs {
		d.Products = append(d.Products, descriptor.Product{Goods: out.Goods, Capacity: placeholderCapacity, Factor: economy.FactorOne})
	}
	return d
}

// restoreBuffers matches saved buffers to the descriptor's slots by goods.
// Saved goods the descriptor no longer has are dropped; new slots keep
// their defaults.
func restoreBuffers(name string, saved []BufferRecord, slots []*economy.Buffer, modern bool, kind string) []string {
	var warnings []string
	for _, br := range saved {
		var b *economy.Buffer
		for _, s := range slots {
			if s.Goods == br.Goods {
				b = s
				break
			}
		}
		if b == nil {
			warnings = append(warnings, fmt.Sprintf("%s: dropping saved %s %q", name, kind, br.Goods))
			continue
		}
		b.Quantity = br.Quantity
		b.Transit = br.Transit
		b.Stats = br.Stats
		if modern && br.Demand != nil {
			b.Demand = *br.Demand
		}
		if b.Clamp() {
			warnings = append(warnings, fmt.Sprintf("%s: clamped %s %q", name, kind, br.Goods))
		}
	}
	return warnings
}

func clampArrivals(a *ArrivalStats) {
	a.Current = int(economy.Clamp(int64(a.Current), 0, SlotCount-1))
	a.Active = int(economy.Clamp(int64(a.Active), 0, SlotCount))
	var sum int64
	for i := range a.Slots {
		a.Slots[i] = max(a.Slots[i], 0)
		sum += a.Slots[i]
	}
	a.Aggregate = sum
	a.TimerMs = max(a.TimerMs, 0)
}

// Restore rebuilds a unit from a record. A descriptor missing from the
// catalog yields an inert placeholder. Out-of-range values are clamped and
// every repair is reported as a warning.
func Restore(rec Record, cat *descriptor.Catalog, s *Settings) (*Unit, []string) {
	var warnings []string
	d := cat.Get(rec.Descriptor)
	placeholder := d == nil
	if placeholder {
		d = placeholderDescriptor(rec)
		warnings = append(warnings, fmt.Sprintf("descriptor %q missing, %s kept as placeholder", rec.Descriptor, rec.Pos))
	}

	u := NewUnit(d, s, rec.Pos, rec.Rotation, rec.Owner, rec.ProdBase)
	u.placeholder = placeholder
	if placeholder {
		u.policy = PolicyNone
		u.strategy = sourceStrategy{}
	} else {
		u.suppliers = append([]world.Coord(nil), rec.Suppliers...)
		u.consumers = append([]world.Coord(nil), rec.Consumers...)
		for _, f := range rec.Fields {
			if _, _, ok := u.fieldClass(f.Class); !ok {
				warnings = append(warnings, fmt.Sprintf("%s: dropping field %s of class %d", d.Name, f.Pos, f.Class))
				continue
			}
			u.fields = append(u.fields, f)
		}
		u.targetCities = append([]string(nil), rec.TargetCities...)
	}
	u.expansions = max(rec.Expansions, 0)
	u.recalcCapacities()

	modern := s.Accounting == AccountingModern && rec.Accounting == AccountingModern
	warnings = append(warnings, restoreBuffers(d.Name, rec.Inputs, u.inputs, modern, "input")...)
	warnings = append(warnings, restoreBuffers(d.Name, rec.Outputs, u.outputs, modern, "output")...)
	if s.Accounting == AccountingModern && !modern {
		// Orders for a save without demand buffers: whatever room is left.
		for _, in := range u.inputs {
			in.Demand = max(in.Max-in.Quantity-in.Transit, 0)
		}
	}

	shift := economy.BoostBits + economy.DeltaTBits - economy.PrecisionBits
	u.remainder = economy.Clamp(rec.Remainder, 0, 1<<shift-1)
	u.electricBoost = economy.Clamp(rec.ElectricBoost, 0, int64(d.ElectricBoost))
	u.powerSatisfaction = economy.Clamp(rec.PowerSatisfaction, 0, economy.BoostOne)
	u.pax, u.mail = rec.Pax, rec.Mail
	clampArrivals(&u.pax)
	clampArrivals(&u.mail)
	u.pax.recompute(int64(d.PaxBoost), u.scaledPaxDemand)
	u.mail.recompute(int64(d.MailBoost), u.scaledMailDemand)
	u.idleMs = max(rec.IdleMs, 0)
	u.distMs = max(rec.DistMs, 0)
	u.rrOffset = max(rec.RROffset, 0)
	u.status = u.classify()

	for _, w := range warnings {
		slog.Warn("factory load", "pos", rec.Pos, "detail", w)
	}
	return u, warnings
}

// Reconcile makes restored links symmetric, drops links to missing or
// placeholder units and recomputes transit caps.
func (r *Registry) Reconcile() {
	for _, u := range r.order {
		u.suppliers = sortedUnique(u.suppliers)
		u.consumers = sortedUnique(u.consumers)
	}
	for _, u := range r.order {
		for _, pos := range append([]world.Coord(nil), u.suppliers...) {
			s := r.units[pos]
			if s == nil || s.placeholder || u.placeholder || !shares(u, s) {
				u.suppliers, _ = removeCoord(u.suppliers, pos)
				continue
			}
			s.consumers, _ = insertCoord(s.consumers, u.pos)
		}
		for _, pos := range append([]world.Coord(nil), u.consumers...) {
			c := r.units[pos]
			if c == nil || c.placeholder || u.placeholder || !shares(c, u) {
				u.consumers, _ = removeCoord(u.consumers, pos)
				continue
			}
			c.suppliers, _ = insertCoord(c.suppliers, u.pos)
		}
	}
	for _, u := range r.order {
		if n := len(u.consumers); n > 0 {
			u.rrOffset %= n
		} else {
			u.rrOffset = 0
		}
		r.refreshSupplyCaps(u)
	}
}
