// Package factory implements production units: the per-instance state of a
// placed factory, its production step, ordering, fields, links and the
// registry that owns them.
package factory

import (
	"errors"

	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/world"
)

// ErrNoSuchFactory is returned for lookups of positions without a unit.
var ErrNoSuchFactory = errors.New("no such factory")

// Settings are the economy knobs shared by every unit of a simulation.
type Settings struct {
	Accounting Accounting

	// MaxIntransitPercentage caps legacy in-transit amounts as a percentage
	// of connected suppliers' output capacity. Zero means unlimited.
	MaxIntransitPercentage int64

	// PowerBoostMaxDelta limits how far the modern electricity boost may rise per step.
	PowerBoostMaxDelta int64

	// ArrivalSlotMs is the length of one passenger/mail statistics slot.
	ArrivalSlotMs int64

	MinShipmentUnits       int64
	DistributionIntervalMs int64

	// InactiveAfterMs of zero work flags a unit as inactive.
	InactiveAfterMs int64

	// PowerPerBase converts achieved production into power output.
	PowerPerBase int64
}

// DefaultSettings returns the stock economy settings.
func DefaultSettings() Settings {
	return Settings{
		Accounting:             AccountingModern,
		MaxIntransitPercentage: 0,
		PowerBoostMaxDelta:     8,
		ArrivalSlotMs:          8 * economy.DeltaT,
		MinShipmentUnits:       economy.DefaultMinShipmentUnits,
		DistributionIntervalMs: 2 * economy.DeltaT,
		InactiveAfterMs:        64 * economy.DeltaT,
		PowerPerBase:           64,
	}
}

// WorkBits is the fixed point of the work ratio.
const (
	WorkBits = 8
	WorkOne  = 1 << WorkBits
)

// Field is an auxiliary tile adding production and storage to its owner.
type Field struct {
	Pos   world.Coord `json:"pos"`
	Class int         `json:"class"`
}

// Unit is one placed factory.
type Unit struct {
	desc     *descriptor.Factory
	settings *Settings
	pos      world.Coord
	rotation int
	owner    int

	policy   Policy
	strategy strategy

	// prodBase is the base production per interval, fields included.
	prodBase  int64
	remainder int64

	inputs  []*economy.Buffer
	outputs []*economy.Buffer
	// supplyCapSum is, per input, the summed output capacity of linked suppliers.
	supplyCapSum []int64

	suppliers []world.Coord
	consumers []world.Coord

	fields       []Field
	targetCities []string
	expansions   int

	// Boosts in economy.BoostBits fixed point, added on top of BoostOne.
	electricBoost     int64
	powerSatisfaction int64
	pax, mail         ArrivalStats

	scaledElectricDemand int64
	scaledPaxDemand      int64
	scaledMailDemand     int64

	work     int64
	power    int64
	idleMs   int64
	status   Status
	distMs   int64
	rrOffset int

	placeholder bool
}

// NewUnit creates a unit from a descriptor. prodBase is the rolled base
// productivity (descriptor productivity plus its random range).
func NewUnit(d *descriptor.Factory, s *Settings, pos world.Coord, rotation, owner int, prodBase int64) *Unit {
	if prodBase < 1 {
		prodBase = 1
	}
	u := &Unit{
		desc:              d,
		settings:          s,
		pos:               pos,
		rotation:          rotation & 3,
		owner:             owner,
		prodBase:          prodBase,
		powerSatisfaction: economy.BoostOne,
	}
	u.policy = SelectPolicy(d, s.Accounting)
	u.strategy = strategyFor(u.policy)

	for _, sup := range d.Supplies {
		b := economy.NewBuffer(sup.Goods, 0, int64(sup.Consumption))
		u.inputs = append(u.inputs, b)
	}
	for _, p := range d.Products {
		b := economy.NewBuffer(p.Goods, 0, int64(p.Factor))
		u.outputs = append(u.outputs, b)
	}
	u.supplyCapSum = make([]int64, len(u.inputs))
	u.recalcCapacities()
	if s.Accounting == AccountingModern {
		for _, in := range u.inputs {
			in.Demand = in.Max
		}
	}
	u.status = u.classify()
	return u
}

// Descriptor returns the shared template.
func (u *Unit) Descriptor() *descriptor.Factory { return u.desc }

// Name is the descriptor name.
func (u *Unit) Name() string { return u.desc.Name }

// Pos is the origin tile.
func (u *Unit) Pos() world.Coord { return u.pos }

func (u *Unit) Rotation() int { return u.rotation }

func (u *Unit) Owner() int { return u.owner }

func (u *Unit) Policy() Policy { return u.policy }

func (u *Unit) Accounting() Accounting { return u.settings.Accounting }

// Size is the footprint after rotation.
func (u *Unit) Size() world.Size { return u.desc.Size.Rotated(u.rotation) }

// Tiles lists the footprint.
func (u *Unit) Tiles() []world.Coord { return world.Footprint(u.pos, u.Size()) }

// Center is the footprint tile closest to its middle.
func (u *Unit) Center() world.Coord {
	sz := u.Size()
	return u.pos.Add(world.Coord{X: sz.W / 2, Y: sz.H / 2})
}

// ProdBase returns the base production per interval including fields.
func (u *Unit) ProdBase() int64 { return u.prodBase }

// Inputs and Outputs expose the buffers. Callers must not resize them.
func (u *Unit) Inputs() []*economy.Buffer  { return u.inputs }
func (u *Unit) Outputs() []*economy.Buffer { return u.outputs }

// Input returns the input buffer for goods, or nil.
func (u *Unit) Input(goods economy.GoodsID) *economy.Buffer {
	for _, b := range u.inputs {
		if b.Goods == goods {
			return b
		}
	}
	return nil
}

// Output returns the output buffer for goods, or nil.
func (u *Unit) Output(goods economy.GoodsID) *economy.Buffer {
	for _, b := range u.outputs {
		if b.Goods == goods {
			return b
		}
	}
	return nil
}

// Suppliers and Consumers are sorted origin positions of linked units.
func (u *Unit) Suppliers() []world.Coord { return u.suppliers }
func (u *Unit) Consumers() []world.Coord { return u.consumers }

func (u *Unit) Fields() []Field { return u.fields }

// TargetCities are the cities this unit is registered with for passengers and mail.
func (u *Unit) TargetCities() []string { return u.targetCities }

// SetTargetCities records the city registrations.
func (u *Unit) SetTargetCities(names []string) {
	u.targetCities = append(u.targetCities[:0], names...)
}

// Expansions counts monthly growth events so far.
func (u *Unit) Expansions() int { return u.expansions }

// Placeholder reports whether the unit stands in for a descriptor missing at load.
func (u *Unit) Placeholder() bool { return u.placeholder }

// Work is the ratio of achieved to possible production of the last step, in WorkBits.
func (u *Unit) Work() int64 { return u.work }

// Smoking reports whether the unit worked during the last step.
func (u *Unit) Smoking() bool { return u.work > 0 }

// Status returns the last classification.
func (u *Unit) Status() Status { return u.status }

// PowerOutput is the power produced during the last step (power plants only).
func (u *Unit) PowerOutput() int64 {
	if !u.desc.ElectricityProducer {
		return 0
	}
	return u.power
}

// PowerDemand is the power wanted, scaled by work.
func (u *Unit) PowerDemand() int64 {
	if u.desc.ElectricityProducer || u.scaledElectricDemand == 0 {
		return 0
	}
	return u.scaledElectricDemand * u.work >> WorkBits
}

// PaxDemand and MailDemand are the scaled arrivals expected per statistics slot.
func (u *Unit) PaxDemand() int64  { return u.scaledPaxDemand }
func (u *Unit) MailDemand() int64 { return u.scaledMailDemand }

// scale applies the ratio of current to descriptor productivity.
func (u *Unit) scale(v int64) int64 {
	base := int64(u.desc.Productivity)
	if base <= 0 {
		return v
	}
	return v * u.prodBase / base
}

// recalcCapacities recomputes buffer sizes, shipment thresholds and scaled
// demands from the current production base. Quantities are kept.
func (u *Unit) recalcCapacities() {
	var fieldCap int64
	if u.desc.HasFields() {
		for _, f := range u.fields {
			if f.Class >= 0 && f.Class < len(u.desc.Fields.Classes) {
				fieldCap += int64(u.desc.Fields.Classes[f.Class].Capacity)
			}
		}
	}
	for i, in := range u.inputs {
		in.Max = max(u.scale(economy.Units(int64(u.desc.Supplies[i].Capacity))), economy.Units(1))
		in.UpdateMinShipment(u.settings.MinShipmentUnits)
	}
	for i, out := range u.outputs {
		c := u.scale(economy.Units(int64(u.desc.Products[i].Capacity))) + economy.Units(fieldCap)
		out.Max = max(c, economy.Units(1))
		out.UpdateMinShipment(u.settings.MinShipmentUnits)
	}
	u.scaledElectricDemand = u.scale(int64(u.desc.ElectricDemand))
	u.scaledPaxDemand = u.scale(int64(u.desc.PaxDemand))
	u.scaledMailDemand = u.scale(int64(u.desc.MailDemand))
	u.recalcTransitCaps()
}

// clipToCapacity cuts stock left above a lowered capacity: outputs to the
// clip limit of the accounting mode, modern inputs to their cap. It returns
// the storage units discarded.
func (u *Unit) clipToCapacity() int64 {
	modern := u.settings.Accounting == AccountingModern
	var lost int64
	for _, out := range u.outputs {
		limit := out.Max
		if !modern {
			limit = out.Max - 1
		}
		if out.Quantity > limit {
			lost += out.Quantity - limit
			out.Quantity = limit
		}
	}
	if modern {
		for _, in := range u.inputs {
			if in.Quantity > in.Max {
				lost += in.Quantity - in.Max
				in.Quantity = in.Max
			}
		}
	}
	return lost
}

// recalcTransitCaps derives the legacy in-transit caps from supplier capacity.
func (u *Unit) recalcTransitCaps() {
	pct := u.settings.MaxIntransitPercentage
	for i, in := range u.inputs {
		if pct <= 0 || u.supplyCapSum[i] <= 0 {
			in.MaxTransit = 0
			continue
		}
		in.MaxTransit = max(u.supplyCapSum[i]*pct/100, 1)
	}
}

// Expand grows the production base permanently.
func (u *Unit) Expand(amount int64) {
	if amount <= 0 {
		return
	}
	u.prodBase += amount
	u.expansions++
	u.recalcCapacities()
}

// Step advances production by deltaT milliseconds.
func (u *Unit) Step(deltaT int64) {
	if u.placeholder || deltaT <= 0 {
		return
	}
	u.updateElectricBoost()
	u.advanceArrivals(deltaT)

	shift := economy.BoostBits + economy.DeltaTBits - economy.PrecisionBits
	acc := u.prodBase*u.Boost()*deltaT + u.remainder
	raw := acc >> shift
	u.remainder = acc & (1<<shift - 1)

	consumed, produced := u.strategy.advance(u, raw)

	achieved := max(consumed, produced)
	switch {
	case raw <= 0:
		u.work = 0
	case u.policy == PolicyNone || u.policy == PolicyElectricSource:
		u.work = WorkOne
	default:
		u.work = min(achieved*WorkOne/raw, WorkOne)
	}
	u.power = 0
	if u.desc.ElectricityProducer {
		u.power = u.prodBase * u.settings.PowerPerBase * u.work >> WorkBits
	}
	if u.work > 0 {
		u.idleMs = 0
	} else {
		u.idleMs += deltaT
	}

	for _, b := range u.inputs {
		b.AccumulateStorage(deltaT)
	}
	for _, b := range u.outputs {
		b.AccumulateStorage(deltaT)
	}
	u.distMs += deltaT
	u.status = u.classify()
}

// NewMonth rolls every buffer's statistics.
func (u *Unit) NewMonth() {
	for _, b := range u.inputs {
		b.RollMonth()
	}
	for _, b := range u.outputs {
		b.RollMonth()
	}
}
