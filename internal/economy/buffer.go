package economy

// MaxMonths is the depth of the rolling monthly statistics.
const MaxMonths = 12

// Stat categories recorded per buffer and month.
type Stat int

const (
	StatStorage Stat = iota // time-weighted average quantity
	StatIn                  // received (inputs) or produced (outputs)
	StatOut                 // consumed (inputs) or shipped (outputs)
	StatTransit             // in-transit snapshot (inputs)
	StatCount
)

// Buffer is the storage slot for one goods type on one production unit.
// Quantity, Max, Transit and Demand are in PrecisionBits fixed point.
type Buffer struct {
	Goods GoodsID

	Quantity int64
	Max      int64

	// Transit is the amount routed towards this input and not yet delivered.
	// MaxTransit caps it in the legacy accounting mode; zero means unlimited.
	Transit    int64
	MaxTransit int64

	// Demand is the outstanding order of the modern accounting mode.
	Demand int64

	// Factor is the production (outputs) or consumption (inputs) factor in FactorBits.
	Factor int64

	// MinShipment is the quantity at which an output is worth shipping.
	MinShipment int64

	Stats [MaxMonths][StatCount]int64

	storageSum  int64
	storageTime int64
}

// NewBuffer creates an empty buffer.
func NewBuffer(goods GoodsID, max, factor int64) *Buffer {
	b := &Buffer{Goods: goods, Max: max, Factor: factor}
	b.UpdateMinShipment(DefaultMinShipmentUnits)
	return b
}

// DefaultMinShipmentUnits is the nominal physical size of a worthwhile shipment.
const DefaultMinShipmentUnits = 10

// UpdateMinShipment recomputes the shipment threshold: the given number of
// whole units, but never more than a quarter of capacity and never less than one unit.
func (b *Buffer) UpdateMinShipment(units int64) {
	ms := Units(units)
	if q := b.Max / 4; ms > q {
		ms = q
	}
	if ms < Units(1) {
		ms = Units(1)
	}
	b.MinShipment = ms
}

// Free returns the remaining capacity (never negative).
func (b *Buffer) Free() int64 {
	if b.Quantity >= b.Max {
		return 0
	}
	return b.Max - b.Quantity
}

// Full reports whether the buffer is at or over capacity.
func (b *Buffer) Full() bool {
	return b.Quantity >= b.Max
}

// FillPermille returns the fill level in 1/1000.
func (b *Buffer) FillPermille() int64 {
	if b.Max <= 0 {
		return 0
	}
	return b.Quantity * 1000 / b.Max
}

// Book adds amount to the current month's statistic.
func (b *Buffer) Book(s Stat, amount int64) {
	b.Stats[0][s] += amount
}

// Stat returns a statistic of the given month (0 = current).
func (b *Buffer) Stat(month int, s Stat) int64 {
	if month < 0 || month >= MaxMonths {
		return 0
	}
	return b.Stats[month][s]
}

// AccumulateStorage weights the current quantity by elapsed time for the
// average-storage statistic.
func (b *Buffer) AccumulateStorage(deltaT int64) {
	b.storageSum += b.Quantity * deltaT
	b.storageTime += deltaT
}

// RollMonth closes the current month and shifts the history by one slot.
func (b *Buffer) RollMonth() {
	b.closeStorage()
	for m := MaxMonths - 1; m > 0; m-- {
		b.Stats[m] = b.Stats[m-1]
	}
	b.Stats[0] = [StatCount]int64{}
	b.Stats[0][StatStorage] = b.Quantity
	b.Stats[0][StatTransit] = b.Transit
}

func (b *Buffer) closeStorage() {
	if b.storageTime > 0 {
		b.Stats[0][StatStorage] = b.storageSum / b.storageTime
	}
	b.storageSum = 0
	b.storageTime = 0
}

// Clamp repairs out-of-range quantities from older saves: negatives become
// zero and quantities above capacity are cut to capacity.
func (b *Buffer) Clamp() (repaired bool) {
	if b.Quantity < 0 {
		b.Quantity = 0
		repaired = true
	}
	if b.Max > 0 && b.Quantity > b.Max {
		b.Quantity = b.Max
		repaired = true
	}
	if b.Transit < 0 {
		b.Transit = 0
		repaired = true
	}
	return repaired
}
