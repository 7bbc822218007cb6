package factory

import (
	"math"

	"github.com/talgya/mini-industry/internal/economy"
)

// addDemand raises an input's outstanding order, never past the room left
// once stock and goods en route arrive.
func (u *Unit) addDemand(b *economy.Buffer, amount int64) {
	b.Demand += amount
	if limit := b.Max - b.Quantity - b.Transit; b.Demand > limit {
		b.Demand = limit
	}
}

// IsWanted reports whether the unit currently orders goods.
func (u *Unit) IsWanted(goods economy.GoodsID) bool {
	if u.placeholder {
		return false
	}
	b := u.Input(goods)
	if b == nil {
		return false
	}
	if u.settings.Accounting == AccountingModern {
		return b.Demand > 0
	}
	return b.Quantity < b.Max && (b.MaxTransit == 0 || b.Transit < b.MaxTransit)
}

// orderLimit is the most whole units worth sending in one batch: the
// outstanding demand in the modern mode, unbounded in the legacy mode.
func (u *Unit) orderLimit(goods economy.GoodsID) int64 {
	b := u.Input(goods)
	if b == nil {
		return 0
	}
	if u.settings.Accounting == AccountingModern {
		return economy.WholeUnits(max(b.Demand, 0))
	}
	return math.MaxInt64
}

// Wants lists the goods the unit currently orders, in input order.
func (u *Unit) Wants() []economy.GoodsID {
	var out []economy.GoodsID
	for _, b := range u.inputs {
		if u.IsWanted(b.Goods) {
			out = append(out, b.Goods)
		}
	}
	return out
}

// GoodsDeparted is called when a shipment towards this unit leaves its supplier.
func (u *Unit) GoodsDeparted(goods economy.GoodsID, amount int64) {
	b := u.Input(goods)
	if b == nil || amount <= 0 {
		return
	}
	b.Transit += amount
	if u.settings.Accounting == AccountingModern {
		b.Demand -= amount
	}
}

// Recalled undoes GoodsDeparted for a batch taken back from a stop.
func (u *Unit) Recalled(goods economy.GoodsID, amount int64) {
	b := u.Input(goods)
	if b == nil || amount <= 0 {
		return
	}
	b.Transit = max(b.Transit-amount, 0)
	if u.settings.Accounting == AccountingModern {
		b.Demand += amount
	}
}

// Deliver stores goods arriving at the unit and returns the amount accepted.
// The modern mode refuses anything past capacity; the legacy mode accepts
// transient overflow, which loading later clamps.
func (u *Unit) Deliver(goods economy.GoodsID, amount int64) int64 {
	b := u.Input(goods)
	if b == nil || amount <= 0 {
		return 0
	}
	b.Transit = max(b.Transit-amount, 0)
	accepted := amount
	if u.settings.Accounting == AccountingModern || u.placeholder {
		accepted = min(amount, b.Free())
	}
	b.Quantity += accepted
	b.Book(economy.StatIn, accepted)
	return accepted
}

// ReturnOutput puts goods taken back from transport into an output buffer,
// up to its capacity. It returns the amount stored.
func (u *Unit) ReturnOutput(goods economy.GoodsID, amount int64) int64 {
	b := u.Output(goods)
	if b == nil || amount <= 0 {
		return 0
	}
	stored := min(amount, b.Free())
	b.Quantity += stored
	b.Book(economy.StatOut, -stored)
	return stored
}
