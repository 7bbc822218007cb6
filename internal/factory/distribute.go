package factory

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/transport"
)

// Distributor moves finished goods from units onto the transport network.
type Distributor struct {
	Registry *Registry
	Network  transport.Network
}

// Announce publishes every unit's current orders to the network.
func (d *Distributor) Announce() {
	for _, u := range d.Registry.order {
		for _, in := range u.inputs {
			d.Network.Announce(u.pos, in.Goods, u.IsWanted(in.Goods))
		}
	}
}

// Run offers each unit's outputs for shipment and returns the number of shipments made.
func (d *Distributor) Run() int {
	n := 0
	for _, u := range d.Registry.order {
		n += d.Distribute(u)
	}
	return n
}

// Distribute ships every output holding at least a minimum shipment, once
// per distribution interval.
func (d *Distributor) Distribute(u *Unit) int {
	if u.placeholder || u.distMs < u.settings.DistributionIntervalMs {
		return 0
	}
	ready := false
	for _, out := range u.outputs {
		if out.Quantity >= out.MinShipment {
			ready = true
			break
		}
	}
	if !ready {
		return 0
	}
	u.distMs = 0

	n := 0
	for _, out := range u.outputs {
		if out.Quantity >= out.MinShipment && d.ship(u, out) {
			n++
		}
	}
	return n
}

type candidate struct {
	stop      transport.StopID
	consumer  *Unit
	free      int64
	ratio     int64
	waiting   int64
	evalOrder int
}

// candidates lists every stop and consumer pair that can take the goods now,
// consumers visited in round-robin order.
func (d *Distributor) candidates(u *Unit, goods economy.GoodsID, stops []transport.StopID) []candidate {
	var out []candidate
	nc := len(u.consumers)
	for k := 0; k < nc; k++ {
		c := d.Registry.units[u.consumers[(u.rrOffset+k)%nc]]
		if c == nil || !c.IsWanted(goods) {
			continue
		}
		for _, st := range stops {
			if !d.Network.CanRoute(st, c.pos, goods) {
				continue
			}
			capacity, stored := d.Network.Capacity(st, goods)
			free := max(capacity-stored, 0)
			var ratio int64
			if capacity > 0 {
				ratio = free * 1000 / capacity
			}
			out = append(out, candidate{
				stop:      st,
				consumer:  c,
				free:      free,
				ratio:     ratio,
				waiting:   d.Network.WaitingFor(st, goods, c.pos),
				evalOrder: len(out),
			})
		}
	}
	// Emptiest stop first, then the destination with the least already waiting.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ratio != out[j].ratio {
			return out[i].ratio > out[j].ratio
		}
		if out[i].waiting != out[j].waiting {
			return out[i].waiting < out[j].waiting
		}
		return out[i].evalOrder < out[j].evalOrder
	})
	return out
}

// ship sends one batch of an output to the best candidate. When the best
// stop has no room for a minimum shipment, goods for other destinations wait
// there and none wait for ours, the largest other destination's batch is
// recalled to make room.
func (d *Distributor) ship(u *Unit, out *economy.Buffer) bool {
	units := economy.WholeUnits(out.Quantity)
	if units <= 0 || len(u.consumers) == 0 {
		return false
	}
	stops := d.Network.StopsAt(u.Tiles())
	if len(stops) == 0 {
		return false
	}
	cands := d.candidates(u, out.Goods, stops)
	if len(cands) == 0 {
		return false
	}

	for _, c := range cands {
		n := min(units, c.free, c.consumer.orderLimit(out.Goods))
		if n <= 0 {
			continue
		}
		if d.submit(u, out, c, n) {
			return true
		}
	}

	// Recall only for a crowded stop, a destination with nothing waiting and
	// a consumer that would take at least one unit.
	best := cands[0]
	if economy.Units(best.free) >= out.MinShipment || best.waiting > 0 || best.consumer.orderLimit(out.Goods) <= 0 {
		return false
	}
	if !d.Network.HasWaitingOther(best.stop, out.Goods, best.consumer.pos) {
		return false
	}
	victim, ok := d.Network.Recall(best.stop, out.Goods, best.consumer.pos)
	if !ok {
		return false
	}
	d.restore(victim)
	capacity, stored := d.Network.Capacity(best.stop, out.Goods)
	n := min(units, capacity-stored, best.consumer.orderLimit(out.Goods))
	if n <= 0 {
		return false
	}
	return d.submit(u, out, best, n)
}

func (d *Distributor) submit(u *Unit, out *economy.Buffer, c candidate, units int64) bool {
	err := d.Network.Submit(c.stop, transport.Shipment{
		Goods:  out.Goods,
		Amount: units,
		From:   u.pos,
		To:     c.consumer.pos,
	})
	if err != nil {
		if !errors.Is(err, transport.ErrNoRoute) && !errors.Is(err, transport.ErrStopFull) {
			slog.Warn("shipment rejected", "from", u.pos, "to", c.consumer.pos, "goods", out.Goods, "error", err)
		}
		return false
	}
	amount := economy.Units(units)
	out.Quantity -= amount
	out.Book(economy.StatOut, amount)
	c.consumer.GoodsDeparted(out.Goods, amount)
	if len(u.consumers) > 0 {
		u.rrOffset = (u.rrOffset + 1) % len(u.consumers)
	}
	return true
}

// restore returns a recalled batch to its supplier and undoes the
// consumer's in-transit or demand bookkeeping.
func (d *Distributor) restore(s transport.Shipment) {
	amount := economy.Units(s.Amount)
	if c := d.Registry.units[s.To]; c != nil {
		c.Recalled(s.Goods, amount)
	}
	if origin := d.Registry.units[s.From]; origin != nil {
		if stored := origin.ReturnOutput(s.Goods, amount); stored < amount {
			slog.Debug("recalled goods exceed supplier storage", "supplier", s.From, "goods", s.Goods, "lost", amount-stored)
		}
	}
}
