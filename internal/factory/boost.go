package factory

import (
	"math"

	"github.com/talgya/mini-industry/internal/economy"
)

// SlotCount is the number of rolling arrival statistics slots.
const SlotCount = 8

// ArrivalKind selects the boost category of an arrival.
type ArrivalKind uint8

const (
	ArrivalPassengers ArrivalKind = iota
	ArrivalMail
)

// ArrivalStats is a ring of per-slot arrival counts. The aggregate covers
// every slot, and active counts slots that have been in use so a fresh unit
// is not judged against a full window.
type ArrivalStats struct {
	Slots     [SlotCount]int64 `json:"slots"`
	Current   int              `json:"current"`
	Active    int              `json:"active"`
	Aggregate int64            `json:"aggregate"`
	TimerMs   int64            `json:"timer_ms"`
	Boost     int64            `json:"boost"`
}

// maxArrivals bounds the aggregate. Every slot is at most the aggregate, so
// neither can overflow.
const maxArrivals = math.MaxInt64 / 2

func (a *ArrivalStats) add(n int64) {
	n = max(min(n, maxArrivals-a.Aggregate), 0)
	a.Slots[a.Current] += n
	a.Aggregate += n
}

// advance moves the window forward by deltaT and reports whether at least
// one slot was closed.
func (a *ArrivalStats) advance(deltaT, slotMs int64) bool {
	if slotMs <= 0 {
		return false
	}
	a.TimerMs += deltaT
	moved := false
	for a.TimerMs >= slotMs {
		a.TimerMs -= slotMs
		a.Current = (a.Current + 1) % SlotCount
		a.Aggregate -= a.Slots[a.Current]
		a.Slots[a.Current] = 0
		if a.Active < SlotCount {
			a.Active++
		}
		moved = true
	}
	return moved
}

// recompute derives the boost from arrivals against expected demand, capped at coef.
func (a *ArrivalStats) recompute(coef, perSlotDemand int64) {
	if coef <= 0 || perSlotDemand <= 0 {
		a.Boost = 0
		return
	}
	active := int64(max(a.Active, 1))
	expected := perSlotDemand * active
	if a.Aggregate >= expected {
		a.Boost = coef
		return
	}
	a.Boost = coef * a.Aggregate / expected
}

// Arrive records passengers or mail reaching the unit and refreshes the boost.
func (u *Unit) Arrive(kind ArrivalKind, n int64) {
	if n <= 0 || u.placeholder {
		return
	}
	switch kind {
	case ArrivalPassengers:
		u.pax.add(n)
		u.pax.recompute(int64(u.desc.PaxBoost), u.scaledPaxDemand)
	case ArrivalMail:
		u.mail.add(n)
		u.mail.recompute(int64(u.desc.MailBoost), u.scaledMailDemand)
	}
}

func (u *Unit) advanceArrivals(deltaT int64) {
	if u.pax.advance(deltaT, u.settings.ArrivalSlotMs) {
		u.pax.recompute(int64(u.desc.PaxBoost), u.scaledPaxDemand)
	}
	if u.mail.advance(deltaT, u.settings.ArrivalSlotMs) {
		u.mail.recompute(int64(u.desc.MailBoost), u.scaledMailDemand)
	}
}

// SetPowerSatisfaction records the share of power demand the grid met last
// step, in economy.BoostBits (BoostOne = fully supplied).
func (u *Unit) SetPowerSatisfaction(ratio int64) {
	u.powerSatisfaction = economy.Clamp(ratio, 0, economy.BoostOne)
}

// updateElectricBoost applies the satisfaction to the electricity boost. The
// modern mode rate-limits increases but drops immediately.
func (u *Unit) updateElectricBoost() {
	coef := int64(u.desc.ElectricBoost)
	if coef <= 0 || u.desc.ElectricityProducer {
		u.electricBoost = 0
		return
	}
	target := coef * u.powerSatisfaction >> economy.BoostBits
	if u.settings.Accounting == AccountingLegacy || target <= u.electricBoost {
		u.electricBoost = target
		return
	}
	u.electricBoost = min(target, u.electricBoost+u.settings.PowerBoostMaxDelta)
}

// ElectricBoost, PaxBoost and MailBoost return the current boost components.
func (u *Unit) ElectricBoost() int64 { return u.electricBoost }
func (u *Unit) PaxBoost() int64      { return u.pax.Boost }
func (u *Unit) MailBoost() int64     { return u.mail.Boost }

// Boost is the total production multiplier in economy.BoostBits.
func (u *Unit) Boost() int64 {
	return economy.BoostOne + u.electricBoost + u.pax.Boost + u.mail.Boost
}
