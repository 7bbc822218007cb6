// Production strategies. Every unit picks exactly one at construction and
// keeps it for its lifetime; the accounting mode is fixed per save.
package factory

import (
	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/economy"
)

// Accounting selects how inputs are ordered.
type Accounting uint8

const (
	// AccountingLegacy orders while storage and in-transit amounts are below their caps.
	AccountingLegacy Accounting = iota
	// AccountingModern ("JIT2") orders against a per-input demand buffer.
	AccountingModern
)

func (a Accounting) String() string {
	if a == AccountingModern {
		return "jit2"
	}
	return "legacy"
}

// ParseAccounting maps a config string onto an accounting mode.
func ParseAccounting(s string) (Accounting, bool) {
	switch s {
	case "legacy", "classic":
		return AccountingLegacy, true
	case "jit2", "modern":
		return AccountingModern, true
	}
	return AccountingLegacy, false
}

// Policy is the control-flow variant a unit runs.
type Policy uint8

const (
	PolicyNone Policy = iota
	PolicyElectricSource
	PolicyElectricConsumerLegacy
	PolicyProducerLegacy
	PolicyProducerModern
	PolicyConsumerLegacy
	PolicyConsumerModern
	PolicyCombinedLegacy
	PolicyCombinedModern
)

var policyNames = [...]string{
	"none", "electric-source", "electric-consumer-legacy",
	"producer-legacy", "producer-jit2",
	"consumer-legacy", "consumer-jit2",
	"combined-legacy", "combined-jit2",
}

func (p Policy) String() string {
	if int(p) < len(policyNames) {
		return policyNames[p]
	}
	return "unknown"
}

// SelectPolicy picks the strategy for a descriptor under an accounting mode.
func SelectPolicy(d *descriptor.Factory, acc Accounting) Policy {
	hasIn := len(d.Supplies) > 0
	hasOut := len(d.Products) > 0
	modern := acc == AccountingModern

	switch {
	case !hasIn && !hasOut:
		if d.ElectricityProducer {
			return PolicyElectricSource
		}
		return PolicyNone
	case !hasIn:
		if modern {
			return PolicyProducerModern
		}
		return PolicyProducerLegacy
	case !hasOut:
		if modern {
			return PolicyConsumerModern
		}
		if d.ElectricityProducer {
			return PolicyElectricConsumerLegacy
		}
		return PolicyConsumerLegacy
	}
	if modern {
		return PolicyCombinedModern
	}
	return PolicyCombinedLegacy
}

// strategy advances a unit by one step worth of raw production capacity.
// raw and the returned amounts are base production units in storage fixed
// point (factor 1.0). consumed is the achieved consumption rate, produced the
// achieved production rate.
type strategy interface {
	advance(u *Unit, raw int64) (consumed, produced int64)
}

func strategyFor(p Policy) strategy {
	switch p {
	case PolicyElectricSource:
		return sourceStrategy{}
	case PolicyElectricConsumerLegacy:
		return syncConsumerStrategy{}
	case PolicyProducerLegacy:
		return producerStrategy{ramp: legacyRamp, clip: clipLegacy}
	case PolicyProducerModern:
		return producerStrategy{ramp: modernRamp, clip: clipModern}
	case PolicyConsumerLegacy:
		return consumerStrategy{}
	case PolicyConsumerModern:
		return consumerStrategy{modern: true}
	case PolicyCombinedLegacy:
		return combinedStrategy{ramp: legacyRamp, clip: clipLegacy}
	case PolicyCombinedModern:
		return combinedStrategy{ramp: modernRamp, clip: clipModern, modern: true}
	}
	return sourceStrategy{}
}

// rampFunc scales raw capacity for an output by how full it is. It must be
// monotonic: a fuller buffer never yields more.
type rampFunc func(b *economy.Buffer, raw int64) int64

// clipFunc returns the amount that may be added to an output without
// exceeding its cap. Never negative.
type clipFunc func(b *economy.Buffer, amount int64) int64

// legacyRamp runs at full rate until the buffer is 75% full, then falls off
// linearly to zero at capacity.
func legacyRamp(b *economy.Buffer, raw int64) int64 {
	if b.Max <= 0 || b.Quantity >= b.Max {
		return 0
	}
	if b.Quantity*4 <= b.Max*3 {
		return raw
	}
	return raw * (b.Max - b.Quantity) * 4 / b.Max
}

// rampMultiplier sets the modern ramp width in minimum shipments.
const rampMultiplier = 4

// modernRamp runs at full rate while free space exceeds a few minimum
// shipments and then eases out on a quadratic curve to zero at capacity.
func modernRamp(b *economy.Buffer, raw int64) int64 {
	free := b.Free()
	if free <= 0 {
		return 0
	}
	t := b.MinShipment * rampMultiplier
	if t <= 0 || free >= t {
		return raw
	}
	// free*(2t-free)/t² rises monotonically from 0 to 1 over [0, t].
	curve := free * (2*t - free)
	return raw * curve / (t * t)
}

// clipLegacy stops one fixed-point step below capacity so the buffer still
// reads as "filling" rather than full.
func clipLegacy(b *economy.Buffer, amount int64) int64 {
	if b.Quantity+amount >= b.Max {
		amount = b.Max - 1 - b.Quantity
	}
	if amount < 0 {
		return 0
	}
	return amount
}

func clipModern(b *economy.Buffer, amount int64) int64 {
	if b.Quantity+amount > b.Max {
		amount = b.Max - b.Quantity
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// produce puts base production p into output b through its ramp and clip and
// returns the base production actually achieved.
func produce(b *economy.Buffer, p int64, ramp rampFunc, clip clipFunc) int64 {
	return store(b, ramp(b, p), clip)
}

// store adds base production want to output b through its clip and returns
// the base production actually achieved.
func store(b *economy.Buffer, want int64, clip clipFunc) int64 {
	if want <= 0 {
		return 0
	}
	amount := economy.ScaleFloor(want, b.Factor)
	added := clip(b, amount)
	b.Quantity += added
	b.Book(economy.StatIn, added)
	if added < amount {
		return economy.Unscale(added, b.Factor)
	}
	return want
}

// consume drains base production p from input b, clipped to what remains,
// and returns the amount taken in storage units.
func consume(b *economy.Buffer, p int64) int64 {
	need := economy.ScaleCeil(p, b.Factor)
	if need > b.Quantity {
		need = b.Quantity
	}
	if need <= 0 {
		return 0
	}
	b.Quantity -= need
	b.Book(economy.StatOut, need)
	return need
}

// scarcest returns how much base production the emptiest input supports.
func scarcest(u *Unit, raw int64) int64 {
	p := raw
	for _, in := range u.inputs {
		if s := economy.Unscale(in.Quantity, in.Factor); s < p {
			p = s
		}
	}
	return p
}

// sourceStrategy: no goods at all, always full nominal rate.
type sourceStrategy struct{}

func (sourceStrategy) advance(_ *Unit, raw int64) (int64, int64) {
	return 0, raw
}

// producerStrategy: outputs only, each output ramped by its own fill level.
type producerStrategy struct {
	ramp rampFunc
	clip clipFunc
}

func (s producerStrategy) advance(u *Unit, raw int64) (int64, int64) {
	var produced int64
	for _, out := range u.outputs {
		if p := produce(out, raw, s.ramp, s.clip); p > produced {
			produced = p
		}
	}
	return 0, produced
}

// consumerStrategy: inputs only, each drained independently. The modern
// variant scales each input by its own ramp and feeds its demand buffer.
type consumerStrategy struct {
	modern bool
}

func (s consumerStrategy) advance(u *Unit, raw int64) (int64, int64) {
	var achieved int64
	for _, in := range u.inputs {
		want := raw
		if s.modern {
			want = inputRamp(in, raw)
		}
		taken := consume(in, want)
		if s.modern {
			u.addDemand(in, economy.ScaleCeil(want, in.Factor))
		}
		if a := economy.Unscale(taken, in.Factor); a > achieved {
			achieved = a
		}
	}
	if achieved > raw {
		achieved = raw
	}
	return achieved, 0
}

// inputRamp slows consumption as an input runs dry: full rate above a few
// minimum shipments, proportional below.
func inputRamp(b *economy.Buffer, raw int64) int64 {
	t := b.MinShipment * rampMultiplier
	if t <= 0 || b.Quantity >= t {
		return raw
	}
	return raw * b.Quantity / t
}

// syncConsumerStrategy: legacy power plant with inputs. All inputs drain
// together at the rate the scarcest one allows.
type syncConsumerStrategy struct{}

func (syncConsumerStrategy) advance(u *Unit, raw int64) (int64, int64) {
	p := scarcest(u, raw)
	if p <= 0 {
		return 0, 0
	}
	for _, in := range u.inputs {
		consume(in, p)
	}
	return p, 0
}

// combinedStrategy: inputs and outputs. Outputs are joint products of one
// base production, and inputs are drained for the largest amount any output
// actually achieved.
//
// Legacy caps production at the scarcest input and runs every output
// through its ramp from there. Modern ramps first: each output asks for its
// own demand, and when the inputs cannot cover the largest demand every
// output is scaled by the same supply-to-demand ratio.
type combinedStrategy struct {
	ramp   rampFunc
	clip   clipFunc
	modern bool
}

func (s combinedStrategy) advance(u *Unit, raw int64) (int64, int64) {
	if !s.modern {
		return s.advanceLegacy(u, raw)
	}

	desired := make([]int64, len(u.outputs))
	var peak int64
	for i, out := range u.outputs {
		desired[i] = s.ramp(out, raw)
		peak = max(peak, desired[i])
	}
	// Demand follows what the outputs can take, independent of stock, and
	// is booked for every input at once.
	defer func() {
		for _, in := range u.inputs {
			u.addDemand(in, economy.ScaleCeil(peak, in.Factor))
		}
	}()

	supply := scarcest(u, raw)
	if supply <= 0 || peak <= 0 {
		return 0, 0
	}
	var actual int64
	for i, out := range u.outputs {
		share := desired[i]
		if supply < peak {
			share = desired[i] * supply / peak
		}
		actual = max(actual, store(out, share, s.clip))
	}
	if actual <= 0 {
		return 0, 0
	}
	for _, in := range u.inputs {
		consume(in, actual)
	}
	return actual, actual
}

func (s combinedStrategy) advanceLegacy(u *Unit, raw int64) (int64, int64) {
	p := scarcest(u, raw)
	if p <= 0 {
		return 0, 0
	}
	var actual int64
	for _, out := range u.outputs {
		actual = max(actual, produce(out, p, s.ramp, s.clip))
	}
	if actual <= 0 {
		return 0, 0
	}
	for _, in := range u.inputs {
		consume(in, actual)
	}
	return actual, actual
}
