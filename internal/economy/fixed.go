// Fixed-point arithmetic shared by buffers, production and boosts.
// All quantities that touch storage are integers with fractional bits so
// that stepping stays deterministic across platforms.
package economy

const (
	// PrecisionBits is the number of fractional bits carried by stored quantities.
	PrecisionBits = 10
	// FactorBits is the fixed point of per-goods production/consumption factors.
	FactorBits = 8
	// FactorOne is a production factor of 1.0.
	FactorOne = 1 << FactorBits
	// BoostBits is the fixed point of boost factors. BoostOne is the baseline (no boost).
	BoostBits = 8
	BoostOne  = 1 << BoostBits
	// DeltaTBits sets the production interval: one nominal production unit is
	// made every 1<<DeltaTBits milliseconds of simulated time.
	DeltaTBits = 10
	DeltaT     = 1 << DeltaTBits
)

// Units converts whole goods units into the stored fixed point.
func Units(n int64) int64 {
	return n << PrecisionBits
}

// WholeUnits converts a stored quantity back into whole units, rounding down.
func WholeUnits(q int64) int64 {
	return q >> PrecisionBits
}

// ScaleFloor multiplies v by a factor in FactorBits fixed point and rounds down.
// Used for amounts that end up stored.
func ScaleFloor(v, factor int64) int64 {
	return (v * factor) >> FactorBits
}

// ScaleCeil multiplies v by a factor in FactorBits fixed point and rounds up.
// Used for amounts that must be taken from storage or ordered.
func ScaleCeil(v, factor int64) int64 {
	return (v*factor + FactorOne - 1) >> FactorBits
}

// Unscale converts a per-goods quantity back into base production units,
// rounding down (how much production the quantity can support).
func Unscale(q, factor int64) int64 {
	if factor <= 0 {
		return 0
	}
	return (q << FactorBits) / factor
}

// DivCeil is integer division rounding towards positive infinity for non-negative operands.
func DivCeil(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
