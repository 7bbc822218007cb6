package factory

// Status summarises a unit's supply situation for display.
type Status uint8

const (
	StatusNothing Status = iota
	StatusGood
	StatusMedium
	StatusBad
	StatusInactive
)

var statusNames = [...]string{"nothing", "good", "medium", "bad", "inactive"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// cloggedPermille is the output fill level from which an output counts as backed up.
const cloggedPermille = 750

// classify derives the status: starving inputs (below one minimum shipment)
// and clogged outputs are bad together and medium alone.
func (u *Unit) classify() Status {
	if len(u.inputs) == 0 && len(u.outputs) == 0 {
		return StatusNothing
	}
	if u.placeholder || (u.settings.InactiveAfterMs > 0 && u.idleMs >= u.settings.InactiveAfterMs) {
		return StatusInactive
	}
	starving := 0
	for _, b := range u.inputs {
		if b.Quantity < b.MinShipment {
			starving++
		}
	}
	clogged := 0
	for _, b := range u.outputs {
		if b.FillPermille() >= cloggedPermille {
			clogged++
		}
	}
	switch {
	case starving > 0 && clogged > 0:
		return StatusBad
	case starving > 0 || clogged > 0:
		return StatusMedium
	}
	return StatusGood
}
