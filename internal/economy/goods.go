// Package economy provides goods types, fixed-point quantities and the
// storage buffers owned by production units.
package economy

import "fmt"

// GoodsID identifies a goods type. Identity is by name so that saves and
// descriptor sets can be matched regardless of load order.
type GoodsID string

// Special goods that never travel as freight.
const (
	GoodsNone        GoodsID = "None"
	GoodsPassengers  GoodsID = "Passagiere"
	GoodsMail        GoodsID = "Post"
	GoodsElectricity GoodsID = "Electricity"
)

// Goods describes one goods type.
type Goods struct {
	ID       GoodsID `yaml:"id" json:"id" validate:"required"`
	Category string  `yaml:"category" json:"category"`
	Weight   int     `yaml:"weight" json:"weight" validate:"min=0"` // kg per unit
	Value    int     `yaml:"value" json:"value" validate:"min=0"`   // base revenue per unit
}

// IsFreight reports whether the goods type is routed as cargo.
func (g GoodsID) IsFreight() bool {
	switch g {
	case GoodsNone, GoodsPassengers, GoodsMail, GoodsElectricity, "":
		return false
	}
	return true
}

// Table is the set of known goods types keyed by identity.
type Table struct {
	byID  map[GoodsID]*Goods
	order []GoodsID
}

// NewTable creates a goods table containing the special goods.
func NewTable() *Table {
	t := &Table{byID: make(map[GoodsID]*Goods)}
	for _, id := range []GoodsID{GoodsNone, GoodsPassengers, GoodsMail, GoodsElectricity} {
		t.byID[id] = &Goods{ID: id, Category: "special"}
		t.order = append(t.order, id)
	}
	return t
}

// Add registers a goods type. Re-adding an identical id replaces it.
func (t *Table) Add(g Goods) error {
	if g.ID == "" {
		return fmt.Errorf("goods: empty id")
	}
	if _, ok := t.byID[g.ID]; !ok {
		t.order = append(t.order, g.ID)
	}
	gc := g
	t.byID[g.ID] = &gc
	return nil
}

// Get returns the goods type or nil.
func (t *Table) Get(id GoodsID) *Goods {
	return t.byID[id]
}

// Has reports whether the id is known.
func (t *Table) Has(id GoodsID) bool {
	_, ok := t.byID[id]
	return ok
}

// IDs returns all goods ids in registration order.
func (t *Table) IDs() []GoodsID {
	out := make([]GoodsID, len(t.order))
	copy(out, t.order)
	return out
}
