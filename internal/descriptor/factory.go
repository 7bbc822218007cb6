// Package descriptor holds the immutable factory templates shared by every
// production unit built from them, and the catalog they are looked up in.
package descriptor

import (
	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/world"
)

// Placement selects which site rules apply when building a factory.
type Placement uint8

const (
	PlaceLand Placement = iota
	PlaceWater
	PlaceCity
	PlaceRiver
	PlaceShore
	PlaceForest
)

var placementNames = [...]string{"land", "water", "city", "river", "shore", "forest"}

func (p Placement) String() string {
	if int(p) < len(placementNames) {
		return placementNames[p]
	}
	return "unknown"
}

// ParsePlacement maps a catalog string onto a placement.
func ParsePlacement(s string) (Placement, bool) {
	for i, n := range placementNames {
		if n == s {
			return Placement(i), true
		}
	}
	return PlaceLand, false
}

// Supply is an accepted input good.
type Supply struct {
	Goods economy.GoodsID `yaml:"goods" json:"goods" validate:"required"`
	// Capacity in whole units at the descriptor's base productivity.
	Capacity int `yaml:"capacity" json:"capacity" validate:"min=1"`
	// Consumption per produced unit in economy.FactorBits fixed point.
	Consumption int `yaml:"consumption" json:"consumption" validate:"min=1"`
}

// Product is a produced output good.
type Product struct {
	Goods    economy.GoodsID `yaml:"goods" json:"goods" validate:"required"`
	Capacity int             `yaml:"capacity" json:"capacity" validate:"min=1"`
	// Factor is the amount produced per base unit in economy.FactorBits fixed point.
	Factor int `yaml:"factor" json:"factor" validate:"min=1"`
}

// FieldClass is one kind of field a factory may spawn.
type FieldClass struct {
	Name       string `yaml:"name" json:"name" validate:"required"`
	Production int    `yaml:"production" json:"production" validate:"min=0"`
	Capacity   int    `yaml:"capacity" json:"capacity" validate:"min=0"`
	Weight     int    `yaml:"weight" json:"weight" validate:"min=1"`
}

// FieldGroup describes field growth for a factory.
type FieldGroup struct {
	// Probability of spawning a field per production interval, in 1/10000.
	Probability int          `yaml:"probability" json:"probability" validate:"min=0,max=10000"`
	MaxFields   int          `yaml:"max_fields" json:"max_fields" validate:"min=0"`
	MinFields   int          `yaml:"min_fields" json:"min_fields" validate:"min=0"`
	StartFields int          `yaml:"start_fields" json:"start_fields" validate:"min=0"`
	Classes     []FieldClass `yaml:"classes" json:"classes" validate:"dive"`
}

// Factory is an immutable factory template.
type Factory struct {
	Name      string           `yaml:"name" json:"name" validate:"required"`
	Placement Placement        `yaml:"-" json:"placement"`
	Climates  world.ClimateSet `yaml:"-" json:"climates"`
	Size      world.Size       `yaml:"size" json:"size"`

	// Productivity is the base production per production interval; Range
	// is the random extra added at construction.
	Productivity int `yaml:"productivity" json:"productivity" validate:"min=1"`
	Range        int `yaml:"range" json:"range" validate:"min=0"`

	// Chance is the construction likelihood weight.
	Chance int `yaml:"chance" json:"chance" validate:"min=0"`

	// Boost maxima in economy.BoostBits fixed point.
	ElectricBoost int `yaml:"electric_boost" json:"electric_boost" validate:"min=0"`
	PaxBoost      int `yaml:"pax_boost" json:"pax_boost" validate:"min=0"`
	MailBoost     int `yaml:"mail_boost" json:"mail_boost" validate:"min=0"`

	// Demands relative to base productivity; zero disables the boost source.
	ElectricDemand int `yaml:"electric_demand" json:"electric_demand" validate:"min=0"`
	PaxDemand      int `yaml:"pax_demand" json:"pax_demand" validate:"min=0"`
	MailDemand     int `yaml:"mail_demand" json:"mail_demand" validate:"min=0"`

	// ElectricityProducer marks power plants.
	ElectricityProducer bool `yaml:"electricity_producer" json:"electricity_producer"`

	// Monthly expansion: probability in 1/10000, minimum and random range added, cap on events.
	ExpandProbability int `yaml:"expand_probability" json:"expand_probability" validate:"min=0,max=10000"`
	ExpandMinimum     int `yaml:"expand_minimum" json:"expand_minimum" validate:"min=0"`
	ExpandRange       int `yaml:"expand_range" json:"expand_range" validate:"min=0"`
	ExpandTimes       int `yaml:"expand_times" json:"expand_times" validate:"min=0"`

	Supplies []Supply    `yaml:"supplies" json:"supplies" validate:"dive"`
	Products []Product   `yaml:"products" json:"products" validate:"dive"`
	Fields   *FieldGroup `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// SupplyIndex returns the index of the input accepting goods, or -1.
func (f *Factory) SupplyIndex(goods economy.GoodsID) int {
	for i := range f.Supplies {
		if f.Supplies[i].Goods == goods {
			return i
		}
	}
	return -1
}

// ProductIndex returns the index of the output producing goods, or -1.
func (f *Factory) ProductIndex(goods economy.GoodsID) int {
	for i := range f.Products {
		if f.Products[i].Goods == goods {
			return i
		}
	}
	return -1
}

// Produces reports whether the factory outputs goods.
func (f *Factory) Produces(goods economy.GoodsID) bool {
	return f.ProductIndex(goods) >= 0
}

// IsConsumer reports whether the factory has inputs but no outputs.
func (f *Factory) IsConsumer() bool {
	return len(f.Supplies) > 0 && len(f.Products) == 0
}

// IsSource reports whether the factory has outputs but no inputs.
func (f *Factory) IsSource() bool {
	return len(f.Supplies) == 0 && len(f.Products) > 0
}

// HasFields reports whether the factory can grow fields.
func (f *Factory) HasFields() bool {
	return f.Fields != nil && len(f.Fields.Classes) > 0
}
