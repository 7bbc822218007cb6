package descriptor

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"lukechampine.com/blake3"

	"github.com/talgya/mini-industry/internal/economy"
)

// ErrUnknownGoods is returned when a descriptor references an unregistered goods type.
var ErrUnknownGoods = errors.New("unknown goods")

// ErrUnknownDescriptor is returned for lookups of names not in the catalog.
var ErrUnknownDescriptor = errors.New("unknown descriptor")

// Catalog is the descriptor table of one simulation. It is immutable after loading.
type Catalog struct {
	Goods *economy.Table

	byName map[string]*Factory
	names  []string
}

// NewCatalog creates an empty catalog over the given goods table.
func NewCatalog(goods *economy.Table) *Catalog {
	if goods == nil {
		goods = economy.NewTable()
	}
	return &Catalog{
		Goods:  goods,
		byName: make(map[string]*Factory),
	}
}

var validate = validator.New()

// Validate checks a descriptor against the catalog's goods table.
// Descriptors are validated before any factory is built from them.
func (c *Catalog) Validate(f *Factory) error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s (value %v)", e.Namespace(), e.Tag(), e.Value()))
			}
			return fmt.Errorf("descriptor %q: %s", f.Name, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("descriptor %q: %w", f.Name, err)
	}
	if f.Size.W < 1 || f.Size.H < 1 {
		return fmt.Errorf("descriptor %q: size %dx%d", f.Name, f.Size.W, f.Size.H)
	}
	seen := make(map[economy.GoodsID]bool)
	for _, s := range f.Supplies {
		if !c.Goods.Has(s.Goods) {
			return fmt.Errorf("descriptor %q supply %q: %w", f.Name, s.Goods, ErrUnknownGoods)
		}
		if seen[s.Goods] {
			return fmt.Errorf("descriptor %q: duplicate supply %q", f.Name, s.Goods)
		}
		seen[s.Goods] = true
	}
	seen = make(map[economy.GoodsID]bool)
	for _, p := range f.Products {
		if !c.Goods.Has(p.Goods) {
			return fmt.Errorf("descriptor %q product %q: %w", f.Name, p.Goods, ErrUnknownGoods)
		}
		if seen[p.Goods] {
			return fmt.Errorf("descriptor %q: duplicate product %q", f.Name, p.Goods)
		}
		seen[p.Goods] = true
	}
	if f.Fields != nil && f.Fields.MinFields > f.Fields.MaxFields {
		return fmt.Errorf("descriptor %q: min_fields %d > max_fields %d", f.Name, f.Fields.MinFields, f.Fields.MaxFields)
	}
	return nil
}

// Add validates and registers a descriptor. Names are unique.
func (c *Catalog) Add(f *Factory) error {
	if err := c.Validate(f); err != nil {
		return err
	}
	if _, dup := c.byName[f.Name]; dup {
		return fmt.Errorf("descriptor %q: duplicate name", f.Name)
	}
	c.byName[f.Name] = f
	i := sort.SearchStrings(c.names, f.Name)
	c.names = append(c.names, "")
	copy(c.names[i+1:], c.names[i:])
	c.names[i] = f.Name
	return nil
}

// Get returns a descriptor by name, or nil.
func (c *Catalog) Get(name string) *Factory {
	return c.byName[name]
}

// Len returns the number of descriptors.
func (c *Catalog) Len() int {
	return len(c.names)
}

// All returns every descriptor ordered by name.
func (c *Catalog) All() []*Factory {
	out := make([]*Factory, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.byName[n])
	}
	return out
}

// ProducersOf returns every descriptor producing goods, ordered by name.
func (c *Catalog) ProducersOf(goods economy.GoodsID) []*Factory {
	var out []*Factory
	for _, n := range c.names {
		if f := c.byName[n]; f.Produces(goods) {
			out = append(out, f)
		}
	}
	return out
}

// EndConsumers returns descriptors with inputs and no outputs: the roots of supply chains.
func (c *Catalog) EndConsumers() []*Factory {
	var out []*Factory
	for _, n := range c.names {
		if f := c.byName[n]; f.IsConsumer() {
			out = append(out, f)
		}
	}
	return out
}

// Digest hashes the canonical binary encoding of every descriptor. Reloading
// an identical descriptor set yields the same digest.
func (c *Catalog) Digest() string {
	var buf bytes.Buffer
	for _, n := range c.names {
		if err := WriteRecord(&buf, c.byName[n]); err != nil {
			// Only out-of-range values fail to encode; hash their name instead.
			buf.WriteString(n)
		}
	}
	sum := blake3.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
