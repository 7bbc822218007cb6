package descriptor

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/world"
)

// climateNames maps catalog spellings onto climates.
var climateNames = map[string]world.Climate{
	"water":         world.ClimateWater,
	"desert":        world.ClimateDesert,
	"tropic":        world.ClimateTropic,
	"mediterranean": world.ClimateMediterranean,
	"temperate":     world.ClimateTemperate,
	"tundra":        world.ClimateTundra,
	"rocky":         world.ClimateRocky,
	"arctic":        world.ClimateArctic,
}

type yamlFactory struct {
	Factory   `yaml:",inline"`
	Placement string   `yaml:"placement"`
	Climates  []string `yaml:"climates"`
}

type yamlCatalog struct {
	Goods     []economy.Goods `yaml:"goods"`
	Factories []yamlFactory   `yaml:"factories"`
}

// LoadYAML reads goods and factory descriptors from a YAML document into c.
// Goods are registered first so factories may reference goods from the same file.
func LoadYAML(r io.Reader, c *Catalog) (int, error) {
	var doc yamlCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("decode catalog: %w", err)
	}

	for _, g := range doc.Goods {
		if err := c.Goods.Add(g); err != nil {
			return 0, err
		}
	}

	added := 0
	var errs []error
	for i := range doc.Factories {
		yf := &doc.Factories[i]
		f := yf.Factory
		if yf.Placement != "" {
			p, ok := ParsePlacement(yf.Placement)
			if !ok {
				errs = append(errs, fmt.Errorf("descriptor %q: placement %q", f.Name, yf.Placement))
				continue
			}
			f.Placement = p
		}
		f.Climates = world.AllClimates
		if len(yf.Climates) > 0 {
			f.Climates = 0
			bad := false
			for _, name := range yf.Climates {
				cl, ok := climateNames[name]
				if !ok {
					errs = append(errs, fmt.Errorf("descriptor %q: climate %q", f.Name, name))
					bad = true
					break
				}
				f.Climates |= world.ClimatesOf(cl)
			}
			if bad {
				continue
			}
		}
		if f.Size.W == 0 && f.Size.H == 0 {
			f.Size = world.Size{W: 1, H: 1}
		}
		if err := c.Add(&f); err != nil {
			errs = append(errs, err)
			continue
		}
		added++
	}
	return added, errors.Join(errs...)
}

// LoadFile loads a YAML catalog from disk.
func LoadFile(path string, c *Catalog) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := LoadYAML(f, c)
	if err != nil {
		return n, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}
