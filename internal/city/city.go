// Package city provides the towns that send passengers and mail to nearby
// factories. Cities are placed with the map and otherwise only grow.
package city

import (
	"log/slog"
	"math/rand"
	"sort"

	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/world"
)

// City is a population center.
type City struct {
	ID         uint64         `json:"id"`
	Name       string         `json:"name"`
	Position   world.Coord    `json:"position"`
	Size       world.CitySize `json:"size"`
	Population uint32         `json:"population"`

	targets []target

	// Fractional trips carried between steps, in 1/(1000*economy.DeltaT).
	paxCarry  int64
	mailCarry int64
}

type target struct {
	pos    world.Coord
	weight int64
}

// Targets returns the registered factory positions ordered by weight, heaviest first.
func (c *City) Targets() []world.Coord {
	out := make([]world.Coord, len(c.targets))
	for i, t := range c.targets {
		out[i] = t.pos
	}
	return out
}

// Config tunes trip generation.
type Config struct {
	// MaxDistance is how far a factory may be from a city and still draw trips.
	MaxDistance int `mapstructure:"max_distance" validate:"min=1"`
	// PaxPerThousand and MailPerThousand are trips per 1000 inhabitants per production interval.
	PaxPerThousand  int64 `mapstructure:"pax_per_thousand" validate:"min=0"`
	MailPerThousand int64 `mapstructure:"mail_per_thousand" validate:"min=0"`
	// GrowthPermille is monthly population growth.
	GrowthPermille int64 `mapstructure:"growth_permille" validate:"min=0,max=1000"`
}

// DefaultConfig returns stock trip rates.
func DefaultConfig() Config {
	return Config{
		MaxDistance:     24,
		PaxPerThousand:  4,
		MailPerThousand: 2,
		GrowthPermille:  5,
	}
}

// Registry holds every city and routes their trips to registered factories.
type Registry struct {
	cfg    Config
	cities []*City
	byName map[string]*City

	// Lookup resolves a factory position to its unit.
	Lookup func(pos world.Coord) *factory.Unit
}

// NewRegistry creates cities from placement seeds.
func NewRegistry(cfg Config, seeds []world.CitySeed, seed int64) *Registry {
	rng := rand.New(rand.NewSource(seed))
	r := &Registry{cfg: cfg, byName: make(map[string]*City)}
	for i, s := range seeds {
		r.Add(&City{
			ID:         uint64(i + 1),
			Name:       s.Name,
			Position:   s.Coord,
			Size:       s.Size,
			Population: world.PopulationForSize(s.Size, rng),
		})
	}
	return r
}

// Add registers a city. Names are unique; a duplicate replaces nothing.
func (r *Registry) Add(c *City) bool {
	if _, dup := r.byName[c.Name]; dup {
		return false
	}
	r.cities = append(r.cities, c)
	r.byName[c.Name] = c
	return true
}

// Cities returns every city in creation order.
func (r *Registry) Cities() []*City { return r.cities }

// Get returns a city by name, or nil.
func (r *Registry) Get(name string) *City { return r.byName[name] }

// Register adds the unit as a trip target of every city in range and returns
// their names. Weight falls off with distance.
func (r *Registry) Register(u *factory.Unit) []string {
	var names []string
	center := u.Center()
	for _, c := range r.cities {
		d := world.Distance(center, c.Position)
		if d > r.cfg.MaxDistance {
			continue
		}
		c.attach(u.Pos(), int64(c.Population)/int64(d+1))
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// Relink restores registrations recorded on a loaded unit.
func (r *Registry) Relink(u *factory.Unit) {
	center := u.Center()
	for _, name := range u.TargetCities() {
		c := r.byName[name]
		if c == nil {
			slog.Warn("factory registered with unknown city", "factory", u.Pos(), "city", name)
			continue
		}
		c.attach(u.Pos(), int64(c.Population)/int64(world.Distance(center, c.Position)+1))
	}
}

// Unregister removes the unit from every city.
func (r *Registry) Unregister(u *factory.Unit) {
	for _, c := range r.cities {
		c.detach(u.Pos())
	}
}

func (c *City) attach(pos world.Coord, weight int64) {
	c.detach(pos)
	c.targets = append(c.targets, target{pos: pos, weight: max(weight, 1)})
	sort.SliceStable(c.targets, func(i, j int) bool {
		if c.targets[i].weight != c.targets[j].weight {
			return c.targets[i].weight > c.targets[j].weight
		}
		return c.targets[i].pos.Less(c.targets[j].pos)
	})
}

func (c *City) detach(pos world.Coord) {
	for i, t := range c.targets {
		if t.pos == pos {
			c.targets = append(c.targets[:i], c.targets[i+1:]...)
			return
		}
	}
}

// trips converts a per-interval rate into whole trips for deltaT, keeping the remainder.
func trips(pop uint32, perThousand, deltaT int64, carry *int64) int64 {
	const per = 1000 * economy.DeltaT
	*carry += int64(pop) * perThousand * deltaT
	n := *carry / per
	*carry %= per
	return n
}

// apportion splits n between targets by weight; the remainder goes to the heaviest.
func (c *City) apportion(n int64) []int64 {
	shares := make([]int64, len(c.targets))
	if n <= 0 || len(c.targets) == 0 {
		return shares
	}
	var total int64
	for _, t := range c.targets {
		total += t.weight
	}
	given := int64(0)
	for i, t := range c.targets {
		shares[i] = n * t.weight / total
		given += shares[i]
	}
	shares[0] += n - given
	return shares
}

// Generate produces deltaT worth of passenger and mail trips and delivers
// them to registered factories.
func (r *Registry) Generate(deltaT int64) {
	if r.Lookup == nil {
		return
	}
	for _, c := range r.cities {
		pax := c.apportion(trips(c.Population, r.cfg.PaxPerThousand, deltaT, &c.paxCarry))
		mail := c.apportion(trips(c.Population, r.cfg.MailPerThousand, deltaT, &c.mailCarry))
		for i, t := range c.targets {
			u := r.Lookup(t.pos)
			if u == nil {
				continue
			}
			if u.PaxDemand() > 0 {
				u.Arrive(factory.ArrivalPassengers, pax[i])
			}
			if u.MailDemand() > 0 {
				u.Arrive(factory.ArrivalMail, mail[i])
			}
		}
	}
}

// NewMonth grows every city.
func (r *Registry) NewMonth() {
	for _, c := range r.cities {
		c.Population += uint32(int64(c.Population) * r.cfg.GrowthPermille / 1000)
	}
}
