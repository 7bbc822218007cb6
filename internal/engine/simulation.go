// Simulation ties together all world systems and runs them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/mini-industry/internal/builder"
	"github.com/talgya/mini-industry/internal/city"
	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/metrics"
	"github.com/talgya/mini-industry/internal/transport"
	"github.com/talgya/mini-industry/internal/world"
)

// Options configures the systems of a simulation.
type Options struct {
	Seed     int64
	World    world.GenConfig
	Cities   int
	Towns    int
	Villages int

	Economy   factory.Settings
	City      city.Config
	Transport transport.Config
	Builder   builder.Config
}

// Simulation owns one world: its map, descriptor catalog, factories,
// cities, transport network and builder. Economic state carries no locking
// of its own; everything outside the tick goroutine goes through View or
// Update.
type Simulation struct {
	mu sync.Mutex

	ID       string
	Seed     int64
	Map      *world.Map
	Catalog  *descriptor.Catalog
	Settings *factory.Settings

	Factories   *factory.Registry
	Cities      *city.Registry
	Network     *transport.Memory
	Distributor *factory.Distributor
	Builder     *builder.Builder

	LastTick uint64
	Events   []Event
	Stats    SimStats
}

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "build", "expand", "report"
}

const maxEvents = 500

// SimStats tracks aggregate world statistics.
type SimStats struct {
	Factories   int            `json:"factories"`
	ByStatus    map[string]int `json:"by_status"`
	PowerSupply int64          `json:"power_supply"`
	PowerDemand int64          `json:"power_demand"`
	Shipments   int64          `json:"shipments"`
	Delivered   int64          `json:"delivered"`
	Lost        int64          `json:"lost"`
}

// NewSimulation wires the systems of a world. Cities come from seeds placed
// on the map; factories are added by Populate or by loading.
func NewSimulation(m *world.Map, cat *descriptor.Catalog, seeds []world.CitySeed, opts Options) *Simulation {
	settings := opts.Economy
	s := &Simulation{
		ID:       uuid.NewString(),
		Seed:     opts.Seed,
		Map:      m,
		Catalog:  cat,
		Settings: &settings,
		Network:  transport.NewMemory(opts.Transport),
	}
	s.Factories = factory.NewRegistry(m, cat, s.Settings, opts.Seed+1)
	s.Cities = city.NewRegistry(opts.City, seeds, opts.Seed+2)
	s.Cities.Lookup = s.Factories.At
	s.Factories.Cities = s.Cities
	s.Distributor = &factory.Distributor{Registry: s.Factories, Network: s.Network}

	s.Builder = builder.New(s.Factories, opts.Builder, opts.Seed+3)
	for _, c := range s.Cities.Cities() {
		s.Builder.Anchors = append(s.Builder.Anchors, c.Position)
	}
	s.Builder.OnBuild = s.ensureStop
	return s
}

// NewWorld generates terrain and cities from the options' seed and wires a
// simulation over them. Factories are not placed.
func NewWorld(cat *descriptor.Catalog, opts Options) *Simulation {
	cfg := opts.World
	cfg.Seed = opts.Seed
	m := world.Generate(cfg)
	seeds := world.PlaceCities(m, opts.Seed, opts.Cities, opts.Towns, opts.Villages)
	slog.Info("world generated", "width", m.Width, "height", m.Height, "cities", len(seeds))
	return NewSimulation(m, cat, seeds, opts)
}

// View runs fn with the simulation locked for reading.
func (s *Simulation) View(fn func(*Simulation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Update runs fn with the simulation locked between ticks.
func (s *Simulation) Update(fn func(*Simulation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastTick
}

// ensureStop gives a unit a loading point unless one already covers it.
func (s *Simulation) ensureStop(u *factory.Unit) {
	if len(s.Network.StopsAt(u.Tiles())) == 0 {
		s.Network.AddStop(u.Center())
	}
}

// Populate builds n initial supply chains.
func (s *Simulation) Populate(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	built := s.Builder.Populate(n)
	s.addEvent("build", "initial industry placed", "factories", built)
	s.refreshStats()
	return built
}

// BuildChain builds a supply chain rooted at the named descriptor near
// anchor and returns the number of factories placed.
func (s *Simulation) BuildChain(name string, anchor world.Coord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.Catalog.Get(name)
	if d == nil {
		return 0, fmt.Errorf("build chain: %w: %q", descriptor.ErrUnknownDescriptor, name)
	}
	built := s.Builder.Build(d, anchor)
	if built > 0 {
		s.addEvent("build", d.Name+" chain built", "anchor", anchor, "factories", built)
	}
	s.refreshStats()
	return built, nil
}

// Adopt indexes units restored from a save: stops, links and city registrations.
func (s *Simulation) Adopt(units []*factory.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range units {
		if err := s.Factories.Insert(u); err != nil {
			slog.Warn("dropping saved factory", "name", u.Name(), "pos", u.Pos(), "error", err)
			continue
		}
		s.ensureStop(u)
	}
	s.Factories.Reconcile()
	for _, u := range s.Factories.Units() {
		s.Cities.Relink(u)
	}
	s.refreshStats()
}

// RestoreShipments puts saved cargo back on the network. Cargo whose stop
// is gone returns to its supplier as if recalled.
func (s *Simulation) RestoreShipments(shipments []transport.Shipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range shipments {
		if s.Network.Requeue(sh) {
			continue
		}
		amount := economy.Units(sh.Amount)
		if c := s.Factories.At(sh.To); c != nil {
			c.Recalled(sh.Goods, amount)
		}
		if o := s.Factories.At(sh.From); o != nil {
			o.ReturnOutput(sh.Goods, amount)
		}
		slog.Warn("saved cargo returned to supplier", "from", sh.From, "to", sh.To, "goods", sh.Goods, "amount", sh.Amount)
	}
}

// Tick advances one production interval: arrivals, production, the power
// grid, distribution and transport.
func (s *Simulation) Tick(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastTick = tick

	s.Cities.Generate(TickMs)
	s.Factories.Step(TickMs)
	s.balancePower()
	s.Distributor.Announce()
	s.Stats.Shipments += int64(s.Distributor.Run())
	s.Network.Step(TickMs, s.deliver)
}

// deliver hands arriving cargo to its consumer and returns whole units accepted.
func (s *Simulation) deliver(sh transport.Shipment) int64 {
	u := s.Factories.At(sh.To)
	if u == nil {
		s.Stats.Lost += sh.Amount
		slog.Debug("cargo for missing factory", "to", sh.To, "goods", sh.Goods, "amount", sh.Amount)
		return 0
	}
	accepted := economy.WholeUnits(u.Deliver(sh.Goods, economy.Units(sh.Amount)))
	s.Stats.Delivered += accepted
	s.Stats.Lost += sh.Amount - accepted
	return accepted
}

// balancePower matches power plant output against consumer demand and
// feeds the satisfaction ratio into the next step's electricity boost.
func (s *Simulation) balancePower() {
	var supply, demand int64
	for _, u := range s.Factories.Units() {
		supply += u.PowerOutput()
		demand += u.PowerDemand()
	}
	ratio := int64(economy.BoostOne)
	if demand > 0 {
		ratio = min(supply*economy.BoostOne/demand, economy.BoostOne)
	}
	for _, u := range s.Factories.Units() {
		if !u.Descriptor().ElectricityProducer {
			u.SetPowerSatisfaction(ratio)
		}
	}
	s.Stats.PowerSupply, s.Stats.PowerDemand = supply, demand
}

// TickMonth rolls statistics, lets factories expand and grows cities.
func (s *Simulation) TickMonth(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := make(map[*factory.Unit]int64, s.Factories.Len())
	for _, u := range s.Factories.Units() {
		before[u] = u.ProdBase()
	}
	s.Factories.NewMonth()
	s.Cities.NewMonth()
	for _, u := range s.Factories.Units() {
		if u.ProdBase() > before[u] {
			s.addEvent("expand", u.Name()+" expanded", "pos", u.Pos(), "prod", u.ProdBase())
		}
	}
	s.refreshStats()

	st := s.Network.Stats()
	slog.Info("monthly report",
		"tick", tick,
		"time", SimTime(tick),
		"factories", s.Stats.Factories,
		"good", s.Stats.ByStatus[factory.StatusGood.String()],
		"medium", s.Stats.ByStatus[factory.StatusMedium.String()],
		"bad", s.Stats.ByStatus[factory.StatusBad.String()],
		"inactive", s.Stats.ByStatus[factory.StatusInactive.String()],
		"power_supply", s.Stats.PowerSupply,
		"power_demand", s.Stats.PowerDemand,
		"shipments", s.Stats.Shipments,
		"delivered", st.Delivered,
		"waiting", st.Waiting,
	)
}

// TickGrowth adds one supply chain.
func (s *Simulation) TickGrowth(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if built := s.Builder.IncreaseDensity(); built > 0 {
		s.addEvent("build", "new supply chain", "factories", built)
	}
	s.refreshStats()
}

func (s *Simulation) refreshStats() {
	s.Stats.Factories = s.Factories.Len()
	s.Stats.ByStatus = make(map[string]int)
	for _, u := range s.Factories.Units() {
		s.Stats.ByStatus[u.Status().String()]++
	}
}

func (s *Simulation) addEvent(category, description string, args ...any) {
	slog.Info(description, append([]any{"category", category, "tick", s.LastTick}, args...)...)
	s.Events = append(s.Events, Event{Tick: s.LastTick, Description: description, Category: category})
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

// MetricsSnapshot implements metrics.Source.
func (s *Simulation) MetricsSnapshot() metrics.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := metrics.Snapshot{
		Tick:         s.LastTick,
		ByDescriptor: make(map[string]int),
		ByStatus:     make(map[string]int),
		Stored:       make(map[string]int64),
		PowerSupply:  s.Stats.PowerSupply,
		PowerDemand:  s.Stats.PowerDemand,
		Shipments:    s.Stats.Shipments,
		Builder:      s.Builder.Stats(),
		Transport:    s.Network.Stats(),
	}
	for _, u := range s.Factories.Units() {
		snap.ByDescriptor[u.Name()]++
		snap.ByStatus[u.Status().String()]++
		for _, out := range u.Outputs() {
			snap.Stored[string(out.Goods)] += economy.WholeUnits(out.Quantity)
		}
	}
	return snap
}

// Wire connects the simulation's tick methods to an engine.
func (s *Simulation) Wire(e *Engine) {
	e.OnTick = s.Tick
	e.OnMonth = s.TickMonth
	e.OnGrowth = s.TickGrowth
}
