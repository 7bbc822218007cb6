// Package builder places new factories and wires up the producers that feed
// them. Requests are processed from a FIFO work queue; every branch is
// best-effort and failures only reduce the number of factories built.
package builder

import (
	"log/slog"
	"math/rand"
	"slices"
	"sort"

	"github.com/talgya/mini-industry/internal/descriptor"
	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/factory"
	"github.com/talgya/mini-industry/internal/world"
)

// Config bounds the builder's searches.
type Config struct {
	// AttemptsPerInput is how many new producers may be tried for one input.
	AttemptsPerInput int `mapstructure:"attempts_per_input" validate:"min=1"`
	// SearchRadius is the initial placement window and the radius in which
	// existing producers are cross-connected. Each failed attempt widens the
	// placement window by the same amount up to MaxRadius.
	SearchRadius int `mapstructure:"search_radius" validate:"min=1"`
	MaxRadius    int `mapstructure:"max_radius" validate:"gtefield=SearchRadius"`
	// MinDistance separates factories of the same type.
	MinDistance int `mapstructure:"min_distance" validate:"min=0"`
	// MaxDepth limits how many supplier levels below a root are built.
	MaxDepth int `mapstructure:"max_depth" validate:"min=1"`
	// InitialChains is how many chains Populate builds on a fresh map.
	InitialChains int `mapstructure:"initial_chains" validate:"min=0"`
}

// DefaultConfig returns stock limits.
func DefaultConfig() Config {
	return Config{
		AttemptsPerInput: 4,
		SearchRadius:     8,
		MaxRadius:        32,
		MinDistance:      6,
		MaxDepth:         4,
		InitialChains:    6,
	}
}

// Request asks for an input of the factory at Consumer to be supplied.
// Parent is the factory whose request led here and is only used in logs.
type Request struct {
	Consumer world.Coord
	Goods    economy.GoodsID
	Parent   world.Coord
	Depth    int
}

// Stats counts builder outcomes since creation.
type Stats struct {
	Built     int64
	Linked    int64
	NoSite    int64
	Abandoned int64
}

// Builder grows supply chains in a factory registry. It must not run
// concurrently with stepping.
type Builder struct {
	reg   *factory.Registry
	cfg   Config
	rng   *rand.Rand
	queue []Request
	stats Stats

	// Anchors are preferred roots for new chains, usually city centres.
	Anchors []world.Coord
	// OnBuild is called for every unit the builder creates.
	OnBuild func(u *factory.Unit)
}

// New creates a builder over reg.
func New(reg *factory.Registry, cfg Config, seed int64) *Builder {
	return &Builder{
		reg: reg,
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Stats returns the outcome counters.
func (b *Builder) Stats() Stats { return b.stats }

// Pending returns the queued requests.
func (b *Builder) Pending() []Request { return slices.Clone(b.queue) }

// Enqueue appends a request to the work queue.
func (b *Builder) Enqueue(req Request) { b.queue = append(b.queue, req) }

// Run drains the work queue and returns the number of factories built.
func (b *Builder) Run() int {
	built := 0
	for len(b.queue) > 0 {
		req := b.queue[0]
		b.queue = b.queue[1:]
		built += b.Resolve(req)
	}
	return built
}

// Build places d as close to anchor as the search allows and resolves its
// whole supplier tree. It returns the number of factories built including
// the root; zero means no site was found.
func (b *Builder) Build(d *descriptor.Factory, anchor world.Coord) int {
	site := b.FindSite(d, anchor, b.cfg.MaxRadius)
	if !site.Found() {
		b.stats.NoSite++
		slog.Debug("no site for chain root", "factory", d.Name, "anchor", anchor)
		return 0
	}
	root := b.place(d, site)
	if root == nil {
		return 0
	}
	b.enqueueInputs(root, world.NoSite, 1)
	built := 1 + b.Run()
	slog.Info("supply chain built", "root", d.Name, "pos", root.Pos(), "factories", built)
	return built
}

// Resolve handles one request: existing producers in range are connected
// first, then new producers are built for whatever is still missing. New
// producers' own inputs are queued. Returns the number of factories built.
func (b *Builder) Resolve(req Request) int {
	consumer := b.reg.At(req.Consumer)
	if consumer == nil || consumer.Placeholder() {
		b.stats.Abandoned++
		return 0
	}
	d := consumer.Descriptor()
	si := d.SupplyIndex(req.Goods)
	if si < 0 {
		// Requests are only generated from a descriptor's own supplies.
		panic("builder: request for goods " + string(req.Goods) + " not accepted by " + d.Name)
	}
	outstanding := economy.ScaleCeil(consumer.ProdBase(), int64(d.Supplies[si].Consumption))
	for _, pos := range consumer.Suppliers() {
		if s := b.reg.At(pos); s != nil && s.Output(req.Goods) != nil {
			outstanding -= committed(s, req.Goods)
		}
	}
	if outstanding <= 0 {
		return 0
	}

	outstanding = b.crossConnect(consumer, req.Goods, outstanding)
	if outstanding <= 0 {
		return 0
	}

	producers := b.reg.Catalog.ProducersOf(req.Goods)
	built := 0
	radius := b.cfg.SearchRadius
	for attempt := 0; attempt < b.cfg.AttemptsPerInput && outstanding > 0; attempt++ {
		pd := pickWeighted(b.rng, producers)
		if pd == nil {
			slog.Debug("no producer descriptor", "goods", req.Goods, "consumer", d.Name)
			break
		}
		site := b.FindSite(pd, consumer.Center(), radius)
		if !site.Found() {
			b.stats.NoSite++
			radius = min(radius+b.cfg.SearchRadius, b.cfg.MaxRadius)
			continue
		}
		u := b.place(pd, site)
		if u == nil {
			continue
		}
		built++
		if err := b.reg.Link(consumer, u); err != nil {
			// The producer stays standing; the consumer cannot take more links.
			slog.Warn("link new producer", "consumer", consumer.Pos(), "producer", u.Pos(), "error", err)
			break
		}
		b.stats.Linked++
		outstanding -= spare(u, req.Goods, 0)
		if req.Depth < b.cfg.MaxDepth {
			b.enqueueInputs(u, consumer.Pos(), req.Depth+1)
		}
	}
	if outstanding > 0 {
		b.stats.Abandoned++
		slog.Debug("input left short", "consumer", d.Name, "pos", req.Consumer, "goods", req.Goods,
			"missing", outstanding, "parent", req.Parent)
	}
	return built
}

// crossConnect links existing producers in range and returns the demand left over.
func (b *Builder) crossConnect(consumer *factory.Unit, goods economy.GoodsID, outstanding int64) int64 {
	type candidate struct {
		u     *factory.Unit
		dist  int
		spare int64
	}
	var cands []candidate
	for _, u := range b.reg.Within(consumer.Center(), b.cfg.SearchRadius) {
		if u == consumer || u.Placeholder() || u.Output(goods) == nil || slices.Contains(consumer.Suppliers(), u.Pos()) {
			continue
		}
		s := spare(u, goods, len(u.Consumers()))
		if s <= 0 {
			continue
		}
		cands = append(cands, candidate{u: u, dist: world.Distance(consumer.Center(), u.Center()), spare: s})
	}
	if b.sourceOnly(goods) {
		// Raw goods come from closest first to keep delivery lines short.
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].dist != cands[j].dist {
				return cands[i].dist < cands[j].dist
			}
			return cands[i].spare > cands[j].spare
		})
	} else {
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].spare != cands[j].spare {
				return cands[i].spare > cands[j].spare
			}
			return cands[i].dist < cands[j].dist
		})
	}
	for _, c := range cands {
		if outstanding <= 0 {
			break
		}
		if err := b.reg.Link(consumer, c.u); err != nil {
			slog.Debug("cross-connect", "consumer", consumer.Pos(), "producer", c.u.Pos(), "error", err)
			continue
		}
		b.stats.Linked++
		outstanding -= c.spare
	}
	return outstanding
}

// sourceOnly reports whether every producer of goods needs no inputs.
func (b *Builder) sourceOnly(goods economy.GoodsID) bool {
	producers := b.reg.Catalog.ProducersOf(goods)
	for _, d := range producers {
		if !d.IsSource() {
			return false
		}
	}
	return len(producers) > 0
}

func (b *Builder) place(d *descriptor.Factory, site Site) *factory.Unit {
	u, err := b.reg.Build(d, site.Pos, site.Rotation, 0)
	if err != nil {
		slog.Warn("build failed", "factory", d.Name, "pos", site.Pos, "error", err)
		return nil
	}
	b.stats.Built++
	if b.OnBuild != nil {
		b.OnBuild(u)
	}
	return u
}

func (b *Builder) enqueueInputs(u *factory.Unit, parent world.Coord, depth int) {
	for _, s := range u.Descriptor().Supplies {
		b.Enqueue(Request{Consumer: u.Pos(), Goods: s.Goods, Parent: parent, Depth: depth})
	}
}

// Populate builds up to n chains rooted at end consumers and returns the
// number of factories built.
func (b *Builder) Populate(n int) int {
	total := 0
	for i := 0; i < n; i++ {
		total += b.IncreaseDensity()
	}
	slog.Info("map populated", "chains", n, "factories", total, "units", b.reg.Len())
	return total
}

// IncreaseDensity builds one new chain: a weighted-random end consumer near
// a random anchor, or anywhere on the map when there are no anchors.
func (b *Builder) IncreaseDensity() int {
	d := pickWeighted(b.rng, b.reg.Catalog.EndConsumers())
	if d == nil {
		return 0
	}
	var anchor world.Coord
	if len(b.Anchors) > 0 {
		anchor = b.Anchors[b.rng.Intn(len(b.Anchors))]
	} else {
		m := b.reg.Map
		anchor = world.Coord{X: b.rng.Intn(m.Width), Y: b.rng.Intn(m.Height)}
	}
	return b.Build(d, anchor)
}

// spare approximates what u can still supply of goods per production
// interval when shared with its consumers plus one more.
func spare(u *factory.Unit, goods economy.GoodsID, consumers int) int64 {
	d := u.Descriptor()
	pi := d.ProductIndex(goods)
	if pi < 0 {
		return 0
	}
	return economy.ScaleFloor(u.ProdBase(), int64(d.Products[pi].Factor)) / int64(consumers+1)
}

// committed is the share of u's output already promised to each consumer.
func committed(u *factory.Unit, goods economy.GoodsID) int64 {
	return spare(u, goods, max(len(u.Consumers())-1, 0))
}

// pickWeighted selects a descriptor with probability proportional to Chance.
func pickWeighted(rng *rand.Rand, ds []*descriptor.Factory) *descriptor.Factory {
	total := 0
	for _, d := range ds {
		total += d.Chance
	}
	if total <= 0 {
		return nil
	}
	n := rng.Intn(total)
	for _, d := range ds {
		if n < d.Chance {
			return d
		}
		n -= d.Chance
	}
	return nil
}
