package transport

import (
	"fmt"
	"sort"

	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/world"
)

// Config tunes the in-memory network.
type Config struct {
	// StopCapacity is the room per goods type at each stop, in whole units.
	StopCapacity int64 `mapstructure:"stop_capacity" validate:"min=1"`
	// CoverageRadius is how far from a stop a factory tile may be and still load there.
	CoverageRadius int `mapstructure:"coverage_radius" validate:"min=0"`
	// MaxRouteDistance limits which stop pairs are connected.
	MaxRouteDistance int   `mapstructure:"max_route_distance" validate:"min=1"`
	MsPerTile        int64 `mapstructure:"ms_per_tile" validate:"min=1"`
	PickupIntervalMs int64 `mapstructure:"pickup_interval_ms" validate:"min=1"`
	// VehicleCapacity is how much one pickup takes from a stop, in whole units.
	VehicleCapacity int64 `mapstructure:"vehicle_capacity" validate:"min=1"`
}

// DefaultConfig returns a small, fast network suitable for tests and demos.
func DefaultConfig() Config {
	return Config{
		StopCapacity:     200,
		CoverageRadius:   2,
		MaxRouteDistance: 96,
		MsPerTile:        64,
		PickupIntervalMs: 2048,
		VehicleCapacity:  60,
	}
}

// Stop is a loading point with goods waiting for pickup.
type Stop struct {
	ID      StopID
	Pos     world.Coord
	waiting []Shipment
}

type cargo struct {
	Shipment
	remainingMs int64
}

// Stats counts what the network has handled, in whole units.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Delivered int64 `json:"delivered"`
	Rejected  int64 `json:"rejected"`
	Recalled  int64 `json:"recalled"`
	InTransit int64 `json:"in_transit"`
	Waiting   int64 `json:"waiting"`
}

// Memory is a self-contained network: stops connect when within range and
// periodic pickups carry waiting goods to their destination after a delay
// proportional to distance. It is not safe for concurrent use.
type Memory struct {
	cfg    Config
	stops  []*Stop
	wanted map[world.Coord]map[economy.GoodsID]bool
	moving []cargo
	timer  int64
	stats  Stats
}

// NewMemory creates an empty network.
func NewMemory(cfg Config) *Memory {
	return &Memory{
		cfg:    cfg,
		wanted: make(map[world.Coord]map[economy.GoodsID]bool),
	}
}

// AddStop creates a stop at pos and returns its id.
func (m *Memory) AddStop(pos world.Coord) StopID {
	id := StopID(len(m.stops))
	m.stops = append(m.stops, &Stop{ID: id, Pos: pos})
	return id
}

// Stops lists every stop.
func (m *Memory) Stops() []*Stop { return m.stops }

// Stats returns running totals.
func (m *Memory) Stats() Stats {
	s := m.stats
	s.InTransit, s.Waiting = 0, 0
	for _, c := range m.moving {
		s.InTransit += c.Amount
	}
	for _, st := range m.stops {
		for _, b := range st.waiting {
			s.Waiting += b.Amount
		}
	}
	return s
}

func (m *Memory) stop(id StopID) *Stop {
	if id < 0 || int(id) >= len(m.stops) {
		return nil
	}
	return m.stops[id]
}

func (m *Memory) covers(s *Stop, c world.Coord) bool {
	return world.Distance(s.Pos, c) <= m.cfg.CoverageRadius
}

// Announce records a consumer's order state.
func (m *Memory) Announce(consumer world.Coord, goods economy.GoodsID, wanted bool) {
	g := m.wanted[consumer]
	if g == nil {
		g = make(map[economy.GoodsID]bool)
		m.wanted[consumer] = g
	}
	g[goods] = wanted
}

// Wanted reports the last announcement for a consumer.
func (m *Memory) Wanted(consumer world.Coord, goods economy.GoodsID) bool {
	return m.wanted[consumer][goods]
}

// StopsAt returns stops covering any of the tiles, ordered by id.
func (m *Memory) StopsAt(tiles []world.Coord) []StopID {
	var out []StopID
	for _, s := range m.stops {
		for _, t := range tiles {
			if m.covers(s, t) {
				out = append(out, s.ID)
				break
			}
		}
	}
	return out
}

// Capacity returns the per-goods room of a stop and what already waits there.
func (m *Memory) Capacity(id StopID, goods economy.GoodsID) (int64, int64) {
	s := m.stop(id)
	if s == nil {
		return 0, 0
	}
	var stored int64
	for _, b := range s.waiting {
		if b.Goods == goods {
			stored += b.Amount
		}
	}
	return m.cfg.StopCapacity, stored
}

// WaitingFor sums goods at a stop bound for dest.
func (m *Memory) WaitingFor(id StopID, goods economy.GoodsID, dest world.Coord) int64 {
	s := m.stop(id)
	if s == nil {
		return 0
	}
	var n int64
	for _, b := range s.waiting {
		if b.Goods == goods && b.To == dest {
			n += b.Amount
		}
	}
	return n
}

// HasWaitingOther reports goods at a stop bound anywhere but dest.
func (m *Memory) HasWaitingOther(id StopID, goods economy.GoodsID, dest world.Coord) bool {
	s := m.stop(id)
	if s == nil {
		return false
	}
	for _, b := range s.waiting {
		if b.Goods == goods && b.To != dest {
			return true
		}
	}
	return false
}

// destStop returns the stop serving dest nearest to from, or nil.
func (m *Memory) destStop(from *Stop, dest world.Coord) *Stop {
	var best *Stop
	for _, s := range m.stops {
		if !m.covers(s, dest) || world.Distance(from.Pos, s.Pos) > m.cfg.MaxRouteDistance {
			continue
		}
		if best == nil || world.Distance(from.Pos, s.Pos) < world.Distance(from.Pos, best.Pos) {
			best = s
		}
	}
	return best
}

// CanRoute reports whether a stop serving dest is within route distance.
func (m *Memory) CanRoute(id StopID, dest world.Coord, _ economy.GoodsID) bool {
	s := m.stop(id)
	return s != nil && m.destStop(s, dest) != nil
}

// Submit queues a shipment at a stop.
func (m *Memory) Submit(id StopID, sh Shipment) error {
	s := m.stop(id)
	if s == nil {
		return fmt.Errorf("submit to stop %d: unknown stop", id)
	}
	if sh.Amount <= 0 {
		return fmt.Errorf("submit %d %s: non-positive amount", sh.Amount, sh.Goods)
	}
	if m.destStop(s, sh.To) == nil {
		return fmt.Errorf("submit %s to %s: %w", sh.Goods, sh.To, ErrNoRoute)
	}
	capacity, stored := m.Capacity(id, sh.Goods)
	if stored+sh.Amount > capacity {
		return fmt.Errorf("submit %d %s at stop %d: %w", sh.Amount, sh.Goods, id, ErrStopFull)
	}
	s.waiting = append(s.waiting, sh)
	m.stats.Submitted += sh.Amount
	return nil
}

// Recall takes back the most recent batch bound for the destination, other
// than keep, with the most goods waiting. Ties go to the lowest position.
func (m *Memory) Recall(id StopID, goods economy.GoodsID, keep world.Coord) (Shipment, bool) {
	s := m.stop(id)
	if s == nil {
		return Shipment{}, false
	}
	totals := make(map[world.Coord]int64)
	for _, b := range s.waiting {
		if b.Goods == goods && b.To != keep {
			totals[b.To] += b.Amount
		}
	}
	if len(totals) == 0 {
		return Shipment{}, false
	}
	dests := make([]world.Coord, 0, len(totals))
	for d := range totals {
		dests = append(dests, d)
	}
	sort.Slice(dests, func(i, j int) bool {
		if totals[dests[i]] != totals[dests[j]] {
			return totals[dests[i]] > totals[dests[j]]
		}
		return dests[i].Less(dests[j])
	})
	victim := dests[0]
	for i := len(s.waiting) - 1; i >= 0; i-- {
		b := s.waiting[i]
		if b.Goods == goods && b.To == victim {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			m.stats.Recalled += b.Amount
			return b, true
		}
	}
	return Shipment{}, false
}

// DeliverFunc hands arriving goods to their destination and returns the
// amount accepted.
type DeliverFunc func(s Shipment) int64

// Step advances moving cargo by deltaT, delivers what arrived and runs
// pickups when due.
func (m *Memory) Step(deltaT int64, deliver DeliverFunc) {
	kept := m.moving[:0]
	for _, c := range m.moving {
		c.remainingMs -= deltaT
		if c.remainingMs > 0 {
			kept = append(kept, c)
			continue
		}
		accepted := deliver(c.Shipment)
		m.stats.Delivered += accepted
		m.stats.Rejected += c.Amount - accepted
	}
	m.moving = kept

	m.timer += deltaT
	for m.timer >= m.cfg.PickupIntervalMs {
		m.timer -= m.cfg.PickupIntervalMs
		m.pickup()
	}
}

// pickup loads waiting batches first come first served up to the vehicle
// capacity of each stop.
func (m *Memory) pickup() {
	for _, s := range m.stops {
		room := m.cfg.VehicleCapacity
		rest := s.waiting[:0]
		for _, b := range s.waiting {
			if room <= 0 {
				rest = append(rest, b)
				continue
			}
			load := b
			if b.Amount > room {
				load.Amount = room
				b.Amount -= room
				rest = append(rest, b)
			}
			room -= load.Amount
			dist := int64(1)
			if d := m.destStop(s, load.To); d != nil {
				dist = max(int64(world.Distance(s.Pos, d.Pos)), 1)
			}
			m.moving = append(m.moving, cargo{Shipment: load, remainingMs: dist * m.cfg.MsPerTile})
		}
		s.waiting = rest
	}
}

// Pending lists every shipment the network holds, waiting or moving.
func (m *Memory) Pending() []Shipment {
	var out []Shipment
	for _, s := range m.stops {
		out = append(out, s.waiting...)
	}
	for _, c := range m.moving {
		out = append(out, c.Shipment)
	}
	return out
}

// Requeue puts a saved shipment back as waiting at a stop covering its
// origin. Stop capacity is not enforced. It reports false when no stop
// covers the origin or none can reach the destination.
func (m *Memory) Requeue(sh Shipment) bool {
	for _, s := range m.stops {
		if m.covers(s, sh.From) && sh.Amount > 0 && m.destStop(s, sh.To) != nil {
			s.waiting = append(s.waiting, sh)
			return true
		}
	}
	return false
}
