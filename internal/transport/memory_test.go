package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-industry/internal/world"
)

var _ Network = (*Memory)(nil)

func TestStopsAtCoverage(t *testing.T) {
	m := NewMemory(DefaultConfig())
	a := m.AddStop(world.Coord{X: 5, Y: 5})
	m.AddStop(world.Coord{X: 30, Y: 30})

	got := m.StopsAt([]world.Coord{{X: 6, Y: 6}, {X: 7, Y: 7}})
	assert.Equal(t, []StopID{a}, got)
	assert.Empty(t, m.StopsAt([]world.Coord{{X: 15, Y: 15}}))
}

func TestSubmitRejectsUnroutableAndFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StopCapacity = 10
	m := NewMemory(cfg)
	a := m.AddStop(world.Coord{X: 0, Y: 0})
	m.AddStop(world.Coord{X: 5, Y: 0})
	dest := world.Coord{X: 5, Y: 1}

	err := m.Submit(a, Shipment{Goods: "Coal", Amount: 5, To: world.Coord{X: 60, Y: 60}})
	assert.ErrorIs(t, err, ErrNoRoute)

	require.NoError(t, m.Submit(a, Shipment{Goods: "Coal", Amount: 8, To: dest}))
	err = m.Submit(a, Shipment{Goods: "Coal", Amount: 5, To: dest})
	assert.ErrorIs(t, err, ErrStopFull)

	capacity, stored := m.Capacity(a, "Coal")
	assert.Equal(t, int64(10), capacity)
	assert.Equal(t, int64(8), stored)
	_, stored = m.Capacity(a, "Iron ore")
	assert.Zero(t, stored)
}

func TestRecallPicksLargestOtherDestination(t *testing.T) {
	m := NewMemory(DefaultConfig())
	a := m.AddStop(world.Coord{X: 0, Y: 0})
	m.AddStop(world.Coord{X: 10, Y: 0})
	m.AddStop(world.Coord{X: 0, Y: 10})
	m.AddStop(world.Coord{X: 10, Y: 10})
	east := world.Coord{X: 10, Y: 1}
	south := world.Coord{X: 0, Y: 11}
	far := world.Coord{X: 10, Y: 11}

	require.NoError(t, m.Submit(a, Shipment{Goods: "Coal", Amount: 5, To: east}))
	require.NoError(t, m.Submit(a, Shipment{Goods: "Coal", Amount: 7, To: south}))
	require.NoError(t, m.Submit(a, Shipment{Goods: "Coal", Amount: 4, To: south}))
	require.NoError(t, m.Submit(a, Shipment{Goods: "Coal", Amount: 30, To: far}))

	assert.True(t, m.HasWaitingOther(a, "Coal", far))
	s, ok := m.Recall(a, "Coal", far)
	require.True(t, ok)
	assert.Equal(t, south, s.To)
	assert.Equal(t, int64(4), s.Amount, "newest batch first")
	assert.Equal(t, int64(7), m.WaitingFor(a, "Coal", south))
	assert.Equal(t, int64(30), m.WaitingFor(a, "Coal", far))

	_, ok = m.Recall(a, "Fish", far)
	assert.False(t, ok)
}

func TestStepDeliversAfterTravel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VehicleCapacity = 10
	m := NewMemory(cfg)
	a := m.AddStop(world.Coord{X: 0, Y: 0})
	m.AddStop(world.Coord{X: 4, Y: 0})
	dest := world.Coord{X: 4, Y: 1}
	require.NoError(t, m.Submit(a, Shipment{Goods: "Coal", Amount: 15, To: dest}))

	var got []Shipment
	deliver := func(s Shipment) int64 {
		got = append(got, s)
		return s.Amount
	}

	m.Step(cfg.PickupIntervalMs, deliver)
	assert.Empty(t, got, "loaded but still travelling")
	assert.Equal(t, int64(5), m.WaitingFor(a, "Coal", dest))

	m.Step(cfg.PickupIntervalMs, deliver)
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].Amount)

	m.Step(cfg.PickupIntervalMs, deliver)
	require.Len(t, got, 2)
	assert.Equal(t, int64(5), got[1].Amount)

	st := m.Stats()
	assert.Equal(t, int64(15), st.Submitted)
	assert.Equal(t, int64(15), st.Delivered)
	assert.Zero(t, st.InTransit)
	assert.Zero(t, st.Waiting)
}

func TestAnnounce(t *testing.T) {
	m := NewMemory(DefaultConfig())
	pos := world.Coord{X: 3, Y: 3}
	assert.False(t, m.Wanted(pos, "Coal"))
	m.Announce(pos, "Coal", true)
	assert.True(t, m.Wanted(pos, "Coal"))
	m.Announce(pos, "Coal", false)
	assert.False(t, m.Wanted(pos, "Coal"))
}

func TestPendingAndRequeue(t *testing.T) {
	m := NewMemory(DefaultConfig())
	a := m.AddStop(world.Coord{X: 0, Y: 0})
	m.AddStop(world.Coord{X: 6, Y: 0})
	dest := world.Coord{X: 6, Y: 1}
	require.NoError(t, m.Submit(a, Shipment{Goods: "Coal", Amount: 70, From: world.Coord{X: 1, Y: 0}, To: dest}))
	m.Step(DefaultConfig().PickupIntervalMs, func(Shipment) int64 { return 0 })

	pending := m.Pending()
	require.Len(t, pending, 2, "one batch waiting, one on the move")

	fresh := NewMemory(DefaultConfig())
	b := fresh.AddStop(world.Coord{X: 0, Y: 0})
	fresh.AddStop(world.Coord{X: 6, Y: 0})
	for _, sh := range pending {
		assert.True(t, fresh.Requeue(sh))
	}
	assert.Equal(t, int64(70), fresh.WaitingFor(b, "Coal", dest))
	assert.False(t, fresh.Requeue(Shipment{Goods: "Coal", Amount: 5, From: world.Coord{X: 30, Y: 30}, To: dest}))
}
