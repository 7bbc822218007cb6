// Package transport is the boundary between production units and whatever
// moves their goods. Units see stops covering their footprint, the free
// space at each stop and whether a destination is reachable; the network
// owns the goods from submission until delivery.
package transport

import (
	"errors"

	"github.com/talgya/mini-industry/internal/economy"
	"github.com/talgya/mini-industry/internal/world"
)

// ErrNoRoute is returned when a shipment cannot reach its destination.
var ErrNoRoute = errors.New("no route")

// ErrStopFull is returned when a stop has no room for a shipment.
var ErrStopFull = errors.New("stop full")

// StopID identifies a loading point.
type StopID int

// Shipment is a batch of whole goods units from a supplier to a consumer.
type Shipment struct {
	Goods  economy.GoodsID `json:"goods"`
	Amount int64           `json:"amount"`
	From   world.Coord     `json:"from"`
	To     world.Coord     `json:"to"`
}

// Network is what production units need from transport.
type Network interface {
	// Announce publishes whether the consumer at pos currently orders goods.
	Announce(consumer world.Coord, goods economy.GoodsID, wanted bool)
	// StopsAt returns the stops whose coverage touches any of the tiles.
	StopsAt(tiles []world.Coord) []StopID
	// Capacity returns a stop's capacity for goods and what is already waiting.
	Capacity(stop StopID, goods economy.GoodsID) (capacity, stored int64)
	// WaitingFor returns the amount of goods waiting at stop for dest.
	WaitingFor(stop StopID, goods economy.GoodsID, dest world.Coord) int64
	// HasWaitingOther reports goods waiting at stop for any destination but dest.
	HasWaitingOther(stop StopID, goods economy.GoodsID, dest world.Coord) bool
	// CanRoute reports whether goods loaded at stop can reach dest.
	CanRoute(stop StopID, dest world.Coord, goods economy.GoodsID) bool
	// Submit hands a shipment to the network.
	Submit(stop StopID, s Shipment) error
	// Recall removes one batch of goods waiting at stop, taken from the
	// destination other than keep with the most waiting.
	Recall(stop StopID, goods economy.GoodsID, keep world.Coord) (Shipment, bool)
}
