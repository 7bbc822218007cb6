// Package engine provides the tick loop and the simulation it drives.
// One tick is one production interval of simulated time.
package engine

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/talgya/mini-industry/internal/economy"
)

// Tick schedule. Months drive statistics rotation and expansion; growth
// events add industry.
const (
	TickMs         = economy.DeltaT
	TicksPerMonth  = 256
	TicksPerYear   = 12 * TicksPerMonth
	TicksPerGrowth = 3 * TicksPerMonth
)

// Engine drives the simulation forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // Real time per tick at speed 1

	running atomic.Bool

	// Callbacks, populated during setup.
	OnTick   func(tick uint64)
	OnMonth  func(tick uint64)
	OnGrowth func(tick uint64)
	OnYear   func(tick uint64)
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Speed:    1.0,
		Interval: 250 * time.Millisecond,
	}
}

// Running reports whether Run is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Run starts the loop. Blocks until Stop is called.
func (e *Engine) Run() {
	e.running.Store(true)
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed)

	for e.running.Load() {
		if e.Speed <= 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.Step()

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
}

// RunTicks advances n ticks as fast as possible, ignoring Speed.
func (e *Engine) RunTicks(n uint64) {
	for i := uint64(0); i < n; i++ {
		e.Step()
	}
}

// Stop halts the loop after the current tick.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.Tick%TicksPerMonth == 0 && e.OnMonth != nil {
		e.OnMonth(e.Tick)
	}
	if e.Tick%TicksPerGrowth == 0 && e.OnGrowth != nil {
		e.OnGrowth(e.Tick)
	}
	if e.Tick%TicksPerYear == 0 && e.OnYear != nil {
		e.OnYear(e.Tick)
	}
}

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// SimTime returns a human-readable date for a tick number.
func SimTime(tick uint64) string {
	months := tick / TicksPerMonth
	return fmt.Sprintf("%s Year %d (tick %d of month)", monthNames[months%12], months/12+1, tick%TicksPerMonth)
}
