package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepSchedule(t *testing.T) {
	e := NewEngine()
	var ticks, months, growth, years int
	e.OnTick = func(uint64) { ticks++ }
	e.OnMonth = func(uint64) { months++ }
	e.OnGrowth = func(uint64) { growth++ }
	e.OnYear = func(uint64) { years++ }

	e.RunTicks(TicksPerYear)

	assert.Equal(t, TicksPerYear, ticks)
	assert.Equal(t, 12, months)
	assert.Equal(t, 4, growth)
	assert.Equal(t, 1, years)
	assert.False(t, e.Running())
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, "Jan Year 1 (tick 0 of month)", SimTime(0))
	assert.Equal(t, "Feb Year 2 (tick 5 of month)", SimTime(TicksPerYear+TicksPerMonth+5))
}
