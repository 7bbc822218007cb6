package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-industry/internal/builder"
)

func TestUpdateSetsGaugesAndAdvancesCounters(t *testing.T) {
	c := NewCollector()
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))

	c.Update(Snapshot{
		Tick:         10,
		ByDescriptor: map[string]int{"CoalMine": 2},
		ByStatus:     map[string]int{"good": 1, "bad": 1},
		Stored:       map[string]int64{"Coal": 120},
		Shipments:    3,
		Builder:      builder.Stats{Built: 4},
	})
	c.Update(Snapshot{
		Tick:         11,
		ByDescriptor: map[string]int{"CoalMine": 3},
		Shipments:    5,
		Builder:      builder.Stats{Built: 6, NoSite: 1},
	})

	assert.Equal(t, 11.0, testutil.ToFloat64(c.tick))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.factories.WithLabelValues("CoalMine")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.shipments))
	assert.Equal(t, 6.0, testutil.ToFloat64(c.builder.WithLabelValues("built")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.builder.WithLabelValues("no_site")))
	assert.Equal(t, 0, testutil.CollectAndCount(c.status), "statuses reset between snapshots")
}

func TestRegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, NewCollector().Register(reg))
	assert.Error(t, NewCollector().Register(reg))
}
