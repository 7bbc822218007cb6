// Package metrics exports simulation state to Prometheus. The collector
// polls a snapshot source on an interval; nothing in the simulation calls
// into it while stepping.
package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/talgya/mini-industry/internal/builder"
	"github.com/talgya/mini-industry/internal/transport"
)

const namespace = "factorysim"

// Snapshot is a consistent copy of the values exported.
type Snapshot struct {
	Tick         uint64
	ByDescriptor map[string]int
	ByStatus     map[string]int
	// Stored is output stock per goods type in whole units.
	Stored      map[string]int64
	PowerSupply int64
	PowerDemand int64
	Shipments   int64
	Builder     builder.Stats
	Transport   transport.Stats
}

// Source produces snapshots. Implementations take whatever lock they need.
type Source interface {
	MetricsSnapshot() Snapshot
}

// Collector holds every exported metric.
type Collector struct {
	tick         prometheus.Gauge
	factories    *prometheus.GaugeVec
	status       *prometheus.GaugeVec
	stored       *prometheus.GaugeVec
	power        *prometheus.GaugeVec
	shipments    prometheus.Counter
	builder      *prometheus.CounterVec
	transport    *prometheus.CounterVec
	transportNow *prometheus.GaugeVec

	mu   sync.Mutex
	last Snapshot
	wg   sync.WaitGroup
	stop context.CancelFunc
}

// NewCollector creates unregistered metrics.
func NewCollector() *Collector {
	return &Collector{
		tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tick",
			Help:      "Current simulation tick",
		}),
		factories: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "factories",
			Help:      "Number of factories by descriptor",
		}, []string{"descriptor"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "factories_by_status",
			Help:      "Number of factories by status classification",
		}, []string{"status"}),
		stored: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goods_stored_units",
			Help:      "Finished goods held in factory outputs",
		}, []string{"goods"}),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power",
			Help:      "Power grid supply and demand",
		}, []string{"side"}),
		shipments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipments_total",
			Help:      "Shipments handed to the transport network",
		}),
		builder: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "builder",
			Name:      "outcomes_total",
			Help:      "Supply-chain builder outcomes",
		}, []string{"outcome"}),
		transport: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "units_total",
			Help:      "Goods units handled by the transport network",
		}, []string{"event"}),
		transportNow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "units",
			Help:      "Goods units currently held by the transport network",
		}, []string{"state"}),
	}
}

// Register adds every metric to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, m := range []prometheus.Collector{
		c.tick, c.factories, c.status, c.stored, c.power,
		c.shipments, c.builder, c.transport, c.transportNow,
	} {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Update applies a snapshot. Counters advance by the difference from the
// previous snapshot.
func (c *Collector) Update(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick.Set(float64(s.Tick))
	setAll(c.factories, s.ByDescriptor)
	setAll(c.status, s.ByStatus)
	c.stored.Reset()
	for g, v := range s.Stored {
		c.stored.WithLabelValues(g).Set(float64(v))
	}
	c.power.WithLabelValues("supply").Set(float64(s.PowerSupply))
	c.power.WithLabelValues("demand").Set(float64(s.PowerDemand))

	addDelta(c.shipments, s.Shipments, c.last.Shipments)
	addDelta(c.builder.WithLabelValues("built"), s.Builder.Built, c.last.Builder.Built)
	addDelta(c.builder.WithLabelValues("linked"), s.Builder.Linked, c.last.Builder.Linked)
	addDelta(c.builder.WithLabelValues("no_site"), s.Builder.NoSite, c.last.Builder.NoSite)
	addDelta(c.builder.WithLabelValues("abandoned"), s.Builder.Abandoned, c.last.Builder.Abandoned)
	addDelta(c.transport.WithLabelValues("submitted"), s.Transport.Submitted, c.last.Transport.Submitted)
	addDelta(c.transport.WithLabelValues("delivered"), s.Transport.Delivered, c.last.Transport.Delivered)
	addDelta(c.transport.WithLabelValues("rejected"), s.Transport.Rejected, c.last.Transport.Rejected)
	addDelta(c.transport.WithLabelValues("recalled"), s.Transport.Recalled, c.last.Transport.Recalled)
	c.transportNow.WithLabelValues("in_transit").Set(float64(s.Transport.InTransit))
	c.transportNow.WithLabelValues("waiting").Set(float64(s.Transport.Waiting))

	c.last = s
}

func setAll[V int | int64](g *prometheus.GaugeVec, values map[string]V) {
	g.Reset()
	for k, v := range values {
		g.WithLabelValues(k).Set(float64(v))
	}
}

func addDelta(c prometheus.Counter, now, before int64) {
	if now > before {
		c.Add(float64(now - before))
	}
}

// Start polls src every interval until ctx is done or Stop is called.
func (c *Collector) Start(ctx context.Context, src Source, interval time.Duration) {
	ctx, c.stop = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Update(src.MetricsSnapshot())
			}
		}
	}()
	slog.Info("metrics collector started", "interval", interval)
}

// Stop ends polling and waits for the poller to exit.
func (c *Collector) Stop() {
	if c.stop != nil {
		c.stop()
	}
	c.wg.Wait()
}
