package prom

import (
	"github.com/httpd-core/rapid/bytecache"
	"github.com/prometheus/client_golang/prometheus"
)

// BytecacheAdapter implements bytecache.Metrics, exporting Prometheus
// counters/gauges for the sharded LFU+LRU byte cache. Its
// bytecache.Metrics.Evict() carries no reason label: the byte cache has
// exactly one eviction policy (LFU with LRU tie-break), not a pluggable
// one, so there is nothing to label.
type BytecacheAdapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	evicts  prometheus.Counter
	sizeEnt prometheus.Gauge
	sizeByt prometheus.Gauge
}

// NewBytecacheAdapter constructs a Prometheus metrics adapter for the
// byte cache.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func NewBytecacheAdapter(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *BytecacheAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &BytecacheAdapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Byte cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Byte cache misses",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "evictions_total",
			Help:        "Byte cache LFU/LRU evictions",
			ConstLabels: constLabels,
		}),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident cached files",
			ConstLabels: constLabels,
		}),
		sizeByt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_bytes",
			Help:        "Total resident cached bytes",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeByt)
	return a
}

func (a *BytecacheAdapter) Hit()   { a.hits.Inc() }
func (a *BytecacheAdapter) Miss()  { a.misses.Inc() }
func (a *BytecacheAdapter) Evict() { a.evicts.Inc() }
func (a *BytecacheAdapter) Size(entries int, bytes int64) {
	a.sizeEnt.Set(float64(entries))
	a.sizeByt.Set(float64(bytes))
}

// Compile-time check: ensure BytecacheAdapter implements bytecache.Metrics.
var _ bytecache.Metrics = (*BytecacheAdapter)(nil)
