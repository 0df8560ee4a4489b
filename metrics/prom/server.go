package prom

import "github.com/prometheus/client_golang/prometheus"

// ServerAdapter exports request and connection observability for the
// server package, following the same counters/gauges shape as
// BytecacheAdapter above. Its method set matches connio.Metrics
// structurally (Go interfaces are satisfied by shape, not declaration),
// so server.Server assigns a *ServerAdapter directly into
// connio.Env.Metrics without this package importing connio.
type ServerAdapter struct {
	requests    *prometheus.CounterVec
	activeConns prometheus.Gauge
}

// NewServerAdapter constructs a Prometheus metrics adapter for request
// counts (by method and status class: 2xx, 3xx, 4xx, 5xx) and
// active-connection tracking.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func NewServerAdapter(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *ServerAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &ServerAdapter{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "requests_total",
				Help:        "Requests handled, by method and status class",
				ConstLabels: constLabels,
			},
			[]string{"method", "status"},
		),
		activeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "active_connections",
			Help:        "Currently open connections",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.requests, a.activeConns)
	return a
}

// ConnectionOpened increments the active-connection gauge.
func (a *ServerAdapter) ConnectionOpened() { a.activeConns.Inc() }

// ConnectionClosed decrements the active-connection gauge.
func (a *ServerAdapter) ConnectionClosed() { a.activeConns.Dec() }

// RequestHandled records one completed request by method and status.
func (a *ServerAdapter) RequestHandled(method string, status int) {
	a.requests.WithLabelValues(method, statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
