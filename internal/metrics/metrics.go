// ABOUTME: Prometheus collectors for the relay, registered on a private registry
// ABOUTME: All recording methods are nil-safe so components can run without metrics

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's collectors.
type Metrics struct {
	registry *prometheus.Registry

	CompletionsTotal   *prometheus.CounterVec
	CompletionDuration *prometheus.HistogramVec
	StreamsInFlight    prometheus.Gauge
	StreamFramesTotal  prometheus.Counter
	StoreOpsTotal      *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry, along with
// the standard Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CompletionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "completions_total",
			Help:      "Completions by final outcome (done, aborted, failed)",
		}, []string{"outcome"}),

		CompletionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relay",
			Name:      "completion_duration_seconds",
			Help:      "Time from request to final state",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),

		StreamsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Name:      "streams_in_flight",
			Help:      "Completions currently streaming to a client",
		}),

		StreamFramesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "stream_frames_total",
			Help:      "Upstream frames relayed to clients",
		}),

		StoreOpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "store_operations_total",
			Help:      "Conversation cache operations by result",
		}, []string{"op", "result"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCompletion records a finished completion.
func (m *Metrics) ObserveCompletion(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CompletionsTotal.WithLabelValues(outcome).Inc()
	m.CompletionDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// StreamStarted increments the in-flight gauge and returns a func that
// decrements it.
func (m *Metrics) StreamStarted() func() {
	if m == nil {
		return func() {}
	}
	m.StreamsInFlight.Inc()
	return m.StreamsInFlight.Dec
}

// FrameRelayed counts one relayed frame.
func (m *Metrics) FrameRelayed() {
	if m == nil {
		return
	}
	m.StreamFramesTotal.Inc()
}

// StoreOp records a cache operation; err == nil counts as "ok".
func (m *Metrics) StoreOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreOpsTotal.WithLabelValues(op, result).Inc()
}
