// SPDX-License-Identifier: MPL-2.0

// Package metrics exports server lifecycle metrics to Prometheus. A *Metrics
// is an asyncserver.Observer; pass it with asyncserver.WithObserver.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speedup/asynchttp/pkg/asyncserver"
)

const (
	// Path is where Handler is conventionally mounted.
	Path = "/metrics"

	ResultSuccess = "success"
	ResultError   = "error"

	namespace = "asynchttp"
	subsystem = "server"
)

type (
	// RegistererGatherer is a registry that can both register and expose metrics.
	RegistererGatherer interface {
		prometheus.Registerer
		prometheus.Gatherer
	}

	// Metrics holds the lifecycle collectors and the registry they live in.
	Metrics struct {
		registry RegistererGatherer

		transitions *prometheus.CounterVec
		starts      *prometheus.CounterVec
		stops       *prometheus.CounterVec
		running     *prometheus.GaugeVec
	}

	// Option configures Metrics.
	Option func(*options)

	options struct {
		registry         RegistererGatherer
		runtimeCollector bool
	}
)

// WithRegistry registers the collectors in registry instead of a fresh one.
func WithRegistry(registry RegistererGatherer) Option {
	return func(o *options) { o.registry = registry }
}

// WithRuntimeCollectors adds the process and Go runtime collectors.
func WithRuntimeCollectors() Option {
	return func(o *options) { o.runtimeCollector = true }
}

// New creates and registers the lifecycle collectors.
func New(opts ...Option) *Metrics {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: o.registry,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Total number of lifecycle state transitions",
		}, []string{"server", "from", "to"}),
		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "starts_total",
			Help:      "Total number of Start calls by result and error class",
		}, []string{"server", "result", "class"}),
		stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stops_total",
			Help:      "Total number of Stop calls by result and error class",
		}, []string{"server", "result", "class"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "running",
			Help:      "1 while the server is running, 0 otherwise",
		}, []string{"server"}),
	}

	m.registry.MustRegister(m.transitions, m.starts, m.stops, m.running)
	if o.runtimeCollector {
		m.registry.MustRegister(
			// expose process metrics like CPU, memory, file descriptor usage etc.
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			// expose Go runtime metrics like GC stats, memory stats etc.
			collectors.NewGoCollector(),
		)
	}
	return m
}

// ObserveTransition implements asyncserver.Observer.
func (m *Metrics) ObserveTransition(server string, from, to asyncserver.State) {
	m.transitions.WithLabelValues(server, from.String(), to.String()).Inc()

	running := 0.0
	if to == asyncserver.StateRunning {
		running = 1
	}
	m.running.WithLabelValues(server).Set(running)
}

// ObserveStart implements asyncserver.Observer.
func (m *Metrics) ObserveStart(server string, err error) {
	m.starts.WithLabelValues(server, result(err), asyncserver.Classify(err).String()).Inc()
}

// ObserveStop implements asyncserver.Observer.
func (m *Metrics) ObserveStop(server string, err error) {
	m.stops.WithLabelValues(server, result(err), asyncserver.Classify(err).String()).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Mux returns a mux serving Handler at Path.
func (m *Metrics) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(Path, m.Handler())
	return mux
}

// Registry returns the registry the collectors are registered in.
func (m *Metrics) Registry() RegistererGatherer {
	return m.registry
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
