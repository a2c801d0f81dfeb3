// Package telemetry exposes Prometheus metrics for the relay and its HTTP API.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/coffee-relay/internal/schedule"
)

const namespace = "coffee_relay"

// Metrics holds the collectors on a private registry, so several instances
// can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	events       *prometheus.CounterVec
	energized    prometheus.Gauge
	generation   prometheus.Gauge
	scheduledFor prometheus.Gauge

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

// New creates and registers all collectors, including Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Schedule events by type.",
		}, []string{"type"}),
		energized: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "energized",
			Help:      "1 while the relay is driven on by an episode.",
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Generation of the most recent accepted start or stop.",
		}),
		scheduledFor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduled_for_seconds",
			Help:      "Unix time the live episode energizes at, 0 when idle.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events,
		m.energized,
		m.generation,
		m.scheduledFor,
		m.requests,
		m.duration,
		m.inflight,
	)
	return m
}

// Notify updates the relay metrics from a schedule event. It implements
// schedule.Notifier.
func (m *Metrics) Notify(ev schedule.Event) {
	m.events.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case schedule.EventScheduled:
		m.generation.Set(float64(ev.Generation))
		m.scheduledFor.Set(float64(ev.ScheduledFor.Unix()))
	case schedule.EventEnergized:
		m.energized.Set(1)
	case schedule.EventAutoOff:
		m.energized.Set(0)
		m.scheduledFor.Set(0)
	case schedule.EventStopped:
		m.generation.Set(float64(ev.Generation))
		m.scheduledFor.Set(0)
		if ev.Err == "" {
			m.energized.Set(0)
		}
	case schedule.EventFault:
		m.scheduledFor.Set(0)
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
