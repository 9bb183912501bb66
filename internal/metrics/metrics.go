// Package metrics exposes ParkBoard's Prometheus metrics.
//
// Each [Metrics] value owns its registry, so several dashboards can run in
// one process (and in tests) without duplicate registration panics.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthStates are the values of the state label on the health gauge.
var healthStates = []string{"connecting", "connected", "error"}

// statusUnknown labels every event whose status is not a known live status.
const statusUnknown = "unknown"

// Metrics records feed and render activity.
//
// Metrics implements the live store's observer interface.
type Metrics struct {
	registry *prometheus.Registry

	// FeedEvents counts applied feed events by live status.
	FeedEvents *prometheus.CounterVec

	// FeedInvalid counts payloads that could not be decoded.
	FeedInvalid prometheus.Counter

	// ConnectionHealth is 1 for the current health state, 0 for the others.
	ConnectionHealth *prometheus.GaugeVec

	// GridRenders counts rendered grids by location.
	GridRenders *prometheus.CounterVec
}

// New creates a [Metrics] value with its own registry. Go runtime and
// process collectors are registered alongside.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FeedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parkboard_feed_events_total",
				Help: "Total number of live spot status events applied, by status.",
			},
			[]string{"status"},
		),
		FeedInvalid: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parkboard_feed_invalid_messages_total",
				Help: "Total number of feed payloads that could not be decoded.",
			},
		),
		ConnectionHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "parkboard_feed_connection_health",
				Help: "Live feed connection health (1 for the current state).",
			},
			[]string{"state"},
		),
		GridRenders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parkboard_grid_renders_total",
				Help: "Total number of spot grids rendered, by location.",
			},
			[]string{"location"},
		),
	}

	m.registry.MustRegister(
		m.FeedEvents,
		m.FeedInvalid,
		m.ConnectionHealth,
		m.GridRenders,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.HealthChanged("connecting")
	return m
}

// EventApplied counts an applied event. Statuses outside occupied, empty
// and expired share the "unknown" label, so feed content cannot add series.
func (m *Metrics) EventApplied(status string) {
	m.FeedEvents.WithLabelValues(statusLabel(status)).Inc()
}

func statusLabel(status string) string {
	switch s := strings.ToLower(strings.TrimSpace(status)); s {
	case "occupied", "empty", "expired":
		return s
	default:
		return statusUnknown
	}
}

// InvalidMessage counts an undecodable payload.
func (m *Metrics) InvalidMessage() {
	m.FeedInvalid.Inc()
}

// HealthChanged sets the health gauge so exactly one state reads 1.
func (m *Metrics) HealthChanged(health string) {
	for _, state := range healthStates {
		v := 0.0
		if state == health {
			v = 1
		}
		m.ConnectionHealth.WithLabelValues(state).Set(v)
	}
}

// GridRendered counts a rendered grid.
func (m *Metrics) GridRendered(locationID string) {
	m.GridRenders.WithLabelValues(locationID).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
