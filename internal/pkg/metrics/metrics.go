/*
Package metrics exposes Prometheus collectors for the relay.

Each Metrics value owns its own registry so tests and multiple servers in one
process never collide on registration.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the relay's collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Connections is the number of open WebSocket connections.
	Connections prometheus.Gauge

	// JoinedUsers is the number of connections that have joined a room.
	JoinedUsers prometheus.Gauge

	// InboundEvents counts inbound frames by type and result ("ok", "rejected", "ignored").
	InboundEvents *prometheus.CounterVec

	// Rejections counts negative acknowledgements by numeric error code.
	Rejections *prometheus.CounterVec

	// FramesDelivered counts outbound frames queued to a connection, by frame type.
	FramesDelivered *prometheus.CounterVec

	// FramesDropped counts outbound frames dropped because a send queue was full.
	FramesDropped prometheus.Counter
}

// New creates and registers all collectors, including the Go runtime and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatrelay",
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
		JoinedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatrelay",
			Name:      "joined_users",
			Help:      "Connections that have joined a room.",
		}),
		InboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatrelay",
			Name:      "inbound_events_total",
			Help:      "Inbound frames by type and result.",
		}, []string{"type", "result"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatrelay",
			Name:      "rejections_total",
			Help:      "Negative acknowledgements by error code.",
		}, []string{"code"}),
		FramesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatrelay",
			Name:      "frames_delivered_total",
			Help:      "Outbound frames queued to connections, by type.",
		}, []string{"type"}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatrelay",
			Name:      "frames_dropped_total",
			Help:      "Outbound frames dropped on a full send queue.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Connections,
		m.JoinedUsers,
		m.InboundEvents,
		m.Rejections,
		m.FramesDelivered,
		m.FramesDropped,
	)

	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format for m's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
