// File: control/metrics.go
// Package control
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus instrumentation for the reactor and connections. Each Metrics
// owns its own registry so several servers (and tests) can coexist.

package control

import (
	"github.com/momentics/hioload-chat/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hioload_chat"

// Metrics holds every collector exported by the server.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive   prometheus.Gauge
	ConnectionsAccepted prometheus.Counter
	ConnectionsClosed   *prometheus.CounterVec
	AcceptErrors        prometheus.Counter
	FramesReceived      *prometheus.CounterVec
	MessagesBroadcast   prometheus.Counter
	BroadcastFanout     prometheus.Histogram
	Deliveries          prometheus.Counter
	BytesRead           prometheus.Counter
	BytesWritten        prometheus.Counter
	ExecutorRejections  prometheus.Counter
	ProtocolErrors      *prometheus.CounterVec
	MessagesDropped     *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry that also carries
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Current number of registered connections",
		}),
		ConnectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted connections",
		}),
		ConnectionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of closed connections by reason",
		}, []string{"reason"}),
		AcceptErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_errors_total",
			Help:      "Total number of failed accept calls",
		}),
		FramesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of frames (or lines) received by opcode",
		}, []string{"opcode"}),
		MessagesBroadcast: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_broadcast_total",
			Help:      "Total number of messages fanned out",
		}),
		BroadcastFanout: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_fanout",
			Help:      "Number of recipients per broadcast",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		Deliveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of per-recipient message deliveries",
		}),
		BytesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Total bytes read from client sockets",
		}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Total bytes written to client sockets",
		}),
		ExecutorRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executor_rejections_total",
			Help:      "Total number of handler jobs rejected by a saturated executor",
		}),
		ProtocolErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total number of protocol violations by kind",
		}, []string{"reason"}),
		MessagesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of messages dropped by reason",
		}, []string{"reason"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// FrameReceived counts one inbound frame.
func (m *Metrics) FrameReceived(op protocol.Opcode) {
	m.FramesReceived.WithLabelValues(op.String()).Inc()
}

// BytesIn counts bytes read from a socket.
func (m *Metrics) BytesIn(n int) { m.BytesRead.Add(float64(n)) }

// BytesOut counts bytes written to a socket.
func (m *Metrics) BytesOut(n int) { m.BytesWritten.Add(float64(n)) }

// ProtocolError counts one protocol violation.
func (m *Metrics) ProtocolError(reason string) {
	m.ProtocolErrors.WithLabelValues(reason).Inc()
}

// MessageDropped counts one dropped message, inbound or outbound.
func (m *Metrics) MessageDropped(reason string) {
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

// Accepted records a new connection.
func (m *Metrics) Accepted() {
	m.ConnectionsAccepted.Inc()
	m.ConnectionsActive.Inc()
}

// Closed records a connection leaving the registry.
func (m *Metrics) Closed(reason string) {
	m.ConnectionsClosed.WithLabelValues(reason).Inc()
	m.ConnectionsActive.Dec()
}

// Broadcast records one fan-out to recipients connections.
func (m *Metrics) Broadcast(recipients int) {
	m.MessagesBroadcast.Inc()
	m.BroadcastFanout.Observe(float64(recipients))
	m.Deliveries.Add(float64(recipients))
}
