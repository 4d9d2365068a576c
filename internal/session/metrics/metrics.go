// Package metrics holds Prometheus metrics for session lifecycle tracking.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all session-related Prometheus metrics.
type Metrics struct {
	ConnectionState      *prometheus.GaugeVec
	StateTransitions     *prometheus.CounterVec
	QRIssued             *prometheus.CounterVec
	ReconnectsScheduled  *prometheus.CounterVec
	SessionsFailed       *prometheus.CounterVec
	MessagesInbound      *prometheus.CounterVec
	MessagesOutbound     *prometheus.CounterVec
	InboundHandlerErrors *prometheus.CounterVec
}

// New creates and registers all session metrics.
func New() *Metrics {
	return &Metrics{
		ConnectionState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relaydesk_session_state",
			Help: "Current connection state per tenant (1 for the active state, 0 otherwise)",
		}, []string{"tenant_id", "state"}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_session_state_transitions_total",
			Help: "Total state transitions, labeled by target state",
		}, []string{"tenant_id", "state"}),
		QRIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_session_qr_issued_total",
			Help: "Total QR challenges issued",
		}, []string{"tenant_id"}),
		ReconnectsScheduled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_session_reconnects_scheduled_total",
			Help: "Total reconnect attempts scheduled",
		}, []string{"tenant_id"}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_session_failed_total",
			Help: "Total sessions that exhausted their reconnect budget",
		}, []string{"tenant_id"}),
		MessagesInbound: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_messages_inbound_total",
			Help: "Total inbound messages received from the messaging network",
		}, []string{"tenant_id"}),
		MessagesOutbound: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_messages_outbound_total",
			Help: "Total outbound messages sent to the messaging network",
		}, []string{"tenant_id"}),
		InboundHandlerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_inbound_handler_errors_total",
			Help: "Total inbound messages the ticket pipeline failed to handle",
		}, []string{"tenant_id"}),
	}
}

// SetState flips the per-state gauge so exactly one state reads 1 per tenant.
func (m *Metrics) SetState(tenantID string, from, to string) {
	if from != "" {
		m.ConnectionState.WithLabelValues(tenantID, from).Set(0)
	}
	m.ConnectionState.WithLabelValues(tenantID, to).Set(1)
	m.StateTransitions.WithLabelValues(tenantID, to).Inc()
}
