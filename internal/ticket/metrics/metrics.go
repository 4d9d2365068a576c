// Package metrics exposes Prometheus instrumentation for the ticket lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TicketsOpened      *prometheus.CounterVec
	TicketsReopened    *prometheus.CounterVec
	TicketsClosed      *prometheus.CounterVec
	CloseFailures      *prometheus.CounterVec
	StaleEntriesHealed *prometheus.CounterVec
	MessagesRelayed    *prometheus.CounterVec
	TranscriptFailures *prometheus.CounterVec
}

// New registers ticket metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		TicketsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_tickets_opened_total",
			Help: "Total new ticket channels created",
		}, []string{"tenant_id"}),
		TicketsReopened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_tickets_reopened_total",
			Help: "Total idempotent reopens of an existing ticket channel",
		}, []string{"tenant_id"}),
		TicketsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_tickets_closed_total",
			Help: "Total tickets closed and removed from routing",
		}, []string{"tenant_id"}),
		CloseFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_ticket_close_failures_total",
			Help: "Total close attempts that failed at channel deletion",
		}, []string{"tenant_id"}),
		StaleEntriesHealed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_routing_stale_entries_healed_total",
			Help: "Total routing entries replaced after external channel deletion",
		}, []string{"tenant_id"}),
		MessagesRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_ticket_messages_relayed_total",
			Help: "Total inbound messages relayed into ticket channels",
		}, []string{"tenant_id"}),
		TranscriptFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relaydesk_transcript_failures_total",
			Help: "Total best-effort transcript generations that failed",
		}, []string{"tenant_id"}),
	}
}
