package audit

import (
	"time"

	"relaydesk/pkg/domain"
)

// Event is emitted from domain logic to capture key lifecycle actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp      time.Time             `json:"timestamp"`
	TenantID       domain.TenantID       `json:"tenantId"`
	ConversationID domain.ConversationID `json:"conversationId,omitempty"`
	ChannelID      domain.ChannelID      `json:"channelId,omitempty"`
	Action         string                `json:"action"`
	Reason         string                `json:"reason,omitempty"`
	Actor          string                `json:"actor,omitempty"`
	RequestID      string                `json:"requestId,omitempty"`
}

type AuditEvent string

const (
	EventSessionConnecting  AuditEvent = "session_connecting"
	EventQRIssued           AuditEvent = "qr_issued"
	EventSessionReady       AuditEvent = "session_ready"
	EventReconnectScheduled AuditEvent = "reconnect_scheduled"
	EventSessionFailed      AuditEvent = "session_failed"
	EventSessionLoggedOut   AuditEvent = "session_logged_out"
	EventSessionDisconnect  AuditEvent = "session_disconnected"
	EventTicketOpened       AuditEvent = "ticket_opened"
	EventTicketReopened     AuditEvent = "ticket_reopened"
	EventTicketClosed       AuditEvent = "ticket_closed"
	EventTenantCreated      AuditEvent = "tenant_created"
	EventTenantRemoved      AuditEvent = "tenant_removed"
)
