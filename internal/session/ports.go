package session

import (
	"context"

	"relaydesk/pkg/domain"
)

// EventKind enumerates the lifecycle events a ConnectionAdapter emits.
type EventKind string

const (
	EventQR            EventKind = "qr"
	EventAuthenticated EventKind = "authenticated"
	EventReady         EventKind = "ready"
	EventAuthFailure   EventKind = "auth_failure"
	EventDisconnected  EventKind = "disconnected"
	EventMessage       EventKind = "message"
)

// DisconnectReasonLoggedOut marks a terminal disconnect: the network rejected
// or revoked the session's credentials. It is never auto-retried.
const DisconnectReasonLoggedOut = "logged out"

// Event is one lifecycle or message event from the messaging network.
// Exactly one payload field is set, matching Kind.
type Event struct {
	Kind EventKind

	// QRCode carries the credential-bootstrap payload for EventQR.
	QRCode string

	// Reason qualifies EventAuthFailure and EventDisconnected.
	Reason string

	// Message carries the inbound message for EventMessage.
	Message *InboundMessage
}

// InboundMessage is a message received from a conversation counterpart.
type InboundMessage struct {
	// From is the raw, still-decorated network address of the sender.
	From        string
	DisplayName string
	Text        string

	// MediaRef is set when the message carries media to be fetched through
	// DownloadMedia.
	MediaRef *MediaRef
}

// MediaRef points at downloadable media attached to a message.
type MediaRef struct {
	ID       string
	MimeType string
	Caption  string
}

// ConnectionAdapter wraps one messaging-network client connection.
//
// Adapters are single-use: one adapter serves at most one Initialize cycle,
// and the Events channel is closed when the underlying connection is torn
// down. Reconnecting means constructing a fresh adapter, never re-subscribing
// to an old one.
type ConnectionAdapter interface {
	// Initialize starts the connection. With bootstrapCredentials the adapter
	// requests a fresh QR challenge instead of attempting silent resume.
	Initialize(ctx context.Context, bootstrapCredentials bool) error

	// Disconnect tears the connection down. With logOut the network session
	// itself is invalidated, not just the transport.
	Disconnect(ctx context.Context, logOut bool) error

	SendText(ctx context.Context, conversationID domain.ConversationID, text string) error
	SendMedia(ctx context.Context, conversationID domain.ConversationID, data []byte, mimeType, caption string) error
	DownloadMedia(ctx context.Context, ref MediaRef) ([]byte, error)

	// Events delivers lifecycle and message events in emission order. The
	// channel is closed when the adapter is finished.
	Events() <-chan Event
}

// AdapterFactory constructs a fresh ConnectionAdapter per connection attempt.
type AdapterFactory interface {
	NewAdapter(tenantID domain.TenantID) ConnectionAdapter
}

// CredentialStore owns the persisted network credentials for tenants.
// Purge removes them so the next connect must bootstrap via a fresh QR.
type CredentialStore interface {
	Purge(ctx context.Context, tenantID domain.TenantID) error
}

// InboundHandler consumes routed inbound messages; implemented by the ticket
// service.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg InboundMessage) error
}
