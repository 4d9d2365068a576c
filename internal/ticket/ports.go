package ticket

import (
	"context"

	"relaydesk/internal/session"
	"relaydesk/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// ChannelClient is the collaboration-platform surface the ticket lifecycle
// needs. Implementations talk to the external workspace API.
type ChannelClient interface {
	// CreateChannel creates a conversation channel under the tenant's ticket
	// category and returns its identifier.
	CreateChannel(ctx context.Context, name string, categoryID string) (domain.ChannelID, error)

	// DeleteChannel removes a channel from the workspace.
	DeleteChannel(ctx context.Context, channelID domain.ChannelID) error

	// SendMessage posts a text message into a channel.
	SendMessage(ctx context.Context, channelID domain.ChannelID, text string) error

	// UploadFile posts a file attachment into a channel.
	UploadFile(ctx context.Context, channelID domain.ChannelID, filename string, data []byte) error

	// ChannelExists reports whether the channel is still live on the platform.
	// Used for the staleness check when reopening.
	ChannelExists(ctx context.Context, channelID domain.ChannelID) (bool, error)
}

// TranscriptGenerator renders a closing channel's history into an archive.
// Generation is best-effort: failures are logged, never propagated, and never
// block channel deletion.
type TranscriptGenerator interface {
	Generate(ctx context.Context, channelID domain.ChannelID, closedBy string) error
}

// CounterpartMessenger sends text back to the conversation counterpart on the
// messaging network. Satisfied by the session manager.
type CounterpartMessenger interface {
	SendText(ctx context.Context, conversationID domain.ConversationID, text string) error
}

// MediaFetcher downloads media referenced by inbound messages. Satisfied by
// the session manager.
type MediaFetcher interface {
	DownloadMedia(ctx context.Context, ref session.MediaRef) ([]byte, error)
}

// Settings is the ticket-relevant slice of a tenant's configuration. Message
// fields are raw templates; {name} and {phoneNumber} placeholders are
// substituted at send time.
type Settings struct {
	WelcomeMessage  string
	IntroMessage    string
	ReopenMessage   string
	CloseMessage    string
	FeedbackMessage string

	SendClosingMessage bool
	TranscriptsEnabled bool
	FeedbackEnabled    bool

	TicketCategoryID string
}

// SettingsProvider resolves the current tenant settings on every call, so
// registry-side updates take effect without restarting the session.
type SettingsProvider interface {
	TicketSettings(ctx context.Context) (Settings, error)
}

// SettingsProviderFunc adapts a function to SettingsProvider.
type SettingsProviderFunc func(ctx context.Context) (Settings, error)

func (f SettingsProviderFunc) TicketSettings(ctx context.Context) (Settings, error) {
	return f(ctx)
}
