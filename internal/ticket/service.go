// Package ticket orchestrates conversation channel lifecycle: open, reopen,
// relay, and close-with-transcript against the routing table.
package ticket

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"relaydesk/internal/audit"
	"relaydesk/internal/routing"
	"relaydesk/internal/session"
	ticketmetrics "relaydesk/internal/ticket/metrics"
	"relaydesk/pkg/domain"
	dErrors "relaydesk/pkg/domain-errors"
)

// AuditPublisher records ticket lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service drives one tenant's ticket lifecycle. A ticket's identity is its
// conversation ID; its channel ID changes only through a full close and
// recreate.
type Service struct {
	tenantID    domain.TenantID
	routes      *routing.Table
	channels    ChannelClient
	settings    SettingsProvider
	transcripts TranscriptGenerator
	messenger   CounterpartMessenger
	media       MediaFetcher

	logger  *slog.Logger
	metrics *ticketmetrics.Metrics
	auditor AuditPublisher
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(metrics *ticketmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithTranscriptGenerator(generator TranscriptGenerator) Option {
	return func(s *Service) { s.transcripts = generator }
}

func WithCounterpartMessenger(messenger CounterpartMessenger) Option {
	return func(s *Service) { s.messenger = messenger }
}

func WithMediaFetcher(fetcher MediaFetcher) Option {
	return func(s *Service) { s.media = fetcher }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

// NewService builds the ticket lifecycle for one tenant.
func NewService(tenantID domain.TenantID, routes *routing.Table, channels ChannelClient, settings SettingsProvider, opts ...Option) *Service {
	s := &Service{
		tenantID: tenantID,
		routes:   routes,
		channels: channels,
		settings: settings,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("relaydesk/internal/ticket")
	}
	return s
}

// CreateOrReopen returns the channel for a conversation, creating one if
// needed. Idempotent: a live entry whose channel still exists on the platform
// is returned unchanged, so repeated inbound messages never spawn duplicate
// channels. An entry whose channel was deleted externally is stale and gets
// replaced with a fresh channel.
func (s *Service) CreateOrReopen(ctx context.Context, rawConversation, displayName string) (domain.ChannelID, error) {
	ctx, span := s.tracer.Start(ctx, "ticket.CreateOrReopen",
		trace.WithAttributes(attribute.String("tenant.id", s.tenantID.String())))
	defer span.End()

	conversationID, err := routing.Normalize(rawConversation)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid conversation address")
	}
	span.SetAttributes(attribute.String("conversation.id", conversationID.String()))

	cfg, err := s.settings.TicketSettings(ctx)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load tenant settings")
	}

	if channelID, ok := s.routes.Get(conversationID); ok {
		exists, err := s.channels.ChannelExists(ctx, channelID)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check channel liveness")
		}
		if exists {
			s.routes.Touch(ctx, conversationID, displayName)
			s.count(func(m *ticketmetrics.Metrics) { m.TicketsReopened.WithLabelValues(s.tenantID.String()).Inc() })
			return channelID, nil
		}

		// Self-heal: the channel was deleted on the platform side. Replace the
		// entry with a fresh channel rather than surfacing an error.
		channelID, err = s.openChannel(ctx, conversationID, displayName, cfg, true)
		if err != nil {
			return "", err
		}
		s.count(func(m *ticketmetrics.Metrics) { m.StaleEntriesHealed.WithLabelValues(s.tenantID.String()).Inc() })
		return channelID, nil
	}

	channelID, err := s.openChannel(ctx, conversationID, displayName, cfg, false)
	if err != nil {
		return "", err
	}

	if s.messenger != nil && cfg.WelcomeMessage != "" {
		welcome := render(cfg.WelcomeMessage, displayName, routing.DialAddress(conversationID))
		if err := s.messenger.SendText(ctx, conversationID, welcome); err != nil {
			s.logger.WarnContext(ctx, "failed to send welcome message",
				"tenant_id", s.tenantID.String(),
				"conversation_id", conversationID.String(),
				"error", err,
			)
		}
	}
	return channelID, nil
}

// openChannel creates the platform channel, binds it in the routing table,
// and posts the intro (new ticket) or reopen (healed ticket) message.
func (s *Service) openChannel(ctx context.Context, conversationID domain.ConversationID, displayName string, cfg Settings, healed bool) (domain.ChannelID, error) {
	name := channelName(displayName, conversationID)

	channelID, err := s.channels.CreateChannel(ctx, name, cfg.TicketCategoryID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create channel")
	}

	if _, err := s.routes.Set(ctx, conversationID.String(), channelID, displayName); err != nil {
		// The binding was refused; do not leave an unrouted channel behind.
		if delErr := s.channels.DeleteChannel(ctx, channelID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to delete unrouted channel",
				"tenant_id", s.tenantID.String(),
				"channel_id", channelID.String(),
				"error", delErr,
			)
		}
		return "", err
	}

	template, action, event := cfg.IntroMessage, "opened", audit.EventTicketOpened
	if healed {
		template, action, event = cfg.ReopenMessage, "reopened", audit.EventTicketReopened
	}
	if template != "" {
		text := render(template, displayName, routing.DialAddress(conversationID))
		if err := s.channels.SendMessage(ctx, channelID, text); err != nil {
			s.logger.WarnContext(ctx, "failed to post channel "+action+" message",
				"tenant_id", s.tenantID.String(),
				"channel_id", channelID.String(),
				"error", err,
			)
		}
	}

	if !healed {
		s.count(func(m *ticketmetrics.Metrics) { m.TicketsOpened.WithLabelValues(s.tenantID.String()).Inc() })
	}
	s.emitAudit(ctx, event, conversationID, channelID, "")
	s.logger.InfoContext(ctx, "ticket "+action,
		"tenant_id", s.tenantID.String(),
		"conversation_id", conversationID.String(),
		"channel_id", channelID.String(),
	)
	return channelID, nil
}

// Close tears a ticket down: optional counterpart notification, best-effort
// transcript and feedback prompt, channel deletion, then routing removal.
// Deletion failure keeps the routing entry so a retry is still possible.
func (s *Service) Close(ctx context.Context, conversationID domain.ConversationID, closedBy string, sendNotification bool) error {
	ctx, span := s.tracer.Start(ctx, "ticket.Close",
		trace.WithAttributes(
			attribute.String("tenant.id", s.tenantID.String()),
			attribute.String("conversation.id", conversationID.String()),
		))
	defer span.End()

	channelID, ok := s.routes.Get(conversationID)
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "no open ticket for conversation")
	}

	cfg, err := s.settings.TicketSettings(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load tenant settings")
	}

	displayName := s.displayNameFor(conversationID)
	dial := routing.DialAddress(conversationID)

	if sendNotification && cfg.SendClosingMessage && cfg.CloseMessage != "" && s.messenger != nil {
		if err := s.messenger.SendText(ctx, conversationID, render(cfg.CloseMessage, displayName, dial)); err != nil {
			s.logger.WarnContext(ctx, "failed to send closing message",
				"tenant_id", s.tenantID.String(),
				"conversation_id", conversationID.String(),
				"error", err,
			)
		}
	}

	if cfg.TranscriptsEnabled && s.transcripts != nil {
		s.generateTranscript(channelID, closedBy)
	}

	if cfg.FeedbackEnabled && cfg.FeedbackMessage != "" && s.messenger != nil {
		if err := s.messenger.SendText(ctx, conversationID, render(cfg.FeedbackMessage, displayName, dial)); err != nil {
			s.logger.WarnContext(ctx, "failed to send feedback prompt",
				"tenant_id", s.tenantID.String(),
				"conversation_id", conversationID.String(),
				"error", err,
			)
		}
	}

	if err := s.channels.DeleteChannel(ctx, channelID); err != nil {
		s.count(func(m *ticketmetrics.Metrics) { m.CloseFailures.WithLabelValues(s.tenantID.String()).Inc() })
		return dErrors.Wrap(err, dErrors.CodeCloseFailed, "channel deletion failed; ticket remains open")
	}
	s.routes.Remove(ctx, conversationID)

	s.count(func(m *ticketmetrics.Metrics) { m.TicketsClosed.WithLabelValues(s.tenantID.String()).Inc() })
	s.emitAudit(ctx, audit.EventTicketClosed, conversationID, channelID, closedBy)
	s.logger.InfoContext(ctx, "ticket closed",
		"tenant_id", s.tenantID.String(),
		"conversation_id", conversationID.String(),
		"channel_id", channelID.String(),
		"closed_by", closedBy,
	)
	return nil
}

// generateTranscript runs the transcript collaborator in the background so
// its outcome never affects the close sequence.
func (s *Service) generateTranscript(channelID domain.ChannelID, closedBy string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.transcripts.Generate(ctx, channelID, closedBy); err != nil {
			s.logger.ErrorContext(ctx, "transcript generation failed",
				"tenant_id", s.tenantID.String(),
				"channel_id", channelID.String(),
				"error", err,
			)
			s.count(func(m *ticketmetrics.Metrics) { m.TranscriptFailures.WithLabelValues(s.tenantID.String()).Inc() })
		}
	}()
}

// HandleInbound implements session.InboundHandler: open or reopen the ticket
// for the sender, then relay the message into its channel.
func (s *Service) HandleInbound(ctx context.Context, msg session.InboundMessage) error {
	channelID, err := s.CreateOrReopen(ctx, msg.From, msg.DisplayName)
	if err != nil {
		return err
	}

	if msg.Text != "" {
		if err := s.channels.SendMessage(ctx, channelID, relayText(msg.DisplayName, msg.Text)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to relay message")
		}
	}

	if msg.MediaRef != nil && s.media != nil {
		if err := s.relayMedia(ctx, channelID, msg); err != nil {
			return err
		}
	}

	s.count(func(m *ticketmetrics.Metrics) { m.MessagesRelayed.WithLabelValues(s.tenantID.String()).Inc() })
	return nil
}

func (s *Service) relayMedia(ctx context.Context, channelID domain.ChannelID, msg session.InboundMessage) error {
	data, err := s.media.DownloadMedia(ctx, *msg.MediaRef)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to download inbound media")
	}
	filename := mediaFilename(*msg.MediaRef)
	if err := s.channels.UploadFile(ctx, channelID, filename, data); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to relay media")
	}
	if msg.MediaRef.Caption != "" {
		if err := s.channels.SendMessage(ctx, channelID, relayText(msg.DisplayName, msg.MediaRef.Caption)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to relay media caption")
		}
	}
	return nil
}

func (s *Service) displayNameFor(conversationID domain.ConversationID) string {
	for _, entry := range s.routes.Entries() {
		if entry.ConversationID == conversationID {
			return entry.DisplayName
		}
	}
	return ""
}

func (s *Service) count(inc func(*ticketmetrics.Metrics)) {
	if s.metrics != nil {
		inc(s.metrics)
	}
}

func (s *Service) emitAudit(ctx context.Context, action audit.AuditEvent, conversationID domain.ConversationID, channelID domain.ChannelID, actor string) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		TenantID:       s.tenantID,
		ConversationID: conversationID,
		ChannelID:      channelID,
		Action:         string(action),
		Actor:          actor,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to emit ticket event",
			"tenant_id", s.tenantID.String(),
			"action", string(action),
			"error", err,
		)
	}
}

// render substitutes the {name} and {phoneNumber} placeholders of a tenant
// message template.
func render(template, name, phoneNumber string) string {
	out := strings.ReplaceAll(template, "{name}", name)
	return strings.ReplaceAll(out, "{phoneNumber}", phoneNumber)
}

// channelName derives a platform channel name from the counterpart.
func channelName(displayName string, conversationID domain.ConversationID) string {
	if displayName != "" {
		return displayName
	}
	return routing.DialAddress(conversationID)
}

// relayText prefixes relayed messages with the sender so operators can tell
// counterpart text from system text.
func relayText(displayName, text string) string {
	if displayName == "" {
		return text
	}
	return displayName + ": " + text
}

func mediaFilename(ref session.MediaRef) string {
	name := ref.ID
	if name == "" {
		name = "attachment"
	}
	switch ref.MimeType {
	case "image/jpeg":
		return name + ".jpg"
	case "image/png":
		return name + ".png"
	case "video/mp4":
		return name + ".mp4"
	case "audio/ogg":
		return name + ".ogg"
	case "application/pdf":
		return name + ".pdf"
	default:
		return name
	}
}
