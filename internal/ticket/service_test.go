package ticket_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"relaydesk/internal/routing"
	routestore "relaydesk/internal/routing/store"
	"relaydesk/internal/session"
	"relaydesk/internal/ticket"
	"relaydesk/internal/ticket/mocks"
	"relaydesk/pkg/domain"
	dErrors "relaydesk/pkg/domain-errors"
)

const (
	rawConversation = "15551234567@s.whatsapp.net"
	conversationID  = domain.ConversationID("15551234567")
	dialAddress     = "+15551234567"
)

type ServiceSuite struct {
	suite.Suite
	ctx         context.Context
	ctrl        *gomock.Controller
	channels    *mocks.MockChannelClient
	transcripts *mocks.MockTranscriptGenerator
	messenger   *mocks.MockCounterpartMessenger
	media       *mocks.MockMediaFetcher
	routes      *routing.Table
	settings    ticket.Settings
	service     *ticket.Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.channels = mocks.NewMockChannelClient(s.ctrl)
	s.transcripts = mocks.NewMockTranscriptGenerator(s.ctrl)
	s.messenger = mocks.NewMockCounterpartMessenger(s.ctrl)
	s.media = mocks.NewMockMediaFetcher(s.ctrl)

	routes, err := routing.New(s.ctx, "tenant-acme", routestore.NewMemory())
	s.Require().NoError(err)
	s.routes = routes

	s.settings = ticket.Settings{
		WelcomeMessage:     "Hi {name}, an agent will be with you shortly",
		IntroMessage:       "New conversation with {name} ({phoneNumber})",
		ReopenMessage:      "Conversation with {name} reopened",
		CloseMessage:       "Thanks {name}, this conversation is now closed",
		FeedbackMessage:    "How did we do, {name}?",
		SendClosingMessage: true,
		TranscriptsEnabled: true,
		FeedbackEnabled:    true,
		TicketCategoryID:   "category-7",
	}

	s.service = ticket.NewService("tenant-acme", s.routes, s.channels,
		ticket.SettingsProviderFunc(func(context.Context) (ticket.Settings, error) {
			return s.settings, nil
		}),
		ticket.WithLogger(slog.Default()),
		ticket.WithTranscriptGenerator(s.transcripts),
		ticket.WithCounterpartMessenger(s.messenger),
		ticket.WithMediaFetcher(s.media),
	)
}

func (s *ServiceSuite) TestCreateOpensChannelWithTemplates() {
	s.channels.EXPECT().
		CreateChannel(gomock.Any(), "Ada", "category-7").
		Return(domain.ChannelID("chan-1"), nil)
	s.channels.EXPECT().
		SendMessage(gomock.Any(), domain.ChannelID("chan-1"), "New conversation with Ada (+15551234567)").
		Return(nil)
	s.messenger.EXPECT().
		SendText(gomock.Any(), conversationID, "Hi Ada, an agent will be with you shortly").
		Return(nil)

	channelID, err := s.service.CreateOrReopen(s.ctx, rawConversation, "Ada")
	s.Require().NoError(err)
	s.Equal(domain.ChannelID("chan-1"), channelID)

	bound, ok := s.routes.Get(conversationID)
	s.True(ok)
	s.Equal(domain.ChannelID("chan-1"), bound)
}

func (s *ServiceSuite) TestCreateOrReopenIsIdempotent() {
	s.channels.EXPECT().
		CreateChannel(gomock.Any(), "Ada", "category-7").
		Return(domain.ChannelID("chan-1"), nil)
	s.channels.EXPECT().SendMessage(gomock.Any(), domain.ChannelID("chan-1"), gomock.Any()).Return(nil)
	s.messenger.EXPECT().SendText(gomock.Any(), conversationID, gomock.Any()).Return(nil)

	first, err := s.service.CreateOrReopen(s.ctx, rawConversation, "Ada")
	s.Require().NoError(err)

	// Second call: the entry is live and the channel still exists, so no new
	// channel and no new messages.
	s.channels.EXPECT().
		ChannelExists(gomock.Any(), domain.ChannelID("chan-1")).
		Return(true, nil)

	second, err := s.service.CreateOrReopen(s.ctx, rawConversation, "Ada")
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *ServiceSuite) TestDecoratedAddressesCollapseToOneTicket() {
	s.channels.EXPECT().
		CreateChannel(gomock.Any(), "Ada", "category-7").
		Return(domain.ChannelID("chan-1"), nil)
	s.channels.EXPECT().SendMessage(gomock.Any(), domain.ChannelID("chan-1"), gomock.Any()).Return(nil)
	s.messenger.EXPECT().SendText(gomock.Any(), conversationID, gomock.Any()).Return(nil)

	first, err := s.service.CreateOrReopen(s.ctx, "+1 (555) 123-4567", "Ada")
	s.Require().NoError(err)

	s.channels.EXPECT().
		ChannelExists(gomock.Any(), domain.ChannelID("chan-1")).
		Return(true, nil)

	second, err := s.service.CreateOrReopen(s.ctx, "15551234567:12@s.whatsapp.net", "Ada")
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *ServiceSuite) TestStaleEntryIsReplacedWithFreshChannel() {
	_, err := s.routes.Set(s.ctx, rawConversation, "chan-old", "Ada")
	s.Require().NoError(err)

	s.channels.EXPECT().
		ChannelExists(gomock.Any(), domain.ChannelID("chan-old")).
		Return(false, nil)
	s.channels.EXPECT().
		CreateChannel(gomock.Any(), "Ada", "category-7").
		Return(domain.ChannelID("chan-new"), nil)
	s.channels.EXPECT().
		SendMessage(gomock.Any(), domain.ChannelID("chan-new"), "Conversation with Ada reopened").
		Return(nil)

	channelID, err := s.service.CreateOrReopen(s.ctx, rawConversation, "Ada")
	s.Require().NoError(err)
	s.Equal(domain.ChannelID("chan-new"), channelID)

	bound, ok := s.routes.Get(conversationID)
	s.True(ok)
	s.Equal(domain.ChannelID("chan-new"), bound, "stale channel must not survive in routing")
}

func (s *ServiceSuite) TestRefusedBindingDeletesTheOrphanChannel() {
	// chan-1 already belongs to another conversation.
	_, err := s.routes.Set(s.ctx, "14440000000", "chan-1", "Grace")
	s.Require().NoError(err)

	s.channels.EXPECT().
		CreateChannel(gomock.Any(), "Ada", "category-7").
		Return(domain.ChannelID("chan-1"), nil)
	s.channels.EXPECT().
		DeleteChannel(gomock.Any(), domain.ChannelID("chan-1")).
		Return(nil)

	_, err = s.service.CreateOrReopen(s.ctx, rawConversation, "Ada")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeChannelInUse))

	_, ok := s.routes.Get(conversationID)
	s.False(ok)
}

func (s *ServiceSuite) openTicket() domain.ChannelID {
	s.T().Helper()
	s.channels.EXPECT().
		CreateChannel(gomock.Any(), "Ada", "category-7").
		Return(domain.ChannelID("chan-1"), nil)
	s.channels.EXPECT().SendMessage(gomock.Any(), domain.ChannelID("chan-1"), gomock.Any()).Return(nil)
	s.messenger.EXPECT().SendText(gomock.Any(), conversationID, gomock.Any()).Return(nil)

	channelID, err := s.service.CreateOrReopen(s.ctx, rawConversation, "Ada")
	s.Require().NoError(err)
	return channelID
}

func (s *ServiceSuite) TestCloseRunsTheFullSequence() {
	channelID := s.openTicket()

	transcriptDone := make(chan struct{})
	s.messenger.EXPECT().
		SendText(gomock.Any(), conversationID, "Thanks Ada, this conversation is now closed").
		Return(nil)
	s.transcripts.EXPECT().
		Generate(gomock.Any(), channelID, "operator@acme").
		DoAndReturn(func(context.Context, domain.ChannelID, string) error {
			close(transcriptDone)
			return nil
		})
	s.messenger.EXPECT().
		SendText(gomock.Any(), conversationID, "How did we do, Ada?").
		Return(nil)
	s.channels.EXPECT().DeleteChannel(gomock.Any(), channelID).Return(nil)

	err := s.service.Close(s.ctx, conversationID, "operator@acme", true)
	s.Require().NoError(err)

	_, ok := s.routes.Get(conversationID)
	s.False(ok, "closed ticket must leave no routing entry")

	select {
	case <-transcriptDone:
	case <-time.After(time.Second):
		s.Fail("transcript generation never ran")
	}
}

func (s *ServiceSuite) TestCloseWithoutNotificationSkipsCounterpart() {
	channelID := s.openTicket()
	s.settings.TranscriptsEnabled = false
	s.settings.FeedbackEnabled = false

	s.channels.EXPECT().DeleteChannel(gomock.Any(), channelID).Return(nil)

	err := s.service.Close(s.ctx, conversationID, "operator@acme", false)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestCloseKeepsEntryWhenDeletionFails() {
	channelID := s.openTicket()
	s.settings.TranscriptsEnabled = false
	s.settings.FeedbackEnabled = false
	s.settings.SendClosingMessage = false

	s.channels.EXPECT().
		DeleteChannel(gomock.Any(), channelID).
		Return(errors.New("platform unavailable"))

	err := s.service.Close(s.ctx, conversationID, "operator@acme", false)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeCloseFailed))

	bound, ok := s.routes.Get(conversationID)
	s.True(ok, "entry must survive a failed deletion so close can be retried")
	s.Equal(channelID, bound)
}

func (s *ServiceSuite) TestCloseUnknownConversation() {
	err := s.service.Close(s.ctx, "19998887777", "operator@acme", false)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestReopenAfterCloseProducesNewChannel() {
	channelID := s.openTicket()
	s.settings.TranscriptsEnabled = false
	s.settings.FeedbackEnabled = false
	s.settings.SendClosingMessage = false

	s.channels.EXPECT().DeleteChannel(gomock.Any(), channelID).Return(nil)
	s.Require().NoError(s.service.Close(s.ctx, conversationID, "operator@acme", false))

	s.channels.EXPECT().
		CreateChannel(gomock.Any(), "Ada", "category-7").
		Return(domain.ChannelID("chan-2"), nil)
	s.channels.EXPECT().SendMessage(gomock.Any(), domain.ChannelID("chan-2"), gomock.Any()).Return(nil)
	s.messenger.EXPECT().SendText(gomock.Any(), conversationID, gomock.Any()).Return(nil)

	reopened, err := s.service.CreateOrReopen(s.ctx, rawConversation, "Ada")
	s.Require().NoError(err)
	s.NotEqual(channelID, reopened, "a deleted channel's identity must not resurrect")
}

func (s *ServiceSuite) TestHandleInboundRelaysText() {
	channelID := s.openTicket()

	s.channels.EXPECT().ChannelExists(gomock.Any(), channelID).Return(true, nil)
	s.channels.EXPECT().
		SendMessage(gomock.Any(), channelID, "Ada: I need help with my order").
		Return(nil)

	err := s.service.HandleInbound(s.ctx, session.InboundMessage{
		From:        rawConversation,
		DisplayName: "Ada",
		Text:        "I need help with my order",
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestHandleInboundRelaysMedia() {
	channelID := s.openTicket()
	ref := session.MediaRef{ID: "m-1", MimeType: "image/png", Caption: "receipt"}

	s.channels.EXPECT().ChannelExists(gomock.Any(), channelID).Return(true, nil)
	s.media.EXPECT().DownloadMedia(gomock.Any(), ref).Return([]byte("png-bytes"), nil)
	s.channels.EXPECT().
		UploadFile(gomock.Any(), channelID, "m-1.png", []byte("png-bytes")).
		Return(nil)
	s.channels.EXPECT().
		SendMessage(gomock.Any(), channelID, "Ada: receipt").
		Return(nil)

	err := s.service.HandleInbound(s.ctx, session.InboundMessage{
		From:        rawConversation,
		DisplayName: "Ada",
		MediaRef:    &ref,
	})
	s.Require().NoError(err)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
