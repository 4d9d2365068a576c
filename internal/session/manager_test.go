package session_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"relaydesk/internal/routing"
	routestore "relaydesk/internal/routing/store"
	"relaydesk/internal/session"
	"relaydesk/pkg/domain"
	dErrors "relaydesk/pkg/domain-errors"
)

// fakeAdapter scripts one connection attempt. Tests drive lifecycle events by
// writing into the events channel; onInit hooks the Initialize outcome.
type fakeAdapter struct {
	events chan session.Event
	onInit func(a *fakeAdapter) error

	mu            sync.Mutex
	initCalls     int
	bootstrap     bool
	disconnects   int
	loggedOut     bool
	sentTexts     []string
	sentMediaMime []string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{events: make(chan session.Event, 16)}
}

func (a *fakeAdapter) Initialize(_ context.Context, bootstrapCredentials bool) error {
	a.mu.Lock()
	a.initCalls++
	a.bootstrap = bootstrapCredentials
	a.mu.Unlock()
	if a.onInit != nil {
		return a.onInit(a)
	}
	return nil
}

func (a *fakeAdapter) Disconnect(_ context.Context, logOut bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disconnects++
	a.loggedOut = a.loggedOut || logOut
	return nil
}

func (a *fakeAdapter) SendText(_ context.Context, _ domain.ConversationID, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sentTexts = append(a.sentTexts, text)
	return nil
}

func (a *fakeAdapter) SendMedia(_ context.Context, _ domain.ConversationID, _ []byte, mimeType, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sentMediaMime = append(a.sentMediaMime, mimeType)
	return nil
}

func (a *fakeAdapter) DownloadMedia(_ context.Context, _ session.MediaRef) ([]byte, error) {
	return []byte("media"), nil
}

func (a *fakeAdapter) Events() <-chan session.Event { return a.events }

func (a *fakeAdapter) emit(ev session.Event) { a.events <- ev }

// fakeFactory hands out fresh adapters and keeps them for inspection; prepare
// scripts each adapter before the manager sees it, keyed by creation index.
type fakeFactory struct {
	mu       sync.Mutex
	adapters []*fakeAdapter
	prepare  func(a *fakeAdapter, index int)
}

func (f *fakeFactory) NewAdapter(_ domain.TenantID) session.ConnectionAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := newFakeAdapter()
	if f.prepare != nil {
		f.prepare(a, len(f.adapters))
	}
	f.adapters = append(f.adapters, a)
	return a
}

func (f *fakeFactory) adapter(index int) *fakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index >= len(f.adapters) {
		return nil
	}
	return f.adapters[index]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.adapters)
}

type fakeCredentialStore struct {
	mu     sync.Mutex
	purged []domain.TenantID
}

func (s *fakeCredentialStore) Purge(_ context.Context, tenantID domain.TenantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purged = append(s.purged, tenantID)
	return nil
}

type ManagerSuite struct {
	suite.Suite
	ctx     context.Context
	factory *fakeFactory
	creds   *fakeCredentialStore
	routes  *routing.Table
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.factory = &fakeFactory{}
	s.creds = &fakeCredentialStore{}

	routes, err := routing.New(s.ctx, "tenant-acme", routestore.NewMemory())
	s.Require().NoError(err)
	s.routes = routes
}

func (s *ManagerSuite) newManager(opts ...session.Option) *session.Manager {
	base := []session.Option{
		session.WithLogger(slog.Default()),
		session.WithCredentialStore(s.creds),
		session.WithReconnectPolicy(time.Millisecond, 5*time.Millisecond, 3),
	}
	return session.New("tenant-acme", s.factory, s.routes, append(base, opts...)...)
}

// scriptReady makes an adapter's Initialize emit the authenticated/ready pair.
func scriptReady(a *fakeAdapter) error {
	a.emit(session.Event{Kind: session.EventAuthenticated})
	a.emit(session.Event{Kind: session.EventReady})
	return nil
}

func (s *ManagerSuite) TestConnectReachesReady() {
	s.factory.prepare = func(a *fakeAdapter, _ int) { a.onInit = scriptReady }
	m := s.newManager()

	state, err := m.Connect(s.ctx, false)
	s.Require().NoError(err)
	s.Equal(session.StateReady, state)
	s.Equal(session.StateReady, m.State())

	status := m.Status()
	s.Equal(0, status.ReconnectAttempts)
	s.False(status.QRPending)
}

func (s *ManagerSuite) TestConnectIsIdempotentWhenReady() {
	s.factory.prepare = func(a *fakeAdapter, _ int) { a.onInit = scriptReady }
	m := s.newManager()

	_, err := m.Connect(s.ctx, false)
	s.Require().NoError(err)

	state, err := m.Connect(s.ctx, false)
	s.Require().NoError(err)
	s.Equal(session.StateReady, state)
	s.Equal(1, s.factory.count(), "a ready session must not build a second adapter")
}

func (s *ManagerSuite) TestConnectSurfacesQRChallenge() {
	s.factory.prepare = func(a *fakeAdapter, _ int) {
		a.onInit = func(a *fakeAdapter) error {
			a.emit(session.Event{Kind: session.EventQR, QRCode: "qr-code-1"})
			return nil
		}
	}
	m := s.newManager()

	var got []session.QRChallenge
	var mu sync.Mutex
	m.OnQRCode(func(q session.QRChallenge) {
		mu.Lock()
		got = append(got, q)
		mu.Unlock()
	})

	state, err := m.Connect(s.ctx, true)
	s.Require().NoError(err)
	s.Equal(session.StateQRPending, state)

	s.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0].Code == "qr-code-1"
	}, time.Second, 5*time.Millisecond)

	challenge, ok := m.CurrentQR()
	s.True(ok)
	s.Equal("qr-code-1", challenge.Code)
	s.True(s.factory.adapter(0).bootstrap)
}

func (s *ManagerSuite) TestLateQRSubscriberReceivesLiveChallengeOnce() {
	s.factory.prepare = func(a *fakeAdapter, _ int) {
		a.onInit = func(a *fakeAdapter) error {
			a.emit(session.Event{Kind: session.EventQR, QRCode: "qr-late"})
			return nil
		}
	}
	m := s.newManager()

	state, err := m.Connect(s.ctx, true)
	s.Require().NoError(err)
	s.Require().Equal(session.StateQRPending, state)

	// Subscribe after issuance: the live challenge is delivered immediately.
	var got []session.QRChallenge
	var mu sync.Mutex
	m.OnQRCode(func(q session.QRChallenge) {
		mu.Lock()
		got = append(got, q)
		mu.Unlock()
	})

	mu.Lock()
	s.Require().Len(got, 1)
	s.Equal("qr-late", got[0].Code)
	mu.Unlock()

	// No re-delivery afterwards.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	s.Len(got, 1)
	mu.Unlock()
}

func (s *ManagerSuite) TestNewQRChallengeSupersedesOldOne() {
	s.factory.prepare = func(a *fakeAdapter, _ int) {
		a.onInit = func(a *fakeAdapter) error {
			a.emit(session.Event{Kind: session.EventQR, QRCode: "qr-first"})
			return nil
		}
	}
	m := s.newManager()

	_, err := m.Connect(s.ctx, true)
	s.Require().NoError(err)

	s.factory.adapter(0).emit(session.Event{Kind: session.EventQR, QRCode: "qr-second"})

	s.Eventually(func() bool {
		challenge, ok := m.CurrentQR()
		return ok && challenge.Code == "qr-second"
	}, time.Second, 5*time.Millisecond)
}

func (s *ManagerSuite) TestQRChallengeExpires() {
	s.factory.prepare = func(a *fakeAdapter, _ int) {
		a.onInit = func(a *fakeAdapter) error {
			a.emit(session.Event{Kind: session.EventQR, QRCode: "qr-short"})
			return nil
		}
	}
	m := s.newManager(session.WithQRTTL(20 * time.Millisecond))

	_, err := m.Connect(s.ctx, true)
	s.Require().NoError(err)

	_, ok := m.CurrentQR()
	s.Require().True(ok)

	// CurrentQR and Status judge expiry themselves; neither may report the
	// challenge once the TTL has elapsed, whether or not the expiry timer
	// has fired yet.
	s.Eventually(func() bool {
		_, ok := m.CurrentQR()
		return !ok
	}, time.Second, time.Millisecond)
	status := m.Status()
	s.False(status.QRPending)
	s.Nil(status.QRExpiresAt)
}

func (s *ManagerSuite) TestAuthFailureIsTerminal() {
	s.factory.prepare = func(a *fakeAdapter, _ int) {
		a.onInit = func(a *fakeAdapter) error {
			a.emit(session.Event{Kind: session.EventAuthFailure, Reason: "credentials revoked"})
			return nil
		}
	}
	m := s.newManager()

	state, err := m.Connect(s.ctx, false)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAuthRejected))
	s.Equal(session.StateLoggedOut, state)

	// No silent retry of rejected credentials.
	_, err = m.Connect(s.ctx, false)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTerminalState))
	s.Equal(1, s.factory.count())
}

func (s *ManagerSuite) TestForceBootstrapLeavesLoggedOut() {
	s.factory.prepare = func(a *fakeAdapter, index int) {
		if index == 0 {
			a.onInit = func(a *fakeAdapter) error {
				a.emit(session.Event{Kind: session.EventAuthFailure, Reason: "revoked"})
				return nil
			}
			return
		}
		a.onInit = scriptReady
	}
	m := s.newManager()

	_, err := m.Connect(s.ctx, false)
	s.Require().Error(err)
	s.Equal(session.StateLoggedOut, m.State())

	state, err := m.Connect(s.ctx, true)
	s.Require().NoError(err)
	s.Equal(session.StateReady, state)
	s.True(s.factory.adapter(1).bootstrap)
}

func (s *ManagerSuite) TestLoggedOutDisconnectReasonIsTerminal() {
	s.factory.prepare = func(a *fakeAdapter, _ int) { a.onInit = scriptReady }
	m := s.newManager()

	_, err := m.Connect(s.ctx, false)
	s.Require().NoError(err)

	s.factory.adapter(0).emit(session.Event{
		Kind:   session.EventDisconnected,
		Reason: session.DisconnectReasonLoggedOut,
	})

	s.Eventually(func() bool {
		return m.State() == session.StateLoggedOut
	}, time.Second, 5*time.Millisecond)
	s.Equal(1, s.factory.count(), "a logged-out session must not auto-reconnect")
}

func (s *ManagerSuite) TestUnexpectedDisconnectReconnects() {
	s.factory.prepare = func(a *fakeAdapter, _ int) { a.onInit = scriptReady }
	m := s.newManager()

	_, err := m.Connect(s.ctx, false)
	s.Require().NoError(err)

	s.factory.adapter(0).emit(session.Event{Kind: session.EventDisconnected, Reason: "stream error"})

	s.Eventually(func() bool {
		return m.State() == session.StateReady && s.factory.count() == 2
	}, time.Second, 5*time.Millisecond)

	// A successful recovery resets the attempt budget.
	s.Equal(0, m.Status().ReconnectAttempts)
}

func (s *ManagerSuite) TestReconnectBudgetExhaustionFails() {
	s.factory.prepare = func(a *fakeAdapter, index int) {
		if index == 0 {
			a.onInit = scriptReady
			return
		}
		a.onInit = func(*fakeAdapter) error { return errors.New("network down") }
	}
	m := s.newManager(session.WithReconnectPolicy(time.Millisecond, 2*time.Millisecond, 2))

	_, err := m.Connect(s.ctx, false)
	s.Require().NoError(err)

	var reasons []string
	var mu sync.Mutex
	m.OnDisconnect(func(reason string) {
		mu.Lock()
		reasons = append(reasons, reason)
		mu.Unlock()
	})

	s.factory.adapter(0).emit(session.Event{Kind: session.EventDisconnected, Reason: "stream error"})

	s.Eventually(func() bool {
		return m.State() == session.StateFailed
	}, time.Second, 5*time.Millisecond)

	// Initial adapter plus exactly maxAttempts retries.
	s.Equal(3, s.factory.count())
	s.Contains(m.Status().LastError, "reconnect attempts exhausted")

	mu.Lock()
	s.NotEmpty(reasons)
	mu.Unlock()
}

func (s *ManagerSuite) TestStaleAdapterEventsAreDropped() {
	s.factory.prepare = func(a *fakeAdapter, _ int) { a.onInit = scriptReady }
	m := s.newManager()

	_, err := m.Connect(s.ctx, false)
	s.Require().NoError(err)

	s.factory.adapter(0).emit(session.Event{Kind: session.EventDisconnected, Reason: "stream error"})
	s.Eventually(func() bool {
		return m.State() == session.StateReady && s.factory.count() == 2
	}, time.Second, 5*time.Millisecond)

	// The replaced adapter keeps talking; its events must change nothing.
	s.factory.adapter(0).emit(session.Event{Kind: session.EventDisconnected, Reason: "late echo"})
	time.Sleep(50 * time.Millisecond)
	s.Equal(session.StateReady, m.State())
	s.Equal(2, s.factory.count())
}

func (s *ManagerSuite) TestDisconnectStopsSession() {
	s.factory.prepare = func(a *fakeAdapter, _ int) { a.onInit = scriptReady }
	m := s.newManager()

	_, err := m.Connect(s.ctx, false)
	s.Require().NoError(err)

	err = m.Disconnect(s.ctx, false)
	s.Require().NoError(err)
	s.Equal(session.StateDisconnected, m.State())
	s.Equal(1, s.factory.adapter(0).disconnects)
	s.Empty(s.creds.purged, "plain disconnect must keep credentials")
}

func (s *ManagerSuite) TestLogOutPurgesCredentials() {
	s.factory.prepare = func(a *fakeAdapter, _ int) { a.onInit = scriptReady }
	m := s.newManager()

	_, err := m.Connect(s.ctx, false)
	s.Require().NoError(err)

	err = m.Disconnect(s.ctx, true)
	s.Require().NoError(err)
	s.Equal(session.StateLoggedOut, m.State())
	s.True(s.factory.adapter(0).loggedOut)
	s.Equal([]domain.TenantID{"tenant-acme"}, s.creds.purged)
}

func (s *ManagerSuite) TestSendTextRequiresReadySession() {
	m := s.newManager()

	err := m.SendText(s.ctx, "15551234567", "hello")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ManagerSuite) TestSendTextRelaysAndTouchesRouting() {
	s.factory.prepare = func(a *fakeAdapter, _ int) { a.onInit = scriptReady }
	m := s.newManager()

	conversationID, err := s.routes.Set(s.ctx, "+1 (555) 123-4567", "channel-1", "Ada")
	s.Require().NoError(err)
	before, _ := entryFor(s.routes, conversationID)

	_, err = m.Connect(s.ctx, false)
	s.Require().NoError(err)

	time.Sleep(5 * time.Millisecond)
	err = m.SendText(s.ctx, conversationID, "hello")
	s.Require().NoError(err)
	s.Equal([]string{"hello"}, s.factory.adapter(0).sentTexts)

	after, ok := entryFor(s.routes, conversationID)
	s.Require().True(ok)
	s.False(after.LastActivityAt.Before(before.LastActivityAt))
}

func (s *ManagerSuite) TestInboundMessagesReachHandler() {
	s.factory.prepare = func(a *fakeAdapter, _ int) { a.onInit = scriptReady }
	m := s.newManager()

	var mu sync.Mutex
	var inbound []session.InboundMessage
	m.SetInboundHandler(inboundFunc(func(_ context.Context, msg session.InboundMessage) error {
		mu.Lock()
		inbound = append(inbound, msg)
		mu.Unlock()
		return nil
	}))

	_, err := m.Connect(s.ctx, false)
	s.Require().NoError(err)

	s.factory.adapter(0).emit(session.Event{
		Kind: session.EventMessage,
		Message: &session.InboundMessage{
			From:        "15551234567@s.whatsapp.net",
			DisplayName: "Ada",
			Text:        "I need help",
		},
	})

	s.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(inbound) == 1 && inbound[0].Text == "I need help"
	}, time.Second, 5*time.Millisecond)
}

func entryFor(table *routing.Table, conversationID domain.ConversationID) (routing.Entry, bool) {
	for _, entry := range table.Entries() {
		if entry.ConversationID == conversationID {
			return entry, true
		}
	}
	return routing.Entry{}, false
}

type inboundFunc func(ctx context.Context, msg session.InboundMessage) error

func (f inboundFunc) HandleInbound(ctx context.Context, msg session.InboundMessage) error {
	return f(ctx, msg)
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}
