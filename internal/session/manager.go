// Package session drives one tenant's messaging-network connection through
// its authentication/QR/ready/reconnect state machine.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"relaydesk/internal/audit"
	"relaydesk/internal/routing"
	sessionmetrics "relaydesk/internal/session/metrics"
	"relaydesk/pkg/domain"
	dErrors "relaydesk/pkg/domain-errors"
)

// AuditPublisher records lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const defaultQRTTL = 60 * time.Second

// Manager is the per-tenant session orchestrator. It owns one
// ConnectionAdapter at a time, the tenant's routing table, and the reconnect
// controller, and it fans adapter events out to QR/ready/disconnect
// subscribers.
//
// All state transitions happen under mu and contain no I/O, so transitions
// are atomic with respect to each other; adapter calls and persistence
// writes happen outside the lock. Each adapter instance gets exactly one
// event pump goroutine, and a generation counter detaches the pump of a
// replaced adapter so a stale connection can never double-deliver events.
type Manager struct {
	tenantID domain.TenantID
	factory  AdapterFactory
	routes   *routing.Table

	creds   CredentialStore
	inbound InboundHandler
	logger  *slog.Logger
	metrics *sessionmetrics.Metrics
	auditor AuditPublisher
	qrTTL   time.Duration

	mu        sync.Mutex
	state     State
	adapter   ConnectionAdapter
	gen       int
	qr        *QRChallenge
	qrTimer   *time.Timer
	lastError string
	reconnect reconnectController
	waiter    chan connectResult

	qrSubs         []QRCallback
	readySubs      []ReadyCallback
	disconnectSubs []DisconnectCallback
}

type connectResult struct {
	state State
	err   error
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(metrics *sessionmetrics.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(m *Manager) { m.auditor = publisher }
}

func WithCredentialStore(store CredentialStore) Option {
	return func(m *Manager) { m.creds = store }
}

// WithQRTTL overrides the QR challenge time-to-live.
func WithQRTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.qrTTL = ttl
		}
	}
}

// WithReconnectPolicy overrides backoff base, cap, and attempt budget.
func WithReconnectPolicy(base, cap time.Duration, maxAttempts int) Option {
	return func(m *Manager) {
		if base > 0 {
			m.reconnect.policy.base = base
		}
		if cap > 0 {
			m.reconnect.policy.cap = cap
		}
		if maxAttempts > 0 {
			m.reconnect.policy.maxAttempts = maxAttempts
		}
	}
}

// New creates a Manager in the Disconnected state.
func New(tenantID domain.TenantID, factory AdapterFactory, routes *routing.Table, opts ...Option) *Manager {
	m := &Manager{
		tenantID:  tenantID,
		factory:   factory,
		routes:    routes,
		state:     StateDisconnected,
		qrTTL:     defaultQRTTL,
		reconnect: reconnectController{policy: defaultReconnectPolicy()},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// TenantID returns the owning tenant.
func (m *Manager) TenantID() domain.TenantID { return m.tenantID }

// Routes returns the tenant's routing table.
func (m *Manager) Routes() *routing.Table { return m.routes }

// SetInboundHandler wires the consumer for inbound messages. Must be called
// before Connect.
func (m *Manager) SetInboundHandler(handler InboundHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound = handler
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status is the operator-visible snapshot of one tenant's session.
type Status struct {
	TenantID          domain.TenantID `json:"tenantId"`
	State             State           `json:"state"`
	ReconnectAttempts int             `json:"reconnectAttempts"`
	QRPending         bool            `json:"qrPending"`
	QRExpiresAt       *time.Time      `json:"qrExpiresAt,omitempty"`
	LastError         string          `json:"lastError,omitempty"`
	OpenConversations int             `json:"openConversations"`
}

// Status reports the session snapshot. Failed and LoggedOut sessions are
// surfaced here rather than only in logs.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{
		TenantID:          m.tenantID,
		State:             m.state,
		ReconnectAttempts: m.reconnect.attempts,
		LastError:         m.lastError,
	}
	// A challenge past its TTL is gone even if the expiry timer has not
	// fired yet.
	if m.qr != nil && !m.qr.Expired(time.Now()) {
		status.QRPending = true
		expiresAt := m.qr.ExpiresAt
		status.QRExpiresAt = &expiresAt
	}
	if m.routes != nil {
		status.OpenConversations = m.routes.Len()
	}
	return status
}

// CurrentQR returns the live QR challenge, if one exists and has not expired.
func (m *Manager) CurrentQR() (QRChallenge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.qr == nil || m.qr.Expired(time.Now()) {
		return QRChallenge{}, false
	}
	return *m.qr, true
}

// OnQRCode subscribes to QR issuance. A subscriber arriving after a challenge
// was already issued receives the live challenge immediately, exactly once;
// an expired challenge is never delivered.
func (m *Manager) OnQRCode(cb QRCallback) {
	m.mu.Lock()
	m.qrSubs = append(m.qrSubs, cb)
	var live *QRChallenge
	if m.qr != nil && !m.qr.Expired(time.Now()) {
		challenge := *m.qr
		live = &challenge
	}
	m.mu.Unlock()

	if live != nil {
		cb(*live)
	}
}

// OnReady subscribes to readiness notifications.
func (m *Manager) OnReady(cb ReadyCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readySubs = append(m.readySubs, cb)
}

// OnDisconnect subscribes to disconnect notifications.
func (m *Manager) OnDisconnect(cb DisconnectCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectSubs = append(m.disconnectSubs, cb)
}

// Connect brings the session up. Idempotent when already Ready. It builds a
// fresh adapter, installs its single event pump (detaching any previous
// adapter's pump first), and returns once the session reaches Ready or
// QRPending, or the attempt fails.
//
// A LoggedOut session refuses to connect without forceBootstrap: retrying a
// rejected credential is pointless and can trigger network-side lockout.
func (m *Manager) Connect(ctx context.Context, forceBootstrap bool) (State, error) {
	m.mu.Lock()
	if m.state == StateReady {
		m.mu.Unlock()
		return StateReady, nil
	}
	if m.state == StateLoggedOut && !forceBootstrap {
		m.mu.Unlock()
		return StateLoggedOut, dErrors.New(dErrors.CodeTerminalState,
			"session is logged out; reconnect with credential bootstrap")
	}

	m.reconnect.cancel()
	m.reconnect.attempts = 0
	old := m.detachAdapterLocked()
	m.setStateLocked(StateInitializing)
	m.lastError = ""

	adapter := m.factory.NewAdapter(m.tenantID)
	m.adapter = adapter
	gen := m.gen
	waiter := make(chan connectResult, 1)
	m.waiter = waiter
	m.mu.Unlock()

	if old != nil {
		_ = old.Disconnect(ctx, false)
	}

	go m.pump(gen, adapter)
	m.emitAudit(ctx, audit.EventSessionConnecting, "", "")

	if err := adapter.Initialize(ctx, forceBootstrap); err != nil {
		m.mu.Lock()
		if gen == m.gen {
			m.setStateLocked(StateDisconnected)
			m.lastError = err.Error()
			m.waiter = nil
		}
		m.mu.Unlock()
		return StateDisconnected, dErrors.Wrap(err, dErrors.CodeConnectionFailed, "adapter initialize failed")
	}

	select {
	case res := <-waiter:
		return res.state, res.err
	case <-ctx.Done():
		m.mu.Lock()
		if m.waiter == waiter {
			m.waiter = nil
		}
		m.mu.Unlock()
		return m.State(), dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "connect cancelled")
	}
}

// Disconnect tears the session down. It always leaves Ready/Reconnecting,
// clears the live QR challenge, and cancels any pending reconnect timer.
// With logOut the persisted credentials are purged so the next Connect must
// bootstrap via a fresh QR challenge.
func (m *Manager) Disconnect(ctx context.Context, logOut bool) error {
	m.mu.Lock()
	m.reconnect.cancel()
	m.reconnect.attempts = 0
	m.clearQRLocked()
	old := m.detachAdapterLocked()
	if logOut {
		m.setStateLocked(StateLoggedOut)
	} else {
		m.setStateLocked(StateDisconnected)
	}
	if m.waiter != nil {
		m.waiter <- connectResult{state: m.state, err: dErrors.New(dErrors.CodeUnavailable, "connect aborted by disconnect")}
		m.waiter = nil
	}
	subs := append([]DisconnectCallback(nil), m.disconnectSubs...)
	m.mu.Unlock()

	reason := "disconnected by operator"
	if logOut {
		reason = DisconnectReasonLoggedOut
	}
	for _, cb := range subs {
		cb(reason)
	}

	if old != nil {
		_ = old.Disconnect(ctx, logOut)
	}

	if logOut {
		m.emitAudit(ctx, audit.EventSessionLoggedOut, reason, "")
		if m.creds != nil {
			if err := m.creds.Purge(ctx, m.tenantID); err != nil {
				m.logger.ErrorContext(ctx, "failed to purge credentials",
					"tenant_id", m.tenantID.String(),
					"error", err,
				)
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge credentials")
			}
		}
		return nil
	}

	m.emitAudit(ctx, audit.EventSessionDisconnect, reason, "")
	return nil
}

// SendText relays an outbound text to a conversation. The session must be
// Ready; the routing entry's activity timestamp is refreshed on success.
func (m *Manager) SendText(ctx context.Context, conversationID domain.ConversationID, text string) error {
	adapter, err := m.readyAdapter()
	if err != nil {
		return err
	}
	if err := adapter.SendText(ctx, conversationID, text); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConnectionFailed, "failed to send text")
	}
	m.countOutbound()
	if m.routes != nil {
		m.routes.Touch(ctx, conversationID, "")
	}
	return nil
}

// SendMedia relays outbound media to a conversation.
func (m *Manager) SendMedia(ctx context.Context, conversationID domain.ConversationID, data []byte, mimeType, caption string) error {
	adapter, err := m.readyAdapter()
	if err != nil {
		return err
	}
	if err := adapter.SendMedia(ctx, conversationID, data, mimeType, caption); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConnectionFailed, "failed to send media")
	}
	m.countOutbound()
	if m.routes != nil {
		m.routes.Touch(ctx, conversationID, "")
	}
	return nil
}

// DownloadMedia fetches media referenced by an inbound message.
func (m *Manager) DownloadMedia(ctx context.Context, ref MediaRef) ([]byte, error) {
	adapter, err := m.readyAdapter()
	if err != nil {
		return nil, err
	}
	data, err := adapter.DownloadMedia(ctx, ref)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConnectionFailed, "failed to download media")
	}
	return data, nil
}

func (m *Manager) readyAdapter() (ConnectionAdapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady || m.adapter == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "session is not ready (state: "+m.state.String()+")")
	}
	return m.adapter, nil
}

// pump is the single event listener for one adapter instance. It exits when
// the adapter closes its event channel; a stale pump's events are dropped by
// the generation check in handleEvent.
func (m *Manager) pump(gen int, adapter ConnectionAdapter) {
	for ev := range adapter.Events() {
		m.handleEvent(gen, ev)
	}
}

func (m *Manager) handleEvent(gen int, ev Event) {
	ctx := context.Background()

	if ev.Kind == EventMessage {
		m.handleMessage(ctx, gen, ev)
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		// Event from a replaced adapter; its pump is already detached.
		m.mu.Unlock()
		return
	}

	var notify []func()
	switch ev.Kind {
	case EventQR:
		notify = m.handleQRLocked(ctx, ev.QRCode)
	case EventAuthenticated:
		if m.state == StateInitializing || m.state == StateQRPending || m.state == StateReconnecting {
			m.setStateLocked(StateAuthenticated)
		}
	case EventReady:
		notify = m.handleReadyLocked(ctx)
	case EventAuthFailure:
		notify = m.handleAuthFailureLocked(ctx, ev.Reason)
	case EventDisconnected:
		notify = m.handleDisconnectedLocked(ctx, ev.Reason)
	}
	m.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}

func (m *Manager) handleMessage(ctx context.Context, gen int, ev Event) {
	m.mu.Lock()
	stale := gen != m.gen
	handler := m.inbound
	m.mu.Unlock()

	if stale || handler == nil || ev.Message == nil {
		return
	}
	if m.metrics != nil {
		m.metrics.MessagesInbound.WithLabelValues(m.tenantID.String()).Inc()
	}
	if err := handler.HandleInbound(ctx, *ev.Message); err != nil {
		m.logger.ErrorContext(ctx, "inbound message handling failed",
			"tenant_id", m.tenantID.String(),
			"from", ev.Message.From,
			"error", err,
		)
		if m.metrics != nil {
			m.metrics.InboundHandlerErrors.WithLabelValues(m.tenantID.String()).Inc()
		}
	}
}

// handleQRLocked supersedes any prior challenge with the new one and arms the
// expiry timer. Must be called with mu held; returns subscriber callbacks to
// run after unlock.
func (m *Manager) handleQRLocked(ctx context.Context, code string) []func() {
	now := time.Now()
	challenge := QRChallenge{
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.qrTTL),
	}

	if m.qrTimer != nil {
		m.qrTimer.Stop()
	}
	m.qr = &challenge
	m.qrTimer = time.AfterFunc(m.qrTTL, func() { m.expireQR(code) })

	if m.state == StateInitializing || m.state == StateReconnecting {
		m.setStateLocked(StateQRPending)
	}
	if m.waiter != nil {
		m.waiter <- connectResult{state: StateQRPending}
		m.waiter = nil
	}

	if m.metrics != nil {
		m.metrics.QRIssued.WithLabelValues(m.tenantID.String()).Inc()
	}

	subs := append([]QRCallback(nil), m.qrSubs...)
	notify := make([]func(), 0, len(subs)+1)
	for _, cb := range subs {
		cb := cb
		notify = append(notify, func() { cb(challenge) })
	}
	notify = append(notify, func() { m.emitAudit(ctx, audit.EventQRIssued, "", "") })
	return notify
}

func (m *Manager) expireQR(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.qr != nil && m.qr.Code == code {
		m.qr = nil
		m.qrTimer = nil
	}
}

func (m *Manager) handleReadyLocked(ctx context.Context) []func() {
	m.setStateLocked(StateReady)
	m.clearQRLocked()
	m.reconnect.reset()
	m.lastError = ""

	if m.waiter != nil {
		m.waiter <- connectResult{state: StateReady}
		m.waiter = nil
	}

	subs := append([]ReadyCallback(nil), m.readySubs...)
	notify := make([]func(), 0, len(subs)+1)
	for _, cb := range subs {
		cb := cb
		notify = append(notify, func() { cb() })
	}
	notify = append(notify, func() { m.emitAudit(ctx, audit.EventSessionReady, "", "") })
	return notify
}

func (m *Manager) handleAuthFailureLocked(ctx context.Context, reason string) []func() {
	m.setStateLocked(StateLoggedOut)
	m.clearQRLocked()
	m.reconnect.cancel()
	m.lastError = "authentication failure: " + reason

	if m.waiter != nil {
		m.waiter <- connectResult{
			state: StateLoggedOut,
			err:   dErrors.New(dErrors.CodeAuthRejected, "authentication rejected: "+reason),
		}
		m.waiter = nil
	}

	return m.disconnectNotificationsLocked(ctx, reason, audit.EventSessionLoggedOut)
}

func (m *Manager) handleDisconnectedLocked(ctx context.Context, reason string) []func() {
	if reason == DisconnectReasonLoggedOut {
		return m.handleAuthFailureLocked(ctx, reason)
	}

	switch m.state {
	case StateInitializing, StateQRPending:
		// Connect attempt died before readiness; surface to the caller
		// instead of retrying on its behalf.
		m.setStateLocked(StateDisconnected)
		m.lastError = "disconnected: " + reason
		if m.waiter != nil {
			m.waiter <- connectResult{
				state: StateDisconnected,
				err:   dErrors.New(dErrors.CodeConnectionFailed, "disconnected during connect: "+reason),
			}
			m.waiter = nil
		}
		return m.disconnectNotificationsLocked(ctx, reason, audit.EventSessionDisconnect)

	case StateReady, StateAuthenticated, StateReconnecting:
		return m.scheduleReconnectLocked(ctx, reason)

	default:
		return nil
	}
}

// scheduleReconnectLocked drives the retry policy after an unexpected
// disconnect. A disconnect while an attempt is already in flight is dropped;
// an exhausted budget is a terminal, operator-visible Failed state.
func (m *Manager) scheduleReconnectLocked(ctx context.Context, reason string) []func() {
	delay, ok, exhausted := m.reconnect.schedule(func() {
		m.attemptReconnect(context.Background())
	})

	if exhausted {
		m.setStateLocked(StateFailed)
		m.lastError = "reconnect attempts exhausted after " + reason
		if m.metrics != nil {
			m.metrics.SessionsFailed.WithLabelValues(m.tenantID.String()).Inc()
		}
		return m.disconnectNotificationsLocked(ctx, reason, audit.EventSessionFailed)
	}
	if !ok {
		// An attempt is already scheduled or running; this disconnect is noise.
		return nil
	}

	m.setStateLocked(StateReconnecting)
	m.lastError = "disconnected: " + reason
	if m.metrics != nil {
		m.metrics.ReconnectsScheduled.WithLabelValues(m.tenantID.String()).Inc()
	}
	m.logger.WarnContext(ctx, "reconnect scheduled",
		"tenant_id", m.tenantID.String(),
		"attempt", m.reconnect.attempts,
		"delay_ms", delay.Milliseconds(),
		"reason", reason,
	)
	return m.disconnectNotificationsLocked(ctx, reason, audit.EventReconnectScheduled)
}

// attemptReconnect runs when a backoff timer fires. Each attempt gets a fresh
// adapter and pump; success is observed through the ready event.
func (m *Manager) attemptReconnect(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateReconnecting {
		// An operator disconnect or logout won the race.
		m.reconnect.settle()
		m.mu.Unlock()
		return
	}
	old := m.detachAdapterLocked()
	adapter := m.factory.NewAdapter(m.tenantID)
	m.adapter = adapter
	gen := m.gen
	m.mu.Unlock()

	if old != nil {
		_ = old.Disconnect(ctx, false)
	}
	go m.pump(gen, adapter)

	err := adapter.Initialize(ctx, false)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.reconnect.settle()
	var notify []func()
	if err != nil {
		m.lastError = "reconnect failed: " + err.Error()
		notify = m.scheduleReconnectLocked(ctx, err.Error())
	}
	m.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}

func (m *Manager) disconnectNotificationsLocked(ctx context.Context, reason string, action audit.AuditEvent) []func() {
	subs := append([]DisconnectCallback(nil), m.disconnectSubs...)
	notify := make([]func(), 0, len(subs)+1)
	for _, cb := range subs {
		cb := cb
		notify = append(notify, func() { cb(reason) })
	}
	notify = append(notify, func() { m.emitAudit(ctx, action, reason, "") })
	return notify
}

// detachAdapterLocked bumps the generation so the old adapter's pump drops
// all further events, and hands the old adapter back for teardown outside
// the lock. Must be called with mu held.
func (m *Manager) detachAdapterLocked() ConnectionAdapter {
	old := m.adapter
	m.adapter = nil
	m.gen++
	return old
}

func (m *Manager) clearQRLocked() {
	if m.qrTimer != nil {
		m.qrTimer.Stop()
		m.qrTimer = nil
	}
	m.qr = nil
}

func (m *Manager) setStateLocked(next State) {
	if m.state == next {
		return
	}
	prev := m.state
	m.state = next
	if m.metrics != nil {
		m.metrics.SetState(m.tenantID.String(), prev.String(), next.String())
	}
	m.logger.Info("session state changed",
		"tenant_id", m.tenantID.String(),
		"from", prev.String(),
		"to", next.String(),
	)
}

func (m *Manager) countOutbound() {
	if m.metrics != nil {
		m.metrics.MessagesOutbound.WithLabelValues(m.tenantID.String()).Inc()
	}
}

func (m *Manager) emitAudit(ctx context.Context, action audit.AuditEvent, reason, actor string) {
	if m.auditor == nil {
		return
	}
	err := m.auditor.Emit(ctx, audit.Event{
		TenantID: m.tenantID,
		Action:   string(action),
		Reason:   reason,
		Actor:    actor,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to emit lifecycle event",
			"tenant_id", m.tenantID.String(),
			"action", string(action),
			"error", err,
		)
	}
}
