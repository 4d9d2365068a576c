package tenant

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"relaydesk/internal/audit"
	"relaydesk/internal/routing"
	"relaydesk/internal/session"
	tenantmetrics "relaydesk/internal/tenant/metrics"
	"relaydesk/internal/ticket"
	"relaydesk/pkg/domain"
	dErrors "relaydesk/pkg/domain-errors"
)

// ChannelClientFactory builds the collaboration-platform client for one
// tenant's workspace.
type ChannelClientFactory interface {
	NewChannelClient(tenant Tenant) ticket.ChannelClient
}

// RouteStoreFactory builds the routing persistence backend for one tenant.
type RouteStoreFactory interface {
	NewRouteStore(tenantID domain.TenantID) (routing.Store, error)
}

// AuditPublisher records registry lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// runtime is the live machinery behind one tenant: its session manager and
// ticket lifecycle, built lazily on first use.
type runtime struct {
	manager *session.Manager
	tickets *ticket.Service
}

// Registry owns the tenant document and one runtime per tenant. All tenant
// lookups go through the registry so settings updates take effect immediately
// for running sessions. The registry has an explicit lifecycle: construct
// with New, tear down with Close.
type Registry struct {
	store       Store
	adapters    session.AdapterFactory
	channels    ChannelClientFactory
	routeStores RouteStoreFactory

	creds       session.CredentialStore
	transcripts ticket.TranscriptGenerator
	logger      *slog.Logger
	metrics     *tenantmetrics.Metrics
	auditor     AuditPublisher
	sessionOpts []session.Option
	ticketOpts  []ticket.Option
	hotReload   bool

	mu       sync.Mutex
	tenants  map[domain.TenantID]Tenant
	runtimes map[domain.TenantID]*runtime

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithMetrics(metrics *tenantmetrics.Metrics) Option {
	return func(r *Registry) { r.metrics = metrics }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Registry) { r.auditor = publisher }
}

func WithCredentialStore(store session.CredentialStore) Option {
	return func(r *Registry) { r.creds = store }
}

func WithTranscriptGenerator(generator ticket.TranscriptGenerator) Option {
	return func(r *Registry) { r.transcripts = generator }
}

// WithSessionOptions passes options through to every tenant's session manager.
func WithSessionOptions(opts ...session.Option) Option {
	return func(r *Registry) { r.sessionOpts = append(r.sessionOpts, opts...) }
}

// WithTicketOptions passes options through to every tenant's ticket service.
func WithTicketOptions(opts ...ticket.Option) Option {
	return func(r *Registry) { r.ticketOpts = append(r.ticketOpts, opts...) }
}

// WithHotReload watches the tenant document for out-of-band edits and reloads
// settings when it changes. Effective only with a file-backed store.
func WithHotReload() Option {
	return func(r *Registry) { r.hotReload = true }
}

// New loads the tenant document and returns a ready registry.
func New(ctx context.Context, store Store, adapters session.AdapterFactory, channels ChannelClientFactory, routeStores RouteStoreFactory, opts ...Option) (*Registry, error) {
	r := &Registry{
		store:       store,
		adapters:    adapters,
		channels:    channels,
		routeStores: routeStores,
		runtimes:    map[domain.TenantID]*runtime{},
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	tenants, err := store.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load tenant document")
	}
	r.tenants = tenants
	r.setGauge()

	if r.hotReload {
		if err := r.startWatcher(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// CreateOptions describes a new tenant.
type CreateOptions struct {
	WorkspaceID         domain.WorkspaceID
	TicketCategoryID    string
	TranscriptChannelID domain.ChannelID
	FeedbackChannelID   domain.ChannelID
	Settings            Settings
}

// CreateTenant registers a tenant. The tenant ID is derived from the
// workspace ID and stays stable for the tenant's lifetime.
func (r *Registry) CreateTenant(ctx context.Context, opts CreateOptions) (Tenant, error) {
	if opts.WorkspaceID.IsNil() {
		return Tenant{}, dErrors.New(dErrors.CodeInvalidInput, "workspace ID is required")
	}
	id := domain.TenantIDForWorkspace(opts.WorkspaceID)

	t := Tenant{
		ID:                  id,
		WorkspaceID:         opts.WorkspaceID,
		TicketCategoryID:    opts.TicketCategoryID,
		TranscriptChannelID: opts.TranscriptChannelID,
		FeedbackChannelID:   opts.FeedbackChannelID,
		Settings:            DefaultSettings().Merge(opts.Settings),
	}

	r.mu.Lock()
	if _, exists := r.tenants[id]; exists {
		r.mu.Unlock()
		return Tenant{}, dErrors.New(dErrors.CodeConflict, "tenant already exists for workspace")
	}
	r.tenants[id] = t
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.store.Save(ctx, snapshot); err != nil {
		r.mu.Lock()
		delete(r.tenants, id)
		r.mu.Unlock()
		return Tenant{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist tenant document")
	}

	r.setGauge()
	r.emitAudit(ctx, audit.EventTenantCreated, id, "")
	r.logger.InfoContext(ctx, "tenant created",
		"tenant_id", id.String(),
		"workspace_id", opts.WorkspaceID.String(),
	)
	return t, nil
}

// RemoveTenant disconnects the tenant's session and deletes it from the
// registry document.
func (r *Registry) RemoveTenant(ctx context.Context, id domain.TenantID) error {
	r.mu.Lock()
	_, exists := r.tenants[id]
	rt := r.runtimes[id]
	if exists {
		delete(r.tenants, id)
		delete(r.runtimes, id)
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if !exists {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}

	if rt != nil {
		if err := rt.manager.Disconnect(ctx, false); err != nil {
			r.logger.ErrorContext(ctx, "failed to disconnect removed tenant",
				"tenant_id", id.String(),
				"error", err,
			)
		}
	}

	if err := r.store.Save(ctx, snapshot); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist tenant document")
	}

	r.setGauge()
	r.emitAudit(ctx, audit.EventTenantRemoved, id, "")
	r.logger.InfoContext(ctx, "tenant removed", "tenant_id", id.String())
	return nil
}

// UpdateSettings overlays updates onto the tenant's settings and persists the
// document. Running sessions observe the new values on their next read; no
// restart needed.
func (r *Registry) UpdateSettings(ctx context.Context, id domain.TenantID, updates Settings) (Settings, error) {
	r.mu.Lock()
	t, exists := r.tenants[id]
	if !exists {
		r.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	t.Settings = t.Settings.Merge(updates)
	r.tenants[id] = t
	merged := t.Settings.Clone()
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.store.Save(ctx, snapshot); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist tenant document")
	}

	r.logger.InfoContext(ctx, "tenant settings updated", "tenant_id", id.String())
	return merged, nil
}

// Get returns one tenant record.
func (r *Registry) Get(id domain.TenantID) (Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, exists := r.tenants[id]
	if !exists {
		return Tenant{}, dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	t.Settings = t.Settings.Clone()
	return t, nil
}

// List returns all tenants sorted by ID.
func (r *Registry) List() []Tenant {
	r.mu.Lock()
	out := make([]Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		t.Settings = t.Settings.Clone()
		out = append(out, t)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Session returns the tenant's session manager, building the runtime on
// first use.
func (r *Registry) Session(ctx context.Context, id domain.TenantID) (*session.Manager, error) {
	rt, err := r.runtimeFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return rt.manager, nil
}

// Tickets returns the tenant's ticket lifecycle, building the runtime on
// first use.
func (r *Registry) Tickets(ctx context.Context, id domain.TenantID) (*ticket.Service, error) {
	rt, err := r.runtimeFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return rt.tickets, nil
}

// ConnectAll brings every registered tenant's session up concurrently and
// returns the first failure, after all attempts finished.
func (r *Registry) ConnectAll(ctx context.Context) error {
	var g errgroup.Group
	for _, t := range r.List() {
		t := t
		g.Go(func() error {
			mgr, err := r.Session(ctx, t.ID)
			if err == nil {
				_, err = mgr.Connect(ctx, false)
			}
			if err != nil {
				r.logger.ErrorContext(ctx, "tenant connect failed",
					"tenant_id", t.ID.String(),
					"error", err,
				)
				if r.metrics != nil {
					r.metrics.ConnectFailures.WithLabelValues(t.ID.String()).Inc()
				}
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// DisconnectAll brings every live session down concurrently. Sessions stay
// authenticated on the network side; credentials are kept.
func (r *Registry) DisconnectAll(ctx context.Context) error {
	r.mu.Lock()
	managers := make([]*session.Manager, 0, len(r.runtimes))
	for _, rt := range r.runtimes {
		managers = append(managers, rt.manager)
	}
	r.mu.Unlock()

	var g errgroup.Group
	for _, mgr := range managers {
		mgr := mgr
		g.Go(func() error { return mgr.Disconnect(ctx, false) })
	}
	return g.Wait()
}

// Close stops the document watcher. Call DisconnectAll first to bring
// sessions down.
func (r *Registry) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		if r.watcher != nil {
			err = r.watcher.Close()
		}
	})
	return err
}

func (r *Registry) runtimeFor(ctx context.Context, id domain.TenantID) (*runtime, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.tenants[id]
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	if rt, ok := r.runtimes[id]; ok {
		return rt, nil
	}

	routeStore, err := r.routeStores.NewRouteStore(id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to build routing store")
	}
	table, err := routing.New(ctx, id, routeStore, routing.WithLogger(r.logger))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load routing table")
	}

	sessionOpts := append([]session.Option{session.WithLogger(r.logger)}, r.sessionOpts...)
	if r.creds != nil {
		sessionOpts = append(sessionOpts, session.WithCredentialStore(r.creds))
	}
	if r.auditor != nil {
		sessionOpts = append(sessionOpts, session.WithAuditPublisher(r.auditor))
	}
	manager := session.New(id, r.adapters, table, sessionOpts...)

	// The provider reads through the registry on every call, which is what
	// makes settings updates hot.
	provider := ticket.SettingsProviderFunc(func(context.Context) (ticket.Settings, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		current, ok := r.tenants[id]
		if !ok {
			return ticket.Settings{}, dErrors.New(dErrors.CodeNotFound, "tenant not found")
		}
		return current.ticketSettings(), nil
	})

	ticketOpts := append([]ticket.Option{
		ticket.WithLogger(r.logger),
		ticket.WithCounterpartMessenger(manager),
		ticket.WithMediaFetcher(manager),
	}, r.ticketOpts...)
	if r.transcripts != nil {
		ticketOpts = append(ticketOpts, ticket.WithTranscriptGenerator(r.transcripts))
	}
	if r.auditor != nil {
		ticketOpts = append(ticketOpts, ticket.WithAuditPublisher(r.auditor))
	}
	tickets := ticket.NewService(id, table, r.channels.NewChannelClient(t), provider, ticketOpts...)
	manager.SetInboundHandler(tickets)

	rt := &runtime{manager: manager, tickets: tickets}
	r.runtimes[id] = rt
	return rt, nil
}

// ticketSettings maps the tenant record onto the ticket lifecycle's view.
func (t Tenant) ticketSettings() ticket.Settings {
	return ticket.Settings{
		WelcomeMessage:     t.Settings.Get(SettingWelcomeMessage),
		IntroMessage:       t.Settings.Get(SettingIntroMessage),
		ReopenMessage:      t.Settings.Get(SettingReopenMessage),
		CloseMessage:       t.Settings.Get(SettingCloseMessage),
		FeedbackMessage:    t.Settings.Get(SettingFeedbackMessage),
		SendClosingMessage: t.Settings.Bool(SettingSendClosingMessage, false),
		TranscriptsEnabled: t.Settings.Bool(SettingTranscriptsEnabled, false),
		FeedbackEnabled:    t.Settings.Bool(SettingFeedbackEnabled, false),
		TicketCategoryID:   t.TicketCategoryID,
	}
}

// startWatcher begins observing the tenant document for external edits. Saves
// are atomic renames, so the watch is on the directory and filtered by name.
func (r *Registry) startWatcher() error {
	pathStore, ok := r.store.(interface{ Path() string })
	if !ok {
		r.logger.Warn("hot reload requested but store has no file path; skipping watcher")
		return nil
	}
	path := pathStore.Path()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create document watcher")
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to watch tenant data dir")
	}
	r.watcher = watcher

	go func() {
		for {
			select {
			case <-r.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				r.reload(context.Background())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Error("tenant document watcher error", "error", err)
			}
		}
	}()
	return nil
}

// reload replaces the in-memory tenant document from the store. Runtimes are
// kept; only the records they read through change.
func (r *Registry) reload(ctx context.Context) {
	tenants, err := r.store.Load(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to reload tenant document", "error", err)
		return
	}

	r.mu.Lock()
	r.tenants = tenants
	r.mu.Unlock()

	r.setGauge()
	if r.metrics != nil {
		r.metrics.SettingsReloads.Inc()
	}
	r.logger.InfoContext(ctx, "tenant document reloaded", "tenants", len(tenants))
}

// snapshotLocked must be called with r.mu held.
func (r *Registry) snapshotLocked() map[domain.TenantID]Tenant {
	out := make(map[domain.TenantID]Tenant, len(r.tenants))
	for k, v := range r.tenants {
		v.Settings = v.Settings.Clone()
		out[k] = v
	}
	return out
}

func (r *Registry) setGauge() {
	if r.metrics == nil {
		return
	}
	r.mu.Lock()
	n := len(r.tenants)
	r.mu.Unlock()
	r.metrics.TenantsRegistered.Set(float64(n))
}

func (r *Registry) emitAudit(ctx context.Context, action audit.AuditEvent, id domain.TenantID, actor string) {
	if r.auditor == nil {
		return
	}
	err := r.auditor.Emit(ctx, audit.Event{
		TenantID: id,
		Action:   string(action),
		Actor:    actor,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to emit tenant event",
			"tenant_id", id.String(),
			"action", string(action),
			"error", err,
		)
	}
}
