// Package routing maintains the per-tenant bijective mapping between
// messaging-network conversations and collaboration-platform channels.
package routing

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"relaydesk/pkg/domain"
	dErrors "relaydesk/pkg/domain-errors"
)

// Entry is one conversation <-> channel mapping.
type Entry struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	ChannelID      domain.ChannelID      `json:"channelId"`
	DisplayName    string                `json:"displayName,omitempty"`
	LastActivityAt time.Time             `json:"lastActivityAt"`
}

// Store persists one tenant's routing document. Writes are whole-document
// rewrites; concurrent processes sharing a store are unsafe and out of scope.
// Error Contract: Load on a store with no prior document returns an empty map,
// not an error.
type Store interface {
	Load(ctx context.Context) (map[domain.ConversationID]Entry, error)
	Save(ctx context.Context, entries map[domain.ConversationID]Entry) error
}

// Table is the in-memory routing table for one tenant, backed by a Store.
//
// The table guarantees the bijection in both directions: conversation ->
// channel is unique by key overwrite, and Set rejects a channel that is
// already owned by a different conversation. Persistence is synchronous and
// best-effort: a failed write is logged and in-memory state stays
// authoritative for the rest of the process lifetime (a restart loses the
// unpersisted change).
type Table struct {
	tenantID domain.TenantID
	store    Store
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[domain.ConversationID]Entry
}

// Option configures a Table.
type Option func(*Table)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		t.logger = logger
	}
}

// New loads the tenant's routing document and returns a live table.
func New(ctx context.Context, tenantID domain.TenantID, store Store, opts ...Option) (*Table, error) {
	t := &Table{
		tenantID: tenantID,
		store:    store,
		entries:  make(map[domain.ConversationID]Entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load routing document")
	}
	if loaded != nil {
		t.entries = loaded
	}
	return t, nil
}

// Set maps a conversation to a channel. The raw address is normalized first,
// so any decoration of the same number overwrites the same key. A channel
// already owned by a different conversation is rejected with the
// channel_in_use code; two conversations must never share one channel.
func (t *Table) Set(ctx context.Context, rawConversation string, channelID domain.ChannelID, displayName string) (domain.ConversationID, error) {
	conversationID, err := Normalize(rawConversation)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	if owner, ok := t.ownerOf(channelID); ok && owner != conversationID {
		t.mu.Unlock()
		return "", dErrors.New(dErrors.CodeChannelInUse,
			"channel "+channelID.String()+" is already mapped to conversation "+owner.String())
	}
	t.entries[conversationID] = Entry{
		ConversationID: conversationID,
		ChannelID:      channelID,
		DisplayName:    displayName,
		LastActivityAt: time.Now().UTC(),
	}
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.persist(ctx, snapshot)
	return conversationID, nil
}

// Get returns the channel for a conversation, if one is mapped.
func (t *Table) Get(conversationID domain.ConversationID) (domain.ChannelID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[conversationID]
	if !ok {
		return "", false
	}
	return entry.ChannelID, true
}

// ReverseLookup returns the conversation owning a channel. This is an O(n)
// linear scan over the tenant's entries; tenants carry tens to hundreds of
// open conversations, so an inverted index is not worth its bookkeeping.
func (t *Table) ReverseLookup(channelID domain.ChannelID) (domain.ConversationID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ownerOf(channelID)
}

// ownerOf must be called with t.mu held.
func (t *Table) ownerOf(channelID domain.ChannelID) (domain.ConversationID, bool) {
	for conversationID, entry := range t.entries {
		if entry.ChannelID == channelID {
			return conversationID, true
		}
	}
	return "", false
}

// Remove deletes a conversation's entry. Used only on permanent ticket close,
// never on transient disconnect.
func (t *Table) Remove(ctx context.Context, conversationID domain.ConversationID) {
	t.mu.Lock()
	if _, ok := t.entries[conversationID]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.entries, conversationID)
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.persist(ctx, snapshot)
}

// Touch refreshes a conversation's last-activity timestamp and, when
// non-empty, its display name. Called on every inbound and outbound message.
func (t *Table) Touch(ctx context.Context, conversationID domain.ConversationID, displayName string) {
	t.mu.Lock()
	entry, ok := t.entries[conversationID]
	if !ok {
		t.mu.Unlock()
		return
	}
	entry.LastActivityAt = time.Now().UTC()
	if displayName != "" {
		entry.DisplayName = displayName
	}
	t.entries[conversationID] = entry
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.persist(ctx, snapshot)
}

// Entries returns a snapshot of all mappings sorted by conversation ID,
// for operator inspection.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	entries := make([]Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		entries = append(entries, entry)
	}
	t.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ConversationID < entries[j].ConversationID
	})
	return entries
}

// Len reports the number of live mappings.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// snapshotLocked must be called with t.mu held.
func (t *Table) snapshotLocked() map[domain.ConversationID]Entry {
	snapshot := make(map[domain.ConversationID]Entry, len(t.entries))
	for k, v := range t.entries {
		snapshot[k] = v
	}
	return snapshot
}

func (t *Table) persist(ctx context.Context, snapshot map[domain.ConversationID]Entry) {
	if err := t.store.Save(ctx, snapshot); err != nil {
		t.logger.ErrorContext(ctx, "failed to persist routing document",
			"tenant_id", t.tenantID.String(),
			"entries", len(snapshot),
			"error", err,
		)
	}
}
