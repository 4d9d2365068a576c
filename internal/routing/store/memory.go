// Package routestore provides the persistence backends for routing documents.
// Error Contract:
// All store methods follow this pattern:
// - Load returns an empty map (not an error) when no document exists yet
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
package routestore

import (
	"context"
	"maps"
	"sync"

	"relaydesk/internal/routing"
	"relaydesk/pkg/domain"
)

// Memory keeps the routing document in process memory. For tests and dev.
type Memory struct {
	mu      sync.RWMutex
	entries map[domain.ConversationID]routing.Entry
}

// NewMemory constructs an empty in-memory routing store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[domain.ConversationID]routing.Entry)}
}

func (s *Memory) Load(_ context.Context) (map[domain.ConversationID]routing.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.ConversationID]routing.Entry, len(s.entries))
	maps.Copy(out, s.entries)
	return out, nil
}

func (s *Memory) Save(_ context.Context, entries map[domain.ConversationID]routing.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[domain.ConversationID]routing.Entry, len(entries))
	maps.Copy(s.entries, entries)
	return nil
}
