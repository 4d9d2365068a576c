package routestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"relaydesk/internal/routing"
	"relaydesk/pkg/domain"
)

// File persists the routing document as one JSON file per tenant. Every Save
// rewrites the whole file through a temp-file rename so a crash mid-write
// never leaves a truncated document. One process owns the file; concurrent
// processes writing the same path are unsafe and out of scope.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a file-backed store writing to
// <dataDir>/routes/<tenantID>.json.
func NewFile(dataDir string, tenantID domain.TenantID) (*File, error) {
	dir := filepath.Join(dataDir, "routes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create routing data dir: %w", err)
	}
	return &File{path: filepath.Join(dir, tenantID.String()+".json")}, nil
}

// document is the on-disk shape: conversationId -> entry.
type document map[string]routing.Entry

func (s *File) Load(_ context.Context) (map[domain.ConversationID]routing.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[domain.ConversationID]routing.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read routing document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode routing document %s: %w", s.path, err)
	}

	out := make(map[domain.ConversationID]routing.Entry, len(doc))
	for k, v := range doc {
		out[domain.ConversationID(k)] = v
	}
	return out, nil
}

func (s *File) Save(_ context.Context, entries map[domain.ConversationID]routing.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := make(document, len(entries))
	for k, v := range entries {
		doc[k.String()] = v
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode routing document: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write routing document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace routing document: %w", err)
	}
	return nil
}
