package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"relaydesk/pkg/domain"
)

// Store persists the tenant registry document as a whole.
type Store interface {
	Load(ctx context.Context) (map[domain.TenantID]Tenant, error)
	Save(ctx context.Context, tenants map[domain.TenantID]Tenant) error
}

// MemoryStore keeps the registry document in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	tenants map[domain.TenantID]Tenant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: map[domain.TenantID]Tenant{}}
}

func (s *MemoryStore) Load(_ context.Context) (map[domain.TenantID]Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.TenantID]Tenant, len(s.tenants))
	for k, v := range s.tenants {
		v.Settings = v.Settings.Clone()
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, tenants map[domain.TenantID]Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.TenantID]Tenant, len(tenants))
	for k, v := range tenants {
		v.Settings = v.Settings.Clone()
		out[k] = v
	}
	s.tenants = out
	return nil
}

// FileStore persists the registry as one JSON document. Every Save rewrites
// the whole file through a temp-file rename so a crash mid-write never leaves
// a truncated document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a file-backed registry store at <dataDir>/tenants.json.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tenant data dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dataDir, "tenants.json")}, nil
}

// Path returns the document location; used for change watching.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) (map[domain.TenantID]Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[domain.TenantID]Tenant{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tenant document: %w", err)
	}

	var doc map[string]Tenant
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode tenant document %s: %w", s.path, err)
	}

	out := make(map[domain.TenantID]Tenant, len(doc))
	for k, v := range doc {
		if v.ID.IsNil() {
			v.ID = domain.TenantID(k)
		}
		out[domain.TenantID(k)] = v
	}
	return out, nil
}

func (s *FileStore) Save(_ context.Context, tenants map[domain.TenantID]Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := make(map[string]Tenant, len(tenants))
	for k, v := range tenants {
		doc[k.String()] = v
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tenant document: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tenant document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace tenant document: %w", err)
	}
	return nil
}
