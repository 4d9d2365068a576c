package tenant

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaydesk/pkg/domain"
)

func TestFileStoreLoadMissingDocument(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	tenants, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tenants)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	doc := map[domain.TenantID]Tenant{
		"tenant-ws-1": {
			ID:               "tenant-ws-1",
			WorkspaceID:      "ws-1",
			TicketCategoryID: "cat-1",
			Settings: Settings{
				SettingWelcomeMessage: "Hi {name}",
				"x-custom-key":        "preserved",
			},
		},
	}
	require.NoError(t, store.Save(ctx, doc))

	// Reopen from disk.
	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)

	require.Len(t, loaded, 1)
	got := loaded["tenant-ws-1"]
	assert.Equal(t, domain.WorkspaceID("ws-1"), got.WorkspaceID)
	assert.Equal(t, "Hi {name}", got.Settings.Get(SettingWelcomeMessage))
	assert.Equal(t, "preserved", got.Settings.Get("x-custom-key"))
}

func TestFileStoreSaveLeavesNoTempFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, map[domain.TenantID]Tenant{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".tmp", filepath.Ext(e.Name()))
	}
}

func TestFileStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o644))

	_, err = store.Load(context.Background())
	assert.Error(t, err)
}
