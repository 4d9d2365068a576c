package routing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"relaydesk/internal/routing"
	routestore "relaydesk/internal/routing/store"
	"relaydesk/pkg/domain"
	dErrors "relaydesk/pkg/domain-errors"
)

// TableSuite tests the routing table's bijection and persistence behavior.
type TableSuite struct {
	suite.Suite
	ctx   context.Context
	store *routestore.Memory
	table *routing.Table
}

func TestTableSuite(t *testing.T) {
	suite.Run(t, new(TableSuite))
}

func (s *TableSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = routestore.NewMemory()

	var err error
	s.table, err = routing.New(s.ctx, "tenant-1", s.store,
		routing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
}

func (s *TableSuite) TestSetNormalizesBeforeStoring() {
	_, err := s.table.Set(s.ctx, "15551234567", "chan-1", "Ada")
	s.NoError(err)

	// Same number, different decoration: overwrites the same key.
	_, err = s.table.Set(s.ctx, "+1 (555) 123-4567", "chan-2", "Ada")
	s.NoError(err)

	s.Equal(1, s.table.Len())
	channelID, ok := s.table.Get("15551234567")
	s.True(ok)
	s.Equal(domain.ChannelID("chan-2"), channelID)
}

func (s *TableSuite) TestSetRejectsChannelOwnedByOtherConversation() {
	_, err := s.table.Set(s.ctx, "15551234567", "chan-1", "Ada")
	s.NoError(err)

	_, err = s.table.Set(s.ctx, "16669876543", "chan-1", "Grace")
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeChannelInUse))

	// Re-setting the same pair is not a violation.
	_, err = s.table.Set(s.ctx, "15551234567", "chan-1", "Ada")
	s.NoError(err)
}

func (s *TableSuite) TestReverseLookup() {
	_, err := s.table.Set(s.ctx, "15551234567", "chan-1", "Ada")
	s.NoError(err)

	conversationID, ok := s.table.ReverseLookup("chan-1")
	s.True(ok)
	s.Equal(domain.ConversationID("15551234567"), conversationID)

	_, ok = s.table.ReverseLookup("chan-unknown")
	s.False(ok)
}

func (s *TableSuite) TestRemoveDeletesAndPersists() {
	_, err := s.table.Set(s.ctx, "15551234567", "chan-1", "Ada")
	s.NoError(err)

	s.table.Remove(s.ctx, "15551234567")
	_, ok := s.table.Get("15551234567")
	s.False(ok)

	persisted, err := s.store.Load(s.ctx)
	s.NoError(err)
	s.Empty(persisted)
}

func (s *TableSuite) TestMutationsPersistSynchronously() {
	_, err := s.table.Set(s.ctx, "15551234567", "chan-1", "Ada")
	s.NoError(err)

	persisted, err := s.store.Load(s.ctx)
	s.NoError(err)
	s.Len(persisted, 1)
	s.Equal(domain.ChannelID("chan-1"), persisted["15551234567"].ChannelID)
}

func (s *TableSuite) TestTouchUpdatesActivityAndName() {
	_, err := s.table.Set(s.ctx, "15551234567", "chan-1", "")
	s.NoError(err)

	s.table.Touch(s.ctx, "15551234567", "Ada")

	entries := s.table.Entries()
	s.Require().Len(entries, 1)
	s.Equal("Ada", entries[0].DisplayName)
	s.False(entries[0].LastActivityAt.IsZero())
}

func (s *TableSuite) TestTableSurvivesRestartFromStore() {
	_, err := s.table.Set(s.ctx, "15551234567", "chan-1", "Ada")
	s.NoError(err)

	reloaded, err := routing.New(s.ctx, "tenant-1", s.store)
	s.Require().NoError(err)
	channelID, ok := reloaded.Get("15551234567")
	s.True(ok)
	s.Equal(domain.ChannelID("chan-1"), channelID)
}

// failingStore simulates a broken disk: loads fine, never saves.
type failingStore struct {
	loaded map[domain.ConversationID]routing.Entry
}

func (f *failingStore) Load(context.Context) (map[domain.ConversationID]routing.Entry, error) {
	return f.loaded, nil
}

func (f *failingStore) Save(context.Context, map[domain.ConversationID]routing.Entry) error {
	return errors.New("disk full")
}

func (s *TableSuite) TestPersistenceFailureKeepsMemoryAuthoritative() {
	table, err := routing.New(s.ctx, "tenant-1", &failingStore{},
		routing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)

	// Set succeeds even though the write behind it failed.
	_, err = table.Set(s.ctx, "15551234567", "chan-1", "Ada")
	s.NoError(err)

	channelID, ok := table.Get("15551234567")
	s.True(ok)
	s.Equal(domain.ChannelID("chan-1"), channelID)
}
