package routestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"relaydesk/internal/routing"
	"relaydesk/pkg/domain"
)

// FileStoreSuite tests the whole-file JSON backend.
//
// Justification: this is the primary persistence path; a corrupted or
// half-written document would silently orphan every open ticket on restart.
type FileStoreSuite struct {
	suite.Suite
	ctx     context.Context
	dataDir string
	store   *File
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(FileStoreSuite))
}

func (s *FileStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.dataDir = s.T().TempDir()

	var err error
	s.store, err = NewFile(s.dataDir, "tenant-1")
	s.Require().NoError(err)
}

func (s *FileStoreSuite) TestLoadMissingDocumentReturnsEmpty() {
	entries, err := s.store.Load(s.ctx)
	s.NoError(err)
	s.Empty(entries)
}

func (s *FileStoreSuite) TestSaveThenLoadRoundTrips() {
	now := time.Now().UTC().Truncate(time.Second)
	in := map[domain.ConversationID]routing.Entry{
		"15551234567": {
			ConversationID: "15551234567",
			ChannelID:      "chan-1",
			DisplayName:    "Ada",
			LastActivityAt: now,
		},
	}
	s.Require().NoError(s.store.Save(s.ctx, in))

	out, err := s.store.Load(s.ctx)
	s.NoError(err)
	s.Require().Len(out, 1)
	s.Equal(in["15551234567"].ChannelID, out["15551234567"].ChannelID)
	s.Equal("Ada", out["15551234567"].DisplayName)
	s.True(out["15551234567"].LastActivityAt.Equal(now))
}

func (s *FileStoreSuite) TestSaveRewritesWholeDocument() {
	s.Require().NoError(s.store.Save(s.ctx, map[domain.ConversationID]routing.Entry{
		"15551234567": {ConversationID: "15551234567", ChannelID: "chan-1"},
		"16669876543": {ConversationID: "16669876543", ChannelID: "chan-2"},
	}))
	s.Require().NoError(s.store.Save(s.ctx, map[domain.ConversationID]routing.Entry{
		"15551234567": {ConversationID: "15551234567", ChannelID: "chan-1"},
	}))

	out, err := s.store.Load(s.ctx)
	s.NoError(err)
	s.Len(out, 1, "removed entries must not resurrect")
}

func (s *FileStoreSuite) TestNoTempFileLeftBehind() {
	s.Require().NoError(s.store.Save(s.ctx, map[domain.ConversationID]routing.Entry{
		"15551234567": {ConversationID: "15551234567", ChannelID: "chan-1"},
	}))

	matches, err := filepath.Glob(filepath.Join(s.dataDir, "routes", "*.tmp"))
	s.NoError(err)
	s.Empty(matches)
}

func (s *FileStoreSuite) TestCorruptDocumentSurfacesError() {
	path := filepath.Join(s.dataDir, "routes", "tenant-1.json")
	s.Require().NoError(os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := s.store.Load(s.ctx)
	s.Error(err)
}
