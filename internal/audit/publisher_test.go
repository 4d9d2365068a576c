package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// PublisherSuite tests event emission and draining.
type PublisherSuite struct {
	suite.Suite
	ctx   context.Context
	store *MemoryStore
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemoryStore()
}

func (s *PublisherSuite) TestSyncEmitStampsTimestamp() {
	p := NewPublisher(s.store)

	err := p.Emit(s.ctx, Event{
		TenantID: "tenant-1",
		Action:   string(EventSessionReady),
	})
	s.NoError(err)

	events, err := s.store.ListByTenant(s.ctx, "tenant-1")
	s.NoError(err)
	s.Require().Len(events, 1)
	s.False(events[0].Timestamp.IsZero())
}

func (s *PublisherSuite) TestEmitPreservesExplicitTimestamp() {
	p := NewPublisher(s.store)
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.NoError(p.Emit(s.ctx, Event{TenantID: "tenant-1", Action: "x", Timestamp: stamp}))

	events, _ := s.store.ListByTenant(s.ctx, "tenant-1")
	s.Require().Len(events, 1)
	s.True(events[0].Timestamp.Equal(stamp))
}

func (s *PublisherSuite) TestAsyncEmitDrainsOnClose() {
	p := NewPublisher(s.store, WithAsyncBuffer(16))

	for i := 0; i < 5; i++ {
		s.NoError(p.Emit(s.ctx, Event{TenantID: "tenant-1", Action: string(EventTicketOpened)}))
	}
	p.Close()

	events, err := s.store.ListByTenant(s.ctx, "tenant-1")
	s.NoError(err)
	s.Len(events, 5)
}

func (s *PublisherSuite) TestListByTenantFiltersOtherTenants() {
	p := NewPublisher(s.store)
	s.NoError(p.Emit(s.ctx, Event{TenantID: "tenant-1", Action: "a"}))
	s.NoError(p.Emit(s.ctx, Event{TenantID: "tenant-2", Action: "b"}))

	events, err := s.store.ListByTenant(s.ctx, "tenant-1")
	s.NoError(err)
	s.Require().Len(events, 1)
	s.Equal("a", events[0].Action)
}
