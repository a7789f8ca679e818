package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/sabbirahammad/currency/internal/detect"
	id "github.com/sabbirahammad/currency/pkg/domain"
	"github.com/sabbirahammad/currency/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryRecordStore
	scope Scope
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryRecordStore()
	s.scope = Scope{ApplicationID: "app-1", IdentityID: "identity-1"}
}

func makeDocument(code string) Document {
	now := time.Now().UTC()
	return Document{
		ID:           id.NewRecordID().String(),
		RawTimestamp: &now,
		Result:       detect.Result{Success: true, CurrencyCode: code},
	}
}

// expectPoke asserts a notification arrives promptly.
func (s *MemoryStoreSuite) expectPoke(sub *Subscription) {
	select {
	case _, ok := <-sub.C:
		s.Require().True(ok, "feed closed unexpectedly")
	case <-time.After(time.Second):
		s.Require().FailNow("timed out waiting for a change notification")
	}
}

// =============================================================================
// Append / List Tests
// =============================================================================

func (s *MemoryStoreSuite) TestAppendAndList() {
	ctx := context.Background()

	s.Run("round trips documents", func() {
		doc := makeDocument("USD")
		s.Require().NoError(s.store.Append(ctx, s.scope, doc))

		docs, err := s.store.List(ctx, s.scope)
		s.Require().NoError(err)
		s.Require().Len(docs, 1)
		s.Equal(doc.ID, docs[0].ID)
		s.Equal("USD", docs[0].Result.CurrencyCode)
	})

	s.Run("scopes are isolated", func() {
		other := Scope{ApplicationID: "app-1", IdentityID: "identity-2"}
		s.Require().NoError(s.store.Append(ctx, other, makeDocument("EUR")))

		docs, err := s.store.List(ctx, s.scope)
		s.Require().NoError(err)
		for _, doc := range docs {
			s.NotEqual("EUR", doc.Result.CurrencyCode)
		}
	})

	s.Run("invalid scope is rejected", func() {
		err := s.store.Append(ctx, Scope{}, makeDocument("USD"))
		s.Error(err)

		_, err = s.store.List(ctx, Scope{})
		s.Error(err)
	})
}

// =============================================================================
// Subscription Tests
// =============================================================================

func (s *MemoryStoreSuite) TestSubscribe() {
	ctx := context.Background()

	s.Run("fires once immediately on subscribe", func() {
		sub, err := s.store.Subscribe(ctx, s.scope)
		s.Require().NoError(err)
		defer sub.Close()

		s.expectPoke(sub)
	})

	s.Run("fires on append to the same scope", func() {
		sub, err := s.store.Subscribe(ctx, s.scope)
		s.Require().NoError(err)
		defer sub.Close()
		s.expectPoke(sub)

		s.Require().NoError(s.store.Append(ctx, s.scope, makeDocument("USD")))
		s.expectPoke(sub)
	})

	s.Run("does not fire for other scopes", func() {
		sub, err := s.store.Subscribe(ctx, s.scope)
		s.Require().NoError(err)
		defer sub.Close()
		s.expectPoke(sub)

		other := Scope{ApplicationID: "app-1", IdentityID: "identity-2"}
		s.Require().NoError(s.store.Append(ctx, other, makeDocument("EUR")))

		select {
		case <-sub.C:
			s.Fail("received a poke for a foreign scope")
		case <-time.After(50 * time.Millisecond):
		}
	})

	s.Run("coalesces bursts into pending pokes", func() {
		sub, err := s.store.Subscribe(ctx, s.scope)
		s.Require().NoError(err)
		defer sub.Close()
		s.expectPoke(sub)

		for i := 0; i < 5; i++ {
			s.Require().NoError(s.store.Append(ctx, s.scope, makeDocument("USD")))
		}

		// At least one poke must be pending; a reader that re-lists on each
		// poke still observes the final state.
		s.expectPoke(sub)
	})

	s.Run("close ends the feed cleanly", func() {
		sub, err := s.store.Subscribe(ctx, s.scope)
		s.Require().NoError(err)
		sub.Close()
		sub.Close() // idempotent

		for range sub.C {
		}
		s.NoError(sub.Err())
	})
}

func (s *MemoryStoreSuite) TestClose_FailsOpenFeeds() {
	ctx := context.Background()

	sub, err := s.store.Subscribe(ctx, s.scope)
	s.Require().NoError(err)
	s.expectPoke(sub)

	s.store.Close()

	for range sub.C {
	}
	s.Require().Error(sub.Err())
	s.ErrorIs(sub.Err(), sentinel.ErrClosed)

	err = s.store.Append(ctx, s.scope, makeDocument("USD"))
	s.ErrorIs(err, sentinel.ErrClosed)
}
