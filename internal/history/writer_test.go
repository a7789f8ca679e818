package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/sabbirahammad/currency/internal/audit"
	"github.com/sabbirahammad/currency/internal/detect"
	"github.com/sabbirahammad/currency/internal/session"
	id "github.com/sabbirahammad/currency/pkg/domain"
	"github.com/sabbirahammad/currency/pkg/requestcontext"
)

// =============================================================================
// Writer Test Suite
// =============================================================================
// Justification for unit tests: the write gates (session readiness, result
// recognition) and the swallow-on-failure contract are pure orchestration
// invisible from the HTTP surface when they hold.

type fakeSessions struct {
	mu   sync.Mutex
	sess session.Session
}

func (f *fakeSessions) Current() session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func (f *fakeSessions) set(sess session.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = sess
}

// captureEmitter records emitted audit events for assertions.
type captureEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureEmitter) Emit(_ context.Context, event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureEmitter) all() []audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]audit.Event, len(c.events))
	copy(out, c.events)
	return out
}

// failingStore rejects every operation with a fixed error.
type failingStore struct {
	err error
}

func (f *failingStore) Append(context.Context, Scope, Document) error {
	return f.err
}

func (f *failingStore) List(context.Context, Scope) ([]Document, error) {
	return nil, f.err
}

func (f *failingStore) Subscribe(context.Context, Scope) (*Subscription, error) {
	return nil, f.err
}

type WriterSuite struct {
	suite.Suite
	store    *InMemoryRecordStore
	sessions *fakeSessions
	emitter  *captureEmitter
}

func TestWriterSuite(t *testing.T) {
	suite.Run(t, new(WriterSuite))
}

func (s *WriterSuite) SetupTest() {
	s.store = NewInMemoryRecordStore()
	s.sessions = &fakeSessions{}
	s.emitter = &captureEmitter{}
}

func (s *WriterSuite) newWriter(store RecordStore) *Writer {
	return NewWriter(store, s.sessions, "app-1", WithWriterAudit(s.emitter))
}

func readySession(identity string) session.Session {
	return session.Session{IdentityID: id.IdentityID(identity), State: session.StateReady}
}

func (s *WriterSuite) listScope(identity string) []Document {
	docs, err := s.store.List(context.Background(), Scope{ApplicationID: "app-1", IdentityID: id.IdentityID(identity)})
	s.Require().NoError(err)
	return docs
}

// =============================================================================
// Gating Tests
// =============================================================================

func (s *WriterSuite) TestRecord_Gating() {
	ctx := context.Background()
	recognized := detect.Result{Success: true, CurrencyCode: "USD", CurrencyName: "US Dollar"}

	s.Run("skips without a session", func() {
		w := s.newWriter(s.store)

		w.Record(ctx, recognized)

		s.Empty(s.listScope("identity-1"))
	})

	s.Run("skips while authenticating", func() {
		s.sessions.set(session.Session{State: session.StateAuthenticating})
		w := s.newWriter(s.store)

		w.Record(ctx, recognized)

		s.Empty(s.listScope("identity-1"))
	})

	s.Run("skips unrecognized results", func() {
		s.sessions.set(readySession("identity-1"))
		w := s.newWriter(s.store)

		w.Record(ctx, detect.Result{Success: false, Reason: "too blurry"})

		s.Empty(s.listScope("identity-1"))
	})

	s.Run("records a code-only partial result", func() {
		s.sessions.set(readySession("identity-1"))
		w := s.newWriter(s.store)

		w.Record(ctx, detect.Result{Success: false, CurrencyCode: "EUR"})

		docs := s.listScope("identity-1")
		s.Require().Len(docs, 1)
		s.Equal("EUR", docs[0].Result.CurrencyCode)
	})
}

// =============================================================================
// Persistence Tests
// =============================================================================

func (s *WriterSuite) TestRecord_Persists() {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	s.sessions.set(readySession("identity-1"))
	w := s.newWriter(s.store)

	w.Record(ctx, detect.Result{Success: true, CurrencyCode: "BDT", CurrencyName: "Bangladeshi Taka"})

	docs := s.listScope("identity-1")
	s.Require().Len(docs, 1)

	_, err := id.ParseRecordID(docs[0].ID)
	s.NoError(err, "document id should be a fresh record id")
	s.Require().NotNil(docs[0].RawTimestamp)
	s.True(docs[0].RawTimestamp.Equal(now))
	s.Equal("BDT", docs[0].Result.CurrencyCode)
}

// =============================================================================
// Failure Swallowing Tests
// =============================================================================

func (s *WriterSuite) TestRecord_SwallowsStoreFailure() {
	ctx := context.Background()
	s.sessions.set(readySession("identity-1"))
	storeErr := errors.New("store unavailable")
	w := s.newWriter(&failingStore{err: storeErr})

	// Must not panic and must not surface the failure.
	w.Record(ctx, detect.Result{Success: true, CurrencyCode: "USD"})

	events := s.emitter.all()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionHistoryWriteFailed, events[0].Action)
	s.Equal(id.IdentityID("identity-1"), events[0].IdentityID)
	s.Contains(events[0].Reason, "store unavailable")
	s.Equal("USD", events[0].CurrencyCode)
}

func (s *WriterSuite) TestRecord_NoAuditOnSuccess() {
	ctx := context.Background()
	s.sessions.set(readySession("identity-1"))
	w := s.newWriter(s.store)

	w.Record(ctx, detect.Result{Success: true, CurrencyCode: "USD"})

	s.Empty(s.emitter.all())
}
