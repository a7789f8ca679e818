package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/sabbirahammad/currency/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return nil for successful operations
// - Return wrapped sentinel errors for invalid scopes or closed stores
// - Infrastructure failures do not apply to the in-memory backend
// InMemoryRecordStore keeps detection records in memory for tests/dev and
// for installs that run without a remote store.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string][]Document
	feeds   map[string][]*Subscription
	closed  bool
}

// NewInMemoryRecordStore constructs an empty in-memory record store.
func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{
		records: make(map[string][]Document),
		feeds:   make(map[string][]*Subscription),
	}
}

func (s *InMemoryRecordStore) Append(_ context.Context, scope Scope, doc Document) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("record store closed: %w", sentinel.ErrClosed)
	}
	key := scope.Key()
	s.records[key] = append(s.records[key], doc)
	feeds := append([]*Subscription(nil), s.feeds[key]...)
	s.mu.Unlock()

	for _, feed := range feeds {
		feed.notify()
	}
	return nil
}

func (s *InMemoryRecordStore) List(_ context.Context, scope Scope) ([]Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("record store closed: %w", sentinel.ErrClosed)
	}
	docs := make([]Document, len(s.records[scope.Key()]))
	copy(docs, s.records[scope.Key()])
	return docs, nil
}

func (s *InMemoryRecordStore) Subscribe(_ context.Context, scope Scope) (*Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("record store closed: %w", sentinel.ErrClosed)
	}
	key := scope.Key()
	var sub *Subscription
	sub = newSubscription(func() {
		// Runs under sub.mu; detach in a goroutine so the store lock is
		// never taken while a subscription lock is held.
		go s.detach(key, sub)
	})
	s.feeds[key] = append(s.feeds[key], sub)
	s.mu.Unlock()

	sub.notify()
	return sub, nil
}

// Close fails every open subscription and rejects further operations.
func (s *InMemoryRecordStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var feeds []*Subscription
	for _, list := range s.feeds {
		feeds = append(feeds, list...)
	}
	s.feeds = make(map[string][]*Subscription)
	s.mu.Unlock()

	for _, feed := range feeds {
		feed.fail(fmt.Errorf("record store closed: %w", sentinel.ErrClosed))
	}
}

func (s *InMemoryRecordStore) detach(key string, sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.feeds[key]
	for i, candidate := range list {
		if candidate == sub {
			s.feeds[key] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
