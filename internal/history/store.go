package history

import (
	"context"
	"sync"
)

// RecordStore is the persistence port for detection records. Implementations
// are identity-scoped: every operation addresses exactly one Scope and must
// never leak documents across scopes.
type RecordStore interface {
	// Append persists one document under the scope.
	Append(ctx context.Context, scope Scope, doc Document) error

	// List returns every document under the scope, in no particular order.
	List(ctx context.Context, scope Scope) ([]Document, error)

	// Subscribe opens a change feed for the scope. The subscription fires
	// once immediately so subscribers can load the current state, then once
	// per change. Notifications are coalesced, not queued.
	Subscribe(ctx context.Context, scope Scope) (*Subscription, error)
}

// Subscription is a live change feed for one scope. C carries change pokes;
// it closes when the feed ends. After C closes, Err reports whether the feed
// failed or was released by Close.
type Subscription struct {
	// C signals that the scope changed and should be re-read. The channel
	// never carries data, only edge notifications.
	C <-chan struct{}

	ch   chan struct{}
	stop func()

	mu     sync.Mutex
	err    error
	closed bool
}

// newSubscription builds a subscription around a backend teardown hook.
// The hook runs exactly once, on the first of Close or fail.
func newSubscription(stop func()) *Subscription {
	ch := make(chan struct{}, 1)
	return &Subscription{C: ch, ch: ch, stop: stop}
}

// notify coalesces a change poke into the channel. A poke already pending
// covers this one, so a full channel is not an error.
func (s *Subscription) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// fail ends the feed with an error. The channel closes so consumers unblock;
// Err reports the cause.
func (s *Subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	if s.stop != nil {
		s.stop()
	}
	close(s.ch)
}

// Close releases the feed. Safe to call more than once and after a failure.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.stop != nil {
		s.stop()
	}
	close(s.ch)
}

// Err returns the failure that ended the feed, or nil after a clean Close.
// Only meaningful once C has closed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
