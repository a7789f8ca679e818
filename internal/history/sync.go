package history

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sabbirahammad/currency/internal/history/metrics"
	"github.com/sabbirahammad/currency/internal/session"
	id "github.com/sabbirahammad/currency/pkg/domain"
	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
	"github.com/sabbirahammad/currency/pkg/requestcontext"
)

// SessionFeed extends SessionSource with change notifications.
type SessionFeed interface {
	SessionSource
	Watch(fn func(session.Session)) (cancel func())
}

// Sync maintains the live history view for the active identity. It follows
// session changes, holds exactly one store subscription at a time, and
// rebuilds the view as a full replacement on every change notification.
// A lost feed degrades the view to stale instead of failing the daemon.
type Sync struct {
	store    RecordStore
	sessions SessionFeed
	app      id.ApplicationID
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.RWMutex
	view     View
	lastErr  error
	watchers map[int]func(View)
	nextID   int

	sessionCh chan session.Session
}

// SyncOption configures a Sync.
type SyncOption func(*Sync)

// WithSyncLogger sets the logger.
func WithSyncLogger(logger *slog.Logger) SyncOption {
	return func(s *Sync) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSyncMetrics attaches history metrics.
func WithSyncMetrics(m *metrics.Metrics) SyncOption {
	return func(s *Sync) {
		s.metrics = m
	}
}

// NewSync constructs a Sync for the given application scope. Call Run to
// start following the session.
func NewSync(store RecordStore, sessions SessionFeed, app id.ApplicationID, opts ...SyncOption) *Sync {
	s := &Sync{
		store:     store,
		sessions:  sessions,
		app:       app.OrDefault(),
		logger:    slog.Default(),
		watchers:  make(map[int]func(View)),
		sessionCh: make(chan session.Session, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// View returns the current snapshot.
func (s *Sync) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// LastError returns the error behind a stale view, nil while healthy.
func (s *Sync) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Watch registers a listener invoked on every published view. The returned
// cancel function removes the listener.
func (s *Sync) Watch(fn func(View)) (cancel func()) {
	s.mu.Lock()
	idx := s.nextID
	s.nextID++
	s.watchers[idx] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, idx)
		s.mu.Unlock()
	}
}

// Run follows the session until ctx is cancelled. Each identity change
// releases the previous subscription before opening the next, so two feeds
// never overlap. Session changes that leave Ready clear the view; that part
// happens synchronously inside the session listener, not here.
func (s *Sync) Run(ctx context.Context) error {
	unwatch := s.sessions.Watch(s.onSession)
	defer unwatch()

	// Run may start after bootstrap already finished; seed with the
	// session that exists right now.
	s.push(s.sessions.Current())

	var sub *Subscription
	var subCh <-chan struct{}
	var scope Scope
	defer func() {
		if sub != nil {
			sub.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case sess := <-s.sessionCh:
			if sub != nil {
				sub.Close()
				sub, subCh = nil, nil
			}
			if !sess.Ready() {
				continue
			}
			scope = Scope{ApplicationID: s.app, IdentityID: sess.IdentityID}
			next, err := s.store.Subscribe(ctx, scope)
			if err != nil {
				s.degrade(ctx, dErrors.Wrap(err, dErrors.CodeSync, "history feed unavailable"))
				continue
			}
			sub, subCh = next, next.C

		case _, ok := <-subCh:
			if !ok {
				err := sub.Err()
				sub, subCh = nil, nil
				if err != nil {
					s.degrade(ctx, dErrors.Wrap(err, dErrors.CodeSync, "history feed lost"))
				}
				continue
			}
			s.metrics.IncrementFeedNotification()
			s.refresh(ctx, scope)
		}
	}
}

// onSession runs inside the session manager's publish, synchronously with
// the operation that changed the session. Leaving Ready must clear the view
// before that operation returns, so the clear happens here; resubscription
// is handed to the loop.
func (s *Sync) onSession(sess session.Session) {
	if !sess.Ready() {
		s.publish(View{UpdatedAt: time.Now().UTC()}, nil)
	}
	s.push(sess)
}

// push coalesces the latest session into the channel. Only the newest state
// matters to the loop; intermediate states may be overwritten.
func (s *Sync) push(sess session.Session) {
	for {
		select {
		case s.sessionCh <- sess:
			return
		default:
		}
		select {
		case <-s.sessionCh:
		default:
		}
	}
}

func (s *Sync) refresh(ctx context.Context, scope Scope) {
	docs, err := s.store.List(ctx, scope)
	if err != nil {
		s.metrics.IncrementRefresh("error")
		s.degrade(ctx, dErrors.Wrap(err, dErrors.CodeSync, "history refresh failed"))
		return
	}

	now := requestcontext.Now(ctx)
	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, recordFromDocument(doc, now))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RawTimestamp.After(records[j].RawTimestamp)
	})
	if len(records) > Limit {
		records = records[:Limit]
	}

	s.metrics.IncrementRefresh("ok")
	s.publish(View{Records: records, UpdatedAt: now}, nil)
}

// degrade keeps the last known records but marks them stale and records the
// cause. The next successful refresh or identity change recovers the view.
func (s *Sync) degrade(ctx context.Context, err error) {
	s.mu.RLock()
	view := s.view
	s.mu.RUnlock()

	view.Stale = true
	view.UpdatedAt = requestcontext.Now(ctx)

	s.logger.WarnContext(ctx, "history view degraded", "error", err)
	s.publish(view, err)
}

func (s *Sync) publish(view View, err error) {
	s.mu.Lock()
	s.view = view
	s.lastErr = err
	fns := make([]func(View), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	s.metrics.SetViewSize(len(view.Records))
	for _, fn := range fns {
		fn(view)
	}
}
