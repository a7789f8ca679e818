package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/sabbirahammad/currency/internal/audit/metrics"
	"github.com/sabbirahammad/currency/pkg/requestcontext"
)

const (
	defaultInboxSize    = 1024
	defaultDrainTimeout = 5 * time.Second
	publishTimeout      = 10 * time.Second
)

// Emitter records audit events. Implementations must be safe for concurrent
// use and must never block or fail the calling flow.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// Publisher delivers events to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close(ctx context.Context) error
}

// NopEmitter discards all events. Used when auditing is not configured.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) {}

// Recorder is the buffered, asynchronous Emitter. Events queue into an inbox
// consumed by Run; when the inbox is full they are dropped and counted, so a
// slow or unavailable sink can never stall a submission.
type Recorder struct {
	publisher Publisher
	inbox     chan Event
	logger    *slog.Logger
	metrics   *metrics.Metrics
	drain     time.Duration
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger used for drop and publish-failure reporting.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics attaches audit metrics.
func WithMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithInboxSize overrides the inbox capacity.
func WithInboxSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.inbox = make(chan Event, n)
		}
	}
}

// WithDrainTimeout bounds how long shutdown spends flushing queued events.
func WithDrainTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.drain = d
		}
	}
}

// NewRecorder constructs a Recorder in front of the given publisher.
// Call Run to start consuming the inbox.
func NewRecorder(publisher Publisher, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		publisher: publisher,
		inbox:     make(chan Event, defaultInboxSize),
		logger:    slog.Default(),
		drain:     defaultDrainTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Emit queues an event. Zero timestamps fill from the request clock and
// empty categories from the action. A full inbox drops the event.
func (r *Recorder) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}

	select {
	case r.inbox <- event:
		r.metrics.IncrementEmitted(string(event.Action))
	default:
		r.metrics.IncrementDropped()
		r.logger.WarnContext(ctx, "audit inbox full, dropping event", "action", event.Action)
	}
}

// Run consumes the inbox until ctx is cancelled, then drains what it can
// within the drain timeout. Publish failures are logged and counted, never
// propagated.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case event := <-r.inbox:
			r.publish(event)
		case <-ctx.Done():
			r.drainInbox()
			return ctx.Err()
		}
	}
}

func (r *Recorder) publish(event Event) {
	// Detached context: the Run ctx is already cancelled during drain.
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.publisher.Publish(ctx, event); err != nil {
		r.metrics.IncrementPublishFailure()
		r.logger.Warn("audit publish failed", "action", event.Action, "error", err)
	}
}

func (r *Recorder) drainInbox() {
	deadline := time.Now().Add(r.drain)
	for {
		if time.Now().After(deadline) {
			return
		}
		select {
		case event := <-r.inbox:
			r.publish(event)
		default:
			return
		}
	}
}
