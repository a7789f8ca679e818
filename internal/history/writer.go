package history

import (
	"context"
	"log/slog"

	"github.com/sabbirahammad/currency/internal/audit"
	"github.com/sabbirahammad/currency/internal/detect"
	"github.com/sabbirahammad/currency/internal/history/metrics"
	"github.com/sabbirahammad/currency/internal/session"
	id "github.com/sabbirahammad/currency/pkg/domain"
	"github.com/sabbirahammad/currency/pkg/requestcontext"
)

// SessionSource exposes the active identity session.
type SessionSource interface {
	Current() session.Session
}

// Writer persists qualifying detection results under the active identity.
// Persistence is best-effort: a failed write logs, counts, and emits an
// audit event, but never affects the submission that produced the result.
type Writer struct {
	store    RecordStore
	sessions SessionSource
	app      id.ApplicationID
	audit    audit.Emitter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterLogger sets the logger.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWriterMetrics attaches history metrics.
func WithWriterMetrics(m *metrics.Metrics) WriterOption {
	return func(w *Writer) {
		w.metrics = m
	}
}

// WithWriterAudit sets the audit emitter for write failures.
func WithWriterAudit(emitter audit.Emitter) WriterOption {
	return func(w *Writer) {
		if emitter != nil {
			w.audit = emitter
		}
	}
}

// NewWriter constructs a Writer recording under the given application scope.
func NewWriter(store RecordStore, sessions SessionSource, app id.ApplicationID, opts ...WriterOption) *Writer {
	w := &Writer{
		store:    store,
		sessions: sessions,
		app:      app.OrDefault(),
		audit:    audit.NopEmitter{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Record persists one result when it qualifies: the detection must have
// succeeded or returned a currency code, and a session must be Ready.
// Anything else is skipped quietly.
func (w *Writer) Record(ctx context.Context, result detect.Result) {
	sess := w.sessions.Current()
	if !sess.Ready() {
		w.metrics.IncrementWrite("skipped_no_session")
		w.logger.DebugContext(ctx, "history write skipped, no active session")
		return
	}
	if !result.Recognized() {
		w.metrics.IncrementWrite("skipped_not_recognized")
		w.logger.DebugContext(ctx, "history write skipped, nothing recognized")
		return
	}

	now := requestcontext.Now(ctx)
	doc := Document{
		ID:           id.NewRecordID().String(),
		RawTimestamp: &now,
		Result:       result,
	}
	scope := Scope{ApplicationID: w.app, IdentityID: sess.IdentityID}

	if err := w.store.Append(ctx, scope, doc); err != nil {
		w.metrics.IncrementWrite("failed")
		w.logger.WarnContext(ctx, "history write failed",
			"record_id", doc.ID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err)

		event := audit.NewEvent(audit.ActionHistoryWriteFailed, now)
		event.IdentityID = sess.IdentityID
		event.RequestID = requestcontext.RequestID(ctx)
		event.Reason = err.Error()
		event.CurrencyCode = result.CurrencyCode
		w.audit.Emit(ctx, event)
		return
	}

	w.metrics.IncrementWrite("persisted")
}
