package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sabbirahammad/currency/internal/history"
	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
	"github.com/sabbirahammad/currency/pkg/platform/httputil"
	"github.com/sabbirahammad/currency/pkg/requestcontext"
)

// Service defines the interface for reading the detection history view.
type Service interface {
	View() history.View
	LastError() error
	Watch(fn func(history.View)) (cancel func())
}

// Handler serves the detection history read model.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a history handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts history endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/history", h.HandleView)
	r.Get("/history/stream", h.HandleStream)
}

// HandleView handles GET /history requests. It returns the current snapshot;
// a degraded view is still a 200 with stale set and the sync error attached.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromView(h.service.View(), h.service.LastError()))
}

// HandleStream handles GET /history/stream requests as a server-sent event
// feed. The current view is sent immediately on connect, then every published
// replacement follows as its own event until the client disconnects.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.ErrorContext(ctx, "response writer does not support streaming",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Watcher callbacks run on the publisher's goroutine and must never
	// block, so views are handed over through a coalescing buffer. A
	// dropped intermediate view is fine: each one fully replaces the last.
	updates := make(chan history.View, 1)
	push := func(view history.View) {
		for {
			select {
			case updates <- view:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}
	cancel := h.service.Watch(push)
	defer cancel()

	if err := h.writeEvent(w, flusher, FromView(h.service.View(), h.service.LastError())); err != nil {
		return
	}

	h.logger.DebugContext(ctx, "history stream opened", "request_id", requestID)

	for {
		select {
		case <-ctx.Done():
			h.logger.DebugContext(ctx, "history stream closed", "request_id", requestID)
			return
		case view := <-updates:
			if err := h.writeEvent(w, flusher, FromView(view, h.service.LastError())); err != nil {
				h.logger.DebugContext(ctx, "history stream write failed",
					"request_id", requestID,
					"error", err,
				)
				return
			}
		}
	}
}

func (h *Handler) writeEvent(w http.ResponseWriter, flusher http.Flusher, resp *ViewResponse) error {
	payload, err := encodeView(resp)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
