package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sabbirahammad/currency/internal/session"
	"github.com/sabbirahammad/currency/pkg/platform/httputil"
	"github.com/sabbirahammad/currency/pkg/requestcontext"
)

// Service defines the interface for session operations.
type Service interface {
	Current() session.Session
	LastError() error
	SignOut(ctx context.Context) error
}

// Handler exposes the identity session over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a session handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts session endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/session", h.HandleCurrent)
	r.Post("/session/signout", h.HandleSignOut)
}

// HandleCurrent handles GET /session requests.
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromSession(h.service.Current(), h.service.LastError()))
}

// HandleSignOut handles POST /session/signout requests. A successful sign-out
// runs all the way through the follow-up bootstrap, so the response carries
// the replacement session rather than the cleared one.
func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	prior := h.service.Current()

	if err := h.service.SignOut(ctx); err != nil {
		h.logger.ErrorContext(ctx, "sign-out failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	current := h.service.Current()
	h.logger.InfoContext(ctx, "sign-out completed",
		"request_id", requestID,
		"prior_identity_id", prior.IdentityID.String(),
		"identity_id", current.IdentityID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromSession(current, h.service.LastError()))
}
