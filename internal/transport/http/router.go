// Package httptransport assembles the daemon's HTTP surface: the middleware chain,
// health and metrics endpoints, and the /api/v1 feature routes. Feature
// handlers stay in their own packages; this is wiring only.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	detecthandler "github.com/sabbirahammad/currency/internal/detect/handler"
	historyhandler "github.com/sabbirahammad/currency/internal/history/handler"
	"github.com/sabbirahammad/currency/internal/platform/middleware"
	referencehandler "github.com/sabbirahammad/currency/internal/reference/handler"
	sessionhandler "github.com/sabbirahammad/currency/internal/session/handler"
	"github.com/sabbirahammad/currency/pkg/platform/httputil"
)

// Submission attempts detach from the request context, so the submit route
// gets enough time for the whole retry ladder; everything else is snappy.
const (
	defaultRouteTimeout = 30 * time.Second
	submitRouteTimeout  = 2 * time.Minute
)

// Deps carries everything the router mounts.
type Deps struct {
	Logger *slog.Logger

	Detect    *detecthandler.Handler
	Session   *sessionhandler.Handler
	History   *historyhandler.Handler
	Reference *referencehandler.Handler

	// Sessions and HistoryView feed the health endpoint. Both reads are
	// in-memory snapshots; the health path never touches the network.
	Sessions    sessionhandler.Service
	HistoryView historyhandler.Service
}

// healthResponse reports daemon liveness plus the state of the two
// long-lived subsystems a client cares about.
type healthResponse struct {
	Status       string `json:"status"`
	SessionState string `json:"sessionState"`
	HistoryStale bool   `json:"historyStale"`
}

// New assembles the daemon router.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "ok"}
		if deps.Sessions != nil {
			resp.SessionState = string(deps.Sessions.Current().State)
		}
		if deps.HistoryView != nil {
			resp.HistoryStale = deps.HistoryView.View().Stale
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(g chi.Router) {
			g.Use(middleware.Timeout(submitRouteTimeout))
			deps.Detect.Register(g)
		})

		api.Group(func(g chi.Router) {
			g.Use(middleware.Timeout(defaultRouteTimeout))
			deps.Session.Register(g)
			deps.Reference.Register(g)
		})

		// No timeout: the stream stays open until the client leaves and the
		// view read is instant.
		deps.History.Register(api)
	})

	return r
}
