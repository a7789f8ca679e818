package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sabbirahammad/currency/internal/reference"
	"github.com/sabbirahammad/currency/pkg/platform/httputil"
)

// Handler serves the supported currency catalog.
type Handler struct{}

// New constructs a reference data handler.
func New() *Handler {
	return &Handler{}
}

// Register mounts reference endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/currencies", h.HandleList)
}

// CurrenciesResponse is the HTTP form of the supported currency catalog.
type CurrenciesResponse struct {
	Currencies []reference.Currency `json:"currencies"`
}

// HandleList handles GET /currencies requests. The catalog is static, so the
// response is always a 200 with the full sorted list.
func (h *Handler) HandleList(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, CurrenciesResponse{Currencies: reference.All()})
}
