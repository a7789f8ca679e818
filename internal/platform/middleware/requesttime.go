package middleware

import (
	"net/http"
	"time"

	"github.com/sabbirahammad/currency/pkg/requestcontext"
)

// RequestTime pins the current time at the start of the request so every
// operation within it shares one "now": audit timestamps, record timestamps
// and display fallbacks all agree.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
