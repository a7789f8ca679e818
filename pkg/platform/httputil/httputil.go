// Package httputil provides JSON response helpers shared by all HTTP handlers.
//
// Handlers return domain errors from pkg/domain-errors; WriteError translates
// the code into an HTTP status and a stable error envelope. Internal error
// details never reach clients.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
)

// errorEnvelope is the wire form of a failed request.
type errorEnvelope struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	UpstreamStatus   int    `json:"upstream_status,omitempty"`
}

// statusFor maps domain error codes to HTTP statuses. Unknown codes map to
// 500 so an unmapped code can never leak a success status.
func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeInvariantViolation:
		return http.StatusConflict
	case dErrors.CodeAuth:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeNetwork, dErrors.CodeServer:
		return http.StatusBadGateway
	case dErrors.CodeSync, dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes the error envelope for a domain error. Uncoded errors
// are treated as internal. Internal errors omit the description so storage
// and upstream details stay out of responses.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	envelope := errorEnvelope{Error: string(code)}

	if code != dErrors.CodeInternal && code != dErrors.CodeUnknown {
		envelope.ErrorDescription = err.Error()
	}
	if code == dErrors.CodeServer {
		envelope.UpstreamStatus = dErrors.StatusOf(err)
	}

	WriteJSON(w, statusFor(code), envelope)
}
