package detect

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
)

// missingCredentialMarkers identify upstream error text that points at an
// unconfigured recognition backend rather than a bad submission. Matching is
// case-insensitive over the details first, then the error message.
var missingCredentialMarkers = []string{"api key", "api_key"}

// classifyAttempt maps a raw attempt error to exactly one submission error
// class. Order matters: a timed-out request often surfaces wrapped in a
// transport error, so deadline checks run before transport checks. The
// mapping is total; anything unrecognized becomes CodeUnknown.
func classifyAttempt(err error) *dErrors.Error {
	if err == nil {
		return nil
	}

	// Deadline first: url.Error wraps context.DeadlineExceeded when the
	// per-attempt timeout fires mid-request.
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "the request took too long, try again")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "the request took too long, try again")
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		if indicatesMissingCredential(serverErr) {
			return dErrors.Wrap(err, dErrors.CodeConfiguration, "recognition service is missing its API credential")
		}
		return dErrors.Wrap(err, dErrors.CodeServer, serverErr.Message).WithStatus(serverErr.Status)
	}

	// No HTTP response at all: refused connections, DNS failures, resets.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return dErrors.Wrap(err, dErrors.CodeNetwork, "could not reach the recognition service")
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return dErrors.Wrap(err, dErrors.CodeNetwork, "could not reach the recognition service")
	}

	return dErrors.Wrap(err, dErrors.CodeUnknown, "detection failed")
}

// retryable reports whether a failed attempt may consume another attempt.
// Only failures that never produced a response (network trouble, timeouts,
// unrecognized transport errors) are retried; an error response from the
// service is definitive and ends the ladder.
func retryable(err error) bool {
	var serverErr *ServerError
	return !errors.As(err, &serverErr)
}

func indicatesMissingCredential(serverErr *ServerError) bool {
	details := strings.ToLower(serverErr.Details)
	message := strings.ToLower(serverErr.Message)
	for _, marker := range missingCredentialMarkers {
		if strings.Contains(details, marker) || strings.Contains(message, marker) {
			return true
		}
	}
	return false
}
