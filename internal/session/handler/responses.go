package handler

import (
	"github.com/sabbirahammad/currency/internal/session"
)

// SessionResponse is the HTTP form of the identity session snapshot.
type SessionResponse struct {
	IdentityID  string `json:"identityId,omitempty"`
	IsAnonymous bool   `json:"isAnonymous"`
	State       string `json:"state"`
	Error       string `json:"error,omitempty"`
}

// FromSession converts a session snapshot to its HTTP response. lastErr is
// attached only while the session is not established; once a bootstrap
// succeeds the stale error text is withheld.
func FromSession(sess session.Session, lastErr error) *SessionResponse {
	resp := &SessionResponse{
		IsAnonymous: sess.IsAnonymous,
		State:       string(sess.State),
	}
	if !sess.IdentityID.IsNil() {
		resp.IdentityID = sess.IdentityID.String()
	}
	if lastErr != nil && !sess.Ready() {
		resp.Error = lastErr.Error()
	}
	return resp
}
