package session

import (
	id "github.com/sabbirahammad/currency/pkg/domain"
)

// State is the identity session lifecycle position.
type State string

// Session states. The only legal transitions are
// Uninitialized -> Authenticating -> Ready and Ready -> Authenticating
// (sign-out). A failed bootstrap falls back to Uninitialized.
const (
	StateUninitialized  State = "uninitialized"
	StateAuthenticating State = "authenticating"
	StateReady          State = "ready"
)

// Session is the process-wide identity snapshot. Exactly one session exists
// at a time; the manager is its single writer.
type Session struct {
	IdentityID  id.IdentityID
	IsAnonymous bool
	State       State
}

// Ready reports whether the session is usable for identity-scoped work.
func (s Session) Ready() bool {
	return s.State == StateReady && !s.IdentityID.IsNil()
}
