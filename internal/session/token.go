package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
)

// TokenInfo is what the daemon can read from a credential without verifying
// it. Signature verification belongs to the identity service; the daemon
// only inspects claims for diagnostics and pre-flight expiry warnings.
type TokenInfo struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// InspectToken decodes the registered claims of a JWT without verifying its
// signature. Returns an error for strings that are not JWTs at all.
func InspectToken(tokenString string) (*TokenInfo, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "credential is not a well-formed token")
	}

	info := &TokenInfo{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Expired reports whether the token carries an expiry in the past. Tokens
// without an exp claim never report expired.
func (t *TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(now)
}
