package domain

import (
	"unicode"
	"unicode/utf8"

	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
)

// IdentityID identifies an authenticated identity as issued by the identity
// service. This is a domain primitive that enforces validity at parse time:
// identity IDs are embedded verbatim in record store scopes
// ({application}/{identity}/currency_detections), so they must be non-empty,
// printable, and free of the scope separator.
type IdentityID string

const maxScopeComponentLength = 128

// ParseIdentityID validates and returns an IdentityID.
// Returns an error if the value cannot safely form part of a store scope.
func ParseIdentityID(s string) (IdentityID, error) {
	if err := validateScopeComponent(s); err != nil {
		return "", err
	}
	return IdentityID(s), nil
}

// String returns the string representation of the identity ID.
func (v IdentityID) String() string {
	return string(v)
}

// IsNil returns true if the identity ID is empty.
func (v IdentityID) IsNil() bool {
	return v == ""
}

// validateScopeComponent enforces the shared rules for values that form store
// scope segments. Rejection uses CodeInvalidInput so trust-boundary callers
// can surface a uniform classification.
func validateScopeComponent(s string) error {
	if s == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "identifier cannot be empty")
	}
	if len(s) > maxScopeComponentLength {
		return dErrors.Newf(dErrors.CodeInvalidInput, "identifier exceeds %d characters", maxScopeComponentLength)
	}
	if !utf8.ValidString(s) {
		return dErrors.New(dErrors.CodeInvalidInput, "identifier must be valid UTF-8")
	}
	for _, r := range s {
		if r == '/' {
			return dErrors.New(dErrors.CodeInvalidInput, "identifier cannot contain the scope separator")
		}
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return dErrors.New(dErrors.CodeInvalidInput, "identifier cannot contain whitespace or control characters")
		}
	}
	return nil
}
