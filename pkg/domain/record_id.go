package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
)

// RecordID identifies one persisted detection record. Typed to prevent
// accidental interchange with other identifiers at compile time.
type RecordID uuid.UUID

// NewRecordID generates a fresh record ID.
func NewRecordID() RecordID {
	return RecordID(uuid.New())
}

// ParseRecordID validates and returns a RecordID.
// Rejects empty, malformed, and nil UUIDs.
func ParseRecordID(s string) (RecordID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return RecordID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid record id")
	}
	if parsed == uuid.Nil {
		return RecordID{}, dErrors.New(dErrors.CodeInvalidInput, "record id cannot be the nil UUID")
	}
	return RecordID(parsed), nil
}

// String returns the canonical UUID string form.
func (v RecordID) String() string {
	return uuid.UUID(v).String()
}

// IsNil returns true if the record ID is the zero value.
func (v RecordID) IsNil() bool {
	return v == RecordID{}
}
