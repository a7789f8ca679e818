package history

import (
	"time"

	"github.com/sabbirahammad/currency/internal/detect"
	id "github.com/sabbirahammad/currency/pkg/domain"
	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
)

// Limit is the maximum number of records the view retains. Older records
// stay in the store; the view only ever shows the newest Limit of them.
const Limit = 10

// Collection is the per-identity store collection name. Together with the
// application and identity it forms the full scope address.
const Collection = "currency_detections"

// displayLayout renders timestamps for the view.
const displayLayout = "Jan 2, 2006 3:04 PM"

// Scope addresses one identity's detection records in the remote store.
type Scope struct {
	ApplicationID id.ApplicationID
	IdentityID    id.IdentityID
}

// Validate rejects scopes with missing segments.
func (s Scope) Validate() error {
	if s.ApplicationID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "scope requires an application id")
	}
	if s.IdentityID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "scope requires an identity id")
	}
	return nil
}

// Key returns the store address: {application}/{identity}/currency_detections.
func (s Scope) Key() string {
	return s.ApplicationID.String() + "/" + s.IdentityID.String() + "/" + Collection
}

// Document is the stored wire form of one detection record. RawTimestamp is
// a pointer because the store may briefly hold documents whose server-side
// timestamp has not resolved yet.
type Document struct {
	ID           string        `json:"id"`
	RawTimestamp *time.Time    `json:"rawTimestamp,omitempty"`
	Result       detect.Result `json:"result"`
}

// Record is one entry of the read model.
type Record struct {
	ID     id.RecordID
	Result detect.Result

	// RawTimestamp orders records. Documents without a timestamp sort as
	// epoch zero, i.e. at the very end of the view.
	RawTimestamp time.Time

	// DisplayTimestamp is the human form. For documents without a
	// timestamp it falls back to the read time.
	DisplayTimestamp string
}

// View is a full-replacement snapshot of the newest records, ordered newest
// first. Stale marks a view whose live subscription has failed; the records
// are the last known good set.
type View struct {
	Records   []Record
	Stale     bool
	UpdatedAt time.Time
}

// recordFromDocument maps a stored document into the read model. Documents
// with unparsable IDs keep a zero RecordID; they are display-only entries.
func recordFromDocument(doc Document, readTime time.Time) Record {
	rec := Record{Result: doc.Result}

	if parsed, err := id.ParseRecordID(doc.ID); err == nil {
		rec.ID = parsed
	}

	if doc.RawTimestamp != nil {
		rec.RawTimestamp = *doc.RawTimestamp
		rec.DisplayTimestamp = doc.RawTimestamp.Local().Format(displayLayout)
	} else {
		rec.RawTimestamp = time.Unix(0, 0).UTC()
		rec.DisplayTimestamp = readTime.Local().Format(displayLayout)
	}

	return rec
}
