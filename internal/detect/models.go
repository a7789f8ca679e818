package detect

import (
	"strings"

	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
)

// MaxImageBytes is the upload ceiling enforced before any network call.
const MaxImageBytes = 10_485_760

// Confidence grades how certain the recognition service is about a verdict.
type Confidence string

// Confidence grades in descending order of certainty.
const (
	ConfidenceVeryHigh Confidence = "very_high"
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceLow      Confidence = "low"
)

// IsValid reports whether the grade is one the service is known to emit.
// Unknown grades are preserved as-is; callers treat them as display text.
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceVeryHigh, ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

// Request is one image submission. It lives for the duration of a single
// Submit call and is never retained afterwards.
type Request struct {
	Filename string
	MIMEType string
	Body     []byte
}

// Validate enforces the submission invariants. Violations are terminal:
// the request must not reach the network.
func (r Request) Validate() error {
	if len(r.Body) == 0 {
		return dErrors.New(dErrors.CodeValidation, "no image provided")
	}
	if len(r.Body) > MaxImageBytes {
		return dErrors.New(dErrors.CodeValidation, "image exceeds the 10MB size limit")
	}
	if !strings.HasPrefix(r.MIMEType, "image/") {
		return dErrors.New(dErrors.CodeValidation, "file must be an image")
	}
	return nil
}

// Result is the recognition service's verdict for one image. Field names
// follow the service's wire format. Immutable once decoded.
type Result struct {
	CurrencyCode     string     `json:"currencyCode"`
	CurrencyName     string     `json:"currencyName"`
	Symbol           string     `json:"symbol"`
	Country          string     `json:"country"`
	Confidence       Confidence `json:"confidence"`
	Percentage       float64    `json:"percentage"`
	Reason           string     `json:"reason"`
	ValidationPoints []string   `json:"validationPoints"`
	ExtractedText    string     `json:"extractedText"`

	// Success is the service's own verdict flag. Older service versions omit
	// it, so recognition is also inferred from a non-empty CurrencyCode.
	Success bool `json:"success"`
}

// Recognized reports whether the result identifies a currency. The service's
// flag and a non-empty code are deliberately both honored: some deployments
// return a code without the flag, and the record of either is worth keeping.
func (r Result) Recognized() bool {
	return r.Success || r.CurrencyCode != ""
}
