package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mssola/useragent"

	id "github.com/sabbirahammad/currency/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategorySecurity covers events relevant to security monitoring.
	// Examples: sign-in failures, session invalidation.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. Examples: submissions, write failures, routine sign-ins.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so publishers can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    Action        `json:"action"`
	Reason    string        `json:"reason,omitempty"`

	IdentityID id.IdentityID `json:"identityId,omitempty"`
	RequestID  string        `json:"requestId,omitempty"`
	ClientIP   string        `json:"clientIp,omitempty"`
	Client     string        `json:"client,omitempty"`

	// ImageSHA256 correlates detection events with the submitted image
	// without storing the image itself.
	ImageSHA256 string `json:"imageSha256,omitempty"`

	// CurrencyCode is set on successful detection events.
	CurrencyCode string `json:"currencyCode,omitempty"`
}

// Action names the audited action.
type Action string

const (
	// Detection events
	ActionDetectionSubmitted Action = "detection_submitted"
	ActionDetectionSucceeded Action = "detection_succeeded"
	ActionDetectionFailed    Action = "detection_failed"

	// History events
	ActionHistoryWriteFailed Action = "history_write_failed"

	// Session events
	ActionSessionSignedIn        Action = "session_signed_in"
	ActionSessionSignedOut       Action = "session_signed_out"
	ActionSessionBootstrapFailed Action = "session_bootstrap_failed"
)

// actionCategories maps each action to its category.
// Security: session teardown and sign-in failures feed monitoring.
// Operations: routine activity, can be sampled.
var actionCategories = map[Action]EventCategory{
	ActionDetectionSubmitted: CategoryOperations,
	ActionDetectionSucceeded: CategoryOperations,
	ActionDetectionFailed:    CategoryOperations,
	ActionHistoryWriteFailed: CategoryOperations,

	ActionSessionSignedIn:        CategoryOperations,
	ActionSessionSignedOut:       CategorySecurity,
	ActionSessionBootstrapFailed: CategorySecurity,
}

// Category returns the EventCategory for this action.
// Unknown actions default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// NewEvent builds an event for the action with category and timestamp set.
func NewEvent(action Action, at time.Time) Event {
	return Event{
		Category:  action.Category(),
		Timestamp: at,
		Action:    action,
	}
}

// ImageDigest returns the hex SHA-256 of submitted image bytes. Used for
// correlation without retaining image content.
func ImageDigest(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// ClientDescription condenses a User-Agent header into a short
// "Browser version (OS)" label for event records. Unparsable agents pass
// through truncated.
func ClientDescription(rawUserAgent string) string {
	if rawUserAgent == "" {
		return ""
	}
	ua := useragent.New(rawUserAgent)
	name, version := ua.Browser()
	if name == "" {
		if len(rawUserAgent) > 64 {
			return rawUserAgent[:64]
		}
		return rawUserAgent
	}
	if os := ua.OS(); os != "" {
		return fmt.Sprintf("%s %s (%s)", name, version, os)
	}
	return fmt.Sprintf("%s %s", name, version)
}
