package domain

// ApplicationID scopes record store data to one installed application.
// It is the first segment of every store scope, so it obeys the same
// validity rules as IdentityID.
type ApplicationID string

// DefaultApplicationID is the scope used when no application identifier is
// configured. Matches the fallback the hosted record store provisions for
// unconfigured installs.
const DefaultApplicationID ApplicationID = "default-app"

// ParseApplicationID validates and returns an ApplicationID.
func ParseApplicationID(s string) (ApplicationID, error) {
	if err := validateScopeComponent(s); err != nil {
		return "", err
	}
	return ApplicationID(s), nil
}

// String returns the string representation of the application ID.
func (v ApplicationID) String() string {
	return string(v)
}

// IsNil returns true if the application ID is empty.
func (v ApplicationID) IsNil() bool {
	return v == ""
}

// OrDefault returns the application ID, or DefaultApplicationID when empty.
func (v ApplicationID) OrDefault() ApplicationID {
	if v.IsNil() {
		return DefaultApplicationID
	}
	return v
}
