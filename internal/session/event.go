package session

// EventType identifies the kind of a session Event
type EventType string

const (
	// EventForcedLogout is published when the credential could not be renewed and has
	// been cleared: every subscriber should fall back to the anonymous state
	EventForcedLogout EventType = "forced-logout"

	// EventTokenRefreshed is published after a new access token has been stored
	EventTokenRefreshed EventType = "token-refreshed"
)

// Event is broadcast to subscribers of a Manager. AccessToken and DisplayName are only
// set for EventTokenRefreshed, and DisplayName only when the refresh response carried
// one.
type Event struct {
	Type        EventType
	AccessToken string
	DisplayName string
}
