package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIdentityRegistered EventType = "identity_registered"
	EventLoginSucceeded     EventType = "login_succeeded"
	EventLoginFailed        EventType = "login_failed"
)

// Event represents a credential event emitted by the auth service.
// Payloads never carry passwords or password hashes.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	IdentityID string      `json:"identity_id,omitempty"`
	Email      string      `json:"email"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload,omitempty"`
}

// LoginFailedPayload explains why a login attempt was rejected.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}

// LoginSucceededPayload carries the expiry of the issued token.
type LoginSucceededPayload struct {
	TokenExpiresAt time.Time `json:"token_expires_at"`
}
