package events

import (
	"time"

	"github.com/spec-kit/portal-auth/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventLogout         EventType = "logout"
	EventSessionsSwept  EventType = "sessions_swept"
)

// Event represents an authentication event emitted by services.
type Event struct {
	ID         string        `json:"id"`
	Type       EventType     `json:"type"`
	Domain     domain.Domain `json:"domain,omitempty"`
	IdentityID string        `json:"identity_id,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Payload    any           `json:"payload,omitempty"`
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// SessionsSweptPayload payload.
type SessionsSweptPayload struct {
	Removed int `json:"removed"`
}
