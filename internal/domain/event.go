package domain

import "time"

type EventType string

const (
	EventUserRegistered EventType = "user.registered"
	EventLinkRequested  EventType = "link.requested"
	EventSessionStarted EventType = "session.started"
)

// Event is an auth lifecycle notification for downstream consumers.
type Event struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
