package events

import (
	"time"

	"github.com/spec-kit/waitlist-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventWaitlistUpdated carries the full queue snapshot plus seat count.
	EventWaitlistUpdated EventType = "waitlist_updated"
	// EventPartyStatusChanged announces a single party transition.
	EventPartyStatusChanged EventType = "party_status_changed"
	// EventCapacityChanged announces a change in available seats.
	EventCapacityChanged EventType = "capacity_changed"
)

// Event represents a domain event emitted by the waitlist engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	PartyID   string      `json:"party_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// WaitlistUpdatedPayload payload.
type WaitlistUpdatedPayload struct {
	Waitlist       []domain.Party `json:"waitlist"`
	AvailableSeats int            `json:"availableSeats"`
}

// PartyStatusChangedPayload payload.
type PartyStatusChangedPayload struct {
	PartyID   string             `json:"partyId"`
	NewStatus domain.PartyStatus `json:"newStatus"`
}

// CapacityChangedPayload payload.
type CapacityChangedPayload struct {
	AvailableSeats int `json:"availableSeats"`
}
