package domain

import "time"

// PartyStatus enumerates lifecycle states for waitlist parties.
type PartyStatus string

const (
	PartyStatusQueued         PartyStatus = "queued"
	PartyStatusReadyToCheckin PartyStatus = "ready_to_checkin"
	PartyStatusSeated         PartyStatus = "seated"
	PartyStatusCompleted      PartyStatus = "completed"
	PartyStatusNoShow         PartyStatus = "no_show"
	PartyStatusCancelled      PartyStatus = "cancelled"
)

// Terminal reports whether the status is an end state. Terminal parties are
// immutable and excluded from the in-memory queue.
func (s PartyStatus) Terminal() bool {
	switch s {
	case PartyStatusCompleted, PartyStatusNoShow, PartyStatusCancelled:
		return true
	}
	return false
}

// Party is the aggregate for a seating request. The JSON shape matches the
// durable record and is what GET /waitlist/:partyId and the push channel
// snapshots serve.
type Party struct {
	ID            string      `json:"id"`
	ClientID      string      `json:"client_id"`
	Name          string      `json:"name"`
	PartySize     int         `json:"party_size"`
	Status        PartyStatus `json:"status"`
	JoinedAt      time.Time   `json:"joined_at"`
	ReadyAt       *time.Time  `json:"ready_at"`
	CheckedInAt   *time.Time  `json:"checked_in_at"`
	ServiceEndsAt *time.Time  `json:"service_ends_at"`
}
