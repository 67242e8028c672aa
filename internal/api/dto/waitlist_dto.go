package dto

import (
	"time"

	"github.com/spec-kit/waitlist-service/internal/domain"
)

// JoinWaitlistRequest payload for POST /waitlist.
type JoinWaitlistRequest struct {
	Name      string `json:"name"`
	PartySize int    `json:"partySize"`
	ClientID  string `json:"clientId"`
}

// JoinWaitlistResponse mirrors the join result, identical for fresh and
// idempotent joins.
type JoinWaitlistResponse struct {
	Message string             `json:"message"`
	PartyID string             `json:"partyId"`
	Status  domain.PartyStatus `json:"status"`
}

// PartyResponse is the full party record served by GET /waitlist/:partyId.
type PartyResponse struct {
	ID            string             `json:"id"`
	ClientID      string             `json:"client_id"`
	Name          string             `json:"name"`
	PartySize     int                `json:"party_size"`
	Status        domain.PartyStatus `json:"status"`
	JoinedAt      time.Time          `json:"joined_at"`
	ReadyAt       *time.Time         `json:"ready_at"`
	CheckedInAt   *time.Time         `json:"checked_in_at"`
	ServiceEndsAt *time.Time         `json:"service_ends_at"`
}
