package repository

import "errors"

// ErrNotFound is returned when a lookup by id matches no party.
var ErrNotFound = errors.New("party not found")

// ErrDuplicateActiveParty is returned when an insert hits the partial unique
// index on client_id over non-terminal statuses. Callers recover by
// re-fetching the existing active party for that client.
var ErrDuplicateActiveParty = errors.New("client already has an active party")
