package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/waitlist-service/internal/domain"
)

// activeClientIndex is the partial unique index enforcing at most one
// non-terminal party per client identity. Violations surface as
// ErrDuplicateActiveParty.
const activeClientIndex = "idx_parties_client_id_active"

// PartyRepository encapsulates party persistence. All operations are
// single-record; the store's own constraints provide the only atomicity the
// engine relies on.
type PartyRepository interface {
	// FindActive returns all non-terminal parties ordered by joined_at ascending.
	FindActive(ctx context.Context) ([]domain.Party, error)
	// FindByID returns the party or ErrNotFound.
	FindByID(ctx context.Context, id string) (*domain.Party, error)
	// FindActiveByClientID returns the client's non-terminal party, or
	// (nil, nil) when the client has none.
	FindActiveByClientID(ctx context.Context, clientID string) (*domain.Party, error)
	// CreateQueued inserts a new queued party. Returns
	// ErrDuplicateActiveParty when the client already has an active party.
	CreateQueued(ctx context.Context, name string, partySize int, clientID string) (*domain.Party, error)
	UpdateStatus(ctx context.Context, id string, status domain.PartyStatus) error
	MarkReadyForCheckin(ctx context.Context, id string, readyAt time.Time) error
	// MarkSeated stamps checked_in_at server-side and records when service ends.
	MarkSeated(ctx context.Context, id string, serviceEndsAt time.Time) error
}

type partyRepository struct {
	pool *pgxpool.Pool
}

// NewPartyRepository returns a Postgres-backed implementation.
func NewPartyRepository(pool *pgxpool.Pool) PartyRepository {
	return &partyRepository{pool: pool}
}

const partyColumns = `id, client_id, name, party_size, status, joined_at, ready_at, checked_in_at, service_ends_at`

func (r *partyRepository) FindActive(ctx context.Context) ([]domain.Party, error) {
	const query = `
        SELECT ` + partyColumns + `
        FROM parties
        WHERE status IN ($1,$2,$3)
        ORDER BY joined_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query,
		domain.PartyStatusQueued,
		domain.PartyStatusReadyToCheckin,
		domain.PartyStatusSeated,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanParties(rows)
}

func (r *partyRepository) FindByID(ctx context.Context, id string) (*domain.Party, error) {
	const query = `
        SELECT ` + partyColumns + `
        FROM parties WHERE id=$1`
	party, err := r.fetchSingle(ctx, query, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return party, err
}

func (r *partyRepository) FindActiveByClientID(ctx context.Context, clientID string) (*domain.Party, error) {
	const query = `
        SELECT ` + partyColumns + `
        FROM parties
        WHERE client_id=$1 AND status IN ($2,$3,$4)`
	party, err := r.fetchSingle(ctx, query, clientID,
		domain.PartyStatusQueued,
		domain.PartyStatusReadyToCheckin,
		domain.PartyStatusSeated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return party, err
}

func (r *partyRepository) CreateQueued(ctx context.Context, name string, partySize int, clientID string) (*domain.Party, error) {
	const query = `
        INSERT INTO parties (id, client_id, name, party_size, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING joined_at`
	party := &domain.Party{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Name:      name,
		PartySize: partySize,
		Status:    domain.PartyStatusQueued,
	}
	err := r.pool.QueryRow(ctx, query,
		party.ID,
		party.ClientID,
		party.Name,
		party.PartySize,
		party.Status,
	).Scan(&party.JoinedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == activeClientIndex {
			return nil, ErrDuplicateActiveParty
		}
		return nil, err
	}
	return party, nil
}

func (r *partyRepository) UpdateStatus(ctx context.Context, id string, status domain.PartyStatus) error {
	const query = `UPDATE parties SET status=$1 WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *partyRepository) MarkReadyForCheckin(ctx context.Context, id string, readyAt time.Time) error {
	const query = `UPDATE parties SET status=$1, ready_at=$2 WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, domain.PartyStatusReadyToCheckin, readyAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *partyRepository) MarkSeated(ctx context.Context, id string, serviceEndsAt time.Time) error {
	const query = `UPDATE parties SET status=$1, checked_in_at=NOW(), service_ends_at=$2 WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, domain.PartyStatusSeated, serviceEndsAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *partyRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Party, error) {
	var party domain.Party
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&party.ID,
		&party.ClientID,
		&party.Name,
		&party.PartySize,
		&party.Status,
		&party.JoinedAt,
		&party.ReadyAt,
		&party.CheckedInAt,
		&party.ServiceEndsAt,
	); err != nil {
		return nil, err
	}
	return &party, nil
}

func scanParties(rows pgx.Rows) ([]domain.Party, error) {
	var result []domain.Party
	for rows.Next() {
		var party domain.Party
		if err := rows.Scan(
			&party.ID,
			&party.ClientID,
			&party.Name,
			&party.PartySize,
			&party.Status,
			&party.JoinedAt,
			&party.ReadyAt,
			&party.CheckedInAt,
			&party.ServiceEndsAt,
		); err != nil {
			return nil, err
		}
		result = append(result, party)
	}
	return result, rows.Err()
}
