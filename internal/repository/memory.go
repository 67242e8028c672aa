package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/waitlist-service/internal/domain"
)

// MemoryPartyRepository is a map-backed PartyRepository. It serves tests and
// runs the service without a POSTGRES_DSN; state does not survive restarts.
type MemoryPartyRepository struct {
	mu      sync.Mutex
	parties map[string]domain.Party
	now     func() time.Time
}

// NewMemoryPartyRepository returns an empty in-memory store.
func NewMemoryPartyRepository() *MemoryPartyRepository {
	return &MemoryPartyRepository{
		parties: make(map[string]domain.Party),
		now:     time.Now,
	}
}

// Seed inserts a party as-is, bypassing constraints. Test helper for
// pre-populating restart scenarios.
func (r *MemoryPartyRepository) Seed(party domain.Party) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parties[party.ID] = party
}

func (r *MemoryPartyRepository) FindActive(ctx context.Context) ([]domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Party
	for _, party := range r.parties {
		if !party.Status.Terminal() {
			result = append(result, party)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].JoinedAt.Equal(result[j].JoinedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result, nil
}

func (r *MemoryPartyRepository) FindByID(ctx context.Context, id string) (*domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	party, ok := r.parties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &party, nil
}

func (r *MemoryPartyRepository) FindActiveByClientID(ctx context.Context, clientID string) (*domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if party := r.activeByClientLocked(clientID); party != nil {
		copied := *party
		return &copied, nil
	}
	return nil, nil
}

func (r *MemoryPartyRepository) CreateQueued(ctx context.Context, name string, partySize int, clientID string) (*domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeByClientLocked(clientID) != nil {
		return nil, ErrDuplicateActiveParty
	}
	party := domain.Party{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Name:      name,
		PartySize: partySize,
		Status:    domain.PartyStatusQueued,
		JoinedAt:  r.now().UTC(),
	}
	r.parties[party.ID] = party
	return &party, nil
}

func (r *MemoryPartyRepository) UpdateStatus(ctx context.Context, id string, status domain.PartyStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	party, ok := r.parties[id]
	if !ok {
		return ErrNotFound
	}
	party.Status = status
	r.parties[id] = party
	return nil
}

func (r *MemoryPartyRepository) MarkReadyForCheckin(ctx context.Context, id string, readyAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	party, ok := r.parties[id]
	if !ok {
		return ErrNotFound
	}
	party.Status = domain.PartyStatusReadyToCheckin
	party.ReadyAt = &readyAt
	r.parties[id] = party
	return nil
}

func (r *MemoryPartyRepository) MarkSeated(ctx context.Context, id string, serviceEndsAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	party, ok := r.parties[id]
	if !ok {
		return ErrNotFound
	}
	checkedInAt := r.now().UTC()
	party.Status = domain.PartyStatusSeated
	party.CheckedInAt = &checkedInAt
	party.ServiceEndsAt = &serviceEndsAt
	r.parties[id] = party
	return nil
}

func (r *MemoryPartyRepository) activeByClientLocked(clientID string) *domain.Party {
	for id, party := range r.parties {
		if party.ClientID == clientID && !party.Status.Terminal() {
			found := r.parties[id]
			return &found
		}
	}
	return nil
}
