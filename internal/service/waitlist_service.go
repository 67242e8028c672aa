package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/waitlist-service/internal/config"
	"github.com/spec-kit/waitlist-service/internal/domain"
	"github.com/spec-kit/waitlist-service/internal/events"
	"github.com/spec-kit/waitlist-service/internal/observability"
	"github.com/spec-kit/waitlist-service/internal/repository"
	apperrors "github.com/spec-kit/waitlist-service/pkg/util"
)

// Join response messages. Part of the observable API.
const (
	msgJoined        = "Successfully joined waitlist!"
	msgAlreadyQueued = "You are already on the waitlist!"
)

// WaitlistService is the capacity and queue engine. It owns the in-memory
// ordered queue of non-terminal, non-seated parties and the available seat
// counter, and drives every status transition. The store is the durable
// source of truth; the queue and counter are rebuilt from it at startup.
//
// A single mutex serializes all engine invocations (HTTP handlers, push
// channel signals, timer callbacks), so between invocations the queue and
// seat counter are always mutually consistent. Timer callbacks re-fetch and
// re-validate party status before mutating: a timer that fires after its
// target transition already happened is a no-op.
type WaitlistService struct {
	mu                  sync.Mutex
	parties             repository.PartyRepository
	dispatcher          events.Dispatcher
	logger              *zap.Logger
	metrics             *observability.Metrics
	capacity            int
	serviceTimePerGuest time.Duration
	checkinTimeout      time.Duration
	queue               []domain.Party
	availableSeats      int
	timers              *timerRegistry
	now                 func() time.Time
}

// WaitlistDependencies bundles collaborators for the engine.
type WaitlistDependencies struct {
	PartyRepo  repository.PartyRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// JoinResult is the response shape for both fresh and idempotent joins.
type JoinResult struct {
	Message string
	PartyID string
	Status  domain.PartyStatus
}

// NewWaitlistService constructs the engine with all seats available. Call
// Initialize to reconcile against the store before serving traffic.
func NewWaitlistService(cfg config.WaitlistConfig, deps WaitlistDependencies) *WaitlistService {
	return &WaitlistService{
		parties:             deps.PartyRepo,
		dispatcher:          deps.Dispatcher,
		logger:              deps.Logger,
		metrics:             deps.Metrics,
		capacity:            cfg.Capacity,
		serviceTimePerGuest: cfg.ServiceTimePerGuest(),
		checkinTimeout:      cfg.CheckinTimeout(),
		availableSeats:      cfg.Capacity,
		timers:              newTimerRegistry(),
		now:                 time.Now,
	}
}

// Initialize rebuilds in-memory state from the store: seated parties occupy
// seats and get completion timers (overdue ones complete immediately), ready
// parties get their timeout rescheduled or are written off as no-shows, and
// queued parties re-enter the queue. Finishes with a snapshot broadcast and
// one advance pass.
func (s *WaitlistService) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.parties.FindActive(ctx)
	if err != nil {
		return err
	}

	var initialQueue []domain.Party
	var overdue []string
	occupied := 0

	for _, party := range active {
		switch party.Status {
		case domain.PartyStatusSeated:
			occupied += party.PartySize
			if party.ServiceEndsAt == nil {
				s.logger.Warn("seated party has no service_ends_at; leaving seated with no completion scheduled",
					zap.String("party_id", party.ID))
				continue
			}
			remaining := party.ServiceEndsAt.Sub(s.now())
			if remaining > 0 {
				id := party.ID
				s.timers.Schedule(id, remaining, func() { s.completeService(id) })
				s.logger.Info("rescheduled service completion",
					zap.String("party_id", id),
					zap.Duration("remaining", remaining))
			} else {
				overdue = append(overdue, party.ID)
			}
		case domain.PartyStatusReadyToCheckin:
			if kept := s.reconcileReadyPartyLocked(ctx, party); kept {
				initialQueue = append(initialQueue, party)
			}
		default:
			initialQueue = append(initialQueue, party)
		}
	}

	s.queue = initialQueue
	s.sortQueueLocked()
	s.availableSeats = s.capacity - occupied
	s.logger.Info("initial state loaded",
		zap.Int("available_seats", s.availableSeats),
		zap.Int("queue_length", len(s.queue)))

	// Release seats held by parties whose service already ended while the
	// process was down, before any new join can observe the seat count.
	for _, id := range overdue {
		s.logger.Info("service already ended; completing immediately", zap.String("party_id", id))
		s.completeServiceLocked(ctx, id)
	}

	s.emitWaitlistUpdateLocked(ctx)
	s.advanceLocked(ctx)
	return nil
}

// reconcileReadyPartyLocked handles a ready_to_checkin party found at
// startup. Returns true when the party keeps its place in the queue.
func (s *WaitlistService) reconcileReadyPartyLocked(ctx context.Context, party domain.Party) bool {
	if party.ReadyAt == nil {
		s.logger.Warn("ready party has no ready_at; marking no_show", zap.String("party_id", party.ID))
		if err := s.parties.UpdateStatus(ctx, party.ID, domain.PartyStatusNoShow); err != nil {
			s.logger.Error("persist no_show failed", zap.String("party_id", party.ID), zap.Error(err))
		}
		return false
	}

	deadline := party.ReadyAt.Add(s.checkinTimeout)
	remaining := deadline.Sub(s.now())
	if remaining <= 0 {
		s.logger.Info("party missed check-in during downtime; marking no_show",
			zap.String("party_id", party.ID))
		if err := s.parties.UpdateStatus(ctx, party.ID, domain.PartyStatusNoShow); err != nil {
			s.logger.Error("persist no_show failed", zap.String("party_id", party.ID), zap.Error(err))
		}
		return false
	}

	id := party.ID
	s.timers.Schedule(id, remaining, func() { s.handleCheckinTimeout(id) })
	s.logger.Info("rescheduled check-in timeout",
		zap.String("party_id", id),
		zap.Duration("remaining", remaining))
	return true
}

// Join admits a client onto the waitlist. Joining twice with the same client
// identity while the first party is still active returns the existing party
// in the same response shape. A store-level uniqueness conflict from a
// concurrent duplicate insert is recovered by re-fetching the winner.
func (s *WaitlistService) Join(ctx context.Context, name string, partySize int, clientID string) (*JoinResult, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(clientID) == "" {
		return nil, apperrors.NewValidationError("name and clientId are required", nil)
	}
	if partySize <= 0 {
		return nil, apperrors.NewValidationError("partySize must be a positive integer", nil)
	}
	if partySize > s.capacity {
		return nil, apperrors.NewValidationError("partySize cannot exceed restaurant capacity", map[string]any{
			"capacity": s.capacity,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.parties.FindActiveByClientID(ctx, clientID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if existing != nil {
		s.logger.Info("idempotent join: client already has active party",
			zap.String("client_id", clientID),
			zap.String("party_id", existing.ID))
		return &JoinResult{Message: msgAlreadyQueued, PartyID: existing.ID, Status: existing.Status}, nil
	}

	party, err := s.parties.CreateQueued(ctx, name, partySize, clientID)
	if errors.Is(err, repository.ErrDuplicateActiveParty) {
		return s.recoverDuplicateJoinLocked(ctx, clientID)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.queue = append(s.queue, *party)
	s.sortQueueLocked()
	if len(s.queue) == 1 {
		s.advanceLocked(ctx)
	}
	s.emitWaitlistUpdateLocked(ctx)
	s.logger.Info("party joined waitlist",
		zap.String("party_id", party.ID),
		zap.String("name", party.Name),
		zap.Int("party_size", party.PartySize))

	// Advance may have promoted this party already; report its current status.
	status := party.Status
	if entry := s.findInQueueLocked(party.ID); entry != nil {
		status = entry.Status
	}
	return &JoinResult{Message: msgJoined, PartyID: party.ID, Status: status}, nil
}

func (s *WaitlistService) recoverDuplicateJoinLocked(ctx context.Context, clientID string) (*JoinResult, error) {
	s.logger.Warn("duplicate insert race detected; re-fetching existing party",
		zap.String("client_id", clientID))
	existing, err := s.parties.FindActiveByClientID(ctx, clientID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if existing == nil {
		return nil, apperrors.NewInternalError(errors.New("duplicate conflict but no active party found"))
	}
	return &JoinResult{Message: msgAlreadyQueued, PartyID: existing.ID, Status: existing.Status}, nil
}

// PartyByID looks up a party in the store.
func (s *WaitlistService) PartyByID(ctx context.Context, id string) (*domain.Party, error) {
	return s.parties.FindByID(ctx, id)
}

// Snapshot returns the current queue contents and available seats. Served
// to push-channel clients on connect.
func (s *WaitlistService) Snapshot() ([]domain.Party, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitlistCopyLocked(), s.availableSeats
}

// CheckIn seats a ready party. The signal is fire-and-forget: validation
// failures (unknown id, wrong status, not enough seats anymore) are logged
// and dropped, never surfaced to the sender.
func (s *WaitlistService) CheckIn(ctx context.Context, partyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, err := s.parties.FindByID(ctx, partyID)
	if err != nil {
		s.logger.Warn("check-in for unknown party", zap.String("party_id", partyID), zap.Error(err))
		return
	}
	if party.Status != domain.PartyStatusReadyToCheckin {
		s.logger.Warn("check-in rejected: party not ready",
			zap.String("party_id", partyID),
			zap.String("status", string(party.Status)))
		return
	}
	if party.PartySize > s.availableSeats {
		s.logger.Warn("check-in rejected: not enough seats",
			zap.String("party_id", partyID),
			zap.Int("party_size", party.PartySize),
			zap.Int("available_seats", s.availableSeats))
		return
	}

	s.availableSeats -= party.PartySize
	serviceEndsAt := s.now().Add(time.Duration(party.PartySize) * s.serviceTimePerGuest).UTC()
	if err := s.parties.MarkSeated(ctx, party.ID, serviceEndsAt); err != nil {
		// In-memory and durable state now diverge until the next restart's
		// reconciliation. Accepted: no retries.
		s.logger.Error("persist seated failed", zap.String("party_id", party.ID), zap.Error(err))
		return
	}

	s.removeFromQueueLocked(party.ID)
	s.emitCapacityUpdateLocked(ctx)
	s.emitWaitlistUpdateLocked(ctx)
	s.emitPartyStatusLocked(ctx, party.ID, domain.PartyStatusSeated)
	s.logger.Info("party seated",
		zap.String("party_id", party.ID),
		zap.Int("available_seats", s.availableSeats),
		zap.Time("service_ends_at", serviceEndsAt))

	id := party.ID
	s.timers.Schedule(id, serviceEndsAt.Sub(s.now()), func() { s.completeService(id) })
	s.advanceLocked(ctx)
}

// Advance runs one promotion pass. Exposed for operational use; the engine
// calls its locked form after every queue or capacity change.
func (s *WaitlistService) Advance(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked(ctx)
}

// Close stops all pending timers. Scheduled transitions are recovered from
// the store on next startup.
func (s *WaitlistService) Close() {
	s.timers.StopAll()
}

// advanceLocked promotes the first queued party that fits in the available
// seats to ready_to_checkin and arms its check-in timeout. No eligible
// party is not an error.
func (s *WaitlistService) advanceLocked(ctx context.Context) {
	s.sortQueueLocked()

	idx := -1
	for i := range s.queue {
		if s.queue[i].Status == domain.PartyStatusQueued && s.queue[i].PartySize <= s.availableSeats {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.logger.Debug("no queued party can be called now",
			zap.Int("available_seats", s.availableSeats),
			zap.Int("queue_length", len(s.queue)))
		return
	}

	party := s.queue[idx]
	readyAt := s.now().UTC()
	if err := s.parties.MarkReadyForCheckin(ctx, party.ID, readyAt); err != nil {
		s.logger.Error("persist ready_to_checkin failed", zap.String("party_id", party.ID), zap.Error(err))
		return
	}
	s.queue[idx].Status = domain.PartyStatusReadyToCheckin
	s.queue[idx].ReadyAt = &readyAt

	s.logger.Info("party ready to check in",
		zap.String("party_id", party.ID),
		zap.String("name", party.Name),
		zap.Int("party_size", party.PartySize))
	s.emitPartyStatusLocked(ctx, party.ID, domain.PartyStatusReadyToCheckin)
	s.emitWaitlistUpdateLocked(ctx)

	id := party.ID
	s.timers.Schedule(id, s.checkinTimeout, func() { s.handleCheckinTimeout(id) })
}

// handleCheckinTimeout fires when a ready party's check-in window lapses.
// If the party checked in (or was otherwise handled) first, this is a no-op.
func (s *WaitlistService) handleCheckinTimeout(partyID string) {
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()

	party, err := s.parties.FindByID(ctx, partyID)
	if err != nil {
		s.logger.Warn("timeout for unknown party", zap.String("party_id", partyID), zap.Error(err))
		return
	}
	if party.Status != domain.PartyStatusReadyToCheckin {
		s.logger.Debug("timeout no-op: party already transitioned",
			zap.String("party_id", partyID),
			zap.String("status", string(party.Status)))
		return
	}

	s.logger.Info("party missed check-in; marking no_show", zap.String("party_id", partyID))
	if err := s.parties.UpdateStatus(ctx, partyID, domain.PartyStatusNoShow); err != nil {
		s.logger.Error("persist no_show failed", zap.String("party_id", partyID), zap.Error(err))
		return
	}
	s.removeFromQueueLocked(partyID)
	s.emitPartyStatusLocked(ctx, partyID, domain.PartyStatusNoShow)
	s.emitWaitlistUpdateLocked(ctx)
	s.advanceLocked(ctx)
}

// completeService fires at service_ends_at. If the party is no longer
// seated, this is a no-op.
func (s *WaitlistService) completeService(partyID string) {
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeServiceLocked(ctx, partyID)
}

func (s *WaitlistService) completeServiceLocked(ctx context.Context, partyID string) {
	party, err := s.parties.FindByID(ctx, partyID)
	if err != nil {
		s.logger.Warn("completion for unknown party", zap.String("party_id", partyID), zap.Error(err))
		return
	}
	if party.Status != domain.PartyStatusSeated {
		s.logger.Debug("completion no-op: party not seated",
			zap.String("party_id", partyID),
			zap.String("status", string(party.Status)))
		return
	}

	s.availableSeats += party.PartySize
	if err := s.parties.UpdateStatus(ctx, partyID, domain.PartyStatusCompleted); err != nil {
		s.logger.Error("persist completed failed", zap.String("party_id", partyID), zap.Error(err))
		return
	}

	s.logger.Info("service completed",
		zap.String("party_id", partyID),
		zap.Int("seats_released", party.PartySize),
		zap.Int("available_seats", s.availableSeats))
	s.emitCapacityUpdateLocked(ctx)
	s.emitWaitlistUpdateLocked(ctx)
	s.emitPartyStatusLocked(ctx, partyID, domain.PartyStatusCompleted)
	s.advanceLocked(ctx)
}

// sortQueueLocked keeps the queue in ascending joined_at order; ids break
// ties deterministically.
func (s *WaitlistService) sortQueueLocked() {
	sort.SliceStable(s.queue, func(i, j int) bool {
		if s.queue[i].JoinedAt.Equal(s.queue[j].JoinedAt) {
			return s.queue[i].ID < s.queue[j].ID
		}
		return s.queue[i].JoinedAt.Before(s.queue[j].JoinedAt)
	})
}

func (s *WaitlistService) removeFromQueueLocked(partyID string) {
	for i := range s.queue {
		if s.queue[i].ID == partyID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
	s.logger.Debug("party not in queue (already removed?)", zap.String("party_id", partyID))
}

func (s *WaitlistService) findInQueueLocked(partyID string) *domain.Party {
	for i := range s.queue {
		if s.queue[i].ID == partyID {
			return &s.queue[i]
		}
	}
	return nil
}

func (s *WaitlistService) waitlistCopyLocked() []domain.Party {
	snapshot := make([]domain.Party, len(s.queue))
	copy(snapshot, s.queue)
	return snapshot
}

func (s *WaitlistService) emitWaitlistUpdateLocked(ctx context.Context) {
	s.metrics.SetGauge(observability.GaugeAvailableSeats, int64(s.availableSeats))
	s.metrics.SetGauge(observability.GaugeQueueLength, int64(len(s.queue)))
	s.publishEvent(ctx, events.Event{
		Type: events.EventWaitlistUpdated,
		Payload: events.WaitlistUpdatedPayload{
			Waitlist:       s.waitlistCopyLocked(),
			AvailableSeats: s.availableSeats,
		},
	})
}

func (s *WaitlistService) emitPartyStatusLocked(ctx context.Context, partyID string, status domain.PartyStatus) {
	s.publishEvent(ctx, events.Event{
		Type:    events.EventPartyStatusChanged,
		PartyID: partyID,
		Payload: events.PartyStatusChangedPayload{
			PartyID:   partyID,
			NewStatus: status,
		},
	})
}

func (s *WaitlistService) emitCapacityUpdateLocked(ctx context.Context) {
	s.metrics.SetGauge(observability.GaugeAvailableSeats, int64(s.availableSeats))
	s.publishEvent(ctx, events.Event{
		Type: events.EventCapacityChanged,
		Payload: events.CapacityChangedPayload{
			AvailableSeats: s.availableSeats,
		},
	})
}

func (s *WaitlistService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
