package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/paratel/numlease/internal/platform/database"
	"github.com/paratel/numlease/internal/reservation/domain"
)

// ReservationRepository persists reservations. All status transitions are
// conditional updates guarded on status = pending, so racing writers commit
// at most one terminal transition; the loser sees committed = false.
type ReservationRepository interface {
	Create(ctx context.Context, q database.Querier, r *domain.Reservation) error
	GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*domain.Reservation, error)
	// FindPendingByProviderRef resolves a webhook notification to its
	// reservation. Returns domain.ErrReservationNotFound when no pending
	// reservation holds the ref.
	FindPendingByProviderRef(ctx context.Context, q database.Querier, providerName, providerRef string) (*domain.Reservation, error)

	// MarkDelivered commits pending -> delivered, recording the code, only
	// if the expiry instant has not passed.
	MarkDelivered(ctx context.Context, q database.Querier, id uuid.UUID, code string, at time.Time) (committed bool, err error)
	// MarkTerminal commits pending -> expired or pending -> cancelled.
	MarkTerminal(ctx context.Context, q database.Querier, id uuid.UUID, to domain.Status) (committed bool, err error)

	// ListExpired returns pending reservations whose TTL has elapsed.
	ListExpired(ctx context.Context, q database.Querier, now time.Time, limit int) ([]domain.Reservation, error)
	// ClaimPollable leases due poll-mode reservations to this scheduler
	// instance until now+lease, so horizontally scaled schedulers never
	// poll the same reservation concurrently.
	ClaimPollable(ctx context.Context, q database.Querier, now time.Time, lease time.Duration, limit int) ([]domain.Reservation, error)
}

// IsBanned reports the user's ban flag; banned users cannot create
// reservations.
type UserFlagsRepository interface {
	IsBanned(ctx context.Context, q database.Querier, userID uuid.UUID) (bool, error)
}

// WebhookEventRepository is the dedup inbox for inbound vendor notifications.
type WebhookEventRepository interface {
	// Record stores the event id and returns false when it was already seen.
	Record(ctx context.Context, q database.Querier, providerName, eventID string, payload []byte) (inserted bool, err error)
}
