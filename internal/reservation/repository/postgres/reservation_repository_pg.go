package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paratel/numlease/internal/platform/database"
	"github.com/paratel/numlease/internal/reservation/domain"
	"github.com/paratel/numlease/internal/reservation/repository"
)

const reservationColumns = `id, user_id, number_id, offering_id, provider, provider_mode,
	provider_ref, phone, price, status, code, code_received_at, created_at, expires_at`

type pgReservationRepository struct{}

// NewPgReservationRepository creates the PostgreSQL ReservationRepository.
func NewPgReservationRepository() repository.ReservationRepository {
	return &pgReservationRepository{}
}

func (r *pgReservationRepository) Create(ctx context.Context, q database.Querier, res *domain.Reservation) error {
	res.ID = uuid.New()
	res.CreatedAt = time.Now().UTC()
	res.Status = domain.StatusPending

	query := `
		INSERT INTO reservations (id, user_id, number_id, offering_id, provider, provider_mode,
		                          provider_ref, phone, price, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := q.Exec(ctx, query,
		res.ID, res.UserID, res.NumberID, res.OfferingID, res.Provider, res.ProviderMode,
		res.ProviderRef, res.Phone, res.Price, res.Status, res.CreatedAt, res.ExpiresAt,
	)
	return err
}

func (r *pgReservationRepository) GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

func (r *pgReservationRepository) FindPendingByProviderRef(ctx context.Context, q database.Querier, providerName, providerRef string) (*domain.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE provider = $1 AND provider_ref = $2 AND status = $3
		LIMIT 1
	`
	res, err := scanReservation(q.QueryRow(ctx, query, providerName, providerRef, domain.StatusPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// MarkDelivered guards on status and expiry in one statement so a code that
// races the sweep cannot be delivered after the TTL.
func (r *pgReservationRepository) MarkDelivered(ctx context.Context, q database.Querier, id uuid.UUID, code string, at time.Time) (bool, error) {
	query := `
		UPDATE reservations
		SET status = $2, code = $3, code_received_at = $4
		WHERE id = $1 AND status = $5 AND expires_at > $4
	`
	tag, err := q.Exec(ctx, query, id, domain.StatusDelivered, code, at.UTC(), domain.StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgReservationRepository) MarkTerminal(ctx context.Context, q database.Querier, id uuid.UUID, to domain.Status) (bool, error) {
	if !to.Terminal() {
		return false, domain.ErrInvalidTransition
	}
	query := `
		UPDATE reservations
		SET status = $2
		WHERE id = $1 AND status = $3
	`
	tag, err := q.Exec(ctx, query, id, to, domain.StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgReservationRepository) ListExpired(ctx context.Context, q database.Querier, now time.Time, limit int) ([]domain.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = $1 AND expires_at <= $2
		ORDER BY expires_at ASC
		LIMIT $3
	`
	rows, err := q.Query(ctx, query, domain.StatusPending, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ClaimPollable leases due poll-mode reservations with SKIP LOCKED so
// concurrently running scheduler instances partition the work.
func (r *pgReservationRepository) ClaimPollable(ctx context.Context, q database.Querier, now time.Time, lease time.Duration, limit int) ([]domain.Reservation, error) {
	query := `
		WITH due AS (
			SELECT id
			FROM reservations
			WHERE status = $1
			  AND provider_mode = $2
			  AND expires_at > $3
			  AND (poll_claimed_until IS NULL OR poll_claimed_until <= $3)
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		UPDATE reservations rsv
		SET poll_claimed_until = $5
		FROM due
		WHERE rsv.id = due.id
		RETURNING rsv.id, rsv.user_id, rsv.number_id, rsv.offering_id, rsv.provider, rsv.provider_mode,
		          rsv.provider_ref, rsv.phone, rsv.price, rsv.status, rsv.code, rsv.code_received_at,
		          rsv.created_at, rsv.expires_at
	`
	nowUTC := now.UTC()
	rows, err := q.Query(ctx, query,
		domain.StatusPending, domain.ModePoll, nowUTC, limit, nowUTC.Add(lease),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	err := row.Scan(
		&res.ID, &res.UserID, &res.NumberID, &res.OfferingID, &res.Provider, &res.ProviderMode,
		&res.ProviderRef, &res.Phone, &res.Price, &res.Status, &res.Code, &res.CodeReceivedAt,
		&res.CreatedAt, &res.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func scanReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
