package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paratel/numlease/internal/numberpool/domain"
	"github.com/paratel/numlease/internal/numberpool/repository"
	"github.com/paratel/numlease/internal/platform/database"
)

var ErrNumberNotFound = errors.New("number not found")

type pgNumberRepository struct{}

// NewPgNumberRepository creates the PostgreSQL NumberRepository.
func NewPgNumberRepository() repository.NumberRepository {
	return &pgNumberRepository{}
}

// Acquire claims one free number with FOR UPDATE SKIP LOCKED so concurrent
// acquisitions for the same offering each get a distinct row.
func (r *pgNumberRepository) Acquire(ctx context.Context, q database.Querier, offeringID uuid.UUID) (*domain.Number, error) {
	query := `
		WITH candidate AS (
			SELECT id
			FROM numbers
			WHERE offering_id = $1 AND state = $2
			ORDER BY updated_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE numbers n
		SET state = $3, updated_at = now()
		FROM candidate c
		WHERE n.id = c.id
		RETURNING n.id, n.offering_id, n.provider_ref, n.phone, n.state, n.updated_at
	`
	num := &domain.Number{}
	err := q.QueryRow(ctx, query, offeringID, domain.StateFree, domain.StateReserved).Scan(
		&num.ID, &num.OfferingID, &num.ProviderRef, &num.Phone, &num.State, &num.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoNumberAvailable
		}
		return nil, err
	}
	return num, nil
}

// Release transitions reserved -> free or reserved -> exhausted. The state
// guard makes duplicate or out-of-order releases no-ops.
func (r *pgNumberRepository) Release(ctx context.Context, q database.Querier, numberID uuid.UUID, to domain.NumberState) error {
	query := `
		UPDATE numbers
		SET state = $2, updated_at = now()
		WHERE id = $1 AND state = $3
	`
	_, err := q.Exec(ctx, query, numberID, to, domain.StateReserved)
	return err
}

func (r *pgNumberRepository) MarkExhausted(ctx context.Context, q database.Querier, numberID uuid.UUID) error {
	tag, err := q.Exec(ctx,
		`UPDATE numbers SET state = $2, updated_at = now() WHERE id = $1`,
		numberID, domain.StateExhausted,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNumberNotFound
	}
	return nil
}

func (r *pgNumberRepository) SetProviderRef(ctx context.Context, q database.Querier, numberID uuid.UUID, providerRef, phone string) error {
	query := `
		UPDATE numbers
		SET provider_ref = $2, phone = $3, updated_at = now()
		WHERE id = $1
	`
	tag, err := q.Exec(ctx, query, numberID, providerRef, phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNumberNotFound
	}
	return nil
}

func (r *pgNumberRepository) CountFree(ctx context.Context, q database.Querier, offeringID uuid.UUID) (int, error) {
	var count int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM numbers WHERE offering_id = $1 AND state = $2`,
		offeringID, domain.StateFree,
	).Scan(&count)
	return count, err
}

func (r *pgNumberRepository) GetByID(ctx context.Context, q database.Querier, numberID uuid.UUID) (*domain.Number, error) {
	query := `
		SELECT id, offering_id, provider_ref, phone, state, updated_at
		FROM numbers WHERE id = $1
	`
	num := &domain.Number{}
	err := q.QueryRow(ctx, query, numberID).Scan(
		&num.ID, &num.OfferingID, &num.ProviderRef, &num.Phone, &num.State, &num.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNumberNotFound
		}
		return nil, err
	}
	return num, nil
}
