package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paratel/numlease/internal/catalog/domain"
	"github.com/paratel/numlease/internal/catalog/repository"
	"github.com/paratel/numlease/internal/platform/database"
)

type pgOfferingRepository struct{}

// NewPgOfferingRepository creates the PostgreSQL OfferingRepository.
func NewPgOfferingRepository() repository.OfferingRepository {
	return &pgOfferingRepository{}
}

func (r *pgOfferingRepository) GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*domain.Offering, error) {
	query := `
		SELECT id, service, country, provider, price, code_pattern, enabled
		FROM offerings WHERE id = $1
	`
	off := &domain.Offering{}
	err := q.QueryRow(ctx, query, id).Scan(
		&off.ID, &off.Service, &off.Country, &off.Provider, &off.Price, &off.CodePattern, &off.Enabled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOfferingNotFound
		}
		return nil, err
	}
	return off, nil
}

func (r *pgOfferingRepository) ListEnabled(ctx context.Context, q database.Querier) ([]domain.Offering, error) {
	query := `
		SELECT id, service, country, provider, price, code_pattern, enabled
		FROM offerings
		WHERE enabled
		ORDER BY service, country
	`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offs []domain.Offering
	for rows.Next() {
		var off domain.Offering
		if err := rows.Scan(
			&off.ID, &off.Service, &off.Country, &off.Provider, &off.Price, &off.CodePattern, &off.Enabled,
		); err != nil {
			return nil, err
		}
		offs = append(offs, off)
	}
	return offs, rows.Err()
}
