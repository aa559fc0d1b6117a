package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/paratel/numlease/internal/ledger/domain"
	"github.com/paratel/numlease/internal/ledger/repository"
	"github.com/paratel/numlease/internal/platform/database"
)

type pgUserBalanceRepository struct{}

// NewPgUserBalanceRepository creates the PostgreSQL UserBalanceRepository.
func NewPgUserBalanceRepository() repository.UserBalanceRepository {
	return &pgUserBalanceRepository{}
}

func (r *pgUserBalanceRepository) GetBalanceForUpdate(ctx context.Context, q database.Querier, userID uuid.UUID) (decimal.Decimal, error) {
	return r.getBalance(ctx, q, userID, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`)
}

func (r *pgUserBalanceRepository) GetBalance(ctx context.Context, q database.Querier, userID uuid.UUID) (decimal.Decimal, error) {
	return r.getBalance(ctx, q, userID, `SELECT balance FROM users WHERE id = $1`)
}

func (r *pgUserBalanceRepository) getBalance(ctx context.Context, q database.Querier, userID uuid.UUID, query string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := q.QueryRow(ctx, query, userID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrUserNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
}

func (r *pgUserBalanceRepository) UpdateBalance(ctx context.Context, q database.Querier, userID uuid.UUID, balance decimal.Decimal) error {
	tag, err := q.Exec(ctx, `UPDATE users SET balance = $2 WHERE id = $1`, userID, balance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
