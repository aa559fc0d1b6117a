package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paratel/numlease/internal/ledger/domain"
	"github.com/paratel/numlease/internal/platform/database"
)

// TransactionRepository persists immutable ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, q database.Querier, txn *domain.Transaction) (*domain.Transaction, error)
	ListByUser(ctx context.Context, q database.Querier, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	// SumByUser recomputes the signed sum of all entries; used by the
	// consistency check against the materialized balance.
	SumByUser(ctx context.Context, q database.Querier, userID uuid.UUID) (decimal.Decimal, error)
}

// UserBalanceRepository reads and writes the materialized balance column.
type UserBalanceRepository interface {
	// GetBalanceForUpdate row-locks the user so concurrent debits serialize.
	GetBalanceForUpdate(ctx context.Context, q database.Querier, userID uuid.UUID) (decimal.Decimal, error)
	GetBalance(ctx context.Context, q database.Querier, userID uuid.UUID) (decimal.Decimal, error)
	UpdateBalance(ctx context.Context, q database.Querier, userID uuid.UUID, balance decimal.Decimal) error
}
