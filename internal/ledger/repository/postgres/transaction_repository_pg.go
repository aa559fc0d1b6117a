package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paratel/numlease/internal/ledger/domain"
	"github.com/paratel/numlease/internal/ledger/repository"
	"github.com/paratel/numlease/internal/platform/database"
)

type pgTransactionRepository struct{}

// NewPgTransactionRepository creates the PostgreSQL TransactionRepository.
func NewPgTransactionRepository() repository.TransactionRepository {
	return &pgTransactionRepository{}
}

func (r *pgTransactionRepository) Create(ctx context.Context, q database.Querier, txn *domain.Transaction) (*domain.Transaction, error) {
	txn.ID = uuid.New()
	txn.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO transactions (id, user_id, reservation_id, kind, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.Exec(ctx, query,
		txn.ID, txn.UserID, txn.ReservationID, txn.Kind, txn.Amount, txn.Reason, txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *pgTransactionRepository) ListByUser(ctx context.Context, q database.Querier, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	query := `
		SELECT id, user_id, reservation_id, kind, amount, reason, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		if err := rows.Scan(
			&txn.ID, &txn.UserID, &txn.ReservationID, &txn.Kind, &txn.Amount, &txn.Reason, &txn.CreatedAt,
		); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *pgTransactionRepository) SumByUser(ctx context.Context, q database.Querier, userID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`
	var sum decimal.Decimal
	if err := q.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}
