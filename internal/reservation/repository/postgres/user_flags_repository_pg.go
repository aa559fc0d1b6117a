package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	ledgerdomain "github.com/paratel/numlease/internal/ledger/domain"
	"github.com/paratel/numlease/internal/platform/database"
	"github.com/paratel/numlease/internal/reservation/repository"
)

type pgUserFlagsRepository struct{}

// NewPgUserFlagsRepository creates the PostgreSQL UserFlagsRepository.
func NewPgUserFlagsRepository() repository.UserFlagsRepository {
	return &pgUserFlagsRepository{}
}

func (r *pgUserFlagsRepository) IsBanned(ctx context.Context, q database.Querier, userID uuid.UUID) (bool, error) {
	var banned bool
	err := q.QueryRow(ctx, `SELECT is_banned FROM users WHERE id = $1`, userID).Scan(&banned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ledgerdomain.ErrUserNotFound
		}
		return false, err
	}
	return banned, nil
}
