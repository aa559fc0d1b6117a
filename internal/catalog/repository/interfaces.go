package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/paratel/numlease/internal/catalog/domain"
	"github.com/paratel/numlease/internal/platform/database"
)

// OfferingRepository reads the admin-maintained offering catalog.
type OfferingRepository interface {
	GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*domain.Offering, error)
	ListEnabled(ctx context.Context, q database.Querier) ([]domain.Offering, error)
}
