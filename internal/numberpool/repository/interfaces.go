package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/paratel/numlease/internal/numberpool/domain"
	"github.com/paratel/numlease/internal/platform/database"
)

// NumberRepository manages the inventory of purchasable numbers.
type NumberRepository interface {
	// Acquire claims one free number for the offering, marking it reserved.
	// Concurrent callers never receive the same number. Returns
	// domain.ErrNoNumberAvailable when the offering has no free numbers.
	Acquire(ctx context.Context, q database.Querier, offeringID uuid.UUID) (*domain.Number, error)
	// Release moves a reserved number to the given terminal pool state
	// (free or exhausted). Releasing a number that is not reserved is a
	// no-op so retries and duplicate releases are harmless.
	Release(ctx context.Context, q database.Querier, numberID uuid.UUID, to domain.NumberState) error
	// MarkExhausted retires a number unconditionally after the vendor
	// reports it burned.
	MarkExhausted(ctx context.Context, q database.Querier, numberID uuid.UUID) error
	// SetProviderRef records the vendor-side id and phone assigned on rental.
	SetProviderRef(ctx context.Context, q database.Querier, numberID uuid.UUID, providerRef, phone string) error
	// CountFree reports remaining free inventory, used for low-stock alerts.
	CountFree(ctx context.Context, q database.Querier, offeringID uuid.UUID) (int, error)
	GetByID(ctx context.Context, q database.Querier, numberID uuid.UUID) (*domain.Number, error)
}
