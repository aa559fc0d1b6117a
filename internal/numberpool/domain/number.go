package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// NumberState tracks a phone number's availability in the pool.
type NumberState string

const (
	StateFree     NumberState = "free"
	StateReserved NumberState = "reserved"
	// StateExhausted marks a number the vendor reported burned; it is never
	// handed out again.
	StateExhausted NumberState = "exhausted"
)

var ErrNoNumberAvailable = errors.New("no number available for offering")

// Number is one purchasable phone number owned by a provider.
type Number struct {
	ID          uuid.UUID   `json:"id"`
	OfferingID  uuid.UUID   `json:"offering_id"`
	ProviderRef string      `json:"provider_ref"`
	Phone       string      `json:"phone"`
	State       NumberState `json:"state"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
