package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the reservation state machine. Pending is the only non-terminal
// state; a reservation commits exactly one terminal transition.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusExpired || s == StatusCancelled
}

// ProviderMode is how the vendor delivers incoming SMS.
type ProviderMode string

const (
	ModePoll    ProviderMode = "poll"
	ModeWebhook ProviderMode = "webhook"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrInvalidTransition means the reservation already reached a terminal
	// state. It is a benign race outcome, logged but never surfaced to users.
	ErrInvalidTransition = errors.New("reservation is not pending")
	ErrNotOwner          = errors.New("reservation belongs to another user")
	ErrUserBanned        = errors.New("user is banned")
)

// Reservation is a time-limited claim on one Number awaiting an SMS code.
// Rows are never deleted; terminal reservations remain for audit.
type Reservation struct {
	ID           uuid.UUID    `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	NumberID     uuid.UUID    `json:"number_id"`
	OfferingID   uuid.UUID    `json:"offering_id"`
	Provider     string       `json:"provider"`
	ProviderMode ProviderMode `json:"provider_mode"`
	ProviderRef  string       `json:"provider_ref"`
	Phone        string       `json:"phone"`
	// Price is the amount debited at creation; refunds repay exactly this.
	Price          decimal.Decimal `json:"price"`
	Status         Status          `json:"status"`
	Code           *string         `json:"code,omitempty"`
	CodeReceivedAt *time.Time      `json:"code_received_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// TerminalEvent is published when a reservation reaches a terminal state so
// the front-end collaborator can push the outcome to the user.
type TerminalEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	Status        Status    `json:"status"`
	Phone         string    `json:"phone"`
	Code          string    `json:"code,omitempty"`
	Refunded      bool      `json:"refunded"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// LowStockEvent is published when an offering runs out of free numbers.
type LowStockEvent struct {
	OfferingID uuid.UUID `json:"offering_id"`
	Service    string    `json:"service"`
	Country    string    `json:"country"`
	Provider   string    `json:"provider"`
	OccurredAt time.Time `json:"occurred_at"`
}
