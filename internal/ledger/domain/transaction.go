package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind classifies a balance-affecting event.
type TransactionKind string

const (
	KindTopUp           TransactionKind = "topup"
	KindPurchase        TransactionKind = "purchase"
	KindRefund          TransactionKind = "refund"
	KindReward          TransactionKind = "reward"
	KindAdminAdjustment TransactionKind = "admin_adjustment"
)

var (
	// ErrInsufficientBalance is an expected outcome of a debit, not a fault.
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("user not found")
	ErrNonPositiveAmount   = errors.New("amount must be positive")
)

// Transaction is an immutable ledger entry. Amount is signed: negative for
// debits, positive for credits. The signed sum of a user's transactions
// equals their current balance.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	ReservationID *uuid.UUID      `json:"reservation_id,omitempty"`
	Kind          TransactionKind `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
