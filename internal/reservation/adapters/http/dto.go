package http

import (
	"time"

	"github.com/shopspring/decimal"

	catalogdomain "github.com/paratel/numlease/internal/catalog/domain"
	ledgerdomain "github.com/paratel/numlease/internal/ledger/domain"
	"github.com/paratel/numlease/internal/reservation/domain"
)

// CreateReservationRequest is the body of POST /reservations.
type CreateReservationRequest struct {
	UserID     string `json:"user_id"`
	OfferingID string `json:"offering_id"`
}

// ReservationResponse is the reservation as serialized to the front-end
// collaborator.
type ReservationResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Phone     string    `json:"phone"`
	Provider  string    `json:"provider"`
	Price     string    `json:"price"`
	Status    string    `json:"status"`
	Code      *string   `json:"code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toReservationResponse(res *domain.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:        res.ID.String(),
		UserID:    res.UserID.String(),
		Phone:     res.Phone,
		Provider:  res.Provider,
		Price:     res.Price.String(),
		Status:    string(res.Status),
		Code:      res.Code,
		CreatedAt: res.CreatedAt,
		ExpiresAt: res.ExpiresAt,
	}
}

// CreditRequest is the body of POST /users/{userID}/credits, the entry point
// for the reward and admin collaborators.
type CreditRequest struct {
	Amount string `json:"amount"`
	Kind   string `json:"kind"` // topup, reward, admin_adjustment
	Reason string `json:"reason"`
}

// TransactionResponse is one ledger entry in a history listing.
type TransactionResponse struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Amount        string    `json:"amount"`
	Reason        string    `json:"reason,omitempty"`
	ReservationID *string   `json:"reservation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toTransactionResponse(txn ledgerdomain.Transaction) TransactionResponse {
	out := TransactionResponse{
		ID:        txn.ID.String(),
		Kind:      string(txn.Kind),
		Amount:    txn.Amount.String(),
		Reason:    txn.Reason,
		CreatedAt: txn.CreatedAt,
	}
	if txn.ReservationID != nil {
		s := txn.ReservationID.String()
		out.ReservationID = &s
	}
	return out
}

// OfferingResponse is one purchasable offering in the catalog listing.
type OfferingResponse struct {
	ID      string `json:"id"`
	Service string `json:"service"`
	Country string `json:"country"`
	Price   string `json:"price"`
}

func toOfferingResponse(off catalogdomain.Offering) OfferingResponse {
	return OfferingResponse{
		ID:      off.ID.String(),
		Service: off.Service,
		Country: off.Country,
		Price:   off.Price.String(),
	}
}

// BalanceResponse is the body of GET /users/{userID}/balance.
type BalanceResponse struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}
