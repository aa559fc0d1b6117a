package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paratel/numlease/internal/ledger/domain"
	"github.com/paratel/numlease/internal/ledger/repository"
	"github.com/paratel/numlease/internal/platform/database"
)

// LedgerService owns every balance mutation. Balances change only through
// Debit and Credit, which append a transaction and update the materialized
// balance inside the same database transaction.
type LedgerService struct {
	txm      database.TxManager
	txnRepo  repository.TransactionRepository
	userRepo repository.UserBalanceRepository
	logger   *slog.Logger
}

func NewLedgerService(
	txm database.TxManager,
	txnRepo repository.TransactionRepository,
	userRepo repository.UserBalanceRepository,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		txm:      txm,
		txnRepo:  txnRepo,
		userRepo: userRepo,
		logger:   logger.With("component", "ledger"),
	}
}

// Debit charges amount from the user in its own transaction.
func (s *LedgerService) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind domain.TransactionKind, reservationID *uuid.UUID, reason string) (*domain.Transaction, error) {
	var txn *domain.Transaction
	err := s.txm.WithinTx(ctx, func(q database.Querier) error {
		var err error
		txn, err = s.DebitTx(ctx, q, userID, amount, kind, reservationID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// DebitTx charges amount from the user inside the caller's transaction.
// The user row is locked first so concurrent debits cannot both pass the
// balance check.
func (s *LedgerService) DebitTx(ctx context.Context, q database.Querier, userID uuid.UUID, amount decimal.Decimal, kind domain.TransactionKind, reservationID *uuid.UUID, reason string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrNonPositiveAmount
	}

	balance, err := s.userRepo.GetBalanceForUpdate(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount) {
		s.logger.InfoContext(ctx, "debit rejected",
			"user_id", userID, "amount", amount.String(), "balance", balance.String())
		return nil, domain.ErrInsufficientBalance
	}

	txn, err := s.txnRepo.Create(ctx, q, &domain.Transaction{
		UserID:        userID,
		ReservationID: reservationID,
		Kind:          kind,
		Amount:        amount.Neg(),
		Reason:        reason,
	})
	if err != nil {
		return nil, fmt.Errorf("record debit transaction: %w", err)
	}
	if err := s.userRepo.UpdateBalance(ctx, q, userID, balance.Sub(amount)); err != nil {
		return nil, fmt.Errorf("update balance after debit: %w", err)
	}

	s.logger.InfoContext(ctx, "debit recorded",
		"user_id", userID, "transaction_id", txn.ID, "amount", txn.Amount.String(), "kind", kind)
	return txn, nil
}

// Credit adds amount to the user in its own transaction. This is also the
// entry point for the reward and admin-adjustment collaborators.
func (s *LedgerService) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind domain.TransactionKind, reservationID *uuid.UUID, reason string) (*domain.Transaction, error) {
	var txn *domain.Transaction
	err := s.txm.WithinTx(ctx, func(q database.Querier) error {
		var err error
		txn, err = s.CreditTx(ctx, q, userID, amount, kind, reservationID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// CreditTx adds amount to the user inside the caller's transaction.
func (s *LedgerService) CreditTx(ctx context.Context, q database.Querier, userID uuid.UUID, amount decimal.Decimal, kind domain.TransactionKind, reservationID *uuid.UUID, reason string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrNonPositiveAmount
	}

	balance, err := s.userRepo.GetBalanceForUpdate(ctx, q, userID)
	if err != nil {
		return nil, err
	}

	txn, err := s.txnRepo.Create(ctx, q, &domain.Transaction{
		UserID:        userID,
		ReservationID: reservationID,
		Kind:          kind,
		Amount:        amount,
		Reason:        reason,
	})
	if err != nil {
		return nil, fmt.Errorf("record credit transaction: %w", err)
	}
	if err := s.userRepo.UpdateBalance(ctx, q, userID, balance.Add(amount)); err != nil {
		return nil, fmt.Errorf("update balance after credit: %w", err)
	}

	s.logger.InfoContext(ctx, "credit recorded",
		"user_id", userID, "transaction_id", txn.ID, "amount", txn.Amount.String(), "kind", kind)
	return txn, nil
}

// BalanceOf returns the user's current materialized balance.
func (s *LedgerService) BalanceOf(ctx context.Context, q database.Querier, userID uuid.UUID) (decimal.Decimal, error) {
	return s.userRepo.GetBalance(ctx, q, userID)
}

// UserTransactions lists a user's ledger history, newest first.
func (s *LedgerService) UserTransactions(ctx context.Context, q database.Querier, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.txnRepo.ListByUser(ctx, q, userID, limit, offset)
}

// VerifyBalance recomputes the signed transaction sum and compares it to the
// materialized balance. A mismatch is a consistency violation and is logged
// loudly; callers must treat it as fatal for the affected user.
func (s *LedgerService) VerifyBalance(ctx context.Context, q database.Querier, userID uuid.UUID) error {
	balance, err := s.userRepo.GetBalance(ctx, q, userID)
	if err != nil {
		return err
	}
	sum, err := s.txnRepo.SumByUser(ctx, q, userID)
	if err != nil {
		return err
	}
	if !balance.Equal(sum) {
		s.logger.ErrorContext(ctx, "LEDGER INVARIANT VIOLATION: balance does not match transaction sum",
			"user_id", userID, "balance", balance.String(), "transaction_sum", sum.String())
		return fmt.Errorf("ledger invariant violation for user %s: balance %s != sum %s", userID, balance, sum)
	}
	return nil
}
