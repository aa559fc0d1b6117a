package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paratel/numlease/internal/ledger/domain"
	"github.com/paratel/numlease/internal/platform/database"
)

// --- Mocks ---

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, q database.Querier, txn *domain.Transaction) (*domain.Transaction, error) {
	args := m.Called(ctx, q, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByUser(ctx context.Context, q database.Querier, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	args := m.Called(ctx, q, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SumByUser(ctx context.Context, q database.Querier, userID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, q, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockUserBalanceRepository struct {
	mock.Mock
}

func (m *MockUserBalanceRepository) GetBalanceForUpdate(ctx context.Context, q database.Querier, userID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, q, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockUserBalanceRepository) GetBalance(ctx context.Context, q database.Querier, userID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, q, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockUserBalanceRepository) UpdateBalance(ctx context.Context, q database.Querier, userID uuid.UUID, balance decimal.Decimal) error {
	args := m.Called(ctx, q, userID, balance)
	return args.Error(0)
}

// stubTxManager runs the callback directly; the nil Querier is fine because
// the repositories are mocked.
type stubTxManager struct{}

func (stubTxManager) WithinTx(ctx context.Context, fn func(q database.Querier) error) error {
	return fn(nil)
}

// --- Test setup ---

type ledgerTestComponents struct {
	service      *LedgerService
	mockTxnRepo  *MockTransactionRepository
	mockUserRepo *MockUserBalanceRepository
}

func setupLedgerTest(t *testing.T) ledgerTestComponents {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockTxnRepo := new(MockTransactionRepository)
	mockUserRepo := new(MockUserBalanceRepository)
	service := NewLedgerService(stubTxManager{}, mockTxnRepo, mockUserRepo, logger)
	return ledgerTestComponents{service: service, mockTxnRepo: mockTxnRepo, mockUserRepo: mockUserRepo}
}

// --- Tests ---

func TestLedgerService_Debit_Success(t *testing.T) {
	comps := setupLedgerTest(t)
	userID := uuid.New()
	amount := decimal.NewFromInt(10)

	comps.mockUserRepo.On("GetBalanceForUpdate", mock.Anything, nil, userID).
		Return(decimal.NewFromInt(25), nil).Once()
	comps.mockTxnRepo.On("Create", mock.Anything, nil, mock.MatchedBy(func(txn *domain.Transaction) bool {
		return txn.UserID == userID &&
			txn.Kind == domain.KindPurchase &&
			txn.Amount.Equal(decimal.NewFromInt(-10))
	})).Return(&domain.Transaction{ID: uuid.New(), UserID: userID, Kind: domain.KindPurchase, Amount: amount.Neg()}, nil).Once()
	comps.mockUserRepo.On("UpdateBalance", mock.Anything, nil, userID, mock.MatchedBy(func(b decimal.Decimal) bool {
		return b.Equal(decimal.NewFromInt(15))
	})).Return(nil).Once()

	txn, err := comps.service.Debit(context.Background(), userID, amount, domain.KindPurchase, nil, "telegram US via smshub")
	require.NoError(t, err)
	assert.True(t, txn.Amount.IsNegative())

	comps.mockTxnRepo.AssertExpectations(t)
	comps.mockUserRepo.AssertExpectations(t)
}

func TestLedgerService_Debit_InsufficientBalance(t *testing.T) {
	comps := setupLedgerTest(t)
	userID := uuid.New()

	comps.mockUserRepo.On("GetBalanceForUpdate", mock.Anything, nil, userID).
		Return(decimal.NewFromInt(5), nil).Once()

	_, err := comps.service.Debit(context.Background(), userID, decimal.NewFromInt(10), domain.KindPurchase, nil, "")
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// No transaction is written and the balance is untouched.
	comps.mockTxnRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	comps.mockUserRepo.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLedgerService_Debit_NonPositiveAmount(t *testing.T) {
	comps := setupLedgerTest(t)

	_, err := comps.service.Debit(context.Background(), uuid.New(), decimal.Zero, domain.KindPurchase, nil, "")
	assert.ErrorIs(t, err, domain.ErrNonPositiveAmount)

	_, err = comps.service.Debit(context.Background(), uuid.New(), decimal.NewFromInt(-3), domain.KindPurchase, nil, "")
	assert.ErrorIs(t, err, domain.ErrNonPositiveAmount)
}

func TestLedgerService_Debit_UnknownUser(t *testing.T) {
	comps := setupLedgerTest(t)
	userID := uuid.New()

	comps.mockUserRepo.On("GetBalanceForUpdate", mock.Anything, nil, userID).
		Return(decimal.Zero, domain.ErrUserNotFound).Once()

	_, err := comps.service.Debit(context.Background(), userID, decimal.NewFromInt(1), domain.KindPurchase, nil, "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestLedgerService_Credit_Success(t *testing.T) {
	comps := setupLedgerTest(t)
	userID := uuid.New()
	reservationID := uuid.New()
	amount := decimal.RequireFromString("3.50")

	comps.mockUserRepo.On("GetBalanceForUpdate", mock.Anything, nil, userID).
		Return(decimal.NewFromInt(10), nil).Once()
	comps.mockTxnRepo.On("Create", mock.Anything, nil, mock.MatchedBy(func(txn *domain.Transaction) bool {
		return txn.Kind == domain.KindRefund &&
			txn.Amount.Equal(amount) &&
			txn.ReservationID != nil && *txn.ReservationID == reservationID
	})).Return(&domain.Transaction{ID: uuid.New(), UserID: userID, Kind: domain.KindRefund, Amount: amount}, nil).Once()
	comps.mockUserRepo.On("UpdateBalance", mock.Anything, nil, userID, mock.MatchedBy(func(b decimal.Decimal) bool {
		return b.Equal(decimal.RequireFromString("13.50"))
	})).Return(nil).Once()

	txn, err := comps.service.Credit(context.Background(), userID, amount, domain.KindRefund, &reservationID, "refund for expired reservation")
	require.NoError(t, err)
	assert.True(t, txn.Amount.IsPositive())

	comps.mockTxnRepo.AssertExpectations(t)
	comps.mockUserRepo.AssertExpectations(t)
}

func TestLedgerService_Credit_TransactionWriteFailureAbortsBalance(t *testing.T) {
	comps := setupLedgerTest(t)
	userID := uuid.New()

	comps.mockUserRepo.On("GetBalanceForUpdate", mock.Anything, nil, userID).
		Return(decimal.NewFromInt(10), nil).Once()
	comps.mockTxnRepo.On("Create", mock.Anything, nil, mock.Anything).
		Return(nil, errors.New("insert failed")).Once()

	_, err := comps.service.Credit(context.Background(), userID, decimal.NewFromInt(1), domain.KindTopUp, nil, "")
	require.Error(t, err)
	comps.mockUserRepo.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLedgerService_UserTransactions_ClampsLimit(t *testing.T) {
	comps := setupLedgerTest(t)
	userID := uuid.New()

	comps.mockTxnRepo.On("ListByUser", mock.Anything, nil, userID, 20, 0).
		Return([]domain.Transaction{}, nil).Once()

	_, err := comps.service.UserTransactions(context.Background(), nil, userID, 1000, -5)
	require.NoError(t, err)
	comps.mockTxnRepo.AssertExpectations(t)
}

func TestLedgerService_VerifyBalance(t *testing.T) {
	comps := setupLedgerTest(t)
	userID := uuid.New()

	comps.mockUserRepo.On("GetBalance", mock.Anything, nil, userID).
		Return(decimal.NewFromInt(7), nil).Twice()
	comps.mockTxnRepo.On("SumByUser", mock.Anything, nil, userID).
		Return(decimal.NewFromInt(7), nil).Once()

	require.NoError(t, comps.service.VerifyBalance(context.Background(), nil, userID))

	comps.mockTxnRepo.On("SumByUser", mock.Anything, nil, userID).
		Return(decimal.NewFromInt(9), nil).Once()
	assert.Error(t, comps.service.VerifyBalance(context.Background(), nil, userID))
}
