package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	catalogdomain "github.com/paratel/numlease/internal/catalog/domain"
	catalogrepo "github.com/paratel/numlease/internal/catalog/repository"
	ledgerdomain "github.com/paratel/numlease/internal/ledger/domain"
	pooldomain "github.com/paratel/numlease/internal/numberpool/domain"
	poolrepo "github.com/paratel/numlease/internal/numberpool/repository"
	"github.com/paratel/numlease/internal/platform/database"
	"github.com/paratel/numlease/internal/provider"
	"github.com/paratel/numlease/internal/reservation/domain"
	"github.com/paratel/numlease/internal/reservation/repository"
)

// Ledger is the balance-settlement surface the manager needs.
type Ledger interface {
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind ledgerdomain.TransactionKind, reservationID *uuid.UUID, reason string) (*ledgerdomain.Transaction, error)
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind ledgerdomain.TransactionKind, reservationID *uuid.UUID, reason string) (*ledgerdomain.Transaction, error)
	CreditTx(ctx context.Context, q database.Querier, userID uuid.UUID, amount decimal.Decimal, kind ledgerdomain.TransactionKind, reservationID *uuid.UUID, reason string) (*ledgerdomain.Transaction, error)
}

// AdapterSource resolves a provider name to its adapter.
type AdapterSource interface {
	Adapter(name string) (provider.Adapter, bool)
}

// Notifier pushes terminal outcomes and inventory alerts to collaborators.
type Notifier interface {
	ReservationTerminal(ctx context.Context, ev domain.TerminalEvent) error
	LowStock(ctx context.Context, ev domain.LowStockEvent) error
}

// ManagerConfig carries the tunables of the reservation lifecycle.
type ManagerConfig struct {
	TTL   time.Duration
	Retry provider.RetryPolicy
}

// Manager owns the reservation state machine: creation with debit and
// number acquisition, code arrival, cancellation, and expiry. Every terminal
// transition is a conditional update guarded on the pending status, so the
// first writer wins any race and the loser's action is a no-op.
//
// Provider calls are never made while holding a database transaction; the
// create flow stages debit, acquisition, vendor rental, and the reservation
// insert as separate commits and unwinds the earlier steps when a later one
// fails.
type Manager struct {
	db           database.Querier
	txm          database.TxManager
	reservations repository.ReservationRepository
	numbers      poolrepo.NumberRepository
	offerings    catalogrepo.OfferingRepository
	userFlags    repository.UserFlagsRepository
	ledger       Ledger
	adapters     AdapterSource
	notifier     Notifier
	cfg          ManagerConfig
	logger       *slog.Logger
	now          func() time.Time
}

func NewManager(
	db database.Querier,
	txm database.TxManager,
	reservations repository.ReservationRepository,
	numbers poolrepo.NumberRepository,
	offerings catalogrepo.OfferingRepository,
	userFlags repository.UserFlagsRepository,
	ledger Ledger,
	adapters AdapterSource,
	notifier Notifier,
	cfg ManagerConfig,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		db:           db,
		txm:          txm,
		reservations: reservations,
		numbers:      numbers,
		offerings:    offerings,
		userFlags:    userFlags,
		ledger:       ledger,
		adapters:     adapters,
		notifier:     notifier,
		cfg:          cfg,
		logger:       logger.With("component", "reservation_manager"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create allocates a number for the user: debit, pool acquisition, vendor
// rental, then the pending reservation row. Any step failing unwinds the
// previous ones, so a failed attempt leaves no debit and no reserved number.
func (m *Manager) Create(ctx context.Context, userID, offeringID uuid.UUID) (*domain.Reservation, error) {
	offering, err := m.offerings.GetByID(ctx, m.db, offeringID)
	if err != nil {
		createFailuresCounter.WithLabelValues("offering").Inc()
		return nil, err
	}
	if !offering.Enabled {
		createFailuresCounter.WithLabelValues("offering").Inc()
		return nil, catalogdomain.ErrOfferingDisabled
	}

	banned, err := m.userFlags.IsBanned(ctx, m.db, userID)
	if err != nil {
		return nil, err
	}
	if banned {
		createFailuresCounter.WithLabelValues("banned").Inc()
		return nil, domain.ErrUserBanned
	}

	adapter, ok := m.adapters.Adapter(offering.Provider)
	if !ok {
		createFailuresCounter.WithLabelValues("offering").Inc()
		return nil, fmt.Errorf("offering %s references unconfigured provider %q", offering.ID, offering.Provider)
	}

	reason := fmt.Sprintf("%s %s via %s", offering.Service, offering.Country, offering.Provider)
	if _, err := m.ledger.Debit(ctx, userID, offering.Price, ledgerdomain.KindPurchase, nil, reason); err != nil {
		if errors.Is(err, ledgerdomain.ErrInsufficientBalance) {
			createFailuresCounter.WithLabelValues("insufficient_balance").Inc()
		}
		return nil, err
	}

	number, err := m.numbers.Acquire(ctx, m.db, offering.ID)
	if err != nil {
		m.refund(ctx, userID, offering.Price, nil, "refund: "+reason)
		if errors.Is(err, pooldomain.ErrNoNumberAvailable) {
			createFailuresCounter.WithLabelValues("no_number").Inc()
		}
		return nil, err
	}

	rented, err := m.requestNumber(ctx, adapter, *offering, number.Phone)
	if err != nil {
		m.releaseNumber(ctx, m.db, number.ID, pooldomain.StateFree)
		m.refund(ctx, userID, offering.Price, nil, "refund: "+reason)
		createFailuresCounter.WithLabelValues("provider_unavailable").Inc()
		return nil, err
	}

	if err := m.numbers.SetProviderRef(ctx, m.db, number.ID, rented.Ref, rented.Phone); err != nil {
		m.cancelOnVendor(ctx, adapter, rented.Ref, number.ID)
		m.releaseNumber(ctx, m.db, number.ID, pooldomain.StateFree)
		m.refund(ctx, userID, offering.Price, nil, "refund: "+reason)
		return nil, fmt.Errorf("record provider ref: %w", err)
	}

	createdAt := m.now()
	res := &domain.Reservation{
		UserID:       userID,
		NumberID:     number.ID,
		OfferingID:   offering.ID,
		Provider:     offering.Provider,
		ProviderMode: m.providerMode(adapter),
		ProviderRef:  rented.Ref,
		Phone:        rented.Phone,
		Price:        offering.Price,
		ExpiresAt:    createdAt.Add(m.cfg.TTL),
	}
	if err := m.reservations.Create(ctx, m.db, res); err != nil {
		m.cancelOnVendor(ctx, adapter, rented.Ref, number.ID)
		m.releaseNumber(ctx, m.db, number.ID, pooldomain.StateFree)
		m.refund(ctx, userID, offering.Price, nil, "refund: "+reason)
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	reservationsCreatedCounter.WithLabelValues(offering.Provider).Inc()
	m.logger.InfoContext(ctx, "reservation created",
		"reservation_id", res.ID, "user_id", userID, "offering_id", offering.ID,
		"phone", res.Phone, "expires_at", res.ExpiresAt)

	m.alertIfOutOfStock(ctx, *offering)
	return res, nil
}

// Get returns the reservation, lazily expiring it when its TTL has elapsed
// so callers never observe a stale pending state.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	res, err := m.reservations.GetByID(ctx, m.db, id)
	if err != nil {
		return nil, err
	}
	if res.Status == domain.StatusPending && !m.now().Before(res.ExpiresAt) {
		if err := m.Expire(ctx, id); err != nil {
			return nil, err
		}
		return m.reservations.GetByID(ctx, m.db, id)
	}
	return res, nil
}

// SubmitText handles raw SMS text for a reservation, from the polling
// scheduler or the webhook receiver. The code is extracted with the
// offering's pattern; text without a code is ignored. Duplicate deliveries
// after the reservation went terminal are benign no-ops.
func (m *Manager) SubmitText(ctx context.Context, reservationID uuid.UUID, text string) error {
	res, err := m.reservations.GetByID(ctx, m.db, reservationID)
	if err != nil {
		return err
	}
	if res.Status.Terminal() {
		m.logger.DebugContext(ctx, "text for terminal reservation ignored", "reservation_id", reservationID)
		return nil
	}

	offering, err := m.offerings.GetByID(ctx, m.db, res.OfferingID)
	if err != nil {
		return err
	}
	code := provider.ExtractCode(text, offering.Pattern())
	if code == "" {
		m.logger.DebugContext(ctx, "no code found in message text", "reservation_id", reservationID)
		return nil
	}
	return m.SubmitCode(ctx, reservationID, code)
}

// SubmitCode commits the pending -> delivered transition and frees the
// number. A code racing the expiry sweep loses if the sweep committed first;
// the code is then discarded and logged, never delivered late.
func (m *Manager) SubmitCode(ctx context.Context, reservationID uuid.UUID, code string) error {
	res, err := m.reservations.GetByID(ctx, m.db, reservationID)
	if err != nil {
		return err
	}

	arrivedAt := m.now()
	var committed bool
	err = m.txm.WithinTx(ctx, func(q database.Querier) error {
		var err error
		committed, err = m.reservations.MarkDelivered(ctx, q, reservationID, code, arrivedAt)
		if err != nil {
			return err
		}
		if !committed {
			return nil
		}
		return m.numbers.Release(ctx, q, res.NumberID, pooldomain.StateFree)
	})
	if err != nil {
		return fmt.Errorf("deliver code: %w", err)
	}

	if !committed {
		discardedCodesCounter.Inc()
		m.logger.InfoContext(ctx, "code discarded: reservation no longer pending or past expiry",
			"reservation_id", reservationID)
		// The reservation may be pending but past its TTL with the sweep
		// not yet caught up; settle it now.
		if res.Status == domain.StatusPending && !arrivedAt.Before(res.ExpiresAt) {
			return m.Expire(ctx, reservationID)
		}
		return nil
	}

	terminalTransitionsCounter.WithLabelValues(string(domain.StatusDelivered)).Inc()
	m.logger.InfoContext(ctx, "code delivered", "reservation_id", reservationID, "user_id", res.UserID)
	m.notifyTerminal(ctx, domain.TerminalEvent{
		ReservationID: reservationID,
		UserID:        res.UserID,
		Status:        domain.StatusDelivered,
		Phone:         res.Phone,
		Code:          code,
		Refunded:      false,
		OccurredAt:    arrivedAt,
	})
	return nil
}

// Cancel commits the user-requested pending -> cancelled transition with the
// refund, then releases the vendor rental best effort.
func (m *Manager) Cancel(ctx context.Context, reservationID, userID uuid.UUID) error {
	res, err := m.reservations.GetByID(ctx, m.db, reservationID)
	if err != nil {
		return err
	}
	if res.UserID != userID {
		return domain.ErrNotOwner
	}
	if res.Status.Terminal() {
		return domain.ErrInvalidTransition
	}
	if !m.now().Before(res.ExpiresAt) {
		// Semantically already expired; settle as expiry, not cancellation.
		if err := m.Expire(ctx, reservationID); err != nil {
			return err
		}
		return domain.ErrInvalidTransition
	}

	committed, err := m.settle(ctx, res, domain.StatusCancelled)
	if err != nil {
		return err
	}
	if !committed {
		return domain.ErrInvalidTransition
	}
	m.vendorRelease(ctx, res)
	return nil
}

// Expire commits the pending -> expired transition with the refund. Safe to
// call concurrently from sweeps and lazy checks; only one caller commits.
func (m *Manager) Expire(ctx context.Context, reservationID uuid.UUID) error {
	res, err := m.reservations.GetByID(ctx, m.db, reservationID)
	if err != nil {
		return err
	}
	if res.Status.Terminal() {
		return nil
	}

	committed, err := m.settle(ctx, res, domain.StatusExpired)
	if err != nil {
		return err
	}
	if committed {
		m.vendorRelease(ctx, res)
	}
	return nil
}

// settle commits a refunding terminal transition (expired or cancelled):
// status change, refund credit, and number release in one transaction.
func (m *Manager) settle(ctx context.Context, res *domain.Reservation, to domain.Status) (bool, error) {
	var committed bool
	err := m.txm.WithinTx(ctx, func(q database.Querier) error {
		var err error
		committed, err = m.reservations.MarkTerminal(ctx, q, res.ID, to)
		if err != nil {
			return err
		}
		if !committed {
			return nil
		}
		resID := res.ID
		if _, err := m.ledger.CreditTx(ctx, q, res.UserID, res.Price, ledgerdomain.KindRefund, &resID, fmt.Sprintf("refund for %s reservation", to)); err != nil {
			return err
		}
		return m.numbers.Release(ctx, q, res.NumberID, pooldomain.StateFree)
	})
	if err != nil {
		return false, fmt.Errorf("settle reservation %s as %s: %w", res.ID, to, err)
	}
	if !committed {
		m.logger.DebugContext(ctx, "terminal transition lost race", "reservation_id", res.ID, "attempted", to)
		return false, nil
	}

	terminalTransitionsCounter.WithLabelValues(string(to)).Inc()
	m.logger.InfoContext(ctx, "reservation settled",
		"reservation_id", res.ID, "user_id", res.UserID, "status", to, "refunded", res.Price.String())
	m.notifyTerminal(ctx, domain.TerminalEvent{
		ReservationID: res.ID,
		UserID:        res.UserID,
		Status:        to,
		Phone:         res.Phone,
		Refunded:      true,
		OccurredAt:    m.now(),
	})
	return true, nil
}

// vendorRelease tells the vendor to drop the rental after a refunding
// terminal transition has committed. Failures are logged, never propagated:
// the local state machine has already moved on. A burned signal retires the
// number from the pool.
func (m *Manager) vendorRelease(ctx context.Context, res *domain.Reservation) {
	adapter, ok := m.adapters.Adapter(res.Provider)
	if !ok {
		m.logger.WarnContext(ctx, "no adapter for vendor release", "provider", res.Provider)
		return
	}
	m.cancelOnVendor(ctx, adapter, res.ProviderRef, res.NumberID)
}

func (m *Manager) cancelOnVendor(ctx context.Context, adapter provider.Adapter, ref string, numberID uuid.UUID) {
	err := provider.Retry(ctx, m.logger, m.cfg.Retry, "cancel", func(ctx context.Context) error {
		return adapter.Cancel(ctx, ref)
	})
	if err == nil {
		return
	}
	if errors.Is(err, provider.ErrNumberBurned) {
		m.logger.WarnContext(ctx, "vendor reports number burned, retiring it",
			"provider", adapter.Name(), "ref", ref, "number_id", numberID)
		if err := m.numbers.MarkExhausted(ctx, m.db, numberID); err != nil {
			m.logger.ErrorContext(ctx, "failed to retire burned number", "number_id", numberID, "error", err)
		}
		return
	}
	m.logger.WarnContext(ctx, "vendor release failed, proceeding locally",
		"provider", adapter.Name(), "ref", ref, "error", err)
}

func (m *Manager) requestNumber(ctx context.Context, adapter provider.Adapter, offering catalogdomain.Offering, phone string) (*provider.Number, error) {
	var rented *provider.Number
	err := provider.Retry(ctx, m.logger, m.cfg.Retry, "request_number", func(ctx context.Context) error {
		var err error
		rented, err = adapter.RequestNumber(ctx, offering, phone)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rented, nil
}

// refund unwinds a debit during a failed create attempt. A refund that
// itself fails would leave the user visibly charged for nothing, so it is
// logged as a consistency emergency.
func (m *Manager) refund(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reservationID *uuid.UUID, reason string) {
	if _, err := m.ledger.Credit(ctx, userID, amount, ledgerdomain.KindRefund, reservationID, reason); err != nil {
		m.logger.ErrorContext(ctx, "REFUND FAILED after aborted reservation attempt",
			"user_id", userID, "amount", amount.String(), "error", err)
	}
}

func (m *Manager) releaseNumber(ctx context.Context, q database.Querier, numberID uuid.UUID, to pooldomain.NumberState) {
	if err := m.numbers.Release(ctx, q, numberID, to); err != nil {
		m.logger.ErrorContext(ctx, "number release failed", "number_id", numberID, "error", err)
	}
}

func (m *Manager) notifyTerminal(ctx context.Context, ev domain.TerminalEvent) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.ReservationTerminal(ctx, ev); err != nil {
		m.logger.WarnContext(ctx, "terminal notification failed",
			"reservation_id", ev.ReservationID, "error", err)
	}
}

func (m *Manager) alertIfOutOfStock(ctx context.Context, offering catalogdomain.Offering) {
	free, err := m.numbers.CountFree(ctx, m.db, offering.ID)
	if err != nil {
		m.logger.WarnContext(ctx, "free-number count failed", "offering_id", offering.ID, "error", err)
		return
	}
	if free > 0 || m.notifier == nil {
		return
	}
	ev := domain.LowStockEvent{
		OfferingID: offering.ID,
		Service:    offering.Service,
		Country:    offering.Country,
		Provider:   offering.Provider,
		OccurredAt: m.now(),
	}
	if err := m.notifier.LowStock(ctx, ev); err != nil {
		m.logger.WarnContext(ctx, "low-stock alert failed", "offering_id", offering.ID, "error", err)
	}
}

func (m *Manager) providerMode(adapter provider.Adapter) domain.ProviderMode {
	if _, ok := adapter.(provider.PollingAdapter); ok {
		return domain.ModePoll
	}
	return domain.ModeWebhook
}
