package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	catalogdomain "github.com/paratel/numlease/internal/catalog/domain"
	catalogrepo "github.com/paratel/numlease/internal/catalog/repository"
	ledgerapp "github.com/paratel/numlease/internal/ledger/app"
	ledgerdomain "github.com/paratel/numlease/internal/ledger/domain"
	pooldomain "github.com/paratel/numlease/internal/numberpool/domain"
	"github.com/paratel/numlease/internal/platform/database"
	"github.com/paratel/numlease/internal/provider"
	"github.com/paratel/numlease/internal/reservation/app"
	"github.com/paratel/numlease/internal/reservation/domain"
)

// ReservationHandler exposes the reservation lifecycle and the ledger entry
// points to the front-end collaborator.
type ReservationHandler struct {
	manager   *app.Manager
	ledger    *ledgerapp.LedgerService
	offerings catalogrepo.OfferingRepository
	db        database.Querier
	logger    *slog.Logger
}

func NewReservationHandler(manager *app.Manager, ledger *ledgerapp.LedgerService, offerings catalogrepo.OfferingRepository, db database.Querier, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{
		manager:   manager,
		ledger:    ledger,
		offerings: offerings,
		db:        db,
		logger:    logger.With("handler", "reservation"),
	}
}

// RegisterRoutes registers the collaborator API with the router.
func (h *ReservationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/offerings", h.handleListOfferings)
	r.Post("/reservations", h.handleCreate)
	r.Get("/reservations/{reservationID}", h.handleGet)
	r.Delete("/reservations/{reservationID}", h.handleCancel)
	r.Get("/users/{userID}/balance", h.handleBalance)
	r.Get("/users/{userID}/transactions", h.handleTransactions)
	r.Post("/users/{userID}/credits", h.handleCredit)
}

func (h *ReservationHandler) handleListOfferings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	offs, err := h.offerings.ListEnabled(ctx, h.db)
	if err != nil {
		logger.ErrorContext(ctx, "offering listing failed", "error", err)
		h.jsonError(w, logger, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]OfferingResponse, 0, len(offs))
	for _, off := range offs {
		out = append(out, toOfferingResponse(off))
	}
	h.respondJSON(w, logger, http.StatusOK, out)
}

func (h *ReservationHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, logger, "invalid request payload", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.jsonError(w, logger, "invalid user_id", http.StatusBadRequest)
		return
	}
	offeringID, err := uuid.Parse(req.OfferingID)
	if err != nil {
		h.jsonError(w, logger, "invalid offering_id", http.StatusBadRequest)
		return
	}

	res, err := h.manager.Create(ctx, userID, offeringID)
	if err != nil {
		switch {
		case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
			h.jsonError(w, logger, "insufficient balance", http.StatusPaymentRequired)
		case errors.Is(err, pooldomain.ErrNoNumberAvailable):
			h.jsonError(w, logger, "no number available for this offering", http.StatusConflict)
		case errors.Is(err, provider.ErrUnavailable):
			h.jsonError(w, logger, "provider temporarily unavailable, try again", http.StatusServiceUnavailable)
		case errors.Is(err, catalogdomain.ErrOfferingNotFound), errors.Is(err, catalogdomain.ErrOfferingDisabled):
			h.jsonError(w, logger, "offering not available", http.StatusNotFound)
		case errors.Is(err, domain.ErrUserBanned):
			h.jsonError(w, logger, "user is banned", http.StatusForbidden)
		case errors.Is(err, ledgerdomain.ErrUserNotFound):
			h.jsonError(w, logger, "user not found", http.StatusNotFound)
		default:
			logger.ErrorContext(ctx, "reservation create failed", "error", err)
			h.jsonError(w, logger, "internal error", http.StatusInternalServerError)
		}
		return
	}

	h.respondJSON(w, logger, http.StatusCreated, toReservationResponse(res))
}

func (h *ReservationHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		h.jsonError(w, logger, "invalid reservation id", http.StatusBadRequest)
		return
	}

	res, err := h.manager.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			h.jsonError(w, logger, "reservation not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "reservation lookup failed", "error", err)
		h.jsonError(w, logger, "internal error", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, logger, http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		h.jsonError(w, logger, "invalid reservation id", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		h.jsonError(w, logger, "user_id query parameter required", http.StatusBadRequest)
		return
	}

	err = h.manager.Cancel(ctx, id, userID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrReservationNotFound):
		h.jsonError(w, logger, "reservation not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrNotOwner):
		h.jsonError(w, logger, "reservation belongs to another user", http.StatusForbidden)
	case errors.Is(err, domain.ErrInvalidTransition):
		h.jsonError(w, logger, "reservation already settled", http.StatusConflict)
	default:
		logger.ErrorContext(ctx, "reservation cancel failed", "error", err)
		h.jsonError(w, logger, "internal error", http.StatusInternalServerError)
	}
}

func (h *ReservationHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.jsonError(w, logger, "invalid user id", http.StatusBadRequest)
		return
	}

	balance, err := h.ledger.BalanceOf(ctx, h.db, userID)
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrUserNotFound) {
			h.jsonError(w, logger, "user not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "balance lookup failed", "error", err)
		h.jsonError(w, logger, "internal error", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, logger, http.StatusOK, BalanceResponse{UserID: userID.String(), Balance: balance})
}

func (h *ReservationHandler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.jsonError(w, logger, "invalid user id", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txns, err := h.ledger.UserTransactions(ctx, h.db, userID, limit, offset)
	if err != nil {
		logger.ErrorContext(ctx, "transaction listing failed", "error", err)
		h.jsonError(w, logger, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, toTransactionResponse(txn))
	}
	h.respondJSON(w, logger, http.StatusOK, out)
}

// handleCredit is the single entry point for collaborators that add funds:
// top-ups, channel rewards, and admin adjustments.
func (h *ReservationHandler) handleCredit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.jsonError(w, logger, "invalid user id", http.StatusBadRequest)
		return
	}

	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, logger, "invalid request payload", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		h.jsonError(w, logger, "amount must be a positive decimal", http.StatusBadRequest)
		return
	}

	kind := ledgerdomain.TransactionKind(req.Kind)
	switch kind {
	case ledgerdomain.KindTopUp, ledgerdomain.KindReward, ledgerdomain.KindAdminAdjustment:
	default:
		h.jsonError(w, logger, "kind must be topup, reward, or admin_adjustment", http.StatusBadRequest)
		return
	}

	txn, err := h.ledger.Credit(ctx, userID, amount, kind, nil, req.Reason)
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrUserNotFound) {
			h.jsonError(w, logger, "user not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "credit failed", "error", err)
		h.jsonError(w, logger, "internal error", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, logger, http.StatusCreated, toTransactionResponse(*txn))
}

func (h *ReservationHandler) respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

func (h *ReservationHandler) jsonError(w http.ResponseWriter, logger *slog.Logger, message string, status int) {
	h.respondJSON(w, logger, status, map[string]string{"error": message})
}
