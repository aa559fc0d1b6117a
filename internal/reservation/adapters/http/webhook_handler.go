package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/paratel/numlease/internal/reservation/app"
)

// maxWebhookBody bounds incoming webhook payloads. Vendor notifications are
// a few hundred bytes; anything larger is abuse.
const maxWebhookBody = 64 * 1024

// WebhookHandler receives code-delivery notifications from push-mode vendors.
type WebhookHandler struct {
	service *app.WebhookService
	logger  *slog.Logger
}

func NewWebhookHandler(service *app.WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger.With("handler", "webhook"),
	}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/{provider}", h.handleDeliver)
}

func (h *WebhookHandler) handleDeliver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	providerName := chi.URLParam(r, "provider")
	token := r.Header.Get("X-Webhook-Token")
	signature := r.Header.Get("X-Webhook-Signature")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.jsonError(w, logger, "payload too large or unreadable", http.StatusBadRequest)
		return
	}

	err = h.service.Process(ctx, providerName, token, signature, body)
	switch {
	case err == nil:
		// Vendors retry on anything but 2xx. Unknown rentals and duplicates
		// are acknowledged inside Process, so a plain 200 here is final.
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, app.ErrUnknownWebhookProvider):
		h.jsonError(w, logger, "unknown provider", http.StatusNotFound)
	case errors.Is(err, app.ErrWebhookUnauthorized):
		logger.WarnContext(ctx, "webhook rejected", "provider", providerName)
		h.jsonError(w, logger, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, app.ErrBadWebhookPayload):
		h.jsonError(w, logger, "malformed payload", http.StatusBadRequest)
	default:
		logger.ErrorContext(ctx, "webhook processing failed", "provider", providerName, "error", err)
		h.jsonError(w, logger, "internal error", http.StatusInternalServerError)
	}
}

func (h *WebhookHandler) jsonError(w http.ResponseWriter, logger *slog.Logger, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(`{"error":"` + message + `"}`)); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}
