package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paratel/numlease/internal/platform/config"
	"github.com/paratel/numlease/internal/platform/database"
	"github.com/paratel/numlease/internal/reservation/domain"
	"github.com/paratel/numlease/internal/reservation/repository"
)

var (
	ErrWebhookUnauthorized    = errors.New("webhook authentication failed")
	ErrUnknownWebhookProvider = errors.New("unknown webhook provider")
	ErrBadWebhookPayload      = errors.New("malformed webhook payload")
)

// WebhookPayload is the normalized inbound notification shape. Vendors map
// their own schemas onto it; the core only needs these fields.
type WebhookPayload struct {
	EventID  string `json:"event_id"`
	RentalID string `json:"rental_id"`
	Phone    string `json:"phone"`
	Text     string `json:"text"`
}

// WebhookService authenticates inbound vendor notifications, deduplicates
// them, resolves the reservation, and feeds the code-arrival transition.
type WebhookService struct {
	db           database.Querier
	cfg          *config.Config
	reservations repository.ReservationRepository
	events       repository.WebhookEventRepository
	manager      *Manager
	logger       *slog.Logger
}

func NewWebhookService(
	db database.Querier,
	cfg *config.Config,
	reservations repository.ReservationRepository,
	events repository.WebhookEventRepository,
	manager *Manager,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		db:           db,
		cfg:          cfg,
		reservations: reservations,
		events:       events,
		manager:      manager,
		logger:       logger.With("component", "webhook_service"),
	}
}

// Process handles one inbound notification. token and signature are the raw
// header values; which one is checked depends on the provider's configured
// security mode. Duplicate deliveries return nil so the vendor gets a 2xx
// and stops retrying.
func (s *WebhookService) Process(ctx context.Context, providerName, token, signature string, rawPayload []byte) error {
	pc, ok := s.cfg.ProviderByName(providerName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWebhookProvider, providerName)
	}
	if err := s.authenticate(pc, token, signature, rawPayload); err != nil {
		return err
	}

	var payload WebhookPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrBadWebhookPayload, err)
	}
	if payload.RentalID == "" {
		return fmt.Errorf("%w: missing rental_id", ErrBadWebhookPayload)
	}

	if payload.EventID != "" {
		fresh, err := s.events.Record(ctx, s.db, providerName, payload.EventID, rawPayload)
		if err != nil {
			return fmt.Errorf("record webhook event: %w", err)
		}
		if !fresh {
			s.logger.InfoContext(ctx, "duplicate webhook delivery acknowledged",
				"provider", providerName, "event_id", payload.EventID)
			return nil
		}
	}

	res, err := s.reservations.FindPendingByProviderRef(ctx, s.db, providerName, payload.RentalID)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			// Late delivery for a settled reservation, or a rental this
			// system never created. Both are acknowledged and dropped.
			s.logger.InfoContext(ctx, "webhook for unknown or settled rental ignored",
				"provider", providerName, "rental_id", payload.RentalID)
			return nil
		}
		return err
	}

	return s.manager.SubmitText(ctx, res.ID, payload.Text)
}

func (s *WebhookService) authenticate(pc config.ProviderConfig, token, signature string, rawPayload []byte) error {
	if pc.WebhookSecret == "" {
		// Providers without a configured secret accept unauthenticated
		// notifications; only safe on trusted networks.
		return nil
	}
	switch pc.SecurityMode {
	case "hmac":
		mac := hmac.New(sha256.New, []byte(pc.WebhookSecret))
		mac.Write(rawPayload)
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(expected), []byte(signature)) {
			return ErrWebhookUnauthorized
		}
	default: // shared token
		if subtle.ConstantTimeCompare([]byte(pc.WebhookSecret), []byte(token)) != 1 {
			return ErrWebhookUnauthorized
		}
	}
	return nil
}
