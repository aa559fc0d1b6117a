package postgres

import (
	"context"

	"github.com/paratel/numlease/internal/platform/database"
	"github.com/paratel/numlease/internal/reservation/repository"
)

type pgWebhookEventRepository struct{}

// NewPgWebhookEventRepository creates the PostgreSQL WebhookEventRepository.
func NewPgWebhookEventRepository() repository.WebhookEventRepository {
	return &pgWebhookEventRepository{}
}

// Record inserts the vendor event id; a conflict means the delivery is a
// duplicate and must be acknowledged without reprocessing.
func (r *pgWebhookEventRepository) Record(ctx context.Context, q database.Querier, providerName, eventID string, payload []byte) (bool, error) {
	query := `
		INSERT INTO webhook_events (provider, event_id, payload, received_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (provider, event_id) DO NOTHING
	`
	tag, err := q.Exec(ctx, query, providerName, eventID, payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
