package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/paratel/numlease/internal/platform/messagebroker"
	"github.com/paratel/numlease/internal/reservation/domain"
)

const (
	SubjectReservationTerminal = "reservations.terminal"
	SubjectInventoryLowStock   = "inventory.low_stock"
)

// NATSPublisher pushes reservation outcomes and inventory alerts to the
// front-end and admin collaborators over NATS.
type NATSPublisher struct {
	client *messagebroker.NATSClient
	logger *slog.Logger
}

func NewNATSPublisher(client *messagebroker.NATSClient, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{
		client: client,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *NATSPublisher) ReservationTerminal(ctx context.Context, ev domain.TerminalEvent) error {
	return p.publish(ctx, SubjectReservationTerminal, ev)
}

func (p *NATSPublisher) LowStock(ctx context.Context, ev domain.LowStockEvent) error {
	return p.publish(ctx, SubjectInventoryLowStock, ev)
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, ev any) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}
	if err := p.client.Publish(ctx, subject, data); err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "event published", "subject", subject)
	return nil
}
