package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/paratel/numlease/internal/platform/database"
	"github.com/paratel/numlease/internal/reservation/repository"
)

// SweeperConfig tunes the expiry sweep loop.
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// ExpirySweeper proactively settles reservations whose TTL elapsed with no
// code, so expiry happens even when nothing else touches the reservation.
// Expiry is computed from the persisted expires_at, so a sweep after a
// process restart settles everything that timed out while the service was
// down. The manager's conditional transition makes concurrent sweepers and
// racing code arrivals safe: only one terminal transition ever commits.
type ExpirySweeper struct {
	db           database.Querier
	reservations repository.ReservationRepository
	manager      Manager
	cfg          SweeperConfig
	logger       *slog.Logger
}

func NewExpirySweeper(
	db database.Querier,
	reservations repository.ReservationRepository,
	manager Manager,
	cfg SweeperConfig,
	logger *slog.Logger,
) *ExpirySweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &ExpirySweeper{
		db:           db,
		reservations: reservations,
		manager:      manager,
		cfg:          cfg,
		logger:       logger.With("component", "expiry_sweeper"),
	}
}

// Run sweeps once immediately, then on every interval until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "expiry sweeper started", "interval", s.cfg.Interval.String())
	if err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "initial sweep failed", "error", err)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "expiry sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// Sweep settles one batch of timed-out reservations.
func (s *ExpirySweeper) Sweep(ctx context.Context) error {
	expired, err := s.reservations.ListExpired(ctx, s.db, time.Now().UTC(), s.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, res := range expired {
		if err := s.manager.Expire(ctx, res.ID); err != nil {
			s.logger.ErrorContext(ctx, "expiring reservation failed",
				"reservation_id", res.ID, "error", err)
			continue
		}
		sweepExpiredCounter.Inc()
	}
	if len(expired) > 0 {
		s.logger.InfoContext(ctx, "sweep settled expired reservations", "count", len(expired))
	}
	return nil
}
