package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/paratel/numlease/internal/platform/database"
	"github.com/paratel/numlease/internal/provider"
	"github.com/paratel/numlease/internal/reservation/domain"
	"github.com/paratel/numlease/internal/reservation/repository"
)

// Manager is the subset of the reservation manager the scheduler needs.
type Manager interface {
	SubmitText(ctx context.Context, reservationID uuid.UUID, text string) error
	Expire(ctx context.Context, reservationID uuid.UUID) error
}

// PollerConfig tunes the code-polling loop.
type PollerConfig struct {
	Interval    time.Duration
	ClaimLease  time.Duration
	BatchSize   int
	Concurrency int
	Retry       provider.RetryPolicy
}

// PollingSource resolves poll-mode vendors.
type PollingSource interface {
	PollingAdapter(name string) (provider.PollingAdapter, bool)
}

// CodePoller periodically asks poll-mode vendors whether a code arrived for
// each pending reservation. The due set is read fresh from the store each
// cycle and leased per reservation, so multiple poller instances partition
// the work instead of double-polling. One reservation's vendor failure never
// blocks the others.
type CodePoller struct {
	db           database.Querier
	reservations repository.ReservationRepository
	adapters     PollingSource
	manager      Manager
	cfg          PollerConfig
	logger       *slog.Logger
}

func NewCodePoller(
	db database.Querier,
	reservations repository.ReservationRepository,
	adapters PollingSource,
	manager Manager,
	cfg PollerConfig,
	logger *slog.Logger,
) *CodePoller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &CodePoller{
		db:           db,
		reservations: reservations,
		adapters:     adapters,
		manager:      manager,
		cfg:          cfg,
		logger:       logger.With("component", "code_poller"),
	}
}

// Run ticks until ctx is cancelled.
func (p *CodePoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.InfoContext(ctx, "code poller started", "interval", p.cfg.Interval.String())
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "code poller stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil && ctx.Err() == nil {
				p.logger.ErrorContext(ctx, "poll cycle failed", "error", err)
			}
		}
	}
}

// Tick claims due reservations and checks each vendor concurrently.
func (p *CodePoller) Tick(ctx context.Context) error {
	timer := prometheus.NewTimer(pollCycleDurationHist)
	defer timer.ObserveDuration()
	defer pollCyclesCounter.Inc()

	claimed, err := p.reservations.ClaimPollable(ctx, p.db, time.Now().UTC(), p.cfg.ClaimLease, p.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(claimed) == 0 {
		return nil
	}
	p.logger.DebugContext(ctx, "claimed reservations for polling", "count", len(claimed))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, res := range claimed {
		res := res
		g.Go(func() error {
			p.checkOne(gctx, res)
			return nil
		})
	}
	return g.Wait()
}

func (p *CodePoller) checkOne(ctx context.Context, res domain.Reservation) {
	adapter, ok := p.adapters.PollingAdapter(res.Provider)
	if !ok {
		p.logger.WarnContext(ctx, "claimed reservation has no polling adapter",
			"reservation_id", res.ID, "provider", res.Provider)
		return
	}

	var text string
	err := provider.Retry(ctx, p.logger, p.cfg.Retry, "check_code", func(ctx context.Context) error {
		var err error
		text, err = adapter.CheckCode(ctx, res.ProviderRef)
		return err
	})
	if err != nil {
		pollChecksCounter.WithLabelValues("error").Inc()
		p.logger.WarnContext(ctx, "code check failed, will retry next cycle",
			"reservation_id", res.ID, "provider", res.Provider, "error", err)
		return
	}
	if text == "" {
		pollChecksCounter.WithLabelValues("empty").Inc()
		return
	}

	pollChecksCounter.WithLabelValues("code").Inc()
	if err := p.manager.SubmitText(ctx, res.ID, text); err != nil {
		p.logger.ErrorContext(ctx, "submitting polled text failed",
			"reservation_id", res.ID, "error", err)
	}
}
