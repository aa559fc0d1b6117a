package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	catalogpg "github.com/paratel/numlease/internal/catalog/repository/postgres"
	ledgerapp "github.com/paratel/numlease/internal/ledger/app"
	ledgerpg "github.com/paratel/numlease/internal/ledger/repository/postgres"
	poolpg "github.com/paratel/numlease/internal/numberpool/repository/postgres"
	"github.com/paratel/numlease/internal/platform/config"
	"github.com/paratel/numlease/internal/platform/database"
	"github.com/paratel/numlease/internal/platform/logger"
	"github.com/paratel/numlease/internal/platform/messagebroker"
	"github.com/paratel/numlease/internal/provider"
	"github.com/paratel/numlease/internal/reservation/adapters/events"
	resvhttp "github.com/paratel/numlease/internal/reservation/adapters/http"
	"github.com/paratel/numlease/internal/reservation/app"
	resvpg "github.com/paratel/numlease/internal/reservation/repository/postgres"
	schedulerapp "github.com/paratel/numlease/internal/scheduler/app"
)

const (
	serviceName     = "numleased"
	shutdownTimeout = 15 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	// Bootstrap logger for the config loader; replaced once LOG_LEVEL is known.
	bootLogger := logger.New("info", "json")

	cfg, err := config.Load(bootLogger)
	if err != nil {
		bootLogger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat).With("service", serviceName)

	appLogger.Info("Service starting",
		"http_port", cfg.HTTPPort,
		"metrics_port", cfg.MetricsPort,
		"reservation_ttl", cfg.ReservationTTL.String(),
		"providers", len(cfg.Providers),
	)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Connected to NATS")

	providerHTTPClient := &http.Client{Timeout: cfg.ProviderTimeout}
	registry, err := provider.NewRegistry(cfg, providerHTTPClient, appLogger)
	if err != nil {
		appLogger.Error("Failed to build provider registry", "error", err)
		os.Exit(1)
	}

	txManager := database.NewPgxTxManager(dbPool)
	transactionRepo := ledgerpg.NewPgTransactionRepository()
	userBalanceRepo := ledgerpg.NewPgUserBalanceRepository()
	numberRepo := poolpg.NewPgNumberRepository()
	offeringRepo := catalogpg.NewPgOfferingRepository()
	reservationRepo := resvpg.NewPgReservationRepository()
	userFlagsRepo := resvpg.NewPgUserFlagsRepository()
	webhookEventRepo := resvpg.NewPgWebhookEventRepository()

	ledgerService := ledgerapp.NewLedgerService(txManager, transactionRepo, userBalanceRepo, appLogger)
	publisher := events.NewNATSPublisher(natsClient, appLogger)

	retryPolicy := provider.RetryPolicy{
		Attempts:    cfg.ProviderAttempts,
		BackoffBase: cfg.BackoffBase,
		BackoffCap:  cfg.BackoffCap,
	}
	manager := app.NewManager(
		dbPool,
		txManager,
		reservationRepo,
		numberRepo,
		offeringRepo,
		userFlagsRepo,
		ledgerService,
		registry,
		publisher,
		app.ManagerConfig{TTL: cfg.ReservationTTL, Retry: retryPolicy},
		appLogger,
	)
	webhookService := app.NewWebhookService(dbPool, cfg, reservationRepo, webhookEventRepo, manager, appLogger)

	poller := schedulerapp.NewCodePoller(
		dbPool,
		reservationRepo,
		registry,
		manager,
		schedulerapp.PollerConfig{
			Interval:   cfg.PollInterval,
			ClaimLease: cfg.PollClaimLease,
			Retry:      retryPolicy,
		},
		appLogger,
	)
	sweeper := schedulerapp.NewExpirySweeper(
		dbPool,
		reservationRepo,
		manager,
		schedulerapp.SweeperConfig{
			Interval:  cfg.SweepInterval,
			BatchSize: cfg.SweepBatchSize,
		},
		appLogger,
	)

	reservationHandler := resvhttp.NewReservationHandler(manager, ledgerService, offeringRepo, dbPool, appLogger)
	webhookHandler := resvhttp.NewWebhookHandler(webhookService, appLogger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(resvhttp.RequestLogger(appLogger))
	r.Use(resvhttp.PrometheusMetricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := dbPool.Ping(req.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	reservationHandler.RegisterRoutes(r)
	webhookHandler.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server ListenAndServe error", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		appLogger.Info("Metrics server starting", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics server ListenAndServe error", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		return poller.Run(groupCtx)
	})
	g.Go(func() error {
		return sweeper.Run(groupCtx)
	})

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)

	g.Go(func() error {
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
			return nil
		case <-groupCtx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		var shutdownErrs error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrs = errors.Join(shutdownErrs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrs = errors.Join(shutdownErrs, fmt.Errorf("metrics shutdown: %w", err))
		}
		return shutdownErrs
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Service stopped")
}
