package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/gstdocai/backend/internal/auth"
	"github.com/gstdocai/backend/internal/config"
	"github.com/gstdocai/backend/internal/dashboard"
	"github.com/gstdocai/backend/internal/database"
	"github.com/gstdocai/backend/internal/execution"
	"github.com/gstdocai/backend/internal/handlers"
	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/observability"
	"github.com/gstdocai/backend/internal/payments"
	"github.com/gstdocai/backend/internal/provider"
	"github.com/gstdocai/backend/internal/repository"
	"github.com/gstdocai/backend/internal/router"
	"github.com/gstdocai/backend/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
		return err
	}
	slog.Info("Schema migrations applied")

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. docker compose up -d", "error", err)
		return err
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL database successfully!")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return err
	}
	slog.Info("River migrations applied")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// Repositories
	ledgerRepo := ledger.NewRepository(pool)
	accountRepo := repository.NewAccountRepo(pool)
	letterRepo := repository.NewLetterRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)

	// Metering and upgrades
	meter := services.NewCreditMeter(ledgerRepo, logger, metrics)
	applier := services.NewUpgradeApplier(pool, ledgerRepo, paymentRepo, logger, metrics)

	// Workers: upgrades are applied off the request path, idle balances swept periodically.
	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewApplyUpgradeWorker(applier, logger))
	river.AddWorker(workers, execution.NewResetSweepWorker(ledgerRepo, meter, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.WorkerConcurrency},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{execution.ResetSweepPeriodicJob(cfg.ResetSweepInterval)},
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	enqueueUpgrade := func(ctx context.Context, tx pgx.Tx, args execution.ApplyUpgradeArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}

	// Generation
	validator, err := services.NewValidator()
	if err != nil {
		return err
	}
	if cfg.ProviderAPIKey == "" {
		slog.Warn("PROVIDER_API_KEY is not set; generation requests will fail")
	}
	gateway := &services.GenerationGateway{
		Meter:           meter,
		Pool:            pool,
		Letters:         letterRepo,
		Provider:        provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderModel, cfg.ProviderTimeout),
		Validator:       validator,
		ProviderTimeout: cfg.ProviderTimeout,
		Logger:          logger,
		Metrics:         metrics,
	}

	// Auth, dashboard, payments
	authSvc := auth.NewService(accountRepo, cfg.JWTSecret)
	if cfg.PaymentMockMode {
		slog.Warn("Payment mock mode is enabled; signatures are not verified")
	}
	paymentSvc := payments.NewService(paymentRepo, enqueueUpgrade, cfg.PaymentKeySecret, cfg.PaymentMockMode, logger, metrics)

	api := router.New(router.Deps{
		Auth:      auth.NewHandler(authSvc, logger),
		Dashboard: dashboard.NewHandler(accountRepo, meter, logger),
		Letters: &handlers.LetterHandler{
			Gateway: gateway,
			Letters: letterRepo,
			Logger:  logger,
		},
		Payments:       payments.NewHandler(paymentSvc, logger),
		Tokens:         authSvc,
		Metrics:        metrics,
		MetricsHandler: observability.Handler(registry),
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(api)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
		// Generation waits on the provider, so writes get the provider budget plus headroom.
		WriteTimeout: cfg.ProviderTimeout + 30*time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := riverClient.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return riverClient.Stop(stopCtx)
	})
	g.Go(func() error {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
