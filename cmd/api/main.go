package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/lib/pq" // postgres driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nyashahama/community-donor-backend/internal/api"
	"github.com/nyashahama/community-donor-backend/internal/asset"
	"github.com/nyashahama/community-donor-backend/internal/config"
	"github.com/nyashahama/community-donor-backend/internal/db"
	"github.com/nyashahama/community-donor-backend/internal/dispatch"
	"github.com/nyashahama/community-donor-backend/internal/lifecycle"
	"github.com/nyashahama/community-donor-backend/internal/metrics"
	"github.com/nyashahama/community-donor-backend/internal/receipt"
	"github.com/nyashahama/community-donor-backend/internal/store"
	stripeinternal "github.com/nyashahama/community-donor-backend/internal/stripe"
	"github.com/nyashahama/community-donor-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// Root context cancelled by OS signal. Worker and servers all respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded",
		"env", cfg.Env,
		"port", cfg.Port,
		"asset_store", cfg.AssetStore,
		"email_transport", cfg.EmailTransport,
	)

	// ── Database ──────────────────────────────────────────────────────────────
	pool, err := openDB(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	if cfg.MigrateOnStart {
		if err := db.Migrate(pool); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	st := store.New(pool, db.New(pool))
	statuses := st.Dispatches(cfg.StaleAfter)

	// ── Metrics ───────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ── Receipt pipeline ──────────────────────────────────────────────────────
	composer := receipt.NewComposer(receipt.Organization{
		Name:           cfg.OrgName,
		Address:        cfg.OrgAddress,
		Contact:        cfg.OrgContact,
		RegistrationNo: cfg.OrgRegistrationNo,
		TaxExemptionNo: cfg.OrgTaxExemptionNo,
		PAN:            cfg.OrgPAN,
		FilePrefix:     cfg.OrgReceiptPrefix,
	}, nil)

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	sender := newSender(cfg, logger)
	events := newEvents(cfg, logger)
	defer func() {
		if err := events.Close(); err != nil {
			logger.Warn("events: close", "error", err)
		}
	}()

	dispatcher := dispatch.New(dispatch.Deps{
		Composer:  composer,
		Publisher: publisher,
		Sender:    sender,
		Store:     statuses,
		Archive:   asset.Archive{Dir: cfg.ReceiptArchiveDir},
		Metrics:   m,
		Events:    events,
	}, dispatch.Config{
		FromName:       cfg.EmailFromName,
		PublishTimeout: cfg.PublishTimeout,
		EmailTimeout:   cfg.EmailTimeout,
	}, logger)

	// ── Worker ────────────────────────────────────────────────────────────────
	runner := worker.NewRunner(dispatcher, st, worker.RunnerConfig{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		StaleAfter:   cfg.StaleAfter,
	}, logger)

	// ── Lifecycle + HTTP ──────────────────────────────────────────────────────
	svc := lifecycle.New(st, runner, statuses, m, lifecycle.Config{}, logger)

	handler := api.NewServer(api.Deps{
		Lifecycle: svc,
		Composer:  composer,
		Stripe:    stripeinternal.NewVerifier(cfg.StripeWebhookSecret),
		Observer:  m,
		DB:        pool,
	}, api.Config{
		Env:               cfg.Env,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		AdminJWTSecret:    cfg.AdminJWTSecret,
	}, logger)

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// ── gRPC health (same port) ───────────────────────────────────────────────
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	mux := cmux.New(lis)
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	// ── Start ─────────────────────────────────────────────────────────────────
	runnerDone := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(runnerDone)
	}()

	serverErr := make(chan error, 3)
	go func() {
		if err := grpcSrv.Serve(grpcL); err != nil && !benignServeErr(err) {
			serverErr <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		if err := srv.Serve(httpL); err != nil && !benignServeErr(err) {
			serverErr <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		logger.Info("server listening", "addr", lis.Addr().String())
		if err := mux.Serve(); err != nil && !benignServeErr(err) {
			serverErr <- fmt.Errorf("cmux: %w", err)
		}
	}()

	// Block until either a signal arrives or a server dies unexpectedly.
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serverErr:
		stop()
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	healthSrv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcSrv.GracefulStop()
	mux.Close()

	// Workers stop taking jobs on the signal but finish the run in hand, each
	// bounded by JobTimeout. Anything still pending past this is taken over
	// after STALE_AFTER by the next process.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.JobTimeout)
	defer cancelDrain()
	select {
	case <-runnerDone:
	case <-drainCtx.Done():
		logger.Warn("worker did not drain before deadline", "timeout", cfg.JobTimeout)
	}

	logger.Info("shutdown complete")
	return runErr
}

// openDB opens the connection pool and waits for the database with
// exponential backoff, so the service survives starting before Postgres.
func openDB(ctx context.Context, dsn string, logger *slog.Logger) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ping := func() (struct{}, error) {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err := pool.PingContext(pctx)
		if err != nil {
			logger.Warn("database not ready", "error", err)
		}
		return struct{}{}, err
	}
	if _, err := backoff.Retry(ctx, ping,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(time.Minute),
	); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}

func benignServeErr(err error) bool {
	return errors.Is(err, http.ErrServerClosed) ||
		errors.Is(err, grpc.ErrServerStopped) ||
		errors.Is(err, cmux.ErrListenerClosed) ||
		errors.Is(err, cmux.ErrServerClosed) ||
		errors.Is(err, net.ErrClosed)
}
