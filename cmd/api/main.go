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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/auction"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/auth"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/config"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/execution"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/ledger"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/metrics"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/notify"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/payment"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/reminder"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/repository"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/scheduler"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/services"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/verify"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	if err := migrations.Apply(ctx, pool); err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied")

	m := metrics.New()

	// Scheduler: River is attached once the workers (which need the services) exist.
	sched := scheduler.NewRiver(repository.NewScheduleRepo(pool), logger)

	validator, err := services.NewValidator()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	verifier := buildVerifier(cfg, m, logger)

	notifier, closeNotifier := buildNotifier(ctx, cfg, logger)
	defer closeNotifier()

	ledgerSvc := ledger.NewService(pool,
		ledger.NewEscrowRepository(pool),
		ledger.NewPaymentRepository(pool),
		verifier,
		sched,
		ledger.Config{
			AutoReleaseAfter:      cfg.AutoReleaseAfter,
			PaymentWindow:         cfg.PaymentWindow,
			PaymentReminderBefore: cfg.PaymentReminderBefore,
		},
		ledger.WithNotifier(notifier),
		ledger.WithValidator(validator),
		ledger.WithMetrics(m),
		ledger.WithLogger(logger),
	)

	engine := auction.NewEngine(pool,
		repository.NewListingRepo(pool),
		repository.NewBidRepo(pool),
		ledgerSvc,
		sched,
		payment.NewClient(cfg.PaymentProcessorURL, cfg.PaymentProcessorAPIKey, 30*time.Second),
		auction.WithNotifier(notifier),
		auction.WithMetrics(m),
		auction.WithLogger(logger),
		auction.WithEscrowAddresses(map[models.Chain]string{
			models.ChainSolana:  cfg.SolanaEscrowAddress,
			models.ChainXRPL:    cfg.XRPLEscrowAddress,
			models.ChainXRPLEVM: cfg.XRPLEVMEscrowAddress,
		}),
	)

	workers := river.NewWorkers()
	execution.Register(workers, ledgerSvc, engine, m, logger)

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.RiverMaxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}
	sched.Attach(riverClient)

	if n, err := ledgerSvc.RecoverAutoReleases(ctx); err != nil {
		slog.Error("Auto-release recovery failed", "error", err)
	} else if n > 0 {
		slog.Info("Re-registered auto-releases", "count", n)
	}

	if err := riverClient.Start(ctx); err != nil {
		slog.Error("Failed to start River client", "error", err)
		os.Exit(1)
	}

	reminders := reminder.NewScheduler(ledgerSvc, cfg.WalletReminderSchedule, logger)
	if err := reminders.Start(); err != nil {
		slog.Error("Failed to start wallet reminder schedule", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           newHTTPHandler(cfg, ledgerSvc, engine, auth.NewService(cfg.JWTSecret), m, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	<-reminders.Stop().Done()
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River client stop", "error", err)
	}
}

// buildVerifier registers an adapter for every chain with a configured escrow
// address. Funding on an unregistered chain fails verification.
func buildVerifier(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *verify.Registry {
	var adapters []verify.Adapter
	if cfg.SolanaEscrowAddress != "" {
		adapters = append(adapters, verify.NewSolana(verify.SolanaConfig{
			RPCURL:        cfg.SolanaRPCURL,
			EscrowAddress: cfg.SolanaEscrowAddress,
			RPS:           cfg.ChainRPCRPS,
		}))
	}
	if cfg.XRPLEscrowAddress != "" {
		adapters = append(adapters, verify.NewXRPL(verify.XRPLConfig{
			RPCURL:        cfg.XRPLRPCURL,
			EscrowAddress: cfg.XRPLEscrowAddress,
			RPS:           cfg.ChainRPCRPS,
		}))
	}
	if cfg.XRPLEVMEscrowAddress != "" {
		client, err := verify.DialEVM(cfg.XRPLEVMRPCURL)
		if err != nil {
			logger.Warn("XRPL EVM client unavailable", "error", err)
		} else if a, err := verify.NewXRPLEVM(client, verify.XRPLEVMConfig{
			EscrowAddress: cfg.XRPLEVMEscrowAddress,
			Confirmations: cfg.XRPLEVMConfirmations,
			RPS:           cfg.ChainRPCRPS,
		}); err != nil {
			logger.Warn("XRPL EVM adapter disabled", "error", err)
		} else {
			adapters = append(adapters, a)
		}
	}
	for _, c := range models.SupportedChains {
		found := false
		for _, a := range adapters {
			found = found || a.Chain() == c
		}
		if !found {
			logger.Warn("No verification adapter configured", "chain", c)
		}
	}
	return verify.NewRegistry(m, logger, adapters...)
}

// buildNotifier fans events out to NATS JetStream and Redis when configured.
func buildNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notify.Notifier, func()) {
	var fan notify.Fanout
	var closers []func()

	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("marketplace-core"))
		if err != nil {
			logger.Warn("NATS unavailable; events will not be streamed", "error", err)
		} else if js, err := notify.NewJetStream(ctx, nc); err != nil {
			logger.Warn("JetStream unavailable", "error", err)
			nc.Close()
		} else {
			fan = append(fan, js)
			closers = append(closers, func() { _ = nc.Drain() })
		}
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable; live bid feed disabled", "error", err)
			_ = rdb.Close()
		} else {
			fan = append(fan, notify.NewLiveBids(rdb))
			closers = append(closers, func() { _ = rdb.Close() })
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(fan) == 0 {
		return notify.Nop{}, closeAll
	}
	return fan, closeAll
}

var _ scheduler.JobClient = (*river.Client[pgx.Tx])(nil)
