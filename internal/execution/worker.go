// Package execution delivers scheduled commands from River to the ledger and
// the auction engine.
package execution

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/apperr"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/metrics"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/scheduler"
)

// EscrowCommands is the part of the ledger that scheduled commands reach.
type EscrowCommands interface {
	AutoRelease(ctx context.Context, escrowID uuid.UUID) error
	ExpirePaymentWindow(ctx context.Context, paymentID uuid.UUID) error
	RemindPaymentDeadline(ctx context.Context, paymentID uuid.UUID) error
}

// AuctionCommands is the part of the auction engine that scheduled commands reach.
type AuctionCommands interface {
	CloseAuction(ctx context.Context, listingID uuid.UUID) error
}

// deliver runs a command and decides whether River should retry it. A command
// whose aggregate no longer exists is cancelled; every other failure is
// retried with River's backoff.
func deliver(ctx context.Context, m *metrics.Metrics, log *slog.Logger, kind string, id uuid.UUID, fn func(context.Context, uuid.UUID) error) error {
	err := fn(ctx, id)
	switch {
	case err == nil:
		m.CommandDelivered(kind, "ok")
		return nil
	case errors.Is(err, apperr.ErrNotFound):
		m.CommandDelivered(kind, "dropped")
		log.Warn("scheduled command target missing", "kind", kind, "id", id, "error", err)
		return river.JobCancel(err)
	default:
		m.CommandDelivered(kind, "retry")
		log.Error("scheduled command failed", "kind", kind, "id", id, "error", err)
		return err
	}
}

type AutoReleaseWorker struct {
	river.WorkerDefaults[scheduler.AutoReleaseArgs]
	ledger  EscrowCommands
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewAutoReleaseWorker(l EscrowCommands, m *metrics.Metrics, log *slog.Logger) *AutoReleaseWorker {
	return &AutoReleaseWorker{ledger: l, metrics: m, log: log}
}

func (w *AutoReleaseWorker) Work(ctx context.Context, job *river.Job[scheduler.AutoReleaseArgs]) error {
	return deliver(ctx, w.metrics, w.log, job.Args.Kind(), job.Args.EscrowID, w.ledger.AutoRelease)
}

type CloseAuctionWorker struct {
	river.WorkerDefaults[scheduler.CloseAuctionArgs]
	auctions AuctionCommands
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewCloseAuctionWorker(a AuctionCommands, m *metrics.Metrics, log *slog.Logger) *CloseAuctionWorker {
	return &CloseAuctionWorker{auctions: a, metrics: m, log: log}
}

func (w *CloseAuctionWorker) Work(ctx context.Context, job *river.Job[scheduler.CloseAuctionArgs]) error {
	return deliver(ctx, w.metrics, w.log, job.Args.Kind(), job.Args.ListingID, w.auctions.CloseAuction)
}

type ExpirePaymentWindowWorker struct {
	river.WorkerDefaults[scheduler.ExpirePaymentWindowArgs]
	ledger  EscrowCommands
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewExpirePaymentWindowWorker(l EscrowCommands, m *metrics.Metrics, log *slog.Logger) *ExpirePaymentWindowWorker {
	return &ExpirePaymentWindowWorker{ledger: l, metrics: m, log: log}
}

func (w *ExpirePaymentWindowWorker) Work(ctx context.Context, job *river.Job[scheduler.ExpirePaymentWindowArgs]) error {
	return deliver(ctx, w.metrics, w.log, job.Args.Kind(), job.Args.PaymentID, w.ledger.ExpirePaymentWindow)
}

type PaymentReminderWorker struct {
	river.WorkerDefaults[scheduler.PaymentReminderArgs]
	ledger  EscrowCommands
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewPaymentReminderWorker(l EscrowCommands, m *metrics.Metrics, log *slog.Logger) *PaymentReminderWorker {
	return &PaymentReminderWorker{ledger: l, metrics: m, log: log}
}

func (w *PaymentReminderWorker) Work(ctx context.Context, job *river.Job[scheduler.PaymentReminderArgs]) error {
	return deliver(ctx, w.metrics, w.log, job.Args.Kind(), job.Args.PaymentID, w.ledger.RemindPaymentDeadline)
}

// Register adds every command worker to workers.
func Register(workers *river.Workers, l EscrowCommands, a AuctionCommands, m *metrics.Metrics, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	river.AddWorker(workers, NewAutoReleaseWorker(l, m, log))
	river.AddWorker(workers, NewCloseAuctionWorker(a, m, log))
	river.AddWorker(workers, NewExpirePaymentWindowWorker(l, m, log))
	river.AddWorker(workers, NewPaymentReminderWorker(l, m, log))
}
