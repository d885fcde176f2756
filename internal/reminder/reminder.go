// Package reminder runs the recurring sweeps that are not tied to a single
// aggregate, such as reminding sellers to register a payout wallet.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// WalletReminders re-notifies sellers of escrows still waiting for a payout address.
type WalletReminders interface {
	RemindSellerWalletSetup(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron     *cron.Cron
	ledger   WalletReminders
	schedule string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewScheduler(ledger WalletReminders, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger))),
		ledger:   ledger,
		schedule: schedule,
		timeout:  5 * time.Minute,
		logger:   logger,
	}
}

// Start registers the sweeps and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.SellerWalletSweep); err != nil {
		return err
	}
	s.logger.Info("scheduled seller wallet reminder sweep", "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running sweeps finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) SellerWalletSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.ledger.RemindSellerWalletSetup(ctx)
	if err != nil {
		s.logger.Error("seller wallet reminder sweep failed", "error", err)
		return
	}
	if n == 0 {
		s.logger.Info("no escrows awaiting a seller wallet")
		return
	}
	s.logger.Info("seller wallet reminders sent", "count", n)
}
