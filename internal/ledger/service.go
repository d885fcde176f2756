// Package ledger owns the Escrow state machine and the AuctionPayment
// obligations that lead into it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/apperr"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/metrics"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/notify"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/scheduler"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/txn"
)

// EscrowRepo is the escrow persistence the ledger needs. Lookups return
// pgx.ErrNoRows when the row does not exist.
type EscrowRepo interface {
	Insert(ctx context.Context, tx pgx.Tx, e *models.Escrow) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Escrow, error)
	Update(ctx context.Context, tx pgx.Tx, e *models.Escrow) error
	TransactionUsed(ctx context.Context, chain models.Chain, txHash string) (bool, error)
	ListAwaitingSellerWallet(ctx context.Context) ([]*models.Escrow, error)
	ListReleasable(ctx context.Context) ([]*models.Escrow, error)
}

// PaymentRepo is the auction payment persistence the ledger needs.
type PaymentRepo interface {
	Insert(ctx context.Context, tx pgx.Tx, p *models.AuctionPayment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuctionPayment, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.AuctionPayment, error)
	GetByAuctionAndWinner(ctx context.Context, auctionID, winnerID uuid.UUID) (*models.AuctionPayment, error)
	Update(ctx context.Context, tx pgx.Tx, p *models.AuctionPayment) error
}

// Verifier confirms that a chain transaction pays the expected amount into escrow.
type Verifier interface {
	Verify(ctx context.Context, chain models.Chain, txRef string, expected decimal.Decimal) (bool, error)
}

// ConditionsValidator checks a marshalled conditions document against its schema.
type ConditionsValidator interface {
	ValidateConditions(doc []byte) error
}

type Config struct {
	AutoReleaseAfter      time.Duration
	PaymentWindow         time.Duration
	PaymentReminderBefore time.Duration
}

func DefaultConfig() Config {
	return Config{
		AutoReleaseAfter:      20 * 24 * time.Hour,
		PaymentWindow:         48 * time.Hour,
		PaymentReminderBefore: 12 * time.Hour,
	}
}

type Service struct {
	db        txn.Beginner
	escrows   EscrowRepo
	payments  PaymentRepo
	verifier  Verifier
	scheduler scheduler.Scheduler
	notifier  notify.Notifier
	validator ConditionsValidator
	metrics   *metrics.Metrics
	log       *slog.Logger
	cfg       Config
	now       func() time.Time
}

type Option func(*Service)

func WithNotifier(n notify.Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithValidator(v ConditionsValidator) Option { return func(s *Service) { s.validator = v } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(db txn.Beginner, escrows EscrowRepo, payments PaymentRepo, verifier Verifier, sched scheduler.Scheduler, cfg Config, opts ...Option) *Service {
	s := &Service{
		db:        db,
		escrows:   escrows,
		payments:  payments,
		verifier:  verifier,
		scheduler: sched,
		notifier:  notify.Nop{},
		log:       slog.Default(),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) lockEscrow(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Escrow, error) {
	e, err := s.escrows.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, missing(err, "escrow", id)
	}
	return e, nil
}

func (s *Service) lockPayment(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.AuctionPayment, error) {
	p, err := s.payments.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, missing(err, "auction payment", id)
	}
	return p, nil
}

func missing(err error, what string, id uuid.UUID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s %s not found", what, id)
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}

func (s *Service) publish(ctx context.Context, events ...models.Event) {
	notify.PublishAll(ctx, s.notifier, s.log, events...)
}

func escrowData(e *models.Escrow) map[string]string {
	data := map[string]string{
		"amount": e.Amount.String(),
		"chain":  string(e.Chain),
		"status": string(e.Status),
	}
	if e.ListingID != nil {
		data["listing_id"] = e.ListingID.String()
	}
	return data
}
