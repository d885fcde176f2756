// Package auction owns bidding on listings: the per-listing current bid, the
// Bid rows, auction close and the winner's payment completion.
package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/apperr"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/ledger"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/metrics"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/notify"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/payment"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/scheduler"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/txn"
)

// ListingRepo persists the auction-owned fields of a listing.
type ListingRepo interface {
	Insert(ctx context.Context, tx pgx.Tx, l *models.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Listing, error)
	Update(ctx context.Context, tx pgx.Tx, l *models.Listing) error
}

// BidRepo persists bids. Callers hold the listing row lock for every write.
type BidRepo interface {
	Insert(ctx context.Context, tx pgx.Tx, b *models.Bid) error
	// MarkOutbid moves every active bid of the listing except keepBidID to
	// outbid and returns the bids as they were before the change.
	MarkOutbid(ctx context.Context, tx pgx.Tx, listingID, keepBidID uuid.UUID) ([]*models.Bid, error)
	GetActive(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*models.Bid, error)
	// Settle marks winnerBidID won (if set) and every other open bid lost.
	Settle(ctx context.Context, tx pgx.Tx, listingID uuid.UUID, winnerBidID *uuid.UUID) error
	ListByListing(ctx context.Context, listingID uuid.UUID) ([]*models.Bid, error)
}

// Ledger is the part of the escrow ledger the engine hands off to.
type Ledger interface {
	OpenPaymentWindow(ctx context.Context, tx pgx.Tx, p ledger.PaymentWindowParams) (*models.AuctionPayment, error)
	PaymentFor(ctx context.Context, auctionID, winnerID uuid.UUID) (*models.AuctionPayment, error)
	CheckPayable(p *models.AuctionPayment) error
	SettlePayment(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, txHash string, escrowID uuid.UUID) (*models.AuctionPayment, error)
	CreateTx(ctx context.Context, tx pgx.Tx, p ledger.CreateParams) (*models.Escrow, error)
	PublishCreated(ctx context.Context, e *models.Escrow)
	Fund(ctx context.Context, escrowID uuid.UUID, txRef string, chain models.Chain) error
}

type Engine struct {
	db        txn.Beginner
	listings  ListingRepo
	bids      BidRepo
	ledger    Ledger
	scheduler scheduler.Scheduler
	processor payment.Processor
	escrowTo  map[models.Chain]string
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

type Option func(*Engine)

func WithNotifier(n notify.Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithEscrowAddresses sets the per-chain deposit address the processor pays into.
func WithEscrowAddresses(addrs map[models.Chain]string) Option {
	return func(e *Engine) { e.escrowTo = addrs }
}

func NewEngine(db txn.Beginner, listings ListingRepo, bids BidRepo, l Ledger, sched scheduler.Scheduler, processor payment.Processor, opts ...Option) *Engine {
	e := &Engine{
		db:        db,
		listings:  listings,
		bids:      bids,
		ledger:    l,
		scheduler: sched,
		processor: processor,
		escrowTo:  map[models.Chain]string{},
		notifier:  notify.Nop{},
		log:       slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lockListing(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Listing, error) {
	l, err := e.listings.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, missing(err, "listing", id)
	}
	return l, nil
}

func missing(err error, what string, id uuid.UUID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s %s not found", what, id)
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}

func (e *Engine) publish(ctx context.Context, events ...models.Event) {
	notify.PublishAll(ctx, e.notifier, e.log, events...)
}

func (e *Engine) GetAuction(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	l, err := e.listings.GetByID(ctx, id)
	if err != nil {
		return nil, missing(err, "listing", id)
	}
	return l, nil
}

// ListBids returns the listing's bids, highest first.
func (e *Engine) ListBids(ctx context.Context, listingID uuid.UUID) ([]*models.Bid, error) {
	if _, err := e.GetAuction(ctx, listingID); err != nil {
		return nil, err
	}
	bids, err := e.bids.ListByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return bids, nil
}
