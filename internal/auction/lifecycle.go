package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/apperr"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/ledger"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/scheduler"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/txn"
)

type OpenAuctionParams struct {
	ListingID    uuid.UUID
	SellerID     uuid.UUID
	SellerWallet string
	StartingBid  decimal.Decimal
	BidIncrement decimal.Decimal
	EndDate      time.Time
}

// OpenAuction registers the auction state of a listing and schedules its close
// at the end date.
func (e *Engine) OpenAuction(ctx context.Context, p OpenAuctionParams) (*models.Listing, error) {
	now := e.now()
	switch {
	case p.SellerID == uuid.Nil:
		return nil, apperr.Validation("seller is required")
	case !p.StartingBid.IsPositive():
		return nil, apperr.Validation("starting bid must be greater than zero")
	case !p.BidIncrement.IsPositive():
		return nil, apperr.Validation("bid increment must be greater than zero")
	case !p.EndDate.After(now):
		return nil, apperr.Validation("auction end date must be in the future")
	}
	id := p.ListingID
	if id == uuid.Nil {
		id = uuid.New()
	}
	l := &models.Listing{
		ID:             id,
		SellerID:       p.SellerID,
		StartingBid:    p.StartingBid,
		BidIncrement:   p.BidIncrement,
		AuctionEndDate: p.EndDate.UTC(),
		AuctionStatus:  models.AuctionStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.SellerWallet != "" {
		w := p.SellerWallet
		l.SellerWallet = &w
	}
	err := txn.Run(ctx, e.db, func(tx pgx.Tx) error {
		if err := e.listings.Insert(ctx, tx, l); err != nil {
			return fmt.Errorf("insert listing: %w", err)
		}
		return e.scheduler.ScheduleOnce(ctx, tx, scheduler.CloseAuctionKey(l.ID), l.AuctionEndDate,
			scheduler.CloseAuctionArgs{ListingID: l.ID})
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("auction opened", "listing_id", l.ID, "ends_at", l.AuctionEndDate)
	return l, nil
}

// CloseAuction is the scheduled auction-end command. The unique active bid wins
// and a payment window is opened for it; with no bids the auction ends without a
// sale. Delivery for an auction that is no longer active is a logged no-op, and
// a delivery that arrives before the end date re-arms the close.
func (e *Engine) CloseAuction(ctx context.Context, listingID uuid.UUID) error {
	var (
		closed  *models.Listing
		winner  *models.Bid
		payment *models.AuctionPayment
	)
	err := txn.Run(ctx, e.db, func(tx pgx.Tx) error {
		l, err := e.lockListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		key := scheduler.CloseAuctionKey(listingID)
		if l.AuctionStatus != models.AuctionStatusActive {
			e.log.Info("auction close skipped", "listing_id", listingID, "status", l.AuctionStatus)
			return e.scheduler.Complete(ctx, tx, key)
		}
		now := e.now()
		if now.Before(l.AuctionEndDate) {
			e.log.Info("auction close early, rescheduling", "listing_id", listingID, "ends_at", l.AuctionEndDate)
			if err := e.scheduler.Complete(ctx, tx, key); err != nil {
				return err
			}
			return e.scheduler.ScheduleOnce(ctx, tx, key, l.AuctionEndDate, scheduler.CloseAuctionArgs{ListingID: listingID})
		}

		active, err := e.bids.GetActive(ctx, tx, listingID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("load active bid: %w", err)
		}
		var winnerID *uuid.UUID
		if active != nil {
			winnerID = &active.ID
		}
		if err := e.bids.Settle(ctx, tx, listingID, winnerID); err != nil {
			return fmt.Errorf("settle bids: %w", err)
		}
		l.AuctionStatus = models.AuctionStatusEnded
		l.UpdatedAt = now
		if err := e.listings.Update(ctx, tx, l); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		if active != nil {
			payment, err = e.ledger.OpenPaymentWindow(ctx, tx, ledger.PaymentWindowParams{
				AuctionID:    listingID,
				WinnerID:     active.BidderID,
				WinningBidID: active.ID,
				Amount:       active.Amount,
				Chain:        active.Chain,
			})
			if err != nil {
				return err
			}
		}
		if err := e.scheduler.Complete(ctx, tx, key); err != nil {
			return err
		}
		closed, winner = l, active
		return nil
	})
	if err != nil || closed == nil {
		return err
	}

	if winner == nil {
		e.log.Info("auction closed without sale", "listing_id", listingID)
		e.publish(ctx, models.NewEvent(models.EventAuctionClosedNoSale, listingID, nil, closed.SellerID))
		return nil
	}
	e.log.Info("auction closed", "listing_id", listingID, "winning_bid_id", winner.ID, "payment_id", payment.ID)
	e.publish(ctx, models.NewEvent(models.EventAuctionWon, listingID, map[string]string{
		"bid_id":           winner.ID.String(),
		"payment_id":       payment.ID.String(),
		"amount":           winner.Amount.String(),
		"chain":            string(winner.Chain),
		"payment_deadline": payment.PaymentDeadline.Format(time.RFC3339),
	}, winner.BidderID, closed.SellerID))
	return nil
}

// CancelAuction withdraws an active auction. Only the seller may cancel.
func (e *Engine) CancelAuction(ctx context.Context, listingID, sellerID uuid.UUID) error {
	var bidders []uuid.UUID
	err := txn.Run(ctx, e.db, func(tx pgx.Tx) error {
		l, err := e.lockListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if l.SellerID != sellerID {
			return apperr.Unauthorized("only the seller can cancel this auction")
		}
		if l.AuctionStatus != models.AuctionStatusActive {
			return apperr.InvalidTransition("auction is %s", l.AuctionStatus)
		}
		bids, err := e.bids.ListByListing(ctx, listingID)
		if err != nil {
			return fmt.Errorf("list bids: %w", err)
		}
		seen := make(map[uuid.UUID]bool)
		for _, b := range bids {
			if !seen[b.BidderID] {
				seen[b.BidderID] = true
				bidders = append(bidders, b.BidderID)
			}
		}
		if err := e.bids.Settle(ctx, tx, listingID, nil); err != nil {
			return fmt.Errorf("settle bids: %w", err)
		}
		l.AuctionStatus = models.AuctionStatusCancelled
		l.UpdatedAt = e.now()
		if err := e.listings.Update(ctx, tx, l); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		return e.scheduler.Cancel(ctx, tx, scheduler.CloseAuctionKey(listingID))
	})
	if err != nil {
		return err
	}
	e.log.Info("auction cancelled", "listing_id", listingID)
	e.publish(ctx, models.NewEvent(models.EventAuctionCancelled, listingID, nil, append([]uuid.UUID{sellerID}, bidders...)...))
	return nil
}
