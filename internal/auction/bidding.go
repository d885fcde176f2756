package auction

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/apperr"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/txn"
)

type PlaceBidParams struct {
	ListingID     uuid.UUID
	BidderID      uuid.UUID
	Amount        decimal.Decimal
	WalletAddress string
	Chain         models.Chain
}

// PlaceBid accepts a bid if, against the locked listing, the auction is active
// and not past its end date, the bidder is not the seller, and the amount
// reaches (current_bid or starting_bid) + bid_increment. The new bid becomes the
// listing's only active bid and its amount the current bid.
func (e *Engine) PlaceBid(ctx context.Context, p PlaceBidParams) (uuid.UUID, error) {
	id, err := e.placeBid(ctx, p)
	if err != nil {
		e.metrics.BidPlaced(string(apperr.KindOf(err)))
		return uuid.Nil, err
	}
	e.metrics.BidPlaced("accepted")
	return id, nil
}

func (e *Engine) placeBid(ctx context.Context, p PlaceBidParams) (uuid.UUID, error) {
	wallet := strings.TrimSpace(p.WalletAddress)
	switch {
	case p.BidderID == uuid.Nil:
		return uuid.Nil, apperr.Validation("bidder is required")
	case !p.Amount.IsPositive():
		return uuid.Nil, apperr.Validation("bid amount must be greater than zero")
	case wallet == "":
		return uuid.Nil, apperr.Validation("wallet address is required")
	case !p.Chain.Valid():
		return uuid.Nil, apperr.Validation("unsupported chain %q", p.Chain)
	}

	var bid *models.Bid
	var outbid []*models.Bid
	var sellerID uuid.UUID
	err := txn.Run(ctx, e.db, func(tx pgx.Tx) error {
		l, err := e.lockListing(ctx, tx, p.ListingID)
		if err != nil {
			return err
		}
		now := e.now()
		if l.AuctionStatus != models.AuctionStatusActive || !now.Before(l.AuctionEndDate) {
			return apperr.New(apperr.KindAuctionClosed, "auction is not accepting bids")
		}
		if l.SellerID == p.BidderID {
			return apperr.New(apperr.KindSelfBidNotAllowed, "sellers cannot bid on their own listing")
		}
		if floor := l.MinimumNextBid(); p.Amount.LessThan(floor) {
			return apperr.New(apperr.KindBidTooLow, "bid must be at least %s", floor.String())
		}

		bid = &models.Bid{
			ID:            uuid.New(),
			ListingID:     l.ID,
			BidderID:      p.BidderID,
			Amount:        p.Amount,
			WalletAddress: wallet,
			Chain:         p.Chain,
			Status:        models.BidStatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if outbid, err = e.bids.MarkOutbid(ctx, tx, l.ID, bid.ID); err != nil {
			return fmt.Errorf("mark outbid: %w", err)
		}
		if err := e.bids.Insert(ctx, tx, bid); err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}
		amount := p.Amount
		l.CurrentBid = &amount
		l.UpdatedAt = now
		if err := e.listings.Update(ctx, tx, l); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		sellerID = l.SellerID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	e.log.Info("bid placed", "listing_id", p.ListingID, "bid_id", bid.ID, "amount", bid.Amount.String())
	data := map[string]string{"bid_id": bid.ID.String(), "amount": bid.Amount.String(), "chain": string(bid.Chain)}
	events := []models.Event{models.NewEvent(models.EventBidPlaced, p.ListingID, data, sellerID, p.BidderID)}
	for _, o := range outbid {
		if o.BidderID == p.BidderID {
			continue
		}
		events = append(events, models.NewEvent(models.EventBidOutbid, p.ListingID, map[string]string{
			"bid_id":      o.ID.String(),
			"amount":      o.Amount.String(),
			"current_bid": bid.Amount.String(),
		}, o.BidderID))
	}
	e.publish(ctx, events...)
	return bid.ID, nil
}
