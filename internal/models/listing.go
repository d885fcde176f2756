package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AuctionStatus string

const (
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// Listing is the auction-owned subset of a catalog listing.
type Listing struct {
	ID             uuid.UUID        `json:"id"`
	SellerID       uuid.UUID        `json:"seller_id"`
	SellerWallet   *string          `json:"seller_wallet,omitempty"`
	StartingBid    decimal.Decimal  `json:"starting_bid"`
	BidIncrement   decimal.Decimal  `json:"bid_increment"`
	CurrentBid     *decimal.Decimal `json:"current_bid,omitempty"`
	AuctionEndDate time.Time        `json:"auction_end_date"`
	AuctionStatus  AuctionStatus    `json:"auction_status"`
	SoldAt         *time.Time       `json:"sold_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// MinimumNextBid is (current_bid or starting_bid) + bid_increment.
func (l *Listing) MinimumNextBid() decimal.Decimal {
	base := l.StartingBid
	if l.CurrentBid != nil {
		base = *l.CurrentBid
	}
	return base.Add(l.BidIncrement)
}
