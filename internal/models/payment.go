package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusExpired PaymentStatus = "expired"
)

// AuctionPayment is the winner's obligation to pay for a closed auction.
type AuctionPayment struct {
	ID              uuid.UUID       `json:"id"`
	AuctionID       uuid.UUID       `json:"auction_id"`
	WinnerID        uuid.UUID       `json:"winner_id"`
	WinningBidID    uuid.UUID       `json:"winning_bid_id"`
	Amount          decimal.Decimal `json:"amount"`
	Chain           Chain           `json:"chain"`
	PaymentDeadline time.Time       `json:"payment_deadline"`
	Status          PaymentStatus   `json:"status"`
	TransactionHash *string         `json:"transaction_hash,omitempty"`
	EscrowID        *uuid.UUID      `json:"escrow_id,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	ExpiredAt       *time.Time      `json:"expired_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
