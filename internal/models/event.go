package models

import (
	"time"

	"github.com/google/uuid"
)

// Domain event types handed to the notification collaborator.
const (
	EventEscrowCreated              = "escrow_created"
	EventEscrowNeedsSellerWallet    = "escrow_needs_seller_wallet"
	EventSellerWalletReminder       = "seller_wallet_reminder"
	EventEscrowFunded               = "escrow_funded"
	EventOrderReceived              = "order_received"
	EventEscrowDisputed             = "escrow_disputed"
	EventEscrowConditionsMet        = "escrow_conditions_met"
	EventEscrowReleased             = "escrow_released"
	EventEscrowExpired              = "escrow_expired"
	EventBidPlaced                  = "bid_placed"
	EventBidOutbid                  = "bid_outbid"
	EventAuctionWon                 = "auction_won"
	EventAuctionClosedNoSale        = "auction_closed_no_sale"
	EventAuctionCancelled           = "auction_cancelled"
	EventPaymentDeadlineApproaching = "payment_deadline_approaching"
	EventPaymentCompleted           = "payment_completed"
	EventPaymentExpired             = "payment_expired"
)

// Event is a plain structured message; formatting and delivery belong to the
// notification collaborator.
type Event struct {
	ID          uuid.UUID         `json:"id"`
	Type        string            `json:"type"`
	AggregateID uuid.UUID         `json:"aggregate_id"`
	Recipients  []uuid.UUID       `json:"recipients,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

func NewEvent(eventType string, aggregateID uuid.UUID, data map[string]string, recipients ...uuid.UUID) Event {
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		Recipients:  recipients,
		Data:        data,
		OccurredAt:  time.Now().UTC(),
	}
}
