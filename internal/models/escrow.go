package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EscrowStatus string

const (
	EscrowStatusPending       EscrowStatus = "pending"
	EscrowStatusFunded        EscrowStatus = "funded"
	EscrowStatusDisputed      EscrowStatus = "disputed"
	EscrowStatusConditionsMet EscrowStatus = "conditions_met"
	EscrowStatusReleased      EscrowStatus = "released"
	EscrowStatusExpired       EscrowStatus = "expired"
)

// ErrTransactionReused is returned by escrow stores when a (chain, transaction
// hash) pair already funds another escrow.
var ErrTransactionReused = errors.New("transaction hash already funds another escrow")

// SellerWalletPending is recorded in place of a payout address when the seller
// has not registered one yet.
const SellerWalletPending = "pending_wallet_setup"

// Release reasons.
const (
	ReleaseReasonAutoRelease       = "auto_release"
	ReleaseReasonBuyerConfirmed    = "buyer_confirmed"
	ReleaseReasonDisputeResolution = "dispute_resolution"
)

var escrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusPending:       {EscrowStatusFunded},
	EscrowStatusFunded:        {EscrowStatusDisputed, EscrowStatusConditionsMet, EscrowStatusReleased, EscrowStatusExpired},
	EscrowStatusDisputed:      {EscrowStatusReleased},
	EscrowStatusConditionsMet: {EscrowStatusReleased},
}

// CanTransition reports whether from -> to is an edge of the escrow state machine.
func CanTransition(from, to EscrowStatus) bool {
	for _, s := range escrowTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s EscrowStatus) Terminal() bool {
	return s == EscrowStatusReleased || s == EscrowStatusExpired
}

type Escrow struct {
	ID              uuid.UUID       `json:"id"`
	ListingID       *uuid.UUID      `json:"listing_id,omitempty"`
	SellerID        uuid.UUID       `json:"seller_id"`
	SellerWallet    string          `json:"seller_wallet"`
	BuyerID         uuid.UUID       `json:"buyer_id"`
	BuyerWallet     string          `json:"buyer_wallet,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Chain           Chain           `json:"chain"`
	Conditions      Conditions      `json:"conditions"`
	TransactionHash *string         `json:"transaction_hash,omitempty"`
	Status          EscrowStatus    `json:"status"`
	AutoReleaseAt   *time.Time      `json:"auto_release_at,omitempty"`
	FundedAt        *time.Time      `json:"funded_at,omitempty"`
	DisputedAt      *time.Time      `json:"disputed_at,omitempty"`
	ReleasedAt      *time.Time      `json:"released_at,omitempty"`
	ReleaseReason   *string         `json:"release_reason,omitempty"`
	ExpiredAt       *time.Time      `json:"expired_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AwaitingSellerWallet reports whether the payout address is still the placeholder.
func (e *Escrow) AwaitingSellerWallet() bool {
	return e.SellerWallet == "" || e.SellerWallet == SellerWalletPending
}

// IsParty reports whether userID is the buyer or the seller of the escrow.
func (e *Escrow) IsParty(userID uuid.UUID) bool {
	return userID == e.BuyerID || userID == e.SellerID
}
