package scheduler

import (
	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// AutoReleaseArgs releases a funded escrow once its holding period is over.
type AutoReleaseArgs struct {
	EscrowID uuid.UUID `json:"escrow_id"`
}

func (AutoReleaseArgs) Kind() string { return "escrow_auto_release" }

// CloseAuctionArgs closes bidding on a listing at its auction end date.
type CloseAuctionArgs struct {
	ListingID uuid.UUID `json:"listing_id"`
}

func (CloseAuctionArgs) Kind() string { return "auction_close" }

// ExpirePaymentWindowArgs expires an auction payment that was not completed in time.
type ExpirePaymentWindowArgs struct {
	PaymentID uuid.UUID `json:"payment_id"`
}

func (ExpirePaymentWindowArgs) Kind() string { return "payment_window_expire" }

// PaymentReminderArgs warns a winner that their payment deadline is near.
type PaymentReminderArgs struct {
	PaymentID uuid.UUID `json:"payment_id"`
}

func (PaymentReminderArgs) Kind() string { return "payment_deadline_reminder" }

var (
	_ river.JobArgs = AutoReleaseArgs{}
	_ river.JobArgs = CloseAuctionArgs{}
	_ river.JobArgs = ExpirePaymentWindowArgs{}
	_ river.JobArgs = PaymentReminderArgs{}
)

func AutoReleaseKey(escrowID uuid.UUID) string {
	return "escrow:" + escrowID.String() + ":auto_release"
}

func CloseAuctionKey(listingID uuid.UUID) string {
	return "auction:" + listingID.String() + ":close"
}

func PaymentExpiryKey(paymentID uuid.UUID) string {
	return "payment:" + paymentID.String() + ":expire"
}

func PaymentReminderKey(paymentID uuid.UUID) string {
	return "payment:" + paymentID.String() + ":reminder"
}
