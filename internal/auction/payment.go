package auction

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/apperr"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/ledger"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/payment"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/txn"
)

type CompletePaymentParams struct {
	AuctionID     uuid.UUID
	WinnerID      uuid.UUID
	TxReference   string
	WalletAddress string
}

type PaymentReceipt struct {
	PaymentID uuid.UUID `json:"payment_id"`
	EscrowID  uuid.UUID `json:"escrow_id"`
	TxHash    string    `json:"transaction_hash"`
	Funded    bool      `json:"funded"`
}

// CompletePayment pays the winner's auction payment through the processor.
// On success the payment is marked paid, the listing sold and an escrow opened
// for the winning bid in one transaction; the escrow is then funded with the
// processor's transaction hash. A processor failure changes nothing. The
// payment id is the processor's idempotency key, so concurrent or retried
// completions of one payment move funds once.
func (e *Engine) CompletePayment(ctx context.Context, p CompletePaymentParams) (*PaymentReceipt, error) {
	wallet := strings.TrimSpace(p.WalletAddress)
	if p.WinnerID == uuid.Nil || wallet == "" {
		return nil, apperr.Validation("winner and wallet address are required")
	}
	pay, err := e.ledger.PaymentFor(ctx, p.AuctionID, p.WinnerID)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.CheckPayable(pay); err != nil {
		return nil, err
	}
	l, err := e.GetAuction(ctx, p.AuctionID)
	if err != nil {
		return nil, err
	}

	res, err := e.processor.Execute(ctx, payment.Transfer{
		Amount:     pay.Amount,
		FromWallet: wallet,
		ToWallet:   e.escrowTo[pay.Chain],
		Chain:      pay.Chain,
		Reference:  strings.TrimSpace(p.TxReference),

		IdempotencyKey: pay.ID.String(),
	})
	if err != nil {
		e.metrics.AuctionPayment("failed")
		e.log.Warn("payment processor error", "payment_id", pay.ID, "error", err)
		return nil, apperr.Wrap(apperr.KindPaymentFailed, err, "payment could not be processed")
	}
	if !res.Success {
		e.metrics.AuctionPayment("failed")
		e.log.Warn("payment declined", "payment_id", pay.ID, "message", res.Message)
		return nil, apperr.New(apperr.KindPaymentFailed, "payment was declined")
	}

	var escrow *models.Escrow
	err = txn.Run(ctx, e.db, func(tx pgx.Tx) error {
		locked, err := e.lockListing(ctx, tx, l.ID)
		if err != nil {
			return err
		}
		now := e.now()
		locked.SoldAt = &now
		locked.UpdatedAt = now
		if err := e.listings.Update(ctx, tx, locked); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		sellerWallet := ""
		if locked.SellerWallet != nil {
			sellerWallet = *locked.SellerWallet
		}
		listingID := locked.ID
		escrow, err = e.ledger.CreateTx(ctx, tx, ledger.CreateParams{
			SellerID:     locked.SellerID,
			SellerWallet: sellerWallet,
			BuyerID:      pay.WinnerID,
			BuyerWallet:  wallet,
			Amount:       pay.Amount,
			Chain:        pay.Chain,
			Conditions: models.Conditions{Entries: []models.ConditionEntry{{
				Kind: models.ConditionKindTerms,
				Terms: &models.Terms{
					Description: "auction " + listingID.String() + " winning bid " + pay.WinningBidID.String(),
					Source:      "auction",
				},
			}}},
			ListingID: &listingID,
		})
		if err != nil {
			return err
		}
		_, err = e.ledger.SettlePayment(ctx, tx, pay.ID, res.TxHash, escrow.ID)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInvalidTransition {
			e.log.Info("payment completed concurrently", "payment_id", pay.ID, "tx_hash", res.TxHash)
		} else {
			e.log.Error("payment executed but not recorded", "payment_id", pay.ID, "tx_hash", res.TxHash, "error", err)
		}
		return nil, err
	}

	e.metrics.AuctionPayment("paid")
	e.ledger.PublishCreated(ctx, escrow)
	e.publish(ctx, models.NewEvent(models.EventPaymentCompleted, p.AuctionID, map[string]string{
		"payment_id":       pay.ID.String(),
		"escrow_id":        escrow.ID.String(),
		"amount":           pay.Amount.String(),
		"transaction_hash": res.TxHash,
	}, pay.WinnerID, l.SellerID))

	receipt := &PaymentReceipt{PaymentID: pay.ID, EscrowID: escrow.ID, TxHash: res.TxHash}
	if err := e.ledger.Fund(ctx, escrow.ID, res.TxHash, pay.Chain); err != nil {
		e.log.Warn("escrow funding deferred", "escrow_id", escrow.ID, "error", err)
		return receipt, nil
	}
	receipt.Funded = true
	return receipt, nil
}
