package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/apperr"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/scheduler"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/txn"
)

type PaymentWindowParams struct {
	AuctionID    uuid.UUID
	WinnerID     uuid.UUID
	WinningBidID uuid.UUID
	Amount       decimal.Decimal
	Chain        models.Chain
}

// OpenPaymentWindow records the winner's payment obligation inside the caller's
// transaction and schedules its expiry and the deadline reminder.
func (s *Service) OpenPaymentWindow(ctx context.Context, tx pgx.Tx, p PaymentWindowParams) (*models.AuctionPayment, error) {
	now := s.now()
	deadline := now.Add(s.cfg.PaymentWindow)
	payment := &models.AuctionPayment{
		ID:              uuid.New(),
		AuctionID:       p.AuctionID,
		WinnerID:        p.WinnerID,
		WinningBidID:    p.WinningBidID,
		Amount:          p.Amount,
		Chain:           p.Chain,
		PaymentDeadline: deadline,
		Status:          models.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.payments.Insert(ctx, tx, payment); err != nil {
		return nil, fmt.Errorf("insert auction payment: %w", err)
	}
	if err := s.scheduler.ScheduleOnce(ctx, tx, scheduler.PaymentExpiryKey(payment.ID), deadline,
		scheduler.ExpirePaymentWindowArgs{PaymentID: payment.ID}); err != nil {
		return nil, fmt.Errorf("schedule payment expiry: %w", err)
	}
	if remindAt := deadline.Add(-s.cfg.PaymentReminderBefore); remindAt.After(now) {
		if err := s.scheduler.ScheduleOnce(ctx, tx, scheduler.PaymentReminderKey(payment.ID), remindAt,
			scheduler.PaymentReminderArgs{PaymentID: payment.ID}); err != nil {
			return nil, fmt.Errorf("schedule payment reminder: %w", err)
		}
	}
	return payment, nil
}

// PaymentFor returns the payment owed by winnerID for auctionID.
func (s *Service) PaymentFor(ctx context.Context, auctionID, winnerID uuid.UUID) (*models.AuctionPayment, error) {
	p, err := s.payments.GetByAuctionAndWinner(ctx, auctionID, winnerID)
	if err != nil {
		return nil, missing(err, "auction payment for auction", auctionID)
	}
	return p, nil
}

// CheckPayable reports why a payment cannot be completed now, or nil.
func (s *Service) CheckPayable(p *models.AuctionPayment) error {
	switch {
	case p.Status == models.PaymentStatusPaid:
		return apperr.InvalidTransition("payment already completed")
	case p.Status == models.PaymentStatusExpired:
		return apperr.New(apperr.KindPaymentWindowExpired, "payment window closed at %s", p.PaymentDeadline.Format(time.RFC3339))
	case !s.now().Before(p.PaymentDeadline):
		return apperr.New(apperr.KindPaymentWindowExpired, "payment window closed at %s", p.PaymentDeadline.Format(time.RFC3339))
	}
	return nil
}

// SettlePayment marks a pending payment paid inside the caller's transaction,
// linking the processor transaction and the escrow it opened.
func (s *Service) SettlePayment(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, txHash string, escrowID uuid.UUID) (*models.AuctionPayment, error) {
	p, err := s.lockPayment(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.CheckPayable(p); err != nil {
		return nil, err
	}
	now := s.now()
	hash := strings.TrimSpace(txHash)
	p.Status = models.PaymentStatusPaid
	p.TransactionHash = &hash
	p.EscrowID = &escrowID
	p.PaidAt = &now
	p.UpdatedAt = now
	if err := s.payments.Update(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("update auction payment: %w", err)
	}
	if err := s.scheduler.Cancel(ctx, tx, scheduler.PaymentReminderKey(paymentID)); err != nil {
		return nil, fmt.Errorf("cancel payment reminder: %w", err)
	}
	return p, nil
}

// ExpirePaymentWindow is the scheduled payment-deadline command. It moves a
// pending payment past its deadline to expired and never touches an escrow.
// Payments that already advanced are skipped.
func (s *Service) ExpirePaymentWindow(ctx context.Context, paymentID uuid.UUID) error {
	var expired *models.AuctionPayment
	err := txn.Run(ctx, s.db, func(tx pgx.Tx) error {
		p, err := s.lockPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentStatusPending {
			s.log.Info("payment expiry skipped", "payment_id", paymentID, "status", p.Status)
			return s.scheduler.Complete(ctx, tx, scheduler.PaymentExpiryKey(paymentID))
		}
		now := s.now()
		if now.Before(p.PaymentDeadline) {
			return fmt.Errorf("payment %s deadline %s not reached", paymentID, p.PaymentDeadline.Format(time.RFC3339))
		}
		p.Status = models.PaymentStatusExpired
		p.ExpiredAt = &now
		p.UpdatedAt = now
		if err := s.payments.Update(ctx, tx, p); err != nil {
			return fmt.Errorf("update auction payment: %w", err)
		}
		if err := s.scheduler.Complete(ctx, tx, scheduler.PaymentExpiryKey(paymentID)); err != nil {
			return err
		}
		if err := s.scheduler.Cancel(ctx, tx, scheduler.PaymentReminderKey(paymentID)); err != nil {
			return err
		}
		expired = p
		return nil
	})
	if err != nil || expired == nil {
		return err
	}
	s.metrics.AuctionPayment("expired")
	s.log.Info("payment window expired", "payment_id", paymentID, "auction_id", expired.AuctionID)
	s.publish(ctx, models.NewEvent(models.EventPaymentExpired, expired.AuctionID, map[string]string{
		"payment_id": paymentID.String(),
		"amount":     expired.Amount.String(),
	}, expired.WinnerID))
	return nil
}

// RemindPaymentDeadline warns the winner of a still-pending payment.
func (s *Service) RemindPaymentDeadline(ctx context.Context, paymentID uuid.UUID) error {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return missing(err, "auction payment", paymentID)
	}
	err = txn.Run(ctx, s.db, func(tx pgx.Tx) error {
		return s.scheduler.Complete(ctx, tx, scheduler.PaymentReminderKey(paymentID))
	})
	if err != nil {
		return err
	}
	if p.Status != models.PaymentStatusPending || !s.now().Before(p.PaymentDeadline) {
		s.log.Info("payment reminder skipped", "payment_id", paymentID, "status", p.Status)
		return nil
	}
	s.publish(ctx, models.NewEvent(models.EventPaymentDeadlineApproaching, p.AuctionID, map[string]string{
		"payment_id": paymentID.String(),
		"amount":     p.Amount.String(),
		"deadline":   p.PaymentDeadline.Format(time.RFC3339),
	}, p.WinnerID))
	return nil
}
