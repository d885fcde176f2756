package ledger

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/verify"
)

type CreateParams struct {
	SellerID     uuid.UUID
	SellerWallet string
	BuyerID      uuid.UUID
	BuyerWallet  string
	Amount       decimal.Decimal
	Chain        models.Chain
	Conditions   models.Conditions
	ListingID    *uuid.UUID
}

func (s *Service) validateCreate(p CreateParams) error {
	if !p.Amount.IsPositive() {
		return apperr.Validation("amount must be greater than zero")
	}
	if !p.Chain.Valid() {
		return apperr.Validation("unsupported chain %q", p.Chain)
	}
	if p.SellerID == uuid.Nil || p.BuyerID == uuid.Nil {
		return apperr.Validation("seller and buyer are required")
	}
	if p.SellerID == p.BuyerID {
		return apperr.Validation("seller and buyer must differ")
	}
	for _, e := range p.Conditions.Entries {
		if e.Kind != models.ConditionKindTerms {
			return apperr.Validation("a new escrow may only carry escrow conditions")
		}
	}
	if err := p.Conditions.Validate(); err != nil {
		return apperr.Validation("conditions: %v", err)
	}
	if s.validator != nil {
		doc, err := json.Marshal(p.Conditions)
		if err != nil {
			return apperr.Validation("conditions: %v", err)
		}
		if err := s.validator.ValidateConditions(doc); err != nil {
			return apperr.Validation("conditions: %v", err)
		}
	}
	return nil
}

// Create opens a pending escrow in its own transaction.
func (s *Service) Create(ctx context.Context, p CreateParams) (uuid.UUID, error) {
	var e *models.Escrow
	err := txn.Run(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		e, err = s.CreateTx(ctx, tx, p)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.PublishCreated(ctx, e)
	return e.ID, nil
}

// CreateTx opens a pending escrow inside the caller's transaction. The caller
// publishes the creation events with PublishCreated after commit.
func (s *Service) CreateTx(ctx context.Context, tx pgx.Tx, p CreateParams) (*models.Escrow, error) {
	if err := s.validateCreate(p); err != nil {
		return nil, err
	}
	wallet := strings.TrimSpace(p.SellerWallet)
	if wallet == "" {
		wallet = models.SellerWalletPending
	}
	now := s.now()
	e := &models.Escrow{
		ID:           uuid.New(),
		ListingID:    p.ListingID,
		SellerID:     p.SellerID,
		SellerWallet: wallet,
		BuyerID:      p.BuyerID,
		BuyerWallet:  strings.TrimSpace(p.BuyerWallet),
		Amount:       p.Amount,
		Chain:        p.Chain,
		Conditions:   p.Conditions.Clone(),
		Status:       models.EscrowStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.escrows.Insert(ctx, tx, e); err != nil {
		return nil, fmt.Errorf("insert escrow: %w", err)
	}
	return e, nil
}

func (s *Service) PublishCreated(ctx context.Context, e *models.Escrow) {
	s.log.Info("escrow created", "escrow_id", e.ID, "chain", e.Chain, "amount", e.Amount.String())
	events := []models.Event{models.NewEvent(models.EventEscrowCreated, e.ID, escrowData(e), e.BuyerID, e.SellerID)}
	if e.AwaitingSellerWallet() {
		events = append(events, models.NewEvent(models.EventEscrowNeedsSellerWallet, e.ID, escrowData(e), e.SellerID))
	}
	s.publish(ctx, events...)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	e, err := s.escrows.GetByID(ctx, id)
	if err != nil {
		return nil, missing(err, "escrow", id)
	}
	return e, nil
}

// Fund verifies txRef on the escrow's chain and moves a pending escrow to
// funded. An empty chain means the escrow's own. The reference is stored in
// its canonical form for the chain. Verification runs before any row lock is
// taken; the status is re-checked under the lock before it changes.
func (s *Service) Fund(ctx context.Context, id uuid.UUID, txRef string, chain models.Chain) error {
	if strings.TrimSpace(txRef) == "" {
		return apperr.Validation("transaction reference is required")
	}
	if chain != "" && !chain.Valid() {
		return apperr.Validation("unsupported chain %q", chain)
	}
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if chain == "" {
		chain = e.Chain
	}
	if chain != e.Chain {
		return apperr.Validation("escrow settles on %s, not %s", e.Chain, chain)
	}
	txRef = chain.CanonicalTxRef(txRef)
	if e.Status != models.EscrowStatusPending {
		return apperr.InvalidTransition("escrow is %s; only pending escrows can be funded", e.Status)
	}
	if used, err := s.escrows.TransactionUsed(ctx, chain, txRef); err != nil {
		return fmt.Errorf("check transaction reuse: %w", err)
	} else if used {
		return apperr.Validation("transaction already funds another escrow")
	}

	ok, err := s.verifier.Verify(ctx, chain, txRef, e.Amount)
	if err != nil {
		if errors.Is(err, verify.ErrMalformedReference) {
			return apperr.Validation("malformed transaction reference for %s", chain)
		}
		if errors.Is(err, verify.ErrUnsupportedChain) {
			return apperr.Validation("unsupported chain %q", chain)
		}
		return apperr.Wrap(apperr.KindVerification, err, "could not verify transaction on %s, try again later", chain)
	}
	if !ok {
		return apperr.New(apperr.KindVerification, "transaction does not pay %s into escrow on %s", e.Amount.String(), chain)
	}

	var funded *models.Escrow
	err = txn.Run(ctx, s.db, func(tx pgx.Tx) error {
		locked, err := s.lockEscrow(ctx, tx, id)
		if err != nil {
			return err
		}
		if locked.Status != models.EscrowStatusPending || locked.TransactionHash != nil {
			return apperr.InvalidTransition("escrow is %s; only pending escrows can be funded", locked.Status)
		}
		now := s.now()
		releaseAt := now.Add(s.cfg.AutoReleaseAfter)
		hash := txRef
		locked.Status = models.EscrowStatusFunded
		locked.TransactionHash = &hash
		locked.FundedAt = &now
		locked.AutoReleaseAt = &releaseAt
		locked.UpdatedAt = now
		if err := s.escrows.Update(ctx, tx, locked); err != nil {
			if errors.Is(err, models.ErrTransactionReused) {
				return apperr.Validation("transaction already funds another escrow")
			}
			return fmt.Errorf("update escrow: %w", err)
		}
		if err := s.scheduler.ScheduleOnce(ctx, tx, scheduler.AutoReleaseKey(id), releaseAt, scheduler.AutoReleaseArgs{EscrowID: id}); err != nil {
			return fmt.Errorf("schedule auto-release: %w", err)
		}
		funded = locked
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.EscrowTransition(string(models.EscrowStatusPending), string(models.EscrowStatusFunded))
	s.log.Info("escrow funded", "escrow_id", id, "chain", chain, "auto_release_at", funded.AutoReleaseAt)
	s.publish(ctx,
		models.NewEvent(models.EventEscrowFunded, id, escrowData(funded), funded.BuyerID, funded.SellerID),
		models.NewEvent(models.EventOrderReceived, id, escrowData(funded), funded.SellerID),
	)
	return nil
}

type DisputeParams struct {
	EscrowID  uuid.UUID
	Initiator uuid.UUID
	Reason    string
	Evidence  []string
}

// Dispute freezes a funded escrow and withdraws its auto-release.
func (s *Service) Dispute(ctx context.Context, p DisputeParams) error {
	reason := strings.TrimSpace(p.Reason)
	if reason == "" {
		return apperr.Validation("dispute reason is required")
	}
	var disputed *models.Escrow
	err := txn.Run(ctx, s.db, func(tx pgx.Tx) error {
		e, err := s.lockEscrow(ctx, tx, p.EscrowID)
		if err != nil {
			return err
		}
		if !e.IsParty(p.Initiator) {
			return apperr.Unauthorized("only the buyer or seller can dispute this escrow")
		}
		if e.Status != models.EscrowStatusFunded {
			return apperr.InvalidTransition("escrow is %s; only funded escrows can be disputed", e.Status)
		}
		now := s.now()
		entry := models.ConditionEntry{
			Kind: models.ConditionKindDispute,
			Dispute: &models.DisputeRecord{
				Initiator: p.Initiator,
				Reason:    reason,
				Evidence:  append([]string(nil), p.Evidence...),
				At:        now,
			},
		}
		if err := e.Conditions.Append(entry); err != nil {
			return apperr.Validation("dispute: %v", err)
		}
		e.Status = models.EscrowStatusDisputed
		e.DisputedAt = &now
		e.AutoReleaseAt = nil
		e.UpdatedAt = now
		if err := s.escrows.Update(ctx, tx, e); err != nil {
			return fmt.Errorf("update escrow: %w", err)
		}
		if err := s.scheduler.Cancel(ctx, tx, scheduler.AutoReleaseKey(e.ID)); err != nil {
			return fmt.Errorf("cancel auto-release: %w", err)
		}
		disputed = e
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.EscrowTransition(string(models.EscrowStatusFunded), string(models.EscrowStatusDisputed))
	s.log.Info("escrow disputed", "escrow_id", p.EscrowID, "initiator", p.Initiator)
	data := escrowData(disputed)
	data["reason"] = reason
	s.publish(ctx, models.NewEvent(models.EventEscrowDisputed, p.EscrowID, data, disputed.BuyerID, disputed.SellerID))
	return nil
}

// Release moves an escrow to released for the given reason. Releasing an
// already released escrow is a no-op. An auto-release that finds the escrow
// disputed, pending or expired is logged and skipped.
func (s *Service) Release(ctx context.Context, id uuid.UUID, reason string) error {
	return s.release(ctx, id, reason, uuid.Nil, nil)
}

// AutoRelease is the scheduled auto-release command.
func (s *Service) AutoRelease(ctx context.Context, id uuid.UUID) error {
	return s.release(ctx, id, models.ReleaseReasonAutoRelease, uuid.Nil, nil)
}

// ConfirmDelivery releases the escrow on the buyer's confirmation.
func (s *Service) ConfirmDelivery(ctx context.Context, id, buyerID uuid.UUID) error {
	if buyerID == uuid.Nil {
		return apperr.Unauthorized("only the buyer can confirm delivery")
	}
	return s.release(ctx, id, models.ReleaseReasonBuyerConfirmed, buyerID, nil)
}

// ResolveDispute records the arbiter's outcome and releases the disputed escrow.
func (s *Service) ResolveDispute(ctx context.Context, id uuid.UUID, inFavorOf, note string) error {
	if inFavorOf != models.ResolutionBuyer && inFavorOf != models.ResolutionSeller {
		return apperr.Validation("resolution must favour %q or %q", models.ResolutionBuyer, models.ResolutionSeller)
	}
	return s.release(ctx, id, models.ReleaseReasonDisputeResolution, uuid.Nil, &models.ResolutionRecord{
		InFavorOf: inFavorOf,
		Note:      strings.TrimSpace(note),
	})
}

func (s *Service) release(ctx context.Context, id uuid.UUID, reason string, actor uuid.UUID, resolution *models.ResolutionRecord) error {
	var released *models.Escrow
	var from models.EscrowStatus
	err := txn.Run(ctx, s.db, func(tx pgx.Tx) error {
		e, err := s.lockEscrow(ctx, tx, id)
		if err != nil {
			return err
		}
		if actor != uuid.Nil && actor != e.BuyerID {
			return apperr.Unauthorized("only the buyer can confirm delivery")
		}
		if e.Status == models.EscrowStatusReleased {
			s.log.Info("escrow already released", "escrow_id", id, "reason", reason)
			return nil
		}
		now := s.now()
		switch reason {
		case models.ReleaseReasonAutoRelease:
			if e.Status != models.EscrowStatusFunded && e.Status != models.EscrowStatusConditionsMet {
				s.log.Info("auto-release skipped", "escrow_id", id, "status", e.Status)
				return nil
			}
		case models.ReleaseReasonBuyerConfirmed:
			if e.Status != models.EscrowStatusFunded && e.Status != models.EscrowStatusConditionsMet {
				return apperr.InvalidTransition("escrow is %s; delivery can only be confirmed on a funded escrow", e.Status)
			}
		case models.ReleaseReasonDisputeResolution:
			if e.Status != models.EscrowStatusDisputed {
				return apperr.InvalidTransition("escrow is %s; only disputed escrows can be resolved", e.Status)
			}
			if resolution != nil {
				r := *resolution
				r.At = now
				if err := e.Conditions.Append(models.ConditionEntry{Kind: models.ConditionKindResolution, Resolution: &r}); err != nil {
					return apperr.Validation("resolution: %v", err)
				}
			}
		default:
			return apperr.Validation("unknown release reason %q", reason)
		}
		if !models.CanTransition(e.Status, models.EscrowStatusReleased) {
			return apperr.InvalidTransition("escrow cannot move from %s to released", e.Status)
		}

		from = e.Status
		r := reason
		e.Status = models.EscrowStatusReleased
		e.ReleasedAt = &now
		e.ReleaseReason = &r
		e.AutoReleaseAt = nil
		e.UpdatedAt = now
		if err := s.escrows.Update(ctx, tx, e); err != nil {
			return fmt.Errorf("update escrow: %w", err)
		}
		key := scheduler.AutoReleaseKey(id)
		if reason == models.ReleaseReasonAutoRelease {
			// The firing job is this command; only forget its index entry.
			err = s.scheduler.Complete(ctx, tx, key)
		} else {
			err = s.scheduler.Cancel(ctx, tx, key)
		}
		if err != nil {
			return fmt.Errorf("clear auto-release: %w", err)
		}
		released = e
		return nil
	})
	if err != nil || released == nil {
		return err
	}
	s.metrics.EscrowTransition(string(from), string(models.EscrowStatusReleased))
	s.log.Info("escrow released", "escrow_id", id, "reason", reason, "from", from)
	data := escrowData(released)
	data["reason"] = reason
	s.publish(ctx, models.NewEvent(models.EventEscrowReleased, id, data, released.BuyerID, released.SellerID))
	return nil
}

// MarkConditionsMet records an external delivery signal on a funded escrow.
// The auto-release stays scheduled. Repeating the signal is a no-op.
func (s *Service) MarkConditionsMet(ctx context.Context, id uuid.UUID, terms models.Terms) error {
	var updated *models.Escrow
	err := txn.Run(ctx, s.db, func(tx pgx.Tx) error {
		e, err := s.lockEscrow(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.Status == models.EscrowStatusConditionsMet {
			return nil
		}
		if e.Status != models.EscrowStatusFunded {
			return apperr.InvalidTransition("escrow is %s; only funded escrows can meet their conditions", e.Status)
		}
		now := s.now()
		if terms.DeliveredAt == nil {
			terms.DeliveredAt = &now
		}
		if terms.Source == "" {
			terms.Source = "delivery_signal"
		}
		if err := e.Conditions.Append(models.ConditionEntry{Kind: models.ConditionKindTerms, Terms: &terms}); err != nil {
			return apperr.Validation("conditions: %v", err)
		}
		e.Status = models.EscrowStatusConditionsMet
		e.UpdatedAt = now
		if err := s.escrows.Update(ctx, tx, e); err != nil {
			return fmt.Errorf("update escrow: %w", err)
		}
		updated = e
		return nil
	})
	if err != nil || updated == nil {
		return err
	}
	s.metrics.EscrowTransition(string(models.EscrowStatusFunded), string(models.EscrowStatusConditionsMet))
	s.publish(ctx, models.NewEvent(models.EventEscrowConditionsMet, id, escrowData(updated), updated.BuyerID, updated.SellerID))
	return nil
}

// Expire closes a funded escrow that will not be confirmed and withdraws its
// auto-release. Expiring an expired escrow is a no-op.
func (s *Service) Expire(ctx context.Context, id uuid.UUID, reason string) error {
	var expired *models.Escrow
	err := txn.Run(ctx, s.db, func(tx pgx.Tx) error {
		e, err := s.lockEscrow(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.Status == models.EscrowStatusExpired {
			return nil
		}
		if !models.CanTransition(e.Status, models.EscrowStatusExpired) {
			return apperr.InvalidTransition("escrow is %s; only funded escrows can expire", e.Status)
		}
		now := s.now()
		e.Status = models.EscrowStatusExpired
		e.ExpiredAt = &now
		e.AutoReleaseAt = nil
		e.UpdatedAt = now
		if err := s.escrows.Update(ctx, tx, e); err != nil {
			return fmt.Errorf("update escrow: %w", err)
		}
		if err := s.scheduler.Cancel(ctx, tx, scheduler.AutoReleaseKey(id)); err != nil {
			return fmt.Errorf("cancel auto-release: %w", err)
		}
		expired = e
		return nil
	})
	if err != nil || expired == nil {
		return err
	}
	s.metrics.EscrowTransition(string(models.EscrowStatusFunded), string(models.EscrowStatusExpired))
	s.log.Info("escrow expired", "escrow_id", id, "reason", reason)
	data := escrowData(expired)
	if reason = strings.TrimSpace(reason); reason != "" {
		data["reason"] = reason
	}
	s.publish(ctx, models.NewEvent(models.EventEscrowExpired, id, data, expired.BuyerID, expired.SellerID))
	return nil
}

// AttachSellerWallet replaces the pending_wallet_setup placeholder with the
// seller's payout address.
func (s *Service) AttachSellerWallet(ctx context.Context, id, sellerID uuid.UUID, wallet string) error {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" || wallet == models.SellerWalletPending {
		return apperr.Validation("wallet address is required")
	}
	return txn.Run(ctx, s.db, func(tx pgx.Tx) error {
		e, err := s.lockEscrow(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.SellerID != sellerID {
			return apperr.Unauthorized("only the seller can set the payout wallet")
		}
		if !e.AwaitingSellerWallet() {
			return apperr.InvalidTransition("payout wallet already set")
		}
		if e.Status.Terminal() {
			return apperr.InvalidTransition("escrow is %s", e.Status)
		}
		e.SellerWallet = wallet
		e.UpdatedAt = s.now()
		if err := s.escrows.Update(ctx, tx, e); err != nil {
			return fmt.Errorf("update escrow: %w", err)
		}
		return nil
	})
}

// RecoverAutoReleases re-registers the auto-release command for every funded
// or conditions_met escrow that has none. It runs at start-up.
func (s *Service) RecoverAutoReleases(ctx context.Context) (int, error) {
	escrows, err := s.escrows.ListReleasable(ctx)
	if err != nil {
		return 0, fmt.Errorf("list releasable escrows: %w", err)
	}
	recovered := 0
	for _, e := range escrows {
		key := scheduler.AutoReleaseKey(e.ID)
		ok, err := s.scheduler.Scheduled(ctx, key)
		if err != nil {
			return recovered, fmt.Errorf("lookup %s: %w", key, err)
		}
		if ok {
			continue
		}
		err = txn.Run(ctx, s.db, func(tx pgx.Tx) error {
			locked, err := s.lockEscrow(ctx, tx, e.ID)
			if err != nil {
				return err
			}
			if locked.Status != models.EscrowStatusFunded && locked.Status != models.EscrowStatusConditionsMet {
				return nil
			}
			fireAt := s.now()
			switch {
			case locked.AutoReleaseAt != nil:
				fireAt = *locked.AutoReleaseAt
			case locked.FundedAt != nil:
				fireAt = locked.FundedAt.Add(s.cfg.AutoReleaseAfter)
			}
			if locked.AutoReleaseAt == nil {
				locked.AutoReleaseAt = &fireAt
				locked.UpdatedAt = s.now()
				if err := s.escrows.Update(ctx, tx, locked); err != nil {
					return fmt.Errorf("update escrow: %w", err)
				}
			}
			return s.scheduler.ScheduleOnce(ctx, tx, key, fireAt, scheduler.AutoReleaseArgs{EscrowID: e.ID})
		})
		if err != nil {
			return recovered, fmt.Errorf("recover auto-release for %s: %w", e.ID, err)
		}
		s.log.Info("auto-release recovered", "escrow_id", e.ID)
		recovered++
	}
	return recovered, nil
}

// RemindSellerWalletSetup emits a reminder for every open escrow still waiting
// for the seller's payout address.
func (s *Service) RemindSellerWalletSetup(ctx context.Context) (int, error) {
	escrows, err := s.escrows.ListAwaitingSellerWallet(ctx)
	if err != nil {
		return 0, fmt.Errorf("list escrows awaiting seller wallet: %w", err)
	}
	for _, e := range escrows {
		data := escrowData(e)
		data["waiting_since"] = e.CreatedAt.Format(time.RFC3339)
		s.publish(ctx, models.NewEvent(models.EventSellerWalletReminder, e.ID, data, e.SellerID))
	}
	return len(escrows), nil
}
