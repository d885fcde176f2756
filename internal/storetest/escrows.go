package storetest

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

// Escrows is the escrow table view of a Store.
type Escrows struct{ s *Store }

func (s *Store) Escrows() *Escrows { return &Escrows{s: s} }

func (r *Escrows) Insert(_ context.Context, tx pgx.Tx, e *models.Escrow) error {
	var err error
	r.s.write(tx, func(d *tables) func(*tables) {
		if _, ok := d.escrows[e.ID]; ok {
			err = fmt.Errorf("escrow %s already exists", e.ID)
			return nil
		}
		if e.TransactionHash != nil && d.hashUsed(e.Chain, *e.TransactionHash, e.ID) {
			err = models.ErrTransactionReused
			return nil
		}
		d.escrows[e.ID] = *copyEscrow(*e)
		return func(d *tables) { delete(d.escrows, e.ID) }
	})
	return err
}

func (r *Escrows) GetByID(_ context.Context, id uuid.UUID) (*models.Escrow, error) {
	var out *models.Escrow
	r.s.read(func(d *tables) {
		if e, ok := d.escrows[id]; ok {
			out = copyEscrow(e)
		}
	})
	if out == nil {
		return nil, pgx.ErrNoRows
	}
	return out, nil
}

func (r *Escrows) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Escrow, error) {
	lockRow(tx, escrowKey(id))
	return r.GetByID(ctx, id)
}

func (r *Escrows) Update(_ context.Context, tx pgx.Tx, e *models.Escrow) error {
	var err error
	r.s.write(tx, func(d *tables) func(*tables) {
		prev, ok := d.escrows[e.ID]
		if !ok {
			err = pgx.ErrNoRows
			return nil
		}
		if e.TransactionHash != nil && d.hashUsed(e.Chain, *e.TransactionHash, e.ID) {
			err = models.ErrTransactionReused
			return nil
		}
		d.escrows[e.ID] = *copyEscrow(*e)
		return func(d *tables) { d.escrows[e.ID] = prev }
	})
	return err
}

func (r *Escrows) TransactionUsed(_ context.Context, chain models.Chain, txHash string) (bool, error) {
	var used bool
	r.s.read(func(d *tables) { used = d.hashUsed(chain, txHash, uuid.Nil) })
	return used, nil
}

func (d *tables) hashUsed(chain models.Chain, txHash string, except uuid.UUID) bool {
	for id, e := range d.escrows {
		if id != except && e.Chain == chain && e.TransactionHash != nil && chain.CanonicalTxRef(*e.TransactionHash) == chain.CanonicalTxRef(txHash) {
			return true
		}
	}
	return false
}

func (r *Escrows) ListAwaitingSellerWallet(context.Context) ([]*models.Escrow, error) {
	return r.list(func(e models.Escrow) bool {
		return !e.Status.Terminal() && e.AwaitingSellerWallet()
	}), nil
}

func (r *Escrows) ListReleasable(context.Context) ([]*models.Escrow, error) {
	return r.list(func(e models.Escrow) bool {
		return e.Status == models.EscrowStatusFunded || e.Status == models.EscrowStatusConditionsMet
	}), nil
}

func (r *Escrows) list(match func(models.Escrow) bool) []*models.Escrow {
	var out []*models.Escrow
	r.s.read(func(d *tables) {
		for _, e := range d.escrows {
			if match(e) {
				out = append(out, copyEscrow(e))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
