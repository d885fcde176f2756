package storetest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

// Payments is the auction payment table view of a Store.
type Payments struct{ s *Store }

func (s *Store) Payments() *Payments { return &Payments{s: s} }

func (r *Payments) Insert(_ context.Context, tx pgx.Tx, p *models.AuctionPayment) error {
	var err error
	r.s.write(tx, func(d *tables) func(*tables) {
		for _, existing := range d.payments {
			if existing.AuctionID == p.AuctionID {
				err = fmt.Errorf("auction %s already has a payment", p.AuctionID)
				return nil
			}
		}
		d.payments[p.ID] = *p
		return func(d *tables) { delete(d.payments, p.ID) }
	})
	return err
}

func (r *Payments) GetByID(_ context.Context, id uuid.UUID) (*models.AuctionPayment, error) {
	var out *models.AuctionPayment
	r.s.read(func(d *tables) {
		if p, ok := d.payments[id]; ok {
			out = &p
		}
	})
	if out == nil {
		return nil, pgx.ErrNoRows
	}
	return out, nil
}

func (r *Payments) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.AuctionPayment, error) {
	lockRow(tx, paymentKey(id))
	return r.GetByID(ctx, id)
}

func (r *Payments) GetByAuctionAndWinner(_ context.Context, auctionID, winnerID uuid.UUID) (*models.AuctionPayment, error) {
	var out *models.AuctionPayment
	r.s.read(func(d *tables) {
		for _, p := range d.payments {
			if p.AuctionID == auctionID && p.WinnerID == winnerID {
				p := p
				out = &p
				return
			}
		}
	})
	if out == nil {
		return nil, pgx.ErrNoRows
	}
	return out, nil
}

func (r *Payments) Update(_ context.Context, tx pgx.Tx, p *models.AuctionPayment) error {
	var err error
	r.s.write(tx, func(d *tables) func(*tables) {
		prev, ok := d.payments[p.ID]
		if !ok {
			err = pgx.ErrNoRows
			return nil
		}
		d.payments[p.ID] = *p
		return func(d *tables) { d.payments[p.ID] = prev }
	})
	return err
}
