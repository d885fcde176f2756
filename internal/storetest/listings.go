package storetest

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

// Listings is the listing-auction table view of a Store.
type Listings struct{ s *Store }

func (s *Store) Listings() *Listings { return &Listings{s: s} }

func (r *Listings) Insert(_ context.Context, tx pgx.Tx, l *models.Listing) error {
	var err error
	r.s.write(tx, func(d *tables) func(*tables) {
		if _, ok := d.listings[l.ID]; ok {
			err = fmt.Errorf("listing %s already exists", l.ID)
			return nil
		}
		d.listings[l.ID] = *l
		return func(d *tables) { delete(d.listings, l.ID) }
	})
	return err
}

func (r *Listings) GetByID(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	var out *models.Listing
	r.s.read(func(d *tables) {
		if l, ok := d.listings[id]; ok {
			out = &l
		}
	})
	if out == nil {
		return nil, pgx.ErrNoRows
	}
	return out, nil
}

func (r *Listings) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Listing, error) {
	lockRow(tx, listingKey(id))
	return r.GetByID(ctx, id)
}

func (r *Listings) Update(_ context.Context, tx pgx.Tx, l *models.Listing) error {
	var err error
	r.s.write(tx, func(d *tables) func(*tables) {
		prev, ok := d.listings[l.ID]
		if !ok {
			err = pgx.ErrNoRows
			return nil
		}
		d.listings[l.ID] = *l
		return func(d *tables) { d.listings[l.ID] = prev }
	})
	return err
}

// Bids is the bid table view of a Store.
type Bids struct{ s *Store }

func (s *Store) Bids() *Bids { return &Bids{s: s} }

func (r *Bids) Insert(_ context.Context, tx pgx.Tx, b *models.Bid) error {
	var err error
	r.s.write(tx, func(d *tables) func(*tables) {
		if b.Status == models.BidStatusActive {
			for _, other := range d.bids {
				if other.ListingID == b.ListingID && other.Status == models.BidStatusActive {
					err = fmt.Errorf("listing %s already has an active bid", b.ListingID)
					return nil
				}
			}
		}
		d.bids = append(d.bids, *b)
		id := b.ID
		return func(d *tables) {
			for i := range d.bids {
				if d.bids[i].ID == id {
					d.bids = append(d.bids[:i], d.bids[i+1:]...)
					return
				}
			}
		}
	})
	return err
}

// setStatus rewrites matching bids of a listing and returns copies of the old rows.
func (r *Bids) setStatus(tx pgx.Tx, listingID uuid.UUID, match func(models.Bid) bool, status models.BidStatus) []*models.Bid {
	var changed []*models.Bid
	r.s.write(tx, func(d *tables) func(*tables) {
		prev := make(map[uuid.UUID]models.Bid)
		for i, b := range d.bids {
			if b.ListingID != listingID || !match(b) {
				continue
			}
			prev[b.ID] = b
			old := b
			changed = append(changed, &old)
			d.bids[i].Status = status
		}
		return func(d *tables) {
			for i, b := range d.bids {
				if p, ok := prev[b.ID]; ok {
					d.bids[i] = p
				}
			}
		}
	})
	return changed
}

func (r *Bids) MarkOutbid(_ context.Context, tx pgx.Tx, listingID, keepBidID uuid.UUID) ([]*models.Bid, error) {
	return r.setStatus(tx, listingID, func(b models.Bid) bool {
		return b.ID != keepBidID && b.Status == models.BidStatusActive
	}, models.BidStatusOutbid), nil
}

func (r *Bids) GetActive(_ context.Context, _ pgx.Tx, listingID uuid.UUID) (*models.Bid, error) {
	var out *models.Bid
	r.s.read(func(d *tables) {
		for _, b := range d.bids {
			if b.ListingID == listingID && b.Status == models.BidStatusActive {
				b := b
				out = &b
				return
			}
		}
	})
	if out == nil {
		return nil, pgx.ErrNoRows
	}
	return out, nil
}

func (r *Bids) Settle(_ context.Context, tx pgx.Tx, listingID uuid.UUID, winnerBidID *uuid.UUID) error {
	if winnerBidID != nil {
		r.setStatus(tx, listingID, func(b models.Bid) bool { return b.ID == *winnerBidID }, models.BidStatusWon)
	}
	r.setStatus(tx, listingID, func(b models.Bid) bool {
		return b.Status == models.BidStatusActive || b.Status == models.BidStatusOutbid
	}, models.BidStatusLost)
	return nil
}

func (r *Bids) ListByListing(_ context.Context, listingID uuid.UUID) ([]*models.Bid, error) {
	var out []*models.Bid
	r.s.read(func(d *tables) {
		for _, b := range d.bids {
			if b.ListingID == listingID {
				b := b
				out = append(out, &b)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	return out, nil
}
