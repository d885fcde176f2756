package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

const bidColumns = `id, listing_id, bidder_id, amount, wallet_address, chain, status, created_at, updated_at`

type BidRepo struct {
	pool *pgxpool.Pool
}

func NewBidRepo(pool *pgxpool.Pool) *BidRepo {
	return &BidRepo{pool: pool}
}

func scanBid(row pgx.Row) (*models.Bid, error) {
	var b models.Bid
	err := row.Scan(&b.ID, &b.ListingID, &b.BidderID, &b.Amount, &b.WalletAddress, &b.Chain, &b.Status,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBids(rows pgx.Rows) ([]*models.Bid, error) {
	defer rows.Close()
	var list []*models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// Insert adds a bid. The bids_one_active_per_listing index rejects a second
// active bid for the same listing.
func (r *BidRepo) Insert(ctx context.Context, tx pgx.Tx, b *models.Bid) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bids (`+bidColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.ID, b.ListingID, b.BidderID, b.Amount, b.WalletAddress, b.Chain, b.Status, b.CreatedAt, b.UpdatedAt)
	return err
}

func (r *BidRepo) MarkOutbid(ctx context.Context, tx pgx.Tx, listingID, keepBidID uuid.UUID) ([]*models.Bid, error) {
	rows, err := tx.Query(ctx, `
		WITH prev AS (
			SELECT `+bidColumns+` FROM bids
			WHERE listing_id = $1 AND status = 'active' AND id <> $2
			FOR UPDATE
		)
		UPDATE bids SET status = 'outbid', updated_at = now()
		FROM prev WHERE bids.id = prev.id
		RETURNING prev.id, prev.listing_id, prev.bidder_id, prev.amount, prev.wallet_address, prev.chain,
		          prev.status, prev.created_at, prev.updated_at
	`, listingID, keepBidID)
	if err != nil {
		return nil, err
	}
	return collectBids(rows)
}

func (r *BidRepo) GetActive(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*models.Bid, error) {
	return scanBid(tx.QueryRow(ctx, `
		SELECT `+bidColumns+` FROM bids WHERE listing_id = $1 AND status = 'active'
	`, listingID))
}

// Settle marks the winning bid won and every other open bid of the listing lost.
func (r *BidRepo) Settle(ctx context.Context, tx pgx.Tx, listingID uuid.UUID, winnerBidID *uuid.UUID) error {
	if winnerBidID != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE bids SET status = 'won', updated_at = now() WHERE id = $1 AND listing_id = $2
		`, *winnerBidID, listingID); err != nil {
			return err
		}
	}
	_, err := tx.Exec(ctx, `
		UPDATE bids SET status = 'lost', updated_at = now()
		WHERE listing_id = $1 AND status IN ('active', 'outbid')
	`, listingID)
	return err
}

func (r *BidRepo) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*models.Bid, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bidColumns+` FROM bids WHERE listing_id = $1 ORDER BY amount DESC, created_at
	`, listingID)
	if err != nil {
		return nil, err
	}
	return collectBids(rows)
}
