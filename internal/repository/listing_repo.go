package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

const listingColumns = `id, seller_id, seller_wallet, starting_bid, bid_increment, current_bid,
	auction_end_date, auction_status, sold_at, created_at, updated_at`

// ListingRepo persists the auction-owned columns of a listing.
type ListingRepo struct {
	pool *pgxpool.Pool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

func scanListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(&l.ID, &l.SellerID, &l.SellerWallet, &l.StartingBid, &l.BidIncrement, &l.CurrentBid,
		&l.AuctionEndDate, &l.AuctionStatus, &l.SoldAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ListingRepo) Insert(ctx context.Context, tx pgx.Tx, l *models.Listing) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO listing_auctions (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, l.ID, l.SellerID, l.SellerWallet, l.StartingBid, l.BidIncrement, l.CurrentBid,
		l.AuctionEndDate, l.AuctionStatus, l.SoldAt, l.CreatedAt, l.UpdatedAt)
	return err
}

func (r *ListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return scanListing(r.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listing_auctions WHERE id = $1`, id))
}

// GetByIDForUpdate locks the listing row for the rest of tx. Every bid write
// happens under this lock.
func (r *ListingRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Listing, error) {
	return scanListing(tx.QueryRow(ctx, `SELECT `+listingColumns+` FROM listing_auctions WHERE id = $1 FOR UPDATE`, id))
}

func (r *ListingRepo) Update(ctx context.Context, tx pgx.Tx, l *models.Listing) error {
	tag, err := tx.Exec(ctx, `
		UPDATE listing_auctions
		SET seller_wallet = $2, current_bid = $3, auction_status = $4, sold_at = $5, updated_at = $6
		WHERE id = $1
	`, l.ID, l.SellerWallet, l.CurrentBid, l.AuctionStatus, l.SoldAt, l.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
