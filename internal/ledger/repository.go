package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

const uniqueViolation = "23505"

const escrowColumns = `id, listing_id, seller_id, seller_wallet, buyer_id, buyer_wallet, amount, chain,
	conditions, transaction_hash, status, auto_release_at, funded_at, disputed_at, released_at,
	release_reason, expired_at, created_at, updated_at`

// EscrowRepository persists escrows in Postgres.
type EscrowRepository struct {
	pool *pgxpool.Pool
}

func NewEscrowRepository(pool *pgxpool.Pool) *EscrowRepository {
	return &EscrowRepository{pool: pool}
}

var _ EscrowRepo = (*EscrowRepository)(nil)

func scanEscrow(row pgx.Row) (*models.Escrow, error) {
	var e models.Escrow
	var conditions []byte
	err := row.Scan(&e.ID, &e.ListingID, &e.SellerID, &e.SellerWallet, &e.BuyerID, &e.BuyerWallet,
		&e.Amount, &e.Chain, &conditions, &e.TransactionHash, &e.Status, &e.AutoReleaseAt, &e.FundedAt,
		&e.DisputedAt, &e.ReleasedAt, &e.ReleaseReason, &e.ExpiredAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditions, &e.Conditions); err != nil {
		return nil, fmt.Errorf("decode conditions of escrow %s: %w", e.ID, err)
	}
	return &e, nil
}

func mapEscrowWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation &&
		(pgErr.ConstraintName == "escrows_chain_transaction_hash_key" || pgErr.ConstraintName == "escrows_chain_hex_transaction_hash_key") {
		return models.ErrTransactionReused
	}
	return err
}

func (r *EscrowRepository) Insert(ctx context.Context, tx pgx.Tx, e *models.Escrow) error {
	conditions, err := json.Marshal(e.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO escrows (`+escrowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, e.ID, e.ListingID, e.SellerID, e.SellerWallet, e.BuyerID, e.BuyerWallet, e.Amount, e.Chain,
		conditions, e.TransactionHash, e.Status, e.AutoReleaseAt, e.FundedAt, e.DisputedAt, e.ReleasedAt,
		e.ReleaseReason, e.ExpiredAt, e.CreatedAt, e.UpdatedAt)
	return mapEscrowWriteErr(err)
}

func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	return scanEscrow(r.pool.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE id = $1`, id))
}

// GetByIDForUpdate locks the escrow row for the rest of tx.
func (r *EscrowRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Escrow, error) {
	return scanEscrow(tx.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrows WHERE id = $1 FOR UPDATE`, id))
}

// Update writes the mutable columns. Amount, parties and created_at are never
// rewritten; the schema additionally refuses to overwrite a transaction hash.
func (r *EscrowRepository) Update(ctx context.Context, tx pgx.Tx, e *models.Escrow) error {
	conditions, err := json.Marshal(e.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE escrows
		SET seller_wallet = $2, chain = $3, conditions = $4, transaction_hash = $5, status = $6,
		    auto_release_at = $7, funded_at = $8, disputed_at = $9, released_at = $10,
		    release_reason = $11, expired_at = $12, updated_at = $13
		WHERE id = $1
	`, e.ID, e.SellerWallet, e.Chain, conditions, e.TransactionHash, e.Status, e.AutoReleaseAt,
		e.FundedAt, e.DisputedAt, e.ReleasedAt, e.ReleaseReason, e.ExpiredAt, e.UpdatedAt)
	if err != nil {
		return mapEscrowWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *EscrowRepository) TransactionUsed(ctx context.Context, chain models.Chain, txHash string) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM escrows WHERE chain = $1 AND (transaction_hash = $2
			OR ($1 <> 'solana' AND lower(transaction_hash) = lower($2))))
	`, chain, txHash).Scan(&used)
	return used, err
}

func (r *EscrowRepository) ListAwaitingSellerWallet(ctx context.Context) ([]*models.Escrow, error) {
	return r.list(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE seller_wallet IN ('', $1) AND status NOT IN ('released', 'expired')
		ORDER BY created_at
	`, models.SellerWalletPending)
}

func (r *EscrowRepository) ListReleasable(ctx context.Context) ([]*models.Escrow, error) {
	return r.list(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE status IN ('funded', 'conditions_met')
		ORDER BY created_at
	`)
}

func (r *EscrowRepository) list(ctx context.Context, query string, args ...any) ([]*models.Escrow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const paymentColumns = `id, auction_id, winner_id, winning_bid_id, amount, chain, payment_deadline, status,
	transaction_hash, escrow_id, paid_at, expired_at, created_at, updated_at`

// PaymentRepository persists auction payments in Postgres.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

var _ PaymentRepo = (*PaymentRepository)(nil)

func scanPayment(row pgx.Row) (*models.AuctionPayment, error) {
	var p models.AuctionPayment
	err := row.Scan(&p.ID, &p.AuctionID, &p.WinnerID, &p.WinningBidID, &p.Amount, &p.Chain,
		&p.PaymentDeadline, &p.Status, &p.TransactionHash, &p.EscrowID, &p.PaidAt, &p.ExpiredAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) Insert(ctx context.Context, tx pgx.Tx, p *models.AuctionPayment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO auction_payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, p.ID, p.AuctionID, p.WinnerID, p.WinningBidID, p.Amount, p.Chain, p.PaymentDeadline, p.Status,
		p.TransactionHash, p.EscrowID, p.PaidAt, p.ExpiredAt, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuctionPayment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM auction_payments WHERE id = $1`, id))
}

func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.AuctionPayment, error) {
	return scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM auction_payments WHERE id = $1 FOR UPDATE`, id))
}

func (r *PaymentRepository) GetByAuctionAndWinner(ctx context.Context, auctionID, winnerID uuid.UUID) (*models.AuctionPayment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM auction_payments WHERE auction_id = $1 AND winner_id = $2
	`, auctionID, winnerID))
}

func (r *PaymentRepository) Update(ctx context.Context, tx pgx.Tx, p *models.AuctionPayment) error {
	tag, err := tx.Exec(ctx, `
		UPDATE auction_payments
		SET status = $2, transaction_hash = $3, escrow_id = $4, paid_at = $5, expired_at = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, p.Status, p.TransactionHash, p.EscrowID, p.PaidAt, p.ExpiredAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
