package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/auction"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/middleware"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

// AuctionService is the auction engine surface served over HTTP.
type AuctionService interface {
	OpenAuction(ctx context.Context, p auction.OpenAuctionParams) (*models.Listing, error)
	CancelAuction(ctx context.Context, listingID, sellerID uuid.UUID) error
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	PlaceBid(ctx context.Context, p auction.PlaceBidParams) (uuid.UUID, error)
	ListBids(ctx context.Context, listingID uuid.UUID) ([]*models.Bid, error)
	CompletePayment(ctx context.Context, p auction.CompletePaymentParams) (*auction.PaymentReceipt, error)
}

// AuctionHandler serves /v1/auctions endpoints.
type AuctionHandler struct {
	Auctions AuctionService
	Logger   *slog.Logger
}

// --- POST /v1/auctions ---

type openAuctionRequest struct {
	ListingID    *uuid.UUID      `json:"listing_id"`
	SellerWallet string          `json:"seller_wallet"`
	StartingBid  decimal.Decimal `json:"starting_bid"`
	BidIncrement decimal.Decimal `json:"bid_increment"`
	EndDate      time.Time       `json:"auction_end_date"`
}

// Open registers an auction with the caller as seller.
func (h *AuctionHandler) Open(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	var req openAuctionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	listingID := uuid.New()
	if req.ListingID != nil {
		listingID = *req.ListingID
	}
	wallet := req.SellerWallet
	if wallet == "" {
		wallet = who.Wallet
	}
	l, err := h.Auctions.OpenAuction(r.Context(), auction.OpenAuctionParams{
		ListingID:    listingID,
		SellerID:     who.UserID,
		SellerWallet: wallet,
		StartingBid:  req.StartingBid,
		BidIncrement: req.BidIncrement,
		EndDate:      req.EndDate,
	})
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// --- GET /v1/auctions/{id} ---

type auctionView struct {
	*models.Listing
	MinimumNextBid decimal.Decimal `json:"minimum_next_bid"`
}

func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	l, err := h.Auctions.GetAuction(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auctionView{Listing: l, MinimumNextBid: l.MinimumNextBid()})
}

// --- POST /v1/auctions/{id}/cancel ---

func (h *AuctionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	if err := h.Auctions.CancelAuction(r.Context(), id, who.UserID); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	l, err := h.Auctions.GetAuction(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// --- POST /v1/auctions/{id}/bids ---

type placeBidRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"wallet_address"`
	Chain         models.Chain    `json:"chain"`
}

type placeBidResponse struct {
	BidID  uuid.UUID        `json:"bid_id"`
	Status models.BidStatus `json:"status"`
}

func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	var req placeBidRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	wallet := req.WalletAddress
	if wallet == "" {
		wallet = who.Wallet
	}
	bidID, err := h.Auctions.PlaceBid(r.Context(), auction.PlaceBidParams{
		ListingID:     id,
		BidderID:      who.UserID,
		Amount:        req.Amount,
		WalletAddress: wallet,
		Chain:         req.Chain,
	})
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, placeBidResponse{BidID: bidID, Status: models.BidStatusActive})
}

// --- GET /v1/auctions/{id}/bids ---

// bidView is a bid as listed publicly. Bidder and wallet are shown only to
// the bidder, the listing's seller and arbiters.
type bidView struct {
	ID            uuid.UUID        `json:"id"`
	ListingID     uuid.UUID        `json:"listing_id"`
	BidderID      *uuid.UUID       `json:"bidder_id,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	WalletAddress string           `json:"wallet_address,omitempty"`
	Chain         models.Chain     `json:"chain"`
	Status        models.BidStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
}

func (h *AuctionHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	bids, err := h.Auctions.ListBids(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	who, signedIn := middleware.IdentityFromCtx(r.Context())
	seesAll := signedIn && who.IsArbiter()
	if signedIn && !seesAll && len(bids) > 0 {
		l, err := h.Auctions.GetAuction(r.Context(), id)
		if err != nil {
			writeError(w, h.Logger, r, err)
			return
		}
		seesAll = l.SellerID == who.UserID
	}
	out := make([]bidView, 0, len(bids))
	for _, b := range bids {
		v := bidView{
			ID:        b.ID,
			ListingID: b.ListingID,
			Amount:    b.Amount,
			Chain:     b.Chain,
			Status:    b.Status,
			CreatedAt: b.CreatedAt,
		}
		if seesAll || (signedIn && b.BidderID == who.UserID) {
			bidder := b.BidderID
			v.BidderID = &bidder
			v.WalletAddress = b.WalletAddress
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

// --- POST /v1/auctions/{id}/payment ---

type completePaymentRequest struct {
	TxReference   string `json:"tx_reference"`
	WalletAddress string `json:"wallet_address"`
}

// CompletePayment pays the caller's winning bid through the payment processor.
func (h *AuctionHandler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	var req completePaymentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	wallet := req.WalletAddress
	if wallet == "" {
		wallet = who.Wallet
	}
	receipt, err := h.Auctions.CompletePayment(r.Context(), auction.CompletePaymentParams{
		AuctionID:     id,
		WinnerID:      who.UserID,
		TxReference:   req.TxReference,
		WalletAddress: wallet,
	})
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
