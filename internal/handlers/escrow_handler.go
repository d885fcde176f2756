package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/apperr"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/ledger"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

// EscrowService is the ledger surface served over HTTP.
type EscrowService interface {
	Create(ctx context.Context, p ledger.CreateParams) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	Fund(ctx context.Context, id uuid.UUID, txRef string, chain models.Chain) error
	Dispute(ctx context.Context, p ledger.DisputeParams) error
	ConfirmDelivery(ctx context.Context, id, buyerID uuid.UUID) error
	ResolveDispute(ctx context.Context, id uuid.UUID, inFavorOf, note string) error
	MarkConditionsMet(ctx context.Context, id uuid.UUID, terms models.Terms) error
	Expire(ctx context.Context, id uuid.UUID, reason string) error
	AttachSellerWallet(ctx context.Context, id, sellerID uuid.UUID, wallet string) error
}

// EscrowHandler serves /v1/escrows endpoints.
type EscrowHandler struct {
	Escrows EscrowService
	Logger  *slog.Logger
}

// --- POST /v1/escrows ---

type createEscrowRequest struct {
	SellerID     uuid.UUID       `json:"seller_id"`
	SellerWallet string          `json:"seller_wallet"`
	BuyerWallet  string          `json:"buyer_wallet"`
	Amount       decimal.Decimal `json:"amount"`
	Chain        models.Chain    `json:"chain"`
	Terms        *models.Terms   `json:"terms"`
	ListingID    *uuid.UUID      `json:"listing_id"`
}

type createEscrowResponse struct {
	EscrowID uuid.UUID           `json:"escrow_id"`
	Status   models.EscrowStatus `json:"status"`
}

// Create opens a pending escrow with the caller as buyer.
func (h *EscrowHandler) Create(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	var req createEscrowRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	buyerWallet := req.BuyerWallet
	if buyerWallet == "" {
		buyerWallet = who.Wallet
	}
	var conditions models.Conditions
	if req.Terms != nil {
		conditions.Entries = []models.ConditionEntry{{Kind: models.ConditionKindTerms, Terms: req.Terms}}
	}
	id, err := h.Escrows.Create(r.Context(), ledger.CreateParams{
		SellerID:     req.SellerID,
		SellerWallet: req.SellerWallet,
		BuyerID:      who.UserID,
		BuyerWallet:  buyerWallet,
		Amount:       req.Amount,
		Chain:        req.Chain,
		Conditions:   conditions,
		ListingID:    req.ListingID,
	})
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createEscrowResponse{EscrowID: id, Status: models.EscrowStatusPending})
}

// --- GET /v1/escrows/{id} ---

// Get returns the escrow to its buyer, its seller or an arbiter.
func (h *EscrowHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	e, err := h.Escrows.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	if !e.IsParty(who.UserID) && !who.IsArbiter() {
		writeError(w, h.Logger, r, apperr.NotFound("escrow %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// --- POST /v1/escrows/{id}/fund ---

type fundRequest struct {
	TransactionHash string       `json:"transaction_hash"`
	Chain           models.Chain `json:"chain"`
}

func (h *EscrowHandler) Fund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	h.act(w, r, &req, func(ctx context.Context, id, _ uuid.UUID) error {
		return h.Escrows.Fund(ctx, id, req.TransactionHash, req.Chain)
	})
}

// --- POST /v1/escrows/{id}/dispute ---

type disputeRequest struct {
	Reason   string   `json:"reason"`
	Evidence []string `json:"evidence"`
}

func (h *EscrowHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	var req disputeRequest
	h.act(w, r, &req, func(ctx context.Context, id, userID uuid.UUID) error {
		return h.Escrows.Dispute(ctx, ledger.DisputeParams{EscrowID: id, Initiator: userID, Reason: req.Reason, Evidence: req.Evidence})
	})
}

// --- POST /v1/escrows/{id}/confirm ---

func (h *EscrowHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, nil, func(ctx context.Context, id, userID uuid.UUID) error {
		return h.Escrows.ConfirmDelivery(ctx, id, userID)
	})
}

// --- POST /v1/escrows/{id}/resolve (arbiter) ---

type resolveRequest struct {
	InFavorOf string `json:"in_favor_of"`
	Note      string `json:"note"`
}

func (h *EscrowHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	h.act(w, r, &req, func(ctx context.Context, id, _ uuid.UUID) error {
		return h.Escrows.ResolveDispute(ctx, id, req.InFavorOf, req.Note)
	})
}

// --- POST /v1/escrows/{id}/conditions-met (arbiter) ---

type conditionsMetRequest struct {
	Description string `json:"description"`
	Source      string `json:"source"`
}

func (h *EscrowHandler) ConditionsMet(w http.ResponseWriter, r *http.Request) {
	var req conditionsMetRequest
	h.act(w, r, &req, func(ctx context.Context, id, _ uuid.UUID) error {
		return h.Escrows.MarkConditionsMet(ctx, id, models.Terms{Description: req.Description, Source: req.Source})
	})
}

// --- POST /v1/escrows/{id}/expire (arbiter) ---

type expireRequest struct {
	Reason string `json:"reason"`
}

func (h *EscrowHandler) Expire(w http.ResponseWriter, r *http.Request) {
	var req expireRequest
	h.act(w, r, &req, func(ctx context.Context, id, _ uuid.UUID) error {
		return h.Escrows.Expire(ctx, id, req.Reason)
	})
}

// --- PUT /v1/escrows/{id}/seller-wallet ---

type sellerWalletRequest struct {
	WalletAddress string `json:"wallet_address"`
}

func (h *EscrowHandler) SetSellerWallet(w http.ResponseWriter, r *http.Request) {
	var req sellerWalletRequest
	h.act(w, r, &req, func(ctx context.Context, id, userID uuid.UUID) error {
		return h.Escrows.AttachSellerWallet(ctx, id, userID, req.WalletAddress)
	})
}

// act runs one state-changing command on the escrow named in the path and
// answers with its current state. Only the buyer, the seller or an arbiter may
// act; anyone else sees the escrow as missing. The visibility check runs
// before the body is decoded, so an unknown escrow answers 404 even when the
// body is malformed. body may be nil for commands without input.
func (h *EscrowHandler) act(w http.ResponseWriter, r *http.Request, body interface{}, fn func(ctx context.Context, id, userID uuid.UUID) error) {
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
	current, err := h.Escrows.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	if !current.IsParty(who.UserID) && !who.IsArbiter() {
		writeError(w, h.Logger, r, apperr.NotFound("escrow %s not found", id))
		return
	}
	if body != nil {
		if err := decode(w, r, body); err != nil {
			writeError(w, h.Logger, r, err)
			return
		}
	}
	if err := fn(r.Context(), id, who.UserID); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	e, err := h.Escrows.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
