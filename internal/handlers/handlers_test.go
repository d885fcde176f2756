package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/apperr"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/auction"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/auth"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/ledger"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/middleware"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubEscrows struct {
	escrow  *models.Escrow
	err     error
	created ledger.CreateParams
	dispute ledger.DisputeParams
	fundRef string
	calls   []string
}

func (s *stubEscrows) Create(_ context.Context, p ledger.CreateParams) (uuid.UUID, error) {
	s.created = p
	s.calls = append(s.calls, "create")
	if s.err != nil {
		return uuid.Nil, s.err
	}
	return s.escrow.ID, nil
}

func (s *stubEscrows) Get(_ context.Context, id uuid.UUID) (*models.Escrow, error) {
	if s.escrow == nil || s.escrow.ID != id {
		return nil, apperr.NotFound("escrow %s not found", id)
	}
	return s.escrow, nil
}

func (s *stubEscrows) Fund(_ context.Context, _ uuid.UUID, txRef string, _ models.Chain) error {
	s.fundRef = txRef
	s.calls = append(s.calls, "fund")
	return s.err
}

func (s *stubEscrows) Dispute(_ context.Context, p ledger.DisputeParams) error {
	s.dispute = p
	s.calls = append(s.calls, "dispute")
	return s.err
}

func (s *stubEscrows) ConfirmDelivery(context.Context, uuid.UUID, uuid.UUID) error {
	s.calls = append(s.calls, "confirm")
	return s.err
}

func (s *stubEscrows) ResolveDispute(context.Context, uuid.UUID, string, string) error {
	s.calls = append(s.calls, "resolve")
	return s.err
}

func (s *stubEscrows) MarkConditionsMet(context.Context, uuid.UUID, models.Terms) error {
	s.calls = append(s.calls, "conditions_met")
	return s.err
}

func (s *stubEscrows) Expire(context.Context, uuid.UUID, string) error {
	s.calls = append(s.calls, "expire")
	return s.err
}

func (s *stubEscrows) AttachSellerWallet(context.Context, uuid.UUID, uuid.UUID, string) error {
	s.calls = append(s.calls, "seller_wallet")
	return s.err
}

// ---

type stubAuctions struct {
	listing *models.Listing
	bids    []*models.Bid
	err     error
	bid     auction.PlaceBidParams
	payment auction.CompletePaymentParams
}

func (s *stubAuctions) OpenAuction(_ context.Context, p auction.OpenAuctionParams) (*models.Listing, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Listing{ID: p.ListingID, SellerID: p.SellerID, StartingBid: p.StartingBid, BidIncrement: p.BidIncrement, AuctionEndDate: p.EndDate, AuctionStatus: models.AuctionStatusActive}, nil
}

func (s *stubAuctions) CancelAuction(context.Context, uuid.UUID, uuid.UUID) error { return s.err }

func (s *stubAuctions) GetAuction(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	if s.listing == nil || s.listing.ID != id {
		return nil, apperr.NotFound("auction %s not found", id)
	}
	return s.listing, nil
}

func (s *stubAuctions) PlaceBid(_ context.Context, p auction.PlaceBidParams) (uuid.UUID, error) {
	s.bid = p
	if s.err != nil {
		return uuid.Nil, s.err
	}
	return uuid.New(), nil
}

func (s *stubAuctions) ListBids(context.Context, uuid.UUID) ([]*models.Bid, error) {
	return s.bids, s.err
}

func (s *stubAuctions) CompletePayment(_ context.Context, p auction.CompletePaymentParams) (*auction.PaymentReceipt, error) {
	s.payment = p
	if s.err != nil {
		return nil, s.err
	}
	return &auction.PaymentReceipt{PaymentID: uuid.New(), EscrowID: uuid.New(), TxHash: "0xabc", Funded: true}, nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// serve routes a single pattern through a ServeMux so PathValue works, with
// the given identity in the request context.
func serve(pattern string, h http.HandlerFunc, method, path, body string, who *auth.Identity) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if who != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), *who))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func sampleEscrow(buyer, seller uuid.UUID) *models.Escrow {
	return &models.Escrow{
		ID:           uuid.New(),
		BuyerID:      buyer,
		SellerID:     seller,
		SellerWallet: "rSeller",
		Amount:       decimal.RequireFromString("25"),
		Chain:        models.ChainXRPL,
		Status:       models.EscrowStatusPending,
	}
}

// ---------------------------------------------------------------------------
// Escrow endpoints
// ---------------------------------------------------------------------------

func TestCreateEscrow_CallerIsBuyer(t *testing.T) {
	buyer := auth.Identity{UserID: uuid.New(), Wallet: "rBuyer"}
	seller := uuid.New()
	svc := &stubEscrows{escrow: sampleEscrow(buyer.UserID, seller)}
	h := &EscrowHandler{Escrows: svc, Logger: quiet}

	body := `{"seller_id":"` + seller.String() + `","amount":"25","chain":"xrpl","terms":{"description":"one lamp"}}`
	rec := serve("POST /v1/escrows", h.Create, http.MethodPost, "/v1/escrows", body, &buyer)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.created.BuyerID != buyer.UserID || svc.created.BuyerWallet != "rBuyer" {
		t.Errorf("buyer not taken from identity: %+v", svc.created)
	}
	if !svc.created.Amount.Equal(decimal.RequireFromString("25")) {
		t.Errorf("amount: got %s", svc.created.Amount)
	}
	if len(svc.created.Conditions.Entries) != 1 || svc.created.Conditions.Entries[0].Kind != models.ConditionKindTerms {
		t.Errorf("terms not mapped to a conditions entry: %+v", svc.created.Conditions)
	}
}

func TestCreateEscrow_ValidationErrorBody(t *testing.T) {
	buyer := auth.Identity{UserID: uuid.New()}
	svc := &stubEscrows{err: apperr.Validation("amount must be greater than zero")}
	h := &EscrowHandler{Escrows: svc, Logger: quiet}

	rec := serve("POST /v1/escrows", h.Create, http.MethodPost, "/v1/escrows", `{"amount":"0","chain":"xrpl"}`, &buyer)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != apperr.KindValidation || body.Reason != "amount must be greater than zero" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestCreateEscrow_UnknownFieldRejected(t *testing.T) {
	buyer := auth.Identity{UserID: uuid.New()}
	svc := &stubEscrows{}
	h := &EscrowHandler{Escrows: svc, Logger: quiet}

	rec := serve("POST /v1/escrows", h.Create, http.MethodPost, "/v1/escrows", `{"status":"funded"}`, &buyer)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(svc.calls) != 0 {
		t.Errorf("service should not be called, got %v", svc.calls)
	}
}

func TestGetEscrow_HiddenFromStrangers(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	e := sampleEscrow(buyer, seller)
	h := &EscrowHandler{Escrows: &stubEscrows{escrow: e}, Logger: quiet}
	path := "/v1/escrows/" + e.ID.String()

	stranger := auth.Identity{UserID: uuid.New()}
	if rec := serve("GET /v1/escrows/{id}", h.Get, http.MethodGet, path, "", &stranger); rec.Code != http.StatusNotFound {
		t.Errorf("stranger: expected 404, got %d", rec.Code)
	}

	party := auth.Identity{UserID: seller}
	rec := serve("GET /v1/escrows/{id}", h.Get, http.MethodGet, path, "", &party)
	if rec.Code != http.StatusOK {
		t.Fatalf("seller: expected 200, got %d", rec.Code)
	}
	var got models.Escrow
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != e.ID || got.Status != models.EscrowStatusPending {
		t.Errorf("unexpected escrow: %+v", got)
	}

	arbiter := auth.Identity{UserID: uuid.New(), Role: auth.RoleArbiter}
	if rec := serve("GET /v1/escrows/{id}", h.Get, http.MethodGet, path, "", &arbiter); rec.Code != http.StatusOK {
		t.Errorf("arbiter: expected 200, got %d", rec.Code)
	}
}

func TestGetEscrow_BadID(t *testing.T) {
	h := &EscrowHandler{Escrows: &stubEscrows{}, Logger: quiet}
	who := auth.Identity{UserID: uuid.New()}
	rec := serve("GET /v1/escrows/{id}", h.Get, http.MethodGet, "/v1/escrows/not-a-uuid", "", &who)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestFundEscrow(t *testing.T) {
	buyer := auth.Identity{UserID: uuid.New()}
	e := sampleEscrow(buyer.UserID, uuid.New())
	svc := &stubEscrows{escrow: e}
	h := &EscrowHandler{Escrows: svc, Logger: quiet}

	rec := serve("POST /v1/escrows/{id}/fund", h.Fund, http.MethodPost, "/v1/escrows/"+e.ID.String()+"/fund",
		`{"transaction_hash":"ABC123","chain":"xrpl"}`, &buyer)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.fundRef != "ABC123" {
		t.Errorf("fund ref: got %q", svc.fundRef)
	}
}

func TestEscrowCommands_StrangerCannotAct(t *testing.T) {
	e := sampleEscrow(uuid.New(), uuid.New())
	svc := &stubEscrows{escrow: e}
	h := &EscrowHandler{Escrows: svc, Logger: quiet}
	stranger := auth.Identity{UserID: uuid.New()}

	rec := serve("POST /v1/escrows/{id}/fund", h.Fund, http.MethodPost, "/v1/escrows/"+e.ID.String()+"/fund",
		`{"transaction_hash":"ABC123","chain":"xrpl"}`, &stranger)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if len(svc.calls) != 0 {
		t.Errorf("service should not be called, got %v", svc.calls)
	}
	if strings.Contains(rec.Body.String(), "rSeller") {
		t.Errorf("escrow leaked to a stranger: %s", rec.Body.String())
	}

	arbiter := auth.Identity{UserID: uuid.New(), Role: auth.RoleArbiter}
	rec = serve("POST /v1/escrows/{id}/expire", h.Expire, http.MethodPost, "/v1/escrows/"+e.ID.String()+"/expire",
		`{"reason":"seller unreachable"}`, &arbiter)
	if rec.Code != http.StatusOK {
		t.Errorf("arbiter: expected 200, got %d", rec.Code)
	}
}

func TestEscrowCommands_ErrorMapping(t *testing.T) {
	who := auth.Identity{UserID: uuid.New()}
	e := sampleEscrow(who.UserID, uuid.New())

	tests := []struct {
		name   string
		err    error
		status int
		kind   apperr.Kind
	}{
		{"verification", apperr.New(apperr.KindVerification, "transaction could not be verified"), http.StatusUnprocessableEntity, apperr.KindVerification},
		{"transition", apperr.InvalidTransition("escrow is released"), http.StatusConflict, apperr.KindInvalidTransition},
		{"authorization", apperr.Unauthorized("only the buyer can confirm delivery"), http.StatusForbidden, apperr.KindAuthorization},
		{"internal", io.ErrUnexpectedEOF, http.StatusInternalServerError, apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &EscrowHandler{Escrows: &stubEscrows{escrow: e, err: tt.err}, Logger: quiet}
			rec := serve("POST /v1/escrows/{id}/confirm", h.Confirm, http.MethodPost, "/v1/escrows/"+e.ID.String()+"/confirm", "", &who)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			body := decodeError(t, rec)
			if body.Error != tt.kind {
				t.Errorf("kind: got %q, want %q", body.Error, tt.kind)
			}
			if tt.kind == apperr.KindInternal && strings.Contains(body.Reason, "EOF") {
				t.Errorf("internal cause leaked: %q", body.Reason)
			}
		})
	}
}

func TestDisputeEscrow_InitiatorFromIdentity(t *testing.T) {
	seller := auth.Identity{UserID: uuid.New()}
	e := sampleEscrow(uuid.New(), seller.UserID)
	svc := &stubEscrows{escrow: e}
	h := &EscrowHandler{Escrows: svc, Logger: quiet}

	rec := serve("POST /v1/escrows/{id}/dispute", h.Dispute, http.MethodPost, "/v1/escrows/"+e.ID.String()+"/dispute",
		`{"reason":"item never arrived","evidence":["photo.jpg"]}`, &seller)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.dispute.Initiator != seller.UserID || svc.dispute.EscrowID != e.ID {
		t.Errorf("unexpected dispute params: %+v", svc.dispute)
	}
}

func TestEscrowCommands_RequireIdentity(t *testing.T) {
	e := sampleEscrow(uuid.New(), uuid.New())
	svc := &stubEscrows{escrow: e}
	h := &EscrowHandler{Escrows: svc, Logger: quiet}
	rec := serve("POST /v1/escrows/{id}/confirm", h.Confirm, http.MethodPost, "/v1/escrows/"+e.ID.String()+"/confirm", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if len(svc.calls) != 0 {
		t.Errorf("service should not be called, got %v", svc.calls)
	}
}

// ---------------------------------------------------------------------------
// Auction endpoints
// ---------------------------------------------------------------------------

func TestOpenAuction(t *testing.T) {
	seller := auth.Identity{UserID: uuid.New(), Wallet: "rSeller"}
	h := &AuctionHandler{Auctions: &stubAuctions{}, Logger: quiet}
	end := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)

	rec := serve("POST /v1/auctions", h.Open, http.MethodPost, "/v1/auctions",
		`{"starting_bid":"100","bid_increment":"10","auction_end_date":"`+end+`"}`, &seller)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var got models.Listing
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SellerID != seller.UserID || got.ID == uuid.Nil {
		t.Errorf("unexpected listing: %+v", got)
	}
}

func TestGetAuction_IncludesMinimumNextBid(t *testing.T) {
	current := decimal.RequireFromString("110")
	l := &models.Listing{
		ID:            uuid.New(),
		StartingBid:   decimal.RequireFromString("100"),
		BidIncrement:  decimal.RequireFromString("10"),
		CurrentBid:    &current,
		AuctionStatus: models.AuctionStatusActive,
	}
	h := &AuctionHandler{Auctions: &stubAuctions{listing: l}, Logger: quiet}

	rec := serve("GET /v1/auctions/{id}", h.Get, http.MethodGet, "/v1/auctions/"+l.ID.String(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got struct {
		ID             uuid.UUID       `json:"id"`
		MinimumNextBid decimal.Decimal `json:"minimum_next_bid"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != l.ID || !got.MinimumNextBid.Equal(decimal.RequireFromString("120")) {
		t.Errorf("unexpected view: %+v", got)
	}
}

func TestPlaceBid(t *testing.T) {
	bidder := auth.Identity{UserID: uuid.New(), Wallet: "0xBidder"}
	listingID := uuid.New()
	svc := &stubAuctions{}
	h := &AuctionHandler{Auctions: svc, Logger: quiet}

	rec := serve("POST /v1/auctions/{id}/bids", h.PlaceBid, http.MethodPost, "/v1/auctions/"+listingID.String()+"/bids",
		`{"amount":"120","chain":"xrpl_evm"}`, &bidder)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.bid.ListingID != listingID || svc.bid.BidderID != bidder.UserID || svc.bid.WalletAddress != "0xBidder" {
		t.Errorf("unexpected bid params: %+v", svc.bid)
	}
}

func TestPlaceBid_Rejections(t *testing.T) {
	bidder := auth.Identity{UserID: uuid.New()}
	tests := []struct {
		err    error
		status int
		kind   apperr.Kind
	}{
		{apperr.New(apperr.KindBidTooLow, "bid must be at least 120"), http.StatusUnprocessableEntity, apperr.KindBidTooLow},
		{apperr.New(apperr.KindAuctionClosed, "auction has ended"), http.StatusConflict, apperr.KindAuctionClosed},
		{apperr.New(apperr.KindSelfBidNotAllowed, "sellers cannot bid on their own auction"), http.StatusUnprocessableEntity, apperr.KindSelfBidNotAllowed},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			h := &AuctionHandler{Auctions: &stubAuctions{err: tt.err}, Logger: quiet}
			rec := serve("POST /v1/auctions/{id}/bids", h.PlaceBid, http.MethodPost, "/v1/auctions/"+uuid.NewString()+"/bids",
				`{"amount":"1","chain":"xrpl"}`, &bidder)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if body := decodeError(t, rec); body.Error != tt.kind {
				t.Errorf("kind: got %q", body.Error)
			}
		})
	}
}

func TestListBids_EmptyIsArray(t *testing.T) {
	h := &AuctionHandler{Auctions: &stubAuctions{}, Logger: quiet}
	rec := serve("GET /v1/auctions/{id}/bids", h.ListBids, http.MethodGet, "/v1/auctions/"+uuid.NewString()+"/bids", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected [], got %s", rec.Body.String())
	}
}

func TestListBids_RedactsOtherBidders(t *testing.T) {
	seller, mine, other := uuid.New(), uuid.New(), uuid.New()
	listing := &models.Listing{ID: uuid.New(), SellerID: seller}
	bids := []*models.Bid{
		{ID: uuid.New(), ListingID: listing.ID, BidderID: mine, WalletAddress: "rMine", Amount: decimal.NewFromInt(12), Status: models.BidStatusActive},
		{ID: uuid.New(), ListingID: listing.ID, BidderID: other, WalletAddress: "rOther", Amount: decimal.NewFromInt(11), Status: models.BidStatusOutbid},
	}
	h := &AuctionHandler{Auctions: &stubAuctions{listing: listing, bids: bids}, Logger: quiet}
	path := "/v1/auctions/" + listing.ID.String() + "/bids"

	list := func(who *auth.Identity) []map[string]any {
		t.Helper()
		rec := serve("GET /v1/auctions/{id}/bids", h.ListBids, http.MethodGet, path, "", who)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var out []map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return out
	}

	for _, b := range list(nil) {
		if _, ok := b["bidder_id"]; ok || b["wallet_address"] != nil {
			t.Errorf("anonymous caller sees bidder details: %v", b)
		}
		if b["amount"] == nil {
			t.Errorf("amount missing: %v", b)
		}
	}

	got := list(&auth.Identity{UserID: mine})
	if got[0]["wallet_address"] != "rMine" || got[0]["bidder_id"] != mine.String() {
		t.Errorf("bidder does not see own bid: %v", got[0])
	}
	if _, ok := got[1]["bidder_id"]; ok {
		t.Errorf("bidder sees another bidder: %v", got[1])
	}

	for _, b := range list(&auth.Identity{UserID: seller}) {
		if b["wallet_address"] == nil {
			t.Errorf("seller should see every bidder: %v", b)
		}
	}
}

func TestCompletePayment(t *testing.T) {
	winner := auth.Identity{UserID: uuid.New(), Wallet: "rWinner"}
	auctionID := uuid.New()
	svc := &stubAuctions{}
	h := &AuctionHandler{Auctions: svc, Logger: quiet}

	rec := serve("POST /v1/auctions/{id}/payment", h.CompletePayment, http.MethodPost, "/v1/auctions/"+auctionID.String()+"/payment",
		`{"tx_reference":"ref-1"}`, &winner)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.payment.AuctionID != auctionID || svc.payment.WinnerID != winner.UserID || svc.payment.WalletAddress != "rWinner" {
		t.Errorf("unexpected payment params: %+v", svc.payment)
	}
	var receipt auction.PaymentReceipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !receipt.Funded || receipt.TxHash != "0xabc" {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
}

func TestCompletePayment_WindowExpired(t *testing.T) {
	winner := auth.Identity{UserID: uuid.New()}
	h := &AuctionHandler{Auctions: &stubAuctions{err: apperr.New(apperr.KindPaymentWindowExpired, "payment deadline has passed")}, Logger: quiet}
	rec := serve("POST /v1/auctions/{id}/payment", h.CompletePayment, http.MethodPost, "/v1/auctions/"+uuid.NewString()+"/payment",
		`{"tx_reference":"ref-1"}`, &winner)
	if rec.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
