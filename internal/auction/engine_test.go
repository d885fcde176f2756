package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/apperr"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/ledger"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/storetest"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/payment"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/scheduler"
)

// ---------------------------------------------------------------------------
// Fakes: payment processor, verifier, notifier and clock. Storage is storetest
// and the escrow side is the real ledger service.
// ---------------------------------------------------------------------------

type fakeProcessor struct {
	mu        sync.Mutex
	result    *payment.Result
	err       error
	transfers []payment.Transfer
}

func (f *fakeProcessor) Execute(_ context.Context, t payment.Transfer) (*payment.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, t)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeVerifier struct{ verdict bool }

func (f *fakeVerifier) Verify(context.Context, models.Chain, string, decimal.Decimal) (bool, error) {
	return f.verdict, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingNotifier) Publish(_ context.Context, evt models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingNotifier) byType(eventType string) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// ---

type harness struct {
	engine    *Engine
	ledger    *ledger.Service
	store     *storetest.Store
	sched     *storetest.Scheduler
	processor *fakeProcessor
	verifier  *fakeVerifier
	events    *recordingNotifier
	clock     *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := storetest.New()
	h := &harness{
		store:     store,
		sched:     store.Scheduler(),
		processor: &fakeProcessor{result: &payment.Result{Success: true, TxHash: "PROCESSORTX1"}},
		verifier:  &fakeVerifier{verdict: true},
		events:    &recordingNotifier{},
		clock:     &clock{t: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)},
	}
	h.ledger = ledger.NewService(store, store.Escrows(), store.Payments(), h.verifier, h.sched, ledger.DefaultConfig(),
		ledger.WithNotifier(h.events), ledger.WithClock(h.clock.Now))
	h.engine = NewEngine(store, store.Listings(), store.Bids(), h.ledger, h.sched, h.processor,
		WithNotifier(h.events), WithClock(h.clock.Now),
		WithEscrowAddresses(map[models.Chain]string{models.ChainXRPL: "rEscrowVault"}))
	return h
}

func (h *harness) open(t *testing.T, seller uuid.UUID, starting, increment string) *models.Listing {
	t.Helper()
	l, err := h.engine.OpenAuction(context.Background(), OpenAuctionParams{
		SellerID:     seller,
		SellerWallet: "rSellerPayout",
		StartingBid:  decimal.RequireFromString(starting),
		BidIncrement: decimal.RequireFromString(increment),
		EndDate:      h.clock.Now().Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("OpenAuction: %v", err)
	}
	return l
}

func (h *harness) bid(listingID, bidder uuid.UUID, amount string) (uuid.UUID, error) {
	return h.engine.PlaceBid(context.Background(), PlaceBidParams{
		ListingID:     listingID,
		BidderID:      bidder,
		Amount:        decimal.RequireFromString(amount),
		WalletAddress: "r" + bidder.String()[:8],
		Chain:         models.ChainXRPL,
	})
}

func (h *harness) listing(t *testing.T, id uuid.UUID) *models.Listing {
	t.Helper()
	l, err := h.engine.GetAuction(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAuction: %v", err)
	}
	return l
}

func (h *harness) bidStatuses(t *testing.T, listingID uuid.UUID) map[uuid.UUID]models.BidStatus {
	t.Helper()
	bids, err := h.engine.ListBids(context.Background(), listingID)
	if err != nil {
		t.Fatalf("ListBids: %v", err)
	}
	out := make(map[uuid.UUID]models.BidStatus, len(bids))
	for _, b := range bids {
		out[b.ID] = b.Status
	}
	return out
}

// fire delivers every due command the way the River workers do.
func (h *harness) fire(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, cmd := range h.sched.Due(h.clock.Now()) {
		var err error
		switch c := cmd.(type) {
		case scheduler.CloseAuctionArgs:
			err = h.engine.CloseAuction(ctx, c.ListingID)
		case scheduler.ExpirePaymentWindowArgs:
			err = h.ledger.ExpirePaymentWindow(ctx, c.PaymentID)
		case scheduler.PaymentReminderArgs:
			err = h.ledger.RemindPaymentDeadline(ctx, c.PaymentID)
		case scheduler.AutoReleaseArgs:
			err = h.ledger.AutoRelease(ctx, c.EscrowID)
		}
		if err != nil {
			t.Fatalf("deliver %s: %v", cmd.Kind(), err)
		}
	}
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("error kind: got %s (%v), want %s", got, err, kind)
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ---------------------------------------------------------------------------
// 1. Scenario B: increments and outbidding
// ---------------------------------------------------------------------------

func TestScenarioB_BidIncrements(t *testing.T) {
	h := newHarness(t)
	l := h.open(t, uuid.New(), "10", "1")
	alice, bob := uuid.New(), uuid.New()

	first, err := h.bid(l.ID, alice, "11")
	if err != nil {
		t.Fatalf("bid 11: %v", err)
	}
	if got := h.listing(t, l.ID).CurrentBid; got == nil || !got.Equal(dec("11")) {
		t.Fatalf("current bid: got %v, want 11", got)
	}

	_, err = h.bid(l.ID, bob, "11")
	wantKind(t, err, apperr.KindBidTooLow)
	if got := h.listing(t, l.ID).CurrentBid; !got.Equal(dec("11")) {
		t.Fatalf("rejected bid changed current bid to %s", got)
	}

	second, err := h.bid(l.ID, bob, "12")
	if err != nil {
		t.Fatalf("bid 12: %v", err)
	}
	if got := h.listing(t, l.ID).CurrentBid; !got.Equal(dec("12")) {
		t.Fatalf("current bid: got %s, want 12", got)
	}
	statuses := h.bidStatuses(t, l.ID)
	if len(statuses) != 2 {
		t.Fatalf("bids stored: got %d, want 2", len(statuses))
	}
	if statuses[first] != models.BidStatusOutbid || statuses[second] != models.BidStatusActive {
		t.Errorf("statuses: first=%s second=%s", statuses[first], statuses[second])
	}
	outbid := h.events.byType(models.EventBidOutbid)
	if len(outbid) != 1 || outbid[0].Recipients[0] != alice {
		t.Errorf("bid_outbid events: %+v", outbid)
	}
}

func TestPlaceBid_Rejections(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	l := h.open(t, seller, "10", "2")

	_, err := h.bid(l.ID, seller, "50")
	wantKind(t, err, apperr.KindSelfBidNotAllowed)

	// Below starting bid + increment.
	_, err = h.bid(l.ID, uuid.New(), "11.99")
	wantKind(t, err, apperr.KindBidTooLow)

	_, err = h.bid(uuid.New(), uuid.New(), "20")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown listing: got %v", err)
	}

	_, err = h.engine.PlaceBid(context.Background(), PlaceBidParams{
		ListingID: l.ID, BidderID: uuid.New(), Amount: dec("20"), Chain: models.ChainXRPL,
	})
	wantKind(t, err, apperr.KindValidation)

	if l2 := h.listing(t, l.ID); l2.CurrentBid != nil {
		t.Errorf("rejected bids set current bid %s", l2.CurrentBid)
	}
	if n := len(h.bidStatuses(t, l.ID)); n != 0 {
		t.Errorf("rejected bids stored: %d", n)
	}

	// After the end date the auction refuses bids even before close fires.
	h.clock.Advance(73 * time.Hour)
	_, err = h.bid(l.ID, uuid.New(), "20")
	wantKind(t, err, apperr.KindAuctionClosed)
}

// ---------------------------------------------------------------------------
// 2. Serializability of concurrent bids
// ---------------------------------------------------------------------------

func TestPlaceBid_ConcurrentBidsSerialize(t *testing.T) {
	h := newHarness(t)
	l := h.open(t, uuid.New(), "1", "1")

	const n = 40
	var wg sync.WaitGroup
	var mu sync.Mutex
	var accepted []decimal.Decimal
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			a := decimal.NewFromInt(amount)
			_, err := h.engine.PlaceBid(context.Background(), PlaceBidParams{
				ListingID: l.ID, BidderID: uuid.New(), Amount: a,
				WalletAddress: "rBidder", Chain: models.ChainXRPL,
			})
			if err == nil {
				mu.Lock()
				accepted = append(accepted, a)
				mu.Unlock()
				return
			}
			if !errors.Is(err, apperr.ErrBidTooLow) {
				t.Errorf("bid %d: unexpected error %v", amount, err)
			}
		}(int64(2 + i%10*3 + i/10))
	}
	wg.Wait()

	if len(accepted) == 0 {
		t.Fatal("no bid accepted")
	}
	highest := accepted[0]
	for _, a := range accepted[1:] {
		if a.GreaterThan(highest) {
			highest = a
		}
	}
	got := h.listing(t, l.ID).CurrentBid
	if got == nil || !got.Equal(highest) {
		t.Fatalf("current bid: got %v, want max accepted %s", got, highest)
	}

	bids, _ := h.engine.ListBids(context.Background(), l.ID)
	active := 0
	for _, b := range bids {
		if b.Status == models.BidStatusActive {
			active++
			if !b.Amount.Equal(highest) {
				t.Errorf("active bid amount %s, want %s", b.Amount, highest)
			}
		}
	}
	if active != 1 {
		t.Errorf("active bids: got %d, want 1", active)
	}
	if len(bids) != len(accepted) {
		t.Errorf("stored bids: got %d, want %d accepted", len(bids), len(accepted))
	}
}

// ---------------------------------------------------------------------------
// 3. Close
// ---------------------------------------------------------------------------

func TestScenarioC_CloseWithoutBids(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	l := h.open(t, seller, "10", "1")

	h.clock.Advance(72 * time.Hour)
	h.fire(t)

	got := h.listing(t, l.ID)
	if got.AuctionStatus != models.AuctionStatusEnded {
		t.Fatalf("status: got %s, want ended", got.AuctionStatus)
	}
	if _, err := h.ledger.PaymentFor(context.Background(), l.ID, seller); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("payment created for a no-sale close: %v", err)
	}
	if n := len(h.events.byType(models.EventAuctionClosedNoSale)); n != 1 {
		t.Errorf("no-sale events: got %d, want 1", n)
	}
	if n := len(h.events.byType(models.EventEscrowCreated)); n != 0 {
		t.Errorf("escrow created for a no-sale close")
	}

	// Duplicate delivery is a no-op.
	if err := h.engine.CloseAuction(context.Background(), l.ID); err != nil {
		t.Errorf("duplicate close: %v", err)
	}
}

func TestCloseAuction_WinnerGetsPaymentWindow(t *testing.T) {
	h := newHarness(t)
	l := h.open(t, uuid.New(), "10", "1")
	alice, bob := uuid.New(), uuid.New()
	lost, _ := h.bid(l.ID, alice, "11")
	won, _ := h.bid(l.ID, bob, "15")

	// An early delivery re-arms the close instead of ending the auction.
	if err := h.engine.CloseAuction(context.Background(), l.ID); err != nil {
		t.Fatalf("early close: %v", err)
	}
	if got := h.listing(t, l.ID).AuctionStatus; got != models.AuctionStatusActive {
		t.Fatalf("early close ended auction: %s", got)
	}
	if ok, _ := h.sched.Scheduled(context.Background(), scheduler.CloseAuctionKey(l.ID)); !ok {
		t.Fatal("close not re-armed")
	}

	h.clock.Advance(72 * time.Hour)
	h.fire(t)

	statuses := h.bidStatuses(t, l.ID)
	if statuses[won] != models.BidStatusWon || statuses[lost] != models.BidStatusLost {
		t.Errorf("statuses: won=%s lost=%s", statuses[won], statuses[lost])
	}
	p, err := h.ledger.PaymentFor(context.Background(), l.ID, bob)
	if err != nil {
		t.Fatalf("PaymentFor: %v", err)
	}
	if !p.Amount.Equal(dec("15")) || p.WinningBidID != won || p.Status != models.PaymentStatusPending {
		t.Errorf("payment: %+v", p)
	}
	if n := len(h.events.byType(models.EventAuctionWon)); n != 1 {
		t.Errorf("auction_won events: got %d, want 1", n)
	}
	if n := len(h.events.byType(models.EventEscrowCreated)); n != 0 {
		t.Errorf("closing must not open an escrow")
	}
}

func TestCancelAuction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seller := uuid.New()
	l := h.open(t, seller, "10", "1")
	bidID, _ := h.bid(l.ID, uuid.New(), "11")

	if err := h.engine.CancelAuction(ctx, l.ID, uuid.New()); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("cancel by stranger: got %v", err)
	}
	if err := h.engine.CancelAuction(ctx, l.ID, seller); err != nil {
		t.Fatalf("CancelAuction: %v", err)
	}
	if got := h.listing(t, l.ID).AuctionStatus; got != models.AuctionStatusCancelled {
		t.Errorf("status: got %s", got)
	}
	if got := h.bidStatuses(t, l.ID)[bidID]; got != models.BidStatusLost {
		t.Errorf("bid status: got %s, want lost", got)
	}
	if ok, _ := h.sched.Scheduled(ctx, scheduler.CloseAuctionKey(l.ID)); ok {
		t.Error("close still scheduled after cancel")
	}
	wantKind(t, h.engine.CancelAuction(ctx, l.ID, seller), apperr.KindInvalidTransition)
	_, err := h.bid(l.ID, uuid.New(), "30")
	wantKind(t, err, apperr.KindAuctionClosed)
}

// ---------------------------------------------------------------------------
// 4. Payment completion
// ---------------------------------------------------------------------------

func (h *harness) closedWithWinner(t *testing.T) (*models.Listing, uuid.UUID) {
	t.Helper()
	l := h.open(t, uuid.New(), "10", "1")
	winner := uuid.New()
	if _, err := h.bid(l.ID, winner, "20"); err != nil {
		t.Fatalf("bid: %v", err)
	}
	h.clock.Advance(72 * time.Hour)
	h.fire(t)
	return l, winner
}

func TestCompletePayment_OpensAndFundsEscrow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l, winner := h.closedWithWinner(t)

	receipt, err := h.engine.CompletePayment(ctx, CompletePaymentParams{
		AuctionID: l.ID, WinnerID: winner, TxReference: "client-ref", WalletAddress: "rWinner",
	})
	if err != nil {
		t.Fatalf("CompletePayment: %v", err)
	}
	if !receipt.Funded || receipt.TxHash != "PROCESSORTX1" {
		t.Errorf("receipt: %+v", receipt)
	}
	if tr := h.processor.transfers[0]; tr.ToWallet != "rEscrowVault" || !tr.Amount.Equal(dec("20")) || tr.FromWallet != "rWinner" {
		t.Errorf("transfer: %+v", tr)
	}

	p, _ := h.ledger.PaymentFor(ctx, l.ID, winner)
	if p.Status != models.PaymentStatusPaid || p.EscrowID == nil || *p.EscrowID != receipt.EscrowID {
		t.Errorf("payment: %+v", p)
	}
	if got := h.listing(t, l.ID); got.SoldAt == nil {
		t.Error("listing not marked sold")
	}
	e, err := h.ledger.Get(ctx, receipt.EscrowID)
	if err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if e.Status != models.EscrowStatusFunded || e.BuyerID != winner || e.SellerID != l.SellerID ||
		!e.Amount.Equal(dec("20")) || e.SellerWallet != "rSellerPayout" {
		t.Errorf("escrow: %+v", e)
	}
	if e.ListingID == nil || *e.ListingID != l.ID {
		t.Errorf("escrow listing back-reference: %v", e.ListingID)
	}

	_, err = h.engine.CompletePayment(ctx, CompletePaymentParams{AuctionID: l.ID, WinnerID: winner, WalletAddress: "rWinner"})
	wantKind(t, err, apperr.KindInvalidTransition)
}

func TestCompletePayment_ProcessorFailureChangesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l, winner := h.closedWithWinner(t)

	h.processor.result = &payment.Result{Success: false, Message: "insufficient balance in rWinner"}
	_, err := h.engine.CompletePayment(ctx, CompletePaymentParams{AuctionID: l.ID, WinnerID: winner, WalletAddress: "rWinner"})
	wantKind(t, err, apperr.KindPaymentFailed)

	h.processor.result, h.processor.err = nil, errors.New("503 from processor")
	_, err = h.engine.CompletePayment(ctx, CompletePaymentParams{AuctionID: l.ID, WinnerID: winner, WalletAddress: "rWinner"})
	wantKind(t, err, apperr.KindPaymentFailed)

	p, _ := h.ledger.PaymentFor(ctx, l.ID, winner)
	if p.Status != models.PaymentStatusPending {
		t.Errorf("payment status: got %s, want pending", p.Status)
	}
	if h.listing(t, l.ID).SoldAt != nil {
		t.Error("listing marked sold after a failed payment")
	}
	if n := len(h.events.byType(models.EventEscrowCreated)); n != 0 {
		t.Errorf("escrow created after a failed payment")
	}

	// Retry succeeds.
	h.processor.result, h.processor.err = &payment.Result{Success: true, TxHash: "PROCESSORTX2"}, nil
	if _, err := h.engine.CompletePayment(ctx, CompletePaymentParams{AuctionID: l.ID, WinnerID: winner, WalletAddress: "rWinner"}); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

// keyedProcessor moves funds once per idempotency key. Execute blocks until
// want callers have entered so concurrent completions overlap.
type keyedProcessor struct {
	mu      sync.Mutex
	entered sync.WaitGroup
	keys    []string
	moved   map[string]*payment.Result
}

func (f *keyedProcessor) Execute(_ context.Context, t payment.Transfer) (*payment.Result, error) {
	f.entered.Done()
	f.entered.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, t.IdempotencyKey)
	if res, ok := f.moved[t.IdempotencyKey]; ok {
		return res, nil
	}
	res := &payment.Result{Success: true, TxHash: "PROCESSORTX" + t.IdempotencyKey[:8]}
	f.moved[t.IdempotencyKey] = res
	return res, nil
}

func TestCompletePayment_ConcurrentCompletionsMoveFundsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l, winner := h.closedWithWinner(t)

	proc := &keyedProcessor{moved: map[string]*payment.Result{}}
	proc.entered.Add(2)
	h.engine = NewEngine(h.store, h.store.Listings(), h.store.Bids(), h.ledger, h.sched, proc,
		WithNotifier(h.events), WithClock(h.clock.Now),
		WithEscrowAddresses(map[models.Chain]string{models.ChainXRPL: "rEscrowVault"}))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, ref := range []string{"", "client-retry"} {
		wg.Add(1)
		go func(i int, ref string) {
			defer wg.Done()
			_, errs[i] = h.engine.CompletePayment(ctx, CompletePaymentParams{
				AuctionID: l.ID, WinnerID: winner, TxReference: ref, WalletAddress: "rWinner",
			})
		}(i, ref)
	}
	wg.Wait()

	p, _ := h.ledger.PaymentFor(ctx, l.ID, winner)
	if len(proc.keys) != 2 || proc.keys[0] != p.ID.String() || proc.keys[1] != p.ID.String() {
		t.Errorf("idempotency keys: got %v, want the payment id twice", proc.keys)
	}
	if len(proc.moved) != 1 {
		t.Errorf("processor moved funds %d times", len(proc.moved))
	}
	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		wantKind(t, err, apperr.KindInvalidTransition)
	}
	if ok != 1 {
		t.Errorf("successful completions: got %d, want 1 (%v)", ok, errs)
	}
	if p.Status != models.PaymentStatusPaid {
		t.Errorf("payment status: got %s, want paid", p.Status)
	}
	if n := len(h.events.byType(models.EventEscrowCreated)); n != 1 {
		t.Errorf("escrows created: got %d, want 1", n)
	}
}

func TestCompletePayment_UnverifiedFundingLeavesEscrowPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l, winner := h.closedWithWinner(t)
	h.verifier.verdict = false

	receipt, err := h.engine.CompletePayment(ctx, CompletePaymentParams{AuctionID: l.ID, WinnerID: winner, WalletAddress: "rWinner"})
	if err != nil {
		t.Fatalf("CompletePayment: %v", err)
	}
	if receipt.Funded {
		t.Error("receipt reports funded")
	}
	e, _ := h.ledger.Get(ctx, receipt.EscrowID)
	if e.Status != models.EscrowStatusPending {
		t.Errorf("escrow status: got %s, want pending", e.Status)
	}

	h.verifier.verdict = true
	if err := h.ledger.Fund(ctx, receipt.EscrowID, receipt.TxHash, models.ChainXRPL); err != nil {
		t.Fatalf("manual Fund: %v", err)
	}
}

func TestScenarioD_LatePaymentExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	l, winner := h.closedWithWinner(t)

	h.clock.Advance(49 * time.Hour)
	h.fire(t)

	p, _ := h.ledger.PaymentFor(ctx, l.ID, winner)
	if p.Status != models.PaymentStatusExpired {
		t.Fatalf("payment status: got %s, want expired", p.Status)
	}
	_, err := h.engine.CompletePayment(ctx, CompletePaymentParams{AuctionID: l.ID, WinnerID: winner, WalletAddress: "rWinner"})
	wantKind(t, err, apperr.KindPaymentWindowExpired)
	if len(h.processor.transfers) != 0 {
		t.Error("processor called for an expired payment")
	}
}

func TestCompletePayment_Unknown(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.CompletePayment(context.Background(), CompletePaymentParams{
		AuctionID: uuid.New(), WinnerID: uuid.New(), WalletAddress: "rX",
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}
