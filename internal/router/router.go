package router

import (
	"net/http"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/handlers"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/middleware"
)

// New returns the marketplace API handler. Auction reads are public and take
// an optional token; every
// other route needs a bearer token, and arbiter commands need the arbiter role.
func New(escrows *handlers.EscrowHandler, auctions *handlers.AuctionHandler, tokens middleware.TokenValidator, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	authed := middleware.BearerAuth(tokens)
	user := func(h http.HandlerFunc) http.Handler { return authed(h) }
	arbiter := func(h http.HandlerFunc) http.Handler { return authed(middleware.RequireArbiter(h)) }
	public := func(h http.HandlerFunc) http.Handler { return middleware.OptionalBearerAuth(tokens)(h) }

	mux.HandleFunc("GET /healthz", handlers.Health)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	mux.Handle("POST /v1/escrows", user(escrows.Create))
	mux.Handle("GET /v1/escrows/{id}", user(escrows.Get))
	mux.Handle("POST /v1/escrows/{id}/fund", user(escrows.Fund))
	mux.Handle("POST /v1/escrows/{id}/dispute", user(escrows.Dispute))
	mux.Handle("POST /v1/escrows/{id}/confirm", user(escrows.Confirm))
	mux.Handle("PUT /v1/escrows/{id}/seller-wallet", user(escrows.SetSellerWallet))
	mux.Handle("POST /v1/escrows/{id}/resolve", arbiter(escrows.Resolve))
	mux.Handle("POST /v1/escrows/{id}/conditions-met", arbiter(escrows.ConditionsMet))
	mux.Handle("POST /v1/escrows/{id}/expire", arbiter(escrows.Expire))

	mux.Handle("POST /v1/auctions", user(auctions.Open))
	mux.Handle("GET /v1/auctions/{id}", public(auctions.Get))
	mux.Handle("POST /v1/auctions/{id}/cancel", user(auctions.Cancel))
	mux.Handle("POST /v1/auctions/{id}/bids", user(auctions.PlaceBid))
	mux.Handle("GET /v1/auctions/{id}/bids", public(auctions.ListBids))
	mux.Handle("POST /v1/auctions/{id}/payment", user(auctions.CompletePayment))

	return mux
}
