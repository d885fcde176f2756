package main

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/auction"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/auth"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/config"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/handlers"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/ledger"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/metrics"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/router"
)

// newHTTPHandler builds the /v1 API behind CORS.
// Middleware chain: CORS -> BearerAuth -> (RequireArbiter on arbiter routes) -> handler.
func newHTTPHandler(cfg *config.Config, ledgerSvc *ledger.Service, engine *auction.Engine, authSvc *auth.Service, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	api := router.New(
		&handlers.EscrowHandler{Escrows: ledgerSvc, Logger: logger},
		&handlers.AuctionHandler{Auctions: engine, Logger: logger},
		authSvc,
		m.Handler(),
	)
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(api)
}
