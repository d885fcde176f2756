// Package verify decides whether an on-chain transaction satisfies an expected
// escrow payment. Adapters are stateless reads and safe to call repeatedly.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/metrics"
	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

var (
	ErrUnsupportedChain   = errors.New("unsupported chain")
	ErrMalformedReference = errors.New("malformed transaction reference")
)

// Adapter verifies payments on one chain. The payment recipient is the
// adapter's configured escrow address.
type Adapter interface {
	Chain() models.Chain
	Verify(ctx context.Context, txRef string, expected decimal.Decimal) (bool, error)
}

// Registry dispatches to the adapter registered for a chain.
type Registry struct {
	adapters map[models.Chain]Adapter
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewRegistry(m *metrics.Metrics, log *slog.Logger, adapters ...Adapter) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{adapters: make(map[models.Chain]Adapter, len(adapters)), metrics: m, log: log}
	for _, a := range adapters {
		r.adapters[a.Chain()] = a
	}
	return r
}

func (r *Registry) Supports(chain models.Chain) bool {
	_, ok := r.adapters[chain]
	return ok
}

func (r *Registry) Verify(ctx context.Context, chain models.Chain, txRef string, expected decimal.Decimal) (bool, error) {
	a, ok := r.adapters[chain]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
	ok, err := a.Verify(ctx, txRef, expected)
	switch {
	case errors.Is(err, ErrMalformedReference):
		r.metrics.Verification(string(chain), "malformed")
	case err != nil:
		r.metrics.Verification(string(chain), "error")
		r.log.Warn("chain verification failed", "chain", chain, "tx_ref", txRef, "error", err)
	case ok:
		r.metrics.Verification(string(chain), "verified")
	default:
		r.metrics.Verification(string(chain), "rejected")
	}
	return ok, err
}
