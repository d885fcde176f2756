package verify

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

const lamportsPerSOL = 9

var solanaSignature = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{64,88}$`)

type SolanaConfig struct {
	RPCURL        string
	EscrowAddress string
	RPS           float64
	Timeout       time.Duration
}

// Solana checks a finalized native SOL transfer into the escrow account by
// comparing its pre and post balances.
type Solana struct {
	rpc    *rpcClient
	escrow string
}

func NewSolana(cfg SolanaConfig) *Solana {
	return &Solana{rpc: newRPCClient(cfg.RPCURL, cfg.RPS, cfg.Timeout), escrow: cfg.EscrowAddress}
}

func (a *Solana) Chain() models.Chain { return models.ChainSolana }

type solanaTransaction struct {
	Meta *struct {
		Err          any      `json:"err"`
		PreBalances  []uint64 `json:"preBalances"`
		PostBalances []uint64 `json:"postBalances"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []struct {
				Pubkey string `json:"pubkey"`
			} `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

func (a *Solana) Verify(ctx context.Context, txRef string, expected decimal.Decimal) (bool, error) {
	if !solanaSignature.MatchString(txRef) {
		return false, fmt.Errorf("%w: solana signature %q", ErrMalformedReference, txRef)
	}
	params := []any{txRef, map[string]any{
		"encoding":                       "jsonParsed",
		"commitment":                     "finalized",
		"maxSupportedTransactionVersion": 0,
	}}
	var tx solanaTransaction
	if err := a.rpc.call(ctx, "getTransaction", params, &tx); err != nil {
		if errors.Is(err, errNoResult) {
			return false, nil
		}
		return false, err
	}
	if tx.Meta == nil || tx.Meta.Err != nil {
		return false, nil
	}
	idx := -1
	for i, k := range tx.Transaction.Message.AccountKeys {
		if k.Pubkey == a.escrow {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(tx.Meta.PreBalances) || idx >= len(tx.Meta.PostBalances) {
		return false, nil
	}
	pre, post := tx.Meta.PreBalances[idx], tx.Meta.PostBalances[idx]
	if post <= pre {
		return false, nil
	}
	received := decimal.NewFromBigInt(new(big.Int).SetUint64(post-pre), 0)
	return received.GreaterThanOrEqual(expected.Shift(lamportsPerSOL)), nil
}
