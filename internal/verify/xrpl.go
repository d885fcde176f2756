package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

const dropsPerXRP = 6

var xrplHash = regexp.MustCompile(`^[A-Fa-f0-9]{64}$`)

type XRPLConfig struct {
	RPCURL        string
	EscrowAddress string
	RPS           float64
	Timeout       time.Duration
}

// XRPL checks a validated, successful XRP Payment to the escrow account using
// the delivered_amount field, which accounts for partial payments.
type XRPL struct {
	rpc    *rpcClient
	escrow string
}

func NewXRPL(cfg XRPLConfig) *XRPL {
	return &XRPL{rpc: newRPCClient(cfg.RPCURL, cfg.RPS, cfg.Timeout), escrow: cfg.EscrowAddress}
}

func (a *XRPL) Chain() models.Chain { return models.ChainXRPL }

type xrplTransaction struct {
	Status          string `json:"status"`
	Error           string `json:"error"`
	Validated       bool   `json:"validated"`
	TransactionType string `json:"TransactionType"`
	Destination     string `json:"Destination"`
	Meta            *struct {
		TransactionResult string          `json:"TransactionResult"`
		DeliveredAmount   json.RawMessage `json:"delivered_amount"`
	} `json:"meta"`
}

func (a *XRPL) Verify(ctx context.Context, txRef string, expected decimal.Decimal) (bool, error) {
	if !xrplHash.MatchString(txRef) {
		return false, fmt.Errorf("%w: xrpl hash %q", ErrMalformedReference, txRef)
	}
	params := []any{map[string]any{"transaction": txRef, "binary": false}}
	var tx xrplTransaction
	if err := a.rpc.call(ctx, "tx", params, &tx); err != nil {
		if errors.Is(err, errNoResult) {
			return false, nil
		}
		return false, err
	}
	// rippled reports lookup failures inside the result object.
	switch tx.Error {
	case "":
	case "txnNotFound":
		return false, nil
	default:
		return false, fmt.Errorf("tx: %s", tx.Error)
	}
	if !tx.Validated || tx.TransactionType != "Payment" || tx.Destination != a.escrow {
		return false, nil
	}
	if tx.Meta == nil || tx.Meta.TransactionResult != "tesSUCCESS" {
		return false, nil
	}
	// Issued-currency amounts are objects; only native XRP drops are accepted.
	var drops string
	if err := json.Unmarshal(tx.Meta.DeliveredAmount, &drops); err != nil {
		return false, nil
	}
	delivered, err := decimal.NewFromString(drops)
	if err != nil {
		return false, nil
	}
	return delivered.GreaterThanOrEqual(expected.Shift(dropsPerXRP)), nil
}
