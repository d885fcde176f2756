package verify

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

const weiPerXRP = 18

// EVMClient defines the subset of the Ethereum RPC used by the XRPL EVM adapter.
type EVMClient interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
}

// DialEVM initialises an EVM RPC client for the provided endpoint.
func DialEVM(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("evm endpoint required")
	}
	return ethclient.Dial(trimmed)
}

type XRPLEVMConfig struct {
	EscrowAddress string
	Confirmations uint64
	RPS           float64
}

// XRPLEVM checks a native XRP value transfer on the XRPL EVM sidechain.
type XRPLEVM struct {
	client        EVMClient
	escrow        common.Address
	confirmations uint64
	limiter       *rate.Limiter
}

func NewXRPLEVM(client EVMClient, cfg XRPLEVMConfig) (*XRPLEVM, error) {
	if client == nil {
		return nil, errors.New("evm client required")
	}
	if !common.IsHexAddress(cfg.EscrowAddress) {
		return nil, fmt.Errorf("invalid escrow address %q", cfg.EscrowAddress)
	}
	return &XRPLEVM{
		client:        client,
		escrow:        common.HexToAddress(cfg.EscrowAddress),
		confirmations: cfg.Confirmations,
		limiter:       newLimiter(cfg.RPS),
	}, nil
}

func (a *XRPLEVM) Chain() models.Chain { return models.ChainXRPLEVM }

func (a *XRPLEVM) Verify(ctx context.Context, txRef string, expected decimal.Decimal) (bool, error) {
	if len(txRef) != 66 || !strings.HasPrefix(txRef, "0x") {
		return false, fmt.Errorf("%w: evm hash %q", ErrMalformedReference, txRef)
	}
	if _, err := common.ParseHexOrString(txRef); err != nil {
		return false, fmt.Errorf("%w: evm hash %q", ErrMalformedReference, txRef)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	hash := common.HexToHash(txRef)

	tx, pending, err := a.client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return false, nil
		}
		return false, fmt.Errorf("fetch transaction: %w", err)
	}
	if pending || tx == nil {
		return false, nil
	}
	if tx.To() == nil || *tx.To() != a.escrow {
		return false, nil
	}
	want := expected.Shift(weiPerXRP).Ceil().BigInt()
	if tx.Value() == nil || tx.Value().Cmp(want) < 0 {
		return false, nil
	}

	receipt, err := a.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return false, nil
		}
		return false, fmt.Errorf("fetch receipt: %w", err)
	}
	if receipt == nil || receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return false, nil
	}
	if a.confirmations > 0 {
		header, err := a.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return false, fmt.Errorf("fetch head: %w", err)
		}
		if header == nil || header.Number == nil || receipt.BlockNumber == nil {
			return false, fmt.Errorf("block metadata unavailable")
		}
		if header.Number.Cmp(receipt.BlockNumber) < 0 {
			return false, nil
		}
		confirmed := new(big.Int).Sub(header.Number, receipt.BlockNumber)
		confirmed.Add(confirmed, big.NewInt(1))
		if confirmed.Cmp(new(big.Int).SetUint64(a.confirmations)) < 0 {
			return false, nil
		}
	}
	return true, nil
}
