// Package payment is the client for the external payment processor that moves
// an auction winner's funds into escrow.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

var ErrNotConfigured = errors.New("payment processor not configured")

type Transfer struct {
	Amount     decimal.Decimal
	FromWallet string
	ToWallet   string
	Chain      models.Chain
	Reference  string

	// IdempotencyKey is stable for one payment across retries and concurrent
	// completions. The processor moves funds at most once per key.
	IdempotencyKey string
}

type Result struct {
	Success bool
	TxHash  string
	Message string
}

type Processor interface {
	Execute(ctx context.Context, t Transfer) (*Result, error)
}

type Client struct {
	http *resty.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &Client{http: c}
}

type transferRequest struct {
	Amount     string `json:"amount"`
	FromWallet string `json:"from_wallet"`
	ToWallet   string `json:"to_wallet"`
	Chain      string `json:"chain"`
	Reference  string `json:"reference"`
}

type transferResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash"`
	Error   string `json:"error"`
}

// Execute submits the transfer under its idempotency key. Retries are left to
// the caller.
func (c *Client) Execute(ctx context.Context, t Transfer) (*Result, error) {
	if c == nil || c.http.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	if t.IdempotencyKey == "" {
		return nil, errors.New("payment transfer without idempotency key")
	}
	var out transferResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", t.IdempotencyKey).
		SetBody(transferRequest{
			Amount:     t.Amount.String(),
			FromWallet: t.FromWallet,
			ToWallet:   t.ToWallet,
			Chain:      string(t.Chain),
			Reference:  t.Reference,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/v1/transfers")
	if err != nil {
		return nil, fmt.Errorf("payment processor request: %w", err)
	}
	if resp.StatusCode() >= 500 {
		return nil, fmt.Errorf("payment processor status %d", resp.StatusCode())
	}
	if resp.IsError() || !out.Success {
		return &Result{Success: false, Message: out.Error}, nil
	}
	if out.TxHash == "" {
		return nil, errors.New("payment processor returned success without tx hash")
	}
	return &Result{Success: true, TxHash: out.TxHash}, nil
}
