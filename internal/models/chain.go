package models

import "strings"

// Chain identifies the settlement network of a payment.
type Chain string

const (
	ChainSolana  Chain = "solana"
	ChainXRPL    Chain = "xrpl"
	ChainXRPLEVM Chain = "xrpl_evm"
)

// SupportedChains lists every chain the core can verify payments on.
var SupportedChains = []Chain{ChainSolana, ChainXRPL, ChainXRPLEVM}

func (c Chain) Valid() bool {
	switch c {
	case ChainSolana, ChainXRPL, ChainXRPLEVM:
		return true
	}
	return false
}

// ParseChain normalises user input ("XRPL-EVM", " solana ") to a Chain.
func ParseChain(s string) (Chain, bool) {
	c := Chain(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	return c, c.Valid()
}

// CanonicalTxRef returns the stored form of a transaction reference on c.
// XRPL hashes are upper-case hex and XRPL EVM hashes lower-case 0x hex, so
// case variants of one transaction compare equal. Solana signatures are
// base58 and kept as given.
func (c Chain) CanonicalTxRef(ref string) string {
	ref = strings.TrimSpace(ref)
	switch c {
	case ChainXRPL:
		return strings.ToUpper(ref)
	case ChainXRPLEVM:
		return strings.ToLower(ref)
	}
	return ref
}
