// Package asset models native coins of EVM networks and exact amounts of them.
// Amounts are big.Int in the smallest unit; decimal.Decimal is only used at
// the display and parsing boundary.
package asset

import "fmt"

// Asset is the native coin of one chain.
type Asset struct {
	chainID  uint64
	symbol   string
	name     string
	decimals uint8
}

// NewNative creates the native coin of chainID. It panics on an empty
// symbol or implausible decimals.
func NewNative(chainID uint64, symbol, name string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}

	return &Asset{
		chainID:  chainID,
		symbol:   symbol,
		name:     name,
		decimals: decimals,
	}
}

func (a *Asset) ChainID() uint64 {
	return a.chainID
}

// Symbol returns the ticker symbol (e.g., "ETH").
func (a *Asset) Symbol() string {
	return a.symbol
}

// Name returns the human-readable name, falling back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

func (a *Asset) Decimals() uint8 {
	return a.decimals
}

func (a *Asset) String() string {
	return fmt.Sprintf("%s@%d", a.symbol, a.chainID)
}

