package domain

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/fd1az/portfolio-optimizer/internal/asset"
)

// UnavailableText is how a failed balance fetch is displayed.
const UnavailableText = "unavailable"

// Balance is the native-coin balance of the connected account, or the
// unavailable sentinel when the last fetch for the account failed.
type Balance struct {
	Amount      asset.Amount
	Unavailable bool
	Block       *big.Int // nil means latest
	FetchedAt   time.Time
}

// NewBalance returns an available balance read at block.
func NewBalance(amount asset.Amount, block *big.Int, at time.Time) Balance {
	var b *big.Int
	if block != nil {
		b = new(big.Int).Set(block)
	}
	return Balance{Amount: amount, Block: b, FetchedAt: at}
}

// UnavailableBalance returns the sentinel stored when a fetch fails.
func UnavailableBalance(at time.Time) Balance {
	return Balance{Unavailable: true, FetchedAt: at}
}

// String renders the balance in whole units (e.g. "1.5") or "unavailable".
func (b Balance) String() string {
	if b.Unavailable {
		return UnavailableText
	}
	return b.Amount.Value()
}

// Symbol returns the asset symbol, empty when unavailable.
func (b Balance) Symbol() string {
	if b.Unavailable || b.Amount.Asset() == nil {
		return ""
	}
	return b.Amount.Asset().Symbol()
}

type balanceJSON struct {
	Value       string    `json:"value"`
	Symbol      string    `json:"symbol,omitempty"`
	Wei         string    `json:"wei,omitempty"`
	Unavailable bool      `json:"unavailable"`
	Block       string    `json:"block,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

func (b Balance) MarshalJSON() ([]byte, error) {
	out := balanceJSON{
		Value:       b.String(),
		Symbol:      b.Symbol(),
		Unavailable: b.Unavailable,
		FetchedAt:   b.FetchedAt,
	}
	if !b.Unavailable {
		out.Wei = b.Amount.Raw().String()
	}
	if b.Block != nil {
		out.Block = b.Block.String()
	}
	return json.Marshal(out)
}
