package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrNilAsset        = errors.New("asset: nil asset")
	ErrNilRaw          = errors.New("asset: nil raw value")
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrTooManyDecimals = errors.New("asset: more decimal places than the asset supports")
)

// Amount is an immutable balance of a native coin, held in wei.
type Amount struct {
	wei   *big.Int
	asset *Asset
}

// NewAmount copies wei into an Amount of asset. It panics on a nil asset,
// nil wei or negative wei; balances read from a node are never negative.
func NewAmount(asset *Asset, wei *big.Int) Amount {
	switch {
	case asset == nil:
		panic(ErrNilAsset)
	case wei == nil:
		panic(ErrNilRaw)
	case wei.Sign() < 0:
		panic(ErrNegativeAmount)
	}
	return Amount{wei: new(big.Int).Set(wei), asset: asset}
}

// ParseString reads a whole-unit decimal string such as "1.5" into an
// Amount. Precision below one wei is rejected rather than truncated.
func ParseString(asset *Asset, s string) (Amount, error) {
	if asset == nil {
		return Amount{}, ErrNilAsset
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("asset: invalid decimal string: %w", err)
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}

	wei := d.Shift(int32(asset.Decimals()))
	if !wei.Equal(wei.Truncate(0)) {
		return Amount{}, ErrTooManyDecimals
	}
	return NewAmount(asset, wei.BigInt()), nil
}

// Raw returns a copy of the wei value.
func (a Amount) Raw() *big.Int {
	if a.wei == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.wei)
}

func (a Amount) Asset() *Asset {
	return a.asset
}

// ToDecimal converts wei to whole units.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.wei == nil || a.asset == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.wei, -int32(a.asset.Decimals()))
}

// Value renders whole units with every significant digit and no symbol,
// e.g. "1.5" or "0.000000000000000001".
func (a Amount) Value() string {
	return a.ToDecimal().String()
}

func (a Amount) String() string {
	if a.asset == nil {
		return "0 ???"
	}
	return a.Value() + " " + a.asset.Symbol()
}
