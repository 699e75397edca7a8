package app

import (
	"context"

	"github.com/fd1az/portfolio-optimizer/business/portfolio/domain"
)

// Annual return estimates. Unknown symbols get defaultReturn.
var mockReturns = map[string]float64{
	"BTC":   0.20,
	"ETH":   0.25,
	"SOL":   0.30,
	"AVAX":  0.22,
	"BNB":   0.18,
	"USDC":  0.04,
	"USDT":  0.04,
	"DAI":   0.04,
	"LINK":  0.15,
	"DOT":   0.17,
	"ADA":   0.16,
	"XRP":   0.13,
	"MATIC": 0.23,
	"DOGE":  0.10,
	"UNI":   0.14,
	"SHIB":  0.08,
	"AAVE":  0.19,
	"MKR":   0.21,
}

const defaultReturn = 0.15

type volTier int

const (
	tierDefault volTier = iota
	tierHigh
	tierMid
	tierStable
)

var tiers = map[string]volTier{
	"BTC": tierHigh, "ETH": tierHigh, "SOL": tierHigh, "AVAX": tierHigh, "DOGE": tierHigh, "SHIB": tierHigh,
	"BNB": tierMid, "LINK": tierMid, "DOT": tierMid, "ADA": tierMid, "XRP": tierMid,
	"MATIC": tierMid, "UNI": tierMid, "AAVE": tierMid, "MKR": tierMid,
	"USDC": tierStable, "USDT": tierStable, "DAI": tierStable,
}

func volatility(symbol string) float64 {
	switch tiers[symbol] {
	case tierHigh:
		return 0.80
	case tierMid:
		return 0.60
	case tierStable:
		return 0.05
	default:
		return 0.50
	}
}

func correlation(a, b string) float64 {
	switch {
	case a == b:
		return 1.0
	case tiers[a] == tierStable && tiers[b] == tierStable:
		return 0.95
	case isMajor(a) && isMajor(b):
		return 0.80
	default:
		return 0.50
	}
}

func isMajor(symbol string) bool {
	return symbol == "BTC" || symbol == "ETH"
}

// MockMarketData serves fixed demonstration estimates. Covariance is built as
// vol_i * vol_j * corr(i, j).
type MockMarketData struct{}

// NewMockMarketData returns the demonstration market data source.
func NewMockMarketData() *MockMarketData {
	return &MockMarketData{}
}

// MarketData implements MarketDataProvider.
func (MockMarketData) MarketData(_ context.Context, assets []string) (domain.MarketData, error) {
	n := len(assets)
	md := domain.MarketData{
		ExpectedReturns: make([]float64, n),
		Covariance:      make([][]float64, n),
	}

	vols := make([]float64, n)
	for i, a := range assets {
		r, ok := mockReturns[a]
		if !ok {
			r = defaultReturn
		}
		md.ExpectedReturns[i] = r
		vols[i] = volatility(a)
	}

	for i := range assets {
		md.Covariance[i] = make([]float64, n)
		for j := range assets {
			md.Covariance[i][j] = vols[i] * vols[j] * correlation(assets[i], assets[j])
		}
	}

	return md, nil
}
