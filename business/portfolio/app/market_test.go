package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockMarketData(t *testing.T) {
	assets := []string{"BTC", "ETH", "USDC", "DAI", "LINK", "NEWCOIN"}

	md, err := NewMockMarketData().MarketData(context.Background(), assets)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.20, 0.25, 0.04, 0.04, 0.15, 0.15}, md.ExpectedReturns)
	require.Len(t, md.Covariance, len(assets))

	const eps = 1e-12
	tests := []struct {
		name string
		i, j int
		want float64
	}{
		{"btc_variance", 0, 0, 0.64},
		{"btc_eth_major", 0, 1, 0.80 * 0.80 * 0.80},
		{"stable_pair", 2, 3, 0.05 * 0.05 * 0.95},
		{"stable_crypto", 0, 2, 0.80 * 0.05 * 0.50},
		{"mid_tier", 4, 4, 0.36},
		{"unknown_default_vol", 5, 5, 0.25},
		{"mid_unknown", 4, 5, 0.60 * 0.50 * 0.50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, md.Covariance[tt.i][tt.j], eps)
			assert.InDelta(t, tt.want, md.Covariance[tt.j][tt.i], eps, "symmetric")
		})
	}
}

func TestMockMarketData_Empty(t *testing.T) {
	md, err := MockMarketData{}.MarketData(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, md.ExpectedReturns)
	assert.Empty(t, md.Covariance)
}
