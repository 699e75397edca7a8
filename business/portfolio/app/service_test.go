package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/portfolio-optimizer/business/portfolio/domain"
	"github.com/fd1az/portfolio-optimizer/internal/apperror"
	"github.com/fd1az/portfolio-optimizer/internal/logger"
)

type failingMarket struct{ err error }

func (f failingMarket) MarketData(context.Context, []string) (domain.MarketData, error) {
	return domain.MarketData{}, f.err
}

func newTestService(t *testing.T, market MarketDataProvider) *Service {
	t.Helper()
	svc, err := NewService(market, NewOptimizer(5000, 1e-9), logger.NewDiscard())
	require.NoError(t, err)
	return svc
}

func TestService_SingleAsset(t *testing.T) {
	svc := newTestService(t, NewMockMarketData())

	res, err := svc.Optimize(context.Background(), domain.Request{Assets: []string{"BTC"}, RiskTolerance: 0.5})
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"BTC": 1}, res.Weights)
	assert.Equal(t, 0.2, res.ExpectedReturn)
	assert.Equal(t, 0.8, res.ExpectedRisk)
	assert.Equal(t, 0.25, res.SharpeRatio)
}

func TestService_RoundsToFourPlaces(t *testing.T) {
	svc := newTestService(t, NewMockMarketData())

	res, err := svc.Optimize(context.Background(), domain.Request{Assets: []string{"SOL", "AVAX"}, RiskTolerance: 0})
	require.NoError(t, err)

	assert.Equal(t, 0.5625, res.Weights["SOL"])
	assert.Equal(t, 0.4375, res.Weights["AVAX"])
	assert.Equal(t, 0.265, res.ExpectedReturn)
	assert.Equal(t, 0.6946, res.ExpectedRisk)
	// 0.265 / 0.6946222 before rounding.
	assert.Equal(t, 0.3815, res.SharpeRatio)
	assert.Positive(t, res.Iterations)
}

func TestService_AllocationInvariants(t *testing.T) {
	svc := newTestService(t, NewMockMarketData())
	assets := []string{"BTC", "ETH", "SOL", "USDC", "LINK"}

	prevReturn := -1.0
	for _, tau := range []float64{0, 0.25, 0.5, 0.75, 1} {
		res, err := svc.Optimize(context.Background(), domain.Request{Assets: assets, RiskTolerance: tau})
		require.NoError(t, err, "tau=%v", tau)

		require.Len(t, res.Weights, len(assets))
		var total float64
		for a, w := range res.Weights {
			assert.GreaterOrEqual(t, w, 0.0, "%s at tau=%v", a, tau)
			total += w
		}
		assert.InDelta(t, 1, total, 5e-4, "tau=%v", tau)

		// More tolerance never buys a lower expected return.
		assert.GreaterOrEqual(t, res.ExpectedReturn+1e-4, prevReturn, "tau=%v", tau)
		prevReturn = res.ExpectedReturn
	}
}

func TestService_ValidationErrors(t *testing.T) {
	svc := newTestService(t, NewMockMarketData())

	tests := []struct {
		name string
		req  domain.Request
		code apperror.Code
	}{
		{"no_assets", domain.Request{RiskTolerance: 0.5}, apperror.CodePortfolioNoAssets},
		{"bad_tolerance", domain.Request{Assets: []string{"BTC"}, RiskTolerance: 2}, apperror.CodePortfolioInvalidRisk},
		{"bad_weights", domain.Request{Assets: []string{"BTC"}, RiskTolerance: 0.5, InitialWeights: []float64{-1}}, apperror.CodePortfolioInvalidWeights},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Optimize(context.Background(), tt.req)
			assert.Nil(t, res)
			assert.Equal(t, tt.code, apperror.GetCode(err))
		})
	}
}

func TestService_MarketDataFailure(t *testing.T) {
	cause := errors.New("feed down")
	svc := newTestService(t, failingMarket{err: cause})

	_, err := svc.Optimize(context.Background(), domain.Request{Assets: []string{"BTC"}, RiskTolerance: 0.5})
	require.Error(t, err)
	assert.Equal(t, apperror.CodePortfolioOptimizationFailed, apperror.GetCode(err))
	assert.ErrorIs(t, err, cause)
}

func TestService_SolverFailure(t *testing.T) {
	svc, err := NewService(NewMockMarketData(), NewOptimizer(1, 1e-12), logger.NewDiscard())
	require.NoError(t, err)

	_, err = svc.Optimize(context.Background(), domain.Request{Assets: []string{"SOL", "AVAX"}, RiskTolerance: 0})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodePortfolioOptimizationFailed, appErr.Code)
	assert.Equal(t, 500, appErr.StatusCode)
}
