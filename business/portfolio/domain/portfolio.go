// Package domain contains the portfolio optimization value types.
package domain

import (
	"fmt"

	"github.com/fd1az/portfolio-optimizer/internal/apperror"
)

// DefaultRiskTolerance applies when a request leaves the tolerance out.
const DefaultRiskTolerance = 0.5

// Request asks for the allocation that best trades return against risk.
// RiskTolerance runs from 0 (minimum risk) to 1 (maximum return).
type Request struct {
	Assets         []string
	RiskTolerance  float64
	InitialWeights []float64
}

// Validate checks the request before any market data is fetched.
func (r Request) Validate() error {
	if len(r.Assets) == 0 {
		return apperror.Validation(apperror.CodePortfolioNoAssets, "")
	}

	seen := make(map[string]struct{}, len(r.Assets))
	for _, a := range r.Assets {
		if a == "" {
			return apperror.Validation(apperror.CodeInvalidInput, "empty asset symbol")
		}
		if _, dup := seen[a]; dup {
			return apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("duplicate asset %s", a))
		}
		seen[a] = struct{}{}
	}

	// NaN fails both comparisons.
	if !(r.RiskTolerance >= 0 && r.RiskTolerance <= 1) {
		return apperror.Validation(apperror.CodePortfolioInvalidRisk, fmt.Sprintf("got %v", r.RiskTolerance))
	}

	if r.InitialWeights != nil {
		if len(r.InitialWeights) != len(r.Assets) {
			return apperror.Validation(apperror.CodePortfolioInvalidWeights,
				fmt.Sprintf("%d weights for %d assets", len(r.InitialWeights), len(r.Assets)))
		}
		var sum float64
		for _, w := range r.InitialWeights {
			if !(w >= 0) {
				return apperror.Validation(apperror.CodePortfolioInvalidWeights, fmt.Sprintf("weight %v", w))
			}
			sum += w
		}
		if sum == 0 {
			return apperror.Validation(apperror.CodePortfolioInvalidWeights, "weights sum to zero")
		}
	}

	return nil
}

// RiskAversion is the penalty applied to variance in the objective.
func (r Request) RiskAversion() float64 {
	return 1 - r.RiskTolerance
}

// MarketData holds per-asset annual return estimates and their covariance,
// both indexed like the request's assets.
type MarketData struct {
	ExpectedReturns []float64
	Covariance      [][]float64
}

// Result is an optimized allocation. Weights are keyed by asset symbol.
type Result struct {
	Weights        map[string]float64
	ExpectedReturn float64
	ExpectedRisk   float64
	SharpeRatio    float64
	Iterations     int
}
