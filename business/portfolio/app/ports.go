// Package app contains the portfolio optimization service and its ports.
package app

import (
	"context"

	"github.com/fd1az/portfolio-optimizer/business/portfolio/domain"
)

// MarketDataProvider supplies return and covariance estimates for a set of
// assets, indexed like the input.
type MarketDataProvider interface {
	MarketData(ctx context.Context, assets []string) (domain.MarketData, error)
}
