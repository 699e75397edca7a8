// Package di contains dependency injection tokens for the portfolio context.
package di

import (
	"github.com/fd1az/portfolio-optimizer/business/portfolio/app"
	"github.com/fd1az/portfolio-optimizer/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Service = di.NewToken[*app.Service]("portfolio.Service")
)

// Private dependency tokens - internal to portfolio module
var (
	MarketData = di.NewToken[app.MarketDataProvider]("portfolio:marketData")
	Optimizer  = di.NewToken[*app.Optimizer]("portfolio:optimizer")
)

// Helper functions for type-safe access
func GetService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, Service)
}

func GetMarketData(c di.ServiceRegistry) app.MarketDataProvider {
	return di.GetToken(c, MarketData)
}

func GetOptimizer(c di.ServiceRegistry) *app.Optimizer {
	return di.GetToken(c, Optimizer)
}
