// Package portfolio implements the portfolio optimization bounded context.
package portfolio

import (
	"context"

	"github.com/fd1az/portfolio-optimizer/business/portfolio/app"
	portfolioDI "github.com/fd1az/portfolio-optimizer/business/portfolio/di"
	"github.com/fd1az/portfolio-optimizer/business/portfolio/infra/httpapi"
	"github.com/fd1az/portfolio-optimizer/internal/config"
	"github.com/fd1az/portfolio-optimizer/internal/di"
	"github.com/fd1az/portfolio-optimizer/internal/logger"
	"github.com/fd1az/portfolio-optimizer/internal/monolith"
)

// Module implements the portfolio bounded context.
type Module struct{}

// RegisterServices registers all portfolio services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Market data (private)
	di.RegisterToken(c, portfolioDI.MarketData, func(sr di.ServiceRegistry) app.MarketDataProvider {
		return app.NewMockMarketData()
	})

	// Solver (private)
	di.RegisterToken(c, portfolioDI.Optimizer, func(sr di.ServiceRegistry) *app.Optimizer {
		cfg := sr.Get("config").(*config.Config)
		return app.NewOptimizer(cfg.Portfolio.MaxIterations, cfg.Portfolio.Tolerance)
	})

	// Service (public)
	di.RegisterToken(c, portfolioDI.Service, func(sr di.ServiceRegistry) *app.Service {
		log := sr.Get("logger").(logger.LoggerInterface)

		svc, err := app.NewService(portfolioDI.GetMarketData(sr), portfolioDI.GetOptimizer(sr), log)
		if err != nil {
			panic("failed to create portfolio service: " + err.Error())
		}
		return svc
	})

	return nil
}

// Startup mounts the optimization endpoint.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	svc := portfolioDI.GetService(mono.Services())
	mono.API().Mount(httpapi.NewHandler(svc))

	mono.Logger().Info(ctx, "portfolio module started",
		"max_iterations", mono.Config().Portfolio.MaxIterations,
	)
	return nil
}
