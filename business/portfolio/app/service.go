package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/portfolio-optimizer/business/portfolio/domain"
	"github.com/fd1az/portfolio-optimizer/internal/apm"
	"github.com/fd1az/portfolio-optimizer/internal/apperror"
	"github.com/fd1az/portfolio-optimizer/internal/logger"
)

const (
	tracerName = "github.com/fd1az/portfolio-optimizer/business/portfolio/app"
	meterName  = "github.com/fd1az/portfolio-optimizer/business/portfolio/app"
)

// resultPlaces is the rounding applied to every reported figure.
const resultPlaces = 4

type serviceMetrics struct {
	optimizations metric.Int64Counter
	iterations    metric.Int64Histogram
	latency       metric.Float64Histogram
}

// Service answers optimization requests against a market data source.
type Service struct {
	market    MarketDataProvider
	optimizer *Optimizer
	log       logger.LoggerInterface
	tracer    trace.Tracer
	metrics   serviceMetrics
}

// NewService creates a portfolio service.
func NewService(market MarketDataProvider, optimizer *Optimizer, log logger.LoggerInterface) (*Service, error) {
	s := &Service{
		market:    market,
		optimizer: optimizer,
		log:       log,
		tracer:    otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics.optimizations, err = meter.Int64Counter(
		"portfolio.optimizations",
		metric.WithDescription("Optimization requests by result"),
	)
	if err != nil {
		return err
	}

	s.metrics.iterations, err = meter.Int64Histogram(
		"portfolio.optimizer.iterations",
		metric.WithDescription("Solver iterations until convergence"),
	)
	if err != nil {
		return err
	}

	s.metrics.latency, err = meter.Float64Histogram(
		"portfolio.optimize_latency_ms",
		metric.WithDescription("Optimization latency"),
		metric.WithUnit("ms"),
	)
	return err
}

// Optimize validates the request, loads market data and solves for the
// allocation. Weights and metrics are rounded to four decimal places; the
// Sharpe ratio is return over risk, or zero for a riskless portfolio.
func (s *Service) Optimize(ctx context.Context, req domain.Request) (*domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, "portfolio.optimize",
		trace.WithAttributes(
			attribute.Int("assets", len(req.Assets)),
			attribute.Float64("risk_tolerance", req.RiskTolerance),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := s.optimize(ctx, req)
	s.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()))

	if err != nil {
		apm.NoticeError(span, err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.optimizations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("result", string(apperror.GetCode(err))),
		))
		return nil, err
	}

	s.metrics.optimizations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	s.metrics.iterations.Record(ctx, int64(result.Iterations))
	span.SetAttributes(attribute.Int("iterations", result.Iterations))

	s.log.Debug(ctx, "portfolio optimized",
		"assets", req.Assets,
		"risk_tolerance", req.RiskTolerance,
		"expected_return", result.ExpectedReturn,
		"expected_risk", result.ExpectedRisk,
		"iterations", result.Iterations,
	)

	return result, nil
}

func (s *Service) optimize(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	md, err := s.market.MarketData(ctx, req.Assets)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodePortfolioOptimizationFailed, "market data")
	}

	sol, err := s.optimizer.Solve(md, req.RiskAversion(), req.InitialWeights)
	if err != nil {
		return nil, err
	}

	var sharpe float64
	if sol.Risk > 0 {
		sharpe = sol.Return / sol.Risk
	}

	weights := make(map[string]float64, len(req.Assets))
	for i, a := range req.Assets {
		weights[a] = round(sol.Weights[i])
	}

	return &domain.Result{
		Weights:        weights,
		ExpectedReturn: round(sol.Return),
		ExpectedRisk:   round(sol.Risk),
		SharpeRatio:    round(sharpe),
		Iterations:     sol.Iterations,
	}, nil
}

func round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(resultPlaces).InexactFloat64()
}
