// Package ethereum implements the balance query service on top of the
// provider handle's JSON-RPC client.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/portfolio-optimizer/business/wallet/app"
	"github.com/fd1az/portfolio-optimizer/internal/apperror"
	"github.com/fd1az/portfolio-optimizer/internal/asset"
	"github.com/fd1az/portfolio-optimizer/internal/circuitbreaker"
	"github.com/fd1az/portfolio-optimizer/internal/logger"
	"github.com/fd1az/portfolio-optimizer/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/portfolio-optimizer/business/wallet/infra/ethereum"
	meterName  = "github.com/fd1az/portfolio-optimizer/business/wallet/infra/ethereum"
)

// BalanceCache stores balances read at a fixed block.
type BalanceCache interface {
	Get(ctx context.Context, key string) (*big.Int, bool, error)
	Set(ctx context.Context, key string, wei *big.Int) error
	Ping(ctx context.Context) error
}

// BalanceConfig holds balance service settings.
type BalanceConfig struct {
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	Breaker            circuitbreaker.Config
}

// DefaultBalanceConfig returns sensible defaults.
func DefaultBalanceConfig() BalanceConfig {
	cfg := circuitbreaker.DefaultConfig("eth-balance")
	// Cancellations come from superseded sessions, not from the node.
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	}

	return BalanceConfig{
		RateLimitPerMinute: 300,
		RequestTimeout:     8 * time.Second,
		Breaker:            cfg,
	}
}

type balanceMetrics struct {
	requests    metric.Int64Counter
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	latency     metric.Float64Histogram
}

// BalanceService implements app.BalanceService.
type BalanceService struct {
	cfg      BalanceConfig
	log      logger.LoggerInterface
	registry *asset.Registry
	cache    BalanceCache
	limiter  *ratelimit.Limiter
	cb       *circuitbreaker.CircuitBreaker[*big.Int]

	tracer  trace.Tracer
	metrics *balanceMetrics
}

var _ app.BalanceService = (*BalanceService)(nil)

// NewBalanceService creates the service. cache may be nil to disable
// caching of block-pinned reads.
func NewBalanceService(cfg BalanceConfig, registry *asset.Registry, cache BalanceCache, log logger.LoggerInterface) (*BalanceService, error) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultBalanceConfig().RequestTimeout
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = DefaultBalanceConfig().Breaker
	}
	if registry == nil {
		registry = asset.DefaultRegistry()
	}

	s := &BalanceService{
		cfg:      cfg,
		log:      log,
		registry: registry,
		cache:    cache,
		limiter:  ratelimit.New("balance", cfg.RateLimitPerMinute),
		tracer:   otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	breaker := cfg.Breaker
	breaker.OnStateChange = func(name string, from, to gobreaker.State) {
		s.log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	s.cb = circuitbreaker.New[*big.Int](breaker)

	return s, nil
}

func (s *BalanceService) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &balanceMetrics{}

	s.metrics.requests, err = meter.Int64Counter(
		"eth_balance_requests_total",
		metric.WithDescription("eth_getBalance calls by result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	s.metrics.cacheHits, err = meter.Int64Counter(
		"eth_balance_cache_hits_total",
		metric.WithDescription("Block-pinned balance cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	s.metrics.cacheMisses, err = meter.Int64Counter(
		"eth_balance_cache_misses_total",
		metric.WithDescription("Block-pinned balance cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	s.metrics.latency, err = meter.Float64Histogram(
		"eth_balance_latency_ms",
		metric.WithDescription("eth_getBalance latency"),
		metric.WithUnit("ms"),
	)
	return err
}

// GetBalance returns the native balance of account on the handle's chain.
// A nil block reads the latest state and is never cached.
func (s *BalanceService) GetBalance(ctx context.Context, handle app.ProviderHandle, account common.Address, block *big.Int) (asset.Amount, error) {
	chainID := handle.ChainID()

	ctx, span := s.tracer.Start(ctx, "eth.get_balance",
		trace.WithAttributes(
			attribute.String("account", account.Hex()),
			attribute.Int64("chain_id", int64(chainID)),
			attribute.String("block", blockLabel(block)),
		),
	)
	defer span.End()

	native := s.registry.NativeOrDefault(chainID)

	var key string
	if block != nil && s.cache != nil {
		key = cacheKey(chainID, account, block)
		wei, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn(ctx, "balance cache read failed", "error", err)
		}
		if ok {
			s.metrics.cacheHits.Add(ctx, 1)
			span.AddEvent("cache_hit")
			return asset.NewAmount(native, wei), nil
		}
		s.metrics.cacheMisses.Add(ctx, 1)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limited")
		return asset.Amount{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	wei, err := s.cb.Execute(func() (*big.Int, error) {
		return handle.BalanceAt(reqCtx, account, block)
	})
	s.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()))

	if err != nil {
		s.metrics.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")

		if circuitbreaker.IsRejection(err) {
			return asset.Amount{}, apperror.New(apperror.CodeCircuitOpen,
				apperror.WithCause(err), apperror.WithContext(s.cb.Name()))
		}
		return asset.Amount{}, apperror.New(apperror.CodeBalanceFetchFailed,
			apperror.WithCause(err), apperror.WithContext(account.Hex()))
	}
	if wei == nil || wei.Sign() < 0 {
		s.metrics.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "invalid")))
		return asset.Amount{}, apperror.New(apperror.CodeBalanceFetchFailed,
			apperror.WithContext("invalid balance from provider"))
	}

	s.metrics.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))

	if key != "" {
		if err := s.cache.Set(ctx, key, wei); err != nil {
			s.log.Warn(ctx, "balance cache write failed", "error", err)
		}
	}

	amount := asset.NewAmount(native, wei)
	span.SetAttributes(attribute.String("balance", amount.Value()))
	span.SetStatus(codes.Ok, "fetched")

	return amount, nil
}

// BreakerState reports the circuit breaker state for health checks.
func (s *BalanceService) BreakerState() circuitbreaker.State {
	return s.cb.State()
}

// CheckRPC reports the balance RPC unhealthy while its breaker is open.
func (s *BalanceService) CheckRPC(context.Context) (bool, string) {
	state := s.BreakerState()
	return state != circuitbreaker.StateOpen, "breaker " + string(state)
}

// Close releases the cache when it owns resources.
func (s *BalanceService) Close() error {
	if c, ok := s.cache.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CheckCache reports cache reachability for the health server.
func (s *BalanceService) CheckCache(ctx context.Context) (bool, string) {
	if s.cache == nil {
		return true, "disabled"
	}
	if err := s.cache.Ping(ctx); err != nil {
		return false, err.Error()
	}
	return true, "ok"
}

func cacheKey(chainID uint64, account common.Address, block *big.Int) string {
	return strconv.FormatUint(chainID, 10) + ":" + account.Hex() + ":" + block.String()
}

func blockLabel(block *big.Int) string {
	if block == nil {
		return "latest"
	}
	return block.String()
}
