package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/portfolio-optimizer/business/wallet/infra/balancecache"
	"github.com/fd1az/portfolio-optimizer/internal/apperror"
	"github.com/fd1az/portfolio-optimizer/internal/asset"
	"github.com/fd1az/portfolio-optimizer/internal/circuitbreaker"
	"github.com/fd1az/portfolio-optimizer/internal/logger"
)

var holder = common.HexToAddress("0x0000000000000000000000000000000000000ABC")

type stubHandle struct {
	mu     sync.Mutex
	chain  uint64
	wei    *big.Int
	err    error
	calls  int
	blocks []*big.Int
}

func (h *stubHandle) ID() string      { return "stub" }
func (h *stubHandle) ChainID() uint64 { return h.chain }

func (h *stubHandle) BalanceAt(_ context.Context, _ common.Address, block *big.Int) (*big.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.blocks = append(h.blocks, block)
	if h.err != nil {
		return nil, h.err
	}
	return new(big.Int).Set(h.wei), nil
}

func (h *stubHandle) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func wei(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}

func newTestService(t *testing.T, cache BalanceCache) *BalanceService {
	t.Helper()
	svc, err := NewBalanceService(DefaultBalanceConfig(), asset.DefaultRegistry(), cache, logger.NewDiscard())
	require.NoError(t, err)
	return svc
}

func TestGetBalance_FormatsNativeAmount(t *testing.T) {
	tests := []struct {
		name   string
		chain  uint64
		wei    string
		want   string
		symbol string
	}{
		{"sepolia", asset.ChainIDSepolia, "1500000000000000000", "1.5", "ETH"},
		{"mainnet one wei", asset.ChainIDEthereum, "1", "0.000000000000000001", "ETH"},
		{"zero", asset.ChainIDGoerli, "0", "0", "ETH"},
		{"unknown chain falls back to 18 decimals", 31337, "2000000000000000000", "2", "ETH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, nil)
			h := &stubHandle{chain: tt.chain, wei: wei(t, tt.wei)}

			amount, err := svc.GetBalance(context.Background(), h, holder, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, amount.Value())
			assert.Equal(t, tt.symbol, amount.Asset().Symbol())
			assert.Equal(t, tt.chain, amount.Asset().ChainID())
		})
	}
}

func TestGetBalance_LatestIsNeverCached(t *testing.T) {
	cache := balancecache.NewMemory(time.Minute)
	svc := newTestService(t, cache)
	h := &stubHandle{chain: asset.ChainIDSepolia, wei: big.NewInt(1)}

	for i := 0; i < 3; i++ {
		_, err := svc.GetBalance(context.Background(), h, holder, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, h.callCount())
	assert.Zero(t, cache.Len())
}

func TestGetBalance_PinnedBlockIsCached(t *testing.T) {
	cache := balancecache.NewMemory(time.Minute)
	svc := newTestService(t, cache)
	h := &stubHandle{chain: asset.ChainIDSepolia, wei: wei(t, "2500000000000000000")}

	block := big.NewInt(1234)
	first, err := svc.GetBalance(context.Background(), h, holder, block)
	require.NoError(t, err)

	h.wei = big.NewInt(0) // a re-read would now differ
	second, err := svc.GetBalance(context.Background(), h, holder, block)
	require.NoError(t, err)

	assert.Equal(t, 1, h.callCount())
	assert.Zero(t, first.Raw().Cmp(second.Raw()))
	assert.Equal(t, "2.5", second.Value())
	assert.Equal(t, int64(1234), h.blocks[0].Int64())

	_, err = svc.GetBalance(context.Background(), h, holder, big.NewInt(1235))
	require.NoError(t, err)
	assert.Equal(t, 2, h.callCount(), "a different block is a miss")
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*big.Int, bool, error) {
	return nil, false, errors.New("cache down")
}
func (failingCache) Set(context.Context, string, *big.Int) error { return errors.New("cache down") }
func (failingCache) Ping(context.Context) error                  { return errors.New("cache down") }

func TestGetBalance_CacheFailureFallsThrough(t *testing.T) {
	svc := newTestService(t, failingCache{})
	h := &stubHandle{chain: asset.ChainIDSepolia, wei: big.NewInt(7)}

	amount, err := svc.GetBalance(context.Background(), h, holder, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "7", amount.Raw().String())

	ok, detail := svc.CheckCache(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "cache down", detail)
}

func TestGetBalance_ProviderError(t *testing.T) {
	svc := newTestService(t, nil)
	h := &stubHandle{chain: asset.ChainIDSepolia, err: errors.New("header not found")}

	_, err := svc.GetBalance(context.Background(), h, holder, nil)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeBalanceFetchFailed, apperror.GetCode(err))
	assert.ErrorContains(t, err, "header not found")
}

func TestGetBalance_BreakerOpens(t *testing.T) {
	cfg := DefaultBalanceConfig()
	cfg.Breaker.ConsecutiveFailures = 2
	cfg.Breaker.Timeout = time.Hour

	svc, err := NewBalanceService(cfg, nil, nil, logger.NewDiscard())
	require.NoError(t, err)

	h := &stubHandle{chain: asset.ChainIDSepolia, err: errors.New("boom")}

	for i := 0; i < 2; i++ {
		_, err := svc.GetBalance(context.Background(), h, holder, nil)
		assert.Equal(t, apperror.CodeBalanceFetchFailed, apperror.GetCode(err))
	}
	assert.Equal(t, circuitbreaker.StateOpen, svc.BreakerState())

	healthy, detail := svc.CheckRPC(context.Background())
	assert.False(t, healthy)
	assert.Equal(t, "breaker open", detail)

	_, err = svc.GetBalance(context.Background(), h, holder, nil)
	assert.Equal(t, apperror.CodeCircuitOpen, apperror.GetCode(err))
	assert.Equal(t, 2, h.callCount(), "an open breaker does not reach the provider")
}

func TestGetBalance_CancellationDoesNotTripBreaker(t *testing.T) {
	cfg := DefaultBalanceConfig()
	cfg.Breaker.ConsecutiveFailures = 1

	svc, err := NewBalanceService(cfg, nil, nil, logger.NewDiscard())
	require.NoError(t, err)

	h := &stubHandle{chain: asset.ChainIDSepolia, err: context.Canceled}
	_, err = svc.GetBalance(context.Background(), h, holder, nil)
	require.Error(t, err)

	assert.Equal(t, circuitbreaker.StateClosed, svc.BreakerState())

	healthy, detail := svc.CheckRPC(context.Background())
	assert.True(t, healthy)
	assert.Equal(t, "breaker closed", detail)
}

func TestGetBalance_NegativeBalanceRejected(t *testing.T) {
	svc := newTestService(t, nil)
	h := &stubHandle{chain: asset.ChainIDSepolia, wei: big.NewInt(-1)}

	_, err := svc.GetBalance(context.Background(), h, holder, nil)
	assert.Equal(t, apperror.CodeBalanceFetchFailed, apperror.GetCode(err))
}

func TestClose_ReleasesCache(t *testing.T) {
	cache := balancecache.NewMemory(time.Minute)
	svc := newTestService(t, cache)
	h := &stubHandle{chain: asset.ChainIDSepolia, wei: big.NewInt(7)}

	_, err := svc.GetBalance(context.Background(), h, holder, big.NewInt(10))
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	require.NoError(t, svc.Close())
	assert.Zero(t, cache.Len())

	require.NoError(t, newTestService(t, nil).Close(), "no cache is a no-op")
	require.NoError(t, newTestService(t, failingCache{}).Close(), "caches without Close are left alone")
}

func TestCheckCache_Disabled(t *testing.T) {
	svc := newTestService(t, nil)
	ok, detail := svc.CheckCache(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "disabled", detail)
}
