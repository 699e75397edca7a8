package injected

import (
	"context"
	"errors"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/portfolio-optimizer/business/wallet/app"
	"github.com/fd1az/portfolio-optimizer/business/wallet/domain"
	"github.com/fd1az/portfolio-optimizer/internal/apperror"
)

// WatchState describes how provider notifications are being received.
type WatchState string

const (
	WatchIdle       WatchState = "idle"
	WatchSubscribed WatchState = "subscribed"
	WatchPolling    WatchState = "polling"
	WatchLost       WatchState = "lost"
)

func (s WatchState) gauge() int64 {
	switch s {
	case WatchSubscribed:
		return 1
	case WatchPolling:
		return 2
	case WatchLost:
		return 3
	default:
		return 0
	}
}

// State returns the state of the most recent watcher.
func (c *Connector) State() WatchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Check reports provider health for the health server.
func (c *Connector) Check(context.Context) (bool, string) {
	state := c.State()
	return state != WatchLost, string(state)
}

func (c *Connector) setState(ctx context.Context, s WatchState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.metrics.watchState.Record(ctx, s.gauge())
}

// head is the part of a newHeads notification the watcher needs.
type head struct {
	Number *hexutil.Big `json:"number"`
}

// Watch streams provider notifications for handle. New blocks arrive through
// a newHeads subscription when the transport supports it, otherwise through
// eth_blockNumber polling; accounts and chain are polled every PollInterval.
// The channel is closed when ctx ends or the handle is deactivated.
func (c *Connector) Watch(ctx context.Context, handle app.ProviderHandle) (<-chan domain.ProviderEvent, error) {
	h, ok := handle.(*Handle)
	if !ok {
		return nil, apperror.New(apperror.CodeWalletWatchFailed,
			apperror.WithContext("foreign handle"))
	}
	if h.closed.Load() {
		return nil, apperror.New(apperror.CodeWalletWatchFailed,
			apperror.WithCause(ErrHandleClosed), apperror.WithContext(h.id))
	}

	w := &watcher{
		c:      c,
		h:      h,
		events: make(chan domain.ProviderEvent, c.cfg.BufferSize),
	}

	if err := w.baseline(ctx); err != nil {
		return nil, apperror.New(apperror.CodeWalletWatchFailed,
			apperror.WithCause(err), apperror.WithContext(h.id))
	}

	heads := make(chan head, c.cfg.BufferSize)
	sub, err := h.rpc.EthSubscribe(ctx, heads, "newHeads")
	if err != nil {
		if !errors.Is(err, rpc.ErrNotificationsUnsupported) {
			c.log.Debug(ctx, "newHeads subscription unavailable, polling", "error", err)
		}
		sub = nil
		c.setState(ctx, WatchPolling)
	} else {
		c.setState(ctx, WatchSubscribed)
	}

	go w.run(ctx, sub, heads)

	return w.events, nil
}

type watcher struct {
	c      *Connector
	h      *Handle
	events chan domain.ProviderEvent

	accounts  []common.Address
	lastBlock uint64
	failures  int
}

func (w *watcher) baseline(ctx context.Context) error {
	if err := w.h.rpc.CallContext(ctx, &w.accounts, "eth_accounts"); err != nil {
		return err
	}
	var n hexutil.Uint64
	if err := w.h.rpc.CallContext(ctx, &n, "eth_blockNumber"); err != nil {
		return err
	}
	w.lastBlock = uint64(n)
	return nil
}

func (w *watcher) run(ctx context.Context, sub *rpc.ClientSubscription, heads <-chan head) {
	defer close(w.events)

	var subErr <-chan error
	if sub != nil {
		defer sub.Unsubscribe()
		subErr = sub.Err()
	}

	ticker := time.NewTicker(w.c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.h.done:
			return

		case hd := <-heads:
			if hd.Number != nil {
				w.block(ctx, hd.Number.ToInt().Uint64())
			}

		case err := <-subErr:
			if w.h.closed.Load() {
				return
			}
			// The subscription ended under a live handle: the transport is gone.
			w.c.log.Warn(ctx, "newHeads subscription ended", "handle", w.h.id, "error", err)
			w.c.setState(ctx, WatchLost)
			w.emit(ctx, domain.ProviderDisconnected())
			return

		case <-ticker.C:
			if !w.poll(ctx, sub == nil) {
				w.c.setState(ctx, WatchLost)
				w.emit(ctx, domain.ProviderDisconnected())
				return
			}
		}
	}
}

// poll checks accounts, chain and, when pollHeads is set, the block number.
// It reports false once MaxPollFailures consecutive polls have failed.
func (w *watcher) poll(ctx context.Context, pollHeads bool) bool {
	ctx, cancel := context.WithTimeout(ctx, w.c.cfg.PollInterval)
	defer cancel()

	err := w.pollOnce(ctx, pollHeads)
	if err == nil {
		w.failures = 0
		return true
	}
	if w.h.closed.Load() || errors.Is(ctx.Err(), context.Canceled) {
		return true
	}

	w.failures++
	w.c.metrics.pollErrors.Add(ctx, 1)
	w.c.log.Warn(ctx, "provider poll failed", "handle", w.h.id, "failures", w.failures, "error", err)
	return w.failures < w.c.cfg.MaxPollFailures
}

func (w *watcher) pollOnce(ctx context.Context, pollHeads bool) error {
	var accounts []common.Address
	if err := w.h.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return err
	}
	if !slices.Equal(accounts, w.accounts) {
		w.accounts = accounts
		w.emit(ctx, domain.AccountsChanged(accounts...))
	}

	var chain hexutil.Big
	if err := w.h.rpc.CallContext(ctx, &chain, "eth_chainId"); err != nil {
		return err
	}
	if id := chain.ToInt().Uint64(); id != w.h.ChainID() {
		// The handle must report the new chain before the session sees the event.
		w.h.setChainID(id)
		w.emit(ctx, domain.ChainChanged(id))
	}

	if !pollHeads {
		return nil
	}

	var n hexutil.Uint64
	if err := w.h.rpc.CallContext(ctx, &n, "eth_blockNumber"); err != nil {
		return err
	}
	w.block(ctx, uint64(n))
	return nil
}

func (w *watcher) block(ctx context.Context, n uint64) {
	if n <= w.lastBlock {
		return
	}
	w.lastBlock = n
	w.emit(ctx, domain.NewBlock(new(big.Int).SetUint64(n)))
}

func (w *watcher) emit(ctx context.Context, ev domain.ProviderEvent) {
	select {
	case w.events <- ev:
		w.c.metrics.events.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(ev.Kind))))
	case <-ctx.Done():
	case <-w.h.done:
	}
}
