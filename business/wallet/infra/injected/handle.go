package injected

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrHandleClosed is returned by calls on a deactivated handle.
var ErrHandleClosed = errors.New("injected: handle closed")

// Handle is an active session with the injected provider. It owns the RPC
// client until Deactivate closes it.
type Handle struct {
	id      string
	rpc     *rpc.Client
	eth     *ethclient.Client
	chainID atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

func newHandle(id string, client *rpc.Client, chainID uint64) *Handle {
	h := &Handle{
		id:   id,
		rpc:  client,
		eth:  ethclient.NewClient(client),
		done: make(chan struct{}),
	}
	h.chainID.Store(chainID)
	return h
}

// ID returns the identifier the connector assigned at activation.
func (h *Handle) ID() string { return h.id }

// ChainID returns the chain the provider last reported.
func (h *Handle) ChainID() uint64 { return h.chainID.Load() }

// BalanceAt returns the balance of account in wei at block, or at the latest
// block when block is nil.
func (h *Handle) BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error) {
	if h.closed.Load() {
		return nil, ErrHandleClosed
	}
	return h.eth.BalanceAt(ctx, account, block)
}

// Done is closed when the handle is deactivated.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) setChainID(id uint64) { h.chainID.Store(id) }

func (h *Handle) close() {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.done)
		h.rpc.Close()
	})
}
