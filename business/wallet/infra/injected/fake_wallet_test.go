package injected

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000ABC")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000DEF")
)

// walletError is a JSON-RPC error with a provider error code.
type walletError struct {
	code int
	msg  string
}

func (e walletError) Error() string  { return e.msg }
func (e walletError) ErrorCode() int { return e.code }

// fakeWallet is the "eth" namespace of an injected wallet.
type fakeWallet struct {
	mu              sync.Mutex
	accounts        []common.Address
	chainID         uint64
	block           uint64
	balances        map[common.Address]*big.Int
	reject          bool
	noRequestMethod bool
	noSubscriptions bool
	failAccounts    bool
	balanceQueries  []string
	heads           chan uint64
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		accounts: []common.Address{alice},
		chainID:  11155111,
		block:    100,
		balances: map[common.Address]*big.Int{alice: big.NewInt(1_500_000_000_000_000_000)},
		heads:    make(chan uint64, 8),
	}
}

func (f *fakeWallet) RequestAccounts() ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.noRequestMethod {
		return nil, walletError{code: codeMethodNotFound, msg: "the method eth_requestAccounts does not exist/is not available"}
	}
	if f.reject {
		return nil, walletError{code: codeUserRejected, msg: "User rejected the request."}
	}
	return append([]common.Address(nil), f.accounts...), nil
}

func (f *fakeWallet) Accounts() ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAccounts {
		return nil, errors.New("backend unavailable")
	}
	return append([]common.Address(nil), f.accounts...), nil
}

func (f *fakeWallet) ChainId() *hexutil.Big {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (*hexutil.Big)(new(big.Int).SetUint64(f.chainID))
}

func (f *fakeWallet) BlockNumber() hexutil.Uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return hexutil.Uint64(f.block)
}

func (f *fakeWallet) GetBalance(account common.Address, block string) (*hexutil.Big, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.balanceQueries = append(f.balanceQueries, block)
	b, ok := f.balances[account]
	if !ok {
		b = new(big.Int)
	}
	return (*hexutil.Big)(new(big.Int).Set(b)), nil
}

func (f *fakeWallet) NewHeads(ctx context.Context) (*rpc.Subscription, error) {
	f.mu.Lock()
	disabled := f.noSubscriptions
	f.mu.Unlock()
	if disabled {
		return nil, rpc.ErrNotificationsUnsupported
	}

	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return nil, rpc.ErrNotificationsUnsupported
	}

	sub := notifier.CreateSubscription()
	go func() {
		for {
			select {
			case n := <-f.heads:
				_ = notifier.Notify(sub.ID, head{Number: (*hexutil.Big)(new(big.Int).SetUint64(n))})
			case <-sub.Err():
				return
			}
		}
	}()
	return sub, nil
}

func (f *fakeWallet) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.balanceQueries...)
}

func (f *fakeWallet) set(fn func(f *fakeWallet)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// serve registers the wallet on an in-process RPC server.
func (f *fakeWallet) serve(t *testing.T) *rpc.Server {
	t.Helper()

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", f))
	t.Cleanup(srv.Stop)
	return srv
}

func inProcDialer(srv *rpc.Server) DialFunc {
	return func(context.Context, string) (*rpc.Client, error) {
		return rpc.DialInProc(srv), nil
	}
}
