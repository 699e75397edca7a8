package app

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/portfolio-optimizer/business/wallet/domain"
	"github.com/fd1az/portfolio-optimizer/internal/asset"
)

var (
	accountA = common.HexToAddress("0x0000000000000000000000000000000000000ABC")
	accountB = common.HexToAddress("0x0000000000000000000000000000000000000DEF")
)

type fakeHandle struct {
	id    string
	chain uint64
}

func (h *fakeHandle) ID() string      { return h.id }
func (h *fakeHandle) ChainID() uint64 { return h.chain }
func (h *fakeHandle) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return nil, errors.New("not used")
}

// fakeProvider hands out numbered handles. activate, when set, replaces the
// default successful activation.
type fakeProvider struct {
	mu          sync.Mutex
	activate    func(ctx context.Context, h *fakeHandle) (*Activation, error)
	next        int
	chain       uint64
	account     common.Address
	deactivated []string
	watchers    map[string]chan domain.ProviderEvent
	watchErr    error
	// watchStall makes Watch block until its context ends.
	watchStall bool
	watchCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		chain:    asset.ChainIDSepolia,
		account:  accountA,
		watchers: make(map[string]chan domain.ProviderEvent),
	}
}

func (p *fakeProvider) Activate(ctx context.Context) (*Activation, error) {
	p.mu.Lock()
	p.next++
	h := &fakeHandle{id: "handle-" + strconv.Itoa(p.next), chain: p.chain}
	fn := p.activate
	act := &Activation{Account: p.account, ChainID: p.chain, Handle: h}
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, h)
	}
	return act, nil
}

func (p *fakeProvider) Deactivate(_ context.Context, handle ProviderHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deactivated = append(p.deactivated, handle.ID())
	return nil
}

func (p *fakeProvider) Watch(ctx context.Context, handle ProviderHandle) (<-chan domain.ProviderEvent, error) {
	p.mu.Lock()
	p.watchCalls++
	stall := p.watchStall
	p.mu.Unlock()

	if stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watchErr != nil {
		return nil, p.watchErr
	}

	ch := make(chan domain.ProviderEvent, 8)
	p.watchers[handle.ID()] = ch

	out := make(chan domain.ProviderEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (p *fakeProvider) emit(t *testing.T, handleID string, ev domain.ProviderEvent) {
	t.Helper()

	var ch chan domain.ProviderEvent
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		var ok bool
		ch, ok = p.watchers[handleID]
		return ok
	}, 2*time.Second, 5*time.Millisecond, "no watcher for %s", handleID)
	ch <- ev
}

func (p *fakeProvider) watchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watchCalls
}

func (p *fakeProvider) deactivations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deactivated...)
}

type balanceReply struct {
	amount asset.Amount
	err    error
}

type balanceCall struct {
	account common.Address
	block   *big.Int
	reply   chan balanceReply
}

func (c balanceCall) resolve(t *testing.T, value string) {
	t.Helper()
	amount, err := asset.ParseString(asset.SepoliaETH, value)
	require.NoError(t, err)
	c.reply <- balanceReply{amount: amount}
}

func (c balanceCall) fail(err error) {
	c.reply <- balanceReply{err: err}
}

// gatedBalances parks every GetBalance call until the test resolves it.
type gatedBalances struct {
	calls chan balanceCall
}

func newGatedBalances() *gatedBalances {
	return &gatedBalances{calls: make(chan balanceCall, 16)}
}

func (g *gatedBalances) GetBalance(ctx context.Context, _ ProviderHandle, account common.Address, block *big.Int) (asset.Amount, error) {
	c := balanceCall{account: account, block: block, reply: make(chan balanceReply, 1)}

	select {
	case g.calls <- c:
	case <-ctx.Done():
		return asset.Amount{}, ctx.Err()
	}

	select {
	case r := <-c.reply:
		return r.amount, r.err
	case <-ctx.Done():
		return asset.Amount{}, ctx.Err()
	}
}

func (g *gatedBalances) next(t *testing.T) balanceCall {
	t.Helper()

	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a balance fetch")
		return balanceCall{}
	}
}

func (g *gatedBalances) none(t *testing.T) {
	t.Helper()

	select {
	case c := <-g.calls:
		t.Fatalf("unexpected balance fetch for %s", c.account.Hex())
	case <-time.After(50 * time.Millisecond):
	}
}

// instantBalances answers every call immediately with a fixed value.
type instantBalances struct{}

func (instantBalances) GetBalance(context.Context, ProviderHandle, common.Address, *big.Int) (asset.Amount, error) {
	return asset.ParseString(asset.SepoliaETH, "1")
}
