package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/portfolio-optimizer/business/wallet/domain"
	"github.com/fd1az/portfolio-optimizer/internal/apm"
	"github.com/fd1az/portfolio-optimizer/internal/apperror"
	"github.com/fd1az/portfolio-optimizer/internal/asset"
	"github.com/fd1az/portfolio-optimizer/internal/logger"
)

const (
	tracerName = "github.com/fd1az/portfolio-optimizer/business/wallet/app"
	meterName  = "github.com/fd1az/portfolio-optimizer/business/wallet/app"
)

// SessionConfig holds session settings.
type SessionConfig struct {
	SupportedChains   domain.ChainSet
	ActivationTimeout time.Duration
	FetchTimeout      time.Duration
}

// DefaultSessionConfig returns the defaults for Mainnet, Goerli and Sepolia.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SupportedChains:   domain.NewChainSet(asset.ChainIDEthereum, asset.ChainIDGoerli, asset.ChainIDSepolia),
		ActivationTimeout: 10 * time.Second,
		FetchTimeout:      15 * time.Second,
	}
}

type sessionMetrics struct {
	connects      metric.Int64Counter
	disconnects   metric.Int64Counter
	fetches       metric.Int64Counter
	staleDiscards metric.Int64Counter
	events        metric.Int64Counter
	generation    metric.Int64Gauge
	fetchLatency  metric.Float64Histogram
}

// Session owns the connection state of one wallet: status, account, provider
// handle, balance and generation. Every change of account or handle bumps the
// generation; an asynchronous balance result is applied only if the generation
// it was issued under is still current, and only if no later fetch of the same
// generation has been applied already.
//
// Session is safe for concurrent use.
type Session struct {
	provider WalletProvider
	balances BalanceService
	cfg      SessionConfig
	log      logger.LoggerInterface
	tracer   trace.Tracer
	metrics  sessionMetrics

	mu         sync.Mutex
	status     domain.Status
	account    *common.Address
	handle     ProviderHandle
	chainID    uint64
	balance    *domain.Balance
	reason     *apperror.AppError
	generation uint64
	issued     uint64 // fetches issued under the current generation
	applied    uint64 // sequence of the last applied fetch
	updatedAt  time.Time
	stopWatch  context.CancelFunc
	closed     bool

	// subsMu is taken before mu when both are needed.
	subsMu  sync.Mutex
	subs    map[uint64]chan domain.Snapshot
	nextSub uint64

	lifetime context.Context
	cancel   context.CancelFunc
	fetchWG  sync.WaitGroup
	watchWG  sync.WaitGroup
}

// NewSession creates a disconnected session.
func NewSession(provider WalletProvider, balances BalanceService, cfg SessionConfig, log logger.LoggerInterface) (*Session, error) {
	if cfg.SupportedChains.Len() == 0 {
		cfg.SupportedChains = DefaultSessionConfig().SupportedChains
	}
	if cfg.ActivationTimeout <= 0 {
		cfg.ActivationTimeout = DefaultSessionConfig().ActivationTimeout
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultSessionConfig().FetchTimeout
	}

	lifetime, cancel := context.WithCancel(context.Background())

	s := &Session{
		provider:  provider,
		balances:  balances,
		cfg:       cfg,
		log:       log,
		tracer:    otel.Tracer(tracerName),
		status:    domain.StatusDisconnected,
		updatedAt: time.Now(),
		subs:      make(map[uint64]chan domain.Snapshot),
		lifetime:  lifetime,
		cancel:    cancel,
	}

	if err := s.initMetrics(); err != nil {
		cancel()
		return nil, err
	}

	return s, nil
}

func (s *Session) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics.connects, err = meter.Int64Counter(
		"wallet.connects",
		metric.WithDescription("Connect attempts by result"),
	)
	if err != nil {
		return err
	}

	s.metrics.disconnects, err = meter.Int64Counter(
		"wallet.disconnects",
		metric.WithDescription("Disconnect requests"),
	)
	if err != nil {
		return err
	}

	s.metrics.fetches, err = meter.Int64Counter(
		"wallet.balance.fetches",
		metric.WithDescription("Balance fetches by result"),
	)
	if err != nil {
		return err
	}

	s.metrics.staleDiscards, err = meter.Int64Counter(
		"wallet.balance.stale_discards",
		metric.WithDescription("Balance results discarded because a newer generation or fetch was current"),
	)
	if err != nil {
		return err
	}

	s.metrics.events, err = meter.Int64Counter(
		"wallet.provider.events",
		metric.WithDescription("Provider notifications by kind"),
	)
	if err != nil {
		return err
	}

	s.metrics.generation, err = meter.Int64Gauge(
		"wallet.generation",
		metric.WithDescription("Current session generation"),
	)
	if err != nil {
		return err
	}

	s.metrics.fetchLatency, err = meter.Float64Histogram(
		"wallet.balance.fetch_latency_ms",
		metric.WithDescription("Balance fetch latency"),
		metric.WithUnit("ms"),
	)
	return err
}

// Connect activates the wallet provider. It is accepted only while
// disconnected or in error. On success the session becomes connected and a
// balance fetch starts in the background; on failure the session records the
// reason, enters the error status and returns the failure.
func (s *Session) Connect(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "wallet.connect")
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("session closed"))
	}
	if !s.status.CanConnect() {
		status := s.status
		s.mu.Unlock()
		err := apperror.New(apperror.CodeInvalidState, apperror.WithContext("connect while "+status.String()))
		apm.NoticeError(span, err)
		return err
	}
	s.status = domain.StatusConnecting
	s.reason = nil
	s.touchLocked()
	gen := s.generation
	s.mu.Unlock()

	s.publish()

	actCtx, cancel := context.WithTimeout(ctx, s.cfg.ActivationTimeout)
	act, err := s.provider.Activate(actCtx)
	cancel()

	if err == nil && !s.cfg.SupportedChains.Contains(act.ChainID) {
		s.release(ctx, act.Handle)
		err = unsupportedChain(act.ChainID, s.cfg.SupportedChains)
		act = nil
	}

	s.mu.Lock()
	if s.closed || s.generation != gen || s.status != domain.StatusConnecting {
		// A Disconnect (or Close) won the race; the new handle is not ours to keep.
		s.mu.Unlock()
		if act != nil {
			s.release(ctx, act.Handle)
		}
		s.metrics.connects.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "superseded")))
		superseded := apperror.New(apperror.CodeWalletActivationFailed, apperror.WithContext("superseded by disconnect"))
		apm.NoticeError(span, superseded)
		return superseded
	}

	if err != nil {
		appErr := activationError(actCtx, err)
		s.status = domain.StatusError
		s.account = nil
		s.handle = nil
		s.balance = nil
		s.chainID = 0
		s.reason = appErr
		s.touchLocked()
		s.mu.Unlock()

		s.publish()
		s.metrics.connects.Add(ctx, 1, metric.WithAttributes(attribute.String("result", string(appErr.Code))))
		s.log.Warn(ctx, "wallet activation failed", "code", appErr.Code, "reason", appErr.Reason())
		apm.NoticeError(span, appErr)
		return appErr
	}

	account := act.Account
	s.status = domain.StatusConnected
	s.account = &account
	s.handle = act.Handle
	s.chainID = act.ChainID
	s.balance = nil
	s.bumpLocked()

	watchCtx, stopWatch := context.WithCancel(s.lifetime)
	s.stopWatch = stopWatch
	// Added under mu with closed unset, so Close cannot already be waiting.
	s.watchWG.Add(1)
	f := s.issueLocked(nil)
	genNow := s.generation
	s.mu.Unlock()

	s.metrics.connects.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	s.metrics.generation.Record(ctx, int64(genNow))
	s.log.Info(ctx, "wallet connected",
		"account", account.Hex(),
		"chain_id", act.ChainID,
		"handle", act.Handle.ID(),
		"generation", genNow,
	)
	span.SetAttributes(
		attribute.String("wallet.account", account.Hex()),
		attribute.Int64("wallet.chain_id", int64(act.ChainID)),
	)
	span.SetStatus(codes.Ok, "connected")

	s.publish()
	go s.runFetch(f)
	go s.watch(watchCtx, act.Handle)

	return nil
}

// Disconnect releases the provider handle, if any, and resets the session to
// disconnected with a new generation. It is idempotent; deactivation failures
// are logged and ignored.
func (s *Session) Disconnect(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "wallet.disconnect")
	defer span.End()

	s.mu.Lock()
	handle := s.resetLocked(domain.StatusDisconnected, nil)
	gen := s.generation
	s.mu.Unlock()

	s.finishDisconnect(ctx, handle, gen)
}

// disconnectOwned disconnects only while handleID still names the current
// handle. The ownership check and the reset share one critical section, so a
// late watcher cannot tear down a handle acquired after its own.
func (s *Session) disconnectOwned(ctx context.Context, handleID string) bool {
	s.mu.Lock()
	if !s.currentLocked(handleID) {
		s.mu.Unlock()
		return false
	}
	handle := s.resetLocked(domain.StatusDisconnected, nil)
	gen := s.generation
	s.mu.Unlock()

	s.finishDisconnect(ctx, handle, gen)
	return true
}

func (s *Session) finishDisconnect(ctx context.Context, handle ProviderHandle, gen uint64) {
	s.release(ctx, handle)

	s.metrics.disconnects.Add(ctx, 1)
	s.metrics.generation.Record(ctx, int64(gen))
	s.log.Info(ctx, "wallet disconnected", "generation", gen)
	s.publish()
}

// Refresh re-reads the latest balance under the current generation. It
// reports false, without side effects, when no account is connected.
func (s *Session) Refresh(ctx context.Context) bool {
	return s.refresh(ctx, "", nil)
}

// HandleEvent applies a provider notification to the current handle.
func (s *Session) HandleEvent(ctx context.Context, ev domain.ProviderEvent) {
	s.handleEvent(ctx, "", ev)
}

// handleEvent applies ev if handleID is empty or names the current handle, so
// late events from a released handle's watcher are dropped.
func (s *Session) handleEvent(ctx context.Context, handleID string, ev domain.ProviderEvent) {
	s.metrics.events.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(ev.Kind))))

	switch ev.Kind {
	case domain.EventAccountsChanged:
		if len(ev.Accounts) == 0 {
			if s.disconnectOwned(ctx, handleID) {
				s.log.Info(ctx, "wallet locked or accounts revoked")
			}
			return
		}
		s.switchAccount(ctx, handleID, ev.Accounts[0])

	case domain.EventChainChanged:
		s.switchChain(ctx, handleID, ev.ChainID)

	case domain.EventNewBlock:
		s.refresh(ctx, handleID, ev.Block)

	case domain.EventProviderDisconnected:
		if s.disconnectOwned(ctx, handleID) {
			s.log.Warn(ctx, "wallet provider disconnected")
		}
	}
}

func (s *Session) switchAccount(ctx context.Context, handleID string, account common.Address) {
	s.mu.Lock()
	if !s.currentLocked(handleID) || *s.account == account {
		s.mu.Unlock()
		return
	}

	previous := *s.account
	s.account = &account
	s.balance = nil
	s.bumpLocked()
	f := s.issueLocked(nil)
	s.mu.Unlock()

	s.log.Info(ctx, "wallet account changed", "from", previous.Hex(), "to", account.Hex(), "generation", f.gen)
	s.metrics.generation.Record(ctx, int64(f.gen))
	s.publish()
	go s.runFetch(f)
}

func (s *Session) switchChain(ctx context.Context, handleID string, chainID uint64) {
	s.mu.Lock()
	if !s.currentLocked(handleID) || s.chainID == chainID {
		s.mu.Unlock()
		return
	}

	if !s.cfg.SupportedChains.Contains(chainID) {
		reason := unsupportedChain(chainID, s.cfg.SupportedChains)
		handle := s.resetLocked(domain.StatusError, reason)
		s.mu.Unlock()

		s.log.Warn(ctx, "wallet switched to unsupported chain", "chain_id", chainID)
		s.release(ctx, handle)
		s.publish()
		return
	}

	s.chainID = chainID
	s.balance = nil
	s.bumpLocked()
	f := s.issueLocked(nil)
	s.mu.Unlock()

	s.log.Info(ctx, "wallet chain changed", "chain_id", chainID, "generation", f.gen)
	s.metrics.generation.Record(ctx, int64(f.gen))
	s.publish()
	go s.runFetch(f)
}

func (s *Session) refresh(_ context.Context, handleID string, block *big.Int) bool {
	s.mu.Lock()
	if !s.currentLocked(handleID) {
		s.mu.Unlock()
		return false
	}
	f := s.issueLocked(block)
	s.mu.Unlock()

	go s.runFetch(f)
	return true
}

// Snapshot returns a consistent copy of the current state.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every state change,
// and a func to stop receiving. The channel holds one snapshot; a slow reader
// only sees the latest. The channel is closed by cancel or by Close.
func (s *Session) Subscribe() (<-chan domain.Snapshot, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	ch := make(chan domain.Snapshot, 1)
	id := s.nextSub
	s.nextSub++

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		close(ch)
		return ch, func() {}
	}

	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Wait blocks until every in-flight balance fetch has completed.
func (s *Session) Wait() {
	s.fetchWG.Wait()
}

// Close disconnects, cancels outstanding RPCs, waits for background work and
// closes all subscriptions. The session rejects Connect afterwards.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Disconnect(ctx)
	s.cancel()
	s.fetchWG.Wait()
	s.watchWG.Wait()

	s.subsMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
}

// fetch is a balance request tagged with the generation and sequence it was
// issued under.
type fetch struct {
	gen     uint64
	seq     uint64
	handle  ProviderHandle
	account common.Address
	block   *big.Int
}

// issueLocked registers a new fetch for the current account and handle.
// s.mu must be held and the session connected.
func (s *Session) issueLocked(block *big.Int) fetch {
	s.issued++
	s.fetchWG.Add(1)

	var b *big.Int
	if block != nil {
		b = new(big.Int).Set(block)
	}

	return fetch{
		gen:     s.generation,
		seq:     s.issued,
		handle:  s.handle,
		account: *s.account,
		block:   b,
	}
}

func (s *Session) runFetch(f fetch) {
	defer s.fetchWG.Done()

	ctx, cancel := context.WithTimeout(s.lifetime, s.cfg.FetchTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "wallet.balance.refresh",
		trace.WithAttributes(
			attribute.Int64("wallet.generation", int64(f.gen)),
			attribute.Int64("wallet.seq", int64(f.seq)),
			attribute.String("wallet.account", f.account.Hex()),
		),
	)
	defer span.End()

	start := time.Now()
	amount, err := s.balances.GetBalance(ctx, f.handle, f.account, f.block)
	s.metrics.fetchLatency.Record(ctx, float64(time.Since(start).Milliseconds()))

	result := "ok"
	if err != nil {
		result = "error"
		apm.NoticeError(span, err)
	}
	s.metrics.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))

	s.apply(ctx, f, amount, err)
}

func (s *Session) apply(ctx context.Context, f fetch, amount asset.Amount, err error) {
	s.mu.Lock()
	if f.gen != s.generation || f.seq <= s.applied {
		current := s.generation
		s.mu.Unlock()

		s.metrics.staleDiscards.Add(ctx, 1)
		s.log.Debug(ctx, "discarding stale balance result",
			"generation", f.gen,
			"current_generation", current,
			"seq", f.seq,
		)
		return
	}

	s.applied = f.seq
	now := time.Now()

	var b domain.Balance
	if err != nil {
		b = domain.UnavailableBalance(now)
	} else {
		b = domain.NewBalance(amount, f.block, now)
	}
	s.balance = &b
	s.touchLocked()
	s.mu.Unlock()

	if err != nil {
		s.log.Warn(ctx, "balance fetch failed", "account", f.account.Hex(), "error", err)
	}
	s.publish()
}

// watch forwards provider events for handle until ctx ends. The caller has
// already counted it in watchWG.
func (s *Session) watch(ctx context.Context, handle ProviderHandle) {
	defer s.watchWG.Done()

	events, err := s.provider.Watch(ctx, handle)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		werr := apperror.New(apperror.CodeWalletWatchFailed, apperror.WithCause(err), apperror.WithContext(handle.ID()))
		s.log.Warn(ctx, "provider events unavailable", "error", werr)
		return
	}

	id := handle.ID()
	for ev := range events {
		s.handleEvent(ctx, id, ev)
	}
}

// release deactivates a handle the session no longer owns.
func (s *Session) release(ctx context.Context, handle ProviderHandle) {
	if handle == nil {
		return
	}
	if err := s.provider.Deactivate(ctx, handle); err != nil {
		derr := apperror.New(apperror.CodeWalletDeactivationFailed, apperror.WithCause(err), apperror.WithContext(handle.ID()))
		s.log.Warn(ctx, "wallet deactivation failed", "error", derr)
	}
}

// resetLocked clears account, handle and balance, stops the event watcher,
// sets status and reason and bumps the generation. It returns the handle the
// caller must release. s.mu must be held.
func (s *Session) resetLocked(status domain.Status, reason *apperror.AppError) ProviderHandle {
	handle := s.handle
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}

	s.status = status
	s.account = nil
	s.handle = nil
	s.chainID = 0
	s.balance = nil
	s.reason = reason
	s.bumpLocked()

	return handle
}

func (s *Session) bumpLocked() {
	s.generation++
	s.issued = 0
	s.applied = 0
	s.touchLocked()
}

func (s *Session) touchLocked() {
	s.updatedAt = time.Now()
}

// currentLocked reports whether the session is connected and, when handleID
// is set, still owns that handle.
func (s *Session) currentLocked(handleID string) bool {
	if s.status != domain.StatusConnected || s.handle == nil || s.account == nil {
		return false
	}
	return handleID == "" || s.handle.ID() == handleID
}

func (s *Session) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		Status:     s.status,
		ChainID:    s.chainID,
		Generation: s.generation,
		UpdatedAt:  s.updatedAt,
	}

	if s.account != nil {
		a := *s.account
		snap.Account = &a
	}
	if s.chainID != 0 {
		snap.ChainName = asset.ChainName(s.chainID)
	}
	if s.balance != nil {
		b := *s.balance
		snap.Balance = &b
	}
	if s.reason != nil {
		snap.Reason = s.reason.Reason()
		snap.ReasonCode = string(s.reason.Code)
	}

	return snap
}

// publish fans the current snapshot out to subscribers. Holding subsMu across
// snapshot and send keeps deliveries in state order.
func (s *Session) publish() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	if len(s.subs) == 0 {
		return
	}

	snap := s.Snapshot()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func unsupportedChain(chainID uint64, supported domain.ChainSet) *apperror.AppError {
	return apperror.New(apperror.CodeWalletUnsupportedChain,
		apperror.WithContext(fmt.Sprintf("chain %d not in [%s]", chainID, supported)))
}

// activationError normalizes a provider failure into an activation AppError.
func activationError(ctx context.Context, err error) *apperror.AppError {
	if appErr, ok := apperror.As(err); ok && apperror.IsActivationFailure(appErr.Code) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperror.New(apperror.CodeWalletActivationFailed,
			apperror.WithCause(err), apperror.WithContext("activation timed out"))
	}
	return apperror.New(apperror.CodeWalletActivationFailed, apperror.WithCause(err))
}
