// Package injected implements the wallet provider over an injected
// Ethereum JSON-RPC endpoint (a local wallet daemon or node that answers
// eth_requestAccounts).
package injected

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/portfolio-optimizer/business/wallet/app"
	"github.com/fd1az/portfolio-optimizer/business/wallet/domain"
	"github.com/fd1az/portfolio-optimizer/internal/apm"
	"github.com/fd1az/portfolio-optimizer/internal/apperror"
	"github.com/fd1az/portfolio-optimizer/internal/logger"
)

const (
	tracerName = "github.com/fd1az/portfolio-optimizer/business/wallet/infra/injected"
	meterName  = "github.com/fd1az/portfolio-optimizer/business/wallet/infra/injected"
)

// Config holds connector settings.
type Config struct {
	ProviderURL     string
	SupportedChains domain.ChainSet
	PollInterval    time.Duration // accounts, chain and (without subscriptions) head polling
	MaxPollFailures int           // consecutive failed polls before the provider counts as lost
	BufferSize      int
}

// DefaultConfig returns defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		ProviderURL:     url,
		SupportedChains: domain.NewChainSet(1, 5, 11155111),
		PollInterval:    12 * time.Second,
		MaxPollFailures: 3,
		BufferSize:      16,
	}
}

// DialFunc opens an RPC client to url.
type DialFunc func(ctx context.Context, url string) (*rpc.Client, error)

// Option customizes a Connector.
type Option func(*Connector)

// WithHTTPClient routes HTTP(S) provider traffic through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Connector) { c.httpClient = hc }
}

// WithDialer replaces the transport dialer, e.g. with rpc.DialInProc in tests.
func WithDialer(dial DialFunc) Option {
	return func(c *Connector) { c.dial = dial }
}

type connectorMetrics struct {
	activations   metric.Int64Counter
	deactivations metric.Int64Counter
	events        metric.Int64Counter
	pollErrors    metric.Int64Counter
	watchState    metric.Int64Gauge
}

// Connector implements app.WalletProvider for an injected JSON-RPC wallet.
type Connector struct {
	cfg        Config
	log        logger.LoggerInterface
	dial       DialFunc
	httpClient *http.Client

	mu      sync.Mutex
	handles map[string]*Handle
	state   WatchState

	tracer  trace.Tracer
	metrics *connectorMetrics
}

var _ app.WalletProvider = (*Connector)(nil)

// NewConnector creates a connector. Nothing is dialed until Activate.
func NewConnector(cfg Config, log logger.LoggerInterface, opts ...Option) (*Connector, error) {
	def := DefaultConfig(cfg.ProviderURL)
	if cfg.SupportedChains.Len() == 0 {
		cfg.SupportedChains = def.SupportedChains
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxPollFailures <= 0 {
		cfg.MaxPollFailures = def.MaxPollFailures
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}

	c := &Connector{
		cfg:     cfg,
		log:     log,
		handles: make(map[string]*Handle),
		state:   WatchIdle,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dial == nil {
		c.dial = c.dialURL
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return c, nil
}

func (c *Connector) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &connectorMetrics{}

	c.metrics.activations, err = meter.Int64Counter(
		"wallet_activations_total",
		metric.WithDescription("Injected provider activations by result"),
		metric.WithUnit("{activation}"),
	)
	if err != nil {
		return err
	}

	c.metrics.deactivations, err = meter.Int64Counter(
		"wallet_deactivations_total",
		metric.WithDescription("Injected provider handles released"),
		metric.WithUnit("{deactivation}"),
	)
	if err != nil {
		return err
	}

	c.metrics.events, err = meter.Int64Counter(
		"wallet_provider_events_total",
		metric.WithDescription("Provider notifications emitted by kind"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	c.metrics.pollErrors, err = meter.Int64Counter(
		"wallet_provider_poll_errors_total",
		metric.WithDescription("Failed provider polls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	c.metrics.watchState, err = meter.Int64Gauge(
		"wallet_provider_watch_state",
		metric.WithDescription("Provider watch state (0=idle, 1=subscribed, 2=polling, 3=lost)"),
		metric.WithUnit("{state}"),
	)
	return err
}

func (c *Connector) dialURL(ctx context.Context, url string) (*rpc.Client, error) {
	var opts []rpc.ClientOption
	if c.httpClient != nil && (strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")) {
		opts = append(opts, rpc.WithHTTPClient(c.httpClient))
	}
	return rpc.DialOptions(ctx, url, opts...)
}

// Activate dials the provider, requests account access and checks the
// chain. The client is closed on every failure path.
func (c *Connector) Activate(ctx context.Context) (*app.Activation, error) {
	ctx, span := c.tracer.Start(ctx, "injected.activate")
	defer span.End()

	act, err := c.activate(ctx)
	if err != nil {
		appErr, _ := apperror.As(err)
		c.metrics.activations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", string(apperror.GetCode(err)))))
		apm.NoticeError(span, err)
		if appErr != nil {
			c.log.Warn(ctx, "injected provider activation failed", "code", appErr.Code, "reason", appErr.Reason())
		}
		return nil, err
	}

	c.metrics.activations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	span.SetAttributes(
		attribute.String("handle", act.Handle.ID()),
		attribute.Int64("chain_id", int64(act.ChainID)),
	)
	span.SetStatus(codes.Ok, "activated")
	return act, nil
}

func (c *Connector) activate(ctx context.Context) (*app.Activation, error) {
	if c.cfg.ProviderURL == "" {
		return nil, apperror.New(apperror.CodeWalletProviderNotFound,
			apperror.WithContext("no provider url configured"))
	}

	client, err := c.dial(ctx, c.cfg.ProviderURL)
	if err != nil {
		return nil, apperror.New(apperror.CodeWalletProviderNotFound,
			apperror.WithCause(err), apperror.WithContext("dial "+redactURL(c.cfg.ProviderURL)))
	}

	accounts, err := requestAccounts(ctx, client)
	if err != nil {
		client.Close()
		return nil, activationFailure(ctx, err, "eth_requestAccounts")
	}
	if len(accounts) == 0 {
		client.Close()
		return nil, apperror.New(apperror.CodeWalletUserRejected,
			apperror.WithContext("no accounts authorized"))
	}

	chain, err := ethclient.NewClient(client).ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, activationFailure(ctx, err, "eth_chainId")
	}
	if !chain.IsUint64() || !c.cfg.SupportedChains.Contains(chain.Uint64()) {
		client.Close()
		return nil, apperror.New(apperror.CodeWalletUnsupportedChain,
			apperror.WithContext(fmt.Sprintf("chain %s not in [%s]", chain, c.cfg.SupportedChains)))
	}

	h := newHandle(uuid.NewString(), client, chain.Uint64())

	c.mu.Lock()
	c.handles[h.id] = h
	c.mu.Unlock()

	c.log.Info(ctx, "injected provider activated",
		"handle", h.id,
		"account", accounts[0].Hex(),
		"chain_id", chain.Uint64(),
	)

	return &app.Activation{Account: accounts[0], ChainID: chain.Uint64(), Handle: h}, nil
}

// requestAccounts asks the wallet for access, falling back to eth_accounts
// on providers that do not implement eth_requestAccounts.
func requestAccounts(ctx context.Context, client *rpc.Client) ([]common.Address, error) {
	var accounts []common.Address
	err := client.CallContext(ctx, &accounts, "eth_requestAccounts")
	if err != nil && isMethodNotFound(err) {
		accounts = nil
		err = client.CallContext(ctx, &accounts, "eth_accounts")
	}
	return accounts, err
}

// Deactivate closes the handle's client and stops its watcher.
func (c *Connector) Deactivate(ctx context.Context, handle app.ProviderHandle) error {
	h, ok := handle.(*Handle)
	if !ok {
		return apperror.New(apperror.CodeWalletDeactivationFailed,
			apperror.WithContext(fmt.Sprintf("foreign handle %T", handle)))
	}

	c.mu.Lock()
	_, owned := c.handles[h.id]
	delete(c.handles, h.id)
	c.mu.Unlock()

	if !owned {
		return apperror.New(apperror.CodeWalletDeactivationFailed,
			apperror.WithContext("unknown handle "+h.id))
	}

	h.close()
	c.setState(ctx, WatchIdle)
	c.metrics.deactivations.Add(ctx, 1)
	c.log.Info(ctx, "injected provider deactivated", "handle", h.id)

	return nil
}

// ActiveHandles returns the number of handles not yet deactivated.
func (c *Connector) ActiveHandles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// Close deactivates every open handle.
func (c *Connector) Close() error {
	c.mu.Lock()
	handles := make([]*Handle, 0, len(c.handles))
	for id, h := range c.handles {
		handles = append(handles, h)
		delete(c.handles, id)
	}
	c.mu.Unlock()

	for _, h := range handles {
		h.close()
	}
	c.setState(context.Background(), WatchIdle)
	return nil
}

// redactURL drops credentials and query strings from provider URLs before
// they reach logs or errors.
func redactURL(url string) string {
	if i := strings.Index(url, "@"); i >= 0 {
		if j := strings.Index(url, "://"); j >= 0 && j < i {
			url = url[:j+3] + "***" + url[i:]
		}
	}
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}
	return url
}
