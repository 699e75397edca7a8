// Package wallet implements the wallet bounded context: the connection
// session, its injected provider and the balance service.
package wallet

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/portfolio-optimizer/business/wallet/app"
	walletDI "github.com/fd1az/portfolio-optimizer/business/wallet/di"
	"github.com/fd1az/portfolio-optimizer/business/wallet/domain"
	"github.com/fd1az/portfolio-optimizer/business/wallet/infra/balancecache"
	"github.com/fd1az/portfolio-optimizer/business/wallet/infra/ethereum"
	"github.com/fd1az/portfolio-optimizer/business/wallet/infra/httpapi"
	"github.com/fd1az/portfolio-optimizer/business/wallet/infra/injected"
	"github.com/fd1az/portfolio-optimizer/internal/asset"
	"github.com/fd1az/portfolio-optimizer/internal/config"
	"github.com/fd1az/portfolio-optimizer/internal/di"
	"github.com/fd1az/portfolio-optimizer/internal/httpclient"
	"github.com/fd1az/portfolio-optimizer/internal/logger"
	"github.com/fd1az/portfolio-optimizer/internal/monolith"
	"github.com/fd1az/portfolio-optimizer/internal/wsconn"
)

// StreamPath is where the health server exposes the snapshot stream.
const StreamPath = "/ws/wallet"

// Module implements the wallet bounded context.
type Module struct{}

// RegisterServices registers all wallet services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Injected provider (private)
	di.RegisterToken(c, walletDI.Connector, func(sr di.ServiceRegistry) *injected.Connector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		hc, err := httpclient.New(
			httpclient.WithProviderName("injected-wallet"),
			httpclient.WithRequestTimeout(cfg.Wallet.ActivationTimeout),
			httpclient.WithMaxConnsPerHost(4),
		)
		if err != nil {
			panic("failed to create wallet http client: " + err.Error())
		}

		connCfg := injected.DefaultConfig(cfg.Wallet.ProviderURL)
		connCfg.SupportedChains = domain.NewChainSet(cfg.Wallet.SupportedChainIDs...)
		connCfg.PollInterval = cfg.Wallet.PollInterval

		conn, err := injected.NewConnector(connCfg, log, injected.WithHTTPClient(hc))
		if err != nil {
			panic("failed to create wallet connector: " + err.Error())
		}
		return conn
	})

	// Block-pinned balance cache (private)
	di.RegisterToken(c, walletDI.BalanceCache, func(sr di.ServiceRegistry) ethereum.BalanceCache {
		cfg := sr.Get("config").(*config.Config)

		if cfg.Balance.CacheBackend == "redis" {
			client := sr.Get("redis").(redis.UniversalClient)
			return balancecache.NewRedis(client, cfg.Redis.KeyPrefix, cfg.Balance.CacheTTL)
		}
		return balancecache.NewMemory(cfg.Balance.CacheTTL)
	})

	// Balance service (private)
	di.RegisterToken(c, walletDI.BalanceService, func(sr di.ServiceRegistry) *ethereum.BalanceService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		balCfg := ethereum.DefaultBalanceConfig()
		balCfg.RateLimitPerMinute = cfg.Balance.RateLimitPerMinute
		balCfg.RequestTimeout = cfg.Balance.RequestTimeout

		svc, err := ethereum.NewBalanceService(balCfg, registry, walletDI.GetBalanceCache(sr), log)
		if err != nil {
			panic("failed to create balance service: " + err.Error())
		}
		return svc
	})

	// Session (public)
	di.RegisterToken(c, walletDI.Session, func(sr di.ServiceRegistry) *app.Session {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		sessCfg := app.DefaultSessionConfig()
		sessCfg.SupportedChains = domain.NewChainSet(cfg.Wallet.SupportedChainIDs...)
		sessCfg.ActivationTimeout = cfg.Wallet.ActivationTimeout
		sessCfg.FetchTimeout = cfg.Balance.RequestTimeout * 2

		session, err := app.NewSession(walletDI.GetConnector(sr), walletDI.GetBalanceService(sr), sessCfg, log)
		if err != nil {
			panic("failed to create wallet session: " + err.Error())
		}
		return session
	})

	return nil
}

// Startup mounts the wallet surfaces and, when configured, connects.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	session := walletDI.GetSession(mono.Services())
	conn := walletDI.GetConnector(mono.Services())
	balances := walletDI.GetBalanceService(mono.Services())

	mono.API().Mount(httpapi.NewHandler(session))

	mono.Health().RegisterCheck("wallet", conn.Check)
	mono.Health().RegisterCheck("balance_cache", balances.CheckCache)
	mono.Health().RegisterCheck("balance_rpc", balances.CheckRPC)
	mono.Health().Handle(StreamPath, wsconn.NewStreamer[domain.Snapshot](session, wsconn.DefaultConfig(), log))

	mono.OnClose(func(ctx context.Context) error {
		session.Close(ctx)
		return errors.Join(conn.Close(), balances.Close())
	})

	if cfg.Wallet.AutoConnect {
		if err := session.Connect(ctx); err != nil {
			// Don't fail startup; the reason is on the session for the UI.
			log.Warn(ctx, "wallet auto-connect failed", "error", err)
		}
	}

	log.Info(ctx, "wallet module started", "supported_chains", domain.NewChainSet(cfg.Wallet.SupportedChainIDs...).String())
	return nil
}
