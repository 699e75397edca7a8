// Package main is the entry point for the portfolio optimizer wallet client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/portfolio-optimizer/business/portfolio"
	"github.com/fd1az/portfolio-optimizer/business/wallet"
	walletDI "github.com/fd1az/portfolio-optimizer/business/wallet/di"
	"github.com/fd1az/portfolio-optimizer/business/wallet/infra/balancecache"
	"github.com/fd1az/portfolio-optimizer/internal/apm"
	"github.com/fd1az/portfolio-optimizer/internal/config"
	"github.com/fd1az/portfolio-optimizer/internal/logger"
	"github.com/fd1az/portfolio-optimizer/internal/metrics"
	"github.com/fd1az/portfolio-optimizer/internal/monolith"
	"github.com/fd1az/portfolio-optimizer/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("portfolio-optimizer %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for servers and debugging
	tuiMode := !*cliMode

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	// The TUI owns the terminal; logs would corrupt it.
	out := io.Writer(os.Stderr)
	if tuiMode {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting portfolio optimizer",
		"version", version,
		"environment", cfg.App.Environment,
	)

	traceProvider, err := apm.NewTraceProvider(ctx, traceConfig(cfg), log)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}

	meterProvider, err := metrics.NewMetricProvider(ctx, metricOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}

	var rdb redis.UniversalClient
	if cfg.Balance.CacheBackend == "redis" {
		client, err := balancecache.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		rdb = client
		log.Info(ctx, "redis balance cache connected")
	}

	mono := monolith.New(cfg, log, monolith.Options{Redis: rdb, Version: version})

	// Shutdown runs in reverse: modules, then telemetry flush.
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := mono.Close(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "shutdown errors", "error", err)
		}
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "meter provider shutdown", "error", err)
		}
		if err := traceProvider.Stop(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "trace provider shutdown", "error", err)
		}
	}()

	// Define modules in dependency order
	modules := []monolith.Module{
		&wallet.Module{},
		&portfolio.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.API.Enabled {
		g.Go(func() error { return mono.API().Run(gctx) })
	}
	g.Go(func() error { return mono.Health().Run(gctx) })
	if cfg.Telemetry.Enabled {
		g.Go(func() error { return metrics.ServePrometheus(gctx, cfg.Telemetry.PrometheusPort, log) })
	}

	session := walletDI.GetSession(mono.Services())
	g.Go(func() error {
		// Quitting the TUI stops the servers too.
		defer cancel()
		if tuiMode {
			return ui.Run(gctx, session)
		}
		return runCLI(gctx, session, log)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info(ctx, "shutting down")
	return nil
}

// runCLI logs every session state change until ctx ends.
func runCLI(ctx context.Context, session ui.Controller, log logger.LoggerInterface) error {
	updates, unsubscribe := session.Subscribe()
	defer unsubscribe()

	log.Info(ctx, "wallet session ready", "status", session.Snapshot().Status)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			args := []any{"status", snap.Status, "generation", snap.Generation}
			if snap.Account != nil {
				args = append(args, "account", snap.Account.Hex(), "chain_id", snap.ChainID)
			}
			if snap.Balance != nil {
				args = append(args, "balance", snap.BalanceText())
			}
			if snap.Reason != "" {
				args = append(args, "reason", snap.Reason)
			}
			log.Info(ctx, "wallet state", args...)
		}
	}
}

func traceConfig(cfg *config.Config) apm.Config {
	if !cfg.Telemetry.Enabled {
		return apm.Config{Provider: apm.EmptyProvider}
	}

	endpoint := cfg.Telemetry.TraceEndpoint
	provider := apm.Provider(cfg.Telemetry.TraceProvider)
	if endpoint == "" && (provider == apm.OTLPGRPCProvider || provider == apm.OTLPHTTPProvider) {
		endpoint = cfg.Telemetry.OTLPEndpoint
	}

	return apm.Config{
		Provider:    provider,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    endpoint,
		Headers:     cfg.Telemetry.Headers(),
		SampleRatio: cfg.Telemetry.SampleRatio,
	}
}

func metricOptions(cfg *config.Config) []metrics.OptionFn {
	opts := []metrics.OptionFn{metrics.WithServiceName(cfg.Telemetry.ServiceName)}
	if !cfg.Telemetry.Enabled {
		return opts
	}

	return append(opts,
		metrics.WithPrometheus(),
		metrics.WithOTLP(cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Headers(), true),
	)
}
