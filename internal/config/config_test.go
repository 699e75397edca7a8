package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: wallet\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Name != "wallet" {
		t.Errorf("expected app name from file, got %s", cfg.App.Name)
	}

	want := []uint64{1, 5, 11155111}
	if len(cfg.Wallet.SupportedChainIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Wallet.SupportedChainIDs)
	}
	for i, id := range want {
		if cfg.Wallet.SupportedChainIDs[i] != id {
			t.Errorf("chain %d: expected %d, got %d", i, id, cfg.Wallet.SupportedChainIDs[i])
		}
	}

	if cfg.Wallet.PollInterval != 12*time.Second {
		t.Errorf("expected 12s poll interval, got %s", cfg.Wallet.PollInterval)
	}
	if cfg.Balance.CacheBackend != "memory" {
		t.Errorf("expected memory cache, got %s", cfg.Balance.CacheBackend)
	}
	if cfg.API.Port != 8080 || cfg.Health.Port != 8081 {
		t.Errorf("unexpected ports api=%d health=%d", cfg.API.Port, cfg.Health.Port)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WALLET_PROVIDER_URL", "http://127.0.0.1:8545")
	t.Setenv("PORTFOLIO_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "wallet:\n  supported_chain_ids: [11155111]\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Wallet.ProviderURL != "http://127.0.0.1:8545" {
		t.Errorf("expected provider url from env, got %q", cfg.Wallet.ProviderURL)
	}
	if cfg.App.LogLevel != "debug" {
		t.Errorf("expected debug log level, got %s", cfg.App.LogLevel)
	}
	if len(cfg.Wallet.SupportedChainIDs) != 1 || cfg.Wallet.SupportedChainIDs[0] != 11155111 {
		t.Errorf("expected only sepolia, got %v", cfg.Wallet.SupportedChainIDs)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	if _, err := Load(writeConfig(t, "balance:\n  cache_backend: redis\n")); err == nil {
		t.Error("expected error for redis backend without url")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Wallet: WalletConfig{
				SupportedChainIDs: []uint64{1},
				PollInterval:      time.Second,
				ActivationTimeout: time.Second,
			},
			Balance:   BalanceConfig{CacheBackend: "memory"},
			Portfolio: PortfolioConfig{MaxIterations: 10, Tolerance: 1e-6},
			Telemetry: TelemetryConfig{TraceProvider: "none"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no chains", func(c *Config) { c.Wallet.SupportedChainIDs = nil }, true},
		{"zero poll", func(c *Config) { c.Wallet.PollInterval = 0 }, true},
		{"unknown cache", func(c *Config) { c.Balance.CacheBackend = "memcached" }, true},
		{"redis with url", func(c *Config) {
			c.Balance.CacheBackend = "redis"
			c.Redis.URL = "redis://localhost:6379/0"
		}, false},
		{"zero iterations", func(c *Config) { c.Portfolio.MaxIterations = 0 }, true},
		{"unknown tracer", func(c *Config) { c.Telemetry.TraceProvider = "jaeger" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTelemetryConfig_Headers(t *testing.T) {
	tc := TelemetryConfig{OTLPHeaders: "api-key=abc, x-team = wallet ,broken,=nokey"}
	got := tc.Headers()

	if len(got) != 2 {
		t.Fatalf("expected 2 headers, got %v", got)
	}
	if got["api-key"] != "abc" || got["x-team"] != "wallet" {
		t.Errorf("unexpected headers %v", got)
	}
	if n := len(TelemetryConfig{}.Headers()); n != 0 {
		t.Errorf("expected no headers, got %d", n)
	}
}
