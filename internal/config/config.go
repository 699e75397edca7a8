// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Balance   BalanceConfig   `mapstructure:"balance"`
	Redis     RedisConfig     `mapstructure:"redis"`
	API       APIConfig       `mapstructure:"api"`
	Health    HealthConfig    `mapstructure:"health"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // set at runtime from flags
}

// WalletConfig configures the injected wallet connector.
type WalletConfig struct {
	// ProviderURL is the endpoint of the injected provider (http, ws or ipc).
	// Empty means no provider is present; connecting then fails with a
	// provider-not-found reason.
	ProviderURL       string        `mapstructure:"provider_url"`
	SupportedChainIDs []uint64      `mapstructure:"supported_chain_ids"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ActivationTimeout time.Duration `mapstructure:"activation_timeout"`
	AutoConnect       bool          `mapstructure:"auto_connect"`
}

// BalanceConfig configures the balance query service.
type BalanceConfig struct {
	CacheBackend       string        `mapstructure:"cache_backend"` // memory | redis
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

// RedisConfig holds the shared balance cache connection.
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig configures the health and stream server.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// PortfolioConfig tunes the optimizer.
type PortfolioConfig struct {
	MaxIterations int     `mapstructure:"max_iterations"`
	Tolerance     float64 `mapstructure:"tolerance"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	TraceProvider  string  `mapstructure:"trace_provider"` // zipkin | console | otlp-grpc | otlp-http | none
	TraceEndpoint  string  `mapstructure:"trace_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string  `mapstructure:"otlp_headers"`
	PrometheusPort int     `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("PORTFOLIO")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "PORTFOLIO_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "PORTFOLIO_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "PORTFOLIO_LOG_LEVEL", "LOG_LEVEL")

	// Wallet
	v.BindEnv("wallet.provider_url", "PORTFOLIO_WALLET_PROVIDER_URL", "WALLET_PROVIDER_URL")
	v.BindEnv("wallet.supported_chain_ids", "PORTFOLIO_WALLET_CHAIN_IDS", "WALLET_CHAIN_IDS")
	v.BindEnv("wallet.poll_interval", "PORTFOLIO_WALLET_POLL_INTERVAL")
	v.BindEnv("wallet.auto_connect", "PORTFOLIO_WALLET_AUTO_CONNECT")

	// Balance
	v.BindEnv("balance.cache_backend", "PORTFOLIO_BALANCE_CACHE")
	v.BindEnv("balance.rate_limit_per_minute", "PORTFOLIO_BALANCE_RATE_LIMIT")

	// Redis
	v.BindEnv("redis.url", "PORTFOLIO_REDIS_URL", "REDIS_URL")

	// Servers
	v.BindEnv("api.port", "PORTFOLIO_API_PORT", "PORT")
	v.BindEnv("health.port", "PORTFOLIO_HEALTH_PORT")

	// Telemetry
	v.BindEnv("telemetry.enabled", "PORTFOLIO_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "PORTFOLIO_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.trace_provider", "PORTFOLIO_TRACE_PROVIDER")
	v.BindEnv("telemetry.trace_endpoint", "PORTFOLIO_TRACE_ENDPOINT")
	v.BindEnv("telemetry.otlp_endpoint", "PORTFOLIO_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "portfolio-optimizer")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Mainnet, Goerli, Sepolia.
	v.SetDefault("wallet.supported_chain_ids", []uint64{1, 5, 11155111})
	v.SetDefault("wallet.poll_interval", "12s")
	v.SetDefault("wallet.activation_timeout", "10s")
	v.SetDefault("wallet.auto_connect", false)

	v.SetDefault("balance.cache_backend", "memory")
	v.SetDefault("balance.cache_ttl", "10m")
	v.SetDefault("balance.rate_limit_per_minute", 300)
	v.SetDefault("balance.request_timeout", "8s")

	v.SetDefault("redis.key_prefix", "portfolio:")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8080)
	v.SetDefault("health.port", 8081)

	v.SetDefault("portfolio.max_iterations", 5000)
	v.SetDefault("portfolio.tolerance", 1e-9)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "portfolio-optimizer")
	v.SetDefault("telemetry.trace_provider", "none")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Wallet.SupportedChainIDs) == 0 {
		return fmt.Errorf("wallet.supported_chain_ids cannot be empty")
	}
	if c.Wallet.PollInterval <= 0 {
		return fmt.Errorf("wallet.poll_interval must be positive")
	}
	if c.Wallet.ActivationTimeout <= 0 {
		return fmt.Errorf("wallet.activation_timeout must be positive")
	}

	switch c.Balance.CacheBackend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required when balance.cache_backend is redis")
		}
	default:
		return fmt.Errorf("invalid balance.cache_backend: %s", c.Balance.CacheBackend)
	}

	if c.Portfolio.MaxIterations <= 0 {
		return fmt.Errorf("portfolio.max_iterations must be positive")
	}
	if c.Portfolio.Tolerance <= 0 {
		return fmt.Errorf("portfolio.tolerance must be positive")
	}

	switch c.Telemetry.TraceProvider {
	case "", "none", "zipkin", "console", "otlp-grpc", "otlp-http":
	default:
		return fmt.Errorf("invalid telemetry.trace_provider: %s", c.Telemetry.TraceProvider)
	}

	return nil
}

// Headers parses OTLPHeaders ("k1=v1,k2=v2"). Malformed pairs are skipped.
func (t TelemetryConfig) Headers() map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(t.OTLPHeaders, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		headers[k] = strings.TrimSpace(v)
	}
	return headers
}
