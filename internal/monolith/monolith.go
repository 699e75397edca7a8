// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/portfolio-optimizer/internal/asset"
	"github.com/fd1az/portfolio-optimizer/internal/config"
	"github.com/fd1az/portfolio-optimizer/internal/di"
	"github.com/fd1az/portfolio-optimizer/internal/health"
	"github.com/fd1az/portfolio-optimizer/internal/logger"
	"github.com/fd1az/portfolio-optimizer/internal/server"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	AssetRegistry() *asset.Registry
	// Redis is nil unless the redis balance cache is configured.
	Redis() redis.UniversalClient
	API() *server.Server
	Health() *health.Server
	Services() di.ServiceRegistry
	// OnClose registers a shutdown hook. Hooks run in reverse order.
	OnClose(fn func(context.Context) error)
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// Options carries the infrastructure built by main.
type Options struct {
	Redis   redis.UniversalClient
	API     *server.Server
	Health  *health.Server
	Version string
}

// App implements the Monolith interface.
type App struct {
	config        *config.Config
	logger        logger.LoggerInterface
	assetRegistry *asset.Registry
	redis         redis.UniversalClient
	api           *server.Server
	health        *health.Server
	container     di.Container

	mu      sync.Mutex
	closers []func(context.Context) error
}

// New creates a new Monolith instance.
func New(cfg *config.Config, log logger.LoggerInterface, opts Options) *App {
	// Native coins of the supported networks
	assetRegistry := asset.DefaultRegistry()

	if opts.API == nil {
		opts.API = server.New(server.Config{AppName: cfg.App.Name, Port: cfg.API.Port}, log)
	}
	if opts.Health == nil {
		opts.Health = health.NewServer(cfg.Health.Port, opts.Version, log)
	}

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("assetRegistry", assetRegistry)
	if opts.Redis != nil {
		container.Register("redis", opts.Redis)
	}

	return &App{
		config:        cfg,
		logger:        log,
		assetRegistry: assetRegistry,
		redis:         opts.Redis,
		api:           opts.API,
		health:        opts.Health,
		container:     container,
	}
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *App) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *App) Redis() redis.UniversalClient {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.redis
}

func (a *App) API() *server.Server {
	return a.api
}

func (a *App) Health() *health.Server {
	return a.health
}

func (a *App) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *App) Container() di.Container {
	return a.container
}

func (a *App) OnClose(fn func(context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, fn)
}

// RegisterModules registers all provided modules.
func (a *App) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *App) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close runs the shutdown hooks, newest first, then closes Redis. Every hook
// runs; failures are collected.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	rdb := a.redis
	a.redis = nil
	a.mu.Unlock()

	var result *multierror.Error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
