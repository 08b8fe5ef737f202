// Package cli holds the start-up steps shared by cmd/financas,
// cmd/financas-worker and cmd/financasctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"financas/internal/analysis"
	"financas/internal/backend"
	"financas/internal/cache"
	"financas/internal/config"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/services"
)

// LoadEnvFile loads .env for local development. A missing file is not an
// error: production reads the real environment.
func LoadEnvFile(files ...string) {
	_ = godotenv.Load(files...)
}

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(level, component string, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: component,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig reads the configuration through lookup (the process
// environment when nil) and validates it.
func LoadAndValidateConfig(lookup func(string) string) (*config.Config, error) {
	var cfg *config.Config
	if lookup == nil {
		cfg = config.Load()
	} else {
		cfg = config.LoadWith(lookup)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewEngine builds the aggregation engine for the configured time zone and
// unknown-category mode.
func NewEngine(cfg *config.Config, catalog *core.Catalog) (*analysis.Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", cfg.Timezone, err)
	}
	mode, ok := analysis.ParseUnknownMode(cfg.UnknownCategoryMode)
	if !ok {
		return nil, fmt.Errorf("unknown category mode %q", cfg.UnknownCategoryMode)
	}
	return analysis.New(catalog, analysis.WithLocation(loc), analysis.WithUnknownMode(mode)), nil
}

// App is the wired domain layer: persistence, caches and the transaction
// service. Close releases everything it opened.
type App struct {
	Backend      *backend.BackendResult
	Catalog      *core.Catalog
	Engine       *analysis.Engine
	Caches       *cache.Manager
	Transactions *services.TransactionService
}

// BuildApp opens the configured backend and assembles the services on top
// of it. The event publisher is attached only when the broker was reached.
func BuildApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger.With(log.FieldComponent, log.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", backendCfg.Type, err)
	}

	catalog := core.DefaultCatalog()
	engine, err := NewEngine(cfg, catalog)
	if err != nil {
		_ = res.Close()
		return nil, err
	}

	snapshots := cache.NewSnapshots(cfg.SnapshotCacheSize, cfg.SnapshotCacheTTL)
	caches := cache.NewManager(logger.Logger.With(log.FieldComponent, log.ComponentCache))
	caches.Register(snapshots)

	opts := []services.ServiceOption{
		services.WithSnapshots(snapshots),
		services.WithLogger(logger),
	}
	if res.Publisher != nil {
		opts = append(opts, services.WithPublisher(res.Publisher))
	}

	return &App{
		Backend:      res,
		Catalog:      catalog,
		Engine:       engine,
		Caches:       caches,
		Transactions: services.NewTransactionService(res.Backend, catalog, engine, opts...),
	}, nil
}

// Close stops the cache sweep and releases the backend.
func (a *App) Close() error {
	a.Caches.Stop()
	return a.Backend.Close()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
