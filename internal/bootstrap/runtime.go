package bootstrap

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/instance"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/metrics"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/migrate"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/redis"
)

// Needs selects the shared connections a binary opens.
type Needs uint8

const (
	NeedDB Needs = 1 << iota
	NeedRedis
	// NoAutoMigrate leaves a dev database as found.
	NoAutoMigrate
)

// Runtime is the process scaffolding shared by the binaries: config, the
// leveled logger and whichever connections the binary asked for. Resources
// registered with OnClose are released in reverse order.
type Runtime struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// NewRuntime starts with a bootstrap logger so config failures are still
// reported as JSON.
func NewRuntime(name string) *Runtime {
	return &Runtime{Name: name, Logger: logger.New(logger.Options{ServiceName: name})}
}

// Open loads .env and config, rebuilds the logger at the configured level
// and dials what needs asks for. Dev databases are migrated on open.
func (r *Runtime) Open(ctx context.Context, needs Needs) error {
	if err := godotenv.Load(); err != nil {
		r.Logger.Debug(ctx, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.Service.Kind = r.Name
	r.Config = cfg
	r.Logger = logger.New(logger.Options{
		ServiceName: r.Name,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if needs&NeedDB != 0 {
		client, err := db.New(ctx, cfg.DB, r.Logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		r.DB = client
		r.OnClose("database", client.Close)
		if needs&NoAutoMigrate == 0 {
			if err := migrate.MaybeRunDev(ctx, cfg, r.Logger, client); err != nil {
				return fmt.Errorf("dev migrations: %w", err)
			}
		}
	}
	if needs&NeedRedis != 0 {
		client, err := redis.New(ctx, cfg.Redis, r.Logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		r.Redis = client
		r.OnClose("redis", client.Close)
	}
	return nil
}

// OnClose registers fn to run when the runtime closes.
func (r *Runtime) OnClose(name string, fn func() error) {
	r.closers = append(r.closers, closer{name: name, fn: fn})
}

// Close releases every registered resource, newest first.
func (r *Runtime) Close() error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if cerr := c.fn(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", c.name, cerr))
		}
	}
	r.closers = nil
	return err
}

// Must exits the process when err is set, after releasing what was opened.
func (r *Runtime) Must(ctx context.Context, what string, err error) {
	if err == nil {
		return
	}
	r.Logger.Error(ctx, "resource not working: "+what, err)
	r.shutdown(ctx)
	os.Exit(1)
}

// Shutdown closes the runtime and logs anything that failed to close.
func (r *Runtime) Shutdown(ctx context.Context) {
	r.shutdown(ctx)
	r.Logger.Info(ctx, r.Name+" stopped")
}

func (r *Runtime) shutdown(ctx context.Context) {
	if err := r.Close(); err != nil {
		r.Logger.Error(ctx, "shutdown incomplete", err)
	}
}

// SignalContext is canceled on SIGINT or SIGTERM and carries the process
// identity as log fields.
func (r *Runtime) SignalContext(fields map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	base := map[string]any{
		"env":         r.Config.App.Env,
		"serviceKind": r.Name,
		"instance":    instance.GetID(r.Name + "-0"),
	}
	maps.Copy(base, fields)
	return r.Logger.WithFields(ctx, base), stop
}

// ServeWorkerMetrics exposes the default registry on the worker metrics
// address until ctx ends. It does nothing when metrics are disabled.
func (r *Runtime) ServeWorkerMetrics(ctx context.Context) {
	if !r.Config.Metrics.Enabled {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, r.Config.Metrics.WorkerAddr, prometheus.DefaultGatherer, r.Logger); err != nil {
			r.Logger.Error(ctx, "metrics endpoint stopped", err)
		}
	}()
}
