// Package db owns the shared GORM connection and its transaction helper.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Client wraps the shared GORM connection.
type Client struct {
	conn      *gorm.DB
	txRetries int
}

// New opens the pool described by cfg. Queries slower than
// cfg.SlowQueryThreshold and driver errors are logged through logg.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQueryThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	client := &Client{conn: conn, txRetries: max(cfg.TxRetries, 0)}
	pool, err := client.pool()
	if err != nil {
		return nil, err
	}
	tunePool(pool, cfg)

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"db_driver":      cfg.Driver,
			"max_open_conns": cfg.MaxOpenConns,
		}), "database connection established")
	}
	return client, nil
}

// tunePool applies the non-zero pool limits in cfg.
func tunePool(pool *sql.DB, cfg config.DBConfig) {
	if n := cfg.MaxOpenConns; n > 0 {
		pool.SetMaxOpenConns(n)
	}
	if n := cfg.MaxIdleConns; n > 0 {
		pool.SetMaxIdleConns(n)
	}
	if d := cfg.ConnMaxLifetime; d > 0 {
		pool.SetConnMaxLifetime(d)
	}
	if d := cfg.ConnMaxIdleTime; d > 0 {
		pool.SetConnMaxIdleTime(d)
	}
}

// NewFromConn wraps an already opened connection (tests, tooling).
func NewFromConn(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", DriverPostgres:
		return postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), nil
	case DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) pool() (*sql.DB, error) {
	pool, err := c.conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sql pool: %w", err)
	}
	return pool, nil
}

func (c *Client) Ping(ctx context.Context) error {
	pool, err := c.pool()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (c *Client) Close() error {
	pool, err := c.pool()
	if err != nil {
		return err
	}
	return pool.Close()
}

// WithTx runs fn in a transaction that rolls back on error or panic. A
// transaction aborted by a serialization failure or deadlock is retried up to
// the configured number of times, so fn must not have effects outside tx.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	for attempt := 0; ; attempt++ {
		err := c.conn.WithContext(ctx).Transaction(fn)
		if err == nil || attempt >= c.txRetries || !IsRetryableTx(err) || ctx.Err() != nil {
			return err
		}
	}
}
