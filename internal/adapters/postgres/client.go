// Package postgres connects the model registry to PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"eventanalyzer/internal/adapters/config"
	"eventanalyzer/internal/repository/migrations"
	"eventanalyzer/pkg/errors"
)

// Client owns the registry's connection pool
type Client struct {
	db *sqlx.DB
}

// NewClient connects within cfg.ConnectTimeout and sizes the pool from cfg
func NewClient(cfg config.PostgresConfig) (*Client, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Join(errors.ErrUnavailable, errors.Wrapf(err, "connect postgres %s:%d", cfg.Host, cfg.Port))
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(max(cfg.MaxConns/2, 1))
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime) // 0 keeps connections forever

	return &Client{db: db}, nil
}

// Migrate brings the registry schema up to date
func (c *Client) Migrate() error {
	if err := migrations.Up(c.db.DB, "postgres"); err != nil {
		return errors.Join(errors.ErrRegistry, err)
	}
	return nil
}

// DB returns the pool for the sqlx repositories
func (c *Client) DB() *sqlx.DB {
	return c.db
}

func (c *Client) Close() error {
	return c.db.Close()
}

// Health pings the database
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
