// Package clickhouse connects the prediction log to ClickHouse.
package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"eventanalyzer/internal/adapters/config"
	"eventanalyzer/pkg/errors"
)

// Client holds a native-protocol connection
type Client struct {
	conn driver.Conn
}

// NewClient opens an LZ4-compressed connection and verifies it with a ping
func NewClient(cfg config.ClickHouseConfig) (*Client, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr()},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		Compression:  &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open clickhouse %s", cfg.Addr())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Join(errors.ErrUnavailable, errors.Wrapf(err, "ping clickhouse %s", cfg.Addr()))
	}

	return &Client{conn: conn}, nil
}

// Conn returns the connection for repositories
func (c *Client) Conn() driver.Conn {
	return c.conn
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Health pings the server
func (c *Client) Health(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// DropTable removes a table if it exists
func (c *Client) DropTable(ctx context.Context, table string) error {
	return c.conn.Exec(ctx, "DROP TABLE IF EXISTS "+table)
}
