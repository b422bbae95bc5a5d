package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing for the single target database. The gateway only issues
// short read-only SELECTs, so idle connections recycle rather than pile up.
const (
	defaultMaxConns    = 25
	defaultMaxLifetime = time.Hour
	defaultMaxIdleTime = 30 * time.Minute
)

// DB is the handle to the target PostgreSQL database. It embeds the pgx
// pool so the executor and schema provider query it directly.
type DB struct {
	*pgxpool.Pool
}

// Config names the database to connect to. MaxConnections of zero picks
// the default pool size.
type Config struct {
	URL            string
	MaxConnections int32
}

// NewConnection opens a pool against the target database and verifies it
// is reachable before the gateway starts answering questions.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns <= 0 {
		poolConfig.MaxConns = defaultMaxConns
	}
	poolConfig.MaxConnLifetime = defaultMaxLifetime
	poolConfig.MaxConnIdleTime = defaultMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}
