package db

import (
	"context"
	"fmt"
	"log"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"stock-ledger/internal/config"
)

const (
	embeddedUser     = "postgres"
	embeddedPassword = "postgres"
	embeddedDatabase = "stock"
)

// Database owns the connection pool and, in embedded mode, the PostgreSQL process behind it.
type Database struct {
	Pool     *pgxpool.Pool
	embedded *embeddedpostgres.EmbeddedPostgres
}

// Open connects to DATABASE_URL, or starts an embedded PostgreSQL when
// EMBEDDED_POSTGRES is enabled and no URL is configured.
func Open(ctx context.Context, cfg *config.Config) (*Database, error) {
	connStr := cfg.DatabaseURL

	var embedded *embeddedpostgres.EmbeddedPostgres
	if connStr == "" && cfg.Embedded.Enabled {
		log.Printf("[DB] starting embedded PostgreSQL on port %d (data: %s)", cfg.Embedded.Port, cfg.Embedded.DataPath)
		embedded = embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
			Port(cfg.Embedded.Port).
			DataPath(cfg.Embedded.DataPath).
			Username(embeddedUser).
			Password(embeddedPassword).
			Database(embeddedDatabase))
		if err := embedded.Start(); err != nil {
			return nil, fmt.Errorf("failed to start embedded database: %w", err)
		}
		connStr = fmt.Sprintf("postgres://%s:%s@localhost:%d/%s?sslmode=disable",
			embeddedUser, embeddedPassword, cfg.Embedded.Port, embeddedDatabase)
	}

	pool, err := NewPool(ctx, connStr)
	if err != nil {
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, err
	}
	return &Database{Pool: pool, embedded: embedded}, nil
}

// Close closes the pool and stops the embedded process if one was started.
func (d *Database) Close() {
	d.Pool.Close()
	if d.embedded != nil {
		log.Println("[DB] stopping embedded PostgreSQL")
		if err := d.embedded.Stop(); err != nil {
			log.Printf("[DB] embedded stop failed: %v", err)
		}
	}
}

// NewPool parses connStr, opens a pool and verifies it with a ping.
func NewPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	if connStr == "" {
		return nil, fmt.Errorf("database connection string is empty")
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse DATABASE_URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}
