// Package postgres implements catalog, inventory, order and settings storage
// on PostgreSQL via pgx.
package postgres

import (
	"context"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timelesslk/storefront/db"
)

// NewPool creates a pgxpool.Pool with shopspring/decimal registered for
// NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	return pool, nil
}

// Migrate applies the embedded schema. The DDL is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "migrate")
	}
	return nil
}

// Store groups the repositories sharing one pool.
type Store struct {
	Products *ProductRepository
	Orders   *OrderRepository
	Settings *SettingsRepository
}

// NewStore wires every repository on pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Products: NewProductRepository(pool),
		Orders:   NewOrderRepository(pool),
		Settings: NewSettingsRepository(pool),
	}
}
