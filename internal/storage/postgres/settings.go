package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timelesslk/storefront/internal/domain/settings"
)

const (
	getSettingsSQL = `SELECT shipping_fee FROM settings WHERE id`

	putSettingsSQL = `INSERT INTO settings (id, shipping_fee) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET shipping_fee = EXCLUDED.shipping_fee`
)

var _ settings.Repository = (*SettingsRepository)(nil)

// SettingsRepository stores the single settings row.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Get returns the stored settings, or zero values when none were saved.
func (r *SettingsRepository) Get(ctx context.Context) (settings.Settings, error) {
	var s settings.Settings
	err := r.pool.QueryRow(ctx, getSettingsSQL).Scan(&s.ShippingFee)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return s, errors.Wrap(err, "get settings")
	}
	return s, nil
}

// Put replaces the stored settings.
func (r *SettingsRepository) Put(ctx context.Context, s settings.Settings) error {
	if _, err := r.pool.Exec(ctx, putSettingsSQL, s.ShippingFee); err != nil {
		return errors.Wrap(err, "put settings")
	}
	return nil
}
