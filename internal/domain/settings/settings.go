package settings

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidShippingFee is returned when a negative shipping fee is stored.
var ErrInvalidShippingFee = errors.New("invalid shipping fee")

// Settings holds store-wide checkout settings managed by admins.
type Settings struct {
	ShippingFee decimal.Decimal
}

// Validate checks that the settings can be stored.
func (s Settings) Validate() error {
	if s.ShippingFee.IsNegative() {
		return ErrInvalidShippingFee
	}
	return nil
}

// Repository persists the single settings record. Get returns zero-valued
// Settings when nothing has been stored yet.
type Repository interface {
	Get(ctx context.Context) (Settings, error)
	Put(ctx context.Context, s Settings) error
}
