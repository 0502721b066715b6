package order

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"

	"github.com/timelesslk/storefront/internal/domain/product"
)

// StockAdjuster re-validates availability against current stock and
// decrements it for every ordered product as one unit.
type StockAdjuster struct {
	inventory  product.Inventory
	attempts   uint
	newBackOff func() backoff.BackOff
	onConflict func(ctx context.Context)
}

// NewStockAdjuster creates a StockAdjuster that retries version conflicts up
// to attempts times.
func NewStockAdjuster(inventory product.Inventory, attempts uint) *StockAdjuster {
	if attempts == 0 {
		attempts = 1
	}
	return &StockAdjuster{
		inventory: inventory,
		attempts:  attempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 10 * time.Millisecond
			b.MaxInterval = 250 * time.Millisecond
			return b
		},
		onConflict: func(context.Context) {},
	}
}

// Reserve reads current stock, rejects the order when any product is short,
// and otherwise decrements every product in a single all-or-nothing write.
// Quantities for repeated product IDs are summed. When another order changes
// one of the products between the read and the write, the whole
// read-check-write cycle is retried.
func (s *StockAdjuster) Reserve(ctx context.Context, items []Item) error {
	ids, want := aggregate(items)

	op := func() (struct{}, error) {
		byID, err := fetchProducts(ctx, s.inventory, items)
		if err != nil {
			return struct{}{}, backoff.Permanent(errors.Wrap(err, "read stock"))
		}

		decs := make([]product.Decrement, 0, len(ids))
		var short []Shortfall
		for _, id := range ids {
			p, ok := byID[id]
			if !ok {
				return struct{}{}, backoff.Permanent(&ProductNotFoundError{ProductID: id})
			}
			if p.Stock < want[id] {
				short = append(short, Shortfall{
					ProductID: p.ID,
					Name:      p.Name,
					Available: p.Stock,
					Requested: want[id],
				})
				continue
			}
			decs = append(decs, product.Decrement{
				ProductID:       id,
				Quantity:        want[id],
				ExpectedVersion: p.Version,
			})
		}
		if len(short) > 0 {
			return struct{}{}, backoff.Permanent(&InsufficientStockError{Items: short})
		}

		if err := s.inventory.ApplyDecrements(ctx, decs); err != nil {
			if errors.Is(err, product.ErrVersionConflict) {
				s.onConflict(ctx)
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(errors.Wrap(err, "apply decrements"))
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(s.attempts),
	)
	if errors.Is(err, product.ErrVersionConflict) {
		return errors.Wrapf(ErrStockContention, "after %d attempts", s.attempts)
	}
	return err
}

// aggregate sums quantities per product, preserving first-seen order.
func aggregate(items []Item) ([]string, map[string]int) {
	want := make(map[string]int, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := want[item.ProductID]; !ok {
			ids = append(ids, item.ProductID)
		}
		want[item.ProductID] += item.Quantity
	}
	return ids, want
}
