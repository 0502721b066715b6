package order

import (
	"context"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelesslk/storefront/internal/domain/product"
)

func newTestAdjuster(inv product.Inventory, attempts uint) (*StockAdjuster, *int) {
	s := NewStockAdjuster(inv, attempts)
	s.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	var conflicts int
	s.onConflict = func(context.Context) { conflicts++ }
	return s, &conflicts
}

func TestStockAdjuster_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("DecrementsEveryProduct", func(t *testing.T) {
		c := newCatalog(watch("A", 1, 0, 4), watch("B", 1, 0, 2))
		s, _ := newTestAdjuster(c, 1)

		require.NoError(t, s.Reserve(ctx, []Item{
			{ProductID: "A", Quantity: 1},
			{ProductID: "B", Quantity: 2},
			{ProductID: "A", Quantity: 3},
		}))
		assert.Equal(t, 0, c.stock("A"))
		assert.Equal(t, 0, c.stock("B"))
		assert.Equal(t, 1, c.applied)
	})

	t.Run("ReportsEveryShortfall", func(t *testing.T) {
		c := newCatalog(watch("A", 1, 0, 1), watch("B", 1, 0, 0), watch("C", 1, 0, 9))
		s, _ := newTestAdjuster(c, 3)

		err := s.Reserve(ctx, []Item{
			{ProductID: "A", Quantity: 2},
			{ProductID: "B", Quantity: 1},
			{ProductID: "C", Quantity: 1},
		})
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		require.Len(t, stockErr.Items, 2)
		assert.Equal(t, "A", stockErr.Items[0].ProductID)
		assert.Equal(t, "B", stockErr.Items[1].ProductID)
		assert.Equal(t, 9, c.stock("C"))
		assert.Zero(t, c.applied)
	})

	t.Run("ProductRemovedBetweenPricingAndReservation", func(t *testing.T) {
		c := newCatalog()
		s, _ := newTestAdjuster(c, 3)

		var pnf *ProductNotFoundError
		require.ErrorAs(t, s.Reserve(ctx, []Item{{ProductID: "gone", Quantity: 1}}), &pnf)
	})

	t.Run("ConflictRetried", func(t *testing.T) {
		c := newCatalog(watch("A", 1, 0, 2))
		c.conflicts = 1
		s, conflicts := newTestAdjuster(c, 2)

		require.NoError(t, s.Reserve(ctx, []Item{{ProductID: "A", Quantity: 1}}))
		assert.Equal(t, 1, *conflicts)
		assert.Equal(t, 1, c.stock("A"))
	})

	t.Run("ConflictExhausted", func(t *testing.T) {
		c := newCatalog(watch("A", 1, 0, 2))
		c.conflicts = 5
		s, conflicts := newTestAdjuster(c, 2)

		require.ErrorIs(t, s.Reserve(ctx, []Item{{ProductID: "A", Quantity: 1}}), ErrStockContention)
		assert.Equal(t, 2, *conflicts)
		assert.Equal(t, 2, c.stock("A"))
	})

	t.Run("StorageErrorNotRetried", func(t *testing.T) {
		c := newCatalog(watch("A", 1, 0, 2))
		c.applyErr = errStorage
		s, conflicts := newTestAdjuster(c, 5)

		require.ErrorIs(t, s.Reserve(ctx, []Item{{ProductID: "A", Quantity: 1}}), errStorage)
		assert.Zero(t, *conflicts)
	})
}

func TestAggregate(t *testing.T) {
	ids, want := aggregate([]Item{
		{ProductID: "B", Quantity: 1},
		{ProductID: "A", Quantity: 2},
		{ProductID: "B", Quantity: 4},
	})
	assert.Equal(t, []string{"B", "A"}, ids)
	assert.Equal(t, map[string]int{"A": 2, "B": 5}, want)
}
