package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelesslk/storefront/internal/domain/order"
	"github.com/timelesslk/storefront/internal/domain/product"
	"github.com/timelesslk/storefront/internal/domain/settings"
)

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.Products().Create(ctx, &product.Product{
		ID:       "W1",
		Name:     "Heritage",
		Price:    decimal.NewFromInt(1000),
		Discount: decimal.NewFromInt(10),
		Stock:    5,
	}))
	require.NoError(t, s.Orders().Create(ctx, &order.Order{
		ID:         "ord-1",
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Customer:   order.Customer{Name: "N", Address: "A"},
		GrandTotal: decimal.NewFromInt(900),
		Status:     order.StatusPending,
	}))
	require.NoError(t, s.Settings().Put(ctx, settings.Settings{ShippingFee: decimal.NewFromInt(300)}))

	reopened, err := Open(dir)
	require.NoError(t, err)

	p, err := reopened.Products().GetByID(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
	assert.True(t, decimal.NewFromInt(900).Equal(p.EffectivePrice()))

	o, err := reopened.Orders().GetByID(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(900).Equal(o.GrandTotal))

	st, err := reopened.Settings().Get(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(st.ShippingFee))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, ".tmp", filepath.Ext(e.Name()), "temp file left behind: %s", e.Name())
	}
}

func TestProductRepository_ApplyDecrements(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	repo := s.Products()

	for _, id := range []string{"A", "B"} {
		require.NoError(t, repo.Create(ctx, &product.Product{ID: id, Name: id, Price: decimal.NewFromInt(1), Stock: 3}))
	}

	err = repo.ApplyDecrements(ctx, []product.Decrement{
		{ProductID: "A", Quantity: 1, ExpectedVersion: 1},
		{ProductID: "B", Quantity: 1, ExpectedVersion: 9},
	})
	require.ErrorIs(t, err, product.ErrVersionConflict)

	a, err := repo.GetByID(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 3, a.Stock)

	require.NoError(t, repo.ApplyDecrements(ctx, []product.Decrement{
		{ProductID: "A", Quantity: 3, ExpectedVersion: 1},
		{ProductID: "B", Quantity: 1, ExpectedVersion: 1},
	}))
	ps, err := repo.GetByIDs(ctx, []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, 0, ps[0].Stock)
	assert.Equal(t, 2, ps[1].Stock)
	assert.Equal(t, int64(2), ps[0].Version)
}

func TestProductRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	repo := s.Products()

	require.NoError(t, repo.Create(ctx, &product.Product{ID: "W1", Name: "One", Price: decimal.NewFromInt(1)}))
	require.Error(t, repo.Create(ctx, &product.Product{ID: "W1", Name: "Dup", Price: decimal.NewFromInt(1)}))

	bad := decimal.NewFromInt(150)
	_, err = repo.Update(ctx, "W1", product.Patch{Discount: &bad})
	var verr *product.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = repo.Update(ctx, "nope", product.Patch{})
	require.ErrorIs(t, err, product.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "W1"))
	require.ErrorIs(t, repo.Delete(ctx, "W1"), product.ErrNotFound)
}

func TestOrderRepository_StatusAndOrdering(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	repo := s.Orders()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		require.NoError(t, repo.Create(ctx, &order.Order{
			ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour), Status: order.StatusPending,
		}))
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)

	o, err := repo.UpdateStatus(ctx, "old", order.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, o.Status)

	_, err = repo.UpdateStatus(ctx, "missing", order.StatusCancelled)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestOpen_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, productsFile), []byte(`{"not":"an array"`), 0o600))
	_, err := Open(dir)
	require.Error(t, err)
}
