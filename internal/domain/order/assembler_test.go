package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelesslk/storefront/internal/domain/coupon"
	"github.com/timelesslk/storefront/internal/domain/product"
)

func TestAssembler_Assemble(t *testing.T) {
	ctx := context.Background()
	catalog := newCatalog(
		product999(),
		watch("B", 250, 0, 1),
	)
	a := NewAssembler(catalog, coupon.DefaultRegistry())

	o, err := a.Assemble(ctx, PlaceOrderRequest{
		Customer: customer(),
		Items: []Item{
			{ProductID: "A", Quantity: 1},
			{ProductID: "B", Quantity: 2},
		},
		CouponCode: "tenoff",
	})
	require.NoError(t, err)

	require.Len(t, o.Items, 2)
	assert.Equal(t, "A", o.Items[0].ProductID)
	assert.Equal(t, "Heritage Chrono", o.Items[0].Name)
	assert.Equal(t, "849.9915", o.Items[0].UnitPrice.String())
	// 849.9915 + 500 = 1349.9915
	assert.Equal(t, "1349.99", o.Subtotal.String())
	// 1349.9915 * 0.9 = 1214.99235
	assert.Equal(t, "1214.99", o.GrandTotal.String())
	require.NotNil(t, o.Coupon)
	assert.Equal(t, "TENOFF", o.Coupon.Code)
	assert.Equal(t, coupon.DiscountPercentage, o.Coupon.Type)
	assert.Equal(t, "135", o.Coupon.Amount.String())
	assert.Empty(t, o.ID)
	assert.Zero(t, catalog.applied)
}

func TestAssembler_UnknownCouponIgnored(t *testing.T) {
	a := NewAssembler(newCatalog(watch("W1", 100, 0, 1)), coupon.DefaultRegistry())

	o, err := a.Assemble(context.Background(), PlaceOrderRequest{
		Customer:   customer(),
		Items:      []Item{{ProductID: "W1", Quantity: 1}},
		CouponCode: "FREEWATCH",
	})
	require.NoError(t, err)
	assert.Nil(t, o.Coupon)
	assert.True(t, decimal.NewFromInt(100).Equal(o.GrandTotal))
}

func TestAssembler_ReadError(t *testing.T) {
	c := newCatalog(watch("W1", 100, 0, 1))
	c.getErr = errStorage
	a := NewAssembler(c, coupon.DefaultRegistry())

	_, err := a.Assemble(context.Background(), PlaceOrderRequest{
		Customer: customer(),
		Items:    []Item{{ProductID: "W1", Quantity: 1}},
	})
	require.ErrorIs(t, err, errStorage)
}

func product999() product.Product {
	p := watch("A", 0, 15, 3)
	p.Name = "Heritage Chrono"
	p.Price = decimal.RequireFromString("999.99")
	return p
}
