package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/timelesslk/storefront/internal/domain/coupon"
	"github.com/timelesslk/storefront/internal/domain/product"
)

// Item is one requested (product, quantity) pair from the cart.
type Item struct {
	ProductID string
	Quantity  int
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Customer   Customer
	Items      []Item
	CouponCode string
}

// Validate rejects malformed requests before anything is read or written.
func (r PlaceOrderRequest) Validate() error {
	if strings.TrimSpace(r.Customer.Name) == "" {
		return &InvalidCustomerError{Field: "name"}
	}
	if strings.TrimSpace(r.Customer.Address) == "" {
		return &InvalidCustomerError{Field: "address"}
	}
	if len(r.Items) == 0 {
		return ErrEmptyItems
	}
	for _, item := range r.Items {
		if item.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: item.ProductID}
		}
	}
	return nil
}

// CouponEvaluator maps a coupon code to its effect.
type CouponEvaluator interface {
	Evaluate(code string) coupon.Effect
}

// Assembler prices a cart against the catalog and builds an unsaved order.
type Assembler struct {
	products product.Repository
	coupons  CouponEvaluator
}

// NewAssembler creates an Assembler reading from the given catalog.
func NewAssembler(products product.Repository, coupons CouponEvaluator) *Assembler {
	return &Assembler{products: products, coupons: coupons}
}

// Assemble resolves every item in the catalog, prices it at the discounted
// unit price and applies the coupon to the subtotal. Any unknown product
// fails the whole order. The returned order has no ID or timestamp yet.
func (a *Assembler) Assemble(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	byID, err := fetchProducts(ctx, a.products, req.Items)
	if err != nil {
		return nil, err
	}

	items := make([]LineItem, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		items[i] = LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.EffectivePrice(),
			Quantity:  item.Quantity,
		}
		subtotal = subtotal.Add(items[i].Total())
	}

	o := &Order{
		Customer:   req.Customer,
		Items:      items,
		Subtotal:   subtotal.Round(2),
		GrandTotal: subtotal.Round(2),
	}

	if req.CouponCode == "" {
		return o, nil
	}
	effect := a.coupons.Evaluate(req.CouponCode)
	if !effect.Recognized() {
		return o, nil
	}
	o.GrandTotal = effect.Apply(subtotal).Round(2)
	o.Coupon = &AppliedCoupon{
		Code:   effect.Rule.Code,
		Type:   effect.Rule.DiscountType,
		Value:  effect.Rule.Value,
		Amount: effect.Discount(subtotal).Round(2),
	}
	return o, nil
}

// catalogReader is the read side shared by product.Repository and
// product.Inventory.
type catalogReader interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// fetchProducts loads the distinct products referenced by items in one batch.
func fetchProducts(ctx context.Context, repo catalogReader, items []Item) (map[string]product.Product, error) {
	ids := distinctIDs(items)
	fetched, err := repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}
	return byID, nil
}

func distinctIDs(items []Item) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
