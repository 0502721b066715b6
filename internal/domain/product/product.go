package product

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrVersionConflict is returned by Inventory when a product changed
	// between the read and the conditional write.
	ErrVersionConflict = errors.New("product version conflict")
)

var hundred = decimal.NewFromInt(100)

// Product is a watch listed in the catalog.
type Product struct {
	ID          string
	Name        string
	Brand       string
	Category    string
	Description string
	Price       decimal.Decimal
	// Discount is a percentage in the 0..100 range.
	Discount decimal.Decimal
	Stock    int
	Image    string
	Images   []string
	// Version is bumped on every write and guards stock decrements.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectivePrice returns the list price reduced by the stored discount.
func (p Product) EffectivePrice() decimal.Decimal {
	return p.Price.Mul(hundred.Sub(p.Discount)).Div(hundred)
}

// Validate checks the invariants every stored product must satisfy.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	return validateNumbers(p.Price, p.Discount, p.Stock)
}

func validateNumbers(price, discount decimal.Decimal, stock int) error {
	if price.IsNegative() {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return &ValidationError{Field: "discount", Reason: "must be between 0 and 100"}
	}
	if stock < 0 {
		return &ValidationError{Field: "stock", Reason: "must not be negative"}
	}
	return nil
}

// ValidationError reports an invalid product field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// Patch holds a partial product update. Nil fields are left untouched.
type Patch struct {
	Name        *string
	Brand       *string
	Category    *string
	Description *string
	Price       *decimal.Decimal
	Discount    *decimal.Decimal
	Stock       *int
	Image       *string
	Images      []string
	// SetImages distinguishes "images omitted" from "images cleared".
	SetImages bool
}

// Apply returns a copy of p with the patch applied. The result is validated.
func (pt Patch) Apply(p Product) (Product, error) {
	if pt.Name != nil {
		p.Name = *pt.Name
	}
	if pt.Brand != nil {
		p.Brand = *pt.Brand
	}
	if pt.Category != nil {
		p.Category = *pt.Category
	}
	if pt.Description != nil {
		p.Description = *pt.Description
	}
	if pt.Price != nil {
		p.Price = *pt.Price
	}
	if pt.Discount != nil {
		p.Discount = *pt.Discount
	}
	if pt.Stock != nil {
		p.Stock = *pt.Stock
	}
	if pt.Image != nil {
		p.Image = *pt.Image
	}
	if pt.SetImages {
		// Cleared images stay an empty list, never nil.
		p.Images = append([]string{}, pt.Images...)
	}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Decrement is one conditional stock write: reduce ProductID's stock by
// Quantity only if its version still equals ExpectedVersion.
type Decrement struct {
	ProductID       string
	Quantity        int
	ExpectedVersion int64
}

// Repository defines catalog persistence.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, id string, patch Patch) (*Product, error)
	Delete(ctx context.Context, id string) error
}

// Inventory applies stock decrements. Implementations must apply either all
// decrements or none, returning ErrVersionConflict when any product's
// version differs from the expected one.
type Inventory interface {
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	ApplyDecrements(ctx context.Context, decs []Decrement) error
}
