package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems      = errors.New("items required")
	ErrMissingCustomer = errors.New("customer required")
	// ErrStockContention is returned when concurrent orders kept changing the
	// same products and the reservation ran out of attempts.
	ErrStockContention = errors.New("stock changed concurrently, retry the order")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InvalidCustomerError indicates a required customer field is blank.
type InvalidCustomerError struct {
	Field string
}

func (e *InvalidCustomerError) Error() string {
	return fmt.Sprintf("customer %s is required", e.Field)
}

// Unwrap lets callers match any customer problem with ErrMissingCustomer.
func (e *InvalidCustomerError) Unwrap() error {
	return ErrMissingCustomer
}

// Shortfall describes one product that cannot cover the requested quantity.
type Shortfall struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

// InsufficientStockError lists every product whose stock is below the
// requested quantity.
type InsufficientStockError struct {
	Items []Shortfall
}

func (e *InsufficientStockError) Error() string {
	ids := make([]string, len(e.Items))
	for i, s := range e.Items {
		ids[i] = fmt.Sprintf("%s (available %d)", s.ProductID, s.Available)
	}
	return "insufficient stock: " + strings.Join(ids, ", ")
}
