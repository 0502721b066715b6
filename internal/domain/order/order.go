package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/timelesslk/storefront/internal/domain/coupon"
)

// PaymentCashOnDelivery is the only payment method the store accepts.
const PaymentCashOnDelivery = "Cash on Delivery"

// Status is the fulfilment state of an order.
type Status string

// Order statuses. Admins may move an order between any of them.
const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidStatus is returned for status values outside the known set.
	ErrInvalidStatus = errors.New("invalid order status")
)

// ParseStatus converts a raw status string into a known Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
	}
}

// Customer is the contact block captured at checkout.
type Customer struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Contact string `json:"contact,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// LineItem is one ordered product with a snapshot of its name and the unit
// price after the product discount.
type LineItem struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"qty"`
}

// Total returns UnitPrice x Quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// AppliedCoupon records the coupon that was recognized for an order.
type AppliedCoupon struct {
	Code   string              `json:"code"`
	Type   coupon.DiscountType `json:"type"`
	Value  decimal.Decimal     `json:"value"`
	Amount decimal.Decimal     `json:"amount"`
}

// Order is a placed customer order.
type Order struct {
	ID          string
	CreatedAt   time.Time
	Customer    Customer
	Items       []LineItem
	Subtotal    decimal.Decimal
	Coupon      *AppliedCoupon
	GrandTotal  decimal.Decimal
	ShippingFee decimal.Decimal
	Payment     string
	Status      Status
}

// AmountDue is the grand total plus the shipping fee recorded at checkout.
func (o Order) AmountDue() decimal.Decimal {
	return o.GrandTotal.Add(o.ShippingFee)
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	List(ctx context.Context) ([]Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)
}

// Notifier receives placed orders for out-of-band delivery. Enqueue must not
// block on the delivery itself.
type Notifier interface {
	Enqueue(o Order)
}
