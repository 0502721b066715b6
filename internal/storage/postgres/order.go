package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timelesslk/storefront/internal/domain/order"
)

const orderColumns = `id, created_at, customer, items, subtotal, coupon, grand_total,
	shipping_fee, payment, status`

const (
	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1
		RETURNING ` + orderColumns
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository. Customer, items and coupon
// are stored as JSONB.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return errors.Wrap(err, "marshal customer")
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal items")
	}
	var coupon []byte
	if o.Coupon != nil {
		if coupon, err = json.Marshal(o.Coupon); err != nil {
			return errors.Wrap(err, "marshal coupon")
		}
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.CreatedAt, customer, items, o.Subtotal, coupon, o.GrandTotal,
		o.ShippingFee, o.Payment, string(o.Status),
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// GetByID returns one order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, getOrderSQL, id)
}

// UpdateStatus sets the status of an order and returns the updated order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	return r.one(ctx, updateOrderStatusSQL, id, string(status))
}

func (r *OrderRepository) one(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan order")
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                      order.Order
		customer, items, coupn []byte
		status                 string
	)
	if err := row.Scan(
		&o.ID, &o.CreatedAt, &customer, &items, &o.Subtotal, &coupn, &o.GrandTotal,
		&o.ShippingFee, &o.Payment, &status,
	); err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return o, errors.Wrap(err, "unmarshal customer")
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, errors.Wrap(err, "unmarshal items")
	}
	if len(coupn) > 0 {
		o.Coupon = new(order.AppliedCoupon)
		if err := json.Unmarshal(coupn, o.Coupon); err != nil {
			return o, errors.Wrap(err, "unmarshal coupon")
		}
	}
	return o, nil
}
