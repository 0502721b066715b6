package order

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/timelesslk/storefront/internal/domain/product"
	"github.com/timelesslk/storefront/internal/domain/settings"
)

const instrumentationName = "github.com/timelesslk/storefront/internal/domain/order"

// Service encapsulates order placement and order administration.
type Service struct {
	assembler *Assembler
	stock     *StockAdjuster
	orders    Repository
	settings  settings.Repository
	notifier  Notifier

	now   func() time.Time
	newID func() string

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	tracer  trace.Tracer
	placed  metric.Int64Counter
	refused metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithSettings makes the service record the current shipping fee on orders.
func WithSettings(repo settings.Repository) Option {
	return func(s *Service) { s.settings = repo }
}

// WithNotifier sets where placed orders are handed off after persistence.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithReserveAttempts bounds how many times a conflicting stock reservation
// is retried.
func WithReserveAttempts(n uint) Option {
	return func(s *Service) {
		if n > 0 {
			s.stock.attempts = n
		}
	}
}

// WithReserveBackOff overrides the delay policy between reservation attempts.
func WithReserveBackOff(f func() backoff.BackOff) Option {
	return func(s *Service) { s.stock.newBackOff = f }
}

// WithTelemetry sets the tracer and meter providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.tracerProvider = tp
		s.meterProvider = mp
	}
}

// WithClock overrides the time source and ID generator, for tests.
func WithClock(now func() time.Time, newID func() string) Option {
	return func(s *Service) {
		s.now = now
		s.newID = newID
	}
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	inventory product.Inventory,
	coupons CouponEvaluator,
	orders Repository,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		assembler:      NewAssembler(products, coupons),
		stock:          NewStockAdjuster(inventory, 3),
		orders:         orders,
		notifier:       discardNotifier{},
		now:            time.Now,
		newID:          func() string { return uuid.New().String() },
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	if s.placed, err = meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders persisted"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.placed")
	}
	if s.refused, err = meter.Int64Counter("orders.refused",
		metric.WithDescription("Orders rejected before persistence"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.refused")
	}
	conflicts, err := meter.Int64Counter("stock.conflicts",
		metric.WithDescription("Stock reservations retried after a concurrent change"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "stock.conflicts")
	}
	s.stock.onConflict = func(ctx context.Context) {
		conflicts.Add(ctx, 1)
		zctx.From(ctx).Debug("Stock version conflict, retrying reservation")
	}
	return s, nil
}

// PlaceOrder validates the request, prices it, reserves stock, persists the
// order and hands it to the notifier.
//
// Stock reserved for an order whose persistence then fails is not returned.
// The failure is logged with the full order so it can be reconciled, and
// PlaceOrder returns the error, so the caller sees a server error rather
// than a placed order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Place",
		trace.WithAttributes(attribute.Int("order.items", len(req.Items))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			s.refused.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", refusalReason(rerr))))
		}
		span.End()
	}()
	lg := zctx.From(ctx)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	o, err := s.assembler.Assemble(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.CouponCode != "" && o.Coupon == nil {
		lg.Info("Ignoring unrecognized coupon code", zap.String("coupon", req.CouponCode))
	}

	if err := s.stock.Reserve(ctx, req.Items); err != nil {
		return nil, err
	}

	o.ID = s.newID()
	o.CreatedAt = s.now().UTC()
	o.Status = StatusPending
	o.Payment = PaymentCashOnDelivery
	o.ShippingFee = s.shippingFee(ctx)

	if err := s.orders.Create(ctx, o); err != nil {
		lg.Error("Order not persisted after stock was reserved",
			zap.String("order_id", o.ID),
			zap.Any("items", o.Items),
			zap.Any("customer", o.Customer),
			zap.String("grand_total", o.GrandTotal.StringFixed(2)),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "create order")
	}

	s.placed.Add(ctx, 1)
	span.SetAttributes(attribute.String("order.id", o.ID))
	lg.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("grand_total", o.GrandTotal.StringFixed(2)),
	)

	s.notifier.Enqueue(*o)
	return o, nil
}

func (s *Service) shippingFee(ctx context.Context) decimal.Decimal {
	if s.settings == nil {
		return decimal.Zero
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		zctx.From(ctx).Warn("Shipping fee unavailable, recording zero", zap.Error(err))
		return decimal.Zero
	}
	return st.ShippingFee
}

// List returns every order, newest first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Get returns a single order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// UpdateStatus moves an order to any known status.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*Order, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.UpdateStatus(ctx, id, st)
	if err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	zctx.From(ctx).Info("Order status changed", zap.String("order_id", id), zap.String("status", string(st)))
	return o, nil
}

func refusalReason(err error) string {
	var (
		pnf   *ProductNotFoundError
		short *InsufficientStockError
	)
	switch {
	case errors.As(err, &pnf):
		return "product_not_found"
	case errors.As(err, &short):
		return "insufficient_stock"
	case errors.Is(err, ErrStockContention):
		return "contention"
	case errors.Is(err, ErrEmptyItems), errors.Is(err, ErrMissingCustomer):
		return "invalid"
	default:
		var iq *InvalidQuantityError
		if errors.As(err, &iq) {
			return "invalid"
		}
		return "error"
	}
}

type discardNotifier struct{}

func (discardNotifier) Enqueue(Order) {}
