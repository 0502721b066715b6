// Package notify delivers placed orders to out-of-band channels (e-mail,
// Kafka, logs) from a bounded background queue.
package notify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/timelesslk/storefront/internal/domain/order"
)

// Sink is one delivery channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, o order.Order) error
}

// QueueConfig tunes delivery.
type QueueConfig struct {
	// Size is the number of orders buffered before Enqueue drops.
	Size int
	// Workers is the number of concurrent deliveries.
	Workers int
	// Attempts bounds tries per order and sink.
	Attempts uint
	// Timeout bounds a single delivery attempt.
	Timeout time.Duration
	// DrainTimeout bounds delivery of buffered orders on shutdown.
	DrainTimeout time.Duration
}

func (c *QueueConfig) setDefaults() {
	if c.Size <= 0 {
		c.Size = 256
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.Attempts == 0 {
		c.Attempts = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 10 * time.Second
	}
}

var _ order.Notifier = (*Queue)(nil)

// Queue buffers orders and delivers each one to every sink, retrying
// failures with exponential backoff. Delivery never affects the order.
type Queue struct {
	cfg        QueueConfig
	sinks      []Sink
	jobs       chan order.Order
	lg         *zap.Logger
	newBackOff func() backoff.BackOff

	delivered metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithMeterProvider records delivery metrics.
func WithMeterProvider(mp metric.MeterProvider) QueueOption {
	return func(q *Queue) {
		m := mp.Meter("github.com/timelesslk/storefront/internal/notify")
		for _, c := range []struct {
			name string
			dst  *metric.Int64Counter
		}{
			{"notify.delivered", &q.delivered},
			{"notify.failed", &q.failed},
			{"notify.dropped", &q.dropped},
		} {
			counter, err := m.Int64Counter(c.name)
			if err != nil {
				// Keep the previous (noop) counter.
				q.lg.Warn("Create notification counter", zap.String("counter", c.name), zap.Error(err))
				continue
			}
			*c.dst = counter
		}
	}
}

// WithBackOff overrides the retry delay policy.
func WithBackOff(f func() backoff.BackOff) QueueOption {
	return func(q *Queue) { q.newBackOff = f }
}

// NewQueue creates a Queue. Call Run to start delivering.
func NewQueue(lg *zap.Logger, cfg QueueConfig, sinks []Sink, opts ...QueueOption) *Queue {
	cfg.setDefaults()
	q := &Queue{
		cfg:        cfg,
		sinks:      sinks,
		jobs:       make(chan order.Order, cfg.Size),
		lg:         lg,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	WithMeterProvider(noop.NewMeterProvider())(q)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue buffers o for delivery. When the buffer is full the order is
// dropped and logged; it never blocks.
func (q *Queue) Enqueue(o order.Order) {
	if len(q.sinks) == 0 {
		return
	}
	select {
	case q.jobs <- o:
	default:
		q.dropped.Add(context.Background(), 1)
		q.lg.Error("Notification queue full, dropping order notification", zap.String("order_id", o.ID))
	}
}

// Run delivers queued orders until ctx is canceled, then drains what is
// still buffered. Deliveries in flight at cancellation and the drain share a
// budget of DrainTimeout.
func (q *Queue) Run(ctx context.Context) error {
	deliverCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	drained := make(chan struct{})
	var deadline errgroup.Group
	deadline.Go(func() error {
		<-ctx.Done()
		timer := time.NewTimer(q.cfg.DrainTimeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-drained:
		}
		return nil
	})

	var workers errgroup.Group
	for i := 0; i < q.cfg.Workers; i++ {
		workers.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case o := <-q.jobs:
					q.deliver(deliverCtx, o)
				}
			}
		})
	}
	err := workers.Wait()

	for drain := true; drain; {
		select {
		case o := <-q.jobs:
			q.deliver(deliverCtx, o)
		default:
			drain = false
		}
	}
	close(drained)
	_ = deadline.Wait()
	return err
}

func (q *Queue) deliver(ctx context.Context, o order.Order) {
	for _, sink := range q.sinks {
		lg := q.lg.With(zap.String("order_id", o.ID), zap.String("sink", sink.Name()))
		attrs := metric.WithAttributes(attribute.String("sink", sink.Name()))

		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
			defer cancel()
			if err := sink.Send(attemptCtx, o); err != nil {
				lg.Warn("Notification attempt failed", zap.Error(err))
				return struct{}{}, err
			}
			return struct{}{}, nil
		},
			backoff.WithBackOff(q.newBackOff()),
			backoff.WithMaxTries(q.cfg.Attempts),
		)
		if err != nil {
			q.failed.Add(ctx, 1, attrs)
			lg.Error("Notification not delivered", zap.Error(errors.Wrap(err, "deliver")))
			continue
		}
		q.delivered.Add(ctx, 1, attrs)
		lg.Debug("Notification delivered")
	}
}

// Log is a sink that writes the order summary to the logger. It is used when
// no other channel is configured.
type Log struct {
	lg     *zap.Logger
	format Formatter
}

// NewLog creates a logging sink.
func NewLog(lg *zap.Logger, format Formatter) *Log {
	return &Log{lg: lg, format: format}
}

// Name implements Sink.
func (l *Log) Name() string { return "log" }

// Send implements Sink.
func (l *Log) Send(_ context.Context, o order.Order) error {
	l.lg.Info("Order notification",
		zap.String("order_id", o.ID),
		zap.String("summary", l.format.Summary(o)),
	)
	return nil
}
