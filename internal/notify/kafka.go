package notify

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/timelesslk/storefront/internal/domain/order"
	"github.com/timelesslk/storefront/internal/wire"
)

// EventOrderPlaced is the event_type header of order events.
const EventOrderPlaced = "order.placed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes an order.placed event per order, keyed by order ID.
type Kafka struct {
	w   messageWriter
	now func() time.Time
}

// NewKafka creates a Kafka sink writing to topic.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		now: time.Now,
	}
}

// Name implements Sink.
func (k *Kafka) Name() string { return "kafka" }

// Send implements Sink.
func (k *Kafka) Send(ctx context.Context, o order.Order) error {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("type")
	e.Str(EventOrderPlaced)
	e.FieldStart("occurredAt")
	wire.Time(e, k.now())
	e.FieldStart("order")
	wire.EncodeOrder(e, o)
	e.ObjEnd()

	err := k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.ID),
		Value: e.Bytes(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderPlaced)},
		},
	})
	if err != nil {
		return errors.Wrap(err, "write message")
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.w.Close()
}
