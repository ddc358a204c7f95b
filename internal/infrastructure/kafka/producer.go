package kafka

import (
	"context"
	"time"

	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/segmentio/kafka-go"
)

const headerEventType = "event_type"

// Producer writes outbox events to one topic. Events of the same aggregate
// share a key, so they land on one partition in order.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer}
}

// Publish writes events as one batch.
func (p *Producer) Publish(ctx context.Context, events []store.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		msg, err := toMessage(e)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
