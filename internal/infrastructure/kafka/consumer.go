package kafka

import (
	"context"
	"log"

	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/segmentio/kafka-go"
)

type EventHandler func(ctx context.Context, e store.Event) error

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Consume hands every event to handler until ctx is done. Handler errors
// are logged and the message is committed anyway.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Kafka] Error reading message: %v", err)
			continue
		}

		e, err := fromMessage(msg)
		if err != nil {
			log.Printf("[Kafka] Skipping message: %v", err)
		} else if err := handler(ctx, e); err != nil {
			log.Printf("[Kafka] Error handling %s %s: %v", e.EventType, e.ID, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Printf("[Kafka] Commit failed at offset %d: %v", msg.Offset, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
