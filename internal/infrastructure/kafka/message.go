package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/segmentio/kafka-go"
)

func toMessage(e store.Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event %s: %w", e.ID, err)
	}
	return kafka.Message{
		Key:     []byte(e.AggregateID),
		Value:   value,
		Time:    e.Timestamp,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(e.EventType)}},
	}, nil
}

func fromMessage(msg kafka.Message) (store.Event, error) {
	var e store.Event
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return store.Event{}, fmt.Errorf("decode message at offset %d: %w", msg.Offset, err)
	}
	if e.EventType == "" {
		for _, h := range msg.Headers {
			if h.Key == headerEventType {
				e.EventType = string(h.Value)
			}
		}
	}
	return e, nil
}
