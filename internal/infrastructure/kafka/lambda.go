package kafka

import (
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/segmentio/kafka-go"
)

// FromLambdaRecord decodes a record delivered by a Lambda Kafka (MSK) event
// source. The value arrives base64 encoded.
func FromLambdaRecord(r events.KafkaRecord) (store.Event, error) {
	value, err := base64.StdEncoding.DecodeString(r.Value)
	if err != nil {
		return store.Event{}, fmt.Errorf("decode value at %s-%d@%d: %w", r.Topic, r.Partition, r.Offset, err)
	}
	return fromMessage(kafka.Message{
		Topic:     r.Topic,
		Partition: int(r.Partition),
		Offset:    r.Offset,
		Value:     value,
	})
}

// LambdaRecords flattens the per-partition batches of a Lambda Kafka event.
func LambdaRecords(e events.KafkaEvent) []events.KafkaRecord {
	var out []events.KafkaRecord
	for _, records := range e.Records {
		out = append(out, records...)
	}
	return out
}
