package kafka

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromLambdaRecord(t *testing.T) {
	e, err := store.NewEvent("req-1", "RefundRequest", "RefundRequested", map[string]string{"request_id": "req-1"}, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	raw, err := json.Marshal(e)
	require.NoError(t, err)

	got, err := FromLambdaRecord(events.KafkaRecord{
		Topic:     "marketplace-events",
		Partition: 2,
		Offset:    41,
		Value:     base64.StdEncoding.EncodeToString(raw),
	})

	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "RefundRequested", got.EventType)
	assert.JSONEq(t, `{"request_id":"req-1"}`, string(got.Data))
}

func TestFromLambdaRecord_BadEncoding(t *testing.T) {
	_, err := FromLambdaRecord(events.KafkaRecord{Topic: "t", Offset: 1, Value: "%%%"})
	assert.Error(t, err)

	_, err = FromLambdaRecord(events.KafkaRecord{Topic: "t", Offset: 2, Value: base64.StdEncoding.EncodeToString([]byte("{"))})
	assert.Error(t, err)
}

func TestLambdaRecords(t *testing.T) {
	e := events.KafkaEvent{Records: map[string][]events.KafkaRecord{
		"marketplace-events-0": {{Offset: 1}, {Offset: 2}},
		"marketplace-events-1": {{Offset: 7}},
	}}

	assert.Len(t, LambdaRecords(e), 3)
}
