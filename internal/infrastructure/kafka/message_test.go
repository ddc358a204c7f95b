package kafka

import (
	"testing"
	"time"

	"github.com/example/game-marketplace/internal/infrastructure/store"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_RoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	e, err := store.NewEvent("order-1", "Order", "OrderPlaced", map[string]string{"order_id": "order-1"}, at)
	require.NoError(t, err)

	msg, err := toMessage(e)
	require.NoError(t, err)

	assert.Equal(t, []byte("order-1"), msg.Key)
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "OrderPlaced", string(msg.Headers[0].Value))

	got, err := fromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "OrderPlaced", got.EventType)
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(got.Data))
}

func TestFromMessage_FallsBackToHeader(t *testing.T) {
	msg := kafka.Message{
		Value:   []byte(`{"id":"evt-1","aggregate_id":"req-1","data":{}}`),
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte("RefundStatusChanged")}},
	}

	e, err := fromMessage(msg)

	require.NoError(t, err)
	assert.Equal(t, "RefundStatusChanged", e.EventType)
}

func TestFromMessage_Garbage(t *testing.T) {
	_, err := fromMessage(kafka.Message{Value: []byte("not json"), Offset: 42})

	assert.ErrorContains(t, err, "offset 42")
}
