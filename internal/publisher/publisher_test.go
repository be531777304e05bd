package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chris-alexander-pop/busgateway/pkg/envelope"
	"github.com/chris-alexander-pop/busgateway/pkg/messaging"
	"github.com/chris-alexander-pop/busgateway/pkg/messaging/adapters/memory"
)

func TestNewCorrelationIDReturnsDistinctValues(t *testing.T) {
	a := NewCorrelationID()
	b := NewCorrelationID()

	require.NotEmpty(t, a)
	require.NotEmpty(t, b)
	require.NotEqual(t, a, b)
}

func TestPublishEncodesEnvelopeAndSetsCorrelationID(t *testing.T) {
	broker := memory.New(memory.Config{BufferSize: 4})
	defer broker.Close()

	consumer, err := broker.Consumer(RequestTopic, "")
	require.NoError(t, err)
	defer consumer.Close()

	producer, err := broker.Producer(RequestTopic)
	require.NoError(t, err)

	pub := New(producer)
	id := NewCorrelationID()
	env := &envelope.Envelope{Type: "/api/v1/users/:uid", Method: "GET", ClientIP: "203.0.113.9"}

	require.NoError(t, pub.Publish(context.Background(), id, env))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got *messaging.Message
	err = consumer.Consume(ctx, func(_ context.Context, msg *messaging.Message) error {
		got = msg
		return context.Canceled
	})
	require.Error(t, err)
	require.NotNil(t, got)

	require.Equal(t, id, got.ID)

	var decoded envelope.Envelope
	require.NoError(t, msgpack.Unmarshal(got.Payload, &decoded))
	require.Equal(t, "/api/v1/users/:uid", decoded.Type)
	require.Equal(t, "203.0.113.9", decoded.ClientIP)
}
