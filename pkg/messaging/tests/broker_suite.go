// Package tests holds a driver-agnostic conformance suite that any
// messaging.Broker implementation can be run against.
package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/busgateway/pkg/messaging"
)

// RunBrokerTests exercises the basic publish/consume contract every
// messaging.Broker adapter must satisfy: a message published to a topic
// reaches a consumer subscribed to that topic, payload and headers survive
// the round trip, every consumer of a topic receives each message, and the
// broker reports itself healthy while open.
func RunBrokerTests(t *testing.T, broker messaging.Broker) {
	t.Run("publish and consume round trip", func(t *testing.T) {
		topic := "conformance." + uuid.NewString()

		consumer, err := broker.Consumer(topic, "")
		require.NoError(t, err)
		defer consumer.Close()

		producer, err := broker.Producer(topic)
		require.NoError(t, err)
		defer producer.Close()

		received := make(chan *messaging.Message, 1)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = consumer.Consume(ctx, func(_ context.Context, msg *messaging.Message) error {
				received <- msg
				cancel()
				return nil
			})
		}()

		want := &messaging.Message{
			ID:      uuid.NewString(),
			Topic:   topic,
			Payload: []byte("hello"),
			Headers: map[string]string{"status": "200"},
		}
		require.NoError(t, producer.Publish(context.Background(), want))

		select {
		case got := <-received:
			require.Equal(t, want.ID, got.ID)
			require.Equal(t, want.Payload, got.Payload)
			require.Equal(t, want.Headers["status"], got.Headers["status"])
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for message")
		}
		wg.Wait()
	})

	t.Run("fanout to every consumer", func(t *testing.T) {
		topic := "conformance.fanout." + uuid.NewString()

		c1, err := broker.Consumer(topic, "")
		require.NoError(t, err)
		defer c1.Close()
		c2, err := broker.Consumer(topic, "")
		require.NoError(t, err)
		defer c2.Close()

		producer, err := broker.Producer(topic)
		require.NoError(t, err)
		defer producer.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		var wg sync.WaitGroup
		results := make(chan string, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c1.Consume(ctx, func(_ context.Context, msg *messaging.Message) error {
				results <- "c1:" + msg.ID
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = c2.Consume(ctx, func(_ context.Context, msg *messaging.Message) error {
				results <- "c2:" + msg.ID
				return nil
			})
		}()

		id := uuid.NewString()
		require.NoError(t, producer.Publish(context.Background(), &messaging.Message{ID: id, Topic: topic, Payload: []byte("x")}))

		seen := map[string]bool{}
		for len(seen) < 2 {
			select {
			case r := <-results:
				seen[r[:2]] = true
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out, only saw %v", seen)
			}
		}
		cancel()
		wg.Wait()
	})

	t.Run("healthy while open", func(t *testing.T) {
		require.True(t, broker.Healthy(context.Background()))
	})
}
