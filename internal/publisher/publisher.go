// Package publisher encodes the request envelope for one HTTP request and
// publishes it to the request topic under the correlation id that ties it
// to its eventual response; NewCorrelationID mints that id.
package publisher

import (
	"context"

	"github.com/google/uuid"

	"github.com/chris-alexander-pop/busgateway/pkg/envelope"
	appErrors "github.com/chris-alexander-pop/busgateway/pkg/errors"
	"github.com/chris-alexander-pop/busgateway/pkg/messaging"
)

// RequestTopic is the request queue every envelope is published to. It is
// also set as Message.Topic; with the NATS driver, cmd/gateway binds the
// producer to the "http" subject instead, and that adapter ignores
// Message.Topic.
const RequestTopic = "http.requests"

// Publisher publishes each envelope under a caller-supplied correlation id
// exactly once: a retry would produce a second request the backend worker
// might answer twice, and the proxy handler cannot distinguish the
// duplicate from the original.
type Publisher struct {
	producer messaging.Producer
}

// New wraps a Producer bound to the request topic.
func New(producer messaging.Producer) *Publisher {
	return &Publisher{producer: producer}
}

// NewCorrelationID mints a fresh correlation id. Callers that need to
// subscribe to the correlation broker before publishing (to avoid the
// race where a response arrives before the subscription exists) mint the
// id here first, subscribe under it, then call Publish with the same id.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Publish encodes env and publishes it to the request topic under the
// given correlation id. The caller is expected to have already
// subscribed to the correlation broker under id, per the gateway's
// subscribe-before-publish ordering requirement.
func (p *Publisher) Publish(ctx context.Context, id string, env *envelope.Envelope) error {
	body, err := envelope.Encode(env)
	if err != nil {
		return appErrors.Internal("failed to encode envelope", err)
	}

	msg := &messaging.Message{
		ID:      id,
		Topic:   RequestTopic,
		Payload: body,
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		return appErrors.Internal("failed to publish request", err)
	}

	return nil
}
