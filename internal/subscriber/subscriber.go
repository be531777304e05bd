// Package subscriber consumes the response topic and hands each delivery
// to the correlation broker. It runs as a single long-lived supervisor
// loop per gateway instance, reconnecting on transport faults and
// exiting only when the shutdown signal fires.
package subscriber

import (
	"context"

	"github.com/chris-alexander-pop/busgateway/pkg/correlate"
	"github.com/chris-alexander-pop/busgateway/pkg/logger"
	"github.com/chris-alexander-pop/busgateway/pkg/messaging"
)

// ResponseTopic is the source the subscriber consumes responses from.
const ResponseTopic = "http.responses"

// statusHeader is the message header carrying the ASCII HTTP status code
// a backend worker reported for its response.
const statusHeader = "status"

// defaultStatus is used when a response is missing the status header.
const defaultStatus = "500"

// Subscriber hands every response delivery to a correlate.Broker.
type Subscriber struct {
	broker *correlate.Broker
}

// New builds a Subscriber that delivers into broker.
func New(broker *correlate.Broker) *Subscriber {
	return &Subscriber{broker: broker}
}

// Run opens a consumer on the response topic and dispatches every
// delivery until the broker.Consumer call or the consume loop returns an
// error (broker disconnect) or ctx is canceled. The supervisor above this
// call is expected to call Run again on a transient error, and to stop
// calling it once ctx is done.
func (s *Subscriber) Run(ctx context.Context, broker messaging.Broker) error {
	consumer, err := broker.Consumer(ResponseTopic, "")
	if err != nil {
		return err
	}
	defer consumer.Close()

	return consumer.Consume(ctx, s.handle)
}

// handle reads the correlation id and status code from the message and
// delivers it to the correlation broker. Acks happen in the transport
// adapter before this handler runs, so a crash here loses the response;
// the HTTP caller observes a timeout rather than a redelivery.
func (s *Subscriber) handle(_ context.Context, msg *messaging.Message) error {
	if msg.ID == "" {
		logger.L().Warn("subscriber: response missing correlation id, dropping")
		return nil
	}

	code := msg.Headers[statusHeader]
	if code == "" {
		logger.L().Warn("subscriber: response missing status header, defaulting", "id", msg.ID, "default", defaultStatus)
		code = defaultStatus
	}

	s.broker.Publish(correlate.Event{ID: msg.ID, Data: msg.Payload, Code: code})
	return nil
}

// Supervise keeps calling Run until ctx is canceled, so a transport
// disconnect results in reopening the consumer rather than stopping the
// subscriber permanently.
func Supervise(ctx context.Context, sub *Subscriber, broker messaging.Broker) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := sub.Run(ctx, broker); err != nil && ctx.Err() == nil {
			logger.L().Error("subscriber: consume loop ended, reconnecting", "error", err)
		}
	}
}
