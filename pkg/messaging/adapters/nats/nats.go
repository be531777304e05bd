// Package nats adapts github.com/nats-io/nats.go to the messaging.Broker
// interface. Core NATS publish/subscribe is inherently fanout: every
// subscriber to a subject receives every message, which is exactly the
// response-topic topology the gateway needs without any extra exchange
// or queue bookkeeping (unlike the AMQP adapter).
package nats

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/chris-alexander-pop/busgateway/pkg/logger"
	"github.com/chris-alexander-pop/busgateway/pkg/messaging"
	"github.com/chris-alexander-pop/busgateway/pkg/resilience"
)

// reconnectAttempts caps the retry loop at a number high enough to be, in
// practice, unbounded: ctx cancellation is what actually ends it.
const reconnectAttempts = 1 << 30

// Config configures the NATS adapter.
type Config struct {
	// Host is host:port of the NATS server, e.g. "localhost:4222".
	Host string `env:"NATS_HOST" validate:"required"`

	// ReconnectBackoff is the flat delay between connection attempts.
	ReconnectBackoff time.Duration `env:"NATS_RECONNECT_BACKOFF" env-default:"250ms"`
}

// Broker manages a single long-lived NATS connection, reconnected with a
// flat backoff on any fault.
type Broker struct {
	cfg Config

	mu      sync.Mutex
	conn    *nats.Conn
	breaker *resilience.CircuitBreaker
}

// New connects to the NATS server, retrying with a flat backoff until it
// succeeds or ctx is done.
func New(ctx context.Context, cfg Config) (*Broker, error) {
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = 250 * time.Millisecond
	}
	breakerCfg := resilience.DefaultCircuitBreakerConfig("nats")
	breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
		logger.L().Warn("nats: circuit breaker state change", "breaker", name, "from", from, "to", to)
	}
	b := &Broker{cfg: cfg, breaker: resilience.NewCircuitBreaker(breakerCfg)}
	if err := b.ensureConn(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// ensureConn reconnects with a flat backoff on any fault. Each connect
// attempt runs behind a circuit breaker so a server that is down hard
// doesn't get hammered with a fresh dial every backoff interval.
func (b *Broker) ensureConn(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil && b.conn.IsConnected() {
		return nil
	}

	return resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts:    reconnectAttempts,
		InitialBackoff: b.cfg.ReconnectBackoff,
		MaxBackoff:     b.cfg.ReconnectBackoff,
		Multiplier:     1.0,
	}, func(ctx context.Context) error {
		return b.breaker.Execute(ctx, func(ctx context.Context) error {
			conn, err := nats.Connect(
				"nats://"+b.cfg.Host,
				nats.MaxReconnects(-1),
				nats.ReconnectWait(b.cfg.ReconnectBackoff),
			)
			if err != nil {
				logger.L().Warn("nats: connect failed, retrying", "error", err)
				return err
			}

			b.conn = conn
			return nil
		})
	})
}

func (b *Broker) Producer(topic string) (messaging.Producer, error) {
	if err := b.ensureConn(context.Background()); err != nil {
		return nil, messaging.ErrConnectionFailed(err)
	}
	return &producer{broker: b, subject: topic}, nil
}

func (b *Broker) Consumer(topic string, _ string) (messaging.Consumer, error) {
	if err := b.ensureConn(context.Background()); err != nil {
		return nil, messaging.ErrConnectionFailed(err)
	}

	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()

	msgs := make(chan *nats.Msg, 128)
	sub, err := conn.ChanSubscribe(topic, msgs)
	if err != nil {
		return nil, messaging.ErrConnectionFailed(err)
	}
	return &consumer{sub: sub, msgs: msgs}, nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		b.conn.Close()
	}
	return nil
}

func (b *Broker) Healthy(_ context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}

type producer struct {
	broker  *Broker
	subject string
}

func (p *producer) Publish(ctx context.Context, msg *messaging.Message) error {
	if err := p.broker.ensureConn(ctx); err != nil {
		return messaging.ErrConnectionFailed(err)
	}

	p.broker.mu.Lock()
	conn := p.broker.conn
	p.broker.mu.Unlock()

	natsMsg := &nats.Msg{
		Subject: p.subject,
		Data:    msg.Payload,
		Header:  nats.Header{},
	}
	natsMsg.Header.Set("message_id", msg.ID)
	for k, v := range msg.Headers {
		natsMsg.Header.Set(k, v)
	}

	// Exactly one publish attempt: a retry would produce a second
	// response the proxy handler can't distinguish from the first.
	if err := conn.PublishMsg(natsMsg); err != nil {
		return messaging.ErrPublishFailed(err)
	}
	return nil
}

func (p *producer) PublishBatch(ctx context.Context, msgs []*messaging.Message) error {
	for _, m := range msgs {
		if err := p.Publish(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (p *producer) Close() error { return nil }

type consumer struct {
	sub  *nats.Subscription
	msgs chan *nats.Msg
}

func (c *consumer) Consume(ctx context.Context, handler messaging.MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-c.msgs:
			if !ok {
				return messaging.ErrConsumeFailed(nil)
			}
			headers := make(map[string]string, len(m.Header))
			for k := range m.Header {
				headers[k] = m.Header.Get(k)
			}
			msg := &messaging.Message{
				ID:      m.Header.Get("message_id"),
				Payload: m.Data,
				Headers: headers,
			}
			if err := handler(ctx, msg); err != nil {
				logger.L().Error("nats: handler returned error", "error", err)
			}
		}
	}
}

func (c *consumer) Close() error {
	return c.sub.Unsubscribe()
}
