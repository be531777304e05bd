// Package memory provides an in-process messaging.Broker backed by Go
// channels. It is used by the conformance suite in pkg/messaging/tests and
// by callers that want the messaging.Broker interface without a live
// broker dependency.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/chris-alexander-pop/busgateway/pkg/messaging"
)

// Config configures the memory broker.
type Config struct {
	// BufferSize is the channel buffer given to every subscriber.
	BufferSize int
}

// Broker is an in-process, fanout-capable implementation of messaging.Broker.
// Every Consumer created for a topic receives every message published to
// that topic, regardless of consumer group, matching the fanout topology
// the gateway relies on for its response subject/queue.
type Broker struct {
	cfg Config

	mu     sync.Mutex
	topics map[string][]*subscription
	closed int32
}

type subscription struct {
	ch     chan *messaging.Message
	closed int32
}

// New creates a ready-to-use in-process broker.
func New(cfg Config) *Broker {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	return &Broker{
		cfg:    cfg,
		topics: make(map[string][]*subscription),
	}
}

func (b *Broker) Producer(topic string) (messaging.Producer, error) {
	if atomic.LoadInt32(&b.closed) == 1 {
		return nil, messaging.ErrClosed(nil)
	}
	return &producer{broker: b, topic: topic}, nil
}

func (b *Broker) Consumer(topic string, _ string) (messaging.Consumer, error) {
	if atomic.LoadInt32(&b.closed) == 1 {
		return nil, messaging.ErrClosed(nil)
	}
	sub := &subscription{ch: make(chan *messaging.Message, b.cfg.BufferSize)}

	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], sub)
	b.mu.Unlock()

	return &consumer{broker: b, topic: topic, sub: sub}, nil
}

func (b *Broker) Close() error {
	if !atomic.CompareAndSwapInt32(&b.closed, 0, 1) {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.topics {
		for _, s := range subs {
			s.close()
		}
	}
	b.topics = make(map[string][]*subscription)
	return nil
}

func (b *Broker) Healthy(_ context.Context) bool {
	return atomic.LoadInt32(&b.closed) == 0
}

func (s *subscription) close() {
	if atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		close(s.ch)
	}
}

type producer struct {
	broker *Broker
	topic  string
}

func (p *producer) Publish(ctx context.Context, msg *messaging.Message) error {
	topic := p.topic
	if msg.Topic != "" {
		topic = msg.Topic
	}

	p.broker.mu.Lock()
	subs := append([]*subscription(nil), p.broker.topics[topic]...)
	p.broker.mu.Unlock()

	for _, s := range subs {
		if atomic.LoadInt32(&s.closed) == 1 {
			continue
		}
		select {
		case s.ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
			return messaging.ErrQueueFull(nil)
		}
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
	broker *Broker
	topic  string
	sub    *subscription
}

func (c *consumer) Consume(ctx context.Context, handler messaging.MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.sub.ch:
			if !ok {
				return nil
			}
			if err := handler(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (c *consumer) Close() error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	subs := c.broker.topics[c.topic]
	for i, s := range subs {
		if s == c.sub {
			c.broker.topics[c.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	c.sub.close()
	return nil
}
