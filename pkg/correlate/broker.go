// Package correlate implements the in-process request/response correlation
// broker: the component that lets a synchronous HTTP handler wait for a
// single asynchronous response identified by a correlation id.
//
// A single owner goroutine (Run) holds the subscriber map exclusively,
// fed by three channels (subscribe, unsubscribe, publish), so no lock is
// needed around the map itself. Delivery is one-shot and per id rather
// than topic-based.
package correlate

import (
	"context"

	"github.com/chris-alexander-pop/busgateway/pkg/logger"
)

// Event is a single response delivered to a subscriber: the payload
// relayed verbatim from a backend worker, and the HTTP status code the
// worker reported for it.
type Event struct {
	ID   string
	Data []byte
	Code string
}

type subscription struct {
	id string
	ch chan Event
}

// Broker maps correlation id to a one-shot delivery channel. Subscribe,
// Unsubscribe, and Publish are safe to call from any goroutine; all three
// only ever enqueue a request for the owner goroutine running Run.
type Broker struct {
	// Strict, when true, panics on a double-subscribe instead of logging
	// and overwriting the previous registration. Intended for test
	// builds that want to catch a subscribe/unsubscribe ordering bug
	// immediately rather than risk a surprising delivery.
	Strict bool

	subCh   chan subscription
	unsubCh chan string
	pubCh   chan Event
}

// bufferSize is the capacity of the broker's internal subscribe,
// unsubscribe and publish channels. Each subscriber's delivery slot holds
// one event.
const bufferSize = 128

// New creates a Broker. Call Run in its own goroutine before using it.
func New() *Broker {
	return &Broker{
		subCh:   make(chan subscription, bufferSize),
		unsubCh: make(chan string, bufferSize),
		pubCh:   make(chan Event, bufferSize),
	}
}

// Subscribe registers a new delivery slot for id and returns the read end.
// The caller is the sole reader; the broker is the sole writer.
func (b *Broker) Subscribe(id string) <-chan Event {
	ch := make(chan Event, 1)
	b.subCh <- subscription{id: id, ch: ch}
	return ch
}

// Unsubscribe removes the mapping for id. Idempotent: unsubscribing an id
// with no active subscription is a no-op.
func (b *Broker) Unsubscribe(id string) {
	b.unsubCh <- id
}

// Publish attempts a non-blocking delivery of e to its subscriber. If no
// subscriber is registered under e.ID, the event is silently discarded.
func (b *Broker) Publish(e Event) {
	b.pubCh <- e
}

// Run owns the subscriber map and serializes all mutations to it. It
// blocks until ctx is canceled, then drains any publish events already
// queued before returning, so a response racing the shutdown signal is
// still delivered to a waiter that is still listening.
func (b *Broker) Run(ctx context.Context) {
	subscribers := make(map[string]chan Event)

	for {
		select {
		case s := <-b.subCh:
			b.register(subscribers, s)

		case id := <-b.unsubCh:
			b.unregister(subscribers, id)

		case e := <-b.pubCh:
			b.deliver(subscribers, e)

		case <-ctx.Done():
			b.drain(subscribers)
			return
		}
	}
}

func (b *Broker) register(subscribers map[string]chan Event, s subscription) {
	if _, exists := subscribers[s.id]; exists {
		if b.Strict {
			panic("correlate: double subscribe for id " + s.id)
		}
		logger.L().Warn("correlate: overwriting existing subscription", "id", s.id)
	}
	subscribers[s.id] = s.ch
}

func (b *Broker) unregister(subscribers map[string]chan Event, id string) {
	if ch, ok := subscribers[id]; ok {
		delete(subscribers, id)
		close(ch)
	}
}

func (b *Broker) deliver(subscribers map[string]chan Event, e Event) {
	ch, ok := subscribers[e.ID]
	if !ok {
		return
	}
	select {
	case ch <- e:
	default:
		logger.L().Warn("correlate: dropping event, subscriber slot full", "id", e.ID)
	}
}

func (b *Broker) drain(subscribers map[string]chan Event) {
	for {
		select {
		case e := <-b.pubCh:
			b.deliver(subscribers, e)
		default:
			return
		}
	}
}
