package correlate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/chris-alexander-pop/busgateway/pkg/correlate"
	"github.com/chris-alexander-pop/busgateway/pkg/test"
)

type BrokerSuite struct {
	test.Suite
	broker *correlate.Broker
	cancel context.CancelFunc
}

func (s *BrokerSuite) SetupTest() {
	s.Suite.SetupTest()
	ctx, cancel := context.WithCancel(s.Ctx)
	s.cancel = cancel
	s.broker = correlate.New()
	go s.broker.Run(ctx)
}

func (s *BrokerSuite) TearDownTest() {
	s.cancel()
}

func (s *BrokerSuite) TestPublishDeliversToSubscriber() {
	ch := s.broker.Subscribe("req-1")
	s.broker.Publish(correlate.Event{ID: "req-1", Data: []byte("payload"), Code: "200"})

	select {
	case e := <-ch:
		s.Equal("req-1", e.ID)
		s.Equal([]byte("payload"), e.Data)
		s.Equal("200", e.Code)
	case <-time.After(time.Second):
		s.Fail("timed out waiting for delivery")
	}
	s.broker.Unsubscribe("req-1")
}

func (s *BrokerSuite) TestPublishBeforeSubscribeIsDropped() {
	s.broker.Publish(correlate.Event{ID: "req-2", Data: []byte("early"), Code: "200"})

	ch := s.broker.Subscribe("req-2")
	select {
	case e := <-ch:
		s.Fail("unexpected delivery", "got %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
	s.broker.Unsubscribe("req-2")
}

func (s *BrokerSuite) TestPublishAfterUnsubscribeIsDropped() {
	ch := s.broker.Subscribe("req-3")
	s.broker.Unsubscribe("req-3")

	// Give the owner goroutine a moment to process the unsubscribe
	// before the publish races it.
	time.Sleep(50 * time.Millisecond)
	s.broker.Publish(correlate.Event{ID: "req-3", Data: []byte("late"), Code: "200"})

	select {
	case _, ok := <-ch:
		s.False(ok, "channel should be closed, not carrying a late delivery")
	case <-time.After(200 * time.Millisecond):
		s.Fail("channel neither closed nor delivered")
	}
}

func (s *BrokerSuite) TestUnsubscribeIsIdempotent() {
	s.broker.Unsubscribe("never-subscribed")
	s.broker.Unsubscribe("never-subscribed")
}

func (s *BrokerSuite) TestDoubleSubscribeOverwritesNonStrict() {
	first := s.broker.Subscribe("req-4")
	second := s.broker.Subscribe("req-4")

	s.broker.Publish(correlate.Event{ID: "req-4", Data: []byte("x"), Code: "200"})

	select {
	case _, ok := <-second:
		s.True(ok)
	case <-time.After(time.Second):
		s.Fail("second subscriber never received delivery")
	}

	select {
	case e := <-first:
		s.Fail("first subscriber's channel should have been replaced, not delivered to", "got %+v", e)
	default:
	}
	s.broker.Unsubscribe("req-4")
}

func TestBrokerSuite(t *testing.T) {
	test.Run(t, new(BrokerSuite))
}
