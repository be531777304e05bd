package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterFailureThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	})

	failing := func(ctx context.Context) error { return errors.New("boom") }

	require.Error(t, cb.Execute(context.Background(), failing))
	require.Error(t, cb.Execute(context.Background(), failing))

	// Threshold reached: the circuit is now open and fails fast without
	// calling fn again.
	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.False(t, called)
}

func TestCircuitBreakerHalfOpensAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          10 * time.Millisecond,
	})

	require.Error(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	}))
	require.ErrorIs(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	}), ErrCircuitOpen)

	time.Sleep(15 * time.Millisecond)

	// Past Timeout: a trial call is allowed through, and since it
	// succeeds and meets SuccessThreshold the circuit closes.
	require.NoError(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	}))

	called := false
	require.NoError(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	}))
	require.True(t, called)
}

func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          10 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, to)
		},
	})

	require.Error(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	}))
	require.Equal(t, []State{StateOpen}, transitions)

	time.Sleep(15 * time.Millisecond)

	require.Error(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom again")
	}))
	require.Equal(t, []State{StateOpen, StateHalfOpen, StateOpen}, transitions)
}

func TestDefaultCircuitBreakerConfigIsPopulated(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("amqp")
	require.Equal(t, "amqp", cfg.Name)
	require.Equal(t, int64(5), cfg.FailureThreshold)
	require.Equal(t, int64(2), cfg.SuccessThreshold)
	require.Equal(t, 30*time.Second, cfg.Timeout)
}
