package amqp

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewReturnsImmediatelyWhenContextAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ctx, Config{URL: "amqp://127.0.0.1:1"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestMessageTTLIsTwoMinutes(t *testing.T) {
	require.Equal(t, 120*time.Second, MessageTTL)
	require.Equal(t, "120000", strconv.FormatInt(MessageTTL.Milliseconds(), 10))
}
