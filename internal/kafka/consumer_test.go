package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleRetriesUntilSuccess(t *testing.T) {
	c := &Consumer{log: zap.NewNop(), minBackoff: time.Millisecond, maxBackoff: 4 * time.Millisecond}
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls < 4 {
			return errors.New("redis timeout")
		}
		return nil
	}

	ok := c.handle(context.Background(), 0, h, kafka.Message{Topic: "orders.status", Offset: 7})
	require.True(t, ok)
	require.Equal(t, 4, calls)
}

func TestHandleGivesUpOnlyWhenContextEnds(t *testing.T) {
	c := &Consumer{log: zap.NewNop(), minBackoff: time.Millisecond, maxBackoff: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return errors.New("still failing")
	}

	done := make(chan bool, 1)
	go func() { done <- c.handle(ctx, 0, h, kafka.Message{}) }()
	select {
	case ok := <-done:
		require.False(t, ok)
		require.Equal(t, 3, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("handle did not return after cancel")
	}
}

func TestWorkerForKeepsPartitionOnOneWorker(t *testing.T) {
	require.Equal(t, 0, workerFor(0, 4))
	require.Equal(t, 1, workerFor(5, 4))
	require.Equal(t, workerFor(9, 3), workerFor(9, 3))
	require.Equal(t, 0, workerFor(7, 1))
}
