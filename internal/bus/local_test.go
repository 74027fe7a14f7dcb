package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusgig/internal/bus"
)

func TestLocalDeliversToEverySubscriber(t *testing.T) {
	b := bus.NewLocal()
	ctx := context.Background()

	var first, second []string
	require.NoError(t, b.Subscribe(ctx, func(key string) { first = append(first, key) }))
	require.NoError(t, b.Subscribe(ctx, func(key string) { second = append(second, key) }))

	require.NoError(t, b.Publish(ctx, "jobs:feed", "profile:u1"))

	assert.Equal(t, []string{"jobs:feed", "profile:u1"}, first)
	assert.Equal(t, []string{"jobs:feed", "profile:u1"}, second)

	// Publishing nothing is a no-op.
	require.NoError(t, b.Publish(ctx))
	assert.Len(t, first, 2)
}

func TestLocalUnsubscribesOnContextCancel(t *testing.T) {
	b := bus.NewLocal()
	subCtx, cancel := context.WithCancel(context.Background())

	got := make(chan string, 1)
	require.NoError(t, b.Subscribe(subCtx, func(key string) { got <- key }))

	require.NoError(t, b.Publish(context.Background(), "jobs:feed"))
	assert.Equal(t, "jobs:feed", <-got)

	cancel()
	// Removal is asynchronous; give it a moment, then publish again.
	assert.Eventually(t, func() bool {
		require.NoError(t, b.Publish(context.Background(), "jobs:feed"))
		select {
		case <-got:
			return false
		default:
			return true
		}
	}, time.Second, time.Millisecond)
}
