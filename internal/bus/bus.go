// Package bus carries cache-invalidation fan-out. Services publish the keys a
// mutation made stale; read-cache sessions subscribe and mark their entries.
//
// Two implementations: Local (in-process, synchronous delivery) and Redis
// (pub/sub, so every process sees every invalidation). Handlers must be quick
// and must not publish back into the bus.
package bus

import "context"

// Handler receives one invalidated cache key.
type Handler func(key string)

// Bus broadcasts invalidated cache keys to subscribers.
type Bus interface {
	// Publish broadcasts keys to every subscriber. Publishing no keys is a
	// no-op.
	Publish(ctx context.Context, keys ...string) error

	// Subscribe registers h and returns. h keeps receiving keys until ctx is
	// cancelled.
	Subscribe(ctx context.Context, h Handler) error
}
