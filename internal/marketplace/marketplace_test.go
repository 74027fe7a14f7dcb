package marketplace_test

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"campusgig/internal/bus"
	"campusgig/internal/marketplace"
	"campusgig/internal/storage/memory"
)

// recorderBus captures published invalidation keys for assertions.
type recorderBus struct {
	mu   sync.Mutex
	keys []string
}

func (b *recorderBus) Publish(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, keys...)
	return nil
}

func (b *recorderBus) Subscribe(ctx context.Context, h bus.Handler) error { return nil }

func (b *recorderBus) published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.keys...)
}

func (b *recorderBus) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = nil
}

type fixture struct {
	store    *memory.Store
	bus      *recorderBus
	jobs     *marketplace.JobService
	ratings  *marketplace.RatingService
	notifs   *marketplace.NotificationService
	profiles *marketplace.ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	b := &recorderBus{}
	log := zap.NewNop()
	notifs := marketplace.NewNotificationService(store, b, log)
	return &fixture{
		store:    store,
		bus:      b,
		jobs:     marketplace.NewJobService(store, b, notifs, log),
		ratings:  marketplace.NewRatingService(store, b, notifs, log),
		notifs:   notifs,
		profiles: marketplace.NewProfileService(store, log),
	}
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
