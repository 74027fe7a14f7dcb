package bus

import (
	"context"
	"sync"
)

// Local is an in-process Bus. Delivery is synchronous: Publish returns after
// every subscriber has seen every key.
type Local struct {
	mu   sync.Mutex
	next int
	subs map[int]Handler
}

// NewLocal returns an empty in-process bus.
func NewLocal() *Local {
	return &Local{subs: make(map[int]Handler)}
}

func (b *Local) Publish(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		for _, k := range keys {
			h(k)
		}
	}
	return nil
}

func (b *Local) Subscribe(ctx context.Context, h Handler) error {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = h
	b.mu.Unlock()

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		}()
	}
	return nil
}
