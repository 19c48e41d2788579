package events

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[uint]map[chan Event]struct{}
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uint]map[chan Event]struct{})}
}

// Publish yavaş aboneyi beklemez, kanalı doluysa olay o abone için atlanır
func (b *MemoryBus) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[e.ClientID] {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, clientID uint) (<-chan Event, error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if b.subs[clientID] == nil {
		b.subs[clientID] = make(map[chan Event]struct{})
	}
	b.subs[clientID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[clientID][ch]; ok {
			delete(b.subs[clientID], ch)
			close(ch)
		}
	}()
	return ch, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for clientID, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, clientID)
	}
	return nil
}
