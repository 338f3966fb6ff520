package realtime

import (
	"context"
	"log/slog"
	"sync"
)

const defaultBuffer = 64

// MemoryBroker fans events out to in-process subscribers. Publish waits for
// a subscriber whose buffer is full, so a session never silently misses an
// event; ctx bounds the wait.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[int]*memorySub
	nextID int
	buffer int
	log    *slog.Logger
}

type memorySub struct {
	ch   chan Event
	done chan struct{}
}

func NewMemoryBroker(log *slog.Logger) *MemoryBroker {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryBroker{
		subs:   make(map[int]*memorySub),
		buffer: defaultBuffer,
		log:    log,
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subs {
		select {
		case sub.ch <- event:
			continue
		default:
		}

		b.log.Warn("realtime publish: subscriber lagging",
			slog.Int("subscriber", id),
			slog.String("event", string(event.Type)),
			slog.String("lead_id", event.ID),
		)
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-ctx.Done():
			b.log.Error("realtime publish: event not delivered",
				slog.Int("subscriber", id),
				slog.String("lead_id", event.ID),
				slog.String("error", ctx.Err().Error()),
			)
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context) (*Subscription, error) {
	sub := &memorySub{
		ch:   make(chan Event, b.buffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	return newSubscription(sub.ch, func() {
		// Released first so a Publish waiting on this subscriber lets go of the lock.
		close(sub.done)
		b.mu.Lock()
		delete(b.subs, id)
		close(sub.ch)
		b.mu.Unlock()
	}), nil
}

func (b *MemoryBroker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
