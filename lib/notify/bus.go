// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Bus is an in-process fan-out of events to subscribers. Publish
// never blocks; it is safe to call from the collector's event loop.
type Bus struct {
	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	closed      bool
	dropped     atomic.Uint64
	logger      *slog.Logger
}

// NewBus returns an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[*Subscription]struct{}),
		logger:      logger,
	}
}

// Subscription receives events on C until Close is called or the bus
// is closed, after which C is closed.
type Subscription struct {
	C <-chan Event

	channel chan Event
	bus     *Bus
	once    sync.Once
}

// Subscribe registers a subscriber with a queue of the given depth.
// Subscribing to a closed bus returns a subscription whose channel is
// already closed.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	channel := make(chan Event, buffer)
	subscription := &Subscription{C: channel, channel: channel, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		subscription.once.Do(func() { close(channel) })
		return subscription
	}
	b.subscribers[subscription] = struct{}{}
	return subscription
}

// Close unregisters the subscription and closes C. Safe to call more
// than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	s.once.Do(func() {
		delete(s.bus.subscribers, s)
		close(s.channel)
	})
}

// Publish delivers event to every subscriber with room in its queue.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for subscription := range b.subscribers {
		select {
		case subscription.channel <- event:
		default:
			total := b.dropped.Add(1)
			b.logger.Warn("notification dropped for slow subscriber",
				"kind", event.Kind,
				"cycle", event.Cycle,
				"dropped_total", total,
			)
		}
	}
}

// Dropped returns the number of deliveries lost to full queues.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close closes every subscription. Later Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for subscription := range b.subscribers {
		subscription.closeLocked()
	}
}
