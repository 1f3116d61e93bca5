// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"log/slog"
	"testing"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus(slog.Default())
	first := bus.Subscribe(4)
	second := bus.Subscribe(4)

	bus.Publish(Event{Kind: ConfigStart, Cycle: "c1"})
	bus.Publish(Event{Kind: ConfigEnd, Cycle: "c1", Count: 2})

	for _, subscription := range []*Subscription{first, second} {
		if event := <-subscription.C; event.Kind != ConfigStart {
			t.Fatalf("first event = %v, want %v", event.Kind, ConfigStart)
		}
		if event := <-subscription.C; event.Kind != ConfigEnd || event.Count != 2 {
			t.Fatalf("second event = %+v", event)
		}
	}
}

func TestBusDropsForFullSubscriber(t *testing.T) {
	bus := NewBus(slog.Default())
	subscription := bus.Subscribe(1)

	bus.Publish(Event{Kind: ConfigLine, Line: "sampling=1024"})
	bus.Publish(Event{Kind: ConfigLine, Line: "polling=30"})

	if bus.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", bus.Dropped())
	}
	if event := <-subscription.C; event.Line != "sampling=1024" {
		t.Fatalf("kept event = %q, want the first one", event.Line)
	}
}

func TestSubscriptionClose(t *testing.T) {
	bus := NewBus(slog.Default())
	subscription := bus.Subscribe(1)
	subscription.Close()
	subscription.Close()

	if bus.Subscribers() != 0 {
		t.Fatalf("Subscribers() = %d after Close", bus.Subscribers())
	}
	if _, ok := <-subscription.C; ok {
		t.Fatal("channel should be closed")
	}
	bus.Publish(Event{Kind: ConfigStart})
}

func TestBusClose(t *testing.T) {
	bus := NewBus(slog.Default())
	subscription := bus.Subscribe(1)
	bus.Close()

	if _, ok := <-subscription.C; ok {
		t.Fatal("subscription channel should be closed by Bus.Close")
	}
	late := bus.Subscribe(1)
	if _, ok := <-late.C; ok {
		t.Fatal("subscribing to a closed bus should yield a closed channel")
	}
	late.Close()
	late.Close()
	bus.Publish(Event{Kind: ConfigStart})
}
