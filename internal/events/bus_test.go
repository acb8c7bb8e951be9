package events

import (
	"sync"
	"testing"
	"time"
)

func recv(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus(4)
	a := bus.Subscribe("a")
	b := bus.Subscribe("b")

	bus.Publish(Event{Type: PartitionCreated, Relation: "events", Child: "events_0", Timestamp: Now()})

	for _, sub := range []*Subscriber{a, b} {
		ev := recv(t, sub.Ch)
		if ev.Type != PartitionCreated || ev.Relation != "events" || ev.Child != "events_0" {
			t.Fatalf("subscriber %s: unexpected event %+v", sub.ID, ev)
		}
	}
}

func TestFiltersLimitDelivery(t *testing.T) {
	bus := NewBus(4)
	filtered := bus.Subscribe("filtered", "events")

	bus.Publish(Event{Type: PartitionCreated, Relation: "sessions", Child: "sessions_1"})
	bus.Publish(Event{Type: PartitionDetached, Relation: "events", Child: "events_0"})

	ev := recv(t, filtered.Ch)
	if ev.Relation != "events" {
		t.Fatalf("filter leaked: %+v", ev)
	}
	select {
	case ev := <-filtered.Ch:
		t.Fatalf("unexpected second event: %+v", ev)
	default:
	}
}

func TestFullChannelDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(1)
	sub := bus.Subscribe("slow")

	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: PartitionCreated, Relation: "events", Child: "events_0"})
		bus.Publish(Event{Type: PartitionCreated, Relation: "events", Child: "events_10"})
		bus.Publish(Event{Type: PartitionCreated, Relation: "events", Child: "events_20"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}

	ev := recv(t, sub.Ch)
	if ev.Child != "events_0" {
		t.Fatalf("expected first event retained, got %+v", ev)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(4)
	sub := bus.Subscribe("gone")
	bus.Unsubscribe("gone")

	if _, open := <-sub.Ch; open {
		t.Fatal("channel should be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(Event{Type: PartitionCreated, Relation: "events"})
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := NewBus(1)
	for i := 0; i < 8; i++ {
		bus.Subscribe(string(rune('a' + i)))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			bus.Publish(Event{Type: PartitionCreated, Relation: "events", Child: "events_0"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 8; i++ {
			bus.Unsubscribe(string(rune('a' + i)))
		}
	}()
	wg.Wait()
}
