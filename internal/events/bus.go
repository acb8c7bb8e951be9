// Package events provides an in-process notification bus for partition
// lifecycle changes, used for cache invalidation and change visibility.
package events

import (
	"sync"
	"time"

	"github.com/partwise/partwise/pkg/types"
)

// EventType represents the type of lifecycle event.
type EventType int

const (
	RelationCreated EventType = iota
	PartitionCreated
	PartitionDetached
)

// Event represents one partition lifecycle change.
type Event struct {
	Type      EventType
	Relation  types.RelationID
	Child     types.ChildID
	Timestamp int64
}

// Bus provides an in-process pub/sub notification bus.
type Bus struct {
	subscribers sync.Map
	bufferSize  int
}

// NewBus creates a new bus. bufferSize is the per-subscriber channel depth.
func NewBus(bufferSize int) *Bus {
	return &Bus{bufferSize: bufferSize}
}

// Publish sends an event to all matching subscribers. Non-blocking: if a
// subscriber's channel is full the event is dropped, never queued.
func (b *Bus) Publish(ev Event) {
	b.subscribers.Range(func(key, value interface{}) bool {
		sub := value.(*Subscriber)
		if matchesFilter(sub, ev.Relation) {
			sub.send(ev)
		}
		return true
	})
}

// Subscribe adds a subscriber with the given ID. Empty filters receive every
// event; otherwise only events whose relation is listed are delivered.
func (b *Bus) Subscribe(id string, filters ...types.RelationID) *Subscriber {
	sub := &Subscriber{
		ID:      id,
		Filters: filters,
		Ch:      make(chan Event, b.bufferSize),
	}
	b.subscribers.Store(sub.ID, sub)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. The closed flag
// is flipped under the subscriber's mutex so a concurrent Publish can never
// send on the closed channel.
func (b *Bus) Unsubscribe(id string) {
	if value, ok := b.subscribers.LoadAndDelete(id); ok {
		sub := value.(*Subscriber)
		sub.mu.Lock()
		sub.closed = true
		close(sub.Ch)
		sub.mu.Unlock()
	}
}

func matchesFilter(sub *Subscriber, rel types.RelationID) bool {
	if len(sub.Filters) == 0 {
		return true
	}
	for _, f := range sub.Filters {
		if f == rel {
			return true
		}
	}
	return false
}

// Subscriber represents one event consumer.
type Subscriber struct {
	ID      string
	Filters []types.RelationID
	Ch      chan Event

	mu     sync.Mutex
	closed bool
}

// send delivers without blocking, dropping when the channel is full. It is
// a no-op once the subscriber has been unsubscribed.
func (s *Subscriber) send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.Ch <- ev:
	default:
	}
}

// Now is the event timestamp helper, in Unix microseconds.
func Now() int64 {
	return time.Now().UnixMicro()
}
