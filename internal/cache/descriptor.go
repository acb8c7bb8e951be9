// Package cache provides a read-through descriptor cache for the routing
// hot path, invalidated by partition lifecycle events.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/partwise/partwise/internal/creation"
	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/events"
	"github.com/partwise/partwise/pkg/types"
)

// DefaultTTL bounds staleness when no invalidation event arrives, e.g. when
// another process writes the catalog directly.
const DefaultTTL = 5 * time.Second

type entry struct {
	desc     *descriptor.Descriptor
	loadedAt time.Time
}

// DescriptorCache is a read-through cache over a descriptor source. Entries
// expire after a TTL and are dropped eagerly when a lifecycle event for
// their relation arrives. Callers always receive independent clones.
type DescriptorCache struct {
	source creation.DescriptorSource
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[types.RelationID]entry

	stop func()
}

// NewDescriptorCache builds a cache over source. ttl <= 0 uses DefaultTTL.
func NewDescriptorCache(source creation.DescriptorSource, ttl time.Duration) *DescriptorCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DescriptorCache{
		source:  source,
		ttl:     ttl,
		entries: make(map[types.RelationID]entry),
	}
}

// LoadDescriptor serves from cache when fresh, otherwise falls through to
// the source and caches the result. Load errors are never cached.
func (c *DescriptorCache) LoadDescriptor(ctx context.Context, rel types.RelationID) (*descriptor.Descriptor, error) {
	c.mu.RLock()
	e, ok := c.entries[rel]
	c.mu.RUnlock()
	if ok && time.Since(e.loadedAt) < c.ttl {
		return e.desc.Clone(), nil
	}

	d, err := c.source.LoadDescriptor(ctx, rel)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[rel] = entry{desc: d.Clone(), loadedAt: time.Now()}
	c.mu.Unlock()
	return d, nil
}

// Invalidate drops the cached entry for a relation.
func (c *DescriptorCache) Invalidate(rel types.RelationID) {
	c.mu.Lock()
	delete(c.entries, rel)
	c.mu.Unlock()
}

// Watch subscribes to the bus and invalidates on every lifecycle event.
// Call Close to stop watching.
func (c *DescriptorCache) Watch(bus *events.Bus, subscriberID string) {
	sub := bus.Subscribe(subscriberID)
	done := make(chan struct{})
	c.stop = func() {
		bus.Unsubscribe(subscriberID)
		<-done
	}
	go func() {
		defer close(done)
		for ev := range sub.Ch {
			c.Invalidate(ev.Relation)
		}
	}()
}

// Len returns the number of cached relations.
func (c *DescriptorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the bus watcher, if one was started.
func (c *DescriptorCache) Close() error {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	return nil
}
