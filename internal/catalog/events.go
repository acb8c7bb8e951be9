package catalog

import (
	"context"

	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/events"
	"github.com/partwise/partwise/pkg/types"
)

// EventedCatalog decorates a Catalog and publishes a lifecycle event after
// every successful mutation. Reads pass through untouched.
type EventedCatalog struct {
	Catalog
	bus *events.Bus
}

// WithEvents wraps a catalog so its mutations publish to the bus.
func WithEvents(cat Catalog, bus *events.Bus) *EventedCatalog {
	return &EventedCatalog{Catalog: cat, bus: bus}
}

func (c *EventedCatalog) CreateRelation(ctx context.Context, rel types.RelationID, strategy types.Strategy, attrType types.TypeID, hashPartitions uint32) error {
	if err := c.Catalog.CreateRelation(ctx, rel, strategy, attrType, hashPartitions); err != nil {
		return err
	}
	c.bus.Publish(events.Event{
		Type:      events.RelationCreated,
		Relation:  rel,
		Timestamp: events.Now(),
	})
	return nil
}

func (c *EventedCatalog) RegisterRange(ctx context.Context, rel types.RelationID, entry descriptor.RangeEntry) error {
	if err := c.Catalog.RegisterRange(ctx, rel, entry); err != nil {
		return err
	}
	c.bus.Publish(events.Event{
		Type:      events.PartitionCreated,
		Relation:  rel,
		Child:     entry.ChildID,
		Timestamp: events.Now(),
	})
	return nil
}

func (c *EventedCatalog) DetachRange(ctx context.Context, rel types.RelationID, child types.ChildID) error {
	if err := c.Catalog.DetachRange(ctx, rel, child); err != nil {
		return err
	}
	c.bus.Publish(events.Event{
		Type:      events.PartitionDetached,
		Relation:  rel,
		Child:     child,
		Timestamp: events.Now(),
	})
	return nil
}
