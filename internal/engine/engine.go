// Package engine composes the routing search, hash router, and creation
// coordinator behind the narrow procedural surface the wrapper layers call.
package engine

import (
	"context"

	"github.com/partwise/partwise/internal/creation"
	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/internal/observability"
	"github.com/partwise/partwise/internal/routing"
	"github.com/partwise/partwise/internal/typesys"
	"github.com/partwise/partwise/pkg/types"
)

// Engine is the core partition routing engine. It holds no partition state
// of its own: every operation borrows a fresh read-only descriptor snapshot
// from the source.
type Engine struct {
	source      creation.DescriptorSource
	registry    *typesys.Registry
	coordinator *creation.Coordinator
	stats       *observability.RoutingStats
}

// New creates an engine over the given collaborators. stats may be nil.
func New(source creation.DescriptorSource, ddl creation.DDLDelegate, registry *typesys.Registry, stats *observability.RoutingStats) *Engine {
	e := &Engine{
		source:   source,
		registry: registry,
		stats:    stats,
	}
	e.coordinator = creation.NewCoordinator(source, &countingDelegate{ddl: ddl, stats: stats}, registry)
	return e
}

// Registry exposes the type registry for callers that register custom types.
func (e *Engine) Registry() *typesys.Registry {
	return e.registry
}

// Stats exposes the routing statistics collector. May be nil when the
// engine was built without one.
func (e *Engine) Stats() *observability.RoutingStats {
	return e.stats
}

// Describe returns a fresh descriptor snapshot for inspection.
func (e *Engine) Describe(ctx context.Context, rel types.RelationID) (*descriptor.Descriptor, error) {
	return e.source.LoadDescriptor(ctx, rel)
}

// RouteValue maps a value to its owning range partition without creating
// anything. A gap or out-of-bounds value is reported, never filled.
func (e *Engine) RouteValue(ctx context.Context, rel types.RelationID, value types.Value, valueType types.TypeID) (routing.SearchResult, error) {
	res, err := e.coordinator.RouteValue(ctx, rel, value, valueType)
	if err != nil {
		e.stats.RecordError(rel)
		return res, err
	}
	switch res.Outcome {
	case routing.OutcomeFound:
		e.stats.RecordFound(rel)
	case routing.OutcomeGap:
		e.stats.RecordGap(rel)
	default:
		e.stats.RecordOutOfRange(rel)
	}
	return res, nil
}

// FindOrCreate maps a value to its owning partition, lazily materializing
// a missing range partition through the DDL delegate.
func (e *Engine) FindOrCreate(ctx context.Context, rel types.RelationID, value types.Value, valueType types.TypeID) (types.ChildID, error) {
	child, err := e.coordinator.FindOrCreate(ctx, rel, value, valueType)
	if err != nil {
		e.stats.RecordError(rel)
		return "", err
	}
	return child, nil
}

// RouteHash maps a value to a hash partition index: the value is hashed by
// its type's hash function and reduced by the fixed modulo rule.
func (e *Engine) RouteHash(ctx context.Context, rel types.RelationID, value types.Value, valueType types.TypeID) (uint32, error) {
	d, err := e.source.LoadDescriptor(ctx, rel)
	if err != nil {
		return 0, err
	}
	if d.Strategy != types.StrategyHash {
		return 0, errors.Newf(errors.ErrCategoryDescriptor, errors.CodeWrongStrategy,
			"relation %s is not hash partitioned", rel)
	}

	hashFn, err := e.registry.LookupHashFunc(valueType)
	if err != nil {
		return 0, err
	}
	h, err := hashFn(value)
	if err != nil {
		return 0, err
	}
	return routing.RouteHash(h, d.HashPartitions)
}

// BoundsOf returns the [min, max) interval of a child partition.
func (e *Engine) BoundsOf(ctx context.Context, rel types.RelationID, child types.ChildID) (routing.Bounds, error) {
	d, err := e.source.LoadDescriptor(ctx, rel)
	if err != nil {
		return routing.Bounds{}, err
	}
	return routing.BoundsOf(d, child)
}

// BoundsAt returns the interval of the index-th range; -1 means last.
func (e *Engine) BoundsAt(ctx context.Context, rel types.RelationID, index int) (routing.Bounds, error) {
	d, err := e.source.LoadDescriptor(ctx, rel)
	if err != nil {
		return routing.Bounds{}, err
	}
	return routing.BoundsAt(d, index)
}

// GlobalMin returns the min bound of the relation's first range.
func (e *Engine) GlobalMin(ctx context.Context, rel types.RelationID) (types.Value, error) {
	d, err := e.source.LoadDescriptor(ctx, rel)
	if err != nil {
		return nil, err
	}
	return routing.GlobalMin(d)
}

// GlobalMax returns the max bound of the relation's last range.
func (e *Engine) GlobalMax(ctx context.Context, rel types.RelationID) (types.Value, error) {
	d, err := e.source.LoadDescriptor(ctx, rel)
	if err != nil {
		return nil, err
	}
	return routing.GlobalMax(d)
}

// Overlaps reports whether the probe interval [probeMin, probeMax)
// intersects any registered range. The probe bounds may carry different
// declared types; each is coerced to the attribute type independently.
func (e *Engine) Overlaps(ctx context.Context, rel types.RelationID, probeMin types.Value, minType types.TypeID, probeMax types.Value, maxType types.TypeID) (bool, error) {
	d, err := e.source.LoadDescriptor(ctx, rel)
	if err != nil {
		return false, err
	}
	cmpMin, err := e.registry.LookupComparator(minType, d.AttrType)
	if err != nil {
		return false, err
	}
	cmpMax, err := e.registry.LookupComparator(maxType, d.AttrType)
	if err != nil {
		return false, err
	}
	return routing.Overlaps(d, cmpMin, cmpMax, probeMin, probeMax)
}

// countingDelegate wraps the DDL delegate so successful creations are
// reflected in the routing stats.
type countingDelegate struct {
	ddl   creation.DDLDelegate
	stats *observability.RoutingStats
}

func (c *countingDelegate) CreatePartition(ctx context.Context, parent types.RelationID, value types.Value, valueType types.TypeID) (types.ChildID, error) {
	child, err := c.ddl.CreatePartition(ctx, parent, value, valueType)
	if err == nil {
		c.stats.RecordCreation(parent)
	}
	return child, err
}
