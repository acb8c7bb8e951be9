// Package creation serializes lazy materialization of missing range
// partitions. The hot path (value already owned) takes no locks; only a
// gap or out-of-range probe escalates to the two-lock protocol that
// guarantees at most one new partition per gap across concurrent callers.
package creation

import (
	"context"
	"sync"

	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/internal/routing"
	"github.com/partwise/partwise/pkg/types"
)

// DescriptorSource loads a fresh descriptor snapshot for a relation.
// Implementations must return an independent copy per call so that a
// concurrent refresh can never be observed mid-update.
type DescriptorSource interface {
	LoadDescriptor(ctx context.Context, rel types.RelationID) (*descriptor.Descriptor, error)
}

// DDLDelegate performs the actual partition creation. On success the new
// range entry must be durably registered before the call returns, so that
// a subsequent LoadDescriptor observes it.
type DDLDelegate interface {
	CreatePartition(ctx context.Context, parent types.RelationID, value types.Value, valueType types.TypeID) (types.ChildID, error)
}

// ComparatorSource resolves a comparator between a value type and a
// relation's attribute type.
type ComparatorSource interface {
	LookupComparator(aType, bType types.TypeID) (types.CompareFunc, error)
}

// Invalidator is implemented by caching descriptor sources. The coordinator
// drops the cached entry before the locked re-probe; a cached snapshot must
// never satisfy the reload that decides whether a delegate call is needed.
type Invalidator interface {
	Invalidate(rel types.RelationID)
}

// relationLocks is the per-relation lock pair. configMu freezes descriptor
// refresh, editMu serializes creation attempts. Acquisition order is fixed:
// configMu before editMu, everywhere.
type relationLocks struct {
	configMu sync.Mutex
	editMu   sync.Mutex
}

// Coordinator drives find-or-create routing calls.
type Coordinator struct {
	source      DescriptorSource
	ddl         DDLDelegate
	comparators ComparatorSource

	globalMu sync.RWMutex
	locks    map[types.RelationID]*relationLocks
}

// NewCoordinator creates a coordinator over the given collaborators.
func NewCoordinator(source DescriptorSource, ddl DDLDelegate, comparators ComparatorSource) *Coordinator {
	return &Coordinator{
		source:      source,
		ddl:         ddl,
		comparators: comparators,
		locks:       make(map[types.RelationID]*relationLocks),
	}
}

// FindOrCreate routes value to its owning partition, materializing a new
// range partition when none covers it. Racing callers on the same gap all
// observe the same child: the second probe under both locks returns the
// winner's partition without a duplicate delegate call.
func (c *Coordinator) FindOrCreate(ctx context.Context, rel types.RelationID, value types.Value, valueType types.TypeID) (types.ChildID, error) {
	d, err := c.source.LoadDescriptor(ctx, rel)
	if err != nil {
		return "", err
	}
	cmp, err := c.comparators.LookupComparator(valueType, d.AttrType)
	if err != nil {
		return "", err
	}

	// Hot path: no locks when the owner already exists.
	res, err := routing.FindOwner(d, cmp, value)
	if err == nil && res.Outcome == routing.OutcomeFound {
		return res.Child, nil
	}
	if err != nil && errors.GetCode(err) != errors.CodeEmptyPartitionSet {
		return "", err
	}

	locks := c.relationLocks(rel)
	locks.configMu.Lock()
	defer locks.configMu.Unlock()
	locks.editMu.Lock()
	defer locks.editMu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Re-probe against a fresh snapshot: a concurrent caller may have
	// created and registered the missing partition before we got here.
	// A caching source gets its entry dropped first so the reload below
	// observes the catalog's current state, not a TTL-stale copy.
	if inv, ok := c.source.(Invalidator); ok {
		inv.Invalidate(rel)
	}
	d, err = c.source.LoadDescriptor(ctx, rel)
	if err != nil {
		return "", err
	}
	if len(d.Ranges) > 0 {
		res, err = routing.FindOwner(d, cmp, value)
		if err != nil {
			return "", err
		}
		if res.Outcome == routing.OutcomeFound {
			return res.Child, nil
		}
	}

	child, err := c.ddl.CreatePartition(ctx, rel, value, valueType)
	if err != nil {
		if errors.GetCategory(err) == "" {
			err = errors.NewCreationError(errors.CodeDdlFailed, "partition creation delegate failed", err)
		}
		return "", err
	}
	return child, nil
}

// RouteValue finds the owner of value without ever creating a partition.
// A gap or out-of-range value yields an empty ChildID together with the
// search result; callers that want the gap filled use FindOrCreate.
func (c *Coordinator) RouteValue(ctx context.Context, rel types.RelationID, value types.Value, valueType types.TypeID) (routing.SearchResult, error) {
	d, err := c.source.LoadDescriptor(ctx, rel)
	if err != nil {
		return routing.SearchResult{}, err
	}
	cmp, err := c.comparators.LookupComparator(valueType, d.AttrType)
	if err != nil {
		return routing.SearchResult{}, err
	}
	return routing.FindOwner(d, cmp, value)
}

// relationLocks returns the lock pair for a relation, creating it once.
func (c *Coordinator) relationLocks(rel types.RelationID) *relationLocks {
	c.globalMu.RLock()
	if l, ok := c.locks[rel]; ok {
		c.globalMu.RUnlock()
		return l
	}
	c.globalMu.RUnlock()

	c.globalMu.Lock()
	defer c.globalMu.Unlock()

	if l, ok := c.locks[rel]; ok {
		return l
	}
	l := &relationLocks{}
	c.locks[rel] = l
	return l
}
