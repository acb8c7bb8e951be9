// Package descriptor defines the immutable partitioning metadata snapshot
// the routing engine reads. Snapshots are produced by a catalog loader and
// never mutated in place; a refresh yields a new snapshot with a higher
// version while in-flight readers keep their consistent view.
package descriptor

import (
	"fmt"

	"github.com/partwise/partwise/pkg/types"
)

// RangeEntry maps the half-open interval [Min, Max) to one child partition.
// Entries are immutable while referenced by a live snapshot.
type RangeEntry struct {
	ChildID types.ChildID
	Min     types.Value
	Max     types.Value
}

// Clone returns an entry with independent copies of the bound values.
func (e RangeEntry) Clone() RangeEntry {
	return RangeEntry{
		ChildID: e.ChildID,
		Min:     e.Min.Clone(),
		Max:     e.Max.Clone(),
	}
}

// String renders the entry as "[min: max)" with raw byte lengths; callers
// that know the attribute type should format bounds themselves.
func (e RangeEntry) String() string {
	return fmt.Sprintf("%s[%d-byte min: %d-byte max)", e.ChildID, len(e.Min), len(e.Max))
}

// Descriptor is a point-in-time snapshot of one relation's partitioning
// metadata. The routing engine borrows it read-only per operation.
type Descriptor struct {
	// Relation is the partitioned parent.
	Relation types.RelationID

	// Strategy selects range or hash routing.
	Strategy types.Strategy

	// AttrType is the semantic type of the partitioning attribute.
	AttrType types.TypeID

	// Ranges is sorted ascending by Min, non-overlapping, gaps allowed.
	// Only populated when Strategy is range.
	Ranges []RangeEntry

	// HashPartitions is the configured child count for hash routing.
	// Only meaningful when Strategy is hash.
	HashPartitions uint32

	// Version increments on every catalog refresh of this relation.
	Version uint64
}

// ChildCount returns the number of child partitions.
func (d *Descriptor) ChildCount() int {
	if d.Strategy == types.StrategyHash {
		return int(d.HashPartitions)
	}
	return len(d.Ranges)
}

// Clone returns a deep copy of the snapshot. Loaders hand out clones so a
// later refresh can never be observed mid-update by a reader.
func (d *Descriptor) Clone() *Descriptor {
	cp := &Descriptor{
		Relation:       d.Relation,
		Strategy:       d.Strategy,
		AttrType:       d.AttrType,
		HashPartitions: d.HashPartitions,
		Version:        d.Version,
	}
	if d.Ranges != nil {
		cp.Ranges = make([]RangeEntry, len(d.Ranges))
		for i, e := range d.Ranges {
			cp.Ranges[i] = e.Clone()
		}
	}
	return cp
}
