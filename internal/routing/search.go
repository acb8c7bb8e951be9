// Package routing implements the partition search engine: mapping an
// attribute value to its owning range partition, bounds and overlap
// queries, and the hash modulo router. All operations are read-only
// against an immutable descriptor snapshot and safe for unlimited
// concurrent callers.
package routing

import (
	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/pkg/types"
)

// Outcome classifies the result of an ownership search.
type Outcome int

const (
	// OutcomeFound means the value lies inside exactly one range.
	OutcomeFound Outcome = iota

	// OutcomeGap means the value falls strictly between two registered
	// ranges with no covering partition.
	OutcomeGap

	// OutcomeBelowFirst means the value sorts before the first range's min.
	OutcomeBelowFirst

	// OutcomeAboveLast means the value sorts at or after the last range's max.
	OutcomeAboveLast
)

// String names the outcome for logs and API responses.
func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeGap:
		return "gap"
	case OutcomeBelowFirst:
		return "below_first"
	case OutcomeAboveLast:
		return "above_last"
	default:
		return "unknown"
	}
}

// SearchResult is the transient, per-call outcome of FindOwner.
type SearchResult struct {
	Outcome Outcome

	// Child is the owning partition when Outcome is OutcomeFound.
	Child types.ChildID

	// Lower and Upper are the indexes of the neighboring ranges when
	// Outcome is OutcomeGap (the value sorts between ranges[Lower].Max
	// and ranges[Upper].Min).
	Lower int
	Upper int
}

// FindOwner locates the range entry owning value, by binary search over the
// descriptor's sorted ranges. Bounds are half-open: a value equal to an
// entry's min belongs to that entry; a value equal to its max belongs to
// the next entry if one exists. The comparator must order value (left
// operand) against the descriptor's attribute type (right operand).
func FindOwner(d *descriptor.Descriptor, cmp types.CompareFunc, value types.Value) (SearchResult, error) {
	if d.Strategy != types.StrategyRange {
		return SearchResult{}, errors.Newf(errors.ErrCategoryDescriptor, errors.CodeWrongStrategy,
			"relation %s is not range partitioned", d.Relation)
	}
	if len(d.Ranges) == 0 {
		return SearchResult{}, errors.Newf(errors.ErrCategoryDescriptor, errors.CodeEmptyPartitionSet,
			"relation %s has no range partitions", d.Relation)
	}

	// First index whose max is strictly greater than value. Max is
	// exclusive, so a value equal to ranges[mid].Max lands one slot later.
	lo, hi := 0, len(d.Ranges)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		c, err := cmp(value, d.Ranges[mid].Max)
		if err != nil {
			return SearchResult{}, err
		}
		if c < 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	if lo == len(d.Ranges) {
		return SearchResult{Outcome: OutcomeAboveLast}, nil
	}

	c, err := cmp(value, d.Ranges[lo].Min)
	if err != nil {
		return SearchResult{}, err
	}
	if c >= 0 {
		return SearchResult{Outcome: OutcomeFound, Child: d.Ranges[lo].ChildID}, nil
	}
	if lo == 0 {
		return SearchResult{Outcome: OutcomeBelowFirst}, nil
	}
	return SearchResult{Outcome: OutcomeGap, Lower: lo - 1, Upper: lo}, nil
}

// Overlaps reports whether the half-open probe interval [probeMin, probeMax)
// intersects any registered range. The probe bounds may carry different
// declared types, so each side uses its own comparator against the attribute
// type; supplying two mutually consistent coercions is the caller's
// precondition. Linear scan: this runs at partition-definition time, not on
// the routing hot path.
func Overlaps(d *descriptor.Descriptor, cmpMin, cmpMax types.CompareFunc, probeMin, probeMax types.Value) (bool, error) {
	if d.Strategy != types.StrategyRange {
		return false, errors.Newf(errors.ErrCategoryDescriptor, errors.CodeWrongStrategy,
			"relation %s is not range partitioned", d.Relation)
	}

	for i := range d.Ranges {
		c1, err := cmpMin(probeMin, d.Ranges[i].Max)
		if err != nil {
			return false, err
		}
		c2, err := cmpMax(probeMax, d.Ranges[i].Min)
		if err != nil {
			return false, err
		}
		if c1 < 0 && c2 > 0 {
			return true, nil
		}
	}
	return false, nil
}
