package catalog

import (
	"context"
	"fmt"

	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/internal/routing"
	"github.com/partwise/partwise/internal/typesys"
	"github.com/partwise/partwise/pkg/types"
)

// AutoRangeDelegate creates range partitions on demand. New partitions are
// aligned to a fixed interval width: the partition covering value v spans
// [floor(v/w)*w, floor(v/w)*w + w), clipped to the enclosing gap when one
// exists. Out-of-range values grow the set one interval at a time from the
// nearest edge, the way a spawn loop would, so intermediate partitions are
// materialized too and the set stays contiguous at the edges.
//
// Only int64 and timestamp attributes are supported; interval arithmetic
// has no meaning for text, and float ranges are managed explicitly.
type AutoRangeDelegate struct {
	catalog  Catalog
	registry *typesys.Registry
	width    int64 // interval width; microseconds for timestamps
}

// NewAutoRangeDelegate builds a delegate with the given interval width.
func NewAutoRangeDelegate(cat Catalog, registry *typesys.Registry, width int64) (*AutoRangeDelegate, error) {
	if width <= 0 {
		return nil, errors.Newf(errors.ErrCategoryCreation, errors.CodeInvalidRange,
			"interval width must be positive, got %d", width)
	}
	return &AutoRangeDelegate{catalog: cat, registry: registry, width: width}, nil
}

// CreatePartition registers the partition covering value and returns its
// child identifier. The range entry is committed to the catalog before the
// call returns.
func (a *AutoRangeDelegate) CreatePartition(ctx context.Context, parent types.RelationID, value types.Value, valueType types.TypeID) (types.ChildID, error) {
	d, err := a.catalog.LoadDescriptor(ctx, parent)
	if err != nil {
		return "", err
	}
	if d.Strategy != types.StrategyRange {
		return "", errors.Newf(errors.ErrCategoryDescriptor, errors.CodeWrongStrategy,
			"relation %s is not range partitioned", parent)
	}
	if d.AttrType != types.TypeInt64 && d.AttrType != types.TypeTimestamp {
		return "", errors.Newf(errors.ErrCategoryCreation, errors.CodeDdlFailed,
			"automatic partition creation needs an interval type, relation %s uses %s", parent, d.AttrType)
	}
	if valueType != d.AttrType {
		return "", errors.Newf(errors.ErrCategoryTypes, errors.CodeIncompatibleTypes,
			"value type %s does not match attribute type %s", valueType, d.AttrType)
	}

	v, ok := types.DecodeInt64(value)
	if !ok {
		return "", errors.Newf(errors.ErrCategoryTypes, errors.CodeBadEncoding,
			"value is not a valid %s encoding", d.AttrType)
	}

	if len(d.Ranges) == 0 {
		min := alignDown(v, a.width)
		return a.register(ctx, parent, min, min+a.width)
	}

	cmp, err := a.registry.LookupComparator(d.AttrType, d.AttrType)
	if err != nil {
		return "", err
	}
	res, err := routing.FindOwner(d, cmp, value)
	if err != nil {
		return "", err
	}

	switch res.Outcome {
	case routing.OutcomeFound:
		// Lost a race with another creator; the partition already exists.
		return res.Child, nil

	case routing.OutcomeGap:
		gapLow, _ := types.DecodeInt64(d.Ranges[res.Lower].Max)
		gapHigh, _ := types.DecodeInt64(d.Ranges[res.Upper].Min)
		min := alignDown(v, a.width)
		if min < gapLow {
			min = gapLow
		}
		max := alignDown(v, a.width) + a.width
		if max > gapHigh {
			max = gapHigh
		}
		return a.register(ctx, parent, min, max)

	case routing.OutcomeAboveLast:
		edge, _ := types.DecodeInt64(d.Ranges[len(d.Ranges)-1].Max)
		var child types.ChildID
		for edge <= v {
			child, err = a.register(ctx, parent, edge, edge+a.width)
			if err != nil {
				return "", err
			}
			edge += a.width
		}
		return child, nil

	case routing.OutcomeBelowFirst:
		edge, _ := types.DecodeInt64(d.Ranges[0].Min)
		var child types.ChildID
		for v < edge {
			child, err = a.register(ctx, parent, edge-a.width, edge)
			if err != nil {
				return "", err
			}
			edge -= a.width
		}
		return child, nil
	}

	return "", errors.Newf(errors.ErrCategoryCreation, errors.CodeDdlFailed,
		"unexpected routing outcome %d for %s", res.Outcome, parent)
}

func (a *AutoRangeDelegate) register(ctx context.Context, parent types.RelationID, min, max int64) (types.ChildID, error) {
	child := types.ChildID(fmt.Sprintf("%s_%d", parent, min))
	// Timestamps share the int64 wire encoding (microseconds).
	entry := descriptor.RangeEntry{
		ChildID: child,
		Min:     types.Int64Value(min),
		Max:     types.Int64Value(max),
	}
	if err := a.catalog.RegisterRange(ctx, parent, entry); err != nil {
		return "", err
	}
	return child, nil
}

// alignDown rounds v down to a multiple of width, flooring for negatives.
func alignDown(v, width int64) int64 {
	m := v % width
	if m < 0 {
		m += width
	}
	return v - m
}
