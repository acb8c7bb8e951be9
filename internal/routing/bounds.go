package routing

import (
	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/pkg/types"
)

// Bounds is the half-open interval [Min, Max) of one range partition.
type Bounds struct {
	Min types.Value
	Max types.Value
}

// BoundsOf returns the interval covered by the given child partition.
func BoundsOf(d *descriptor.Descriptor, child types.ChildID) (Bounds, error) {
	if d.Strategy != types.StrategyRange {
		return Bounds{}, errors.Newf(errors.ErrCategoryDescriptor, errors.CodeWrongStrategy,
			"relation %s is not range partitioned", d.Relation)
	}

	for i := range d.Ranges {
		if d.Ranges[i].ChildID == child {
			return Bounds{
				Min: d.Ranges[i].Min.Clone(),
				Max: d.Ranges[i].Max.Clone(),
			}, nil
		}
	}

	return Bounds{}, errors.Newf(errors.ErrCategoryRouting, errors.CodeNoSuchPartition,
		"relation %s has no partition %s", d.Relation, child)
}

// BoundsAt returns the interval of the index-th range. Index -1 means the
// last range; any other negative index is invalid, and a positive index
// past the end reports a missing partition.
func BoundsAt(d *descriptor.Descriptor, index int) (Bounds, error) {
	if d.Strategy != types.StrategyRange {
		return Bounds{}, errors.Newf(errors.ErrCategoryDescriptor, errors.CodeWrongStrategy,
			"relation %s is not range partitioned", d.Relation)
	}
	if len(d.Ranges) == 0 {
		return Bounds{}, errors.Newf(errors.ErrCategoryDescriptor, errors.CodeEmptyPartitionSet,
			"relation %s has no range partitions", d.Relation)
	}

	switch {
	case index == -1:
		index = len(d.Ranges) - 1
	case index < -1:
		return Bounds{}, errors.Newf(errors.ErrCategoryRouting, errors.CodeInvalidIndex,
			"negative indexes other than -1 (last partition) are not allowed, got %d", index)
	case index >= len(d.Ranges):
		return Bounds{}, errors.Newf(errors.ErrCategoryRouting, errors.CodePartitionNotFound,
			"partition #%d does not exist (total amount is %d)", index, len(d.Ranges))
	}

	return Bounds{
		Min: d.Ranges[index].Min.Clone(),
		Max: d.Ranges[index].Max.Clone(),
	}, nil
}

// GlobalMin returns the min bound of the first range.
func GlobalMin(d *descriptor.Descriptor) (types.Value, error) {
	if err := requireRanges(d); err != nil {
		return nil, err
	}
	return d.Ranges[0].Min.Clone(), nil
}

// GlobalMax returns the max bound of the last range.
func GlobalMax(d *descriptor.Descriptor) (types.Value, error) {
	if err := requireRanges(d); err != nil {
		return nil, err
	}
	return d.Ranges[len(d.Ranges)-1].Max.Clone(), nil
}

func requireRanges(d *descriptor.Descriptor) error {
	if d.Strategy != types.StrategyRange {
		return errors.Newf(errors.ErrCategoryDescriptor, errors.CodeWrongStrategy,
			"relation %s is not range partitioned", d.Relation)
	}
	if len(d.Ranges) == 0 {
		return errors.Newf(errors.ErrCategoryDescriptor, errors.CodeEmptyPartitionSet,
			"relation %s has no range partitions", d.Relation)
	}
	return nil
}
