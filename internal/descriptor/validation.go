package descriptor

import (
	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/pkg/types"
)

// Validate checks the snapshot invariants: every entry has min < max, and
// entries are sorted ascending with ranges[i].max <= ranges[i+1].min. The
// comparator must be the same ordering the ranges were registered under.
func (d *Descriptor) Validate(cmp types.CompareFunc) error {
	switch d.Strategy {
	case types.StrategyRange:
		return d.validateRanges(cmp)
	case types.StrategyHash:
		if d.HashPartitions == 0 {
			return errors.NewRoutingError(errors.CodeInvalidPartitionCount,
				"hash relation "+string(d.Relation)+" has zero partitions")
		}
		return nil
	default:
		return errors.Newf(errors.ErrCategoryDescriptor, errors.CodeWrongStrategy,
			"relation %s has unknown strategy %q", d.Relation, d.Strategy)
	}
}

func (d *Descriptor) validateRanges(cmp types.CompareFunc) error {
	for i, e := range d.Ranges {
		c, err := cmp(e.Min, e.Max)
		if err != nil {
			return err
		}
		if c >= 0 {
			return errors.Newf(errors.ErrCategoryDescriptor, errors.CodeInvalidRange,
				"range %d of relation %s has min >= max", i, d.Relation)
		}

		if i == 0 {
			continue
		}
		prev := d.Ranges[i-1]
		c, err = cmp(prev.Max, e.Min)
		if err != nil {
			return err
		}
		if c > 0 {
			return errors.Newf(errors.ErrCategoryDescriptor, errors.CodeRangeOverlap,
				"ranges %d and %d of relation %s overlap", i-1, i, d.Relation)
		}
	}
	return nil
}
