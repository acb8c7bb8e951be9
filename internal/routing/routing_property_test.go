package routing

import (
	"sort"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/typesys"
	"github.com/partwise/partwise/pkg/types"
)

// rangesFromBoundaries builds a valid descriptor from arbitrary int64s:
// dedupe, sort, then pair consecutive boundaries into [b[2i], b[2i+1])
// entries. Non-adjacent pairs leave gaps, which is exactly what we want
// to exercise.
func rangesFromBoundaries(boundaries []int64) *descriptor.Descriptor {
	seen := make(map[int64]struct{}, len(boundaries))
	uniq := boundaries[:0]
	for _, b := range boundaries {
		if _, ok := seen[b]; !ok {
			seen[b] = struct{}{}
			uniq = append(uniq, b)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	d := &descriptor.Descriptor{
		Relation: "prop",
		Strategy: types.StrategyRange,
		AttrType: types.TypeInt64,
	}
	for i := 0; i+1 < len(uniq); i += 2 {
		d.Ranges = append(d.Ranges, descriptor.RangeEntry{
			ChildID: types.ChildID("child_" + strconv.Itoa(i/2)),
			Min:     types.Int64Value(uniq[i]),
			Max:     types.Int64Value(uniq[i+1]),
		})
	}
	return d
}

// covering returns the indexes of ranges whose [min, max) contains v.
func covering(d *descriptor.Descriptor, v int64) []int {
	var hits []int
	for i, e := range d.Ranges {
		min := int64FromValue(e.Min)
		max := int64FromValue(e.Max)
		if v >= min && v < max {
			hits = append(hits, i)
		}
	}
	return hits
}

func int64FromValue(v types.Value) int64 {
	var x int64
	for _, b := range v {
		x = x<<8 | int64(b)
	}
	return x
}

func TestProperty_FindOwnerMatchesLinearScan(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	reg := typesys.NewRegistry()
	cmp, err := reg.LookupComparator(types.TypeInt64, types.TypeInt64)
	if err != nil {
		t.Fatalf("lookup comparator: %v", err)
	}

	properties.Property("Found iff the value lies in exactly one range", prop.ForAll(
		func(boundaries []int64, value int64) bool {
			d := rangesFromBoundaries(boundaries)
			if len(d.Ranges) == 0 {
				return true
			}

			res, err := FindOwner(d, cmp, types.Int64Value(value))
			if err != nil {
				return false
			}

			hits := covering(d, value)
			if res.Outcome == OutcomeFound {
				return len(hits) == 1 && d.Ranges[hits[0]].ChildID == res.Child
			}
			return len(hits) == 0
		},
		gen.SliceOfN(12, gen.Int64Range(-1000, 1000)),
		gen.Int64Range(-1100, 1100),
	))

	properties.Property("non-Found outcomes agree with the boundary rule", prop.ForAll(
		func(boundaries []int64, value int64) bool {
			d := rangesFromBoundaries(boundaries)
			if len(d.Ranges) == 0 {
				return true
			}

			res, err := FindOwner(d, cmp, types.Int64Value(value))
			if err != nil {
				return false
			}

			first := int64FromValue(d.Ranges[0].Min)
			last := int64FromValue(d.Ranges[len(d.Ranges)-1].Max)

			switch res.Outcome {
			case OutcomeBelowFirst:
				return value < first
			case OutcomeAboveLast:
				return value >= last
			case OutcomeGap:
				lowerMax := int64FromValue(d.Ranges[res.Lower].Max)
				upperMin := int64FromValue(d.Ranges[res.Upper].Min)
				return res.Upper == res.Lower+1 && value >= lowerMax && value < upperMin
			default:
				return true
			}
		},
		gen.SliceOfN(12, gen.Int64Range(-1000, 1000)),
		gen.Int64Range(-1100, 1100),
	))

	properties.TestingRun(t)
}

func TestProperty_OverlapsMatchesIntervalIntersection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	reg := typesys.NewRegistry()
	cmp, err := reg.LookupComparator(types.TypeInt64, types.TypeInt64)
	if err != nil {
		t.Fatalf("lookup comparator: %v", err)
	}

	properties.Property("overlap iff some entry satisfies a < max && b > min", prop.ForAll(
		func(boundaries []int64, a, b int64) bool {
			d := rangesFromBoundaries(boundaries)

			got, err := Overlaps(d, cmp, cmp, types.Int64Value(a), types.Int64Value(b))
			if err != nil {
				return false
			}

			want := false
			for _, e := range d.Ranges {
				if a < int64FromValue(e.Max) && b > int64FromValue(e.Min) {
					want = true
					break
				}
			}
			return got == want
		},
		gen.SliceOfN(10, gen.Int64Range(-500, 500)),
		gen.Int64Range(-600, 600),
		gen.Int64Range(-600, 600),
	))

	properties.TestingRun(t)
}

func TestProperty_RouteHashModulo(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("index equals hash mod count and stays in range", prop.ForAll(
		func(hash uint32, count uint32) bool {
			if count == 0 {
				count = 1
			}
			idx, err := RouteHash(hash, count)
			if err != nil {
				return false
			}
			return idx == hash%count && idx < count
		},
		gen.UInt32(),
		gen.UInt32Range(0, 1<<16),
	))

	properties.TestingRun(t)
}
