package routing

import (
	"testing"

	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/internal/typesys"
	"github.com/partwise/partwise/pkg/types"
)

// testDescriptor builds the canonical fixture: [0,10), [10,20), [30,40)
// with a gap between 20 and 30.
func testDescriptor() *descriptor.Descriptor {
	return &descriptor.Descriptor{
		Relation: "events",
		Strategy: types.StrategyRange,
		AttrType: types.TypeInt64,
		Ranges: []descriptor.RangeEntry{
			{ChildID: "events_0", Min: types.Int64Value(0), Max: types.Int64Value(10)},
			{ChildID: "events_1", Min: types.Int64Value(10), Max: types.Int64Value(20)},
			{ChildID: "events_2", Min: types.Int64Value(30), Max: types.Int64Value(40)},
		},
	}
}

func int64Cmp(t *testing.T) types.CompareFunc {
	t.Helper()
	cmp, err := typesys.NewRegistry().LookupComparator(types.TypeInt64, types.TypeInt64)
	if err != nil {
		t.Fatalf("lookup comparator: %v", err)
	}
	return cmp
}

func TestFindOwner(t *testing.T) {
	d := testDescriptor()
	cmp := int64Cmp(t)

	tests := []struct {
		name    string
		value   int64
		outcome Outcome
		child   types.ChildID
		lower   int
		upper   int
	}{
		{"inside first", 5, OutcomeFound, "events_0", 0, 0},
		{"inside second", 15, OutcomeFound, "events_1", 0, 0},
		{"min is inclusive", 10, OutcomeFound, "events_1", 0, 0},
		{"first min inclusive", 0, OutcomeFound, "events_0", 0, 0},
		{"max exclusive rolls to next", 20, OutcomeGap, "", 1, 2},
		{"inside gap", 25, OutcomeGap, "", 1, 2},
		{"just below gap upper", 29, OutcomeGap, "", 1, 2},
		{"gap upper min inclusive", 30, OutcomeFound, "events_2", 0, 0},
		{"below first", -5, OutcomeBelowFirst, "", 0, 0},
		{"last max exclusive", 40, OutcomeAboveLast, "", 0, 0},
		{"above last", 45, OutcomeAboveLast, "", 0, 0},
	}

	for _, tt := range tests {
		res, err := FindOwner(d, cmp, types.Int64Value(tt.value))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if res.Outcome != tt.outcome {
			t.Errorf("%s: outcome got %d, want %d", tt.name, res.Outcome, tt.outcome)
			continue
		}
		if tt.outcome == OutcomeFound && res.Child != tt.child {
			t.Errorf("%s: child got %s, want %s", tt.name, res.Child, tt.child)
		}
		if tt.outcome == OutcomeGap && (res.Lower != tt.lower || res.Upper != tt.upper) {
			t.Errorf("%s: gap got (%d,%d), want (%d,%d)", tt.name, res.Lower, res.Upper, tt.lower, tt.upper)
		}
	}
}

func TestFindOwnerContiguousBoundary(t *testing.T) {
	d := testDescriptor()
	cmp := int64Cmp(t)

	// 10 == ranges[0].Max == ranges[1].Min: owned by the next entry.
	res, err := FindOwner(d, cmp, types.Int64Value(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeFound || res.Child != "events_1" {
		t.Errorf("boundary value should belong to next entry, got %+v", res)
	}
}

func TestFindOwnerSingleRange(t *testing.T) {
	d := &descriptor.Descriptor{
		Relation: "events",
		Strategy: types.StrategyRange,
		AttrType: types.TypeInt64,
		Ranges: []descriptor.RangeEntry{
			{ChildID: "only", Min: types.Int64Value(100), Max: types.Int64Value(200)},
		},
	}
	cmp := int64Cmp(t)

	res, _ := FindOwner(d, cmp, types.Int64Value(150))
	if res.Outcome != OutcomeFound || res.Child != "only" {
		t.Errorf("got %+v", res)
	}

	res, _ = FindOwner(d, cmp, types.Int64Value(99))
	if res.Outcome != OutcomeBelowFirst {
		t.Errorf("want below first, got %+v", res)
	}

	res, _ = FindOwner(d, cmp, types.Int64Value(200))
	if res.Outcome != OutcomeAboveLast {
		t.Errorf("want above last, got %+v", res)
	}
}

func TestFindOwnerWrongStrategy(t *testing.T) {
	d := &descriptor.Descriptor{
		Relation:       "users",
		Strategy:       types.StrategyHash,
		AttrType:       types.TypeInt64,
		HashPartitions: 4,
	}
	_, err := FindOwner(d, int64Cmp(t), types.Int64Value(1))
	if errors.GetCode(err) != errors.CodeWrongStrategy {
		t.Errorf("want WRONG_STRATEGY, got %v", err)
	}
}

func TestFindOwnerEmptySet(t *testing.T) {
	d := &descriptor.Descriptor{
		Relation: "events",
		Strategy: types.StrategyRange,
		AttrType: types.TypeInt64,
	}
	_, err := FindOwner(d, int64Cmp(t), types.Int64Value(1))
	if errors.GetCode(err) != errors.CodeEmptyPartitionSet {
		t.Errorf("want EMPTY_PARTITION_SET, got %v", err)
	}
}

func TestFindOwnerCrossTypeValue(t *testing.T) {
	d := testDescriptor()
	reg := typesys.NewRegistry()
	cmp, err := reg.LookupComparator(types.TypeFloat64, types.TypeInt64)
	if err != nil {
		t.Fatalf("lookup comparator: %v", err)
	}

	// 15.5 routes into [10, 20) through the float64→int64 coercion path.
	res, err := FindOwner(d, cmp, types.Float64Value(15.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeFound || res.Child != "events_1" {
		t.Errorf("got %+v", res)
	}
}

func TestOverlaps(t *testing.T) {
	d := testDescriptor()
	cmp := int64Cmp(t)

	tests := []struct {
		name     string
		min, max int64
		want     bool
	}{
		{"intersects first two", 5, 15, true},
		{"exactly fills the gap", 20, 30, false},
		{"inside gap", 22, 28, false},
		{"covers everything", -100, 100, true},
		{"touches last min only", 25, 31, true},
		{"entirely below", -10, 0, false},
		{"entirely above", 40, 50, false},
		{"abuts first range", -10, 1, true},
	}

	for _, tt := range tests {
		got, err := Overlaps(d, cmp, cmp, types.Int64Value(tt.min), types.Int64Value(tt.max))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestOverlapsWrongStrategy(t *testing.T) {
	d := &descriptor.Descriptor{Relation: "users", Strategy: types.StrategyHash, HashPartitions: 2}
	cmp := int64Cmp(t)
	_, err := Overlaps(d, cmp, cmp, types.Int64Value(0), types.Int64Value(1))
	if errors.GetCode(err) != errors.CodeWrongStrategy {
		t.Errorf("want WRONG_STRATEGY, got %v", err)
	}
}

func TestOverlapsMixedProbeTypes(t *testing.T) {
	d := testDescriptor()
	reg := typesys.NewRegistry()

	cmpMin, err := reg.LookupComparator(types.TypeFloat64, types.TypeInt64)
	if err != nil {
		t.Fatalf("lookup comparator: %v", err)
	}
	cmpMax, err := reg.LookupComparator(types.TypeInt64, types.TypeInt64)
	if err != nil {
		t.Fatalf("lookup comparator: %v", err)
	}

	// Probe [9.5, 12) with a float min and an int max.
	got, err := Overlaps(d, cmpMin, cmpMax, types.Float64Value(9.5), types.Int64Value(12))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("probe [9.5, 12) should overlap [0,10) and [10,20)")
	}
}
