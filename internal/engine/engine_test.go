package engine

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/partwise/partwise/internal/descriptor"
	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/internal/observability"
	"github.com/partwise/partwise/internal/routing"
	"github.com/partwise/partwise/internal/typesys"
	"github.com/partwise/partwise/pkg/types"
)

type fakeSource struct {
	mu    sync.Mutex
	descs map[types.RelationID]*descriptor.Descriptor
}

func (s *fakeSource) LoadDescriptor(_ context.Context, rel types.RelationID) (*descriptor.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.descs[rel]
	if !ok {
		return nil, errors.Newf(errors.ErrCategoryDescriptor, errors.CodeNotPartitioned,
			"relation %s is not partitioned", rel)
	}
	return d.Clone(), nil
}

type fakeDDL struct {
	source *fakeSource
	calls  int
}

func (f *fakeDDL) CreatePartition(_ context.Context, parent types.RelationID, _ types.Value, _ types.TypeID) (types.ChildID, error) {
	f.calls++
	f.source.mu.Lock()
	defer f.source.mu.Unlock()
	d := f.source.descs[parent].Clone()
	d.Ranges = append(d.Ranges, descriptor.RangeEntry{
		ChildID: "events_20",
		Min:     types.Int64Value(20),
		Max:     types.Int64Value(30),
	})
	d.Version++
	f.source.descs[parent] = d
	return "events_20", nil
}

func newTestEngine() (*Engine, *fakeDDL, *observability.RoutingStats) {
	source := &fakeSource{descs: map[types.RelationID]*descriptor.Descriptor{
		"events": {
			Relation: "events",
			Strategy: types.StrategyRange,
			AttrType: types.TypeInt64,
			Ranges: []descriptor.RangeEntry{
				{ChildID: "events_0", Min: types.Int64Value(0), Max: types.Int64Value(10)},
				{ChildID: "events_10", Min: types.Int64Value(10), Max: types.Int64Value(20)},
			},
		},
		"users": {
			Relation:       "users",
			Strategy:       types.StrategyHash,
			AttrType:       types.TypeInt64,
			HashPartitions: 8,
		},
	}}
	ddl := &fakeDDL{source: source}
	stats := observability.NewRoutingStats()
	return New(source, ddl, typesys.NewRegistry(), stats), ddl, stats
}

func TestEngineRouteValue(t *testing.T) {
	e, _, stats := newTestEngine()

	res, err := e.RouteValue(context.Background(), "events", types.Int64Value(5), types.TypeInt64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != routing.OutcomeFound || res.Child != "events_0" {
		t.Errorf("got %+v", res)
	}

	// Out of range is reported, not filled.
	res, err = e.RouteValue(context.Background(), "events", types.Int64Value(25), types.TypeInt64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != routing.OutcomeAboveLast {
		t.Errorf("got %+v", res)
	}

	snap := stats.Snapshot()["events"]
	if snap.Found != 1 || snap.OutOfRange != 1 {
		t.Errorf("stats: %+v", snap)
	}
}

func TestEngineFindOrCreate(t *testing.T) {
	e, ddl, stats := newTestEngine()

	child, err := e.FindOrCreate(context.Background(), "events", types.Int64Value(25), types.TypeInt64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if child != "events_20" || ddl.calls != 1 {
		t.Errorf("child=%s calls=%d", child, ddl.calls)
	}
	if stats.Snapshot()["events"].Created != 1 {
		t.Error("creation should be counted")
	}
}

func TestEngineRouteHash(t *testing.T) {
	e, _, _ := newTestEngine()

	idx, err := e.RouteHash(context.Background(), "users", types.Int64Value(12345), types.TypeInt64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx >= 8 {
		t.Errorf("index %d out of range [0, 8)", idx)
	}

	// Deterministic for the same value.
	idx2, err := e.RouteHash(context.Background(), "users", types.Int64Value(12345), types.TypeInt64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != idx2 {
		t.Errorf("hash routing not deterministic: %d vs %d", idx, idx2)
	}
}

func TestEngineRouteHashWrongStrategy(t *testing.T) {
	e, _, _ := newTestEngine()

	_, err := e.RouteHash(context.Background(), "events", types.Int64Value(1), types.TypeInt64)
	if errors.GetCode(err) != errors.CodeWrongStrategy {
		t.Errorf("want WRONG_STRATEGY, got %v", err)
	}
}

func TestEngineBoundsAndGlobals(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	b, err := e.BoundsOf(ctx, "events", "events_10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(b.Min, types.Int64Value(10)) {
		t.Errorf("bounds min: %x", b.Min)
	}

	b, err = e.BoundsAt(ctx, "events", -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(b.Max, types.Int64Value(20)) {
		t.Errorf("last max: %x", b.Max)
	}

	min, err := e.GlobalMin(ctx, "events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	max, err := e.GlobalMax(ctx, "events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(min, types.Int64Value(0)) || !bytes.Equal(max, types.Int64Value(20)) {
		t.Errorf("globals: [%x, %x)", min, max)
	}
}

func TestEngineOverlaps(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	got, err := e.Overlaps(ctx, "events", types.Int64Value(5), types.TypeInt64, types.Int64Value(15), types.TypeInt64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("[5, 15) should overlap")
	}

	got, err = e.Overlaps(ctx, "events", types.Int64Value(20), types.TypeInt64, types.Int64Value(30), types.TypeInt64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("[20, 30) should not overlap")
	}
}

func TestEngineUnknownRelation(t *testing.T) {
	e, _, _ := newTestEngine()

	_, err := e.RouteValue(context.Background(), "missing", types.Int64Value(1), types.TypeInt64)
	if errors.GetCode(err) != errors.CodeNotPartitioned {
		t.Errorf("want NOT_PARTITIONED, got %v", err)
	}
}
