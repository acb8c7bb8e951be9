package observability

import (
	"sync"
	"testing"
)

func TestRecordAndSnapshot(t *testing.T) {
	s := NewRoutingStats()

	s.RecordFound("events")
	s.RecordFound("events")
	s.RecordGap("events")
	s.RecordOutOfRange("events")
	s.RecordCreation("events")
	s.RecordError("users")

	snap := s.Snapshot()

	ev := snap["events"]
	if ev.Found != 2 || ev.Gaps != 1 || ev.OutOfRange != 1 || ev.Created != 1 {
		t.Errorf("events counters wrong: %+v", ev)
	}
	if ev.LastRouted.IsZero() {
		t.Error("LastRouted should be set")
	}
	if snap["users"].Errors != 1 {
		t.Errorf("users errors: got %d, want 1", snap["users"].Errors)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := NewRoutingStats()
	s.RecordFound("events")

	snap := s.Snapshot()
	snap["events"] = RelationStats{Found: 99}

	if s.Snapshot()["events"].Found != 1 {
		t.Error("mutating a snapshot must not affect the tracker")
	}
}

func TestConcurrentRecording(t *testing.T) {
	s := NewRoutingStats()

	const workers = 16
	const perWorker = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.RecordFound("events")
			}
		}()
	}
	wg.Wait()

	if got := s.Snapshot()["events"].Found; got != workers*perWorker {
		t.Errorf("got %d, want %d", got, workers*perWorker)
	}
}

func TestReset(t *testing.T) {
	s := NewRoutingStats()
	s.RecordFound("events")
	s.Reset()

	if len(s.Snapshot()) != 0 {
		t.Error("reset should clear all counters")
	}
}

func TestNilTrackerIsSafe(t *testing.T) {
	var s *RoutingStats
	s.RecordFound("events")
	s.RecordCreation("events")
	if s.Snapshot() != nil {
		t.Error("nil tracker snapshot should be nil")
	}
}
