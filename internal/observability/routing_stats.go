// Package observability provides routing statistics tracking for capacity
// planning and monitoring of partition churn.
package observability

import (
	"sync"
	"time"

	"github.com/partwise/partwise/pkg/types"
)

// RoutingStats tracks per-relation routing outcomes. All record methods are
// O(1) and thread-safe; the engine calls them on every routed value.
type RoutingStats struct {
	mu        sync.RWMutex
	relations map[types.RelationID]*RelationStats
}

// RelationStats holds counters for one relation.
type RelationStats struct {
	Relation   types.RelationID
	Found      int64
	Gaps       int64
	OutOfRange int64
	Created    int64
	Errors     int64
	LastRouted time.Time
}

// NewRoutingStats creates an empty tracker.
func NewRoutingStats() *RoutingStats {
	return &RoutingStats{relations: make(map[types.RelationID]*RelationStats)}
}

// RecordFound counts a routed value whose owner already existed.
func (s *RoutingStats) RecordFound(rel types.RelationID) {
	s.record(rel, func(r *RelationStats) { r.Found++ })
}

// RecordGap counts a value that fell between registered ranges.
func (s *RoutingStats) RecordGap(rel types.RelationID) {
	s.record(rel, func(r *RelationStats) { r.Gaps++ })
}

// RecordOutOfRange counts a value below the first or above the last range.
func (s *RoutingStats) RecordOutOfRange(rel types.RelationID) {
	s.record(rel, func(r *RelationStats) { r.OutOfRange++ })
}

// RecordCreation counts a lazily materialized partition.
func (s *RoutingStats) RecordCreation(rel types.RelationID) {
	s.record(rel, func(r *RelationStats) { r.Created++ })
}

// RecordError counts a failed routing call.
func (s *RoutingStats) RecordError(rel types.RelationID) {
	s.record(rel, func(r *RelationStats) { r.Errors++ })
}

func (s *RoutingStats) record(rel types.RelationID, update func(*RelationStats)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.relations[rel]
	if !ok {
		stats = &RelationStats{Relation: rel}
		s.relations[rel] = stats
	}
	update(stats)
	stats.LastRouted = time.Now()
}

// Snapshot returns a copy of all per-relation counters.
func (s *RoutingStats) Snapshot() map[types.RelationID]RelationStats {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[types.RelationID]RelationStats, len(s.relations))
	for rel, stats := range s.relations {
		out[rel] = *stats
	}
	return out
}

// Reset clears all counters.
func (s *RoutingStats) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations = make(map[types.RelationID]*RelationStats)
}
