package types

// Strategy defines how a relation's rows are distributed across partitions.
type Strategy string

const (
	// StrategyRange routes values to child partitions by ordered,
	// non-overlapping half-open intervals [min, max).
	StrategyRange Strategy = "range"

	// StrategyHash routes values by hashing and a fixed modulo rule.
	StrategyHash Strategy = "hash"
)

// RelationID identifies a partitioned parent relation.
type RelationID string

// ChildID identifies one child partition of a relation.
// The zero value means "no partition".
type ChildID string

// CompareFunc is a three-way comparison over encoded values. Both arguments
// must already be coerced to the comparator's target type; the result is
// negative, zero, or positive. Implementations must be transitive and
// consistent with the ordering the relation's ranges were built with.
type CompareFunc func(a, b Value) (int, error)

// HashFunc maps an encoded value to an unsigned 32-bit hash. The mapping is
// part of the data placement contract and must be stable across releases.
type HashFunc func(v Value) (uint32, error)
