package routing

import (
	"github.com/partwise/partwise/internal/errors"
)

// RouteHash maps a hash value to a partition index by unsigned modulo, so
// the result is always in [0, partitionCount). The rule is an on-disk
// layout contract: existing data placement depends on it, and changing it
// without a migration corrupts hash-partitioned relations.
func RouteHash(hash, partitionCount uint32) (uint32, error) {
	if partitionCount == 0 {
		return 0, errors.NewRoutingError(errors.CodeInvalidPartitionCount,
			"partition count must be greater than zero")
	}
	return hash % partitionCount, nil
}
