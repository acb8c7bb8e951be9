package typesys

import (
	"github.com/spaolacci/murmur3"

	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/pkg/types"
)

// Built-in hash functions. All of them feed the raw value encoding through
// murmur3 with a zero seed. The resulting buckets are part of the on-disk
// placement contract for hash-partitioned relations; the seed and algorithm
// must never change without a data migration.

// hashFixed8 hashes an 8-byte encoded value (int64, float64, timestamp).
func hashFixed8(v types.Value) (uint32, error) {
	if len(v) != 8 {
		return 0, errors.Newf(errors.ErrCategoryTypes, errors.CodeBadEncoding,
			"fixed-width value must be 8 bytes, got %d", len(v))
	}
	return murmur3.Sum32(v), nil
}

// hashBytes hashes a variable-length encoded value (text).
func hashBytes(v types.Value) (uint32, error) {
	return murmur3.Sum32(v), nil
}
