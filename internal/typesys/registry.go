// Package typesys resolves comparators and hash functions for the encoded
// value types the routing engine operates on. The engine itself never
// interprets value bytes; it receives capabilities looked up here.
package typesys

import (
	"bytes"
	"sync"

	"github.com/partwise/partwise/internal/errors"
	"github.com/partwise/partwise/pkg/types"
)

// TypeSpec describes one registered value type.
type TypeSpec struct {
	// Compare orders two values of this type.
	Compare types.CompareFunc

	// Hash maps a value of this type to a 32-bit hash. Optional.
	Hash types.HashFunc

	// ToFloat converts a value to float64 for cross-type numeric
	// comparison. Nil for non-numeric types.
	ToFloat func(v types.Value) (float64, error)
}

// Registry holds the known value types. It is safe for concurrent use;
// lookups on the routing hot path take only a read lock.
type Registry struct {
	mu    sync.RWMutex
	specs map[types.TypeID]TypeSpec
}

// NewRegistry creates a registry pre-populated with the built-in types
// (int64, float64, timestamp, text).
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[types.TypeID]TypeSpec)}
	r.Register(types.TypeInt64, TypeSpec{
		Compare: compareInt64,
		Hash:    hashFixed8,
		ToFloat: int64ToFloat,
	})
	r.Register(types.TypeFloat64, TypeSpec{
		Compare: compareFloat64,
		Hash:    hashFixed8,
		ToFloat: float64ToFloat,
	})
	r.Register(types.TypeTimestamp, TypeSpec{
		Compare: compareInt64,
		Hash:    hashFixed8,
	})
	r.Register(types.TypeText, TypeSpec{
		Compare: compareText,
		Hash:    hashBytes,
	})
	return r
}

// Register adds or replaces a type. Replacing a type that already routed
// data changes the placement contract; callers own that migration.
func (r *Registry) Register(id types.TypeID, spec TypeSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[id] = spec
}

// LookupComparator returns a comparator for a left operand of type aType
// against a right operand of type bType. Same-type lookups use the type's
// own ordering; cross-type lookups require a numeric coercion path on both
// sides and otherwise fail with INCOMPATIBLE_TYPES.
func (r *Registry) LookupComparator(aType, bType types.TypeID) (types.CompareFunc, error) {
	r.mu.RLock()
	a, aok := r.specs[aType]
	b, bok := r.specs[bType]
	r.mu.RUnlock()

	if !aok {
		return nil, errors.NewTypesError(errors.CodeNoComparator,
			"no comparator registered for type "+string(aType))
	}
	if !bok {
		return nil, errors.NewTypesError(errors.CodeNoComparator,
			"no comparator registered for type "+string(bType))
	}

	if aType == bType {
		return a.Compare, nil
	}

	if a.ToFloat != nil && b.ToFloat != nil {
		return func(x, y types.Value) (int, error) {
			fx, err := a.ToFloat(x)
			if err != nil {
				return 0, err
			}
			fy, err := b.ToFloat(y)
			if err != nil {
				return 0, err
			}
			return compareFloats(fx, fy), nil
		}, nil
	}

	return nil, errors.NewTypesError(errors.CodeIncompatibleTypes,
		"no coercion path between "+string(aType)+" and "+string(bType))
}

// Compare orders two encoded values of possibly different types.
func (r *Registry) Compare(a types.Value, aType types.TypeID, b types.Value, bType types.TypeID) (int, error) {
	cmp, err := r.LookupComparator(aType, bType)
	if err != nil {
		return 0, err
	}
	return cmp(a, b)
}

// LookupHashFunc returns the hash function for a type.
func (r *Registry) LookupHashFunc(id types.TypeID) (types.HashFunc, error) {
	r.mu.RLock()
	spec, ok := r.specs[id]
	r.mu.RUnlock()

	if !ok || spec.Hash == nil {
		return nil, errors.NewTypesError(errors.CodeNoHashFunction,
			"no hash function registered for type "+string(id))
	}
	return spec.Hash, nil
}

// Built-in codecs. int64 and timestamp share an 8-byte big-endian
// two's complement encoding; float64 stores its IEEE-754 bit pattern.

func decodeInt64(v types.Value) (int64, error) {
	x, ok := types.DecodeInt64(v)
	if !ok {
		return 0, errors.Newf(errors.ErrCategoryTypes, errors.CodeBadEncoding,
			"int64 value must be 8 bytes, got %d", len(v))
	}
	return x, nil
}

func decodeFloat64(v types.Value) (float64, error) {
	x, ok := types.DecodeFloat64(v)
	if !ok {
		return 0, errors.Newf(errors.ErrCategoryTypes, errors.CodeBadEncoding,
			"float64 value must be 8 bytes, got %d", len(v))
	}
	return x, nil
}

func compareInt64(a, b types.Value) (int, error) {
	x, err := decodeInt64(a)
	if err != nil {
		return 0, err
	}
	y, err := decodeInt64(b)
	if err != nil {
		return 0, err
	}
	switch {
	case x < y:
		return -1, nil
	case x > y:
		return 1, nil
	default:
		return 0, nil
	}
}

func compareFloat64(a, b types.Value) (int, error) {
	x, err := decodeFloat64(a)
	if err != nil {
		return 0, err
	}
	y, err := decodeFloat64(b)
	if err != nil {
		return 0, err
	}
	return compareFloats(x, y), nil
}

func compareText(a, b types.Value) (int, error) {
	return bytes.Compare(a, b), nil
}

func compareFloats(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func int64ToFloat(v types.Value) (float64, error) {
	x, err := decodeInt64(v)
	if err != nil {
		return 0, err
	}
	return float64(x), nil
}

func float64ToFloat(v types.Value) (float64, error) {
	return decodeFloat64(v)
}
