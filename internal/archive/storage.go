// Package archive exports catalog snapshots to object storage, so routing
// metadata can be inspected, backed up, and restored independently of the
// catalog database.
package archive

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrPutFailed      = errors.New("put failed")
	ErrGetFailed      = errors.New("get failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStore abstracts the object storage a snapshot archive lives in.
// Implementations include S3 and an in-memory store for testing. Snapshots
// are small, so the interface moves whole byte slices rather than files.
type ObjectStore interface {
	// Put writes an object, replacing any existing one at that key.
	Put(ctx context.Context, key string, data []byte) error

	// Get reads an object. Returns ErrObjectNotFound for missing keys.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is present.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
