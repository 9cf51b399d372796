// Package blob stores asset content as opaque byte objects addressed by
// storage keys.
package blob

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when no object exists under a storage key.
	ErrNotFound = errors.New("blob: object not found")
	// ErrExists is returned when writing to a key that must never be
	// overwritten, such as a published version object.
	ErrExists = errors.New("blob: object already exists")
)

// Store persists content bytes under opaque keys.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put writes the object under key, replacing any existing object.
	Put(ctx context.Context, key string, content []byte) error
	// PutNew writes the object under key and fails with ErrExists if an
	// object is already present. Used for permanent version objects.
	PutNew(ctx context.Context, key string, content []byte) error
	// Get opens the object stored under key for reading.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object under key. Deleting a missing object is
	// not an error.
	Delete(ctx context.Context, key string) error
}
