package registry

import "errors"

var (
	// ErrNotFound is returned when an asset, version or token row does not
	// exist.
	ErrNotFound = errors.New("registry: not found")
	// ErrConflict is returned when a mutating operation loses the per-asset
	// mutation guard to a concurrent request, or when an optimistic write
	// detects concurrent modification. Retryable by the caller after
	// backoff.
	ErrConflict = errors.New("registry: conflict")
	// ErrInvalidState is returned when an operation is disallowed for the
	// asset's current mutability state.
	ErrInvalidState = errors.New("registry: invalid state")
	// ErrStorageWrite is returned when the blob backend fails. No metadata
	// row is written in that case.
	ErrStorageWrite = errors.New("registry: storage write failed")
	// ErrEmptyContent is returned for uploads with no bytes.
	ErrEmptyContent = errors.New("registry: empty content")
)
