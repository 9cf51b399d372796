package assetorigin

import (
	"errors"
	"fmt"

	"github.com/asset-origin/asset-origin/registry"
)

// Errors re-exported from registry.
var (
	// ErrNotFound is returned when an asset or version does not exist.
	ErrNotFound = registry.ErrNotFound

	// ErrConflict is returned when a mutating operation loses the per-asset
	// mutation guard to a concurrent request. Retryable after backoff.
	ErrConflict = registry.ErrConflict

	// ErrInvalidState is returned when an operation is disallowed for the
	// asset's mutability state.
	ErrInvalidState = registry.ErrInvalidState

	// ErrStorageWrite is returned when the blob backend fails. No metadata
	// is recorded in that case.
	ErrStorageWrite = registry.ErrStorageWrite

	// ErrEmptyContent is returned for uploads with no bytes.
	ErrEmptyContent = registry.ErrEmptyContent
)

var (
	// ErrForbidden is returned for private reads without a usable token.
	// The message never reveals whether the token was unknown, expired,
	// revoked, or bound to a different asset.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyPublishing is returned when a publish is requested for an
	// asset that already has one in flight. It matches ErrConflict.
	ErrAlreadyPublishing = fmt.Errorf("%w: publish already in flight", registry.ErrConflict)

	// ErrConsistency is returned when content bytes no longer match the
	// recorded fingerprint during a publish. The operation is aborted with
	// nothing persisted.
	ErrConsistency = errors.New("content fingerprint mismatch")
)
