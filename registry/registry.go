// Package registry owns asset identity and immutable version history.
//
// Every content write goes to the blob store before any metadata row is
// touched, so a stored fingerprint always matches the bytes under its
// storage key. The reverse ordering (record, then write) is never used.
package registry

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/asset-origin/asset-origin/blob"
	cachepolicy "github.com/asset-origin/asset-origin/pkg/cache-policy"
	"github.com/asset-origin/asset-origin/pkg/clock"
	"github.com/asset-origin/asset-origin/pkg/fingerprint"
	keyedlock "github.com/asset-origin/asset-origin/pkg/keyed-lock"
)

const defaultMimeType = "application/octet-stream"

// Registry is the asset registry service.
type Registry struct {
	repo                     Repository
	blobs                    *blob.Retrier
	locks                    *keyedlock.Table
	clock                    clock.Clock
	log                      zerolog.Logger
	allowReplaceAfterPublish bool
}

// Config wires a Registry.
type Config struct {
	Repository Repository
	Blobs      *blob.Retrier
	// Locks is the per-asset mutation guard, shared with the publish
	// coordinator so that replace and publish exclude each other.
	Locks  *keyedlock.Table
	Clock  clock.Clock
	Logger zerolog.Logger
	// AllowReplaceAfterPublish permits replacing latest-content assets that
	// already have published versions. Versioned assets reject replacement
	// after the first publish regardless.
	AllowReplaceAfterPublish bool
}

func New(config Config) *Registry {
	clk := config.Clock
	if clk == nil {
		clk = clock.System()
	}
	locks := config.Locks
	if locks == nil {
		locks = keyedlock.New()
	}
	return &Registry{
		repo:                     config.Repository,
		blobs:                    config.Blobs,
		locks:                    locks,
		clock:                    clk,
		log:                      config.Logger,
		allowReplaceAfterPublish: config.AllowReplaceAfterPublish,
	}
}

// CreateOptions describe a new asset.
type CreateOptions struct {
	FileName   string
	MimeType   string
	Visibility cachepolicy.Visibility
	Mutability cachepolicy.Mutability
}

// Create fingerprints the content, persists it to the blob store under a
// fresh storage key, and inserts the asset row with a zero version counter.
// On a storage failure no row is created.
func (r *Registry) Create(ctx context.Context, content []byte, opts CreateOptions) (Asset, error) {
	if len(content) == 0 {
		return Asset{}, ErrEmptyContent
	}
	if opts.MimeType == "" {
		opts.MimeType = defaultMimeType
	}
	if opts.Visibility == "" {
		opts.Visibility = cachepolicy.Private
	}
	if opts.Mutability == "" {
		opts.Mutability = cachepolicy.MutableLatest
	}

	fp := fingerprint.FromBytes(content)
	key := "assets/" + uuid.NewString()
	if err := r.blobs.Put(ctx, key, content, fp); err != nil {
		return Asset{}, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	now := r.clock.Now()
	a := Asset{
		ID:                 uuid.NewString(),
		FileName:           opts.FileName,
		MimeType:           opts.MimeType,
		SizeBytes:          int64(len(content)),
		Visibility:         opts.Visibility,
		Mutability:         opts.Mutability,
		CurrentFingerprint: fp,
		StorageKey:         key,
		VersionCounter:     0,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := r.repo.InsertAsset(ctx, a); err != nil {
		return Asset{}, err
	}
	r.log.Debug().
		Str("asset", a.ID).
		Str("fingerprint", fp.String()).
		Int64("size", a.SizeBytes).
		Str("visibility", string(a.Visibility)).
		Msg("Asset created")
	return a, nil
}

// Get returns the asset's current metadata.
func (r *Registry) Get(ctx context.Context, id string) (Asset, error) {
	return r.repo.GetAsset(ctx, id)
}

// CurrentFingerprint returns the stored validator for the asset. This is a
// plain row read; content is never re-hashed here.
func (r *Registry) CurrentFingerprint(ctx context.Context, id string) (fingerprint.Fingerprint, error) {
	a, err := r.repo.GetAsset(ctx, id)
	if err != nil {
		return "", err
	}
	return a.CurrentFingerprint, nil
}

// ReplaceContent swaps the asset's current content. The new bytes are
// written to the blob store first; only then is the metadata updated.
// Concurrent mutations of the same asset fail fast with ErrConflict.
func (r *Registry) ReplaceContent(ctx context.Context, id string, content []byte) (Asset, error) {
	if len(content) == 0 {
		return Asset{}, ErrEmptyContent
	}
	if !r.locks.TryLock(id) {
		return Asset{}, fmt.Errorf("%w: mutation in flight for asset %s", ErrConflict, id)
	}
	defer r.locks.Unlock(id)

	a, err := r.repo.GetAsset(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	if a.VersionCounter > 0 {
		if a.Mutability == cachepolicy.ImmutableVersioned {
			return Asset{}, fmt.Errorf("%w: published versioned assets are immutable", ErrInvalidState)
		}
		if !r.allowReplaceAfterPublish {
			return Asset{}, fmt.Errorf("%w: replace after publish is disabled", ErrInvalidState)
		}
	}

	fp := fingerprint.FromBytes(content)
	if err := r.blobs.Put(ctx, a.StorageKey, content, fp); err != nil {
		return Asset{}, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	now := r.clock.Now()
	if err := r.repo.UpdateAssetContent(ctx, id, fp, a.StorageKey, int64(len(content)), now); err != nil {
		return Asset{}, err
	}
	a.CurrentFingerprint = fp
	a.SizeBytes = int64(len(content))
	a.UpdatedAt = now
	r.log.Debug().
		Str("asset", id).
		Str("fingerprint", fp.String()).
		Int64("size", a.SizeBytes).
		Msg("Asset content replaced")
	return a, nil
}

// Delete removes the asset row and its current content object. Version
// history rows stay (append-only), and any issued tokens become invalid
// because validation re-resolves the asset.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if !r.locks.TryLock(id) {
		return fmt.Errorf("%w: mutation in flight for asset %s", ErrConflict, id)
	}
	defer r.locks.Unlock(id)

	a, err := r.repo.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	if err := r.repo.DeleteAsset(ctx, id); err != nil {
		return err
	}
	if err := r.blobs.Delete(ctx, a.StorageKey); err != nil {
		// metadata is gone, the orphaned object is harmless
		r.log.Warn().Err(err).Str("asset", id).Msg("Could not delete content object")
	}
	r.log.Debug().Str("asset", id).Msg("Asset deleted")
	return nil
}

// Open streams the asset's current content from the blob store.
func (r *Registry) Open(ctx context.Context, a Asset) (io.ReadCloser, error) {
	return r.blobs.Get(ctx, a.StorageKey)
}

// OpenVersion streams a published version's content.
func (r *Registry) OpenVersion(ctx context.Context, v AssetVersion) (io.ReadCloser, error) {
	return r.blobs.Get(ctx, v.StorageKey)
}

// Version returns the metadata of one published version.
func (r *Registry) Version(ctx context.Context, assetID string, number int64) (AssetVersion, error) {
	return r.repo.GetVersion(ctx, assetID, number)
}

// Versions lists all published versions of the asset in order.
func (r *Registry) Versions(ctx context.Context, assetID string) ([]AssetVersion, error) {
	return r.repo.ListVersions(ctx, assetID)
}

// VersionStorageKey returns the permanent storage key for a version of the
// given asset. Version objects are never overwritten or reused.
func VersionStorageKey(assetID string, number int64) string {
	return fmt.Sprintf("versions/%s/v%d", assetID, number)
}
