package assetorigin

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/asset-origin/asset-origin/pkg/fingerprint"
	"github.com/asset-origin/asset-origin/registry"
)

const purgeTimeout = 10 * time.Second

// Publish promotes the asset's current content into an immutable version.
//
// The content is copied to a permanent storage key scoped by asset and
// version number, verified against the asset's recorded fingerprint, and
// recorded together with the counter increment in one transaction. At most
// one publish (or any other mutation) per asset runs at a time; a
// concurrent request fails fast with ErrAlreadyPublishing.
func (o *Origin) Publish(ctx context.Context, assetID string) (registry.AssetVersion, error) {
	if !o.locks.TryLock(assetID) {
		return registry.AssetVersion{}, fmt.Errorf("%w: asset %s", ErrAlreadyPublishing, assetID)
	}
	defer o.locks.Unlock(assetID)

	a, err := o.registry.Get(ctx, assetID)
	if err != nil {
		return registry.AssetVersion{}, err
	}
	number := a.VersionCounter + 1

	rc, err := o.registry.Open(ctx, a)
	if err != nil {
		return registry.AssetVersion{}, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return registry.AssetVersion{}, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	// The bytes being copied must still match the recorded fingerprint.
	// A mismatch means metadata and blob store disagree; abort with
	// nothing persisted.
	fp := fingerprint.FromBytes(content)
	if fp != a.CurrentFingerprint {
		o.log.Error().
			Str("asset", assetID).
			Str("recorded", a.CurrentFingerprint.String()).
			Str("actual", fp.String()).
			Msg("Fingerprint mismatch during publish")
		return registry.AssetVersion{}, fmt.Errorf("%w: asset %s", ErrConsistency, assetID)
	}

	key := registry.VersionStorageKey(assetID, number)
	if err := o.blobs.PutNew(ctx, key, content, fp); err != nil {
		return registry.AssetVersion{}, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	v := registry.AssetVersion{
		AssetID:       assetID,
		VersionNumber: number,
		StorageKey:    key,
		Fingerprint:   fp,
		SizeBytes:     int64(len(content)),
		CreatedAt:     o.clock.Now(),
	}
	if err := o.repo.InsertVersion(ctx, v); err != nil {
		// a failed record leaves nothing behind; the copied object is
		// removed so the version key stays free for a retry
		_ = o.blobs.Delete(ctx, key)
		return registry.AssetVersion{}, err
	}

	o.log.Info().
		Str("asset", assetID).
		Int64("version", number).
		Str("fingerprint", fp.String()).
		Msg("Published version")

	// only the mutable latest URL needs purging; the versioned URL is
	// permanent and never changes
	go o.purgeLatest(assetID)

	return v, nil
}

func (o *Origin) purgeLatest(assetID string) {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()
	url := o.baseURL + "/assets/" + assetID
	if err := o.purger.Purge(ctx, []string{url}); err != nil {
		o.log.Warn().Err(err).Str("asset", assetID).Msg("Could not signal CDN purge")
	}
}

// VersionURL returns the externally visible URL of a published version.
func (o *Origin) VersionURL(v registry.AssetVersion) string {
	return fmt.Sprintf("%s/assets/%s/versions/%d", o.baseURL, v.AssetID, v.VersionNumber)
}
