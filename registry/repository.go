package registry

import (
	"context"
	"time"

	cachepolicy "github.com/asset-origin/asset-origin/pkg/cache-policy"
	"github.com/asset-origin/asset-origin/pkg/fingerprint"
)

// Asset is a logical content item served by the origin.
type Asset struct {
	ID                 string
	FileName           string
	MimeType           string
	SizeBytes          int64
	Visibility         cachepolicy.Visibility
	Mutability         cachepolicy.Mutability
	CurrentFingerprint fingerprint.Fingerprint
	StorageKey         string
	VersionCounter     int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AssetVersion is an immutable snapshot of an asset's content. Once
// recorded, its storage key, fingerprint and number never change, and the
// row is never deleted by normal operation.
type AssetVersion struct {
	AssetID       string
	VersionNumber int64
	StorageKey    string
	Fingerprint   fingerprint.Fingerprint
	SizeBytes     int64
	CreatedAt     time.Time
}

// AccessToken is a capability for one private asset. The token string is
// the external lookup key; there is no separate row id to leak ordering.
type AccessToken struct {
	Token     string
	AssetID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Repository persists assets, their version history, and access tokens.
//
// Implementations must be safe for concurrent use.
type Repository interface {
	InsertAsset(ctx context.Context, a Asset) error
	GetAsset(ctx context.Context, id string) (Asset, error)
	// UpdateAssetContent swaps the asset's content metadata after the bytes
	// have been durably written to the blob store.
	UpdateAssetContent(ctx context.Context, id string, fp fingerprint.Fingerprint, storageKey string, size int64, updatedAt time.Time) error
	DeleteAsset(ctx context.Context, id string) error

	// InsertVersion records the version row and advances the asset's
	// version counter in a single transaction. It fails with ErrConflict if
	// the counter no longer equals v.VersionNumber-1.
	InsertVersion(ctx context.Context, v AssetVersion) error
	GetVersion(ctx context.Context, assetID string, number int64) (AssetVersion, error)
	ListVersions(ctx context.Context, assetID string) ([]AssetVersion, error)

	// InsertToken fails with ErrConflict if the token string is already
	// taken.
	InsertToken(ctx context.Context, t AccessToken) error
	GetToken(ctx context.Context, token string) (AccessToken, error)
	// RevokeToken is idempotent; revoking an unknown token is a no-op.
	RevokeToken(ctx context.Context, token string) error
	// DeleteTokensExpiredBefore removes token rows whose expiry is before
	// cutoff and reports how many were deleted.
	DeleteTokensExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
