package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachepolicy "github.com/asset-origin/asset-origin/pkg/cache-policy"
	"github.com/asset-origin/asset-origin/pkg/fingerprint"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(t.TempDir() + "/meta.db")
	require.NoError(t, err)
	return repo
}

func testAsset(id string) Asset {
	now := time.Now().Truncate(time.Second)
	return Asset{
		ID:                 id,
		FileName:           "report.pdf",
		MimeType:           "application/pdf",
		SizeBytes:          42,
		Visibility:         cachepolicy.Public,
		Mutability:         cachepolicy.MutableLatest,
		CurrentFingerprint: fingerprint.FromBytes([]byte(id)),
		StorageKey:         "assets/" + id,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestAssetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := testAsset("asset-1")
	require.NoError(t, repo.InsertAsset(ctx, want))

	got, err := repo.GetAsset(ctx, "asset-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.CurrentFingerprint, got.CurrentFingerprint)
	assert.Equal(t, want.Visibility, got.Visibility)
	assert.Equal(t, want.Mutability, got.Mutability)
	assert.Equal(t, want.StorageKey, got.StorageKey)
	assert.Equal(t, int64(0), got.VersionCounter)
	assert.Equal(t, want.CreatedAt.Unix(), got.CreatedAt.Unix())
}

func TestGetAssetMissing(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetAsset(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAssetContent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.InsertAsset(ctx, testAsset("asset-1")))

	newFP := fingerprint.FromBytes([]byte("new content"))
	updatedAt := time.Now().Add(time.Minute)
	require.NoError(t, repo.UpdateAssetContent(ctx, "asset-1", newFP, "assets/asset-1", 11, updatedAt))

	got, err := repo.GetAsset(ctx, "asset-1")
	require.NoError(t, err)
	assert.Equal(t, newFP, got.CurrentFingerprint)
	assert.Equal(t, int64(11), got.SizeBytes)
	assert.Equal(t, updatedAt.Unix(), got.UpdatedAt.Unix())

	err = repo.UpdateAssetContent(ctx, "nope", newFP, "assets/nope", 1, updatedAt)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertVersionAdvancesCounter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := testAsset("asset-1")
	require.NoError(t, repo.InsertAsset(ctx, a))

	v1 := AssetVersion{
		AssetID:       a.ID,
		VersionNumber: 1,
		StorageKey:    VersionStorageKey(a.ID, 1),
		Fingerprint:   a.CurrentFingerprint,
		SizeBytes:     a.SizeBytes,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, repo.InsertVersion(ctx, v1))

	got, err := repo.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.VersionCounter)

	v2 := v1
	v2.VersionNumber = 2
	v2.StorageKey = VersionStorageKey(a.ID, 2)
	require.NoError(t, repo.InsertVersion(ctx, v2))

	versions, err := repo.ListVersions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, int64(1), versions[0].VersionNumber)
	assert.Equal(t, int64(2), versions[1].VersionNumber)
}

func TestInsertVersionDetectsCounterMove(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := testAsset("asset-1")
	require.NoError(t, repo.InsertAsset(ctx, a))

	v := AssetVersion{
		AssetID:       a.ID,
		VersionNumber: 2, // counter is still 0, so this must fail
		StorageKey:    VersionStorageKey(a.ID, 2),
		Fingerprint:   a.CurrentFingerprint,
		CreatedAt:     time.Now(),
	}
	err := repo.InsertVersion(ctx, v)
	assert.ErrorIs(t, err, ErrConflict)

	// nothing persisted: counter untouched, no version row
	got, err := repo.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.VersionCounter)
	versions, err := repo.ListVersions(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestGetVersion(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := testAsset("asset-1")
	require.NoError(t, repo.InsertAsset(ctx, a))

	want := AssetVersion{
		AssetID:       a.ID,
		VersionNumber: 1,
		StorageKey:    VersionStorageKey(a.ID, 1),
		Fingerprint:   a.CurrentFingerprint,
		SizeBytes:     a.SizeBytes,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, repo.InsertVersion(ctx, want))

	got, err := repo.GetVersion(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, want.StorageKey, got.StorageKey)
	assert.Equal(t, want.Fingerprint, got.Fingerprint)

	_, err = repo.GetVersion(ctx, a.ID, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	tok := AccessToken{
		Token:     "tok-abc",
		AssetID:   "asset-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, repo.InsertToken(ctx, tok))

	got, err := repo.GetToken(ctx, "tok-abc")
	require.NoError(t, err)
	assert.Equal(t, "asset-1", got.AssetID)
	assert.False(t, got.Revoked)
	assert.Equal(t, tok.ExpiresAt.Unix(), got.ExpiresAt.Unix())
}

func TestInsertTokenDetectsCollision(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	tok := AccessToken{Token: "tok-abc", AssetID: "asset-1", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.InsertToken(ctx, tok))

	err := repo.InsertToken(ctx, tok)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRevokeTokenIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	tok := AccessToken{Token: "tok-abc", AssetID: "asset-1", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.InsertToken(ctx, tok))

	require.NoError(t, repo.RevokeToken(ctx, "tok-abc"))
	require.NoError(t, repo.RevokeToken(ctx, "tok-abc"))
	require.NoError(t, repo.RevokeToken(ctx, "never-issued"))

	got, err := repo.GetToken(ctx, "tok-abc")
	require.NoError(t, err)
	assert.True(t, got.Revoked)
}

func TestDeleteTokensExpiredBefore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	old := AccessToken{Token: "tok-old", AssetID: "a", IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	fresh := AccessToken{Token: "tok-fresh", AssetID: "a", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.InsertToken(ctx, old))
	require.NoError(t, repo.InsertToken(ctx, fresh))

	n, err := repo.DeleteTokensExpiredBefore(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetToken(ctx, "tok-old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetToken(ctx, "tok-fresh")
	assert.NoError(t, err)
}

func TestDeleteAsset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.InsertAsset(ctx, testAsset("asset-1")))

	require.NoError(t, repo.DeleteAsset(ctx, "asset-1"))
	_, err := repo.GetAsset(ctx, "asset-1")
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.DeleteAsset(ctx, "asset-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
