package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	cachepolicy "github.com/asset-origin/asset-origin/pkg/cache-policy"
	"github.com/asset-origin/asset-origin/pkg/fingerprint"
)

// SQLiteRepository implements Repository on a SQLite database.
// SQLite serializes writers, so a single write mutex keeps transactions
// from tripping over each other without limiting concurrent reads.
type SQLiteRepository struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteRepository opens (and if needed initializes) the metadata
// database. If filename is empty, an in-memory database is used.
func NewSQLiteRepository(filename string) (*SQLiteRepository, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			visibility TEXT NOT NULL,
			mutability TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			storage_key TEXT NOT NULL UNIQUE,
			version_counter INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS asset_versions (
			asset_id TEXT NOT NULL,
			version_number INTEGER NOT NULL,
			storage_key TEXT NOT NULL UNIQUE,
			fingerprint TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (asset_id, version_number)
		)`,
		`CREATE TABLE IF NOT EXISTS access_tokens (
			token TEXT PRIMARY KEY,
			asset_id TEXT NOT NULL,
			issued_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			revoked INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS tokens_asset_idx ON access_tokens (asset_id)`,
		`CREATE INDEX IF NOT EXISTS tokens_expires_idx ON access_tokens (expires_at)`,
		`PRAGMA journal_mode=WAL`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
	}
	return &SQLiteRepository{db: db, writeMutex: &sync.Mutex{}}, nil
}

func (s *SQLiteRepository) InsertAsset(ctx context.Context, a Asset) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO assets
		(id, file_name, mime_type, size_bytes, visibility, mutability, fingerprint, storage_key, version_counter, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.FileName, a.MimeType, a.SizeBytes, string(a.Visibility), string(a.Mutability),
		a.CurrentFingerprint.String(), a.StorageKey, a.VersionCounter, a.CreatedAt.Unix(), a.UpdatedAt.Unix())
	return err
}

func (s *SQLiteRepository) GetAsset(ctx context.Context, id string) (Asset, error) {
	var (
		a                    Asset
		vis, mut, fp         string
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT
		id, file_name, mime_type, size_bytes, visibility, mutability, fingerprint, storage_key, version_counter, created_at, updated_at
		FROM assets WHERE id = ?`, id).
		Scan(&a.ID, &a.FileName, &a.MimeType, &a.SizeBytes, &vis, &mut, &fp, &a.StorageKey, &a.VersionCounter, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Asset{}, fmt.Errorf("%w: asset %s", ErrNotFound, id)
	}
	if err != nil {
		return Asset{}, err
	}
	a.Visibility = cachepolicy.Visibility(vis)
	a.Mutability = cachepolicy.Mutability(mut)
	a.CurrentFingerprint = fingerprint.Fingerprint(fp)
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)
	return a, nil
}

func (s *SQLiteRepository) UpdateAssetContent(ctx context.Context, id string, fp fingerprint.Fingerprint, storageKey string, size int64, updatedAt time.Time) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE assets SET fingerprint = ?, storage_key = ?, size_bytes = ?, updated_at = ? WHERE id = ?`,
		fp.String(), storageKey, size, updatedAt.Unix(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: asset %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteRepository) DeleteAsset(ctx context.Context, id string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: asset %s", ErrNotFound, id)
	}
	return nil
}

// InsertVersion advances the version counter and records the version row in
// one transaction, so an abandoned publish can never leave a half-applied
// counter behind. The guarded UPDATE doubles as an optimistic check against
// concurrent publishes that slipped past the caller's lock.
func (s *SQLiteRepository) InsertVersion(ctx context.Context, v AssetVersion) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx,
		`UPDATE assets SET version_counter = ? WHERE id = ? AND version_counter = ?`,
		v.VersionNumber, v.AssetID, v.VersionNumber-1)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: version counter moved for asset %s", ErrConflict, v.AssetID)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO asset_versions
		(asset_id, version_number, storage_key, fingerprint, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.AssetID, v.VersionNumber, v.StorageKey, v.Fingerprint.String(), v.SizeBytes, v.CreatedAt.Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteRepository) GetVersion(ctx context.Context, assetID string, number int64) (AssetVersion, error) {
	var (
		v         AssetVersion
		fp        string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT
		asset_id, version_number, storage_key, fingerprint, size_bytes, created_at
		FROM asset_versions WHERE asset_id = ? AND version_number = ?`, assetID, number).
		Scan(&v.AssetID, &v.VersionNumber, &v.StorageKey, &fp, &v.SizeBytes, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AssetVersion{}, fmt.Errorf("%w: version %d of asset %s", ErrNotFound, number, assetID)
	}
	if err != nil {
		return AssetVersion{}, err
	}
	v.Fingerprint = fingerprint.Fingerprint(fp)
	v.CreatedAt = time.Unix(createdAt, 0)
	return v, nil
}

func (s *SQLiteRepository) ListVersions(ctx context.Context, assetID string) ([]AssetVersion, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		asset_id, version_number, storage_key, fingerprint, size_bytes, created_at
		FROM asset_versions WHERE asset_id = ? ORDER BY version_number`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	versions := make([]AssetVersion, 0)
	for rows.Next() {
		var (
			v         AssetVersion
			fp        string
			createdAt int64
		)
		if err := rows.Scan(&v.AssetID, &v.VersionNumber, &v.StorageKey, &fp, &v.SizeBytes, &createdAt); err != nil {
			return nil, err
		}
		v.Fingerprint = fingerprint.Fingerprint(fp)
		v.CreatedAt = time.Unix(createdAt, 0)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *SQLiteRepository) InsertToken(ctx context.Context, t AccessToken) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO access_tokens
		(token, asset_id, issued_at, expires_at, revoked) VALUES (?, ?, ?, ?, ?)`,
		t.Token, t.AssetID, t.IssuedAt.Unix(), t.ExpiresAt.Unix(), boolToInt(t.Revoked))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: token string already taken", ErrConflict)
	}
	return nil
}

func (s *SQLiteRepository) GetToken(ctx context.Context, token string) (AccessToken, error) {
	var (
		t               AccessToken
		issued, expires int64
		revoked         int
	)
	err := s.db.QueryRowContext(ctx, `SELECT token, asset_id, issued_at, expires_at, revoked
		FROM access_tokens WHERE token = ?`, token).
		Scan(&t.Token, &t.AssetID, &issued, &expires, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return AccessToken{}, fmt.Errorf("%w: token", ErrNotFound)
	}
	if err != nil {
		return AccessToken{}, err
	}
	t.IssuedAt = time.Unix(issued, 0)
	t.ExpiresAt = time.Unix(expires, 0)
	t.Revoked = revoked != 0
	return t, nil
}

func (s *SQLiteRepository) RevokeToken(ctx context.Context, token string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE access_tokens SET revoked = 1 WHERE token = ?`, token)
	return err
}

func (s *SQLiteRepository) DeleteTokensExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE expires_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
