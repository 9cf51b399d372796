package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const defaultDirPerm = 0o700

// DiskStore implements Store on the local filesystem. Writes go through a
// temp file followed by a rename, so a reader never observes a partially
// written object.
type DiskStore struct {
	dir     string
	dirPerm os.FileMode
}

// NewDiskStore creates a disk store rooted at dir.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("blob dir is empty")
	}
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir, dirPerm: defaultDirPerm}, nil
}

func (s *DiskStore) Put(ctx context.Context, key string, content []byte) error {
	return s.write(key, content, true)
}

func (s *DiskStore) PutNew(ctx context.Context, key string, content []byte) error {
	return s.write(key, content, false)
}

func (s *DiskStore) write(key string, content []byte, overwrite bool) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, key)
		}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "blob-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if !overwrite {
		// rename would silently replace an object that appeared in the
		// meantime, so re-check before committing
		if _, err := os.Stat(path); err == nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("%w: %s", ErrExists, key)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *DiskStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *DiskStore) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *DiskStore) path(key string) (string, error) {
	if key == "" {
		return "", errors.New("storage key is empty")
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("malformed storage key %q", key)
		}
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}
