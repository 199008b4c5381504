// Package fs implements filesystem-based object storage for chunk bytes.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/marmos91/dittovault/pkg/store/content"
)

// FSContentStore implements content.ContentStore on the local filesystem.
//
// Object keys map to relative file paths under basePath. Keys produced by
// the chunk store already fan out ("objects/ab/cd/<hash>"), which keeps
// directories small.
//
// Thread Safety:
// Writes go to a temporary file in the target directory and are renamed into
// place, so concurrent writers of the same key never expose a torn object;
// the last rename wins and both wrote identical bytes.
type FSContentStore struct {
	basePath string
}

// NewFSContentStore creates a filesystem store rooted at basePath.
//
// The base directory is created with permissions 0755 if missing.
//
// Parameters:
//   - ctx: Context for cancellation (checked before touching the disk)
//   - basePath: Root directory for stored objects
//
// Returns:
//   - *FSContentStore: Initialized store
//   - error: Error if directory creation fails or context is cancelled
func NewFSContentStore(ctx context.Context, basePath string) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSContentStore{basePath: basePath}, nil
}

// getFilePath returns the full path for a key. Keys are cleaned and joined
// under basePath so they can never escape it.
func (s *FSContentStore) getFilePath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(filepath.Clean("/"+key)))
}

func (s *FSContentStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.getFilePath(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", key, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

func (s *FSContentStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.getFilePath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("object %s: %w", key, content.ErrContentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (s *FSContentStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(s.getFilePath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return true, nil
}

func (s *FSContentStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.getFilePath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Healthcheck verifies the base directory is still present.
func (s *FSContentStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("content directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("content path %s is not a directory", s.basePath)
	}
	return nil
}

// Close is a no-op; the store holds no open handles.
func (s *FSContentStore) Close() error {
	return nil
}
