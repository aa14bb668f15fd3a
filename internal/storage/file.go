package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
)

// FileStore keeps the seen set in a local file. The version token is the
// content hash of the file bytes, so any out-of-band edit between Load and
// Save surfaces as ErrConflict.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(ctx context.Context) (*SeenSet, string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSeenSet(), "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("storage: read %s: %w", f.path, err)
	}
	return ParseSeenSet(data), contentHash(data), nil
}

func (f *FileStore) Save(ctx context.Context, set *SeenSet, version string) error {
	current, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Creating, unless the caller loaded a file that has since vanished.
		if version != "" {
			return ErrConflict
		}
	case err != nil:
		return fmt.Errorf("storage: read %s: %w", f.path, err)
	default:
		if contentHash(current) != version {
			return ErrConflict
		}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, set.Encode(), 0644); err != nil {
		return fmt.Errorf("storage: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("storage: rename %s: %w", tmp, err)
	}
	return nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
