package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/banshee-data/ivcurve/internal/fsutil"
)

// FileStore keeps each snapshot in its own file, replaced atomically.
type FileStore struct {
	fs fsutil.FileSystem
}

// NewFileStore returns a FileStore on fsys.
func NewFileStore(fsys fsutil.FileSystem) *FileStore {
	return &FileStore{fs: fsys}
}

// Load reads and decodes the snapshot file at key.
func (s *FileStore) Load(key string) (*Snapshot, error) {
	blob, err := s.fs.ReadFile(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Unmarshal(blob)
}

// Save encodes snap and writes it to key through a temp file and rename.
func (s *FileStore) Save(key string, snap *Snapshot) error {
	blob, err := Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(key), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return fsutil.WriteFileAtomic(s.fs, key, blob, 0644)
}
