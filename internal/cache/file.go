package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/UnknownOlympus/patrol/internal/models"
)

// FileStore keeps the cache as a single JSON object of key to entry.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path. The parent directory is created on save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the cache file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the cache file. A file that does not exist yet yields an empty map.
func (s *FileStore) Load(_ context.Context) (map[string]models.CacheEntry, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]models.CacheEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var entries map[string]models.CacheEntry
	if err = json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode cache file: %w", err)
	}
	if entries == nil {
		entries = map[string]models.CacheEntry{}
	}

	return entries, nil
}

// Save rewrites the cache file with entries. The content goes to a temporary file in the
// same directory first and is renamed over the target, so readers never see a partial file.
func (s *FileStore) Save(_ context.Context, entries map[string]models.CacheEntry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	serialized, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(serialized); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	return nil
}
