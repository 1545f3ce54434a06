// Package store persists processed daily statistics as JSON files on disk.
//
// Each domain keeps two files: a durable file holding only complete days,
// and a cache file that additionally includes the current (incomplete) day.
// Endpoints read the cache file so dashboards see today's partial data;
// incremental updates resume from the durable file so partial days are
// re-fetched on the next run.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store reads and writes one domain's processed records.
type Store[T any] struct {
	path      string
	cachePath string

	mu sync.Mutex
}

// New returns a store writing <name>.json and <name>_cache.json under dir.
func New[T any](dir, name string) *Store[T] {
	return &Store[T]{
		path:      filepath.Join(dir, name+".json"),
		cachePath: filepath.Join(dir, name+"_cache.json"),
	}
}

// Load returns the records in the durable file.
// A missing file is not an error: it returns no records.
func (s *Store[T]) Load() ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readJSON[T](s.path)
}

// LoadCache returns the records in the cache file, which include the
// current incomplete day. Falls back to the durable file if no cache
// has been written yet.
func (s *Store[T]) LoadCache() ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := readJSON[T](s.cachePath)
	if err != nil {
		return nil, err
	}
	if records == nil {
		return readJSON[T](s.path)
	}
	return records, nil
}

// Save writes the durable and cache files atomically.
func (s *Store[T]) Save(durable, cache []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeJSON(s.path, durable); err != nil {
		return err
	}
	return writeJSON(s.cachePath, cache)
}

func readJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}

// writeJSON writes via a temp file and rename so readers never observe a
// half-written file.
func writeJSON[T any](path string, records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	return os.Rename(tmp.Name(), path)
}
