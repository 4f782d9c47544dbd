package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File is a store persisted as a single JSON document on disk. The full map
// is held in memory and rewritten on every mutation; reads never touch the
// filesystem. Writes are last-writer-wins: a second process sharing the same
// path can race with this one, which is an accepted limitation.
type File struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// NewFile opens a file-backed store, loading any previously persisted
// contents. A missing file is treated as an empty store.
func NewFile(path string) (*File, error) {
	f := &File{
		path:   path,
		values: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("reading store file %q: %w", path, err)
	}

	if err := json.Unmarshal(data, &f.values); err != nil {
		return nil, fmt.Errorf("parsing store file %q: %w", path, err)
	}

	return f, nil
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	value, ok := f.values[key]
	return value, ok, nil
}

func (f *File) Set(_ context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values[key] = value
	return f.persist()
}

func (f *File) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.values, key)
	return f.persist()
}

func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values = make(map[string]string)
	return f.persist()
}

func (f *File) Close() error {
	return nil
}

// persist writes the store contents via a temporary file and rename, so a
// crash mid-write never leaves a truncated document behind. Callers must
// hold the write lock.
func (f *File) persist() error {
	data, err := json.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("serializing store contents: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return fmt.Errorf("creating temporary store file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing store file: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("setting store file permissions: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing store file: %w", err)
	}

	return nil
}
