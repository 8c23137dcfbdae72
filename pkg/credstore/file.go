// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a [Store] persisted as a single JSON file.
//
// The file is written with 0600 permissions since it holds live bearer
// credentials. Writes go through a temp file and rename so a crash never
// leaves a torn record on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore constructs a [FileStore] at the given path. The parent
// directory is created if missing.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("credstore_dir_creation_failed: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Get returns the value for key, or [ErrNotFound] if absent.
func (store *FileStore) Get(key string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	values, err := store.load()
	if err != nil {
		return "", err
	}

	value, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set writes the value for key.
func (store *FileStore) Set(key, value string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	values, err := store.load()
	if err != nil {
		return err
	}

	values[key] = value
	return store.save(values)
}

// Delete removes key.
func (store *FileStore) Delete(key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	values, err := store.load()
	if err != nil {
		return err
	}

	delete(values, key)
	return store.save(values)
}

// Clear removes every session key.
func (store *FileStore) Clear() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	values, err := store.load()
	if err != nil {
		return err
	}

	for _, key := range SessionKeys {
		delete(values, key)
	}
	return store.save(values)
}

// load reads the record file. A missing file is an empty record.
func (store *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(store.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("credstore_read_failed: %w", err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(raw, &values); err != nil {
		// A corrupted record is unrecoverable state; start over rather
		// than failing every subsequent auth operation.
		return make(map[string]string), nil
	}
	return values, nil
}

// save writes the record atomically via temp file + rename.
func (store *FileStore) save(values map[string]string) error {
	raw, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("credstore_encode_failed: %w", err)
	}

	temp := store.path + ".tmp"
	if err := os.WriteFile(temp, raw, 0o600); err != nil {
		return fmt.Errorf("credstore_write_failed: %w", err)
	}
	if err := os.Rename(temp, store.path); err != nil {
		return fmt.Errorf("credstore_rename_failed: %w", err)
	}
	return nil
}
