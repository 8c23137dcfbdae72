// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package credstore

import "sync"

// MemoryStore is an in-process [Store] backed by a map.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore constructs an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value for key, or [ErrNotFound] if absent.
func (store *MemoryStore) Get(key string) (string, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	value, ok := store.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set writes the value for key.
func (store *MemoryStore) Set(key, value string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.values[key] = value
	return nil
}

// Delete removes key.
func (store *MemoryStore) Delete(key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.values, key)
	return nil
}

// Clear removes every session key.
func (store *MemoryStore) Clear() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, key := range SessionKeys {
		delete(store.values, key)
	}
	return nil
}
