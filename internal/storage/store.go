// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jeranaias/qbot-tui/internal/config"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("storage closed")

	// ErrCorrupt is returned when persisted data cannot be decoded.
	ErrCorrupt = errors.New("storage corrupt")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is a string key/value store.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)
	// GetMany reads several keys from one snapshot. Missing keys are
	// absent from the result.
	GetMany(keys ...string) (map[string]string, error)
	// Set stores a single value.
	Set(key, value string) error
	// SetMany stores every entry in one atomic write.
	SetMany(entries map[string]string) error
	// Remove deletes keys; missing keys are not an error.
	Remove(keys ...string) error
	// Close releases the backend.
	Close() error
}

// Pather is implemented by backends persisted to a single file.
type Pather interface {
	Path() string
}

// Open creates the backend selected by cfg.Storage.
func Open(cfg *config.Config) (Store, error) {
	if cfg.Storage.Backend == "memory" {
		return NewMemoryStore(), nil
	}

	path, err := cfg.StoragePath()
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.Backend {
	case "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Storage.Backend)
	}
}

func pick(entries map[string]string, keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := entries[k]; ok {
			out[k] = v
		}
	}
	return out
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore keeps entries in a map. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) GetMany(keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return pick(m.data, keys), nil
}

func (m *MemoryStore) Set(key, value string) error {
	return m.SetMany(map[string]string{key: value})
}

func (m *MemoryStore) SetMany(entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for k, v := range entries {
		m.data[k] = v
	}
	return nil
}

func (m *MemoryStore) Remove(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
