// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/qbot-tui/internal/util"
)

// FileStore persists entries as a single JSON object.
//
// The file is re-read on every operation so that several qbot processes
// sharing a home directory see each other's logins and logouts.
type FileStore struct {
	path   string
	mu     sync.Mutex
	closed bool
}

// NewFileStore creates a store backed by path. The file itself is created on
// the first write.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), util.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := map[string]string{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, f.path, err)
	}
	return entries, nil
}

// loadForWrite treats a corrupt file as empty so a write can repair it.
func (f *FileStore) loadForWrite() (map[string]string, error) {
	entries, err := f.load()
	if errors.Is(err, ErrCorrupt) {
		return map[string]string{}, nil
	}
	return entries, err
}

func (f *FileStore) save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(f.path, data, 0600)
}

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", false, ErrClosed
	}
	entries, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := entries[key]
	return v, ok, nil
}

// GetMany reads the file once for all keys.
func (f *FileStore) GetMany(keys ...string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	entries, err := f.load()
	if err != nil {
		return nil, err
	}
	return pick(entries, keys), nil
}

func (f *FileStore) Set(key, value string) error {
	return f.SetMany(map[string]string{key: value})
}

func (f *FileStore) SetMany(values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	entries, err := f.loadForWrite()
	if err != nil {
		return err
	}
	for k, v := range values {
		entries[k] = v
	}
	return f.save(entries)
}

func (f *FileStore) Remove(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if _, err := os.Stat(f.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	entries, err := f.loadForWrite()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(entries, k)
	}
	return f.save(entries)
}

func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
