// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/qbot-tui/internal/util"
)

// DefaultWatchDebounce coalesces the burst of events one atomic write produces.
const DefaultWatchDebounce = 150 * time.Millisecond

// Watch calls onChange after the file at path (or its SQLite -wal/-journal
// companions) changes. The parent directory is watched rather than the file,
// because atomic writes replace the inode. Watching stops when ctx is done.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, util.DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create watch directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	base := filepath.Base(path)
	go func() {
		defer watcher.Close()

		var (
			mu    sync.Mutex
			timer *time.Timer
		)
		defer func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !matchesWatched(filepath.Base(event.Name), base) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				mu.Lock()
				if timer == nil {
					timer = time.AfterFunc(debounce, func() {
						if ctx.Err() == nil {
							onChange()
						}
					})
				} else {
					timer.Reset(debounce)
				}
				mu.Unlock()

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// overflow or transient error; the next event still triggers
			}
		}
	}()

	return nil
}

func matchesWatched(name, base string) bool {
	if name == base {
		return true
	}
	suffix := strings.TrimPrefix(name, base)
	return suffix != name && (suffix == "-wal" || suffix == "-journal")
}
