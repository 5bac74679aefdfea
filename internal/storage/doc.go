// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local key/value store that holds the qbot
// session entries.
//
// # Key Types
//
//   - Store: the interface every backend implements
//   - FileStore: one JSON object on disk (default, ~/.qbot/session.json)
//   - SQLiteStore: a single kv table (~/.qbot/session.db)
//   - MemoryStore: process-local (storage.backend = "memory"), used by tests
//
// # Usage
//
//	kv, err := storage.Open(cfg)
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//	err = kv.SetMany(map[string]string{"token": tok, "user": userJSON})
//
// Writes of several keys are atomic: either every entry lands or none does.
// Watch reports changes made to a backend's file by other processes.
package storage
