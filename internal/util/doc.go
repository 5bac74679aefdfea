// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the qbot packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file replacement (temp file, fsync, rename)
//
// Text:
//   - TruncateWidth: display-width aware truncation for list columns
//   - SingleLine: collapse whitespace so a value fits one terminal row
//   - FormatRemaining: compact "1h 5m" durations for status lines
//
// # Usage
//
//	title := util.TruncateWidth(util.SingleLine(record.Title), 28)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
