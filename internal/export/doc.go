// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat records to portable files.
//
// # Supported Formats
//
//   - markdown: one section per question, answers kept as markdown
//   - json: the records as the API returned them, for scripting
//   - html: a standalone page with embedded CSS
//
// # Usage
//
//	exp, err := export.ForFormat("markdown", export.DefaultOptions())
//	path, err := export.ToFile(records, exp, "exports")
package export
