// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the qbot command tree.
//
// Each invocation builds an App, opens the config, logger, session storage,
// API client and chat controller, runs one command and closes them again.
// The stored session is shared with the full-screen UI, so signing in with
// "qbot login" and then running "qbot" lands directly in the chat view.
//
// # Usage
//
//	os.Exit(cli.Execute(version, commit, date))
//
// # Commands Overview
//
// Session:
//   - login, register, logout: manage the stored session
//   - status: server, storage and session state
//
// Chats:
//   - ask: single question, answer printed as markdown
//   - history, show, delete: browse and prune the chat history
//   - export: save chats as markdown, json or html
//   - chat: full-screen UI, or a line prompt with --plain
//
// Other:
//   - config show|get|set|path: configuration management
//   - version: build information
//
// All data commands accept --json and print a JSONResponse envelope. Errors
// map to exit codes (see GetExitCode).
package cli
