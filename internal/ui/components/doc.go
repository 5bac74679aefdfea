// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the UI building blocks of the qbot terminal
// client: header, history list, answer pane, auth form, toasts, spinner and
// the landing and not-found screens.
//
// Components are plain structs driven by the root model in package app.
// They never call the API or the session store themselves.
package components
