// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the signed-in state of qbot.
//
// A session is three entries in the local key/value store: the bearer
// token, the user identity as JSON, and the expiry instant. All three are
// written together on login and removed together on logout; anything less is
// treated as no session at all.
//
// # Key Types
//
//   - Store: login, logout, expiry checks and change notification
//   - Session: the decoded view of the stored entries
//   - Route: the screen a session change sends the user to
//   - Event: what Subscribe listeners receive
//
// # Usage
//
//	st := session.NewStore(kv, session.ConfigFrom(cfg), logger)
//	st.SetNavigator(session.NavigatorFunc(func(r session.Route) { ... }))
//	defer st.Close()
//
//	if !st.Resume() {
//	    // show the landing screen
//	}
//
// # Expiry
//
// IsAuthenticated only reads state. Logging out an expired session is the
// job of CheckExpiry, which the store's own ticker calls every
// CheckInterval while a session is active.
package session
