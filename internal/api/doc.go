// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the QBot server.
//
// Endpoints covered: sign-in and registration under /auth, and the question
// history, ask, fetch and delete calls under /questions. Every /questions
// call carries the session's bearer token.
//
// # Key Types
//
//   - Client: the HTTP client, configured with builder methods
//   - TokenSource: where the bearer token comes from (session.Store)
//   - APIError: a non-2xx response with the server's detail message
//
// # Usage
//
//	client := api.NewClient(cfg.API.BaseURL, store).
//	    WithTimeout(cfg.API.Timeout()).
//	    WithLogger(logger)
//	records, err := client.History(ctx)
//	if errors.Is(err, api.ErrUnauthorized) {
//	    // session is no longer valid
//	}
//
// # Errors
//
// Failed calls are never retried. Status codes map to sentinel errors
// (ErrUnauthorized, ErrNotFound, ErrRateLimited, ErrServer, ErrRejected)
// through APIError.Unwrap, and transport failures wrap ErrNetwork.
package api
