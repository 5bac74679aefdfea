// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrUnauthorized is a 401: the token is missing, invalid or expired.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is a 404.
	ErrNotFound = errors.New("not found")

	// ErrRejected is a 4xx other than 401/404/429, such as bad credentials
	// on login or a validation failure.
	ErrRejected = errors.New("request rejected")

	// ErrRateLimited is a 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrServer is any 5xx.
	ErrServer = errors.New("server error")

	// ErrNoToken means a protected call was attempted without a valid session.
	ErrNoToken = errors.New("not signed in")

	// ErrNotJSON means a success response did not carry a JSON body.
	ErrNotJSON = errors.New("response is not JSON")

	// ErrNetwork wraps transport failures (DNS, refused connection, timeout).
	ErrNetwork = errors.New("network error")
)

// =============================================================================
// API ERROR
// =============================================================================

// APIError is a non-2xx response.
type APIError struct {
	Status    int
	Detail    string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, http.StatusText(e.Status))
}

// Unwrap maps the status to a sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Status >= 500:
		return ErrServer
	case e.Status >= 400:
		return ErrRejected
	default:
		return nil
	}
}

// errorBody is the server's error envelope. Detail is either a string or a
// list of validation problems.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationProblem struct {
	Msg string `json:"msg"`
	Loc []any  `json:"loc"`
}

// parseDetail extracts a human-readable message from an error body.
func parseDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return s
	}

	var problems []validationProblem
	if err := json.Unmarshal(eb.Detail, &problems); err == nil {
		msgs := make([]string, 0, len(problems))
		for _, p := range problems {
			if p.Msg == "" {
				continue
			}
			if field := fieldName(p.Loc); field != "" {
				msgs = append(msgs, field+": "+p.Msg)
			} else {
				msgs = append(msgs, p.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return strings.Trim(string(eb.Detail), `"`)
}

// fieldName returns the last string element of a validation location such
// as ["body", "email"].
func fieldName(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok && s != "body" {
			return s
		}
	}
	return ""
}

// =============================================================================
// USER-FACING MESSAGES
// =============================================================================

// Describe renders err as a short message for a toast or an error line.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Detail != "":
		return apiErr.Detail
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNoToken):
		return "Session expired. Please sign in again."
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrRateLimited):
		return "Too many requests, slow down"
	case errors.Is(err, ErrServer):
		return "The server had a problem answering"
	case errors.Is(err, ErrNotJSON):
		return "Response is not JSON"
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	case errors.Is(err, context.Canceled):
		return "Request cancelled"
	case errors.Is(err, ErrNetwork):
		return "Could not reach the server"
	default:
		return err.Error()
	}
}
