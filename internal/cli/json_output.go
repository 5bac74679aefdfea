// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for --json.
//
// Every command prints the same envelope so scripts can check "success"
// before looking at "data".

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/qbot-tui/internal/model"
)

// JSONResponse is the envelope for all --json output.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is when the response was generated (RFC 3339, UTC)
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := message(err)
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// UserData identifies the signed-in account.
type UserData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthData is returned by login and register.
type AuthData struct {
	User      UserData `json:"user"`
	ExpiresAt string   `json:"expires_at,omitempty"`
}

// StatusData is returned by status.
type StatusData struct {
	Server      string    `json:"server"`
	Storage     string    `json:"storage"`
	StoragePath string    `json:"storage_path,omitempty"`
	SignedIn    bool      `json:"signed_in"`
	User        *UserData `json:"user,omitempty"`
	ExpiresAt   string    `json:"expires_at,omitempty"`
	ExpiresIn   string    `json:"expires_in,omitempty"`
	Reachable   *bool     `json:"reachable,omitempty"`
}

// RecordData is one chat record.
type RecordData struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Question  string `json:"question"`
	Answer    string `json:"answer,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// HistoryData is returned by history.
type HistoryData struct {
	Count   int          `json:"count"`
	Records []RecordData `json:"records"`
}

// DeleteData is returned by delete.
type DeleteData struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// ConfigValueData is returned by config get and config set.
type ConfigValueData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// VersionData is returned by version.
type VersionData struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// newRecordData converts a record; withAnswer controls whether the answer
// body is included.
func newRecordData(rec model.ChatRecord, withAnswer bool) RecordData {
	d := RecordData{
		ID:       rec.ID.String(),
		Title:    rec.DisplayTitle(),
		Question: rec.Question,
	}
	if withAnswer {
		d.Answer = rec.Answer
	}
	if !rec.CreatedAt.IsZero() {
		d.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
	}
	return d
}
