// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display and exit codes for qbot commands.
//
// Commands always return errors and never print them. Execute displays the
// error once, in text or JSON, and maps it to an exit code.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/qbot-tui/internal/api"
	"github.com/jeranaias/qbot-tui/internal/chat"
	"github.com/jeranaias/qbot-tui/internal/config"
	"github.com/jeranaias/qbot-tui/internal/session"
	"github.com/jeranaias/qbot-tui/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing, rejected or expired session
	ExitAuthError = 4
	// ExitNetworkError indicates the server could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// Sentinel errors shared by the commands.
var (
	// ErrNotSignedIn is returned by commands that need a session when none
	// is stored or the stored one has expired.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrAuthFailed wraps a rejected login or registration.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrAborted is returned when the user declines a confirmation.
	ErrAborted = errors.New("aborted")

	// ErrConfig wraps failures to load or apply the configuration.
	ErrConfig = errors.New("configuration error")
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "ask", "delete")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %s", e.Command, e.Reason, api.Describe(e.Err))
	}
	return fmt.Sprintf("%s failed: %s", e.Command, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	msg += ": " + e.Reason
	if e.Example != "" {
		msg += " (example: " + e.Example + ")"
	}
	return msg
}

// NotFoundError represents a missing chat record or config key.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewCommandError creates a new CommandError.
func NewCommandError(command, reason string, err error) error {
	return &CommandError{Command: command, Reason: reason, Err: err}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample creates a ValidationError with a usage example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to w. In JSON mode the error envelope is written
// instead, so scripts always get a parseable document.
func DisplayError(w io.Writer, err error, jsonMode bool, command string) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayErrorJSON(w, err, command)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), message(err))
	if hint := hintFor(err); hint != "" {
		fmt.Fprintln(w, DimStyle.Render(hint))
	}
}

// DisplayErrorJSON writes the error envelope with structured details.
func DisplayErrorJSON(w io.Writer, err error, command string) {
	resp := NewJSONErrorResponse(command, err)
	details := map[string]interface{}{
		"exit_code": GetExitCode(err),
	}

	var cmdErr *CommandError
	var valErr *ValidationError
	var nfErr *NotFoundError
	var apiErr *api.APIError
	switch {
	case errors.As(err, &valErr):
		details["error_type"] = "validation_error"
		details["field"] = valErr.Field
		details["reason"] = valErr.Reason
	case errors.As(err, &nfErr):
		details["error_type"] = "not_found_error"
		details["resource"] = nfErr.Resource
		details["id"] = nfErr.ID
	case errors.As(err, &apiErr):
		details["error_type"] = "api_error"
		details["status"] = apiErr.Status
		if apiErr.Detail != "" {
			details["detail"] = apiErr.Detail
		}
	case errors.As(err, &cmdErr):
		details["error_type"] = "command_error"
		details["reason"] = cmdErr.Reason
	default:
		details["error_type"] = "generic_error"
	}
	resp.Data = details

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
}

// message prefers the server's detail text for API failures.
func message(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Error()
	}
	return api.Describe(err)
}

func hintFor(err error) string {
	switch GetExitCode(err) {
	case ExitAuthError:
		if !errors.Is(err, ErrAuthFailed) {
			return "Run 'qbot login' to sign in."
		}
	case ExitNetworkError:
		return "Check that the server is running and api.base_url is correct ('qbot config get api.base_url')."
	case ExitConfigError:
		return "Run 'qbot config path' to locate the config file."
	}
	return ""
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var valErr *ValidationError
	var nfErr *NotFoundError
	var cfgErr config.ValidationError
	var cfgErrs config.ValidateErrors
	switch {
	case errors.As(err, &valErr), errors.Is(err, chat.ErrEmptyQuestion):
		return ExitUsageError
	case errors.Is(err, ErrConfig),
		errors.As(err, &cfgErr),
		errors.As(err, &cfgErrs),
		errors.Is(err, storage.ErrUnknownBackend):
		return ExitConfigError
	case errors.Is(err, ErrNotSignedIn),
		errors.Is(err, ErrAuthFailed),
		errors.Is(err, api.ErrUnauthorized),
		errors.Is(err, api.ErrNoToken),
		errors.Is(err, chat.ErrSessionInvalid),
		errors.Is(err, session.ErrSessionExpired),
		errors.Is(err, session.ErrEmptyToken):
		return ExitAuthError
	case errors.As(err, &nfErr), errors.Is(err, api.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, api.ErrNetwork):
		return ExitNetworkError
	}
	return ExitGeneralError
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}
