// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// =============================================================================
// PROMPTS
// =============================================================================

// reader returns the buffered reader over In. All prompts share it so
// piped input is consumed line by line.
func (a *App) reader() *bufio.Reader {
	if br, ok := a.In.(*bufio.Reader); ok {
		return br
	}
	br := bufio.NewReader(a.In)
	a.In = br
	return br
}

// promptInput shows prompt on Err and reads one line from In.
func (a *App) promptInput(prompt string) (string, error) {
	fmt.Fprint(a.Err, prompt)
	return a.readLine()
}

func (a *App) readLine() (string, error) {
	line, err := a.reader().ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptPassword reads a password without echo when In is a terminal.
// fromStdin reads it as a plain line instead, for scripts.
func (a *App) promptPassword(prompt string, fromStdin bool) (string, error) {
	if fromStdin {
		return a.readLine()
	}
	f, ok := a.In.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", &TTYRequiredError{Operation: "read a password (use --password-stdin)"}
	}
	fmt.Fprint(a.Err, prompt)
	pw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.Err)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// confirm asks a yes/no question; anything but y/yes is no.
func (a *App) confirm(prompt string) (bool, error) {
	answer, err := a.promptInput(prompt + " [y/N] ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// =============================================================================
// FORMATTING
// =============================================================================

// formatExpiry renders how long a session has left, e.g. "in 23 hours".
func formatExpiry(expiresAt, now time.Time) string {
	if !now.Before(expiresAt) {
		return "expired"
	}
	return humanize.RelTime(expiresAt, now, "ago", "from now")
}

// formatCreated renders a record date for listings.
func formatCreated(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// formatCreatedFull renders a record date for the detail view.
func formatCreatedFull(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Mon 2 Jan 2006 15:04")
}

// printField writes one aligned "label value" line.
func (a *App) printField(label, value string) {
	fmt.Fprintf(a.Out, "  %s %s\n", RenderLabel(label), ValueStyle.Render(value))
}
