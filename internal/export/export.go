// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/qbot-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoRecords is returned when there is nothing to export.
	ErrNoRecords = errors.New("no chats to export")

	// ErrUnknownFormat is returned by ForFormat.
	ErrUnknownFormat = errors.New("unsupported export format")
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders chat records in one file format.
type Exporter interface {
	// Export renders records, in the order given.
	Export(records []model.ChatRecord) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string

	// MimeType returns the MIME type of the output.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds a header with the owner, count and export time.
	IncludeMetadata bool

	// Owner is shown in the metadata header when set.
	Owner string

	// Theme for HTML export ("light" or "dark").
	Theme string

	// Now is the export time. Zero means time.Now().
	Now time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata: true,
		Theme:           "dark",
	}
}

func (o *Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// Formats lists the names ForFormat accepts.
func Formats() []string {
	return []string{"markdown", "json", "html"}
}

// ForFormat returns the exporter for a format name. "md" and "htm" are
// accepted as aliases.
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q (use %s)", ErrUnknownFormat, name, strings.Join(Formats(), ", "))
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// Write renders records to w.
func Write(w io.Writer, records []model.ChatRecord, exporter Exporter) error {
	content, err := exporter.Export(records)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	_, err = w.Write(content)
	return err
}

// ToFile renders records into a new file under dir and returns its path.
// A single record is named after its title; several records share a
// timestamped name.
func ToFile(records []model.ChatRecord, exporter Exporter, dir string) (string, error) {
	content, err := exporter.Export(records)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(dir, Filename(records, exporter, time.Now()))
	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// Filename builds the output file name for records.
func Filename(records []model.ChatRecord, exporter Exporter, at time.Time) string {
	stem := "qbot_chats"
	if len(records) == 1 {
		stem = "qbot_" + sanitizeFilename(records[0].DisplayTitle())
	}
	return fmt.Sprintf("%s_%s%s", stem, at.Format("20060102_150405"), exporter.FileExtension())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "chat"
	}
	return string(result)
}

func validate(records []model.ChatRecord) error {
	if len(records) == 0 {
		return ErrNoRecords
	}
	return nil
}

// formatTimestamp formats a timestamp for display. Zero times render empty.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
