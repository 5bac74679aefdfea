// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/qbot-tui/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports records in the API's own shape, wrapped in a small
// envelope. Records are always complete; IncludeMetadata only controls the
// envelope fields.
type JSONExporter struct {
	options *Options
}

// Document is the top-level JSON export.
type Document struct {
	Generator  string             `json:"generator,omitempty"`
	Owner      string             `json:"owner,omitempty"`
	ExportedAt string             `json:"exported_at,omitempty"`
	Count      int                `json:"count"`
	Records    []model.ChatRecord `json:"records"`
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts records to indented JSON.
func (e *JSONExporter) Export(records []model.ChatRecord) ([]byte, error) {
	if err := validate(records); err != nil {
		return nil, err
	}
	doc := Document{Count: len(records), Records: records}
	if e.options.IncludeMetadata {
		doc.Generator = "qbot"
		doc.Owner = e.options.Owner
		doc.ExportedAt = e.options.now().UTC().Format(time.RFC3339)
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
