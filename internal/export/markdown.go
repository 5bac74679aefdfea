// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/qbot-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports records to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts records to Markdown. Answers are written verbatim since
// the service already returns markdown.
func (e *MarkdownExporter) Export(records []model.ChatRecord) ([]byte, error) {
	if err := validate(records); err != nil {
		return nil, err
	}

	var sb strings.Builder
	now := e.options.now()

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(e.documentTitle(records)))
		if e.options.Owner != "" {
			fmt.Fprintf(&sb, "owner: %s\n", escapeYAML(e.options.Owner))
		}
		fmt.Fprintf(&sb, "chats: %d\n", len(records))
		fmt.Fprintf(&sb, "exported: %s\n", now.Format(time.RFC3339))
		sb.WriteString("generator: qbot\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(e.documentTitle(records)))

	for i, rec := range records {
		fmt.Fprintf(&sb, "## %s\n\n", escapeMarkdown(rec.DisplayTitle()))
		if when := formatTimestamp(rec.CreatedAt.Time); when != "" {
			fmt.Fprintf(&sb, "<sub>%s · id %s</sub>\n\n", when, rec.ID)
		}
		sb.WriteString(quote(rec.Question))
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(rec.Answer))
		sb.WriteString("\n\n")
		if i < len(records)-1 {
			sb.WriteString("---\n\n")
		}
	}

	fmt.Fprintf(&sb, "---\n\n*Exported from qbot on %s*\n", now.Format("January 2, 2006 at 3:04 PM"))
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

func (e *MarkdownExporter) documentTitle(records []model.ChatRecord) string {
	if len(records) == 1 {
		return records[0].DisplayTitle()
	}
	return fmt.Sprintf("QBot chats (%d)", len(records))
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// quote turns text into a markdown blockquote, one "> " per line.
func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight("> "+line, " ")
	}
	return strings.Join(lines, "\n")
}

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes a frontmatter value when it contains special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
