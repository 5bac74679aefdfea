// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jeranaias/qbot-tui/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports records to a standalone HTML page with embedded CSS.
// Answers are converted from markdown; raw HTML inside them is dropped.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options: opts,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Export converts records to HTML.
func (e *HTMLExporter) Export(records []model.ChatRecord) ([]byte, error) {
	if err := validate(records); err != nil {
		return nil, err
	}

	title := fmt.Sprintf("QBot chats (%d)", len(records))
	if len(records) == 1 {
		title = records[0].DisplayTitle()
	}
	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(title))
	sb.WriteString("    <meta name=\"generator\" content=\"qbot\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	fmt.Fprintf(&sb, "        <header class=\"header\"><h1>%s</h1>", html.EscapeString(title))
	if e.options.IncludeMetadata {
		sb.WriteString("<div class=\"metadata\">")
		if e.options.Owner != "" {
			fmt.Fprintf(&sb, "<span>%s</span>", html.EscapeString(e.options.Owner))
		}
		fmt.Fprintf(&sb, "<span>%d chats</span>", len(records))
		sb.WriteString("</div>")
	}
	sb.WriteString("</header>\n")

	sb.WriteString("        <main>\n")
	for _, rec := range records {
		body, err := e.renderRecord(rec)
		if err != nil {
			return nil, err
		}
		sb.WriteString(body)
	}
	sb.WriteString("        </main>\n")

	fmt.Fprintf(&sb, "        <footer class=\"footer\">Exported from <strong>qbot</strong> on %s</footer>\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("    </div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) renderRecord(rec model.ChatRecord) (string, error) {
	var answer bytes.Buffer
	if err := e.md.Convert([]byte(rec.Answer), &answer); err != nil {
		return "", fmt.Errorf("render answer %s: %w", rec.ID, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "            <article class=\"chat\" id=\"chat-%s\">\n", html.EscapeString(rec.ID.String()))
	fmt.Fprintf(&sb, "                <h2>%s</h2>\n", html.EscapeString(rec.DisplayTitle()))
	if when := formatTimestamp(rec.CreatedAt.Time); when != "" {
		fmt.Fprintf(&sb, "                <div class=\"timestamp\">%s</div>\n", when)
	}
	fmt.Fprintf(&sb, "                <blockquote class=\"question\">%s</blockquote>\n",
		strings.ReplaceAll(html.EscapeString(strings.TrimSpace(rec.Question)), "\n", "<br>\n"))
	sb.WriteString("                <div class=\"answer\">\n")
	sb.Write(answer.Bytes())
	sb.WriteString("                </div>\n")
	sb.WriteString("            </article>\n")
	return sb.String(), nil
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif;
            --font-mono: "SF Mono", "Fira Code", "Source Code Pro", monospace;
        }
        .dark-theme { --bg: #1a1b26; --panel: #24283b; --text: #c0caf5; --muted: #7982a9; --accent: #7aa2f7; --code: #16161e; }
        .light-theme { --bg: #f5f5f7; --panel: #ffffff; --text: #24292f; --muted: #6e7781; --accent: #0969da; --code: #f6f8fa; }
        body { background: var(--bg); color: var(--text); font-family: var(--font-sans); line-height: 1.6; padding: 24px; }
        .container { max-width: 860px; margin: 0 auto; }
        .header, .chat, .footer { background: var(--panel); border-radius: 8px; padding: 24px; margin-bottom: 16px; }
        .header h1 { color: var(--accent); font-size: 1.6em; }
        .metadata span { color: var(--muted); margin-right: 16px; font-size: 0.9em; }
        .chat h2 { font-size: 1.2em; margin-bottom: 4px; }
        .timestamp { color: var(--muted); font-size: 0.85em; margin-bottom: 12px; }
        .question { border-left: 3px solid var(--accent); padding-left: 12px; margin-bottom: 16px; }
        .answer p, .answer ul, .answer ol, .answer pre, .answer table { margin-bottom: 12px; }
        .answer ul, .answer ol { padding-left: 24px; }
        .answer pre { background: var(--code); padding: 12px; border-radius: 6px; overflow-x: auto; }
        .answer code { font-family: var(--font-mono); font-size: 0.9em; }
        .answer table { border-collapse: collapse; }
        .answer th, .answer td { border: 1px solid var(--muted); padding: 4px 8px; }
        .footer { color: var(--muted); font-size: 0.85em; text-align: center; }
        @media print { body { padding: 0; } .chat { page-break-inside: avoid; } }
    </style>
`
