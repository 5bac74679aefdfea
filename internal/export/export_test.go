// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/qbot-tui/internal/model"
)

var exportTime = time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)

func testRecords() []model.ChatRecord {
	return []model.ChatRecord{
		{
			ID:        "2",
			Title:     "Monads",
			Question:  "What is a monad?\nIn short.",
			Answer:    "A **monoid** in the category of endofunctors.\n\n```go\nfmt.Println(1)\n```",
			CreatedAt: model.Timestamp{Time: exportTime},
		},
		{
			ID:        "1",
			Question:  "hello",
			Answer:    "Hi <script>alert(1)</script>",
			CreatedAt: model.Timestamp{Time: exportTime.Add(-time.Hour)},
		},
	}
}

func testOptions() *Options {
	opts := DefaultOptions()
	opts.Owner = "Ada"
	opts.Now = exportTime
	return opts
}

func TestForFormat(t *testing.T) {
	for _, tc := range []struct {
		name string
		ext  string
	}{
		{"markdown", ".md"},
		{"MD", ".md"},
		{"json", ".json"},
		{"html", ".html"},
		{" htm ", ".html"},
	} {
		exp, err := ForFormat(tc.name, nil)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.ext, exp.FileExtension(), tc.name)
	}

	_, err := ForFormat("pdf", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestExportersRejectEmpty(t *testing.T) {
	for _, name := range Formats() {
		exp, err := ForFormat(name, nil)
		require.NoError(t, err)
		_, err = exp.Export(nil)
		assert.ErrorIs(t, err, ErrNoRecords, name)
	}
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions()).Export(testRecords())
	require.NoError(t, err)
	text := string(out)

	assert.True(t, strings.HasPrefix(text, "---\ntitle: QBot chats (2)\nowner: Ada\nchats: 2\n"))
	assert.Contains(t, text, "## Monads\n")
	assert.Contains(t, text, "## hello\n")
	assert.Contains(t, text, "> What is a monad?\n> In short.\n")
	assert.Contains(t, text, "```go\nfmt.Println(1)\n```")
	assert.Less(t, strings.Index(text, "## Monads"), strings.Index(text, "## hello"), "order is preserved")
}

func TestMarkdownEscapesFrontmatter(t *testing.T) {
	rec := testRecords()[0]
	rec.Title = "Test\ninjected: yes"
	out, err := NewMarkdownExporter(testOptions()).Export([]model.ChatRecord{rec})
	require.NoError(t, err)

	for _, line := range strings.Split(string(out), "\n")[:6] {
		assert.False(t, strings.HasPrefix(line, "injected:"), "frontmatter line %q", line)
	}
}

func TestMarkdownWithoutMetadata(t *testing.T) {
	opts := testOptions()
	opts.IncludeMetadata = false
	out, err := NewMarkdownExporter(opts).Export(testRecords()[:1])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "# Monads\n"))
}

func TestJSONExport(t *testing.T) {
	out, err := NewJSONExporter(testOptions()).Export(testRecords())
	require.NoError(t, err)

	var doc struct {
		Generator  string             `json:"generator"`
		Owner      string             `json:"owner"`
		ExportedAt string             `json:"exported_at"`
		Count      int                `json:"count"`
		Records    []model.ChatRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "qbot", doc.Generator)
	assert.Equal(t, "Ada", doc.Owner)
	assert.Equal(t, "2025-03-04T10:30:00Z", doc.ExportedAt)
	assert.Equal(t, 2, doc.Count)
	require.Len(t, doc.Records, 2)
	assert.Equal(t, model.RecordID("2"), doc.Records[0].ID)
	assert.True(t, doc.Records[0].CreatedAt.Equal(exportTime))
}

func TestHTMLExport(t *testing.T) {
	opts := testOptions()
	opts.Theme = "light"
	out, err := NewHTMLExporter(opts).Export(testRecords())
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, `<body class="light-theme">`)
	assert.Contains(t, text, "<strong>monoid</strong>")
	assert.Contains(t, text, `<code class="language-go">`)
	assert.Contains(t, text, "What is a monad?<br>\nIn short.")
	assert.NotContains(t, text, "<script>alert(1)</script>")
}

func TestHTMLEscapesTitles(t *testing.T) {
	rec := testRecords()[0]
	rec.Title = "<b>bold</b>"
	out, err := NewHTMLExporter(nil).Export([]model.ChatRecord{rec})
	require.NoError(t, err)
	assert.Contains(t, string(out), "&lt;b&gt;bold&lt;/b&gt;")
	assert.Contains(t, string(out), `<body class="dark-theme">`)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testRecords(), NewJSONExporter(nil)))
	assert.True(t, json.Valid(buf.Bytes()))

	assert.ErrorIs(t, Write(&buf, nil, NewJSONExporter(nil)), ErrNoRecords)
}

func TestToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	path, err := ToFile(testRecords()[:1], NewMarkdownExporter(testOptions()), dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "qbot_Monads_"))
	assert.Equal(t, ".md", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Monads")
}

func TestFilename(t *testing.T) {
	exp := NewHTMLExporter(nil)
	assert.Equal(t, "qbot_chats_20250304_103000.html", Filename(testRecords(), exp, exportTime))

	rec := model.ChatRecord{ID: "9", Title: `a/b:c*d?"e"`}
	assert.Equal(t, "qbot_a-b-c-d--e-_20250304_103000.html", Filename([]model.ChatRecord{rec}, exp, exportTime))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "chat", sanitizeFilename(""))
	assert.Equal(t, "hello_world", sanitizeFilename("hello world"))
	assert.Equal(t, "a-b", sanitizeFilename("a\x01b"))
	assert.Len(t, []rune(sanitizeFilename(strings.Repeat("é", 80))), 50)
}
