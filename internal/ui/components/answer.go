// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/qbot-tui/internal/model"
	"github.com/jeranaias/qbot-tui/internal/ui/styles"
)

// =============================================================================
// MARKDOWN
// =============================================================================

// Markdown renders answer text. Renderers are built lazily per wrap width.
type Markdown struct {
	mu        sync.Mutex
	enabled   bool
	style     string
	renderers map[int]*glamour.TermRenderer
}

// NewMarkdown creates a renderer. With enabled false text is only wrapped.
// style is "auto", "dark" or "light".
func NewMarkdown(enabled bool, style string) *Markdown {
	return &Markdown{
		enabled:   enabled,
		style:     style,
		renderers: make(map[int]*glamour.TermRenderer),
	}
}

// Render returns text formatted for width cells. Rendering errors fall back
// to the plain text.
func (m *Markdown) Render(text string, width int) string {
	if width < 20 {
		width = 20
	}
	if !m.enabled {
		return lipgloss.NewStyle().Width(width).Render(text)
	}

	r, err := m.renderer(width)
	if err != nil {
		return lipgloss.NewStyle().Width(width).Render(text)
	}
	out, err := r.Render(text)
	if err != nil {
		return lipgloss.NewStyle().Width(width).Render(text)
	}
	return strings.Trim(out, "\n")
}

func (m *Markdown) renderer(width int) (*glamour.TermRenderer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.renderers[width]; ok {
		return r, nil
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	switch m.style {
	case styles.ModeDark, styles.ModeLight:
		opts = append(opts, glamour.WithStandardStyle(m.style))
	default:
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	m.renderers[width] = r
	return r, nil
}

// =============================================================================
// ANSWER VIEW
// =============================================================================

// AnswerView shows the selected record in a scrollable viewport.
type AnswerView struct {
	theme    *styles.Theme
	markdown *Markdown
	viewport viewport.Model

	record  model.ChatRecord
	hasRec  bool
	pending string // question being answered
	width   int
}

// NewAnswerView creates an empty view.
func NewAnswerView(theme *styles.Theme, md *Markdown) *AnswerView {
	return &AnswerView{
		theme:    theme,
		markdown: md,
		viewport: viewport.New(60, 10),
		width:    60,
	}
}

// SetSize sets the view size and re-wraps the content.
func (a *AnswerView) SetSize(width, height int) {
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}
	a.width = width
	a.viewport.Width = width
	a.viewport.Height = height
	a.refresh(false)
}

// Show displays rec. The scroll position resets when the record changes.
func (a *AnswerView) Show(rec model.ChatRecord) {
	changed := !a.hasRec || a.record.ID != rec.ID
	a.record = rec
	a.hasRec = true
	a.pending = ""
	a.refresh(changed)
}

// ShowPending displays a question that is still being answered.
func (a *AnswerView) ShowPending(question string) {
	a.pending = question
	a.hasRec = false
	a.refresh(true)
}

// Clear shows the empty state.
func (a *AnswerView) Clear() {
	a.hasRec = false
	a.pending = ""
	a.record = model.ChatRecord{}
	a.refresh(true)
}

// Record returns the displayed record.
func (a *AnswerView) Record() (model.ChatRecord, bool) {
	return a.record, a.hasRec
}

func (a *AnswerView) refresh(top bool) {
	a.viewport.SetContent(a.content())
	if top {
		a.viewport.GotoTop()
	}
}

func (a *AnswerView) content() string {
	width := a.width - 1
	switch {
	case a.pending != "":
		return a.theme.Question.Width(width).Render(a.pending)
	case !a.hasRec:
		return a.emptyState(width)
	}

	var b strings.Builder
	b.WriteString(a.theme.Question.Width(width).Render(a.record.Question))
	b.WriteString("\n")
	if !a.record.CreatedAt.IsZero() {
		b.WriteString(a.theme.ChatItemDate.Render(a.record.CreatedAt.Local().Format(AbsoluteDateLayout)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.markdown.Render(a.record.Answer, width))
	return b.String()
}

func (a *AnswerView) emptyState(width int) string {
	lines := []string{
		a.theme.Logo.Render("No messages yet"),
		"",
		a.theme.Placeholder.Render("Ask any question to get started."),
		a.theme.Placeholder.Render("Past questions appear in the history list."),
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

// Update handles scrolling keys and mouse wheel.
func (a *AnswerView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return cmd
}

// View renders the viewport.
func (a *AnswerView) View() string {
	return a.theme.Pane.Render(a.viewport.View())
}

// ScrollPercent reports how far the viewport is scrolled.
func (a *AnswerView) ScrollPercent() float64 {
	return a.viewport.ScrollPercent()
}
