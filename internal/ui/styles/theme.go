// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme (and the ui.theme config key).
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds every style the terminal client renders with.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// FRAME
	// ==========================================================================

	App         lipgloss.Style
	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderUser  lipgloss.Style
	HeaderMeta  lipgloss.Style
	Footer      lipgloss.Style
	KeyHint     lipgloss.Style
	KeyDesc     lipgloss.Style

	// ==========================================================================
	// LANDING / AUTH / NOT FOUND
	// ==========================================================================

	Logo        lipgloss.Style
	Tagline     lipgloss.Style
	Card        lipgloss.Style
	CardTitle   lipgloss.Style
	FieldLabel  lipgloss.Style
	FieldActive lipgloss.Style
	Button      lipgloss.Style
	ButtonFocus lipgloss.Style
	Link        lipgloss.Style
	Big         lipgloss.Style

	// ==========================================================================
	// CHAT
	// ==========================================================================

	Sidebar         lipgloss.Style
	SidebarFocused  lipgloss.Style
	SidebarTitle    lipgloss.Style
	ChatItem        lipgloss.Style
	ChatItemActive  lipgloss.Style
	ChatItemDate    lipgloss.Style
	ChatItemPending lipgloss.Style
	Pane            lipgloss.Style
	PaneFocused     lipgloss.Style
	Question        lipgloss.Style
	Placeholder     lipgloss.Style
	InputBox        lipgloss.Style
	InputBoxFocused lipgloss.Style
	InputPrompt     lipgloss.Style
	Thinking        lipgloss.Style

	// ==========================================================================
	// FEEDBACK
	// ==========================================================================

	ToastSuccess lipgloss.Style
	ToastError   lipgloss.Style
	ToastWarning lipgloss.Style
	ToastInfo    lipgloss.Style
	ErrorText    lipgloss.Style
	Confirm      lipgloss.Style
}

// NewTheme builds a theme. mode is "auto", "dark" or "light"; auto asks the
// terminal for its background.
func NewTheme(mode string) *Theme {
	isDark := true
	switch strings.ToLower(mode) {
	case ModeDark:
		lipgloss.SetHasDarkBackground(true)
	case ModeLight:
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()

	// Frame
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextPrimary).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.HeaderUser = lipgloss.NewStyle().Foreground(Cyan)
	t.HeaderMeta = lipgloss.NewStyle().Foreground(TextMuted)
	t.Footer = lipgloss.NewStyle().Foreground(TextSecondary).Padding(0, 1)
	t.KeyHint = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.KeyDesc = lipgloss.NewStyle().Foreground(TextMuted)

	// Landing / auth
	t.Logo = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.Tagline = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
	t.Card = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(1, 3)
	t.CardTitle = lipgloss.NewStyle().Bold(true).Foreground(TextPrimary).MarginBottom(1)
	t.FieldLabel = lipgloss.NewStyle().Foreground(TextSecondary)
	t.FieldActive = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.Button = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceBright).
		Padding(0, 2)
	t.ButtonFocus = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Purple).
		Bold(true).
		Padding(0, 2)
	t.Link = lipgloss.NewStyle().Foreground(Cyan).Underline(true)
	t.Big = lipgloss.NewStyle().Bold(true).Foreground(Rose)

	// Chat
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)
	t.SidebarFocused = t.Sidebar.BorderForeground(Purple)
	t.SidebarTitle = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary).MarginBottom(1)
	t.ChatItem = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(1)
	t.ChatItemActive = lipgloss.NewStyle().
		Foreground(Purple).
		Background(SelectionBg).
		Bold(true).
		PaddingLeft(1)
	t.ChatItemDate = lipgloss.NewStyle().Foreground(TextMuted).PaddingLeft(1)
	t.ChatItemPending = lipgloss.NewStyle().Foreground(Rose).Italic(true).PaddingLeft(1)
	t.Pane = lipgloss.NewStyle().PaddingLeft(1)
	t.PaneFocused = t.Pane
	t.Question = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(QuestionBg).
		Bold(true).
		Padding(0, 1)
	t.Placeholder = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.InputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputBoxFocused = t.InputBox.BorderForeground(Purple)
	t.InputPrompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.Thinking = lipgloss.NewStyle().Foreground(Purple).Italic(true)

	// Feedback
	toast := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		Padding(0, 1)
	t.ToastSuccess = toast.BorderForeground(Emerald).Foreground(Emerald)
	t.ToastError = toast.BorderForeground(Rose).Foreground(Rose)
	t.ToastWarning = toast.BorderForeground(Amber).Foreground(Amber)
	t.ToastInfo = toast.BorderForeground(Cyan).Foreground(TextPrimary)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose)
	t.Confirm = lipgloss.NewStyle().Foreground(Rose).Bold(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns, history list hidden
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// SidebarWidth is the history list width for the current layout, 0 when
// the list is hidden.
func (t *Theme) SidebarWidth() int {
	switch t.GetLayoutMode() {
	case LayoutNarrow:
		return 0
	case LayoutMedium:
		return 28
	default:
		return 36
	}
}
