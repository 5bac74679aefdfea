// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/qbot-tui/internal/api"
	"github.com/jeranaias/qbot-tui/internal/session"
	"github.com/jeranaias/qbot-tui/internal/ui/components"
	"github.com/jeranaias/qbot-tui/internal/ui/styles"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the header, the current screen and the key help line.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	height := m.bodyHeight()
	var body string
	switch m.route {
	case session.RouteLanding:
		body = components.RenderLanding(m.theme, m.width, height)
	case session.RouteAuth:
		body = m.auth.View(m.width, height)
	case session.RouteChat:
		body = m.chatView()
	default:
		body = components.RenderNotFound(m.theme, m.width, height)
	}
	body = lipgloss.NewStyle().Height(height).MaxHeight(height).Render(body)
	body = m.overlayToasts(body)

	footer := m.theme.Footer.Render(m.help.View(m.helpKeys()))
	return lipgloss.JoinVertical(lipgloss.Left, m.header.View(m.now()), body, footer)
}

func (m *Model) chatView() string {
	now := m.now()
	if m.theme.SidebarWidth() == 0 {
		if m.focus == focusList {
			return m.list.View(now)
		}
		return m.conversationView()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.list.View(now), m.conversationView())
}

func (m *Model) conversationView() string {
	width := m.width - m.theme.SidebarWidth()

	status := m.spinner.View()
	if status == "" && m.state.Err != nil {
		status = m.theme.ErrorText.Render(styles.StatusIndicators.Error + " " + api.Describe(m.state.Err))
	}
	status = lipgloss.NewStyle().PaddingLeft(1).MaxWidth(width).Height(spinnerHeight).Render(status)

	box := m.theme.InputBox
	if m.focus == focusInput {
		box = m.theme.InputBoxFocused
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.answer.View(), status, box.Render(m.input.View()))
}

// overlayToasts draws the toast stack over the top right of body.
func (m *Model) overlayToasts(body string) string {
	toasts := m.toasts.Toasts()
	if len(toasts) == 0 {
		return body
	}
	stack := strings.Split(components.RenderToastStack(m.theme, toasts, m.width), "\n")
	lines := strings.Split(body, "\n")
	if len(stack) > len(lines) {
		stack = stack[len(stack)-len(lines):]
	}
	for i, line := range stack {
		if strings.TrimSpace(line) != "" {
			lines[i] = line
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) helpKeys() bindings {
	switch m.route {
	case session.RouteLanding:
		return m.keys.landingHelp()
	case session.RouteAuth:
		return m.keys.authHelp()
	case session.RouteChat:
		if m.focus == focusList {
			return m.keys.listHelp()
		}
		return m.keys.inputHelp()
	default:
		return m.keys.notFoundHelp()
	}
}
