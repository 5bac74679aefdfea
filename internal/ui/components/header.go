// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/qbot-tui/internal/model"
	"github.com/jeranaias/qbot-tui/internal/ui/styles"
	"github.com/jeranaias/qbot-tui/internal/util"
)

// ExpiryWarning is when the remaining session time turns amber.
const ExpiryWarning = 5 * time.Minute

// Header is the one-line title bar: brand on the left, account on the right.
type Header struct {
	Title string
	Width int

	user      model.User
	expiresAt time.Time
	signedIn  bool
	theme     *styles.Theme
}

// NewHeader creates a header for a signed-out user.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{Title: "QBot", Width: 80, theme: theme}
}

// SetWidth updates the header width
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// SetAccount shows the signed-in user and when the session ends.
func (h *Header) SetAccount(user model.User, expiresAt time.Time) {
	h.user = user
	h.expiresAt = expiresAt
	h.signedIn = true
}

// ClearAccount returns the header to the signed-out state.
func (h *Header) ClearAccount() {
	h.user = model.User{}
	h.expiresAt = time.Time{}
	h.signedIn = false
}

// View renders the header at now.
func (h *Header) View(now time.Time) string {
	width := h.Width
	if width < 20 {
		width = 20
	}
	inner := width - 2 // padding

	left := h.theme.HeaderBrand.Render(h.Title)

	var right string
	if h.signedIn {
		right = h.theme.HeaderUser.Render(h.user.DisplayName())
		if h.user.Email != "" && h.user.Name != "" && width >= 60 {
			right += h.theme.HeaderMeta.Render(" <" + h.user.Email + ">")
		}
		if !h.expiresAt.IsZero() {
			remaining := h.expiresAt.Sub(now)
			style := h.theme.HeaderMeta
			if remaining < ExpiryWarning {
				style = lipgloss.NewStyle().Foreground(styles.Amber)
			}
			right += style.Render("  session " + util.FormatRemaining(remaining))
		}
	}

	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		// drop the account details before the brand
		right = util.TruncateWidth(h.user.DisplayName(), inner-lipgloss.Width(left)-1)
		right = h.theme.HeaderUser.Render(right)
		gap = inner - lipgloss.Width(left) - lipgloss.Width(right)
		if gap < 1 {
			gap = 1
		}
	}

	line := left + lipgloss.NewStyle().Width(gap).Render("") + right
	return h.theme.Header.Width(width).Render(line)
}
