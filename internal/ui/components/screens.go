// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/qbot-tui/internal/ui/styles"
)

// =============================================================================
// LANDING
// =============================================================================

type feature struct {
	title string
	text  string
}

var landingFeatures = []feature{
	{"Smart Conversations", "Ask in plain language and get answers that stay on topic."},
	{"Instant Answers", "Responses arrive formatted, with code and lists rendered in place."},
	{"Secure & Private", "Your history is tied to your account and stays behind your sign-in."},
}

// RenderLanding renders the public start screen.
func RenderLanding(theme *styles.Theme, width, height int) string {
	title := lipgloss.JoinVertical(lipgloss.Center,
		theme.Logo.Render("QBot"),
		"",
		lipgloss.NewStyle().Bold(true).Render("Your AI-Powered Question"),
		theme.HeaderBrand.Render("Answering Assistant"),
		"",
		theme.Tagline.Width(minInt(60, width-4)).Align(lipgloss.Center).
			Render("Get instant, accurate answers to your questions."),
	)

	colWidth := 24
	cols := make([]string, 0, len(landingFeatures))
	for _, f := range landingFeatures {
		cols = append(cols, lipgloss.NewStyle().Width(colWidth).Padding(0, 1).Render(
			theme.HeaderUser.Bold(true).Render(f.title)+"\n"+theme.KeyDesc.Render(f.text)))
	}
	var features string
	if width >= colWidth*len(cols)+4 {
		features = lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	} else {
		features = lipgloss.JoinVertical(lipgloss.Left, cols...)
	}

	actions := theme.ButtonFocus.Render("Get Started") + "  " +
		theme.KeyHint.Render("enter") + theme.KeyDesc.Render(" sign in  ") +
		theme.KeyHint.Render("q") + theme.KeyDesc.Render(" quit")

	body := lipgloss.JoinVertical(lipgloss.Center, title, "", features, "", actions)
	if width <= 0 || height <= 0 {
		return body
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, body)
}

// =============================================================================
// NOT FOUND
// =============================================================================

// RenderNotFound renders the screen for an unknown route.
func RenderNotFound(theme *styles.Theme, width, height int) string {
	body := lipgloss.JoinVertical(lipgloss.Center,
		theme.Logo.Render("QBot"),
		"",
		theme.Big.Render("404"),
		lipgloss.NewStyle().Bold(true).Render("Page Not Found"),
		theme.KeyDesc.Render("The page you're looking for doesn't exist or has been moved."),
		"",
		theme.ButtonFocus.Render("Back to Home")+" "+theme.KeyDesc.Render("(enter)"),
	)
	if width <= 0 || height <= 0 {
		return body
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, body)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
