// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/qbot-tui/internal/ui/styles"
	"github.com/jeranaias/qbot-tui/internal/util"
)

// Spinner shows that a request is in flight, with the elapsed time.
type Spinner struct {
	spinner spinner.Model
	theme   *styles.Theme

	message string
	started time.Time
	active  bool
}

// NewSpinner creates an inactive ASCII spinner.
func NewSpinner(theme *styles.Theme) Spinner {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = theme.Thinking
	return Spinner{spinner: s, theme: theme, message: "Loading"}
}

// Start activates the spinner with message and returns the first tick.
func (s *Spinner) Start(message string) tea.Cmd {
	s.message = message
	s.started = time.Now()
	if s.active {
		return nil
	}
	s.active = true
	return s.spinner.Tick
}

// Stop hides the spinner. Pending ticks are ignored.
func (s *Spinner) Stop() {
	s.active = false
}

// Active reports whether the spinner is shown.
func (s Spinner) Active() bool {
	return s.active
}

// Update advances the animation.
func (s Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	if !s.active {
		return s, nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return s, cmd
}

// View renders e.g. "/ Thinking... 4s".
func (s Spinner) View() string {
	if !s.active {
		return ""
	}
	out := s.spinner.View() + " " + s.theme.Thinking.Render(s.message+"...")
	if elapsed := time.Since(s.started); elapsed >= time.Second {
		out += " " + s.theme.HeaderMeta.Render(util.FormatRemaining(elapsed))
	}
	return out
}
