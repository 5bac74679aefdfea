// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/qbot-tui/internal/ui/styles"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// ToastKind selects a toast's color and indicator.
type ToastKind int

const (
	ToastKindStatus ToastKind = iota
	ToastKindError
	ToastKindWarning
	ToastKindSuccess
)

const (
	// DefaultToastDuration applies to status and success toasts.
	DefaultToastDuration = 4 * time.Second
	// ErrorToastDuration is longer so the detail can be read.
	ErrorToastDuration   = 8 * time.Second
	WarningToastDuration = 6 * time.Second

	// MaxToasts is how many toasts are visible at once.
	MaxToasts = 5

	// ToastTickInterval is how often expired toasts are swept.
	ToastTickInterval = 100 * time.Millisecond
)

// Toast is a non-blocking notification that dismisses itself.
type Toast struct {
	ID        int
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

// durationFor returns the display time for kind.
func durationFor(kind ToastKind) time.Duration {
	switch kind {
	case ToastKindError:
		return ErrorToastDuration
	case ToastKindWarning:
		return WarningToastDuration
	default:
		return DefaultToastDuration
	}
}

// Remaining returns how long the toast stays visible after now.
func (t Toast) Remaining(now time.Time) time.Duration {
	left := t.Duration - now.Sub(t.CreatedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the toast should be gone at now.
func (t Toast) Expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// =============================================================================
// TOAST MANAGER
// =============================================================================

// ToastManager keeps the visible toasts, newest first.
type ToastManager struct {
	mu     sync.Mutex
	toasts []Toast
	nextID int
	now    func() time.Time
}

// NewToastManager creates an empty manager using the wall clock.
func NewToastManager() *ToastManager {
	return &ToastManager{nextID: 1, now: time.Now}
}

// SetClock replaces the clock (tests).
func (m *ToastManager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Add shows message as a toast of kind and returns its id.
func (m *ToastManager) Add(kind ToastKind, message string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := Toast{
		ID:        m.nextID,
		Message:   message,
		Kind:      kind,
		CreatedAt: m.now(),
		Duration:  durationFor(kind),
	}
	m.nextID++

	m.toasts = append([]Toast{t}, m.toasts...)
	if len(m.toasts) > MaxToasts {
		m.toasts = m.toasts[:MaxToasts]
	}
	return t.ID
}

func (m *ToastManager) AddError(message string) int   { return m.Add(ToastKindError, message) }
func (m *ToastManager) AddWarning(message string) int { return m.Add(ToastKindWarning, message) }
func (m *ToastManager) AddStatus(message string) int  { return m.Add(ToastKindStatus, message) }
func (m *ToastManager) AddSuccess(message string) int { return m.Add(ToastKindSuccess, message) }

// Dismiss removes a toast early.
func (m *ToastManager) Dismiss(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.toasts {
		if t.ID == id {
			m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
			return
		}
	}
}

// Tick drops expired toasts and returns the rest.
func (m *ToastManager) Tick() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	active := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.Expired(now) {
			active = append(active, t)
		}
	}
	m.toasts = active
	return append([]Toast(nil), m.toasts...)
}

// Toasts returns a copy of the visible toasts.
func (m *ToastManager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Toast(nil), m.toasts...)
}

// Clear removes all toasts.
func (m *ToastManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// ToastTickMsg drives expiry.
type ToastTickMsg struct {
	Time time.Time
}

// ToastAddMsg asks the root model to show a toast.
type ToastAddMsg struct {
	Message string
	Kind    ToastKind
}

// ToastTickCmd schedules the next sweep.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(ToastTickInterval, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// ShowToast returns a command that delivers a ToastAddMsg.
func ShowToast(kind ToastKind, message string) tea.Cmd {
	return func() tea.Msg { return ToastAddMsg{Kind: kind, Message: message} }
}

// =============================================================================
// RENDERING
// =============================================================================

// RenderToast renders one toast no wider than width.
func RenderToast(theme *styles.Theme, t Toast, width int) string {
	maxWidth := 60
	if width > 0 && width-4 < maxWidth {
		maxWidth = width - 4
	}
	if maxWidth < 20 {
		maxWidth = 20
	}

	var style lipgloss.Style
	var icon string
	switch t.Kind {
	case ToastKindError:
		style, icon = theme.ToastError, styles.StatusIndicators.Error
	case ToastKindWarning:
		style, icon = theme.ToastWarning, styles.StatusIndicators.Warning
	case ToastKindSuccess:
		style, icon = theme.ToastSuccess, styles.StatusIndicators.Success
	default:
		style, icon = theme.ToastInfo, styles.StatusIndicators.Info
	}

	// border + padding take 4 cells
	body := lipgloss.NewStyle().Width(maxWidth - 4).Render(icon + " " + t.Message)
	return style.Render(body)
}

// RenderToastStack renders toasts right-aligned, newest at the bottom.
func RenderToastStack(theme *styles.Theme, toasts []Toast, width int) string {
	if len(toasts) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(toasts))
	for i := len(toasts) - 1; i >= 0; i-- {
		rendered = append(rendered, RenderToast(theme, toasts[i], width))
	}
	stack := lipgloss.JoinVertical(lipgloss.Right, rendered...)
	if width <= 0 {
		return stack
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, stack)
}

// Lines returns the number of lines s occupies.
func Lines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
