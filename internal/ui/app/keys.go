// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the application's key bindings. Bindings that only apply to
// one screen are checked only while that screen is shown.
type KeyMap struct {
	// Global
	Quit   key.Binding
	Logout key.Binding

	// Public screens
	Enter    key.Binding
	QuitSoft key.Binding
	Back     key.Binding
	Toggle   key.Binding

	// Chat screen
	Focus    key.Binding
	NewChat  key.Binding
	Refresh  key.Binding
	Submit   key.Binding
	Newline  key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	// History list
	Up     key.Binding
	Down   key.Binding
	Home   key.Binding
	End    key.Binding
	Open   key.Binding
	Delete key.Binding
	Cancel key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		Logout: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "logout"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "continue"),
		),
		QuitSoft: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "login/register"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "switch pane"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "refresh"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "ask"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("C-j", "newline"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("PgUp/C-u", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("PgDn/C-d", "scroll down"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "down"),
		),
		Home: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "top"),
		),
		End: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "bottom"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d d", "delete"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// =============================================================================
// HELP
// =============================================================================

// bindings adapts a fixed list to help.KeyMap.
type bindings []key.Binding

func (b bindings) ShortHelp() []key.Binding { return b }

func (b bindings) FullHelp() [][]key.Binding { return [][]key.Binding{b} }

func (k KeyMap) landingHelp() bindings {
	return bindings{withHelp(k.Enter, "enter", "get started"), k.QuitSoft}
}

func (k KeyMap) authHelp() bindings {
	return bindings{withHelp(k.Focus, "tab", "next field"), withHelp(k.Enter, "enter", "submit"), k.Toggle, k.Back, k.Quit}
}

func (k KeyMap) notFoundHelp() bindings {
	return bindings{withHelp(k.Enter, "enter", "back to home"), k.Quit}
}

func (k KeyMap) inputHelp() bindings {
	return bindings{k.Submit, k.Newline, k.Focus, k.NewChat, k.PageUp, k.Refresh, k.Logout, k.Quit}
}

func (k KeyMap) listHelp() bindings {
	return bindings{k.Up, k.Down, k.Open, k.Delete, k.Focus, k.NewChat, k.Refresh, k.Logout, k.Quit}
}

func withHelp(b key.Binding, keys, desc string) key.Binding {
	b.SetHelp(keys, desc)
	return b
}
