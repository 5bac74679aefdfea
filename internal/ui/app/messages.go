// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/qbot-tui/internal/chat"
	"github.com/jeranaias/qbot-tui/internal/model"
	"github.com/jeranaias/qbot-tui/internal/session"
	"github.com/jeranaias/qbot-tui/internal/ui/components"
)

// =============================================================================
// BRIDGED MESSAGES
// =============================================================================

// NavigateMsg asks the model to show a route.
type NavigateMsg struct {
	Route session.Route
}

// SessionEventMsg carries a session.Store event.
type SessionEventMsg struct {
	Event session.Event
}

// ChatStateMsg carries a chat.Controller snapshot.
type ChatStateMsg struct {
	State chat.State
}

// =============================================================================
// COMMAND RESULTS
// =============================================================================

// authResultMsg is the outcome of a login or register submit.
type authResultMsg struct {
	req components.AuthRequest
	// registered is set once the account exists, even if signing in failed
	registered bool
	err        error
}

type chatOp int

const (
	opFetch chatOp = iota
	opSubmit
	opDelete
	opOpen
)

func (o chatOp) String() string {
	switch o {
	case opFetch:
		return "fetch"
	case opSubmit:
		return "submit"
	case opDelete:
		return "delete"
	default:
		return "open"
	}
}

// chatOpMsg is the outcome of a chat.Controller call.
type chatOpMsg struct {
	op  chatOp
	id  model.RecordID
	err error
}

// clockTickMsg refreshes time-dependent text such as the session countdown.
type clockTickMsg time.Time

const clockInterval = time.Second

func clockTick() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg {
		return clockTickMsg(t)
	})
}
