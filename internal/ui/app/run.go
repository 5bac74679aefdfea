// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/qbot-tui/internal/chat"
	"github.com/jeranaias/qbot-tui/internal/session"
)

// =============================================================================
// MAILBOX
// =============================================================================

// mailbox queues messages from store and controller callbacks and delivers
// them in order on its own goroutine. Callbacks may fire inside Update, where
// a blocking Program.Send would deadlock, so post never blocks.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []tea.Msg
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) post(msg tea.Msg) {
	m.mu.Lock()
	if !m.closed {
		m.queue = append(m.queue, msg)
		m.cond.Signal()
	}
	m.mu.Unlock()
}

// deliver calls send for each queued message until close.
func (m *mailbox) deliver(send func(tea.Msg)) {
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if m.closed {
			m.mu.Unlock()
			return
		}
		msg := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()

		send(msg)
	}
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	m.cond.Broadcast()
	m.mu.Unlock()
}

// =============================================================================
// BINDING
// =============================================================================

// Bind routes navigation, session events and chat state changes to post.
// post must not block. The returned function undoes the binding.
func Bind(store *session.Store, ctl *chat.Controller, post func(tea.Msg)) (unbind func()) {
	store.SetNavigator(session.NavigatorFunc(func(r session.Route) {
		post(NavigateMsg{Route: r})
	}))
	unsubStore := store.Subscribe(func(ev session.Event) {
		post(SessionEventMsg{Event: ev})
	})
	unsubChat := ctl.Subscribe(func(st chat.State) {
		post(ChatStateMsg{State: st})
	})

	return func() {
		unsubChat()
		unsubStore()
		store.SetNavigator(nil)
	}
}

// =============================================================================
// RUN
// =============================================================================

// Run starts the full-screen UI on route and blocks until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, deps Deps, route session.Route) error {
	m := New(deps, route)

	p := tea.NewProgram(
		m,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	box := newMailbox()
	unbind := Bind(deps.Store, deps.Chat, box.post)
	go box.deliver(p.Send)
	defer func() {
		unbind()
		box.close()
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
