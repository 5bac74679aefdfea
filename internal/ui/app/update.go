// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/qbot-tui/internal/api"
	"github.com/jeranaias/qbot-tui/internal/chat"
	"github.com/jeranaias/qbot-tui/internal/model"
	"github.com/jeranaias/qbot-tui/internal/session"
	"github.com/jeranaias/qbot-tui/internal/ui/components"
)

// Toast texts shown for session events.
const (
	msgLoggedOut      = "Logged out successfully"
	msgSessionExpired = "Your session has expired. Please sign in again."
	msgUnauthorized   = "Session expired. Please sign in again."
	msgSignedOutElse  = "Signed out from another window"
	msgChatDeleted    = "Chat deleted"
	msgAccountCreated = "Account created"
	msgBusy           = "Please wait for the current answer"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles a message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case NavigateMsg:
		return m, m.navigate(msg.Route)

	case SessionEventMsg:
		return m, m.handleSessionEvent(msg.Event)

	case ChatStateMsg:
		return m, m.applyState(msg.State)

	case authResultMsg:
		return m, m.handleAuthResult(msg)

	case chatOpMsg:
		return m, m.handleChatOp(msg)

	case clockTickMsg:
		return m, clockTick()

	case components.ToastAddMsg:
		return m, m.addToast(msg.Kind, msg.Message)

	case components.ToastTickMsg:
		if len(m.toasts.Tick()) > 0 {
			return m, components.ToastTickCmd()
		}
		m.toastTicking = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		if m.route == session.RouteChat {
			return m, m.answer.Update(msg)
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	// cursor blink and other textarea internals
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// NAVIGATION
// =============================================================================

// navigate shows route r after applying the guard: the chat screen needs a
// session, and the sign-in screen is skipped when one exists.
func (m *Model) navigate(r session.Route) tea.Cmd {
	authed := m.deps.Store.IsAuthenticated()
	switch {
	case r.Protected() && !authed:
		r = session.RouteAuth
	case r == session.RouteAuth && authed:
		r = session.RouteChat
	}

	prev := m.route
	if prev == r {
		return nil
	}
	m.route = r
	m.log.Debug("navigate", zap.Stringer("from", prev), zap.Stringer("to", r))

	if prev == session.RouteChat {
		m.leaveChat()
	}
	switch r {
	case session.RouteAuth:
		m.auth.Reset()
	case session.RouteChat:
		return m.enterChat()
	}
	return nil
}

func (m *Model) enterChat() tea.Cmd {
	if sess, ok := m.deps.Store.Current(); ok {
		m.shown = sess
		m.header.SetAccount(sess.User(), sess.ExpiresAt)
	}
	m.answer.Clear()
	return tea.Batch(m.applyState(m.deps.Chat.Snapshot()), m.setFocus(focusInput), m.fetchCmd())
}

func (m *Model) leaveChat() {
	m.deps.Chat.Reset()
	m.state = chat.State{}
	m.shown = session.Session{}
	m.header.ClearAccount()
	m.list.CancelDelete()
	m.list.SetRecords(nil, "")
	m.answer.Clear()
	m.input.Reset()
	m.input.Blur()
	m.spinner.Stop()
}

// =============================================================================
// SESSION EVENTS
// =============================================================================

func (m *Model) handleSessionEvent(ev session.Event) tea.Cmd {
	switch ev.Kind {
	case session.EventLogin, session.EventResume:
		m.header.SetAccount(ev.Session.User(), ev.Session.ExpiresAt)
		if m.route != session.RouteChat || sameAccount(m.shown, ev.Session) {
			m.shown = ev.Session
			return nil
		}
		return m.switchAccount(ev.Session)
	}

	m.header.ClearAccount()
	switch ev.Reason {
	case session.ReasonUser:
		return m.addToast(components.ToastKindSuccess, msgLoggedOut)
	case session.ReasonExpired:
		return m.addToast(components.ToastKindWarning, msgSessionExpired)
	case session.ReasonUnauthorized:
		return m.addToast(components.ToastKindWarning, msgUnauthorized)
	default:
		return m.addToast(components.ToastKindStatus, msgSignedOutElse)
	}
}

// switchAccount drops everything shown for the previous account and loads
// the history of sess. The route stays on the chat screen.
func (m *Model) switchAccount(sess session.Session) tea.Cmd {
	m.log.Info("account changed", zap.String("email", sess.UserEmail))
	m.deps.Chat.Reset()
	m.shown = sess
	m.list.CancelDelete()
	m.list.SetRecords(nil, "")
	m.answer.Clear()
	m.input.Reset()
	return tea.Batch(m.applyState(m.deps.Chat.Snapshot()), m.fetchCmd())
}

func sameAccount(a, b session.Session) bool {
	return a.Token == b.Token && strings.EqualFold(a.UserEmail, b.UserEmail)
}

// =============================================================================
// CHAT STATE
// =============================================================================

// applyState mirrors a controller snapshot into the widgets.
func (m *Model) applyState(st chat.State) tea.Cmd {
	m.state = st
	if m.route != session.RouteChat {
		return nil
	}

	m.list.SetLoading(st.Loading)
	m.list.SetDeleting(st.Deleting)
	m.list.SetRecords(st.Records, st.Selected)

	rec, ok := st.SelectedRecord()
	switch {
	case st.Submitting:
		// the pending question stays on screen
	case ok:
		m.answer.Show(rec)
	default:
		m.answer.Clear()
	}

	switch {
	case st.Submitting:
		return m.spinner.Start("Thinking")
	case st.Loading:
		return m.spinner.Start("Loading history")
	default:
		m.spinner.Stop()
		return nil
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) authCmd(req components.AuthRequest) tea.Cmd {
	client, store := m.deps.Client, m.deps.Store
	return m.exec(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		res := authResultMsg{req: req}
		if req.Mode == components.AuthRegister {
			if _, err := client.Register(ctx, req.Name, req.Email, req.Password); err != nil {
				res.err = err
				return res
			}
			res.registered = true
		}

		resp, err := client.Login(ctx, req.Email, req.Password)
		if err == nil {
			err = store.Login(resp.Credentials())
		}
		res.err = err
		return res
	})
}

func (m *Model) fetchCmd() tea.Cmd {
	ctl := m.deps.Chat
	return m.exec(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := ctl.FetchHistory(ctx)
		return chatOpMsg{op: opFetch, err: err}
	})
}

func (m *Model) submitCmd(text string) tea.Cmd {
	ctl := m.deps.Chat
	return m.exec(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		rec, err := ctl.SubmitQuestion(ctx, text)
		return chatOpMsg{op: opSubmit, id: rec.ID, err: err}
	})
}

func (m *Model) deleteCmd(id model.RecordID) tea.Cmd {
	ctl := m.deps.Chat
	return m.exec(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return chatOpMsg{op: opDelete, id: id, err: ctl.DeleteChat(ctx, id)}
	})
}

func (m *Model) openCmd(id model.RecordID) tea.Cmd {
	ctl := m.deps.Chat
	return m.exec(func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := ctl.OpenChat(ctx, id)
		return chatOpMsg{op: opOpen, id: id, err: err}
	})
}

// =============================================================================
// RESULTS
// =============================================================================

func (m *Model) handleAuthResult(msg authResultMsg) tea.Cmd {
	switch {
	case msg.err == nil:
		m.auth.Reset()
		if msg.registered {
			return m.addToast(components.ToastKindSuccess, msgAccountCreated)
		}
		return nil

	case msg.registered:
		// the account exists; let the user sign in by hand
		m.log.Warn("sign in after register failed", zap.Error(msg.err))
		m.auth.SetMode(components.AuthLogin)
		m.auth.SetEmail(msg.req.Email)
		m.auth.SetNotice(msgAccountCreated + ". Please sign in.")
		return nil
	}

	m.auth.SetError(api.Describe(msg.err))
	return nil
}

func (m *Model) handleChatOp(msg chatOpMsg) tea.Cmd {
	err := msg.err
	switch {
	case err == nil:
		switch msg.op {
		case opSubmit:
			m.input.Reset()
		case opDelete:
			return m.addToast(components.ToastKindSuccess, msgChatDeleted)
		}
		return nil
	case errors.Is(err, chat.ErrSessionInvalid), errors.Is(err, chat.ErrEmptyQuestion):
		// the store has already moved to the sign-in screen
		return nil
	case errors.Is(err, chat.ErrBusy):
		return m.addToast(components.ToastKindWarning, msgBusy)
	}

	m.log.Debug("chat operation failed", zap.Stringer("op", msg.op), zap.Error(err))
	text := api.Describe(err)
	if msg.op == opFetch {
		text = "Could not load history: " + text
	}
	return m.addToast(components.ToastKindError, text)
}

func (m *Model) addToast(kind components.ToastKind, text string) tea.Cmd {
	m.toasts.Add(kind, text)
	if m.toastTicking {
		return nil
	}
	m.toastTicking = true
	return components.ToastTickCmd()
}

// =============================================================================
// KEYS
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return tea.Quit
	}

	switch m.route {
	case session.RouteLanding:
		switch {
		case key.Matches(msg, m.keys.Enter):
			return m.navigate(session.RouteAuth)
		case key.Matches(msg, m.keys.QuitSoft):
			m.quitting = true
			return tea.Quit
		}
	case session.RouteNotFound:
		if key.Matches(msg, m.keys.Enter, m.keys.Back) {
			return m.navigate(session.RouteLanding)
		}
	case session.RouteAuth:
		return m.authKey(msg)
	case session.RouteChat:
		return m.chatKey(msg)
	}
	return nil
}

func (m *Model) authKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Back) && !m.auth.Pending() {
		return m.navigate(session.RouteLanding)
	}
	req, cmd := m.auth.Update(msg)
	if req == nil {
		return cmd
	}
	return tea.Batch(cmd, m.authCmd(*req))
}

func (m *Model) chatKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Logout):
		if err := m.deps.Store.Logout(session.ReasonUser); err != nil {
			return m.addToast(components.ToastKindError, "Could not clear the saved session")
		}
		return nil
	case key.Matches(msg, m.keys.NewChat):
		m.newChat()
		return m.setFocus(focusInput)
	case key.Matches(msg, m.keys.Refresh):
		return m.fetchCmd()
	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusInput {
			return m.setFocus(focusList)
		}
		return m.setFocus(focusInput)
	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		return m.answer.Update(msg)
	}

	if m.focus == focusList {
		return m.listKey(msg)
	}
	return m.inputKey(msg)
}

func (m *Model) listKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.list.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.list.MoveDown()
	case key.Matches(msg, m.keys.Home):
		m.list.Home()
	case key.Matches(msg, m.keys.End):
		m.list.End()
	case key.Matches(msg, m.keys.Open):
		rec, ok := m.list.Current()
		if !ok {
			m.newChat()
			return m.setFocus(focusInput)
		}
		m.deps.Chat.Select(rec.ID)
		m.answer.Show(rec)
		cmd := m.openCmd(rec.ID)
		if m.theme.SidebarWidth() == 0 {
			return tea.Batch(cmd, m.setFocus(focusInput))
		}
		return cmd
	case key.Matches(msg, m.keys.Delete):
		if id, ok := m.list.AskDelete(); ok {
			return m.deleteCmd(id)
		}
	case key.Matches(msg, m.keys.Cancel):
		if !m.list.CancelDelete() {
			return m.setFocus(focusInput)
		}
	}
	return nil
}

func (m *Model) inputKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Submit) {
		return m.submit()
	}
	if m.state.Submitting {
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// submit sends the input as a question. Blank input and a second submit
// while one is answered do nothing.
func (m *Model) submit() tea.Cmd {
	if m.state.Submitting {
		return nil
	}
	text := m.input.Value()
	question := chat.NormalizeQuestion(text)
	if question == "" {
		return nil
	}
	m.state.Submitting = true
	m.answer.ShowPending(question)
	return tea.Batch(m.spinner.Start("Thinking"), m.submitCmd(text))
}

func (m *Model) newChat() {
	m.deps.Chat.ClearSelection()
	m.answer.Clear()
}
