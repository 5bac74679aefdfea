// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the root Bubble Tea model of the qbot terminal UI.
//
// It owns the four screens (landing, sign-in, chat and not found), applies the
// route guard, and turns session and chat controller state into views. All
// network work runs in commands; results come back as messages.
package app

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/qbot-tui/internal/api"
	"github.com/jeranaias/qbot-tui/internal/chat"
	"github.com/jeranaias/qbot-tui/internal/config"
	"github.com/jeranaias/qbot-tui/internal/logging"
	"github.com/jeranaias/qbot-tui/internal/session"
	"github.com/jeranaias/qbot-tui/internal/ui/components"
	"github.com/jeranaias/qbot-tui/internal/ui/styles"
)

// Deps are the long-lived services the UI drives.
type Deps struct {
	Config *config.Config
	Store  *session.Store
	Client *api.Client
	Chat   *chat.Controller
	Logger *zap.Logger
}

// focus is the chat screen pane that receives keys.
type focus int

const (
	focusInput focus = iota
	focusList
)

// requestTimeout bounds each command's network call on top of the client's
// own timeout.
const requestTimeout = 3 * time.Minute

// =============================================================================
// MODEL
// =============================================================================

// Model is the root model.
type Model struct {
	deps Deps
	log  *zap.Logger
	keys KeyMap

	route    session.Route
	start    session.Route
	focus    focus
	state    chat.State
	shown    session.Session // account whose history is on screen
	width    int
	height   int
	quitting bool

	theme   *styles.Theme
	header  *components.Header
	list    *components.ChatList
	answer  *components.AnswerView
	auth    *components.AuthForm
	input   textarea.Model
	spinner components.Spinner
	toasts  *components.ToastManager
	help    help.Model

	toastTicking bool

	now func() time.Time
	// exec turns blocking work into a command; tests replace it to run the
	// work synchronously.
	exec func(func() tea.Msg) tea.Cmd
}

// New creates the model. route is the first screen requested; the route
// guard still applies to it.
func New(deps Deps, route session.Route) *Model {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	theme := styles.NewTheme(cfg.UI.Theme)

	m := &Model{
		deps:    deps,
		log:     logging.OrNop(deps.Logger).Named("ui"),
		keys:    DefaultKeyMap(),
		route:   session.RouteLanding,
		start:   route,
		state:   deps.Chat.Snapshot(),
		width:   80,
		height:  24,
		theme:   theme,
		header:  components.NewHeader(theme),
		list:    components.NewChatList(theme),
		answer:  components.NewAnswerView(theme, components.NewMarkdown(cfg.UI.Markdown, cfg.UI.Theme)),
		auth:    components.NewAuthForm(theme),
		input:   newInput(),
		spinner: components.NewSpinner(theme),
		toasts:  components.NewToastManager(),
		help:    help.New(),
		now:     time.Now,
		exec: func(fn func() tea.Msg) tea.Cmd {
			return fn
		},
	}
	m.layout()
	return m
}

func newInput() textarea.Model {
	ta := textarea.New()
	ta.Placeholder = "Ask a question..."
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	return ta
}

// Init navigates to the start route and starts the clock.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return NavigateMsg{Route: m.start} },
		clockTick(),
		textarea.Blink,
	)
}

// Route returns the screen being shown.
func (m *Model) Route() session.Route {
	return m.route
}

// =============================================================================
// LAYOUT
// =============================================================================

const (
	inputHeight   = 3
	spinnerHeight = 1
)

// layout distributes the window between header, footer and the panes.
func (m *Model) layout() {
	m.theme.SetSize(m.width, m.height)
	m.header.SetWidth(m.width)
	m.auth.SetWidth(m.width)
	m.help.Width = m.width - 2

	body := m.bodyHeight()
	sidebar := m.theme.SidebarWidth()
	if sidebar == 0 {
		// narrow: the list and the conversation take turns
		m.list.SetSize(m.width, body)
	} else {
		m.list.SetSize(sidebar, body)
	}

	paneWidth := m.width - sidebar
	inputFrame := m.theme.InputBox.GetHorizontalFrameSize()
	m.input.SetWidth(paneWidth - inputFrame - 1)

	answerHeight := body - inputHeight - m.theme.InputBox.GetVerticalFrameSize() - spinnerHeight
	m.answer.SetSize(paneWidth-m.theme.Pane.GetHorizontalFrameSize(), answerHeight)
}

// bodyHeight is the height left after the header and footer lines.
func (m *Model) bodyHeight() int {
	h := m.height - 2
	if h < 6 {
		h = 6
	}
	return h
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	m.list.SetFocused(f == focusList)
	if f == focusInput {
		m.list.CancelDelete()
		return m.input.Focus()
	}
	m.input.Blur()
	return nil
}
