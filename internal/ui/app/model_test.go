// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/qbot-tui/internal/api"
	"github.com/jeranaias/qbot-tui/internal/apitest"
	"github.com/jeranaias/qbot-tui/internal/chat"
	"github.com/jeranaias/qbot-tui/internal/config"
	"github.com/jeranaias/qbot-tui/internal/model"
	"github.com/jeranaias/qbot-tui/internal/session"
	"github.com/jeranaias/qbot-tui/internal/storage"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "analytical-engine"
)

// =============================================================================
// HARNESS
// =============================================================================

// harness drives a Model without a Program: commands created through exec
// are queued and run by settle, and bridged messages are delivered in order.
type harness struct {
	t     *testing.T
	srv   *apitest.Server
	kv    storage.Store
	store *session.Store
	ctl   *chat.Controller
	m     *Model

	mu     sync.Mutex
	clock  time.Time
	posted chan tea.Msg
	work   []func() tea.Msg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		clock:  time.Now(),
		posted: make(chan tea.Msg, 1024),
	}

	h.srv = apitest.Start(t)
	_, err := h.srv.AddUser("Ada Lovelace", testEmail, testPassword)
	require.NoError(t, err)

	cfg := session.DefaultConfig()
	cfg.Now = h.now
	h.kv = storage.NewMemoryStore()
	h.store = session.NewStore(h.kv, cfg, nil)
	t.Cleanup(func() { h.store.Close() })

	client := api.NewClient(h.srv.URL(), h.store)
	h.ctl = chat.NewController(client, h.store, nil)
	t.Cleanup(Bind(h.store, h.ctl, func(msg tea.Msg) { h.posted <- msg }))

	appCfg := config.Default()
	appCfg.UI.Theme = "dark"
	appCfg.UI.Markdown = false
	h.m = New(Deps{Config: appCfg, Store: h.store, Client: client, Chat: h.ctl}, session.RouteLanding)
	h.m.now = h.now
	h.m.exec = func(fn func() tea.Msg) tea.Cmd {
		h.work = append(h.work, fn)
		return nil
	}
	h.m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return h
}

func (h *harness) now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clock
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	h.clock = h.clock.Add(d)
	h.mu.Unlock()
}

func (h *harness) send(msg tea.Msg) {
	h.m.Update(msg)
}

// settle runs queued work and delivers bridged messages until both are
// drained.
func (h *harness) settle() {
	h.t.Helper()
	for i := 0; i < 200; i++ {
		select {
		case msg := <-h.posted:
			h.m.Update(msg)
			continue
		default:
		}
		if len(h.work) == 0 {
			return
		}
		fn := h.work[0]
		h.work = h.work[1:]
		h.m.Update(fn())
	}
	h.t.Fatal("UI did not settle")
}

func (h *harness) press(keys ...string) {
	for _, k := range keys {
		h.send(keyMsg(k))
	}
}

func (h *harness) typeText(s string) {
	for _, r := range s {
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// signIn stores a session directly and opens the chat screen.
func (h *harness) signIn() {
	h.t.Helper()
	require.NoError(h.t, h.store.Login(session.Credentials{
		Name:  "Ada Lovelace",
		Email: testEmail,
		Token: h.srv.TokenFor(testEmail),
	}))
	h.settle()
	require.Equal(h.t, session.RouteChat, h.m.Route())
}

func (h *harness) seed(question string, age time.Duration) model.ChatRecord {
	return h.srv.Seed(testEmail, model.ChatRecord{
		Question:  question,
		Answer:    "Answer to " + question,
		CreatedAt: model.Timestamp{Time: time.Now().Add(-age)},
	})
}

func keyMsg(k string) tea.KeyMsg {
	types := map[string]tea.KeyType{
		"enter":  tea.KeyEnter,
		"tab":    tea.KeyTab,
		"esc":    tea.KeyEsc,
		"up":     tea.KeyUp,
		"down":   tea.KeyDown,
		"ctrl+c": tea.KeyCtrlC,
		"ctrl+l": tea.KeyCtrlL,
		"ctrl+n": tea.KeyCtrlN,
		"ctrl+r": tea.KeyCtrlR,
	}
	if t, ok := types[k]; ok {
		return tea.KeyMsg{Type: t}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func (h *harness) hasToast(text string) bool {
	for _, t := range h.m.toasts.Toasts() {
		if t.Message == text {
			return true
		}
	}
	return false
}

// =============================================================================
// ROUTING
// =============================================================================

func TestGuard_ChatWithoutSessionShowsSignIn(t *testing.T) {
	h := newHarness(t)

	h.send(NavigateMsg{Route: session.RouteChat})
	h.settle()

	assert.Equal(t, session.RouteAuth, h.m.Route())
	assert.Zero(t, h.srv.TotalHits(), "no request may be made without a session")
}

func TestGuard_SignInSkippedWithSession(t *testing.T) {
	h := newHarness(t)
	h.signIn()

	h.send(NavigateMsg{Route: session.RouteAuth})
	assert.Equal(t, session.RouteChat, h.m.Route())
}

func TestLanding_EnterOpensSignIn(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.m.View(), "Get Started")

	h.press("enter")
	assert.Equal(t, session.RouteAuth, h.m.Route())

	h.press("esc")
	assert.Equal(t, session.RouteLanding, h.m.Route())

	h.press("q")
	assert.Empty(t, h.m.View(), "q on the landing screen quits")
}

func TestNotFound(t *testing.T) {
	h := newHarness(t)

	h.send(NavigateMsg{Route: session.ParseRoute("/settings")})
	assert.Equal(t, session.RouteNotFound, h.m.Route())
	view := h.m.View()
	assert.Contains(t, view, "404")
	assert.Contains(t, view, "Page Not Found")

	h.press("enter")
	assert.Equal(t, session.RouteLanding, h.m.Route())
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin_OpensChatAndLoadsHistory(t *testing.T) {
	h := newHarness(t)
	older := h.seed("first", time.Hour)
	newer := h.seed("second", time.Minute)

	h.send(NavigateMsg{Route: session.RouteAuth})
	h.typeText(testEmail)
	h.press("tab")
	h.typeText(testPassword)
	h.press("enter")
	h.settle()

	require.Equal(t, session.RouteChat, h.m.Route())
	assert.True(t, h.store.IsAuthenticated())
	require.Len(t, h.m.state.Records, 2)
	assert.Equal(t, newer.ID, h.m.state.Records[0].ID)
	assert.Equal(t, older.ID, h.m.state.Records[1].ID)
	assert.Contains(t, h.m.View(), "Ada Lovelace")
}

func TestLogin_BadPasswordShowsServerDetail(t *testing.T) {
	h := newHarness(t)

	h.send(NavigateMsg{Route: session.RouteAuth})
	h.typeText(testEmail)
	h.press("tab")
	h.typeText("wrong")
	h.press("enter")
	h.settle()

	assert.Equal(t, session.RouteAuth, h.m.Route())
	assert.False(t, h.store.IsAuthenticated())
	assert.Contains(t, h.m.View(), "Invalid credentials")
}

func TestRegister_SignsInDirectly(t *testing.T) {
	h := newHarness(t)

	h.send(NavigateMsg{Route: session.RouteAuth})
	h.press("ctrl+r")
	h.typeText("Grace Hopper")
	h.press("tab")
	h.typeText("grace@example.com")
	h.press("tab")
	h.typeText("cobol-1959")
	h.press("enter")
	h.settle()

	assert.Equal(t, session.RouteChat, h.m.Route())
	assert.True(t, h.hasToast(msgAccountCreated))
	sess, ok := h.store.Current()
	require.True(t, ok)
	assert.Equal(t, "grace@example.com", sess.UserEmail)
}

func TestRegister_LoginFailureSwitchesToSignIn(t *testing.T) {
	h := newHarness(t)
	h.srv.Fail(apitest.RouteLogin, apitest.Failure{Status: http.StatusInternalServerError, Detail: "down"})

	h.send(NavigateMsg{Route: session.RouteAuth})
	h.press("ctrl+r")
	h.typeText("Grace Hopper")
	h.press("tab")
	h.typeText("grace@example.com")
	h.press("tab")
	h.typeText("cobol-1959")
	h.press("enter")
	h.settle()

	assert.Equal(t, session.RouteAuth, h.m.Route())
	assert.Equal(t, "Login", h.m.auth.Mode().String())
	assert.Equal(t, "grace@example.com", h.m.auth.Request().Email)
	assert.Empty(t, h.m.auth.Request().Password)
	assert.Len(t, h.srv.Records("grace@example.com"), 0)
}

// =============================================================================
// CHAT
// =============================================================================

func TestSubmit_ShowsAnswerAndClearsInput(t *testing.T) {
	h := newHarness(t)
	h.srv.SetAnswerFunc(func(string) string { return "Go is a programming language." })
	h.signIn()

	h.typeText("What is Go?")
	h.press("enter")
	assert.True(t, h.m.state.Submitting)
	assert.Contains(t, h.m.View(), "What is Go?")

	h.settle()
	rec, ok := h.m.state.SelectedRecord()
	require.True(t, ok)
	assert.Equal(t, "What is Go?", rec.Question)
	assert.Empty(t, h.m.input.Value())
	assert.False(t, h.m.spinner.Active())
	assert.Contains(t, h.m.View(), "Go is a programming language.")
}

func TestSubmit_BlankDoesNothing(t *testing.T) {
	h := newHarness(t)
	h.signIn()

	h.typeText("   ")
	h.press("enter")
	h.settle()

	assert.Zero(t, h.srv.Hits(apitest.RouteAsk))
	assert.False(t, h.m.state.Submitting)
}

func TestSubmit_ServerErrorKeepsInput(t *testing.T) {
	h := newHarness(t)
	h.signIn()
	h.srv.Fail(apitest.RouteAsk, apitest.Failure{Status: http.StatusInternalServerError, Detail: "model overloaded"})

	h.typeText("retry me")
	h.press("enter")
	h.settle()

	assert.Equal(t, "retry me", h.m.input.Value())
	assert.True(t, h.hasToast("model overloaded"))
	assert.Empty(t, h.m.state.Records)
}

func TestDelete_NeedsTwoPresses(t *testing.T) {
	h := newHarness(t)
	rec := h.seed("to delete", time.Minute)
	h.signIn()
	require.Len(t, h.m.state.Records, 1)

	h.press("tab", "down", "d")
	assert.Empty(t, h.m.state.Deleting)
	assert.Zero(t, h.srv.Hits(apitest.RouteDelete))
	assert.Equal(t, rec.ID, h.m.list.Confirming())

	h.press("d")
	h.settle()

	assert.Equal(t, 1, h.srv.Hits(apitest.RouteDelete))
	assert.Empty(t, h.m.state.Records)
	assert.Empty(t, h.srv.Records(testEmail))
	assert.True(t, h.hasToast(msgChatDeleted))
}

func TestOpen_SelectsAndRefreshesRecord(t *testing.T) {
	h := newHarness(t)
	h.seed("older", time.Hour)
	newest := h.seed("newest", time.Minute)
	h.signIn()

	h.press("tab", "down", "enter")
	h.settle()

	assert.Equal(t, newest.ID, h.m.state.Selected)
	assert.Equal(t, 1, h.srv.Hits(apitest.RouteGet))
	assert.Contains(t, h.m.View(), "Answer to newest")

	h.press("ctrl+n")
	h.settle()
	assert.Empty(t, h.m.state.Selected)
	assert.Equal(t, focusInput, h.m.focus)
}

func TestRefresh_RefetchesHistory(t *testing.T) {
	h := newHarness(t)
	h.signIn()
	before := h.srv.Hits(apitest.RouteHistory)

	h.seed("from elsewhere", time.Second)
	h.press("ctrl+r")
	h.settle()

	assert.Equal(t, before+1, h.srv.Hits(apitest.RouteHistory))
	assert.Len(t, h.m.state.Records, 1)
}

// =============================================================================
// SESSION END
// =============================================================================

func TestLogout_ReturnsToLanding(t *testing.T) {
	h := newHarness(t)
	h.seed("q", time.Minute)
	h.signIn()

	h.press("ctrl+l")
	h.settle()

	assert.Equal(t, session.RouteLanding, h.m.Route())
	assert.False(t, h.store.IsAuthenticated())
	assert.Empty(t, h.ctl.Snapshot().Records)
	assert.True(t, h.hasToast(msgLoggedOut))
	assert.Contains(t, h.m.View(), msgLoggedOut)
	assert.NotContains(t, h.m.View(), "Ada Lovelace")
}

func TestExternalLogin_OtherAccountReplacesHistory(t *testing.T) {
	h := newHarness(t)
	h.seed("ADA-SECRET", time.Minute)
	h.signIn()
	require.Len(t, h.m.state.Records, 1)

	const bobEmail = "bob@example.com"
	_, err := h.srv.AddUser("Bob Babbage", bobEmail, "difference-engine")
	require.NoError(t, err)
	bobRec := h.srv.Seed(bobEmail, model.ChatRecord{
		Question:  "bob's question",
		Answer:    "bob's answer",
		CreatedAt: model.Timestamp{Time: time.Now()},
	})

	// another process signs in as Bob on the same storage
	other := session.NewStore(h.kv, session.DefaultConfig(), nil)
	defer other.Close()
	require.NoError(t, other.Login(session.Credentials{
		Name: "Bob Babbage", Email: bobEmail, Token: h.srv.TokenFor(bobEmail),
	}))

	before := h.srv.Hits(apitest.RouteHistory)
	h.store.Reload()
	h.settle()

	assert.Equal(t, session.RouteChat, h.m.Route())
	assert.Equal(t, before+1, h.srv.Hits(apitest.RouteHistory))
	require.Len(t, h.m.state.Records, 1)
	assert.Equal(t, bobRec.ID, h.m.state.Records[0].ID)
	require.Len(t, h.ctl.Snapshot().Records, 1)
	assert.Equal(t, bobRec.ID, h.ctl.Snapshot().Records[0].ID)

	view := h.m.View()
	assert.NotContains(t, view, "ADA-SECRET")
	assert.Contains(t, view, "Bob Babbage")
}

func TestExternalLogin_SameAccountKeepsHistory(t *testing.T) {
	h := newHarness(t)
	h.seed("q", time.Minute)
	h.signIn()

	before := h.srv.Hits(apitest.RouteHistory)
	sess, ok := h.store.Current()
	require.True(t, ok)
	h.send(SessionEventMsg{Event: session.Event{Kind: session.EventLogin, Session: sess}})
	h.settle()

	assert.Equal(t, before, h.srv.Hits(apitest.RouteHistory))
	assert.Len(t, h.m.state.Records, 1)
}

func TestUnauthorized_ReturnsToSignIn(t *testing.T) {
	h := newHarness(t)
	h.srv.Fail(apitest.RouteHistory, apitest.Failure{Status: http.StatusUnauthorized, Detail: "Could not validate credentials"})

	require.NoError(t, h.store.Login(session.Credentials{
		Name: "Ada Lovelace", Email: testEmail, Token: h.srv.TokenFor(testEmail),
	}))
	h.settle()

	assert.Equal(t, session.RouteAuth, h.m.Route())
	assert.False(t, h.store.IsAuthenticated())
	assert.True(t, h.hasToast(msgUnauthorized))
}

func TestExpiry_ReturnsToSignIn(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Login(session.Credentials{
		Name:      "Ada Lovelace",
		Email:     testEmail,
		Token:     h.srv.TokenFor(testEmail),
		ExpiresAt: h.now().Add(time.Minute),
	}))
	h.settle()
	require.Equal(t, session.RouteChat, h.m.Route())

	h.advance(2 * time.Minute)
	assert.True(t, h.store.CheckExpiry())
	h.settle()

	assert.Equal(t, session.RouteAuth, h.m.Route())
	assert.True(t, h.hasToast(msgSessionExpired))
}

func TestHeader_ShowsRemainingTime(t *testing.T) {
	h := newHarness(t)
	h.signIn()

	header := h.m.header.View(h.now())
	assert.True(t, strings.Contains(header, "session"), "header should show the session countdown: %q", header)
}

// =============================================================================
// MAILBOX
// =============================================================================

func TestMailbox_DeliversInOrder(t *testing.T) {
	box := newMailbox()
	got := make(chan tea.Msg, 100)
	done := make(chan struct{})
	go func() {
		box.deliver(func(msg tea.Msg) { got <- msg })
		close(done)
	}()

	for i := 0; i < 100; i++ {
		box.post(i)
	}
	for i := 0; i < 100; i++ {
		select {
		case msg := <-got:
			require.Equal(t, i, msg)
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d not delivered", i)
		}
	}

	box.close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deliver did not return after close")
	}
	box.post("ignored")
}
