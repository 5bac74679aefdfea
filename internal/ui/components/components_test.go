// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/qbot-tui/internal/model"
	"github.com/jeranaias/qbot-tui/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme(styles.ModeDark)
}

// =============================================================================
// TOASTS
// =============================================================================

func TestToastManager_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewToastManager()
	m.SetClock(func() time.Time { return now })

	m.AddSuccess("Chat deleted")
	m.AddError("Could not reach the server")

	if got := len(m.Tick()); got != 2 {
		t.Fatalf("expected 2 toasts, got %d", got)
	}

	now = now.Add(DefaultToastDuration)
	toasts := m.Tick()
	if len(toasts) != 1 || toasts[0].Kind != ToastKindError {
		t.Fatalf("success toast should expire first, got %+v", toasts)
	}

	now = now.Add(ErrorToastDuration)
	if m.Tick(); len(m.Toasts()) != 0 {
		t.Error("error toast should have expired")
	}
}

func TestToastManager_NewestFirstAndCapped(t *testing.T) {
	m := NewToastManager()
	var last int
	for i := 0; i < MaxToasts+3; i++ {
		last = m.AddStatus("toast")
	}
	toasts := m.Toasts()
	if len(toasts) != MaxToasts {
		t.Fatalf("expected %d toasts, got %d", MaxToasts, len(toasts))
	}
	if toasts[0].ID != last {
		t.Errorf("newest toast should be first")
	}

	m.Dismiss(last)
	if len(m.Toasts()) != MaxToasts-1 {
		t.Error("Dismiss should remove the toast")
	}
	m.Clear()
	if len(m.Toasts()) != 0 {
		t.Error("Clear should remove every toast")
	}
}

func TestRenderToastStack(t *testing.T) {
	theme := testTheme()
	toasts := []Toast{
		{ID: 2, Message: "newest", Kind: ToastKindSuccess},
		{ID: 1, Message: "oldest", Kind: ToastKindError},
	}
	out := RenderToastStack(theme, toasts, 80)
	if !strings.Contains(out, "newest") || !strings.Contains(out, styles.StatusIndicators.Error) {
		t.Fatalf("stack missing content: %q", out)
	}
	if strings.Index(out, "oldest") > strings.Index(out, "newest") {
		t.Error("newest toast should render at the bottom")
	}
	if RenderToastStack(theme, nil, 80) != "" {
		t.Error("empty stack should render nothing")
	}
}

// =============================================================================
// DATES
// =============================================================================

func TestFormatDate(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, ""},
		{"minutes", now.Add(-5 * time.Minute), "5 minutes ago"},
		{"hours", now.Add(-3 * time.Hour), "3 hours ago"},
		{"old", time.Date(2024, 12, 25, 9, 30, 0, 0, time.UTC),
			time.Date(2024, 12, 25, 9, 30, 0, 0, time.UTC).Local().Format(AbsoluteDateLayout)},
	}
	for _, tc := range tests {
		if got := FormatDate(tc.t, now); got != tc.want {
			t.Errorf("%s: FormatDate = %q, want %q", tc.name, got, tc.want)
		}
	}
}

// =============================================================================
// CHAT LIST
// =============================================================================

func records(n int) []model.ChatRecord {
	out := make([]model.ChatRecord, n)
	for i := range out {
		out[i] = model.ChatRecord{
			ID:    model.RecordID(string(rune('a' + i))),
			Title: "chat " + string(rune('a'+i)),
		}
	}
	return out
}

func TestChatList_CursorFollowsSelection(t *testing.T) {
	l := NewChatList(testTheme())
	l.SetSize(30, 20)
	recs := records(3)

	l.SetRecords(recs, "")
	if l.Cursor() != 0 {
		t.Fatalf("cursor should start on New chat, got %d", l.Cursor())
	}

	l.SetRecords(recs, "c")
	if rec, ok := l.Current(); !ok || rec.ID != "c" {
		t.Fatalf("cursor should follow the selection, got %+v", rec)
	}

	// a new record at the top keeps the cursor on the same record
	l.SetRecords(append([]model.ChatRecord{{ID: "z", Title: "new"}}, recs...), "c")
	if rec, _ := l.Current(); rec.ID != "c" {
		t.Errorf("cursor moved off the record, now on %q", rec.ID)
	}

	l.SetRecords(recs, "")
	if l.Cursor() != 0 {
		t.Error("clearing the selection should return to New chat")
	}
}

func TestChatList_Navigation(t *testing.T) {
	l := NewChatList(testTheme())
	l.SetRecords(records(3), "")

	l.MoveUp()
	if l.Cursor() != 0 {
		t.Error("MoveUp at the top should stay put")
	}
	l.End()
	if l.Cursor() != 3 {
		t.Errorf("End = %d, want 3", l.Cursor())
	}
	l.MoveDown()
	if l.Cursor() != 3 {
		t.Error("MoveDown at the bottom should stay put")
	}
	l.Home()
	if _, ok := l.Current(); ok {
		t.Error("Home should land on New chat")
	}
}

func TestChatList_DeleteNeedsConfirmation(t *testing.T) {
	l := NewChatList(testTheme())
	l.SetRecords(records(2), "")

	if _, ok := l.AskDelete(); ok {
		t.Fatal("New chat row cannot be deleted")
	}

	l.MoveDown()
	if _, ok := l.AskDelete(); ok {
		t.Fatal("first press should only arm the confirmation")
	}
	if l.Confirming() != "a" {
		t.Fatalf("expected confirmation for a, got %q", l.Confirming())
	}
	if !strings.Contains(l.View(time.Now()), "Delete?") {
		t.Error("armed confirmation should be visible")
	}

	id, ok := l.AskDelete()
	if !ok || id != "a" {
		t.Fatalf("second press should confirm, got %q %v", id, ok)
	}

	l.AskDelete()
	l.MoveDown()
	if l.Confirming() != "" {
		t.Error("moving should cancel the confirmation")
	}
	l.AskDelete()
	if !l.CancelDelete() || l.Confirming() != "" {
		t.Error("CancelDelete should disarm")
	}
}

func TestChatList_ViewStates(t *testing.T) {
	l := NewChatList(testTheme())
	l.SetSize(30, 12)

	l.SetLoading(true)
	if !strings.Contains(l.View(time.Now()), "Loading history") {
		t.Error("empty loading list should say so")
	}
	l.SetLoading(false)
	if !strings.Contains(l.View(time.Now()), "No messages yet") {
		t.Error("empty list should show the empty state")
	}

	l.SetRecords([]model.ChatRecord{{ID: "1", Question: "What is the airspeed of an unladen swallow?"}}, "")
	if !strings.Contains(l.View(time.Now()), "What is the") {
		t.Error("untitled record should fall back to its question")
	}
}

// =============================================================================
// AUTH FORM
// =============================================================================

func typeText(f *AuthForm, s string) {
	for _, r := range s {
		f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func TestAuthForm_LoginSubmit(t *testing.T) {
	f := NewAuthForm(testTheme())

	typeText(f, "ada@example.com")
	f.Update(key(tea.KeyTab))
	typeText(f, "secret")
	req, _ := f.Update(key(tea.KeyEnter))
	if req == nil {
		t.Fatal("expected a request")
	}
	if req.Mode != AuthLogin || req.Email != "ada@example.com" || req.Password != "secret" {
		t.Errorf("unexpected request %+v", req)
	}
	if !f.Pending() {
		t.Error("form should be pending after submit")
	}

	if again, _ := f.Update(key(tea.KeyEnter)); again != nil {
		t.Error("pending form should ignore input")
	}
	f.SetError("Invalid credentials")
	if f.Pending() || !strings.Contains(f.View(80, 0), "Invalid credentials") {
		t.Error("SetError should re-enable the form and show the message")
	}
}

func TestAuthForm_Validation(t *testing.T) {
	tests := []struct {
		req  AuthRequest
		want string
	}{
		{AuthRequest{Mode: AuthRegister, Email: "a@b.c", Password: "x"}, "Name is required"},
		{AuthRequest{Password: "x"}, "Email is required"},
		{AuthRequest{Email: "nope", Password: "x"}, "Enter a valid email address"},
		{AuthRequest{Email: "a@", Password: "x"}, "Enter a valid email address"},
		{AuthRequest{Email: "a@b.c"}, "Password is required"},
		{AuthRequest{Email: "a@b.c", Password: "x"}, ""},
	}
	for _, tc := range tests {
		if got := tc.req.Validate(); got != tc.want {
			t.Errorf("Validate(%+v) = %q, want %q", tc.req, got, tc.want)
		}
	}

	f := NewAuthForm(testTheme())
	f.Update(key(tea.KeyTab))
	if req, _ := f.Update(key(tea.KeyEnter)); req != nil {
		t.Error("invalid form should not submit")
	}
	if !strings.Contains(f.View(80, 0), "Email is required") {
		t.Error("validation message should be shown")
	}
}

func TestAuthForm_ToggleClearsFields(t *testing.T) {
	f := NewAuthForm(testTheme())
	typeText(f, "ada@example.com")

	f.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	if f.Mode() != AuthRegister {
		t.Fatal("ctrl+r should switch to register")
	}
	if f.Request().Email != "" {
		t.Error("switching mode should clear the fields")
	}
	if !strings.Contains(f.View(80, 0), "Name") {
		t.Error("register mode should show the name field")
	}

	typeText(f, "Ada")
	f.Update(key(tea.KeyEnter))
	typeText(f, "ada@example.com")
	f.Update(key(tea.KeyEnter))
	typeText(f, "pw")
	req, _ := f.Update(key(tea.KeyEnter))
	if req == nil || req.Name != "Ada" || req.Mode != AuthRegister {
		t.Fatalf("unexpected register request %+v", req)
	}
}

// =============================================================================
// ANSWER VIEW / HEADER
// =============================================================================

func TestAnswerView(t *testing.T) {
	theme := testTheme()
	a := NewAnswerView(theme, NewMarkdown(false, styles.ModeDark))
	a.SetSize(60, 20)

	if !strings.Contains(a.View(), "Ask any question") {
		t.Error("empty view should invite a question")
	}

	a.ShowPending("Why is the sky blue?")
	if !strings.Contains(a.View(), "Why is the sky blue?") {
		t.Error("pending question should be shown")
	}

	a.Show(model.ChatRecord{ID: "1", Question: "Why?", Answer: "Rayleigh scattering."})
	out := a.View()
	if !strings.Contains(out, "Why?") || !strings.Contains(out, "Rayleigh") {
		t.Errorf("record not rendered: %q", out)
	}
	if rec, ok := a.Record(); !ok || rec.ID != "1" {
		t.Error("Record should return the shown record")
	}

	a.Clear()
	if _, ok := a.Record(); ok {
		t.Error("Clear should drop the record")
	}
}

func TestMarkdownRender(t *testing.T) {
	md := NewMarkdown(true, styles.ModeDark)
	out := md.Render("# Title\n\nSome **bold** text.", 60)
	if !strings.Contains(out, "Title") || strings.Contains(out, "**") {
		t.Errorf("markdown not rendered: %q", out)
	}

	plain := NewMarkdown(false, styles.ModeDark).Render("Some **bold** text.", 60)
	if !strings.Contains(plain, "**bold**") {
		t.Error("disabled markdown should keep the source text")
	}
}

func TestHeader(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeader(testTheme())
	h.SetWidth(100)

	if strings.Contains(h.View(now), "session") {
		t.Error("signed-out header should not show a session")
	}

	h.SetAccount(model.User{Name: "Ada", Email: "ada@example.com"}, now.Add(90*time.Minute))
	out := h.View(now)
	for _, want := range []string{"QBot", "Ada", "ada@example.com", "1h 30m"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q: %q", want, out)
		}
	}

	h.ClearAccount()
	if strings.Contains(h.View(now), "Ada") {
		t.Error("ClearAccount should remove the user")
	}
}

func TestScreens(t *testing.T) {
	theme := testTheme()
	if !strings.Contains(RenderLanding(theme, 100, 30), "Get Started") {
		t.Error("landing should offer to get started")
	}
	if !strings.Contains(RenderNotFound(theme, 100, 30), "404") {
		t.Error("not found screen should say 404")
	}

}
