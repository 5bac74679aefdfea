// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/qbot-tui/internal/ui/styles"
)

// AuthMode selects between signing in and creating an account.
type AuthMode int

const (
	AuthLogin AuthMode = iota
	AuthRegister
)

func (m AuthMode) String() string {
	if m == AuthRegister {
		return "Register"
	}
	return "Login"
}

// AuthRequest is what the form submits.
type AuthRequest struct {
	Mode     AuthMode
	Name     string
	Email    string
	Password string
}

const (
	fieldName = iota
	fieldEmail
	fieldPassword
	fieldSubmit
)

// AuthForm is the login/register card.
type AuthForm struct {
	theme  *styles.Theme
	mode   AuthMode
	inputs [3]textinput.Model
	focus  int

	err     string
	notice  string
	pending bool
	width   int
}

// NewAuthForm creates the form in login mode.
func NewAuthForm(theme *styles.Theme) *AuthForm {
	f := &AuthForm{theme: theme, width: 60}

	name := textinput.New()
	name.Placeholder = "Your name"
	name.CharLimit = 100

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "Password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'
	password.CharLimit = 128

	f.inputs = [3]textinput.Model{name, email, password}
	f.focusField(fieldEmail)
	return f
}

// Mode returns the current mode.
func (f *AuthForm) Mode() AuthMode { return f.mode }

// SetWidth sets the available width.
func (f *AuthForm) SetWidth(width int) { f.width = width }

// SetMode switches mode and clears every field and message.
func (f *AuthForm) SetMode(mode AuthMode) {
	f.mode = mode
	f.Reset()
}

// Toggle flips between login and register.
func (f *AuthForm) Toggle() {
	if f.mode == AuthLogin {
		f.SetMode(AuthRegister)
	} else {
		f.SetMode(AuthLogin)
	}
}

// Reset clears the fields and messages, keeping the mode.
func (f *AuthForm) Reset() {
	for i := range f.inputs {
		f.inputs[i].SetValue("")
	}
	f.err = ""
	f.notice = ""
	f.pending = false
	if f.mode == AuthRegister {
		f.focusField(fieldName)
	} else {
		f.focusField(fieldEmail)
	}
}

// SetError shows msg under the title and re-enables the form.
func (f *AuthForm) SetError(msg string) {
	f.err = msg
	f.notice = ""
	f.pending = false
}

// SetNotice shows an informational line (e.g. after registering).
func (f *AuthForm) SetNotice(msg string) {
	f.notice = msg
	f.err = ""
}

// SetPending disables input while a request is in flight.
func (f *AuthForm) SetPending(pending bool) { f.pending = pending }

// Pending reports whether a request is in flight.
func (f *AuthForm) Pending() bool { return f.pending }

// SetEmail pre-fills the email field.
func (f *AuthForm) SetEmail(email string) {
	f.inputs[fieldEmail].SetValue(email)
	f.focusField(fieldPassword)
}

// Request returns the current field values.
func (f *AuthForm) Request() AuthRequest {
	return AuthRequest{
		Mode:     f.mode,
		Name:     strings.TrimSpace(f.inputs[fieldName].Value()),
		Email:    strings.TrimSpace(f.inputs[fieldEmail].Value()),
		Password: f.inputs[fieldPassword].Value(),
	}
}

// Validate returns a message for the first missing or malformed field.
func (r AuthRequest) Validate() string {
	if r.Mode == AuthRegister && r.Name == "" {
		return "Name is required"
	}
	if r.Email == "" {
		return "Email is required"
	}
	if at := strings.Index(r.Email, "@"); at <= 0 || at == len(r.Email)-1 {
		return "Enter a valid email address"
	}
	if r.Password == "" {
		return "Password is required"
	}
	return ""
}

func (f *AuthForm) fields() []int {
	if f.mode == AuthRegister {
		return []int{fieldName, fieldEmail, fieldPassword, fieldSubmit}
	}
	return []int{fieldEmail, fieldPassword, fieldSubmit}
}

func (f *AuthForm) focusField(field int) {
	f.focus = field
	for i := range f.inputs {
		if i == field {
			f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
}

func (f *AuthForm) step(delta int) {
	order := f.fields()
	pos := 0
	for i, fld := range order {
		if fld == f.focus {
			pos = i
		}
	}
	pos = (pos + delta + len(order)) % len(order)
	f.focusField(order[pos])
}

// Update handles a key. It returns the request when the form is submitted
// and valid; an invalid submit shows the validation message instead.
func (f *AuthForm) Update(msg tea.Msg) (*AuthRequest, tea.Cmd) {
	if f.pending {
		return nil, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			f.step(1)
			return nil, nil
		case "shift+tab", "up":
			f.step(-1)
			return nil, nil
		case "ctrl+r":
			f.Toggle()
			return nil, nil
		case "enter":
			if f.focus != fieldSubmit && f.focus != fieldPassword {
				f.step(1)
				return nil, nil
			}
			req := f.Request()
			if problem := req.Validate(); problem != "" {
				f.SetError(problem)
				return nil, nil
			}
			f.err = ""
			f.pending = true
			return &req, nil
		}
	}

	if f.focus == fieldSubmit {
		return nil, nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return nil, cmd
}

// View renders the card centered in width x height.
func (f *AuthForm) View(width, height int) string {
	t := f.theme
	fieldWidth := 36
	if width > 0 && width-12 < fieldWidth {
		fieldWidth = width - 12
	}
	if fieldWidth < 16 {
		fieldWidth = 16
	}

	var rows []string
	rows = append(rows, t.CardTitle.Render(f.mode.String()))
	if f.err != "" {
		rows = append(rows, t.ErrorText.Width(fieldWidth).Render(styles.StatusIndicators.Error+" "+f.err), "")
	} else if f.notice != "" {
		rows = append(rows, lipgloss.NewStyle().Foreground(styles.Emerald).Width(fieldWidth).Render(f.notice), "")
	}

	labels := map[int]string{fieldName: "Name", fieldEmail: "Email", fieldPassword: "Password"}
	for _, fld := range f.fields() {
		if fld == fieldSubmit {
			break
		}
		label := t.FieldLabel
		if f.focus == fld {
			label = t.FieldActive
		}
		in := f.inputs[fld]
		in.Width = fieldWidth - 2
		rows = append(rows, label.Render(labels[fld]), in.View(), "")
	}

	button := t.Button
	if f.focus == fieldSubmit {
		button = t.ButtonFocus
	}
	caption := f.mode.String()
	if f.pending {
		caption = "Please wait..."
	}
	rows = append(rows, button.Render(caption), "")

	other, prompt := "Register", "Don't have an account? "
	if f.mode == AuthRegister {
		other, prompt = "Login", "Already have an account? "
	}
	rows = append(rows,
		t.KeyDesc.Render(prompt)+t.Link.Render(other)+t.KeyDesc.Render(" (ctrl+r)"))

	card := t.Card.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	if width <= 0 || height <= 0 {
		return card
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, card)
}
