// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jeranaias/qbot-tui/internal/model"
	"github.com/jeranaias/qbot-tui/internal/ui/styles"
	"github.com/jeranaias/qbot-tui/internal/util"
)

// =============================================================================
// DATES
// =============================================================================

// AbsoluteDateLayout is used for answers and for anything older than a week.
const AbsoluteDateLayout = "Jan 2, 2006 15:04"

// FormatDate renders t relative to now ("5 minutes ago") for the last week
// and as an absolute local date before that.
func FormatDate(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.Sub(t) < 7*24*time.Hour && !t.After(now.Add(time.Minute)) {
		return humanize.RelTime(t, now, "ago", "from now")
	}
	return t.Local().Format(AbsoluteDateLayout)
}

// =============================================================================
// CHAT LIST
// =============================================================================

// ChatList renders the history sidebar. Row 0 is "New chat"; row i+1 is
// records[i].
type ChatList struct {
	theme *styles.Theme

	records  []model.ChatRecord
	selected model.RecordID
	cursor   int
	offset   int

	width  int
	height int

	loading  bool
	focused  bool
	deleting model.RecordID
	confirm  model.RecordID
}

// NewChatList creates an empty list.
func NewChatList(theme *styles.Theme) *ChatList {
	return &ChatList{theme: theme, width: 30, height: 10}
}

// SetSize sets the outer size.
func (l *ChatList) SetSize(width, height int) {
	l.width, l.height = width, height
	l.clamp()
}

// SetFocused toggles the focused border.
func (l *ChatList) SetFocused(focused bool) { l.focused = focused }

// Focused reports whether the list has keyboard focus.
func (l *ChatList) Focused() bool { return l.focused }

// SetLoading shows the loading row when the list is empty.
func (l *ChatList) SetLoading(loading bool) { l.loading = loading }

// SetDeleting marks the row whose delete is in flight.
func (l *ChatList) SetDeleting(id model.RecordID) { l.deleting = id }

// SetRecords replaces the rows. The cursor follows the selected record.
func (l *ChatList) SetRecords(records []model.ChatRecord, selected model.RecordID) {
	var cursorID model.RecordID
	if l.cursor > 0 && l.cursor <= len(l.records) {
		cursorID = l.records[l.cursor-1].ID
	}
	selChanged := selected != l.selected

	l.records = records
	l.selected = selected

	switch {
	case selChanged && !selected.IsZero():
		l.cursor = model.IndexOf(records, selected) + 1
	case selChanged:
		l.cursor = 0
	case !cursorID.IsZero():
		l.cursor = model.IndexOf(records, cursorID) + 1
	}
	if l.confirm != "" && model.IndexOf(records, l.confirm) < 0 {
		l.confirm = ""
	}
	l.clamp()
}

// Len returns the number of rows including "New chat".
func (l *ChatList) Len() int { return len(l.records) + 1 }

// Cursor returns the cursor row.
func (l *ChatList) Cursor() int { return l.cursor }

// MoveUp moves the cursor up one row.
func (l *ChatList) MoveUp() {
	l.confirm = ""
	if l.cursor > 0 {
		l.cursor--
	}
	l.clamp()
}

// MoveDown moves the cursor down one row.
func (l *ChatList) MoveDown() {
	l.confirm = ""
	if l.cursor < l.Len()-1 {
		l.cursor++
	}
	l.clamp()
}

// Home moves to "New chat".
func (l *ChatList) Home() {
	l.confirm = ""
	l.cursor = 0
	l.clamp()
}

// End moves to the oldest record.
func (l *ChatList) End() {
	l.confirm = ""
	l.cursor = l.Len() - 1
	l.clamp()
}

// Current returns the record under the cursor; false on the "New chat" row.
func (l *ChatList) Current() (model.ChatRecord, bool) {
	if l.cursor <= 0 || l.cursor > len(l.records) {
		return model.ChatRecord{}, false
	}
	return l.records[l.cursor-1], true
}

// AskDelete arms the delete confirmation for the current record. It returns
// the id when the confirmation was already armed for that record.
func (l *ChatList) AskDelete() (model.RecordID, bool) {
	rec, ok := l.Current()
	if !ok {
		return "", false
	}
	if l.confirm == rec.ID {
		l.confirm = ""
		return rec.ID, true
	}
	l.confirm = rec.ID
	return "", false
}

// CancelDelete disarms the confirmation.
func (l *ChatList) CancelDelete() bool {
	armed := l.confirm != ""
	l.confirm = ""
	return armed
}

// Confirming returns the record awaiting confirmation, if any.
func (l *ChatList) Confirming() model.RecordID { return l.confirm }

// rows per record: title + date
const rowHeight = 2

func (l *ChatList) visibleRows() int {
	// title line + blank + new chat row
	n := (l.height - 3) / rowHeight
	if n < 1 {
		n = 1
	}
	return n
}

func (l *ChatList) clamp() {
	if l.cursor >= l.Len() {
		l.cursor = l.Len() - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
	idx := l.cursor - 1
	if idx < l.offset {
		l.offset = idx
	}
	if vis := l.visibleRows(); idx >= l.offset+vis {
		l.offset = idx - vis + 1
	}
	if l.offset < 0 {
		l.offset = 0
	}
}

// View renders the list at now.
func (l *ChatList) View(now time.Time) string {
	inner := l.width - 2 // border + padding
	if inner < 8 {
		inner = 8
	}

	var b strings.Builder
	b.WriteString(l.theme.SidebarTitle.Render("History"))
	b.WriteString("\n")

	newChat := util.PadRight("+ New chat", inner-1)
	if l.cursor == 0 {
		b.WriteString(l.rowStyle(true, false).Render(newChat))
	} else {
		b.WriteString(l.theme.ChatItem.Render(newChat))
	}
	b.WriteString("\n")

	switch {
	case len(l.records) == 0 && l.loading:
		b.WriteString(l.theme.Placeholder.Render(" Loading history..."))
	case len(l.records) == 0:
		b.WriteString(l.theme.Placeholder.Render(" No messages yet"))
	}

	end := l.offset + l.visibleRows()
	if end > len(l.records) {
		end = len(l.records)
	}
	for i := l.offset; i < end; i++ {
		rec := l.records[i]
		title := util.PadRight(rec.DisplayTitle(), inner-1)
		active := rec.ID == l.selected
		b.WriteString(l.rowStyle(l.cursor == i+1, active).Render(title))
		b.WriteString("\n")

		var meta string
		switch rec.ID {
		case l.confirm:
			meta = l.theme.Confirm.Render(util.TruncateWidth(" Delete? press d again", inner))
		case l.deleting:
			meta = l.theme.ChatItemPending.Render(util.TruncateWidth("Deleting...", inner-1))
		default:
			meta = l.theme.ChatItemDate.Render(util.TruncateWidth(FormatDate(rec.CreatedAt.Time, now), inner-1))
		}
		b.WriteString(meta)
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	style := l.theme.Sidebar
	if l.focused {
		style = l.theme.SidebarFocused
	}
	return style.Width(l.width - 1).Height(l.height).MaxHeight(l.height).Render(b.String())
}

func (l *ChatList) rowStyle(cursor, active bool) lipgloss.Style {
	switch {
	case cursor && l.focused:
		return l.theme.ChatItemActive
	case active:
		return l.theme.ChatItemActive.Bold(false)
	default:
		return l.theme.ChatItem
	}
}
