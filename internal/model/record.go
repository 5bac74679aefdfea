// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/qbot-tui/internal/util"
)

// =============================================================================
// RECORD ID
// =============================================================================

// RecordID identifies a chat record. The server owns ids; the client treats
// them as opaque strings. Numeric JSON ids are kept in decimal form.
type RecordID string

// String returns the id as sent in URLs.
func (id RecordID) String() string {
	return string(id)
}

// IsZero reports whether the id is empty.
func (id RecordID) IsZero() bool {
	return id == ""
}

// UnmarshalJSON accepts both `"3f2c..."` and `5`.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("record id: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

// =============================================================================
// TIMESTAMP
// =============================================================================

// serverTimeLayouts are tried in order. The API serializes naive datetimes
// without a zone; those are read as UTC.
var serverTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Timestamp is a time.Time that understands the API's datetime formats.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses any of the layouts the API is known to emit.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range serverTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

// MarshalJSON writes RFC 3339 in UTC.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

// =============================================================================
// CHAT RECORD
// =============================================================================

// ChatRecord is one question/answer pair as returned by the API.
type ChatRecord struct {
	ID        RecordID  `json:"id"`
	Title     string    `json:"title"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// titleFallbackRunes matches the server's own fallback title length.
const titleFallbackRunes = 50

// DisplayTitle returns the title, or the first line of the question when the
// server sent no title.
func (r ChatRecord) DisplayTitle() string {
	if t := util.SingleLine(r.Title); t != "" {
		return t
	}
	q := []rune(util.SingleLine(r.Question))
	if len(q) > titleFallbackRunes {
		return string(q[:titleFallbackRunes]) + util.Ellipsis
	}
	if len(q) == 0 {
		return "Untitled"
	}
	return string(q)
}

// IndexOf returns the position of id in records, or -1.
func IndexOf(records []ChatRecord, id RecordID) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}
