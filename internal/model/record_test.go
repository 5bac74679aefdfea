// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DECODING TESTS
// =============================================================================

func TestChatRecord_DecodeServerPayload(t *testing.T) {
	payload := `{
		"id": "8c7f1f0e-3b1a-4f57-9d6e-2f1c0b7a9e11",
		"title": "Go Scheduler Basics",
		"question": "How does the Go scheduler work?",
		"answer": "## Overview\nIt multiplexes goroutines.",
		"user_id": "0b9f4a52-54d4-4a42-8f5e-6c3c2f0f1d22",
		"created_at": "2024-11-20T10:15:30.123456"
	}`

	var rec ChatRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))

	assert.Equal(t, RecordID("8c7f1f0e-3b1a-4f57-9d6e-2f1c0b7a9e11"), rec.ID)
	assert.Equal(t, "Go Scheduler Basics", rec.Title)
	assert.Equal(t, time.UTC, rec.CreatedAt.Location())
	assert.Equal(t, 2024, rec.CreatedAt.Year())
	assert.Equal(t, 123456000, rec.CreatedAt.Nanosecond())
}

func TestRecordID_NumericAndString(t *testing.T) {
	var recs []ChatRecord
	require.NoError(t, json.Unmarshal([]byte(`[{"id":5},{"id":"abc"},{"id":null}]`), &recs))

	require.Len(t, recs, 3)
	assert.Equal(t, RecordID("5"), recs[0].ID)
	assert.Equal(t, RecordID("abc"), recs[1].ID)
	assert.True(t, recs[2].ID.IsZero())
}

func TestRecordID_RejectsObjects(t *testing.T) {
	var rec ChatRecord
	assert.Error(t, json.Unmarshal([]byte(`{"id":{"x":1}}`), &rec))
}

func TestParseTimestamp_Layouts(t *testing.T) {
	for _, in := range []string{
		"2020-01-01T00:00:00Z",
		"2020-01-01T00:00:00.000Z",
		"2020-01-01T02:00:00+02:00",
		"2020-01-01T00:00:00",
		"2020-01-01 00:00:00",
	} {
		ts, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, ts.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)), in)
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestTimestamp_MarshalRoundTrip(t *testing.T) {
	rec := ChatRecord{ID: "1", CreatedAt: Timestamp{time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"created_at":"2024-05-01T12:00:00Z"`)

	data, err = json.Marshal(ChatRecord{ID: "2"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"created_at":null`)
}

// =============================================================================
// DISPLAY TESTS
// =============================================================================

func TestChatRecord_DisplayTitle(t *testing.T) {
	assert.Equal(t, "Weather Today", ChatRecord{Title: " Weather\nToday "}.DisplayTitle())
	assert.Equal(t, "what is rain?", ChatRecord{Question: "what is\nrain?"}.DisplayTitle())
	assert.Equal(t, "Untitled", ChatRecord{}.DisplayTitle())

	long := ChatRecord{Question: strings.Repeat("a", 80)}.DisplayTitle()
	assert.Equal(t, strings.Repeat("a", 50)+"...", long)
}

func TestIndexOf(t *testing.T) {
	recs := []ChatRecord{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, 1, IndexOf(recs, "b"))
	assert.Equal(t, -1, IndexOf(recs, "z"))
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada", User{Name: "Ada", Email: "ada@example.com"}.DisplayName())
	assert.Equal(t, "ada@example.com", User{Email: "ada@example.com"}.DisplayName())
}
