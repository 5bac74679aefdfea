// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures exchanged with the QBot API.
//
// # Key Types
//
//   - ChatRecord: one question/answer pair with title and creation time
//   - RecordID: opaque server-assigned id (string or numeric on the wire)
//   - Timestamp: time.Time accepting RFC 3339 and zone-less server datetimes
//   - User: name and email of the signed-in account
//
// # Usage
//
//	var records []model.ChatRecord
//	_ = json.Unmarshal(body, &records)
//	for _, r := range records {
//	    fmt.Println(r.DisplayTitle(), r.CreatedAt.Local())
//	}
package model
