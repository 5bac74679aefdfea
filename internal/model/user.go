// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// User is the identity stored alongside the session token.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DisplayName prefers the name and falls back to the email.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
