// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"strings"
	"time"

	"github.com/jeranaias/qbot-tui/internal/config"
	"github.com/jeranaias/qbot-tui/internal/model"
)

// =============================================================================
// STORAGE KEYS
// =============================================================================

// Keys of the three persisted entries.
const (
	KeyToken     = "token"
	KeyUser      = "user"
	KeyExpiresAt = "expiresAt"
)

// ExpiresAtLayout is ISO-8601 in UTC with millisecond precision, e.g.
// 2024-11-20T10:15:30.123Z.
const ExpiresAtLayout = "2006-01-02T15:04:05.000Z07:00"

var allKeys = []string{KeyToken, KeyUser, KeyExpiresAt}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyToken is returned by Login when the server sent no token.
	ErrEmptyToken = errors.New("empty session token")

	// ErrSessionExpired is returned by Login when the token is already past
	// its expiry.
	ErrSessionExpired = errors.New("session already expired")
)

// =============================================================================
// TYPES
// =============================================================================

// Session is the decoded form of the stored entries.
type Session struct {
	UserName  string
	UserEmail string
	Token     string
	ExpiresAt time.Time
}

// User returns the identity part of the session.
func (s Session) User() model.User {
	return model.User{Name: s.UserName, Email: s.UserEmail}
}

// Remaining returns how long until expiry, never negative.
func (s Session) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Credentials is what a successful login response yields.
type Credentials struct {
	Name  string
	Email string
	Token string
	// ExpiresAt is zero when the server did not send one.
	ExpiresAt time.Time
}

// Route identifies a top-level screen.
type Route int

const (
	RouteLanding Route = iota
	RouteAuth
	RouteChat
	RouteNotFound
)

func (r Route) String() string {
	switch r {
	case RouteLanding:
		return "landing"
	case RouteAuth:
		return "auth"
	case RouteChat:
		return "chat"
	default:
		return "not-found"
	}
}

// Protected reports whether the route requires a session.
func (r Route) Protected() bool {
	return r == RouteChat
}

// Path returns the route's path form ("/", "/auth", "/chat").
func (r Route) Path() string {
	switch r {
	case RouteLanding:
		return "/"
	case RouteAuth:
		return "/auth"
	case RouteChat:
		return "/chat"
	default:
		return "/404"
	}
}

// ParseRoute maps a path to a route. Anything unknown is RouteNotFound.
func ParseRoute(path string) Route {
	p := strings.TrimSuffix(strings.TrimSpace(path), "/")
	switch strings.ToLower(p) {
	case "", "landing":
		return RouteLanding
	case "/auth", "auth":
		return RouteAuth
	case "/chat", "chat":
		return RouteChat
	default:
		return RouteNotFound
	}
}

// Navigator moves the UI to a route.
type Navigator interface {
	Navigate(Route)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(Route)

// Navigate calls f(r).
func (f NavigatorFunc) Navigate(r Route) { f(r) }

// LogoutReason records why a session ended.
type LogoutReason int

const (
	// ReasonUser is an explicit sign-out.
	ReasonUser LogoutReason = iota
	// ReasonExpired is detected by CheckExpiry.
	ReasonExpired
	// ReasonUnauthorized follows a 401 from the API.
	ReasonUnauthorized
	// ReasonExternal means another process cleared the stored session.
	ReasonExternal
)

func (r LogoutReason) String() string {
	switch r {
	case ReasonUser:
		return "user"
	case ReasonExpired:
		return "expired"
	case ReasonUnauthorized:
		return "unauthorized"
	default:
		return "external"
	}
}

// Route returns where the user lands after a logout for this reason.
func (r LogoutReason) Route() Route {
	if r == ReasonUser {
		return RouteLanding
	}
	return RouteAuth
}

// EventKind distinguishes session events.
type EventKind int

const (
	EventLogin EventKind = iota
	EventResume
	EventLogout
)

// Event is delivered to Subscribe listeners.
type Event struct {
	Kind EventKind
	// Reason is set for EventLogout.
	Reason LogoutReason
	// Session is set for EventLogin and EventResume.
	Session Session
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds Store settings.
type Config struct {
	// CheckInterval is how often an active session is checked for expiry
	CheckInterval time.Duration
	// DefaultTTL is used when neither the response nor the token carries an expiry
	DefaultTTL time.Duration
	// WatchStorage enables reacting to changes made by other processes
	WatchStorage bool
	// Now is the clock (tests replace it)
	Now func() time.Time
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 60 * time.Second,
		DefaultTTL:    1440 * time.Minute,
		Now:           time.Now,
	}
}

// ConfigFrom derives a store Config from the application config.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	if d := cfg.Session.ExpiryCheckInterval(); d > 0 {
		c.CheckInterval = d
	}
	if d := cfg.Session.DefaultTTL(); d > 0 {
		c.DefaultTTL = d
	}
	c.WatchStorage = cfg.Session.WatchStorage
	return c
}
