// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/jeranaias/qbot-tui/internal/logging"
	"github.com/jeranaias/qbot-tui/internal/model"
	"github.com/jeranaias/qbot-tui/internal/storage"
)

// =============================================================================
// STORE
// =============================================================================

// Store is the single owner of login, logout and expiry handling.
// It is safe for concurrent use. Listeners and the navigator are always
// called without the lock held.
type Store struct {
	mu sync.Mutex

	kv  storage.Store
	cfg Config
	log *zap.Logger
	nav Navigator

	active  bool
	current Session

	listeners map[int]func(Event)
	nextID    int

	// expiry ticker
	timerCancel context.CancelFunc
	timerDone   chan struct{}

	// storage watcher
	watchCancel context.CancelFunc

	closed bool
}

// NewStore creates a store over kv. A nil logger discards output.
func NewStore(kv storage.Store, cfg Config, logger *zap.Logger) *Store {
	d := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = d.CheckInterval
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = d.DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = d.Now
	}
	return &Store{
		kv:        kv,
		cfg:       cfg,
		log:       logging.OrNop(logger).Named("session"),
		listeners: make(map[int]func(Event)),
	}
}

// SetNavigator sets the navigator used after login and logout.
func (s *Store) SetNavigator(nav Navigator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav = nav
}

// Subscribe registers fn for session events and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

// Login persists a new session, activates it and navigates to the chat view.
func (s *Store) Login(creds Credentials) error {
	token := strings.TrimSpace(creds.Token)
	if token == "" {
		return ErrEmptyToken
	}

	now := s.cfg.Now()
	sess := Session{
		UserName:  creds.Name,
		UserEmail: creds.Email,
		Token:     token,
		ExpiresAt: s.expiryFor(creds, now).UTC().Truncate(time.Millisecond),
	}

	userJSON, err := json.Marshal(sess.User())
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	if err := s.kv.SetMany(map[string]string{
		KeyToken:     sess.Token,
		KeyUser:      string(userJSON),
		KeyExpiresAt: sess.ExpiresAt.Format(ExpiresAtLayout),
	}); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	if !now.Before(sess.ExpiresAt) {
		s.log.Warn("login token already expired", zap.Time("expires_at", sess.ExpiresAt))
		_ = s.Logout(ReasonExpired)
		return ErrSessionExpired
	}

	s.mu.Lock()
	s.activateLocked(sess)
	s.mu.Unlock()

	s.log.Info("signed in",
		zap.String("email", sess.UserEmail),
		zap.Time("expires_at", sess.ExpiresAt))

	s.emit(Event{Kind: EventLogin, Session: sess})
	s.navigate(RouteChat)
	return nil
}

// expiryFor picks the session expiry: the server's value, else the token's
// exp claim, else now + DefaultTTL.
func (s *Store) expiryFor(creds Credentials, now time.Time) time.Time {
	if !creds.ExpiresAt.IsZero() {
		return creds.ExpiresAt
	}
	if exp, ok := tokenExpiry(creds.Token); ok {
		return exp
	}
	return now.Add(s.cfg.DefaultTTL)
}

// tokenExpiry reads the exp claim of a JWT without verifying it. The client
// has no key; the server remains the authority on validity.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Logout removes all session entries, deactivates the session and navigates
// to the public route for reason. It is safe to call with no session;
// listeners are only told about an actual active to inactive change.
func (s *Store) Logout(reason LogoutReason) error {
	err := s.kv.Remove(allKeys...)
	if err != nil {
		err = fmt.Errorf("failed to clear session: %w", err)
		s.log.Error("logout could not clear storage", zap.Error(err))
	}

	s.mu.Lock()
	wasActive := s.active
	s.deactivateLocked()
	s.mu.Unlock()

	if wasActive {
		s.log.Info("signed out", zap.Stringer("reason", reason))
		s.emit(Event{Kind: EventLogout, Reason: reason})
	}
	s.navigate(reason.Route())
	return err
}

// =============================================================================
// STATE QUERIES
// =============================================================================

// Current decodes the stored session. Anything missing or malformed is
// reported as no session.
func (s *Store) Current() (Session, bool) {
	values, err := s.kv.GetMany(allKeys...)
	if err != nil {
		return Session{}, false
	}
	for _, key := range allKeys {
		if values[key] == "" {
			return Session{}, false
		}
	}

	var user model.User
	if err := json.Unmarshal([]byte(values[KeyUser]), &user); err != nil {
		return Session{}, false
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, values[KeyExpiresAt])
	if err != nil {
		return Session{}, false
	}

	return Session{
		UserName:  user.Name,
		UserEmail: user.Email,
		Token:     values[KeyToken],
		ExpiresAt: expiresAt,
	}, true
}

// Token returns the stored bearer token of a valid session.
func (s *Store) Token() (string, bool) {
	sess, ok := s.Current()
	if !ok || !s.cfg.Now().Before(sess.ExpiresAt) {
		return "", false
	}
	return sess.Token, true
}

// IsAuthenticated reports whether a complete, unexpired session is stored.
// It never changes state.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

// Active reports whether this store has activated the session (login,
// resume or reload) and not yet deactivated it.
func (s *Store) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// TimerRunning reports whether the expiry ticker is running.
func (s *Store) TimerRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timerCancel != nil
}

// =============================================================================
// EXPIRY AND RECONCILIATION
// =============================================================================

// CheckExpiry logs out a stored session whose expiry has passed. It returns
// true when it did so. The session is deactivated even if storage could not
// be cleared; the leftover entries stay expired and Current ignores them.
func (s *Store) CheckExpiry() bool {
	sess, ok := s.Current()
	if !ok || s.cfg.Now().Before(sess.ExpiresAt) {
		return false
	}
	s.log.Info("session expired", zap.Time("expires_at", sess.ExpiresAt))
	if err := s.Logout(ReasonExpired); err != nil {
		s.log.Warn("expired session left in storage", zap.Error(err))
	}
	return true
}

// Resume activates a valid stored session at startup. An expired session is
// cleared, and a partial one is cleared too. Returns whether a session is
// now active.
func (s *Store) Resume() bool {
	sess, ok := s.Current()
	if !ok {
		s.clearPartial()
		return false
	}
	if !s.cfg.Now().Before(sess.ExpiresAt) {
		s.CheckExpiry()
		return false
	}

	s.mu.Lock()
	s.activateLocked(sess)
	s.mu.Unlock()

	s.log.Debug("session resumed", zap.String("email", sess.UserEmail))
	s.emit(Event{Kind: EventResume, Session: sess})
	return true
}

// clearPartial removes leftover entries when the stored session is
// incomplete or unreadable.
func (s *Store) clearPartial() {
	for _, key := range allKeys {
		if _, ok, err := s.kv.Get(key); ok || err != nil {
			if err := s.kv.Remove(allKeys...); err != nil {
				s.log.Warn("could not clear partial session", zap.Error(err))
			}
			return
		}
	}
}

// Reload reconciles the active flag with storage after an external change,
// such as another qbot process signing in or out.
func (s *Store) Reload() {
	sess, ok := s.Current()
	if ok && !s.cfg.Now().Before(sess.ExpiresAt) {
		s.CheckExpiry()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	wasActive, prev := s.active, s.current

	switch {
	case ok && (!wasActive || prev.Token != sess.Token):
		s.activateLocked(sess)
		s.mu.Unlock()
		s.log.Info("session changed externally", zap.String("email", sess.UserEmail))
		s.emit(Event{Kind: EventLogin, Session: sess})
		s.navigate(RouteChat)

	case !ok && wasActive:
		s.deactivateLocked()
		s.mu.Unlock()
		s.log.Info("session cleared externally")
		s.emit(Event{Kind: EventLogout, Reason: ReasonExternal})
		s.navigate(ReasonExternal.Route())

	default:
		s.mu.Unlock()
	}
}

// StartWatching follows external changes to file-backed storage until ctx
// is done or the store is closed. Backends without a file are ignored.
func (s *Store) StartWatching(ctx context.Context) error {
	p, ok := s.kv.(storage.Pather)
	if !ok || !s.cfg.WatchStorage {
		return nil
	}

	s.mu.Lock()
	if s.watchCancel != nil || s.closed {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel
	s.mu.Unlock()

	if err := storage.Watch(ctx, p.Path(), 0, s.Reload); err != nil {
		cancel()
		s.mu.Lock()
		s.watchCancel = nil
		s.mu.Unlock()
		return err
	}
	return nil
}

// Close stops the expiry ticker and the storage watcher. It does not clear
// the stored session.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	cancel, done := s.timerCancel, s.timerDone
	s.timerCancel, s.timerDone = nil, nil
	watchCancel := s.watchCancel
	s.watchCancel = nil
	s.mu.Unlock()

	if watchCancel != nil {
		watchCancel()
	}
	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Store) activateLocked(sess Session) {
	s.active = true
	s.current = sess
	if !s.closed {
		s.startTimerLocked()
	}
}

func (s *Store) deactivateLocked() {
	s.active = false
	s.current = Session{}
	s.stopTimerLocked()
}

func (s *Store) startTimerLocked() {
	s.stopTimerLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.timerCancel, s.timerDone = cancel, done

	go func(interval time.Duration) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.CheckExpiry() {
					return
				}
			}
		}
	}(s.cfg.CheckInterval)
}

// stopTimerLocked cancels the ticker without waiting for it, since it may be
// the ticker goroutine itself that is logging out.
func (s *Store) stopTimerLocked() {
	if s.timerCancel != nil {
		s.timerCancel()
		s.timerCancel, s.timerDone = nil, nil
	}
}

func (s *Store) emit(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Store) navigate(r Route) {
	s.mu.Lock()
	nav := s.nav
	s.mu.Unlock()
	if nav != nil {
		nav.Navigate(r)
	}
}
