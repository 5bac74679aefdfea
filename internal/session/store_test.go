// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/qbot-tui/internal/config"
	"github.com/jeranaias/qbot-tui/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	routes []Route
}

func (r *recorder) OnEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Navigate(route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) Routes() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Route(nil), r.routes...)
}

// failingKV wraps a MemoryStore, fails writes on demand and counts reads.
type failingKV struct {
	*storage.MemoryStore
	failWrites  bool
	failRemoves bool

	mu      sync.Mutex
	gets    int
	getMany int
}

func (f *failingKV) SetMany(entries map[string]string) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.MemoryStore.SetMany(entries)
}

func (f *failingKV) Remove(keys ...string) error {
	if f.failRemoves {
		return errors.New("read-only file system")
	}
	return f.MemoryStore.Remove(keys...)
}

func (f *failingKV) Get(key string) (string, bool, error) {
	f.mu.Lock()
	f.gets++
	f.mu.Unlock()
	return f.MemoryStore.Get(key)
}

func (f *failingKV) GetMany(keys ...string) (map[string]string, error) {
	f.mu.Lock()
	f.getMany++
	f.mu.Unlock()
	return f.MemoryStore.GetMany(keys...)
}

func (f *failingKV) reads() (gets, getMany int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets, f.getMany
}

func newTestStore(t *testing.T, kv storage.Store) (*Store, *fakeClock, *recorder) {
	t.Helper()
	clock := newClock()
	cfg := DefaultConfig()
	cfg.Now = clock.Now

	st := NewStore(kv, cfg, nil)
	rec := &recorder{}
	st.SetNavigator(rec)
	st.Subscribe(rec.OnEvent)
	t.Cleanup(func() { st.Close() })
	return st, clock, rec
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func storedKeys(t *testing.T, kv storage.Store) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, k := range allKeys {
		if v, ok, err := kv.Get(k); err == nil && ok {
			out[k] = v
		}
	}
	return out
}

// =============================================================================
// LOGIN
// =============================================================================

func TestLogin_StoresConsistentSession(t *testing.T) {
	kv := storage.NewMemoryStore()
	st, clock, rec := newTestStore(t, kv)

	err := st.Login(Credentials{Name: "Ada", Email: "ada@example.com", Token: "opaque-token"})
	require.NoError(t, err)

	stored := storedKeys(t, kv)
	require.Len(t, stored, 3)
	assert.Equal(t, "opaque-token", stored[KeyToken])
	assert.JSONEq(t, `{"name":"Ada","email":"ada@example.com"}`, stored[KeyUser])
	assert.Equal(t, "2025-03-02T12:00:00.000Z", stored[KeyExpiresAt])

	sess, ok := st.Current()
	require.True(t, ok)
	assert.Equal(t, "Ada", sess.UserName)
	assert.Equal(t, clock.Now().Add(24*time.Hour), sess.ExpiresAt)

	assert.True(t, st.IsAuthenticated())
	assert.True(t, st.Active())
	assert.True(t, st.TimerRunning())

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventLogin, events[0].Kind)
	assert.Equal(t, []Route{RouteChat}, rec.Routes())
}

func TestLogin_ExpirySources(t *testing.T) {
	clock := newClock()

	t.Run("response expires_at wins", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		st, _, _ := newTestStore(t, kv)
		explicit := clock.Now().Add(2 * time.Hour)

		require.NoError(t, st.Login(Credentials{
			Token:     signedToken(t, clock.Now().Add(10*time.Hour)),
			ExpiresAt: explicit,
		}))
		sess, _ := st.Current()
		assert.Equal(t, explicit, sess.ExpiresAt)
	})

	t.Run("jwt exp claim", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		st, _, _ := newTestStore(t, kv)
		exp := clock.Now().Add(90 * time.Minute)

		require.NoError(t, st.Login(Credentials{Token: signedToken(t, exp)}))
		sess, _ := st.Current()
		assert.Equal(t, exp, sess.ExpiresAt)
	})

	t.Run("default ttl", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		st, _, _ := newTestStore(t, kv)

		require.NoError(t, st.Login(Credentials{Token: "not-a-jwt"}))
		sess, _ := st.Current()
		assert.Equal(t, clock.Now().Add(1440*time.Minute), sess.ExpiresAt)
	})
}

func TestLogin_EmptyTokenRejected(t *testing.T) {
	kv := storage.NewMemoryStore()
	st, _, rec := newTestStore(t, kv)

	err := st.Login(Credentials{Name: "Ada", Token: "   "})
	assert.ErrorIs(t, err, ErrEmptyToken)
	assert.Empty(t, storedKeys(t, kv))
	assert.False(t, st.Active())
	assert.Empty(t, rec.Events())
}

func TestLogin_ExpiredTokenIsCleared(t *testing.T) {
	kv := storage.NewMemoryStore()
	st, clock, rec := newTestStore(t, kv)

	err := st.Login(Credentials{Token: signedToken(t, clock.Now().Add(-time.Minute))})
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Empty(t, storedKeys(t, kv))
	assert.False(t, st.Active())
	assert.Equal(t, []Route{RouteAuth}, rec.Routes())
}

func TestLogin_StorageFailure(t *testing.T) {
	kv := &failingKV{MemoryStore: storage.NewMemoryStore(), failWrites: true}
	st, _, rec := newTestStore(t, kv)

	err := st.Login(Credentials{Token: "t"})
	require.Error(t, err)
	assert.False(t, st.Active())
	assert.False(t, st.TimerRunning())
	assert.Empty(t, rec.Routes())
}

// =============================================================================
// LOGOUT
// =============================================================================

func TestLogout_ClearsAndIsIdempotent(t *testing.T) {
	kv := storage.NewMemoryStore()
	st, _, rec := newTestStore(t, kv)
	require.NoError(t, st.Login(Credentials{Name: "Ada", Token: "t"}))

	require.NoError(t, st.Logout(ReasonUser))
	assert.Empty(t, storedKeys(t, kv))
	assert.False(t, st.Active())
	assert.False(t, st.TimerRunning())
	assert.False(t, st.IsAuthenticated())

	require.NoError(t, st.Logout(ReasonUser))

	var logouts int
	for _, ev := range rec.Events() {
		if ev.Kind == EventLogout {
			logouts++
			assert.Equal(t, ReasonUser, ev.Reason)
		}
	}
	assert.Equal(t, 1, logouts)
	assert.Equal(t, []Route{RouteChat, RouteLanding, RouteLanding}, rec.Routes())
}

func TestLogout_WithoutSessionClearsStrayEntries(t *testing.T) {
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(KeyToken, "leftover"))
	st, _, rec := newTestStore(t, kv)

	require.NoError(t, st.Logout(ReasonUnauthorized))
	assert.Empty(t, storedKeys(t, kv))
	assert.Empty(t, rec.Events())
	assert.Equal(t, []Route{RouteAuth}, rec.Routes())
}

func TestLogoutReason_Routes(t *testing.T) {
	assert.Equal(t, RouteLanding, ReasonUser.Route())
	assert.Equal(t, RouteAuth, ReasonExpired.Route())
	assert.Equal(t, RouteAuth, ReasonUnauthorized.Route())
	assert.Equal(t, RouteAuth, ReasonExternal.Route())
	assert.False(t, RouteAuth.Protected())
	assert.True(t, RouteChat.Protected())
}

// =============================================================================
// EXPIRY
// =============================================================================

func TestParseRoute(t *testing.T) {
	tests := map[string]Route{
		"/":       RouteLanding,
		"":        RouteLanding,
		"/auth":   RouteAuth,
		"/auth/":  RouteAuth,
		"chat":    RouteChat,
		"/CHAT":   RouteChat,
		"/admin":  RouteNotFound,
		"/chat/x": RouteNotFound,
	}
	for path, want := range tests {
		assert.Equal(t, want, ParseRoute(path), path)
	}
	for _, r := range []Route{RouteLanding, RouteAuth, RouteChat} {
		assert.Equal(t, r, ParseRoute(r.Path()))
	}
	assert.True(t, RouteChat.Protected())
	assert.False(t, RouteAuth.Protected())
}

func TestIsAuthenticated_PastExpiryWithToken(t *testing.T) {
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.SetMany(map[string]string{
		KeyToken:     "still-here",
		KeyUser:      `{"name":"Ada","email":"ada@example.com"}`,
		KeyExpiresAt: "2020-01-01T00:00:00Z",
	}))
	st, _, rec := newTestStore(t, kv)

	assert.False(t, st.IsAuthenticated())
	// pure: nothing was removed
	assert.Len(t, storedKeys(t, kv), 3)

	assert.True(t, st.CheckExpiry())
	assert.Empty(t, storedKeys(t, kv))
	assert.Equal(t, []Route{RouteAuth}, rec.Routes())

	assert.False(t, st.CheckExpiry())
}

func TestCheckExpiry_ValidSessionUntouched(t *testing.T) {
	kv := storage.NewMemoryStore()
	st, clock, _ := newTestStore(t, kv)
	require.NoError(t, st.Login(Credentials{Token: "t"}))

	clock.Advance(23 * time.Hour)
	assert.False(t, st.CheckExpiry())
	assert.True(t, st.Active())

	clock.Advance(time.Hour)
	assert.True(t, st.CheckExpiry())
	assert.False(t, st.Active())
}

func TestCheckExpiry_ClearFailureIsLogged(t *testing.T) {
	kv := &failingKV{MemoryStore: storage.NewMemoryStore()}
	clock := newClock()
	cfg := DefaultConfig()
	cfg.Now = clock.Now
	core, logs := observer.New(zap.WarnLevel)
	st := NewStore(kv, cfg, zap.New(core))
	defer st.Close()
	rec := &recorder{}
	st.SetNavigator(rec)

	require.NoError(t, st.Login(Credentials{Token: "t"}))
	kv.failRemoves = true
	clock.Advance(25 * time.Hour)

	assert.True(t, st.CheckExpiry())
	assert.False(t, st.Active())
	assert.False(t, st.IsAuthenticated())
	assert.Equal(t, RouteAuth, rec.Routes()[len(rec.Routes())-1])

	// the entries are still there, and the failure was reported
	assert.Len(t, storedKeys(t, kv.MemoryStore), 3)
	entries := logs.FilterMessage("expired session left in storage").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "read-only file system")
}

func TestTimer_LogsOutOnExpiry(t *testing.T) {
	kv := storage.NewMemoryStore()
	clock := newClock()
	cfg := Config{CheckInterval: 10 * time.Millisecond, DefaultTTL: time.Hour, Now: clock.Now}
	st := NewStore(kv, cfg, nil)
	defer st.Close()

	expired := make(chan Event, 1)
	st.Subscribe(func(ev Event) {
		if ev.Kind == EventLogout {
			expired <- ev
		}
	})

	require.NoError(t, st.Login(Credentials{Token: "t"}))
	clock.Advance(2 * time.Hour)

	select {
	case ev := <-expired:
		assert.Equal(t, ReasonExpired, ev.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("expiry ticker did not log out")
	}
	assert.Empty(t, storedKeys(t, kv))
	assert.Eventually(t, func() bool { return !st.TimerRunning() }, time.Second, 5*time.Millisecond)
}

func TestClose_StopsTimer(t *testing.T) {
	kv := storage.NewMemoryStore()
	st, _, _ := newTestStore(t, kv)
	require.NoError(t, st.Login(Credentials{Token: "t"}))
	require.True(t, st.TimerRunning())

	require.NoError(t, st.Close())
	assert.False(t, st.TimerRunning())
	// the stored session survives Close
	assert.Len(t, storedKeys(t, kv), 3)
}

// =============================================================================
// CURRENT (FAIL CLOSED)
// =============================================================================

func TestCurrent_FailsClosed(t *testing.T) {
	valid := map[string]string{
		KeyToken:     "t",
		KeyUser:      `{"name":"Ada","email":"ada@example.com"}`,
		KeyExpiresAt: "2030-01-01T00:00:00.000Z",
	}

	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"missing token", func(m map[string]string) { delete(m, KeyToken) }},
		{"missing user", func(m map[string]string) { delete(m, KeyUser) }},
		{"missing expiry", func(m map[string]string) { delete(m, KeyExpiresAt) }},
		{"bad user json", func(m map[string]string) { m[KeyUser] = "{oops" }},
		{"bad timestamp", func(m map[string]string) { m[KeyExpiresAt] = "tomorrow" }},
		{"empty token", func(m map[string]string) { m[KeyToken] = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := map[string]string{}
			for k, v := range valid {
				entries[k] = v
			}
			tt.mutate(entries)

			kv := storage.NewMemoryStore()
			require.NoError(t, kv.SetMany(entries))
			st, _, _ := newTestStore(t, kv)

			_, ok := st.Current()
			assert.False(t, ok)
			assert.False(t, st.IsAuthenticated())
		})
	}
}

func TestCurrent_SingleSnapshotRead(t *testing.T) {
	kv := &failingKV{MemoryStore: storage.NewMemoryStore()}
	require.NoError(t, kv.MemoryStore.SetMany(map[string]string{
		KeyToken:     "token-b",
		KeyUser:      `{"name":"Bob","email":"bob@example.com"}`,
		KeyExpiresAt: "2030-01-01T00:00:00.000Z",
	}))
	st, _, _ := newTestStore(t, kv)

	sess, ok := st.Current()
	require.True(t, ok)
	assert.Equal(t, "token-b", sess.Token)
	assert.Equal(t, "bob@example.com", sess.UserEmail)

	gets, getMany := kv.reads()
	assert.Zero(t, gets)
	assert.Equal(t, 1, getMany)
}

func TestCurrent_FileBackendSeesWholeWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	kv, err := storage.NewFileStore(path)
	require.NoError(t, err)
	st, _, _ := newTestStore(t, kv)
	require.NoError(t, st.Login(Credentials{Name: "Ada", Email: "ada@example.com", Token: "token-a"}))

	other, err := storage.NewFileStore(path)
	require.NoError(t, err)
	defer other.Close()
	require.NoError(t, other.SetMany(map[string]string{
		KeyToken:     "token-b",
		KeyUser:      `{"name":"Bob","email":"bob@example.com"}`,
		KeyExpiresAt: "2030-01-01T00:00:00.000Z",
	}))

	sess, ok := st.Current()
	require.True(t, ok)
	assert.Equal(t, "token-b", sess.Token)
	assert.Equal(t, "Bob", sess.UserName)
	assert.Equal(t, "bob@example.com", sess.UserEmail)
}

// =============================================================================
// RESUME / RELOAD
// =============================================================================

func TestResume(t *testing.T) {
	t.Run("valid session", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		st, _, rec := newTestStore(t, kv)
		require.NoError(t, kv.SetMany(map[string]string{
			KeyToken:     "t",
			KeyUser:      `{"name":"Ada","email":"ada@example.com"}`,
			KeyExpiresAt: "2025-03-01T13:00:00.000Z",
		}))

		assert.True(t, st.Resume())
		assert.True(t, st.Active())
		assert.True(t, st.TimerRunning())
		require.Len(t, rec.Events(), 1)
		assert.Equal(t, EventResume, rec.Events()[0].Kind)
		assert.Empty(t, rec.Routes())
	})

	t.Run("expired session", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		st, _, _ := newTestStore(t, kv)
		require.NoError(t, kv.SetMany(map[string]string{
			KeyToken:     "t",
			KeyUser:      `{"name":"Ada"}`,
			KeyExpiresAt: "2020-01-01T00:00:00Z",
		}))

		assert.False(t, st.Resume())
		assert.Empty(t, storedKeys(t, kv))
	})

	t.Run("partial session", func(t *testing.T) {
		kv := storage.NewMemoryStore()
		st, _, _ := newTestStore(t, kv)
		require.NoError(t, kv.Set(KeyToken, "orphan"))

		assert.False(t, st.Resume())
		assert.Empty(t, storedKeys(t, kv))
	})
}

func TestReload_ExternalChanges(t *testing.T) {
	kv := storage.NewMemoryStore()
	st, _, rec := newTestStore(t, kv)
	other, _, _ := newTestStore(t, kv)

	// another process signs in
	require.NoError(t, other.Login(Credentials{Name: "Ada", Token: "t1"}))
	st.Reload()
	assert.True(t, st.Active())

	// nothing changed: no new event
	st.Reload()
	assert.Len(t, rec.Events(), 1)

	// another process signs out
	require.NoError(t, other.Logout(ReasonUser))
	st.Reload()
	assert.False(t, st.Active())

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventLogin, events[0].Kind)
	assert.Equal(t, EventLogout, events[1].Kind)
	assert.Equal(t, ReasonExternal, events[1].Reason)
	assert.Equal(t, []Route{RouteChat, RouteAuth}, rec.Routes())
}

func TestStartWatching_FileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	kvA, err := storage.NewFileStore(path)
	require.NoError(t, err)
	kvB, err := storage.NewFileStore(path)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.WatchStorage = true
	a := NewStore(kvA, cfg, nil)
	defer a.Close()
	b := NewStore(kvB, cfg, nil)
	defer b.Close()

	require.NoError(t, b.Login(Credentials{Name: "Ada", Token: "t"}))
	require.True(t, a.Resume())

	loggedOut := make(chan Event, 1)
	a.Subscribe(func(ev Event) {
		if ev.Kind == EventLogout {
			loggedOut <- ev
		}
	})
	require.NoError(t, a.StartWatching(context.Background()))

	require.NoError(t, b.Logout(ReasonUser))

	select {
	case ev := <-loggedOut:
		assert.Equal(t, ReasonExternal, ev.Reason)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report external logout")
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	st := NewStore(storage.NewMemoryStore(), DefaultConfig(), nil)
	defer st.Close()

	var n int
	unsub := st.Subscribe(func(Event) { n++ })
	require.NoError(t, st.Login(Credentials{Token: "a"}))
	unsub()
	unsub()
	require.NoError(t, st.Logout(ReasonUser))

	assert.Equal(t, 1, n)
}

func TestConfigFrom(t *testing.T) {
	c := config.Default()
	c.Session.ExpiryCheckSecs = 5
	c.Session.DefaultTTLMinutes = 30

	cfg := ConfigFrom(c)
	assert.Equal(t, 5*time.Second, cfg.CheckInterval)
	assert.Equal(t, 30*time.Minute, cfg.DefaultTTL)
	assert.True(t, cfg.WatchStorage)
}
