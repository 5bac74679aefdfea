// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat orchestrates the question/answer history for the signed-in user.
//
// The Controller owns the in-memory list of records and the current
// selection. Views read it through Snapshot and Subscribe; they never
// mutate it. A 401 from any call ends the session through the injected
// SessionInvalidator.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/qbot-tui/internal/api"
	"github.com/jeranaias/qbot-tui/internal/logging"
	"github.com/jeranaias/qbot-tui/internal/model"
	"github.com/jeranaias/qbot-tui/internal/session"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyQuestion rejects blank input before any network call.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrBusy rejects a submit while another one is in flight.
	ErrBusy = errors.New("a question is already being answered")

	// ErrSessionInvalid means the server rejected the token; the session has
	// been logged out.
	ErrSessionInvalid = errors.New("session is no longer valid")
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// API is the subset of api.Client the controller uses.
type API interface {
	History(ctx context.Context) ([]model.ChatRecord, error)
	Ask(ctx context.Context, question string) (model.ChatRecord, error)
	Get(ctx context.Context, id model.RecordID) (model.ChatRecord, error)
	Delete(ctx context.Context, id model.RecordID) error
}

// SessionInvalidator ends the session after a 401.
type SessionInvalidator interface {
	Logout(reason session.LogoutReason) error
}

// =============================================================================
// STATE
// =============================================================================

// State is an immutable copy of the controller state.
type State struct {
	// Records is most recent first.
	Records  []model.ChatRecord
	Selected model.RecordID

	// Loading is true while a history fetch is in flight.
	Loading bool
	// Submitting is true while a question is being answered.
	Submitting bool
	// Deleting is the id of a record whose delete is in flight.
	Deleting model.RecordID
	// Loaded is true after the first successful fetch.
	Loaded bool

	// Err is the most recent failure, cleared by the next success.
	Err error
}

// SelectedRecord returns the selected record, if any.
func (s State) SelectedRecord() (model.ChatRecord, bool) {
	if s.Selected.IsZero() {
		return model.ChatRecord{}, false
	}
	if i := model.IndexOf(s.Records, s.Selected); i >= 0 {
		return s.Records[i], true
	}
	return model.ChatRecord{}, false
}

// Busy reports whether any request is in flight.
func (s State) Busy() bool {
	return s.Loading || s.Submitting || !s.Deleting.IsZero()
}

// =============================================================================
// CONTROLLER
// =============================================================================

// insert is a record added by a submit, remembered while a fetch that
// started before it is still in flight.
type insert struct {
	seq int
	rec model.ChatRecord
}

// Controller serializes every state change under one mutex. Network calls
// run without the lock held.
type Controller struct {
	mu sync.Mutex

	api  API
	sess SessionInvalidator
	log  *zap.Logger

	state State
	// epoch changes on Reset; results of calls started before it are dropped
	epoch int

	// fetch bookkeeping
	fetchGen    int
	appliedGen  int
	inFlight    int
	insertSeq   int
	recentAdded []insert

	listeners map[int]func(State)
	nextID    int
}

// NewController creates a controller. A nil logger discards output.
func NewController(client API, sess SessionInvalidator, logger *zap.Logger) *Controller {
	return &Controller{
		api:       client,
		sess:      sess,
		log:       logging.OrNop(logger).Named("chat"),
		listeners: make(map[int]func(State)),
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Records = append([]model.ChatRecord(nil), c.state.Records...)
	return s
}

// Subscribe registers fn for state changes and returns a function that
// removes it. fn is called without the controller lock.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// update applies fn under the lock and then notifies listeners.
func (c *Controller) update(fn func(*State)) State {
	c.mu.Lock()
	fn(&c.state)
	snap := c.snapshotLocked()
	fns := make([]func(State), 0, len(c.listeners))
	for _, l := range c.listeners {
		fns = append(fns, l)
	}
	c.mu.Unlock()

	for _, l := range fns {
		l(snap)
	}
	return snap
}

// =============================================================================
// OPERATIONS
// =============================================================================

// FetchHistory replaces the list with the server's history. On failure the
// list is left as it was.
func (c *Controller) FetchHistory(ctx context.Context) ([]model.ChatRecord, error) {
	var gen, startSeq, epoch int
	c.update(func(s *State) {
		c.fetchGen++
		gen = c.fetchGen
		epoch = c.epoch
		startSeq = c.insertSeq
		c.inFlight++
		s.Loading = true
	})

	records, err := c.api.History(ctx)

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()

	if err != nil {
		err = c.fail(err, epoch, "fetch history", func(s *State) {
			s.Loading = c.inFlight > 0
		})
		return nil, err
	}

	snap := c.update(func(s *State) {
		s.Loading = c.inFlight > 0
		if c.epoch != epoch || gen < c.appliedGen {
			// a newer fetch already landed
			return
		}
		c.appliedGen = gen

		merged := append([]model.ChatRecord(nil), records...)
		// records answered while this fetch was in flight stay visible
		for i := len(c.recentAdded) - 1; i >= 0; i-- {
			in := c.recentAdded[i]
			if in.seq > startSeq && model.IndexOf(merged, in.rec.ID) < 0 {
				merged = append([]model.ChatRecord{in.rec}, merged...)
			}
		}
		if c.inFlight == 0 {
			c.recentAdded = nil
		}

		s.Records = merged
		s.Loaded = true
		s.Err = nil
		if model.IndexOf(merged, s.Selected) < 0 {
			s.Selected = ""
		}
	})

	c.log.Debug("history fetched", zap.Int("records", len(snap.Records)))
	return snap.Records, nil
}

// SubmitQuestion sends text to the server. Blank input is rejected before
// any request; a second submit while one is in flight gets ErrBusy. On
// success the answered record is put first and selected.
func (c *Controller) SubmitQuestion(ctx context.Context, text string) (model.ChatRecord, error) {
	question := NormalizeQuestion(text)
	if question == "" {
		return model.ChatRecord{}, ErrEmptyQuestion
	}

	busy, epoch := false, 0
	c.update(func(s *State) {
		epoch = c.epoch
		if s.Submitting {
			busy = true
			return
		}
		s.Submitting = true
	})
	if busy {
		return model.ChatRecord{}, ErrBusy
	}

	rec, err := c.api.Ask(ctx, question)
	if err != nil {
		err = c.fail(err, epoch, "submit question", func(s *State) { s.Submitting = false })
		return model.ChatRecord{}, err
	}

	c.update(func(s *State) {
		if c.epoch != epoch {
			return
		}
		s.Submitting = false
		s.Err = nil
		if i := model.IndexOf(s.Records, rec.ID); i >= 0 {
			s.Records = append(s.Records[:i:i], s.Records[i+1:]...)
		}
		s.Records = append([]model.ChatRecord{rec}, s.Records...)
		s.Selected = rec.ID

		c.insertSeq++
		if c.inFlight > 0 {
			c.recentAdded = append(c.recentAdded, insert{seq: c.insertSeq, rec: rec})
		}
	})

	c.log.Info("question answered", zap.String("id", rec.ID.String()))
	return rec, nil
}

// DeleteChat deletes a record on the server. On success a matching
// selection is cleared and the history is fetched again; a failed refresh
// is reported through the state, not the return value.
func (c *Controller) DeleteChat(ctx context.Context, id model.RecordID) error {
	if id.IsZero() {
		return fmt.Errorf("%w: empty id", api.ErrNotFound)
	}

	var epoch int
	c.update(func(s *State) {
		epoch = c.epoch
		s.Deleting = id
	})

	if err := c.api.Delete(ctx, id); err != nil {
		return c.fail(err, epoch, "delete chat", func(s *State) { s.Deleting = "" })
	}

	stale := false
	c.update(func(s *State) {
		if c.epoch != epoch {
			stale = true
			return
		}
		s.Deleting = ""
		s.Err = nil
		if s.Selected == id {
			s.Selected = ""
		}
		if i := model.IndexOf(s.Records, id); i >= 0 {
			s.Records = append(s.Records[:i:i], s.Records[i+1:]...)
		}
	})
	c.log.Info("chat deleted", zap.String("id", id.String()))
	if stale {
		return nil
	}

	if _, err := c.FetchHistory(ctx); errors.Is(err, ErrSessionInvalid) {
		return err
	}
	return nil
}

// OpenChat fetches one record, refreshes it in the list and selects it.
func (c *Controller) OpenChat(ctx context.Context, id model.RecordID) (model.ChatRecord, error) {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	rec, err := c.api.Get(ctx, id)
	if err != nil {
		return model.ChatRecord{}, c.fail(err, epoch, "open chat", func(*State) {})
	}

	c.update(func(s *State) {
		if c.epoch != epoch {
			return
		}
		if i := model.IndexOf(s.Records, rec.ID); i >= 0 {
			records := append([]model.ChatRecord(nil), s.Records...)
			records[i] = rec
			s.Records = records
		} else {
			s.Records = append([]model.ChatRecord{rec}, s.Records...)
		}
		s.Selected = rec.ID
		s.Err = nil
	})
	return rec, nil
}

// Select makes id the selected record. Returns false when id is not listed.
func (c *Controller) Select(id model.RecordID) bool {
	found := false
	c.update(func(s *State) {
		if model.IndexOf(s.Records, id) >= 0 {
			s.Selected = id
			found = true
		}
	})
	return found
}

// ClearSelection deselects the current record.
func (c *Controller) ClearSelection() {
	c.update(func(s *State) { s.Selected = "" })
}

// Reset drops every record and flag. Used when the session ends; calls
// still in flight no longer change the state when they return.
func (c *Controller) Reset() {
	c.update(c.resetLocked)
}

func (c *Controller) resetLocked(s *State) {
	*s = State{}
	c.recentAdded = nil
	c.epoch++
}

// =============================================================================
// HELPERS
// =============================================================================

// NormalizeQuestion applies NFC normalization and trims surrounding space.
func NormalizeQuestion(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}

// fail records err in the state. A 401 (or a missing token) logs the
// session out and becomes ErrSessionInvalid. Failures of calls started
// before a Reset leave the state alone.
func (c *Controller) fail(err error, epoch int, op string, restore func(*State)) error {
	c.mu.Lock()
	stale := c.epoch != epoch
	c.mu.Unlock()
	if stale {
		c.log.Debug(op+" finished after reset", zap.Error(err))
		return err
	}

	if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrNoToken) {
		c.log.Info("session rejected by server", zap.String("op", op))
		c.update(c.resetLocked)
		if c.sess != nil {
			if logoutErr := c.sess.Logout(session.ReasonUnauthorized); logoutErr != nil {
				c.log.Warn("logout after 401 failed", zap.Error(logoutErr))
			}
		}
		return fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}

	c.log.Warn(op+" failed", zap.Error(err))
	c.update(func(s *State) {
		restore(s)
		s.Err = err
	})
	return err
}
