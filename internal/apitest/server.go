// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apitest is an in-process stand-in for the QBot server.
//
// It speaks the same wire format as the real server: bcrypt-hashed
// passwords, HS256 tokens whose sub is the user id, zone-less created_at
// timestamps and {"detail": ...} errors. Tests can seed data, count hits per
// route and force failures. The dev-server command serves it for manual runs.
package apitest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/qbot-tui/internal/logging"
	"github.com/jeranaias/qbot-tui/internal/model"
)

// Route keys accepted by Hits and Fail.
const (
	RouteLogin    = "POST /auth/login"
	RouteRegister = "POST /auth/register"
	RouteHistory  = "GET /questions/history"
	RouteAsk      = "POST /questions/ask"
	RouteGet      = "GET /questions/:id"
	RouteDelete   = "DELETE /questions/:id"
)

// naiveLayout is how the server serializes created_at (no zone).
const naiveLayout = "2006-01-02T15:04:05.999999"

// TokenTTL matches the server's access token lifetime.
const TokenTTL = 1440 * time.Minute

type user struct {
	id           string
	name         string
	email        string
	passwordHash []byte
}

type stored struct {
	rec       model.ChatRecord
	createdAt time.Time
}

// Failure is a forced response for a route.
type Failure struct {
	Status      int
	Detail      string
	ContentType string // non-JSON body when set
	Remaining   int    // 0 = until cleared
}

// Server is the fake API.
type Server struct {
	engine *gin.Engine
	secret []byte
	log    *zap.Logger

	mu       sync.Mutex
	users    map[string]*user // by email
	records  map[string][]stored
	hits     map[string]int
	failures map[string]*Failure
	now      func() time.Time

	answer           func(question string) string
	beforeAsk        func()
	includeExpiresAt bool

	ts *httptest.Server
}

// New creates a fake server. A nil logger discards request logs.
func New(logger *zap.Logger) *Server {
	s := &Server{
		secret:   []byte("qbot-fake-" + uuid.NewString()),
		log:      logging.OrNop(logger).Named("fakeapi"),
		users:    make(map[string]*user),
		records:  make(map[string][]stored),
		hits:     make(map[string]int),
		failures: make(map[string]*Failure),
		now:      time.Now,
		answer: func(q string) string {
			return "## Answer\n\nYou asked: *" + q + "*"
		},
	}
	s.engine = s.routes()
	return s
}

// Start serves s on a local port for the duration of the test.
func Start(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := New(nil)
	s.ts = httptest.NewServer(s.engine)
	t.Cleanup(s.ts.Close)
	return s
}

// URL returns the base URL of a server created with Start.
func (s *Server) URL() string {
	if s.ts == nil {
		return ""
	}
	return s.ts.URL
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// SetAnswerFunc replaces the answer generator.
func (s *Server) SetAnswerFunc(fn func(question string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer = fn
}

// SetBeforeAsk installs a hook that runs inside the ask handler before it
// answers. Tests use it to hold a request in flight.
func (s *Server) SetBeforeAsk(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeAsk = fn
}

// SetIncludeExpiresAt adds expires_at to login responses.
func (s *Server) SetIncludeExpiresAt(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.includeExpiresAt = on
}

// SetClock replaces the server clock used for tokens and created_at.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// =============================================================================
// ROUTES
// =============================================================================

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.requestLogger(), gin.Recovery(), s.countAndFail())

	auth := r.Group("/auth")
	auth.POST("/register", s.handleRegister)
	auth.POST("/login", s.handleLogin)

	q := r.Group("/questions", s.requireToken())
	q.GET("/history", s.handleHistory)
	q.POST("/ask", s.handleAsk)
	q.GET("/:id", s.handleGet)
	q.DELETE("/:id", s.handleDelete)

	r.NoRoute(func(c *gin.Context) {
		detail(c, http.StatusNotFound, "Not Found")
	})
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
		)
	}
}

// countAndFail records the hit and applies any forced failure.
func (s *Server) countAndFail() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.FullPath()

		s.mu.Lock()
		s.hits[key]++
		var forced *Failure
		if f, ok := s.failures[key]; ok {
			copied := *f
			forced = &copied
			if f.Remaining > 0 {
				f.Remaining--
				if f.Remaining == 0 {
					delete(s.failures, key)
				}
			}
		}
		s.mu.Unlock()

		if forced == nil {
			c.Next()
			return
		}
		if forced.ContentType != "" {
			c.Data(forced.Status, forced.ContentType, []byte("<html><body>"+forced.Detail+"</body></html>"))
			c.Abort()
			return
		}
		detail(c, forced.Status, forced.Detail)
		c.Abort()
	}
}

const userIDKey = "user_id"

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			validation(c, []string{"header", "authorization"}, "Field required")
			c.Abort()
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			detail(c, http.StatusUnauthorized, "Invalid authorization format")
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
			func(t *jwt.Token) (any, error) { return s.secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(s.clock()),
		)
		if err != nil {
			detail(c, http.StatusUnauthorized, "Could not validate token")
			c.Abort()
			return
		}
		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			detail(c, http.StatusUnauthorized, "Invalid token: User ID not found")
			c.Abort()
			return
		}

		c.Set(userIDKey, sub)
		c.Next()
	}
}

func (s *Server) clock() func() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// =============================================================================
// HANDLERS
// =============================================================================

type registerBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		validation(c, []string{"body"}, "Invalid JSON")
		return
	}
	if missing := missingField(map[string]string{"name": body.Name, "email": body.Email, "password": body.Password}); missing != "" {
		validation(c, []string{"body", missing}, "Field required")
		return
	}
	if !strings.Contains(body.Email, "@") {
		validation(c, []string{"body", "email"}, "value is not a valid email address")
		return
	}

	id, err := s.AddUser(body.Name, body.Email, body.Password)
	if err != nil {
		detail(c, http.StatusBadRequest, "Email already registered")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "name": body.Name, "email": body.Email})
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		validation(c, []string{"body"}, "Invalid JSON")
		return
	}

	s.mu.Lock()
	u := s.users[strings.ToLower(body.Email)]
	s.mu.Unlock()

	if u == nil || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(body.Password)) != nil {
		detail(c, http.StatusBadRequest, "Invalid credentials")
		return
	}

	now := s.clock()()
	token, err := s.sign(u.id, now.Add(TokenTTL))
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	withExpiry := s.includeExpiresAt
	s.mu.Unlock()

	resp := gin.H{"name": u.name, "email": u.email, "token": token}
	if withExpiry {
		resp["expires_at"] = now.Add(TokenTTL).UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistory(c *gin.Context) {
	uid := c.GetString(userIDKey)

	s.mu.Lock()
	list := append([]stored(nil), s.records[uid]...)
	s.mu.Unlock()

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].createdAt.After(list[j].createdAt)
	})

	out := make([]gin.H, 0, len(list))
	for _, st := range list {
		out = append(out, recordJSON(st))
	}
	c.JSON(http.StatusOK, out)
}

type askBody struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(c *gin.Context) {
	var body askBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Question == "" {
		validation(c, []string{"body", "question"}, "Field required")
		return
	}
	s.mu.Lock()
	hook, answer := s.beforeAsk, s.answer
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	uid := c.GetString(userIDKey)
	st := s.addRecord(uid, model.ChatRecord{
		Title:    titleFor(body.Question),
		Question: body.Question,
		Answer:   answer(body.Question),
	})
	c.JSON(http.StatusOK, recordJSON(st))
}

func (s *Server) handleGet(c *gin.Context) {
	st, ok := s.find(c.GetString(userIDKey), c.Param("id"))
	if !ok {
		detail(c, http.StatusNotFound, "Question not found")
		return
	}
	c.JSON(http.StatusOK, recordJSON(st))
}

func (s *Server) handleDelete(c *gin.Context) {
	uid := c.GetString(userIDKey)
	id := c.Param("id")

	s.mu.Lock()
	list := s.records[uid]
	idx := -1
	for i := range list {
		if list[i].rec.ID.String() == id {
			idx = i
			break
		}
	}
	if idx >= 0 {
		s.records[uid] = append(list[:idx:idx], list[idx+1:]...)
	}
	s.mu.Unlock()

	if idx < 0 {
		detail(c, http.StatusNotFound, "Question not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

// =============================================================================
// TEST CONTROLS
// =============================================================================

// ErrEmailTaken is returned by AddUser for a duplicate email.
var ErrEmailTaken = errors.New("email already registered")

// AddUser registers an account and returns its id.
func (s *Server) AddUser(name, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if _, exists := s.users[key]; exists {
		return "", ErrEmailTaken
	}
	u := &user{id: uuid.NewString(), name: name, email: email, passwordHash: hash}
	s.users[key] = u
	return u.id, nil
}

// TokenFor issues a valid token for email, or "" when unknown.
func (s *Server) TokenFor(email string) string {
	return s.tokenExpiring(email, s.clock()().Add(TokenTTL))
}

// ExpiredTokenFor issues a token that expired an hour ago.
func (s *Server) ExpiredTokenFor(email string) string {
	return s.tokenExpiring(email, s.clock()().Add(-time.Hour))
}

func (s *Server) tokenExpiring(email string, exp time.Time) string {
	s.mu.Lock()
	u := s.users[strings.ToLower(email)]
	s.mu.Unlock()
	if u == nil {
		return ""
	}
	token, _ := s.sign(u.id, exp)
	return token
}

func (s *Server) sign(userID string, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Seed stores a record for email, assigning id and created_at when unset.
func (s *Server) Seed(email string, rec model.ChatRecord) model.ChatRecord {
	s.mu.Lock()
	u := s.users[strings.ToLower(email)]
	s.mu.Unlock()
	if u == nil {
		panic(fmt.Sprintf("apitest: unknown user %s", email))
	}
	return s.addRecord(u.id, rec).rec
}

// Records returns email's records, newest first.
func (s *Server) Records(email string) []model.ChatRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[strings.ToLower(email)]
	if u == nil {
		return nil
	}
	list := append([]stored(nil), s.records[u.id]...)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].createdAt.After(list[j].createdAt)
	})
	out := make([]model.ChatRecord, len(list))
	for i, st := range list {
		out[i] = st.rec
	}
	return out
}

// Hits returns how many requests reached route (see the Route constants).
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// TotalHits returns the number of requests to any route.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

// Fail forces route to answer with f until ClearFailures (or f.Remaining
// requests).
func (s *Server) Fail(route string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &f
}

// ClearFailures removes every forced failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]*Failure)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) addRecord(uid string, rec model.ChatRecord) stored {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID.IsZero() {
		rec.ID = model.RecordID(uuid.NewString())
	}
	created := rec.CreatedAt.Time
	if created.IsZero() {
		created = s.now().UTC()
		// keep strict ordering for records created within one clock tick
		if list := s.records[uid]; len(list) > 0 {
			if last := list[len(list)-1].createdAt; !created.After(last) {
				created = last.Add(time.Microsecond)
			}
		}
	}
	created = created.Truncate(time.Microsecond)
	rec.CreatedAt = model.Timestamp{Time: created}
	rec.UserID = uid

	st := stored{rec: rec, createdAt: created}
	s.records[uid] = append(s.records[uid], st)
	return st
}

func (s *Server) find(uid, id string) (stored, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.records[uid] {
		if st.rec.ID.String() == id {
			return st, true
		}
	}
	return stored{}, false
}

func recordJSON(st stored) gin.H {
	return gin.H{
		"id":         st.rec.ID.String(),
		"title":      st.rec.Title,
		"question":   st.rec.Question,
		"answer":     st.rec.Answer,
		"user_id":    st.rec.UserID,
		"created_at": st.createdAt.UTC().Format(naiveLayout),
	}
}

// titleFor mirrors the server's fallback title: the first 50 characters.
func titleFor(q string) string {
	r := []rune(q)
	if len(r) > 50 {
		return string(r[:50]) + "..."
	}
	return q
}

func missingField(fields map[string]string) string {
	for _, name := range []string{"name", "email", "password"} {
		if v, ok := fields[name]; ok && v == "" {
			return name
		}
	}
	return ""
}

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

func validation(c *gin.Context, loc []string, msg string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"detail": []gin.H{{"loc": loc, "msg": msg, "type": "value_error"}},
	})
}
