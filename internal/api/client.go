// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/qbot-tui/internal/config"
	"github.com/jeranaias/qbot-tui/internal/logging"
	"github.com/jeranaias/qbot-tui/internal/model"
	"github.com/jeranaias/qbot-tui/internal/session"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultBaseURL is where a locally started server listens.
	DefaultBaseURL = "http://127.0.0.1:8000"

	// DefaultTimeout bounds a single request. Answers are generated while the
	// ask call is open, so this is long.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the default cap on a response body.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB

	// RequestIDHeader is echoed in logs on both sides.
	RequestIDHeader = "X-Request-ID"
)

// sharedTransport pools connections across every Client in the process.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// =============================================================================
// REQUEST / RESPONSE TYPES
// =============================================================================

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by a successful login.
type AuthResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
	// ExpiresAt is optional; the server may leave it out.
	ExpiresAt model.Timestamp `json:"expires_at"`
}

// Credentials converts the response for session.Store.Login.
func (a AuthResponse) Credentials() session.Credentials {
	return session.Credentials{
		Name:      a.Name,
		Email:     a.Email,
		Token:     a.Token,
		ExpiresAt: a.ExpiresAt.Time,
	}
}

// RegisterResponse is returned by a successful registration. It carries no
// token; the client signs in afterwards.
type RegisterResponse struct {
	ID    model.RecordID `json:"id"`
	Name  string         `json:"name"`
	Email string         `json:"email"`
}

// AskRequest is the body of POST /questions/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// TokenSource supplies the bearer token for protected calls.
type TokenSource interface {
	Token() (string, bool)
}

// StaticToken is a TokenSource with a fixed token.
type StaticToken string

// Token returns the token, reporting false when it is empty.
func (s StaticToken) Token() (string, bool) {
	return string(s), s != ""
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the QBot server. Safe for concurrent use once configured.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      TokenSource
	limiter     *rate.Limiter
	maxResponse int64
	userAgent   string
	log         *zap.Logger
}

// NewClient creates a client for baseURL. tokens may be nil when only the
// /auth endpoints are used.
func NewClient(baseURL string, tokens TokenSource) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
		tokens:      tokens,
		maxResponse: MaxResponseSize,
		userAgent:   "qbot",
		log:         zap.NewNop(),
	}
}

// NewFromConfig creates a client from the api section of cfg.
func NewFromConfig(cfg *config.Config, tokens TokenSource, logger *zap.Logger) *Client {
	return NewClient(cfg.API.BaseURL, tokens).
		WithTimeout(cfg.API.Timeout()).
		WithRateLimit(cfg.API.RequestsPerMinute).
		WithMaxResponseSize(cfg.API.MaxResponseBytes()).
		WithLogger(logger)
}

// WithBaseURL sets the server root.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimSuffix(u, "/")
	return c
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithRateLimit throttles calls to rpm requests per minute. Zero disables it.
func (c *Client) WithRateLimit(rpm int) *Client {
	if rpm <= 0 {
		c.limiter = nil
		return c
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	return c
}

// WithMaxResponseSize caps how many bytes of a body are read.
func (c *Client) WithMaxResponseSize(n int64) *Client {
	if n > 0 {
		c.maxResponse = n
	}
	return c
}

// WithUserAgent sets the User-Agent header, e.g. "qbot/1.2.0".
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// WithLogger sets the request logger.
func (c *Client) WithLogger(l *zap.Logger) *Client {
	c.log = logging.OrNop(l).Named("api")
	return c
}

// WithTokenSource sets where bearer tokens come from.
func (c *Client) WithTokenSource(tokens TokenSource) *Client {
	c.tokens = tokens
	return c
}

// BaseURL returns the server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}, false, &out)
	return out, err
}

// Register creates an account. The response carries no token.
func (c *Client) Register(ctx context.Context, name, email, password string) (RegisterResponse, error) {
	var out RegisterResponse
	req := RegisterRequest{Name: name, Email: email, Password: password}
	err := c.do(ctx, http.MethodPost, "/auth/register", req, false, &out)
	return out, err
}

// History returns the signed-in user's records, newest first.
func (c *Client) History(ctx context.Context) ([]model.ChatRecord, error) {
	var out []model.ChatRecord
	if err := c.do(ctx, http.MethodGet, "/questions/history", nil, true, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.ChatRecord{}
	}
	return out, nil
}

// Ask submits a question and returns the answered record.
func (c *Client) Ask(ctx context.Context, question string) (model.ChatRecord, error) {
	var out model.ChatRecord
	err := c.do(ctx, http.MethodPost, "/questions/ask", AskRequest{Question: question}, true, &out)
	return out, err
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, id model.RecordID) (model.ChatRecord, error) {
	var out model.ChatRecord
	err := c.do(ctx, http.MethodGet, recordPath(id), nil, true, &out)
	return out, err
}

// Delete removes one record. Any 2xx counts as success; the body is ignored.
func (c *Client) Delete(ctx context.Context, id model.RecordID) error {
	return c.do(ctx, http.MethodDelete, recordPath(id), nil, true, nil)
}

func recordPath(id model.RecordID) string {
	return "/questions/" + url.PathEscape(id.String())
}

// =============================================================================
// TRANSPORT
// =============================================================================

// do performs one request. Nothing is retried.
func (c *Client) do(ctx context.Context, method, path string, body any, auth bool, out any) error {
	var token string
	if auth {
		var ok bool
		if c.tokens != nil {
			token, ok = c.tokens.Token()
		}
		if !ok || token == "" {
			return ErrNoToken
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	// keep the token out of anything that might log the request later
	req.Header.Del("Authorization")
	if err != nil {
		c.log.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	c.log.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("request_id", requestID))

	data, err := c.readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Status:    resp.StatusCode,
			Detail:    parseDetail(data),
			RequestID: requestID,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return fmt.Errorf("%w: got %q", ErrNotJSON, resp.Header.Get("Content-Type"))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponse reads the body up to the configured limit.
func (c *Client) readResponse(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrNetwork, err)
	}
	if int64(len(data)) > c.maxResponse {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", c.maxResponse)
	}
	return data, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
