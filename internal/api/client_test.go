// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/qbot-tui/internal/apitest"
	"github.com/jeranaias/qbot-tui/internal/model"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "correct horse"
)

func setup(t *testing.T) (*apitest.Server, *Client) {
	t.Helper()
	srv := apitest.Start(t)
	_, err := srv.AddUser("Ada", testEmail, testPassword)
	require.NoError(t, err)
	return srv, NewClient(srv.URL(), StaticToken(srv.TokenFor(testEmail)))
}

// =============================================================================
// AUTH ENDPOINTS
// =============================================================================

func TestLogin_Success(t *testing.T) {
	srv, _ := setup(t)
	client := NewClient(srv.URL(), nil)

	resp, err := client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, "Ada", resp.Name)
	assert.Equal(t, testEmail, resp.Email)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.ExpiresAt.IsZero(), "server omits expires_at by default")

	creds := resp.Credentials()
	assert.Equal(t, resp.Token, creds.Token)
	assert.Equal(t, "Ada", creds.Name)
}

func TestLogin_WithExpiresAt(t *testing.T) {
	srv, _ := setup(t)
	srv.SetIncludeExpiresAt(true)

	resp, err := NewClient(srv.URL(), nil).Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(apitest.TokenTTL), resp.ExpiresAt.Time, time.Minute)
	assert.Equal(t, resp.ExpiresAt.Time, resp.Credentials().ExpiresAt)
}

func TestLogin_BadCredentials(t *testing.T) {
	srv, _ := setup(t)

	_, err := NewClient(srv.URL(), nil).Login(context.Background(), testEmail, "wrong")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Invalid credentials", apiErr.Detail)
	assert.NotEmpty(t, apiErr.RequestID)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "Invalid credentials", Describe(err))
}

func TestRegister(t *testing.T) {
	srv := apitest.Start(t)
	client := NewClient(srv.URL(), nil)
	ctx := context.Background()

	resp, err := client.Register(ctx, "Grace", "grace@example.com", "hunter22")
	require.NoError(t, err)
	assert.False(t, resp.ID.IsZero())
	assert.Equal(t, "Grace", resp.Name)

	_, err = client.Register(ctx, "Grace", "grace@example.com", "hunter22")
	assert.Equal(t, "Email already registered", Describe(err))

	_, err = client.Register(ctx, "Grace", "", "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "email: Field required", apiErr.Detail)
}

// =============================================================================
// QUESTION ENDPOINTS
// =============================================================================

func TestHistory_NewestFirst(t *testing.T) {
	srv, client := setup(t)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	older := srv.Seed(testEmail, model.ChatRecord{Title: "Older", CreatedAt: model.Timestamp{Time: base}})
	newer := srv.Seed(testEmail, model.ChatRecord{Title: "Newer", CreatedAt: model.Timestamp{Time: base.Add(time.Hour)}})

	records, err := client.History(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, newer.ID, records[0].ID)
	assert.Equal(t, older.ID, records[1].ID)
	assert.True(t, records[1].CreatedAt.Equal(base))
}

func TestHistory_EmptyIsNotNil(t *testing.T) {
	_, client := setup(t)

	records, err := client.History(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestProtectedCall_WithoutTokenMakesNoRequest(t *testing.T) {
	srv, _ := setup(t)
	client := NewClient(srv.URL(), StaticToken(""))

	_, err := client.History(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
	_, err = client.Ask(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Equal(t, 0, srv.TotalHits())
}

func TestProtectedCall_ExpiredToken(t *testing.T) {
	srv, _ := setup(t)
	client := NewClient(srv.URL(), StaticToken(srv.ExpiredTokenFor(testEmail)))

	_, err := client.History(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Could not validate token", Describe(err))
}

func TestAskGetDelete(t *testing.T) {
	srv, client := setup(t)
	ctx := context.Background()

	rec, err := client.Ask(ctx, "What is a goroutine?")
	require.NoError(t, err)
	assert.Equal(t, "What is a goroutine?", rec.Title)
	assert.Contains(t, rec.Answer, "goroutine")
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, 1, srv.Hits(apitest.RouteAsk))

	got, err := client.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	require.NoError(t, client.Delete(ctx, rec.ID))
	assert.Empty(t, srv.Records(testEmail))

	err = client.Delete(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Question not found", Describe(err))

	_, err = client.Get(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// FAILURE MODES
// =============================================================================

func TestNonJSONResponse(t *testing.T) {
	srv, client := setup(t)
	srv.Fail(apitest.RouteHistory, apitest.Failure{Status: http.StatusOK, ContentType: "text/html", Detail: "proxy"})

	_, err := client.History(context.Background())
	assert.ErrorIs(t, err, ErrNotJSON)
	assert.Equal(t, "Response is not JSON", Describe(err))
}

func TestDelete_AnySuccessStatus(t *testing.T) {
	cases := []struct {
		name        string
		status      int
		contentType string
		body        string
	}{
		{"no content", http.StatusNoContent, "", ""},
		{"plain text", http.StatusOK, "text/plain", "deleted"},
		{"empty json", http.StatusOK, "application/json", ""},
		{"message json", http.StatusOK, "application/json", `{"message":"ok"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var method, path string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				method, path = r.Method, r.URL.Path
				if tc.contentType != "" {
					w.Header().Set("Content-Type", tc.contentType)
				}
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			err := NewClient(srv.URL, StaticToken("t")).Delete(context.Background(), model.RecordID("5"))
			require.NoError(t, err)
			assert.Equal(t, http.MethodDelete, method)
			assert.Equal(t, "/questions/5", path)
		})
	}
}

func TestNoContentSkipsDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	records, err := NewClient(srv.URL, StaticToken("t")).History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestServerError(t *testing.T) {
	srv, client := setup(t)
	srv.Fail(apitest.RouteAsk, apitest.Failure{Status: http.StatusInternalServerError, Detail: "AI service error: boom", Remaining: 1})

	_, err := client.Ask(context.Background(), "q")
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, "AI service error: boom", Describe(err))

	// no retry happened, and the failure was one-shot
	assert.Equal(t, 1, srv.Hits(apitest.RouteAsk))
	_, err = client.Ask(context.Background(), "q")
	assert.NoError(t, err)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, StaticToken("t")).History(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, "Could not reach the server", Describe(err))
}

func TestContextCancel(t *testing.T) {
	srv, client := setup(t)
	release := make(chan struct{})
	srv.SetBeforeAsk(func() { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Ask(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "Request timed out", Describe(err))
}

func TestResponseSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[` + strings.Repeat(`{"id":1},`, 200) + `{"id":2}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticToken("t")).WithMaxResponseSize(256)
	_, err := client.History(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum size")
}

func TestRequestHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", StaticToken("tok-123")).WithUserAgent("qbot/1.0.0")
	_, err := client.History(context.Background())
	require.NoError(t, err)
	got := <-headers

	assert.Equal(t, "Bearer tok-123", got.Get("Authorization"))
	assert.Equal(t, "qbot/1.0.0", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	_, err = uuid.Parse(got.Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestRateLimit(t *testing.T) {
	_, client := setup(t)
	client.WithRateLimit(60) // one per second

	_, err := client.History(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = client.History(ctx)
	assert.ErrorIs(t, err, ErrRateLimited)
}

// =============================================================================
// ERROR DETAIL PARSING
// =============================================================================

func TestParseDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string", `{"detail":"Invalid credentials"}`, "Invalid credentials"},
		{"validation list", `{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address"},{"loc":["body"],"msg":"bad"}]}`,
			"email: value is not a valid email address; bad"},
		{"no detail", `{"error":"x"}`, ""},
		{"not json", `<html>`, ""},
		{"object detail", `{"detail":{"code":1}}`, `{"code":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDetail([]byte(tt.body)))
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	assert.ErrorIs(t, &APIError{Status: 401}, ErrUnauthorized)
	assert.ErrorIs(t, &APIError{Status: 404}, ErrNotFound)
	assert.ErrorIs(t, &APIError{Status: 429}, ErrRateLimited)
	assert.ErrorIs(t, &APIError{Status: 503}, ErrServer)
	assert.ErrorIs(t, &APIError{Status: 422}, ErrRejected)
	assert.Equal(t, "HTTP 502: Bad Gateway", (&APIError{Status: 502}).Error())
}
