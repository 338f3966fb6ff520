package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fluxior-backend/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("1.2.3.4:/api/leads")
	assert.True(t, ok)
	ok, _ = rl.Allow("1.2.3.4:/api/leads")
	assert.True(t, ok)
	ok, retry := rl.Allow("1.2.3.4:/api/leads")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _ = rl.Allow("5.6.7.8:/api/leads")
	assert.True(t, ok)

	now = now.Add(61 * time.Second)
	ok, _ = rl.Allow("1.2.3.4:/api/leads")
	assert.True(t, ok)
	assert.Len(t, rl.buckets, 1)
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/leads/contact", nil)
	req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 65))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, seen, 36)
}

func TestSessionAuth(t *testing.T) {
	manager := auth.NewManager("secret", time.Minute, time.Hour, "fluxior-backend")
	var got Session
	h := SessionAuth("key-1", manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(req *http.Request) int {
		got = Session{}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(req))

	req.Header.Set("X-Admin-Key", "key-1")
	require.Equal(t, http.StatusOK, serve(req))
	assert.Equal(t, Session{Key: true}, got)

	access, err := manager.NewAccessToken("u1", "sophie@agence.fr")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookie, Value: access})
	require.Equal(t, http.StatusOK, serve(req))
	assert.Equal(t, "sophie@agence.fr", got.Email)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	require.Equal(t, http.StatusOK, serve(req))
	assert.Equal(t, "sophie@agence.fr", got.Email)

	refresh, err := manager.NewRefreshToken("u1", "sophie@agence.fr")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	assert.Equal(t, http.StatusUnauthorized, serve(req))

	unconfigured := SessionAuth("", nil)(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	unconfigured.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS("https://app.fluxior.fr")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/leads", nil)
	req.Header.Set("Origin", "https://app.fluxior.fr")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.fluxior.fr", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/leads", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
