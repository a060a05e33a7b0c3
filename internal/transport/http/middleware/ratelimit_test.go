package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/domain/auth"
)

func limitedHandler(perWindow int, window time.Duration) http.Handler {
	return NewRateLimiter(perWindow, window).Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func hit(h http.Handler, method, path, remoteAddr, body string, principal *auth.Principal) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = remoteAddr
	if principal != nil {
		req = req.WithContext(auth.WithPrincipal(context.Background(), *principal))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitKeysByCallerBeforeAddress(t *testing.T) {
	h := limitedHandler(1, time.Minute)
	hr := &auth.Principal{UserID: "user-1", Role: auth.RoleHR}

	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodGet, "/api/v1/leave/requests", "198.51.100.11:2222", "", hr).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodGet, "/api/v1/leave/requests", "198.51.100.12:3333", "", hr).Code)

	other := &auth.Principal{UserID: "user-2", Role: auth.RoleEmployee}
	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodGet, "/api/v1/leave/requests", "198.51.100.11:2222", "", other).Code)
}

func TestRateLimitFallsBackToAddress(t *testing.T) {
	h := limitedHandler(1, time.Minute)

	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodGet, "/healthz", "203.0.113.10:4444", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodGet, "/healthz", "203.0.113.10:5555", "", nil).Code)
	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodGet, "/healthz", "203.0.113.11:5555", "", nil).Code)
}

func TestRateLimitWindowResets(t *testing.T) {
	h := limitedHandler(1, 40*time.Millisecond)

	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodGet, "/healthz", "192.0.2.20:1111", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodGet, "/healthz", "192.0.2.20:1111", "", nil).Code)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodGet, "/healthz", "192.0.2.20:1111", "", nil).Code)
}

func TestRateLimitReturnsRetryMetadata(t *testing.T) {
	h := limitedHandler(1, time.Minute)

	first := hit(h, http.MethodGet, "/healthz", "192.0.2.30:1234", "", nil)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	rec := hit(h, http.MethodGet, "/healthz", "192.0.2.30:1234", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Contains(t, rec.Body.String(), "rate_limited")
}

func TestLoginLimitedByEmailAndAddress(t *testing.T) {
	// sign-in budget is a quarter of the general one
	h := limitedHandler(8, time.Minute)

	byEmail := `{"email":"Dana@example.com","password":"x"}`
	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodPost, "/api/v1/auth/login", "192.0.2.1:1", byEmail, nil).Code)
	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodPost, "/api/v1/auth/login", "192.0.2.2:1", byEmail, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodPost, "/api/v1/auth/login", "192.0.2.3:1",
		`{"email":"dana@example.com","password":"x"}`, nil).Code)

	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodPost, "/api/v1/auth/login", "192.0.2.9:1", `{"email":"a@example.com"}`, nil).Code)
	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodPost, "/api/v1/auth/login", "192.0.2.9:2", `{"email":"b@example.com"}`, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodPost, "/api/v1/auth/login", "192.0.2.9:3", `{"email":"c@example.com"}`, nil).Code)
}

func TestLoginBodyIsRestoredForHandler(t *testing.T) {
	var seen string
	h := NewRateLimiter(8, time.Minute).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		seen = buf.String()
	}))

	body := `{"email":"dana@example.com","password":"secret"}`
	hit(h, http.MethodPost, "/api/v1/auth/login", "192.0.2.1:1", body, nil)
	assert.Equal(t, body, seen)
}

func TestSensitiveMutationsHaveTighterBudget(t *testing.T) {
	h := limitedHandler(4, time.Minute)

	for i := 0; i < 4; i++ {
		assert.Equal(t, http.StatusNoContent, hit(h, http.MethodGet, "/api/v1/leave/balances", "198.51.100.40:8888", "", nil).Code, "read %d", i+1)
	}

	hr := &auth.Principal{UserID: "hr-1", Role: auth.RoleHR}
	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodPost, "/api/v1/leave/requests/r1/approve", "198.51.100.41:1", "", hr).Code)
	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodPost, "/api/v1/leave/requests/r2/reject", "198.51.100.41:1", "", hr).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, http.MethodPost, "/api/v1/leave/balances/allocate", "198.51.100.41:1", "", hr).Code)

	// cancellation is not an approver action
	assert.Equal(t, http.StatusNoContent, hit(h, http.MethodPost, "/api/v1/leave/requests/r1/cancel", "198.51.100.41:1", "", hr).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	h := limitedHandler(0, time.Minute)
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusNoContent, hit(h, http.MethodGet, "/healthz", "192.0.2.1:1", "", nil).Code)
	}
}
