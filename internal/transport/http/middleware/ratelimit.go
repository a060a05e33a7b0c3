package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"leavedesk/internal/transport/http/api"
)

// fixedWindow counts hits per key in fixed windows. Keys whose window has ended are swept at
// most once per window so idle callers do not accumulate.
type fixedWindow struct {
	limit  int
	length time.Duration
	now    func() time.Time

	mu        sync.Mutex
	hits      map[string]windowHits
	nextSweep time.Time
}

type windowHits struct {
	count   int
	resetAt time.Time
}

type verdict struct {
	allowed   bool
	limit     int
	remaining int
	resetIn   time.Duration
}

func newFixedWindow(limit int, length time.Duration) *fixedWindow {
	return &fixedWindow{limit: limit, length: length, now: time.Now, hits: map[string]windowHits{}}
}

func (f *fixedWindow) take(key string) verdict {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()
	if now.After(f.nextSweep) {
		for k, h := range f.hits {
			if !now.Before(h.resetAt) {
				delete(f.hits, k)
			}
		}
		f.nextSweep = now.Add(f.length)
	}

	h, ok := f.hits[key]
	if !ok || !now.Before(h.resetAt) {
		h = windowHits{resetAt: now.Add(f.length)}
	}
	h.count++
	f.hits[key] = h
	return verdict{
		allowed:   h.count <= f.limit,
		limit:     f.limit,
		remaining: max(f.limit-h.count, 0),
		resetIn:   h.resetAt.Sub(now),
	}
}

type rateRule struct {
	name    string
	applies func(r *http.Request) bool
	key     func(r *http.Request) string
	window  *fixedWindow
}

// RateLimiter enforces a per-caller budget on every request and tighter budgets on sign-in
// (by client address and by submitted email) and on approval and year-end mutations.
type RateLimiter struct {
	rules []rateRule
}

// NewRateLimiter derives every budget from perWindow. A non-positive perWindow disables limiting.
func NewRateLimiter(perWindow int, window time.Duration) *RateLimiter {
	if perWindow <= 0 {
		return &RateLimiter{}
	}
	signIn := max(perWindow/4, 1)
	sensitive := max(perWindow/2, 1)
	return &RateLimiter{rules: []rateRule{
		{name: "login_ip", applies: isLogin, key: clientIP, window: newFixedWindow(signIn, window)},
		{name: "login_email", applies: isLogin, key: loginEmailKey, window: newFixedWindow(signIn, window)},
		{name: "sensitive", applies: isSensitiveMutation, key: callerKey, window: newFixedWindow(sensitive, window)},
		{name: "general", applies: func(*http.Request) bool { return true }, key: callerKey, window: newFixedWindow(perWindow, window)},
	}}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tightest *verdict
		for _, rule := range l.rules {
			if !rule.applies(r) {
				continue
			}
			key := rule.key(r)
			if key == "" {
				key = clientIP(r)
			}
			v := rule.window.take(key)
			if !v.allowed {
				writeLimitHeaders(w, v)
				w.Header().Set("Retry-After", strconv.Itoa(max(ceilSeconds(v.resetIn), 1)))
				zerolog.Ctx(r.Context()).Warn().
					Str("rule", rule.name).
					Str("key", key).
					Int("limit", v.limit).
					Msg("rate limit exceeded")
				api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
				return
			}
			if tightest == nil || v.remaining < tightest.remaining {
				tightest = &v
			}
		}
		if tightest != nil {
			writeLimitHeaders(w, *tightest)
		}
		next.ServeHTTP(w, r)
	})
}

func writeLimitHeaders(w http.ResponseWriter, v verdict) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(v.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(ceilSeconds(v.resetIn)))
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func callerKey(r *http.Request) string {
	if p, ok := GetUser(r.Context()); ok && p.UserID != "" {
		return "user:" + p.UserID
	}
	return clientIP(r)
}

// clientIP expects chi's RealIP to have already folded X-Forwarded-For into RemoteAddr.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return "ip:" + host
	}
	return "ip:" + addr
}

func loginEmailKey(r *http.Request) string {
	email := peekJSONString(r, "email")
	if email == "" {
		return ""
	}
	return "email:" + strings.ToLower(email)
}

// peekJSONString reads one string field from a JSON body and restores the body for the handler.
func peekJSONString(r *http.Request, field string) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if json.Unmarshal(raw, &payload) != nil {
		return ""
	}
	var value string
	if json.Unmarshal(payload[field], &value) != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func apiPath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/api/v1")
}

func isLogin(r *http.Request) bool {
	return r.Method == http.MethodPost && apiPath(r) == "/auth/login"
}

func isSensitiveMutation(r *http.Request) bool {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		return false
	}
	path := apiPath(r)
	switch path {
	case "/employees", "/leave/balances/allocate", "/leave/balances/carry-forward", "/leave/balances/rollover":
		return true
	}
	return strings.HasPrefix(path, "/leave/requests/") &&
		(strings.HasSuffix(path, "/approve") || strings.HasSuffix(path, "/reject"))
}
