package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/shared"
)

// limiter counts hits per key in fixed windows. Buckets from past windows
// are pruned once the map grows past pruneThreshold so a long-lived process
// does not keep one entry per client forever.
type limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	keyFn   func(r *http.Request) string
	buckets map[string]*bucket
}

type bucket struct {
	hits      int
	windowEnd time.Time
}

const pruneThreshold = 4096

func newLimiter(limit int, window time.Duration, keyFn func(r *http.Request) string) *limiter {
	return &limiter{limit: limit, window: window, keyFn: keyFn, buckets: map[string]*bucket{}}
}

func (l *limiter) take(key string, now time.Time) (allowed bool, remaining, resetSec int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || now.After(b.windowEnd) {
		if len(l.buckets) >= pruneThreshold {
			l.prune(now)
		}
		b = &bucket{windowEnd: now.Add(l.window)}
		l.buckets[key] = b
	}
	b.hits++

	remaining = l.limit - b.hits
	if remaining < 0 {
		remaining = 0
	}
	resetSec = int(b.windowEnd.Sub(now).Seconds())
	if resetSec < 1 {
		resetSec = 1
	}
	return b.hits <= l.limit, remaining, resetSec
}

func (l *limiter) prune(now time.Time) {
	for key, b := range l.buckets {
		if now.After(b.windowEnd) {
			delete(l.buckets, key)
		}
	}
}

func (l *limiter) allow(w http.ResponseWriter, r *http.Request) bool {
	if l.limit <= 0 {
		return true
	}
	key := l.keyFn(r)
	if key == "" {
		key = ipKey(r)
	}
	allowed, remaining, resetSec := l.take(key, time.Now())

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSec))
	if allowed {
		return true
	}

	w.Header().Set("Retry-After", strconv.Itoa(resetSec))
	slog.Warn("rate limit exceeded",
		"key", key,
		"path", r.URL.Path,
		"method", r.Method,
		"limit", l.limit,
		"windowSec", int(l.window.Seconds()),
	)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

// RateLimit applies one fixed-window budget per caller, keyed by user id
// when authenticated and by client IP otherwise.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	l := newLimiter(limit, window, actorKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SensitiveMutationRateLimit puts tighter budgets on credential endpoints
// and workflow mutations. Auth routes are limited by IP and by submitted
// email so one address cannot burn the budget for everyone behind a NAT.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	authLimit := max(baseLimit/4, 1)
	mutationLimit := max(baseLimit/2, 1)
	authByIP := newLimiter(authLimit, window, ipKey)
	authByEmail := newLimiter(authLimit, window, emailKey)
	mutations := newLimiter(mutationLimit, window, actorKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch classifyMutation(r) {
			case mutationAuth:
				if !authByIP.allow(w, r) {
					return
				}
				if !authByEmail.allow(w, r) {
					return
				}
			case mutationWorkflow:
				if !mutations.allow(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func actorKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return ipKey(r)
}

func ipKey(r *http.Request) string {
	return "ip:" + shared.ClientIP(r)
}

func emailKey(r *http.Request) string {
	email := peekJSONString(r, "email")
	if email == "" {
		return ipKey(r)
	}
	return "email:" + strings.ToLower(email)
}

// peekJSONString reads one string field out of a JSON body and restores the
// body so the handler can decode it again.
func peekJSONString(r *http.Request, field string) string {
	if r.Body == nil {
		return ""
	}
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), rest), rest}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

type mutationClass int

const (
	mutationNone mutationClass = iota
	mutationAuth
	mutationWorkflow
)

var authLimitedPaths = map[string]struct{}{
	"/auth/login":         {},
	"/auth/refresh":       {},
	"/auth/request-reset": {},
	"/auth/reset":         {},
	"/auth/mfa/setup":     {},
	"/auth/mfa/enable":    {},
	"/auth/mfa/disable":   {},
}

func classifyMutation(r *http.Request) mutationClass {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return mutationNone
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	if path == "" {
		path = "/"
	}
	if _, ok := authLimitedPaths[path]; ok {
		return mutationAuth
	}

	switch {
	case path == "/reviewer-selections",
		strings.HasPrefix(path, "/reviewer-selections/"),
		path == "/reviewer/feedback-forms",
		strings.HasPrefix(path, "/reviewer/feedback-forms/"),
		strings.HasPrefix(path, "/mentor/approvals/"):
		return mutationWorkflow
	}
	return mutationNone
}
