package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mydiary/mall-server/internal/domain"
)

type fakeAuth struct {
	sessions map[string]int64
	err      error
}

func (f fakeAuth) Authenticate(_ context.Context, sid string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	id, ok := f.sessions[sid]
	if !ok {
		return 0, domain.ErrUnauthorized
	}
	return id, nil
}

var cookies = Cookies{Name: "mall_sid", TTL: 30 * time.Minute}

func echoUser(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(SessionID(r)))
}

func TestRequireSession(t *testing.T) {
	auth := fakeAuth{sessions: map[string]int64{"good": 12345}}
	var seen int64
	h := RequireSession(auth, cookies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r)
		echoUser(w, r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "mall_sid", Value: "stale"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "mall_sid", Value: "good"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 12345, seen)
	assert.Equal(t, "good", rec.Body.String())

	refreshed := rec.Result().Cookies()
	require.Len(t, refreshed, 1)
	assert.Equal(t, 1800, refreshed[0].MaxAge)
	assert.True(t, refreshed[0].HttpOnly)
	assert.False(t, refreshed[0].Secure)
}

func TestRequireSession_StoreFailure(t *testing.T) {
	h := RequireSession(fakeAuth{err: errors.New("redis down")}, cookies)(http.HandlerFunc(echoUser))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "mall_sid", Value: "good"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOptionalSession_PassesAnonymous(t *testing.T) {
	var seen int64 = -1
	h := OptionalSession(fakeAuth{}, cookies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, seen)
}

func TestCookies_SecureInProduction(t *testing.T) {
	rec := httptest.NewRecorder()
	Cookies{Name: "mall_sid", TTL: time.Minute, Secure: true}.Set(rec, "abc")
	ck := rec.Result().Cookies()[0]
	assert.True(t, ck.Secure)
	assert.Equal(t, http.SameSiteNoneMode, ck.SameSite)
	assert.Equal(t, 60, ck.MaxAge)
}

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (m *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	return m.counts[key], nil
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(&memCounter{counts: map[string]int64{}}, RateLimitConfig{
		Requests: 2, Window: time.Minute, SkipFunc: SkipHealth,
	})
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(path, ip string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("/items", "1.1.1.1"))
	assert.Equal(t, http.StatusOK, do("/items", "1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("/items", "1.1.1.1"))
	assert.Equal(t, http.StatusOK, do("/items", "2.2.2.2"))
	assert.Equal(t, http.StatusOK, do("/healthz", "1.1.1.1"))
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	rl := NewRateLimiter(&memCounter{err: errors.New("down")}, RateLimitConfig{Requests: 1, Window: time.Minute})
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:1234"
	assert.Equal(t, "9.9.9.9", getClientIP(req))
	req.Header.Set("X-Real-IP", " 8.8.8.8 ")
	assert.Equal(t, "8.8.8.8", getClientIP(req))
}
