package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/internal/http/response"
	"github.com/mydiary/mall-server/pkg/logger"
)

type ctxKey string

const (
	CtxUserID    ctxKey = "user_id"
	CtxSessionID ctxKey = "session_id"
)

type Authenticator interface {
	Authenticate(ctx context.Context, sessionID string) (int64, error)
}

// Cookies writes the session cookie. Production cookies are Secure and
// SameSite=None so the storefront on another origin can send them.
type Cookies struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

func (c Cookies) Read(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func (c Cookies) Set(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, c.cookie(sessionID, int(c.TTL/time.Second)))
}

func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

func (c Cookies) cookie(value string, maxAge int) *http.Cookie {
	ck := &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if c.Secure {
		ck.Secure = true
		ck.SameSite = http.SameSiteNoneMode
	}
	return ck
}

// authenticate resolves the cookie and refreshes it. ok is false when there
// was no usable session; err is set only for store failures.
func authenticate(a Authenticator, c Cookies, w http.ResponseWriter, r *http.Request) (*http.Request, bool, error) {
	sid := c.Read(r)
	if sid == "" {
		return r, false, nil
	}
	userID, err := a.Authenticate(r.Context(), sid)
	if errors.Is(err, domain.ErrUnauthorized) {
		c.Clear(w)
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}

	c.Set(w, sid)
	ctx := context.WithValue(r.Context(), CtxUserID, userID)
	ctx = context.WithValue(ctx, CtxSessionID, sid)
	ctx = logger.WithUser(ctx, userID)
	return r.WithContext(ctx), true, nil
}

func RequireSession(a Authenticator, c Cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok, err := authenticate(a, c, w, r)
			if err != nil {
				response.FromError(w, r, err)
				return
			}
			if !ok {
				response.Unauthorized(w, "login required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalSession attaches the user when a valid cookie is present and passes
// anonymous requests through untouched.
func OptionalSession(a Authenticator, c Cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, _, err := authenticate(a, c, w, r)
			if err != nil {
				logger.WarnContext(r.Context(), "Session lookup failed", "error", err)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID is the authenticated user, or 0.
func UserID(r *http.Request) int64 {
	if v, ok := r.Context().Value(CtxUserID).(int64); ok {
		return v
	}
	return 0
}

func SessionID(r *http.Request) string {
	if v, ok := r.Context().Value(CtxSessionID).(string); ok {
		return v
	}
	return ""
}
