// Package auth resolves the signed-in user from a session cookie or a
// bearer token and guards routes that need one.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-chantiers/httpx"
)

type ctxKey string

const (
	sessionCookieName = "session"
	userIDCtxKey      = ctxKey("userID")
)

// DefaultTTL is the lifetime of sessions and tokens.
const DefaultTTL = 14 * 24 * time.Hour

// UserVerifier is an optional callback to validate that a credential's user
// still exists. If nil, no extra verification is performed.
type UserVerifier func(ctx context.Context, uid uint) bool

// Manager signs and verifies credentials.
type Manager struct {
	sessionSecret []byte
	jwtSecret     []byte
	ttl           time.Duration
	verifier      UserVerifier
	now           func() time.Time
}

// NewManager creates a manager. A zero ttl falls back to DefaultTTL.
func NewManager(sessionSecret, jwtSecret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessionSecret: []byte(sessionSecret),
		jwtSecret:     []byte(jwtSecret),
		ttl:           ttl,
		now:           time.Now,
	}
}

// SetUserVerifier configures the verifier used by RequireAuth.
func (m *Manager) SetUserVerifier(v UserVerifier) { m.verifier = v }

// TTL is the lifetime of issued sessions and tokens.
func (m *Manager) TTL() time.Duration { return m.ttl }

func (m *Manager) sign(payload string) string {
	mac := hmac.New(sha256.New, m.sessionSecret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// CreateSession sets a signed cookie with the user id.
func (m *Manager) CreateSession(w http.ResponseWriter, userID uint) {
	uidStr := strconv.FormatUint(uint64(userID), 10)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    uidStr + "." + m.sign(uidStr),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  m.now().Add(m.ttl),
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseSession validates the cookie and returns the user id.
func (m *Manager) ParseSession(r *http.Request) (uint, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	uidStr, sig, ok := strings.Cut(c.Value, ".")
	if !ok {
		return 0, false
	}
	if !hmac.Equal([]byte(sig), []byte(m.sign(uidStr))) {
		return 0, false
	}
	id64, err := strconv.ParseUint(uidStr, 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}

// FromRequest returns the user id carried by a bearer token or, failing
// that, by the session cookie.
func (m *Manager) FromRequest(r *http.Request) (uint, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return 0, false
		}
		claims, err := m.ParseToken(strings.TrimSpace(raw))
		if err != nil {
			return 0, false
		}
		return claims.UserID()
	}
	return m.ParseSession(r)
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	v := ctx.Value(userIDCtxKey)
	if v == nil {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// Middleware attaches user id to request context if present.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := m.FromRequest(r); ok {
			r = r.WithContext(WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth redirects to /login if not authenticated (HTML) or returns 401 JSON.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if ok && m.verifier != nil && !m.verifier(r.Context(), uid) {
			// Credential refers to a deleted user.
			ClearSession(w)
			ok = false
		}
		if !ok {
			Unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Unauthorized answers 401 JSON to API clients and redirects browsers to the
// login page.
func Unauthorized(w http.ResponseWriter, r *http.Request) {
	if WantsJSON(r) {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// WantsJSON reports whether the client expects a JSON answer.
func WantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
