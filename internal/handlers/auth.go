package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/diewo77/go-chantiers/auth"
	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/services"
	"github.com/diewo77/go-chantiers/view"
)

type AuthHandler struct {
	Responder
	accounts     *services.AccountService
	sessions     *auth.Manager
	loginTimeout time.Duration
}

func NewAuthHandler(rs Responder, accounts *services.AccountService, sessions *auth.Manager, loginTimeout time.Duration) *AuthHandler {
	return &AuthHandler{Responder: rs, accounts: accounts, sessions: sessions, loginTimeout: loginTimeout}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authenticate bounds the credential check by the login timeout.
func (h *AuthHandler) authenticate(ctx context.Context, c credentials) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, h.loginTimeout)
	defer cancel()
	return h.accounts.Authenticate(ctx, c.Email, c.Password)
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := view.Render(w, r, http.StatusOK, "login.html", nil); err != nil {
		h.Error(w, r, "render login", err)
	}
}

// Login handles the browser form.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	c := credentials{Email: r.FormValue("email"), Password: r.FormValue("password")}
	u, err := h.authenticate(r.Context(), c)
	if err != nil {
		code := "login_failed"
		status := http.StatusUnauthorized
		if !errors.Is(err, services.ErrBadCredentials) {
			h.Logger.WarnContext(r.Context(), "login failed", "err", err)
			code = "login_unavailable"
			status = http.StatusServiceUnavailable
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusGatewayTimeout
			}
		}
		if rerr := view.Render(w, r, status, "login.html", map[string]any{"Error": code, "Email": c.Email}); rerr != nil {
			h.Error(w, r, "render login", rerr)
		}
		return
	}
	h.sessions.CreateSession(w, u.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// APILogin opens a cookie session for a JSON client.
func (h *AuthHandler) APILogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := httpx.Decode(w, r, &c); err != nil {
		h.Error(w, r, "login", err)
		return
	}
	u, err := h.authenticate(r.Context(), c)
	if err != nil {
		h.Error(w, r, "login", err)
		return
	}
	h.sessions.CreateSession(w, u.ID)
	httpx.JSON(w, http.StatusOK, u)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in services.SignupInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "signup", err)
		return
	}
	u, err := h.accounts.Signup(r.Context(), in)
	if err != nil {
		h.Error(w, r, "signup", err)
		return
	}
	h.sessions.CreateSession(w, u.ID)
	httpx.JSON(w, http.StatusCreated, u)
}

type tokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// Token issues a bearer token for API clients.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := httpx.Decode(w, r, &c); err != nil {
		h.Error(w, r, "token", err)
		return
	}
	u, err := h.authenticate(r.Context(), c)
	if err != nil {
		h.Error(w, r, "token", err)
		return
	}
	tok, err := h.sessions.IssueToken(u.ID, u.TenantID())
	if err != nil {
		h.Error(w, r, "token", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{
		Token:     tok,
		TokenType: "Bearer",
		ExpiresIn: int64(h.sessions.TTL() / time.Second),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	if auth.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Me returns the signed-in user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, r)
		return
	}
	u, err := h.accounts.User(r.Context(), uid)
	if err != nil {
		h.Error(w, r, "me", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}
