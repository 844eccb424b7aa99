// Package tenancy carries the request-scoped identity (user and tenant)
// resolved once per request and threaded through every data access.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/diewo77/go-chantiers/auth"
	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNoTenant is returned when the user is not attached to a company yet.
	ErrNoTenant = errors.New("user has no company")
	// ErrUnknownUser is returned when the credential refers to a missing user.
	ErrUnknownUser = errors.New("unknown user")
)

// Scope is who is acting and on behalf of which tenant.
type Scope struct {
	UserID   uint
	TenantID uint
	Role     models.Role
	Email    string
	Name     string
}

// HasTenant reports whether the user is attached to a tenant.
func (s Scope) HasTenant() bool { return s.TenantID != 0 }

type ctxKey struct{}

// WithScope stores s in ctx.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the scope stored by Middleware.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(Scope)
	return s, ok
}

// Require returns the scope or ErrNoTenant when the user has no company.
func Require(ctx context.Context) (Scope, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return Scope{}, ErrUnknownUser
	}
	if !s.HasTenant() {
		return s, ErrNoTenant
	}
	return s, nil
}

// Owned restricts a query to rows of the scope's tenant. Use with
// db.Scopes(tenancy.Owned(s)).
func Owned(s Scope) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("entreprise_id = ?", s.TenantID)
	}
}

// Resolver maps a user id to a Scope.
type Resolver interface {
	Resolve(ctx context.Context, userID uint) (Scope, error)
}

// DBResolver reads the profiles table.
type DBResolver struct {
	db *gorm.DB
}

// NewDBResolver creates a resolver backed by db.
func NewDBResolver(db *gorm.DB) *DBResolver {
	return &DBResolver{db: db}
}

// Resolve implements Resolver.
func (r *DBResolver) Resolve(ctx context.Context, userID uint) (Scope, error) {
	var u models.User
	err := r.db.WithContext(ctx).Select("id", "email", "name", "role", "entreprise_id").First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Scope{}, ErrUnknownUser
	}
	if err != nil {
		return Scope{}, fmt.Errorf("resolve user %d: %w", userID, err)
	}
	return Scope{
		UserID:   u.ID,
		TenantID: u.TenantID(),
		Role:     u.Role,
		Email:    u.Email,
		Name:     u.Name,
	}, nil
}

// Middleware resolves the scope of the authenticated user once and stores
// it in the request context. Requests without a user pass through.
func Middleware(res Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			s, err := res.Resolve(r.Context(), uid)
			if err != nil {
				if !errors.Is(err, ErrUnknownUser) {
					logger.ErrorContext(r.Context(), "resolve scope", slog.Uint64("user", uint64(uid)), slog.String("err", err.Error()))
					httpx.JSONError(w, http.StatusInternalServerError, httpx.CodeInternal, nil)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), s)))
		})
	}
}

// RequireTenant rejects requests whose user has no company yet.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := Require(r.Context()); err != nil {
			if errors.Is(err, ErrUnknownUser) {
				auth.Unauthorized(w, r)
				return
			}
			if auth.WantsJSON(r) {
				httpx.JSONError(w, http.StatusForbidden, "no_company", nil)
				return
			}
			http.Redirect(w, r, "/entreprise/nouvelle", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
