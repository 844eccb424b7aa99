// Package policy binds the access gate to the application: who the user is,
// which profile their role maps to and which rows they may touch.
package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/go-chantiers/auth"
	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/access"
	"github.com/diewo77/go-chantiers/internal/config"
	"gorm.io/gorm"
)

// AuthGate is the configured gate with its profile cache.
type AuthGate struct {
	Gate          *access.Gate[uint]
	CacheResolver *access.CachedResolver[uint]
}

// NewAuthGate creates the gate over the role resolver, caching profiles for
// cacheTTL, and registers the tenant policy on every tenant-owned resource.
func NewAuthGate(db *gorm.DB, sub config.SubscriptionConfig, cacheTTL time.Duration) *AuthGate {
	cached := access.NewCachedResolver[uint](NewRoleResolver(db, sub), cacheTTL)
	g := access.NewGate[uint](cached)
	tp := NewTenantPolicy()
	for _, res := range []string{
		access.ResourceClient,
		access.ResourceChantier,
		access.ResourceQuote,
		access.ResourceInvoice,
		access.ResourceEvent,
		access.ResourceCompany,
	} {
		g.Register(res, tp)
	}
	return &AuthGate{Gate: g, CacheResolver: cached}
}

// Authorize checks the current user against resourceType and, when given,
// the loaded resource.
func (ag *AuthGate) Authorize(ctx context.Context, action access.Action, resourceType string, resource any) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return access.ErrForbidden
	}
	return ag.Gate.Authorize(ctx, userID, action, resourceType, resource)
}

func (ag *AuthGate) Can(ctx context.Context, action access.Action, resourceType string, resource any) bool {
	return ag.Authorize(ctx, action, resourceType, resource) == nil
}

// CanProfile checks only the role permissions.
func (ag *AuthGate) CanProfile(ctx context.Context, action access.Action, resourceType string) bool {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false
	}
	return ag.Gate.CanProfile(ctx, userID, action, resourceType)
}

// IsOperator reports whether the current user holds the operator profile.
func (ag *AuthGate) IsOperator(ctx context.Context) bool {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false
	}
	p, err := ag.Gate.Profile(ctx, userID)
	return err == nil && p.HasPermission(access.PermissionSuperAdmin)
}

// InvalidateUser drops the cached profile of a user whose role changed.
func (ag *AuthGate) InvalidateUser(userID uint) {
	ag.CacheResolver.Invalidate(userID)
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	if auth.WantsJSON(r) {
		httpx.JSONError(w, http.StatusForbidden, httpx.CodeForbidden, nil)
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// RequirePermission blocks users whose profile lacks resource:action.
func (ag *AuthGate) RequirePermission(resourceType string, action access.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ag.CanProfile(r.Context(), action, resourceType) {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOperator only lets platform operators through.
func (ag *AuthGate) RequireOperator() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.UserIDFromContext(r.Context()); !ok {
				auth.Unauthorized(w, r)
				return
			}
			if !ag.IsOperator(r.Context()) {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
