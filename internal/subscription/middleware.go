package subscription

import (
	"context"
	"net/http"

	"github.com/diewo77/go-chantiers/auth"
	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/tenancy"
)

// Header tells the client that the subscription state is degraded.
const Header = "X-Subscription-State"

// ExpiredPath is where browsers are sent when the tenant is inactive.
const ExpiredPath = "/abonnement/expire"

type ctxKey struct{}

// ResultFromContext returns the result computed by RequireActive, if any.
func ResultFromContext(ctx context.Context) (Result, bool) {
	r, ok := ctx.Value(ctxKey{}).(Result)
	return r, ok
}

// ForRequest checks the tenant of the request scope.
func (g *Gate) ForRequest(r *http.Request) Result {
	if res, ok := ResultFromContext(r.Context()); ok {
		return res
	}
	s, _ := tenancy.FromContext(r.Context())
	return g.IsActive(r.Context(), Subject{TenantID: s.TenantID, Email: s.Email})
}

// RequireActive blocks the wrapped handler when the tenant is explicitly
// inactive: API calls get 402, pages are redirected to ExpiredPath. An
// unknown state lets the request through with the Header set.
func (g *Gate) RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := g.ForRequest(r)
		if res.State == StateUnknown {
			w.Header().Set(Header, string(StateUnknown))
		}
		if !res.Allows() {
			if auth.WantsJSON(r) {
				httpx.JSONError(w, http.StatusPaymentRequired, httpx.CodeSubscriptionInactive, res)
				return
			}
			http.Redirect(w, r, ExpiredPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, res)))
	})
}
