package policy

import (
	"context"

	"github.com/diewo77/go-chantiers/internal/access"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/tenancy"
)

// TenantPolicy allows a loaded row only when it belongs to the tenant of
// the request scope. Rows not implementing models.TenantOwned are denied.
type TenantPolicy struct{}

func NewTenantPolicy() *TenantPolicy {
	return &TenantPolicy{}
}

func (p *TenantPolicy) Can(ctx context.Context, userID uint, _ access.Action, resource any) bool {
	if resource == nil {
		return true
	}
	owned, ok := resource.(models.TenantOwned)
	if !ok {
		return false
	}
	sc, ok := tenancy.FromContext(ctx)
	if !ok || sc.UserID != userID || !sc.HasTenant() {
		return false
	}
	return owned.GetTenantID() == sc.TenantID
}
