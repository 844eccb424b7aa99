package access

import "context"

// Profile is a named set of permissions.
type Profile struct {
	name        string
	permissions map[Permission]bool
}

// NewProfile creates a profile with the given permissions.
func NewProfile(name string, permissions ...Permission) *Profile {
	p := &Profile{name: name, permissions: make(map[Permission]bool, len(permissions))}
	for _, perm := range permissions {
		p.permissions[perm] = true
	}
	return p
}

func (p *Profile) Name() string { return p.name }

// HasPermission checks requested against every granted permission.
func (p *Profile) HasPermission(requested Permission) bool {
	if p == nil {
		return false
	}
	if p.permissions[requested] {
		return true
	}
	for perm := range p.permissions {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}

// Built-in profiles.
var (
	// Owner manages everything inside their company.
	Owner = NewProfile("owner",
		ResourceClient+":*",
		ResourceChantier+":*",
		ResourceQuote+":*",
		ResourceInvoice+":*",
		ResourceEvent+":*",
		ResourceCompany+":*",
		ResourceBilling+":*",
	)
	// Member works on documents but cannot delete them, edit the company
	// profile or pay.
	Member = NewProfile("member",
		ResourceClient+":*",
		ResourceChantier+":*",
		ResourceEvent+":*",
		NewPermission(ResourceQuote, ActionList),
		NewPermission(ResourceQuote, ActionView),
		NewPermission(ResourceQuote, ActionCreate),
		NewPermission(ResourceQuote, ActionUpdate),
		NewPermission(ResourceQuote, ActionTransition),
		NewPermission(ResourceQuote, ActionConvert),
		NewPermission(ResourceInvoice, ActionList),
		NewPermission(ResourceInvoice, ActionView),
		NewPermission(ResourceInvoice, ActionCreate),
		NewPermission(ResourceInvoice, ActionUpdate),
		NewPermission(ResourceInvoice, ActionTransition),
		NewPermission(ResourceCompany, ActionView),
	)
	// Operator is the platform operator.
	Operator = NewProfile("operator", PermissionSuperAdmin)
)

// ProfileResolver resolves a user to their profile. A nil profile means the
// user has none.
type ProfileResolver[U any] interface {
	Resolve(ctx context.Context, user U) (*Profile, error)
}

// ResolverFunc adapts a function to ProfileResolver.
type ResolverFunc[U any] func(ctx context.Context, user U) (*Profile, error)

func (f ResolverFunc[U]) Resolve(ctx context.Context, user U) (*Profile, error) {
	return f(ctx, user)
}
