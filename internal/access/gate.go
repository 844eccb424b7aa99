package access

import "context"

// Policy decides on a loaded resource, typically ownership.
type Policy[U any] interface {
	// Can reports whether user may perform action on resource. resource is
	// nil for list and create.
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, resource any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, user U, action Action, resource any) bool {
	return f(ctx, user, action, resource)
}

// Gate combines profile permissions with per-resource policies:
//  1. the user must be non-zero
//  2. their profile must grant resource:action
//  3. when a resource is given and a policy is registered, the policy must
//     allow it
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
	policies map[string]Policy[U]
}

// NewGate creates a gate over resolver.
func NewGate[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{resolver: resolver, policies: make(map[string]Policy[U])}
}

// Register sets the policy of a resource type.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Profile resolves the user's profile. The zero user has none.
func (g *Gate[U]) Profile(ctx context.Context, user U) (*Profile, error) {
	var zero U
	if user == zero {
		return nil, nil
	}
	return g.resolver.Resolve(ctx, user)
}

// Authorize returns ErrForbidden when the action is denied.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	profile, err := g.Profile(ctx, user)
	if err != nil || profile == nil {
		return ErrForbidden
	}
	if !profile.HasPermission(NewPermission(resourceType, action)) {
		return ErrForbidden
	}
	if resource != nil {
		if p, ok := g.policies[resourceType]; ok && !p.Can(ctx, user, action, resource) {
			return ErrForbidden
		}
	}
	return nil
}

// Can is Authorize as a bool.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// CanProfile checks the profile only, before any resource is loaded.
func (g *Gate[U]) CanProfile(ctx context.Context, user U, action Action, resourceType string) bool {
	profile, err := g.Profile(ctx, user)
	if err != nil || profile == nil {
		return false
	}
	return profile.HasPermission(NewPermission(resourceType, action))
}
