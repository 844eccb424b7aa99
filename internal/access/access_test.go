package access_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/go-chantiers/internal/access"
)

func TestPermissionParse(t *testing.T) {
	res, act := access.NewPermission("quote", access.ActionConvert).Parse()
	if res != "quote" || act != access.ActionConvert {
		t.Fatalf("got %q %q", res, act)
	}
	if res, act := access.Permission("invalid").Parse(); res != "" || act != "" {
		t.Fatalf("expected empty parse, got %q %q", res, act)
	}
}

func TestPermissionMatches(t *testing.T) {
	tests := []struct {
		granted   access.Permission
		requested access.Permission
		want      bool
	}{
		{"quote:view", "quote:view", true},
		{"quote:view", "quote:delete", false},
		{"quote:*", "quote:delete", true},
		{"quote:*", "invoice:delete", false},
		{"*:*", "invoice:delete", true},
		{"*:view", "quote:view", false},
		{"bogus", "bogus:*", false},
	}
	for _, tt := range tests {
		if got := tt.granted.Matches(tt.requested); got != tt.want {
			t.Errorf("%s matches %s = %v, want %v", tt.granted, tt.requested, got, tt.want)
		}
	}
}

func TestBuiltinProfiles(t *testing.T) {
	tests := []struct {
		profile *access.Profile
		perm    access.Permission
		want    bool
	}{
		{access.Owner, "invoice:delete", true},
		{access.Owner, "billing:checkout", true},
		{access.Owner, "admin:delete", false},
		{access.Member, "quote:convert", true},
		{access.Member, "quote:delete", false},
		{access.Member, "invoice:delete", false},
		{access.Member, "company:update", false},
		{access.Member, "chantier:delete", true},
		{access.Member, "billing:checkout", false},
		{access.Operator, "admin:delete", true},
		{nil, "quote:view", false},
	}
	for _, tt := range tests {
		if got := tt.profile.HasPermission(tt.perm); got != tt.want {
			t.Errorf("%v has %s = %v, want %v", tt.profile, tt.perm, got, tt.want)
		}
	}
}

type quote struct{ tenant uint }

func staticResolver(m map[uint]*access.Profile) access.ResolverFunc[uint] {
	return func(_ context.Context, user uint) (*access.Profile, error) {
		return m[user], nil
	}
}

func TestGateAuthorize(t *testing.T) {
	g := access.NewGate[uint](staticResolver(map[uint]*access.Profile{1: access.Owner, 2: access.Member}))
	g.Register("quote", access.PolicyFunc[uint](func(_ context.Context, user uint, _ access.Action, resource any) bool {
		q, ok := resource.(*quote)
		return ok && q.tenant == 10
	}))
	ctx := context.Background()

	if err := g.Authorize(ctx, 0, access.ActionView, "quote", nil); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("zero user: %v", err)
	}
	if err := g.Authorize(ctx, 3, access.ActionView, "quote", nil); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("user without profile: %v", err)
	}
	if !g.Can(ctx, 2, access.ActionList, "quote", nil) {
		t.Fatal("member should list quotes")
	}
	if g.Can(ctx, 2, access.ActionDelete, "quote", &quote{tenant: 10}) {
		t.Fatal("member must not delete quotes")
	}
	if !g.Can(ctx, 1, access.ActionDelete, "quote", &quote{tenant: 10}) {
		t.Fatal("owner should delete own quote")
	}
	if g.Can(ctx, 1, access.ActionDelete, "quote", &quote{tenant: 11}) {
		t.Fatal("policy should reject foreign quote")
	}
	if !g.CanProfile(ctx, 1, access.ActionDelete, "quote") {
		t.Fatal("profile check ignores the policy")
	}
}

type countingResolver struct {
	calls   int
	profile *access.Profile
	err     error
}

func (r *countingResolver) Resolve(context.Context, uint) (*access.Profile, error) {
	r.calls++
	return r.profile, r.err
}

func TestCachedResolver(t *testing.T) {
	inner := &countingResolver{profile: access.Member}
	cached := access.NewCachedResolver[uint](inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := cached.Resolve(ctx, 1)
		if err != nil || p != access.Member {
			t.Fatalf("resolve: %v %v", p, err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.calls)
	}

	inner.profile = access.Owner
	cached.Invalidate(1)
	if p, _ := cached.Resolve(ctx, 1); p != access.Owner {
		t.Fatalf("expected owner after invalidate, got %v", p.Name())
	}

	inner.err = errors.New("db down")
	cached.InvalidateAll()
	if _, err := cached.Resolve(ctx, 1); err == nil {
		t.Fatal("expected error")
	}
	inner.err = nil
	if _, err := cached.Resolve(ctx, 1); err != nil {
		t.Fatalf("errors must not be cached: %v", err)
	}
	if inner.calls != 4 {
		t.Fatalf("expected 4 inner calls, got %d", inner.calls)
	}
}

func TestCachedResolverExpires(t *testing.T) {
	inner := &countingResolver{profile: access.Member}
	cached := access.NewCachedResolver[uint](inner, time.Nanosecond)
	ctx := context.Background()
	_, _ = cached.Resolve(ctx, 1)
	time.Sleep(time.Millisecond)
	_, _ = cached.Resolve(ctx, 1)
	if inner.calls != 2 {
		t.Fatalf("expected re-fetch after expiry, got %d calls", inner.calls)
	}
}
