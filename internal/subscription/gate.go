package subscription

import (
	"context"
	"log/slog"

	"github.com/diewo77/go-chantiers/internal/config"
)

// Subject identifies who is asking: the tenant being checked and the email
// of the signed-in user (used by the operator bypass).
type Subject struct {
	TenantID uint
	Email    string
}

// Gate resolves the subscription state of a tenant. It never returns an
// error: any failure of the checker becomes StateUnknown.
type Gate struct {
	checker Checker
	cfg     config.SubscriptionConfig
	logger  *slog.Logger
	observe func(State)
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger used to report checker failures.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithObserver registers a callback invoked with every resolved state.
func WithObserver(fn func(State)) Option {
	return func(g *Gate) { g.observe = fn }
}

// NewGate creates a gate backed by checker and the bypass switches of cfg.
func NewGate(checker Checker, cfg config.SubscriptionConfig, opts ...Option) *Gate {
	g := &Gate{
		checker: checker,
		cfg:     cfg,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsActive returns the subscription state for s.
func (g *Gate) IsActive(ctx context.Context, s Subject) Result {
	res := g.resolve(ctx, s)
	if g.observe != nil {
		g.observe(res.State)
	}
	return res
}

func (g *Gate) resolve(ctx context.Context, s Subject) Result {
	if g.cfg.Bypass {
		return Active("bypass")
	}
	if g.cfg.AdminBypass && g.cfg.IsOperator(s.Email) {
		return Active("operator_bypass")
	}
	if s.TenantID == 0 {
		return Unknown("no_tenant")
	}
	if g.checker == nil {
		return Unknown("no_checker")
	}

	res, err := g.checker.IsCompanyActive(ctx, s.TenantID)
	if err != nil {
		g.logger.WarnContext(ctx, "subscription check failed",
			slog.Uint64("tenant", uint64(s.TenantID)),
			slog.String("err", err.Error()))
		return Unknown("check_failed")
	}
	switch res.State {
	case StateActive, StateInactive, StateUnknown:
		return res
	default:
		return Unknown("malformed_result")
	}
}
