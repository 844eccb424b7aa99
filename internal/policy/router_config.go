package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/diewo77/go-chantiers/auth"
	"github.com/diewo77/go-chantiers/internal/agenda"
	"github.com/diewo77/go-chantiers/internal/billing"
	"github.com/diewo77/go-chantiers/internal/config"
	"github.com/diewo77/go-chantiers/internal/handlers"
	"github.com/diewo77/go-chantiers/internal/lifecycle"
	"github.com/diewo77/go-chantiers/internal/metrics"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/services"
	"github.com/diewo77/go-chantiers/internal/storage"
	"github.com/diewo77/go-chantiers/internal/subscription"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"gorm.io/gorm"
)

// Cache lifetimes of the profile and subscription answers.
const (
	ProfileCacheTTL      = 5 * time.Minute
	SubscriptionCacheTTL = 30 * time.Second
)

// RouterConfig holds the configured handlers and middleware of the
// application.
type RouterConfig struct {
	// AuthGate provides authorization checks and middleware
	AuthGate *AuthGate
	Sessions *auth.Manager
	Scopes   tenancy.Resolver

	// Subscription gate and the cache the billing webhook invalidates
	Subscription      *subscription.Gate
	SubscriptionCache *subscription.CachedChecker

	Metrics *metrics.Metrics

	// Bucket holds chantier photos; nil when storage is disabled.
	Bucket storage.Bucket

	// Handlers
	AuthHandler      *handlers.AuthHandler
	CompanyHandler   *handlers.CompanyHandler
	ClientHandler    *handlers.ClientHandler
	ChantierHandler  *handlers.ChantierHandler
	PhotoHandler     *handlers.PhotoHandler
	QuoteHandler     *handlers.QuoteHandler
	InvoiceHandler   *handlers.InvoiceHandler
	AgendaHandler    *handlers.AgendaHandler
	DashboardHandler *handlers.DashboardHandler
	BillingHandler   *handlers.BillingHandler
	PageHandler      *handlers.PageHandler
	AdminHandler     *handlers.AdminHandler
	HealthHandler    *handlers.HealthHandler
}

// Option adjusts NewRouterConfig.
type Option func(*options)

type options struct {
	provider billing.Provider
	bucket   storage.Bucket
}

// WithBillingProvider replaces the Stripe client, e.g. in tests.
func WithBillingProvider(p billing.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithBucket replaces the photo bucket opened on the storage directory.
func WithBucket(b storage.Bucket) Option {
	return func(o *options) { o.bucket = b }
}

// NewRouterConfig wires services, gates and handlers over db.
func NewRouterConfig(db *gorm.DB, cfg *config.Config, logger *slog.Logger, opts ...Option) (*RouterConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.provider == nil {
		o.provider = billing.NewStripeClient(cfg.Billing)
	}
	if o.bucket == nil && cfg.Storage.Dir != "" {
		b, err := storage.OpenDir(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("photo bucket: %w", err)
		}
		o.bucket = b
	}

	m := metrics.New()
	authGate := NewAuthGate(db, cfg.Subscription, ProfileCacheTTL)

	sessions := auth.NewManager(cfg.Auth.SessionSecret, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	sessions.SetUserVerifier(func(ctx context.Context, uid uint) bool {
		var count int64
		db.WithContext(ctx).Model(&models.User{}).Where("id = ?", uid).Count(&count)
		return count > 0
	})

	subCache := subscription.NewCachedChecker(subscription.NewDBChecker(db), SubscriptionCacheTTL)
	subGate := subscription.NewGate(subCache, cfg.Subscription,
		subscription.WithLogger(logger),
		subscription.WithObserver(m.ObserveSubscription))

	// Services
	accounts := services.NewAccountService(db, cfg.App.TrialDays)
	clients := services.NewClientService(db)
	chantiers := services.NewChantierService(db, o.bucket, logger)
	photos := services.NewPhotoService(db, o.bucket, storage.NewSigner(cfg.Storage.SigningKey, cfg.Storage.URLTTL), cfg.Storage.MaxUpload, logger)
	docs := lifecycle.NewService(db)
	events := agenda.NewService(db)
	dashboard := services.NewDashboardService(db)
	admin := services.NewAdminService(db, o.bucket, logger)
	bill := billing.NewService(db, o.provider, subCache, cfg.App.PublicURL, logger)

	rs := handlers.NewResponder(logger, cfg.App.Dev, authGate)

	return &RouterConfig{
		AuthGate:          authGate,
		Sessions:          sessions,
		Scopes:            tenancy.NewDBResolver(db),
		Subscription:      subGate,
		SubscriptionCache: subCache,
		Metrics:           m,
		Bucket:            o.bucket,
		AuthHandler:       handlers.NewAuthHandler(rs, accounts, sessions, cfg.Auth.LoginTimeout),
		CompanyHandler:    handlers.NewCompanyHandler(rs, accounts, subGate, authGate.InvalidateUser),
		ClientHandler:     handlers.NewClientHandler(rs, clients),
		ChantierHandler:   handlers.NewChantierHandler(rs, chantiers, photos),
		PhotoHandler:      handlers.NewPhotoHandler(rs, photos, cfg.Storage.MaxUpload),
		QuoteHandler:      handlers.NewQuoteHandler(rs, docs, accounts, m.ObserveConversion),
		InvoiceHandler:    handlers.NewInvoiceHandler(rs, docs, accounts),
		AgendaHandler:     handlers.NewAgendaHandler(rs, events),
		DashboardHandler:  handlers.NewDashboardHandler(rs, dashboard),
		BillingHandler:    handlers.NewBillingHandler(rs, bill, cfg.Billing.StripeWebhookSecret),
		PageHandler:       handlers.NewPageHandler(rs, accounts, dashboard, subGate),
		AdminHandler:      handlers.NewAdminHandler(rs, admin),
		HealthHandler:     handlers.NewHealthHandler(db),
	}, nil
}
