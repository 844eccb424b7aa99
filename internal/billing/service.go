package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

// Invalidator forgets cached subscription answers of a tenant.
type Invalidator interface {
	Invalidate(tenantID uint)
}

// Paths the checkout returns to.
const (
	SuccessPath = "/abonnement/merci"
	CancelPath  = "/abonnement/expire"
)

// Service connects the payment provider to the entreprises table.
type Service struct {
	db          *gorm.DB
	provider    Provider
	invalidator Invalidator
	publicURL   string
	logger      *slog.Logger
}

// NewService creates the billing service. invalidator may be nil.
func NewService(db *gorm.DB, provider Provider, invalidator Invalidator, publicURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, provider: provider, invalidator: invalidator, publicURL: publicURL, logger: logger}
}

// Checkout returns the hosted checkout URL for the caller's company. A
// company other than the caller's is reported as not found.
func (s *Service) Checkout(ctx context.Context, sc tenancy.Scope, entrepriseID uint) (string, error) {
	if entrepriseID == 0 {
		entrepriseID = sc.TenantID
	}
	if entrepriseID != sc.TenantID {
		return "", fmt.Errorf("entreprise %d: %w", entrepriseID, gorm.ErrRecordNotFound)
	}
	var ent models.Entreprise
	if err := s.db.WithContext(ctx).First(&ent, entrepriseID).Error; err != nil {
		return "", fmt.Errorf("entreprise %d: %w", entrepriseID, err)
	}
	return s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		Entreprise: &ent,
		Email:      sc.Email,
		SuccessURL: s.publicURL + SuccessPath,
		CancelURL:  s.publicURL + CancelPath,
	})
}

// StatusFor maps a Stripe subscription status to the tenant status.
func StatusFor(stripeStatus string) models.SubscriptionStatus {
	switch stripeStatus {
	case "active", "trialing":
		return models.SubscriptionActive
	case "canceled", "unpaid", "incomplete_expired", "paused":
		return models.SubscriptionExpired
	}
	return models.SubscriptionUnknown
}

// HandleEvent applies a verified webhook event. Event types that do not
// concern subscriptions are ignored.
func (s *Service) HandleEvent(ctx context.Context, e *stripe.Event) error {
	switch e.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var cs stripe.CheckoutSession
		if err := decodeObject(e, &cs); err != nil {
			return err
		}
		ref := cs.ClientReferenceID
		if ref == "" {
			ref = cs.Metadata["entreprise_id"]
		}
		id, err := strconv.ParseUint(ref, 10, 64)
		if err != nil {
			return ErrMalformedPayload
		}
		fields := map[string]any{"subscription_status": models.SubscriptionActive}
		if cs.Customer != nil {
			fields["stripe_customer_id"] = cs.Customer.ID
		}
		if cs.Subscription != nil {
			fields["stripe_subscription_id"] = cs.Subscription.ID
		}
		return s.apply(ctx, e, "id = ?", uint(id), fields)
	case stripe.EventTypeCustomerSubscriptionCreated, stripe.EventTypeCustomerSubscriptionUpdated, stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := decodeObject(e, &sub); err != nil {
			return err
		}
		status := StatusFor(string(sub.Status))
		if e.Type == stripe.EventTypeCustomerSubscriptionDeleted {
			status = models.SubscriptionExpired
		}
		var customer string
		if sub.Customer != nil {
			customer = sub.Customer.ID
		}
		query, arg := "stripe_customer_id = ?", any(customer)
		if id, err := strconv.ParseUint(sub.Metadata["entreprise_id"], 10, 64); err == nil {
			query, arg = "id = ?", uint(id)
		} else if customer == "" {
			return ErrMalformedPayload
		}
		return s.apply(ctx, e, query, arg, map[string]any{
			"subscription_status":    status,
			"stripe_subscription_id": sub.ID,
		})
	}
	s.logger.Debug("stripe event ignored", "type", e.Type, "id", e.ID)
	return nil
}

func decodeObject(e *stripe.Event, v any) error {
	if e.Data == nil || len(e.Data.Raw) == 0 {
		return ErrMalformedPayload
	}
	if err := json.Unmarshal(e.Data.Raw, v); err != nil {
		return ErrMalformedPayload
	}
	return nil
}

// ErrUnknownCustomer is returned when an event names no known tenant.
var ErrUnknownCustomer = errors.New("billing: event does not match a company")

func (s *Service) apply(ctx context.Context, e *stripe.Event, query string, arg any, fields map[string]any) error {
	var ent models.Entreprise
	if err := s.db.WithContext(ctx).Where(query, arg).First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("stripe event for unknown company", "type", e.Type, "id", e.ID)
			return ErrUnknownCustomer
		}
		return err
	}
	if err := s.db.WithContext(ctx).Model(&ent).Updates(fields).Error; err != nil {
		return fmt.Errorf("apply %s: %w", e.Type, err)
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ent.ID)
	}
	s.logger.Info("subscription updated", "entreprise_id", ent.ID, "event", e.Type, "status", fields["subscription_status"])
	return nil
}
