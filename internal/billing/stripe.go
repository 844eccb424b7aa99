// Package billing starts subscription checkouts with Stripe and applies the
// subscription changes Stripe reports through webhooks.
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-chantiers/internal/config"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// ErrNotConfigured is returned when no Stripe key or price is set.
var ErrNotConfigured = errors.New("billing: stripe is not configured")

// CheckoutRequest describes the checkout session to open for a tenant.
type CheckoutRequest struct {
	Entreprise *models.Entreprise
	Email      string
	SuccessURL string
	CancelURL  string
}

// Provider opens hosted checkout pages.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
}

// StripeClient opens checkout sessions through stripe-go.
type StripeClient struct {
	sessions session.Client
	priceID  string
}

// NewStripeClient builds a client from the billing settings. StripeAPIBase
// points the client at another API host, such as a local mock.
func NewStripeClient(cfg config.BillingConfig) *StripeClient {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 15 * time.Second},
		MaxNetworkRetries: stripe.Int64(2),
	}
	if base := strings.TrimRight(cfg.StripeAPIBase, "/"); base != "" {
		backendCfg.URL = stripe.String(base)
	}
	return &StripeClient{
		sessions: session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.StripeSecretKey,
		},
		priceID: cfg.StripePriceID,
	}
}

// CreateCheckoutSession opens a subscription checkout and returns its URL.
// Retries of one call share the idempotency key stripe-go generates for it.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if c.sessions.Key == "" || c.priceID == "" {
		return "", ErrNotConfigured
	}
	tenant := strconv.FormatUint(uint64(req.Entreprise.ID), 10)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(c.priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(tenant),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"entreprise_id": tenant},
		},
	}
	params.Context = ctx
	params.AddMetadata("entreprise_id", tenant)
	if req.Entreprise.StripeCustomerID != "" {
		params.Customer = stripe.String(req.Entreprise.StripeCustomerID)
	} else if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	s, err := c.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe checkout: %w", err)
	}
	if s.URL == "" {
		return "", errors.New("stripe checkout: empty session url")
	}
	return s.URL, nil
}
