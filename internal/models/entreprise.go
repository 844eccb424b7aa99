package models

import (
	"time"
)

// SubscriptionStatus is the billing state of a tenant as last reported by
// the payment provider.
type SubscriptionStatus string

const (
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionExpired  SubscriptionStatus = "expired"
	SubscriptionUnknown  SubscriptionStatus = "unknown"
)

// Entreprise is a tenant: the company owning clients, chantiers, quotes and
// invoices.
type Entreprise struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name      string `gorm:"size:255;not null" json:"name"`
	LegalName string `gorm:"size:255" json:"legal_name,omitempty"`
	// Code is the join code handed to members.
	Code  string `gorm:"size:8;uniqueIndex;not null" json:"code"`
	SIRET string `gorm:"size:14" json:"siret,omitempty"`

	Email      string `gorm:"size:255" json:"email,omitempty"`
	Phone      string `gorm:"size:50" json:"phone,omitempty"`
	Address    string `gorm:"size:500" json:"address,omitempty"`
	PostalCode string `gorm:"size:20" json:"postal_code,omitempty"`
	City       string `gorm:"size:100" json:"city,omitempty"`

	TrialStartsAt      time.Time          `json:"trial_starts_at"`
	TrialEndsAt        time.Time          `json:"trial_ends_at"`
	SubscriptionStatus SubscriptionStatus `gorm:"size:20;not null;default:'trialing'" json:"subscription_status"`

	StripeCustomerID     string `gorm:"size:100;index" json:"-"`
	StripeSubscriptionID string `gorm:"size:100" json:"-"`
}

// GetTenantID implements the tenant ownership contract.
func (e *Entreprise) GetTenantID() uint {
	return e.ID
}

// TrialRunning reports whether now falls inside the trial window.
func (e *Entreprise) TrialRunning(now time.Time) bool {
	return !now.Before(e.TrialStartsAt) && now.Before(e.TrialEndsAt)
}

// DisplayName prefers the legal name on printed documents.
func (e *Entreprise) DisplayName() string {
	if e.LegalName != "" {
		return e.LegalName
	}
	return e.Name
}
