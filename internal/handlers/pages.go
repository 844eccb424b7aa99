package handlers

import (
	"net/http"

	"github.com/diewo77/go-chantiers/auth"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/services"
	"github.com/diewo77/go-chantiers/internal/subscription"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/diewo77/go-chantiers/view"
)

// PageHandler serves the HTML pages around the subscription.
type PageHandler struct {
	Responder
	accounts  *services.AccountService
	dashboard *services.DashboardService
	gate      *subscription.Gate
}

func NewPageHandler(rs Responder, accounts *services.AccountService, dashboard *services.DashboardService, gate *subscription.Gate) *PageHandler {
	return &PageHandler{Responder: rs, accounts: accounts, dashboard: dashboard, gate: gate}
}

// Home sends anonymous visitors to the login page and users without a
// company to onboarding.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if _, ok := auth.UserIDFromContext(r.Context()); !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	sc, ok := tenancy.FromContext(r.Context())
	if !ok || !sc.HasTenant() {
		http.Redirect(w, r, "/entreprise/nouvelle", http.StatusSeeOther)
		return
	}
	company, err := h.accounts.Company(r.Context(), sc.TenantID)
	if err != nil {
		h.Error(w, r, "home", err)
		return
	}
	summary, err := h.dashboard.Summary(r.Context(), sc)
	if err != nil {
		h.Error(w, r, "home", err)
		return
	}
	var quotes int64
	for _, n := range summary.QuotesByStatus {
		quotes += n
	}
	res := h.gate.ForRequest(r)
	if !res.Allows() {
		http.Redirect(w, r, subscription.ExpiredPath, http.StatusSeeOther)
		return
	}
	err = view.Render(w, r, http.StatusOK, "home.html", map[string]any{
		"Company":             company,
		"Trialing":            company.SubscriptionStatus == models.SubscriptionTrialing,
		"Summary":             summary,
		"Quotes":              quotes,
		"SubscriptionUnknown": !res.Known(),
	})
	if err != nil {
		h.Error(w, r, "render home", err)
	}
}

// Expired is where inactive tenants land.
func (h *PageHandler) Expired(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	company, err := h.accounts.Company(r.Context(), sc.TenantID)
	if err != nil {
		h.Error(w, r, "expired page", err)
		return
	}
	err = view.Render(w, r, http.StatusOK, "expired.html", map[string]any{
		"EntrepriseID": company.ID,
		"TrialEndsAt":  company.TrialEndsAt,
	})
	if err != nil {
		h.Error(w, r, "render expired", err)
	}
}

// Thanks is the checkout success page.
func (h *PageHandler) Thanks(w http.ResponseWriter, r *http.Request) {
	if err := view.Render(w, r, http.StatusOK, "merci.html", nil); err != nil {
		h.Error(w, r, "render thanks", err)
	}
}
