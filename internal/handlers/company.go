package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/diewo77/go-chantiers/auth"
	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/services"
	"github.com/diewo77/go-chantiers/internal/subscription"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/diewo77/go-chantiers/validation"
	"github.com/diewo77/go-chantiers/view"
)

type CompanyHandler struct {
	Responder
	accounts *services.AccountService
	gate     *subscription.Gate
	// roleChanged is called once a user got a role, so cached profiles
	// can be dropped.
	roleChanged func(userID uint)
}

func NewCompanyHandler(rs Responder, accounts *services.AccountService, gate *subscription.Gate, roleChanged func(uint)) *CompanyHandler {
	if roleChanged == nil {
		roleChanged = func(uint) {}
	}
	return &CompanyHandler{Responder: rs, accounts: accounts, gate: gate, roleChanged: roleChanged}
}

// companyView is the JSON shape of GET /api/me/entreprise.
type companyView struct {
	ID                 uint                      `json:"id"`
	Name               string                    `json:"name"`
	LegalName          string                    `json:"legal_name,omitempty"`
	Code               string                    `json:"code"`
	SIRET              string                    `json:"siret,omitempty"`
	Email              string                    `json:"email,omitempty"`
	Phone              string                    `json:"phone,omitempty"`
	Address            string                    `json:"address,omitempty"`
	PostalCode         string                    `json:"postal_code,omitempty"`
	City               string                    `json:"city,omitempty"`
	TrialStartsAt      time.Time                 `json:"trial_starts_at"`
	TrialEndsAt        time.Time                 `json:"trial_ends_at"`
	SubscriptionStatus models.SubscriptionStatus `json:"subscription_status"`
	Subscription       subscription.Result       `json:"subscription"`
}

func newCompanyView(e *models.Entreprise, res subscription.Result) companyView {
	return companyView{
		ID:                 e.ID,
		Name:               e.Name,
		LegalName:          e.LegalName,
		Code:               e.Code,
		SIRET:              e.SIRET,
		Email:              e.Email,
		Phone:              e.Phone,
		Address:            e.Address,
		PostalCode:         e.PostalCode,
		City:               e.City,
		TrialStartsAt:      e.TrialStartsAt,
		TrialEndsAt:        e.TrialEndsAt,
		SubscriptionStatus: e.SubscriptionStatus,
		Subscription:       res,
	}
}

func (h *CompanyHandler) respond(w http.ResponseWriter, r *http.Request, status int, e *models.Entreprise) {
	res := h.gate.IsActive(r.Context(), subscription.Subject{TenantID: e.ID, Email: emailOf(r)})
	if res.State == subscription.StateUnknown {
		w.Header().Set(subscription.Header, string(res.State))
	}
	httpx.JSON(w, status, newCompanyView(e, res))
}

func emailOf(r *http.Request) string {
	sc, _ := tenancy.FromContext(r.Context())
	return sc.Email
}

// Me returns the caller's company with its subscription state.
func (h *CompanyHandler) Me(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	e, err := h.accounts.Company(r.Context(), sc.TenantID)
	if err != nil {
		h.Error(w, r, "company", err)
		return
	}
	h.respond(w, r, http.StatusOK, e)
}

func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	var in services.CompanyInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "update company", err)
		return
	}
	e, err := h.accounts.UpdateCompany(r.Context(), sc.TenantID, in)
	if err != nil {
		h.Error(w, r, "update company", err)
		return
	}
	h.respond(w, r, http.StatusOK, e)
}

func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, r)
		return
	}
	var in services.CompanyInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "create company", err)
		return
	}
	e, err := h.accounts.CreateCompany(r.Context(), uid, in)
	if err != nil {
		h.Error(w, r, "create company", err)
		return
	}
	h.roleChanged(uid)
	h.respond(w, r, http.StatusCreated, e)
}

type joinRequest struct {
	Code string `json:"code"`
}

func (h *CompanyHandler) Join(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, r)
		return
	}
	var in joinRequest
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "join company", err)
		return
	}
	e, err := h.accounts.JoinCompany(r.Context(), uid, in.Code)
	if err != nil {
		h.Error(w, r, "join company", err)
		return
	}
	h.roleChanged(uid)
	h.respond(w, r, http.StatusOK, e)
}

// NewPage shows the onboarding form to users without a company.
func (h *CompanyHandler) NewPage(w http.ResponseWriter, r *http.Request) {
	h.renderNew(w, r, http.StatusOK, map[string]any{})
}

func (h *CompanyHandler) renderNew(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	if sc, ok := tenancy.FromContext(r.Context()); ok && sc.HasTenant() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := view.Render(w, r, status, "company_new.html", data); err != nil {
		h.Error(w, r, "render company", err)
	}
}

// CreateForm handles the onboarding form.
func (h *CompanyHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, r)
		return
	}
	in := services.CompanyInput{Name: r.FormValue("name")}
	if _, err := h.accounts.CreateCompany(r.Context(), uid, in); err != nil {
		h.formError(w, r, err, map[string]any{"Name": in.Name})
		return
	}
	h.roleChanged(uid)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// JoinForm handles the join code form.
func (h *CompanyHandler) JoinForm(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		auth.Unauthorized(w, r)
		return
	}
	code := r.FormValue("code")
	if _, err := h.accounts.JoinCompany(r.Context(), uid, code); err != nil {
		h.formError(w, r, err, map[string]any{"Code": code})
		return
	}
	h.roleChanged(uid)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *CompanyHandler) formError(w http.ResponseWriter, r *http.Request, err error, data map[string]any) {
	var v validation.Violations
	switch {
	case errors.As(err, &v):
		data["Errors"] = v
	case errors.Is(err, services.ErrUnknownCode):
		data["Errors"] = validation.Violations{"code": "not_found"}
	case errors.Is(err, services.ErrAlreadyAttached):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	default:
		h.Error(w, r, "company form", err)
		return
	}
	h.renderNew(w, r, http.StatusUnprocessableEntity, data)
}
