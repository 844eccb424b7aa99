// Package handlers exposes the services over HTTP. Every handler answers
// JSON except the login, onboarding, subscription and print pages.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/diewo77/go-chantiers/auth"
	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/access"
	"github.com/diewo77/go-chantiers/internal/billing"
	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/diewo77/go-chantiers/internal/lifecycle"
	"github.com/diewo77/go-chantiers/internal/services"
	"github.com/diewo77/go-chantiers/internal/storage"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/diewo77/go-chantiers/validation"
	"gorm.io/gorm"
)

// Error codes beyond the generic ones of httpx.
const (
	CodeNoCompany         = "no_company"
	CodeInvalidTransition = "invalid_transition"
	CodeQuoteNotAccepted  = "quote_not_accepted"
	CodeInvoiceLocked     = "invoice_locked"
	CodeClientInUse       = "client_in_use"
	CodeEmailTaken        = "email_taken"
	CodeAlreadyAttached   = "already_attached"
	CodeBadCredentials    = "bad_credentials"
	CodeTooLarge          = "too_large"
	CodeUnavailable       = "service_unavailable"
	CodeTimeout           = "timeout"
	CodeBadLink           = "invalid_link"
)

// Authorizer checks a loaded row against the caller.
type Authorizer interface {
	Authorize(ctx context.Context, action access.Action, resourceType string, resource any) error
}

// Responder writes errors and logs the unexpected ones. It is embedded by
// every handler.
type Responder struct {
	Logger *slog.Logger
	// Dev exposes raw error messages of internal failures.
	Dev   bool
	Authz Authorizer
}

// NewResponder creates a Responder. A nil logger uses slog.Default and a nil
// authz skips row checks.
func NewResponder(logger *slog.Logger, dev bool, authz Authorizer) Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return Responder{Logger: logger, Dev: dev, Authz: authz}
}

type mapped struct {
	status  int
	code    string
	details any
}

func classify(err error) mapped {
	var v validation.Violations
	switch {
	case errors.As(err, &v):
		return mapped{http.StatusUnprocessableEntity, httpx.CodeValidation, v}
	case errors.Is(err, lifecycle.ErrUnknownStatus):
		return mapped{http.StatusUnprocessableEntity, httpx.CodeValidation, validation.Violations{"status": "invalid_choice"}}
	case errors.Is(err, services.ErrUnknownCode):
		return mapped{http.StatusUnprocessableEntity, httpx.CodeValidation, validation.Violations{"code": "not_found"}}
	case errors.Is(err, services.ErrUnknownType):
		return mapped{http.StatusUnprocessableEntity, httpx.CodeValidation, validation.Violations{"type": "invalid_choice"}}
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, storage.ErrNotFound), errors.Is(err, ledger.ErrLineNotFound):
		return mapped{http.StatusNotFound, httpx.CodeNotFound, nil}
	case errors.Is(err, httpx.ErrBadJSON):
		return mapped{http.StatusBadRequest, httpx.CodeBadRequest, nil}
	case errors.Is(err, services.ErrBadCredentials):
		return mapped{http.StatusUnauthorized, CodeBadCredentials, nil}
	case errors.Is(err, tenancy.ErrUnknownUser):
		return mapped{http.StatusUnauthorized, httpx.CodeUnauthorized, nil}
	case errors.Is(err, tenancy.ErrNoTenant):
		return mapped{http.StatusForbidden, CodeNoCompany, nil}
	case errors.Is(err, access.ErrForbidden):
		return mapped{http.StatusForbidden, httpx.CodeForbidden, nil}
	case errors.Is(err, storage.ErrBadSignature), errors.Is(err, storage.ErrExpired), errors.Is(err, storage.ErrInvalidKey):
		return mapped{http.StatusForbidden, CodeBadLink, nil}
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return mapped{http.StatusConflict, CodeInvalidTransition, nil}
	case errors.Is(err, lifecycle.ErrQuoteNotAccepted):
		return mapped{http.StatusConflict, CodeQuoteNotAccepted, nil}
	case errors.Is(err, lifecycle.ErrInvoiceLocked):
		return mapped{http.StatusConflict, CodeInvoiceLocked, nil}
	case errors.Is(err, services.ErrClientInUse):
		return mapped{http.StatusConflict, CodeClientInUse, nil}
	case errors.Is(err, services.ErrEmailTaken):
		return mapped{http.StatusConflict, CodeEmailTaken, nil}
	case errors.Is(err, services.ErrAlreadyAttached):
		return mapped{http.StatusConflict, CodeAlreadyAttached, nil}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return mapped{http.StatusConflict, httpx.CodeConflict, nil}
	case errors.Is(err, services.ErrTooLarge):
		return mapped{http.StatusRequestEntityTooLarge, CodeTooLarge, nil}
	case errors.Is(err, services.ErrNoBucket), errors.Is(err, billing.ErrNotConfigured):
		return mapped{http.StatusServiceUnavailable, CodeUnavailable, nil}
	case errors.Is(err, context.DeadlineExceeded):
		return mapped{http.StatusGatewayTimeout, CodeTimeout, nil}
	}
	return mapped{http.StatusInternalServerError, httpx.CodeInternal, nil}
}

// Error maps err to a status and a stable code. op names the failed
// operation in the log line.
func (rs Responder) Error(w http.ResponseWriter, r *http.Request, op string, err error) {
	m := classify(err)
	if m.status >= http.StatusInternalServerError {
		sc, _ := tenancy.FromContext(r.Context())
		rs.Logger.ErrorContext(r.Context(), "request failed",
			slog.String("op", op),
			slog.Uint64("tenant", uint64(sc.TenantID)),
			slog.Uint64("user", uint64(sc.UserID)),
			slog.String("err", err.Error()))
		if m.status == http.StatusInternalServerError && rs.Dev {
			m.details = err.Error()
		}
	}
	if m.status == http.StatusUnauthorized && !auth.WantsJSON(r) {
		auth.Unauthorized(w, r)
		return
	}
	httpx.JSONError(w, m.status, m.code, m.details)
}

// Scope returns the tenant scope of the request or answers the error.
func (rs Responder) Scope(w http.ResponseWriter, r *http.Request) (tenancy.Scope, bool) {
	sc, err := tenancy.Require(r.Context())
	if err != nil {
		rs.Error(w, r, "scope", err)
		return sc, false
	}
	return sc, true
}

// ID parses the named path value or answers 404.
func (rs Responder) ID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, ok := httpx.PathID(r, name)
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, httpx.CodeNotFound, nil)
	}
	return id, ok
}

// Allowed re-checks a row loaded through a tenant filter. A refusal is
// answered 404 like any row outside the tenant.
func (rs Responder) Allowed(w http.ResponseWriter, r *http.Request, action access.Action, resourceType string, row any) bool {
	if rs.Authz == nil {
		return true
	}
	if err := rs.Authz.Authorize(r.Context(), action, resourceType, row); err != nil {
		rs.Logger.WarnContext(r.Context(), "row refused by policy",
			slog.String("resource", resourceType),
			slog.String("action", string(action)))
		httpx.JSONError(w, http.StatusNotFound, httpx.CodeNotFound, nil)
		return false
	}
	return true
}
