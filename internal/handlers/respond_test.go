package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("op: %w", err) }
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"violations", validation.Violations{"title": "required"}, http.StatusUnprocessableEntity, httpx.CodeValidation},
		{"unknown status", wrap(lifecycle.ErrUnknownStatus), http.StatusUnprocessableEntity, httpx.CodeValidation},
		{"unknown code", wrap(services.ErrUnknownCode), http.StatusUnprocessableEntity, httpx.CodeValidation},
		{"not found", wrap(gorm.ErrRecordNotFound), http.StatusNotFound, httpx.CodeNotFound},
		{"object not found", storage.ErrNotFound, http.StatusNotFound, httpx.CodeNotFound},
		{"line not found", wrap(ledger.ErrLineNotFound), http.StatusNotFound, httpx.CodeNotFound},
		{"bad json", wrap(httpx.ErrBadJSON), http.StatusBadRequest, httpx.CodeBadRequest},
		{"bad credentials", services.ErrBadCredentials, http.StatusUnauthorized, CodeBadCredentials},
		{"no tenant", tenancy.ErrNoTenant, http.StatusForbidden, CodeNoCompany},
		{"forbidden", access.ErrForbidden, http.StatusForbidden, httpx.CodeForbidden},
		{"expired link", storage.ErrExpired, http.StatusForbidden, CodeBadLink},
		{"transition", wrap(lifecycle.ErrInvalidTransition), http.StatusConflict, CodeInvalidTransition},
		{"not accepted", wrap(lifecycle.ErrQuoteNotAccepted), http.StatusConflict, CodeQuoteNotAccepted},
		{"locked", lifecycle.ErrInvoiceLocked, http.StatusConflict, CodeInvoiceLocked},
		{"client in use", services.ErrClientInUse, http.StatusConflict, CodeClientInUse},
		{"duplicate", wrap(gorm.ErrDuplicatedKey), http.StatusConflict, httpx.CodeConflict},
		{"too large", services.ErrTooLarge, http.StatusRequestEntityTooLarge, CodeTooLarge},
		{"no bucket", services.ErrNoBucket, http.StatusServiceUnavailable, CodeUnavailable},
		{"no stripe", billing.ErrNotConfigured, http.StatusServiceUnavailable, CodeUnavailable},
		{"timeout", wrap(context.DeadlineExceeded), http.StatusGatewayTimeout, CodeTimeout},
		{"other", errors.New("pq: connection refused"), http.StatusInternalServerError, httpx.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := classify(tt.err)
			assert.Equal(t, tt.status, m.status)
			assert.Equal(t, tt.code, m.code)
		})
	}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) httpx.ErrorResponse {
	t.Helper()
	var body httpx.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestErrorHidesInternalMessage(t *testing.T) {
	var logs bytes.Buffer
	rs := NewResponder(slog.New(slog.NewTextHandler(&logs, nil)), false, nil)
	r := httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
	rr := httptest.NewRecorder()

	rs.Error(rr, r, "list quotes", errors.New("pq: relation quotes does not exist"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := errorBody(t, rr)
	assert.Equal(t, httpx.CodeInternal, body.Error)
	assert.Nil(t, body.Details)
	assert.Contains(t, logs.String(), "relation quotes does not exist")
	assert.Contains(t, logs.String(), "op=\"list quotes\"")
}

func TestErrorShowsInternalMessageInDev(t *testing.T) {
	rs := NewResponder(quiet(), true, nil)
	r := httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
	rr := httptest.NewRecorder()

	rs.Error(rr, r, "list quotes", errors.New("boom"))

	assert.Equal(t, "boom", errorBody(t, rr).Details)
}

func TestErrorValidationDetails(t *testing.T) {
	rs := NewResponder(quiet(), false, nil)
	r := httptest.NewRequest(http.MethodPost, "/api/quotes", nil)
	rr := httptest.NewRecorder()

	rs.Error(rr, r, "create quote", validation.Violations{"title": "required"})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, map[string]any{"title": "required"}, errorBody(t, rr).Details)
}

func TestErrorRedirectsBrowsersOn401(t *testing.T) {
	rs := NewResponder(quiet(), false, nil)
	r := httptest.NewRequest(http.MethodGet, "/quotes/1/print", nil)
	rr := httptest.NewRecorder()

	rs.Error(rr, r, "print", tenancy.ErrUnknownUser)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
}

func TestScopeWithoutTenant(t *testing.T) {
	rs := NewResponder(quiet(), false, nil)
	r := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	r = r.WithContext(tenancy.WithScope(r.Context(), tenancy.Scope{UserID: 3}))
	rr := httptest.NewRecorder()

	_, ok := rs.Scope(rr, r)

	assert.False(t, ok)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, CodeNoCompany, errorBody(t, rr).Error)
}

type refuseAll struct{}

func (refuseAll) Authorize(context.Context, access.Action, string, any) error {
	return access.ErrForbidden
}

func TestAllowedAnswers404OnRefusal(t *testing.T) {
	rs := NewResponder(quiet(), false, refuseAll{})
	r := httptest.NewRequest(http.MethodGet, "/api/clients/4", nil)
	r = r.WithContext(auth.WithUserID(r.Context(), 1))
	rr := httptest.NewRecorder()

	ok := rs.Allowed(rr, r, access.ActionView, access.ResourceClient, struct{}{})

	assert.False(t, ok)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestIDRejectsGarbage(t *testing.T) {
	rs := NewResponder(quiet(), false, nil)
	r := httptest.NewRequest(http.MethodGet, "/api/clients/abc", nil)
	r.SetPathValue("id", "abc")
	rr := httptest.NewRecorder()

	_, ok := rs.ID(rr, r, "id")

	assert.False(t, ok)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
