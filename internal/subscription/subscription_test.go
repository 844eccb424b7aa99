package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diewo77/go-chantiers/internal/config"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func failing() Checker {
	return CheckerFunc(func(context.Context, uint) (Result, error) {
		return Result{}, errors.New("procedure is_company_active failed")
	})
}

func fixed(r Result) Checker {
	return CheckerFunc(func(context.Context, uint) (Result, error) { return r, nil })
}

func TestGateUnknownWhenCheckerAlwaysFails(t *testing.T) {
	g := NewGate(failing(), config.SubscriptionConfig{}, quiet)
	res := g.IsActive(context.Background(), Subject{TenantID: 1})

	assert.Equal(t, StateUnknown, res.State)
	assert.Nil(t, res.Bool())
	assert.True(t, res.Allows(), "unknown must fail open")

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"active":null,"state":"unknown","reason":"check_failed"}`, string(body))
}

func TestGateStates(t *testing.T) {
	ops := []string{"ops@chantiers.app"}
	tests := []struct {
		name    string
		checker Checker
		cfg     config.SubscriptionConfig
		subject Subject
		want    State
	}{
		{"active", fixed(Active("subscribed")), config.SubscriptionConfig{}, Subject{TenantID: 1}, StateActive},
		{"inactive", fixed(Inactive("expired")), config.SubscriptionConfig{}, Subject{TenantID: 1}, StateInactive},
		{"no tenant", fixed(Active("x")), config.SubscriptionConfig{}, Subject{}, StateUnknown},
		{"malformed", fixed(Result{State: "maybe"}), config.SubscriptionConfig{}, Subject{TenantID: 1}, StateUnknown},
		{"bypass", fixed(Inactive("expired")), config.SubscriptionConfig{Bypass: true}, Subject{TenantID: 1}, StateActive},
		{"operator bypass", fixed(Inactive("expired")), config.SubscriptionConfig{AdminBypass: true, AdminEmails: ops}, Subject{TenantID: 1, Email: "OPS@chantiers.app"}, StateActive},
		{"operator bypass off", fixed(Inactive("expired")), config.SubscriptionConfig{AdminEmails: ops}, Subject{TenantID: 1, Email: "ops@chantiers.app"}, StateInactive},
		{"not an operator", fixed(Inactive("expired")), config.SubscriptionConfig{AdminBypass: true, AdminEmails: ops}, Subject{TenantID: 1, Email: "jean@dupont.fr"}, StateInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var observed []State
			g := NewGate(tt.checker, tt.cfg, quiet, WithObserver(func(s State) { observed = append(observed, s) }))
			got := g.IsActive(context.Background(), tt.subject)
			assert.Equal(t, tt.want, got.State)
			assert.Equal(t, []State{tt.want}, observed)
		})
	}
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	trial := func(status models.SubscriptionStatus, ends time.Time) *models.Entreprise {
		return &models.Entreprise{SubscriptionStatus: status, TrialStartsAt: ends.AddDate(0, 0, -14), TrialEndsAt: ends}
	}
	tests := []struct {
		name string
		e    *models.Entreprise
		want State
	}{
		{"paid", trial(models.SubscriptionActive, now.AddDate(0, -1, 0)), StateActive},
		{"trial running", trial(models.SubscriptionTrialing, now.Add(time.Hour)), StateActive},
		{"trial over", trial(models.SubscriptionTrialing, now.Add(-time.Hour)), StateInactive},
		{"expired", trial(models.SubscriptionExpired, now.Add(time.Hour)), StateInactive},
		{"unknown", trial(models.SubscriptionUnknown, now.Add(time.Hour)), StateUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.e, now).State)
		})
	}
}

func TestDBChecker(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Entreprise{}))
	now := time.Now()
	e := models.Entreprise{Name: "Dupont BTP", Code: "AB12CD34", SubscriptionStatus: models.SubscriptionTrialing, TrialStartsAt: now.Add(-time.Hour), TrialEndsAt: now.AddDate(0, 0, 13)}
	require.NoError(t, db.Create(&e).Error)

	c := NewDBChecker(db)
	res, err := c.IsCompanyActive(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, StateActive, res.State)

	_, err = c.IsCompanyActive(context.Background(), e.ID+100)
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestCachedChecker(t *testing.T) {
	calls := 0
	state := Active("subscribed")
	inner := CheckerFunc(func(context.Context, uint) (Result, error) {
		calls++
		return state, nil
	})
	c := NewCachedChecker(inner, time.Minute)

	for i := 0; i < 3; i++ {
		res, err := c.IsCompanyActive(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, StateActive, res.State)
	}
	assert.Equal(t, 1, calls)

	state = Inactive("expired")
	c.Invalidate(1)
	res, _ := c.IsCompanyActive(context.Background(), 1)
	assert.Equal(t, StateInactive, res.State)
	assert.Equal(t, 2, calls)

	state = Unknown("status_unknown")
	c.Invalidate(1)
	c.IsCompanyActive(context.Background(), 1)
	c.IsCompanyActive(context.Background(), 1)
	assert.Equal(t, 4, calls, "unknown results are not cached")
}

func TestResultJSON(t *testing.T) {
	tests := []struct {
		in   string
		want State
	}{
		{`{"active":true}`, StateActive},
		{`{"active":false}`, StateInactive},
		{`{"active":null}`, StateUnknown},
		{`{"state":"inactive","active":false,"reason":"expired"}`, StateInactive},
	}
	for _, tt := range tests {
		var r Result
		require.NoError(t, json.Unmarshal([]byte(tt.in), &r), tt.in)
		assert.Equal(t, tt.want, r.State, tt.in)
	}
	var r Result
	assert.Error(t, json.Unmarshal([]byte(`{"state":"maybe"}`), &r))
}

func TestRequireActive(t *testing.T) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusCreated)
	})
	request := func(path string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		return req.WithContext(tenancy.WithScope(req.Context(), tenancy.Scope{UserID: 1, TenantID: 2}))
	}

	t.Run("inactive api", func(t *testing.T) {
		reached = false
		g := NewGate(fixed(Inactive("expired")), config.SubscriptionConfig{}, quiet)
		rec := httptest.NewRecorder()
		g.RequireActive(next).ServeHTTP(rec, request("/api/quotes"))
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error":"subscription_inactive"`)
		assert.False(t, reached)
	})

	t.Run("inactive page", func(t *testing.T) {
		g := NewGate(fixed(Inactive("expired")), config.SubscriptionConfig{}, quiet)
		rec := httptest.NewRecorder()
		g.RequireActive(next).ServeHTTP(rec, request("/quotes/3/print"))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, ExpiredPath, rec.Header().Get("Location"))
	})

	t.Run("unknown fails open", func(t *testing.T) {
		reached = false
		g := NewGate(failing(), config.SubscriptionConfig{}, quiet)
		rec := httptest.NewRecorder()
		g.RequireActive(next).ServeHTTP(rec, request("/api/quotes"))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "unknown", rec.Header().Get(Header))
		assert.True(t, reached)
	})

	t.Run("active", func(t *testing.T) {
		g := NewGate(fixed(Active("trial")), config.SubscriptionConfig{}, quiet)
		rec := httptest.NewRecorder()
		g.RequireActive(next).ServeHTTP(rec, request("/api/quotes"))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Empty(t, rec.Header().Get(Header))
	})
}
