package tenancy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diewo77/go-chantiers/auth"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestDBResolver(t *testing.T) {
	db := setupDB(t)
	ent := models.Entreprise{Name: "Dupont BTP", Code: "AB12CD34", SubscriptionStatus: models.SubscriptionTrialing}
	require.NoError(t, db.Create(&ent).Error)
	owner := models.User{Email: "owner@dupont.fr", Password: "x", Role: models.RoleOwner, EntrepriseID: &ent.ID}
	loner := models.User{Email: "loner@dupont.fr", Password: "x"}
	require.NoError(t, db.Create(&owner).Error)
	require.NoError(t, db.Create(&loner).Error)

	r := NewDBResolver(db)
	s, err := r.Resolve(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, ent.ID, s.TenantID)
	assert.Equal(t, models.RoleOwner, s.Role)
	assert.Equal(t, "owner@dupont.fr", s.Email)

	s, err = r.Resolve(context.Background(), loner.ID)
	require.NoError(t, err)
	assert.False(t, s.HasTenant())

	_, err = r.Resolve(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrUnknownUser)
}

type resolverFunc func(ctx context.Context, uid uint) (Scope, error)

func (f resolverFunc) Resolve(ctx context.Context, uid uint) (Scope, error) { return f(ctx, uid) }

func TestMiddlewareResolvesOnce(t *testing.T) {
	calls := 0
	res := resolverFunc(func(_ context.Context, uid uint) (Scope, error) {
		calls++
		return Scope{UserID: uid, TenantID: 4}, nil
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var got Scope
	h := Middleware(res, logger)(RequireTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
		again, _ := FromContext(r.Context())
		assert.Equal(t, got, again)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), 11))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Scope{UserID: 11, TenantID: 4}, got)
}

func TestRequireTenant(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("no company", func(t *testing.T) {
		res := resolverFunc(func(_ context.Context, uid uint) (Scope, error) { return Scope{UserID: uid}, nil })
		req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
		req = req.WithContext(auth.WithUserID(req.Context(), 1))
		rec := httptest.NewRecorder()
		Middleware(res, logger)(RequireTenant(ok)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		res := resolverFunc(func(context.Context, uint) (Scope, error) { return Scope{}, ErrUnknownUser })
		req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
		req = req.WithContext(auth.WithUserID(req.Context(), 1))
		rec := httptest.NewRecorder()
		Middleware(res, logger)(RequireTenant(ok)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		res := resolverFunc(func(context.Context, uint) (Scope, error) { return Scope{}, errors.New("db down") })
		req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
		req = req.WithContext(auth.WithUserID(req.Context(), 1))
		rec := httptest.NewRecorder()
		Middleware(res, logger)(RequireTenant(ok)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db down")
	})
}

func TestOwnedScope(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.Client{EntrepriseID: 1, Name: "Jean Dupont"}).Error)
	require.NoError(t, db.Create(&models.Client{EntrepriseID: 2, Name: "Marie Curie"}).Error)

	var clients []models.Client
	require.NoError(t, db.Scopes(Owned(Scope{TenantID: 1})).Find(&clients).Error)
	require.Len(t, clients, 1)
	assert.Equal(t, "Jean Dupont", clients[0].Name)
}
