package agenda

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/diewo77/go-chantiers/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func event(id uint, title string, start time.Time) models.AgendaEvent {
	return models.AgendaEvent{ID: id, Title: title, StartsAt: start, EndsAt: start.Add(time.Hour)}
}

func TestBucket(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, paris)

	events := []models.AgendaEvent{
		event(1, "tomorrow", now.Add(24*time.Hour)),
		event(2, "this morning", time.Date(2025, 6, 10, 8, 0, 0, 0, paris)),
		event(3, "tonight", time.Date(2025, 6, 10, 20, 0, 0, 0, paris)),
		event(4, "yesterday", now.Add(-24*time.Hour)),
		// 23:30 UTC on the 9th is 01:30 on the 10th in Paris.
		event(5, "late utc", time.Date(2025, 6, 9, 23, 30, 0, 0, time.UTC)),
		event(6, "next week", now.Add(7*24*time.Hour)),
	}

	b := Bucket(events, now)

	titles := func(list []models.AgendaEvent) []string {
		out := make([]string, 0, len(list))
		for _, e := range list {
			out = append(out, e.Title)
		}
		return out
	}
	assert.Equal(t, []string{"late utc", "this morning", "tonight"}, titles(b.Today))
	assert.Equal(t, []string{"tomorrow", "next week"}, titles(b.Upcoming))
}

func TestBucketDependsOnViewerZone(t *testing.T) {
	start := time.Date(2025, 6, 9, 23, 30, 0, 0, time.UTC)
	events := []models.AgendaEvent{event(1, "x", start)}

	utcNow := time.Date(2025, 6, 10, 0, 15, 0, 0, time.UTC)
	assert.Empty(t, Bucket(events, utcNow).Today)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Len(t, Bucket(events, utcNow.In(ny)).Today, 1)
}

func TestBucketEmpty(t *testing.T) {
	b := Bucket(nil, time.Now())
	assert.NotNil(t, b.Today)
	assert.NotNil(t, b.Upcoming)
}

func TestLocation(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/agenda?tz=Europe/Paris", nil)
	assert.Equal(t, "Europe/Paris", Location(r, time.UTC).String())

	r = httptest.NewRequest("GET", "/api/agenda", nil)
	r.Header.Set(TimezoneHeader, "Asia/Tokyo")
	assert.Equal(t, "Asia/Tokyo", Location(r, time.UTC).String())

	r = httptest.NewRequest("GET", "/api/agenda?tz=Mars/Olympus", nil)
	assert.Equal(t, time.UTC, Location(r, time.UTC))
}

func TestEventInputValidate(t *testing.T) {
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		in    EventInput
		field string
	}{
		{"ok", EventInput{Title: "Visite", StartsAt: start, EndsAt: start.Add(time.Hour)}, ""},
		{"missing title", EventInput{StartsAt: start, EndsAt: start.Add(time.Hour)}, "title"},
		{"same instant", EventInput{Title: "x", StartsAt: start, EndsAt: start}, "ends_at"},
		{"ends before", EventInput{Title: "x", StartsAt: start, EndsAt: start.Add(-time.Minute)}, "ends_at"},
		{"no start", EventInput{Title: "x", EndsAt: start}, "starts_at"},
		{"bad status", EventInput{Title: "x", StartsAt: start, EndsAt: start.Add(time.Hour), Status: "maybe"}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.in.Validate()
			if tt.field == "" {
				assert.True(t, v.Empty(), "%v", v)
				return
			}
			assert.Contains(t, v, tt.field)
		})
	}
}

func setup(t *testing.T) (*Service, *gorm.DB, models.Entreprise) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	ent := models.Entreprise{Name: "Martin Couverture", Code: "MARTIN01"}
	require.NoError(t, db.Create(&ent).Error)
	return NewService(db), db, ent
}

func TestServicePerUserListing(t *testing.T) {
	svc, _, ent := setup(t)
	ctx := context.Background()
	alice := tenancy.Scope{UserID: 1, TenantID: ent.ID}
	bob := tenancy.Scope{UserID: 2, TenantID: ent.ID}
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	e, err := svc.Create(ctx, alice, EventInput{Title: "Métré", StartsAt: start, EndsAt: start.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, models.EventPlanned, e.Status)
	_, err = svc.Create(ctx, bob, EventInput{Title: "Livraison", StartsAt: start, EndsAt: start.Add(time.Hour)})
	require.NoError(t, err)

	list, err := svc.List(ctx, alice, time.Time{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Métré", list[0].Title)

	_, err = svc.Get(ctx, bob, e.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.True(t, errors.Is(svc.Delete(ctx, bob, e.ID), gorm.ErrRecordNotFound))
	require.NoError(t, svc.Delete(ctx, alice, e.ID))
}

func TestServiceRejectsForeignChantier(t *testing.T) {
	svc, db, ent := setup(t)
	other := models.Entreprise{Name: "Autre", Code: "AUTRE001"}
	require.NoError(t, db.Create(&other).Error)
	client := models.Client{EntrepriseID: other.ID, Name: "C"}
	require.NoError(t, db.Create(&client).Error)
	ch := models.Chantier{EntrepriseID: other.ID, ClientID: client.ID, Title: "Toiture", Status: models.ChantierToSchedule}
	require.NoError(t, db.Create(&ch).Error)

	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), tenancy.Scope{UserID: 1, TenantID: ent.ID}, EventInput{
		Title: "x", StartsAt: start, EndsAt: start.Add(time.Hour), ChantierID: &ch.ID,
	})
	var v validation.Violations
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "not_found", v["chantier_id"])
}

func TestServiceUpdateValidates(t *testing.T) {
	svc, _, ent := setup(t)
	sc := tenancy.Scope{UserID: 1, TenantID: ent.ID}
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	e, err := svc.Create(context.Background(), sc, EventInput{Title: "x", StartsAt: start, EndsAt: start.Add(time.Hour)})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), sc, e.ID, EventInput{Title: "x", StartsAt: start, EndsAt: start})
	var v validation.Violations
	require.True(t, errors.As(err, &v))

	up, err := svc.Update(context.Background(), sc, e.ID, EventInput{Title: "y", StartsAt: start, EndsAt: start.Add(2 * time.Hour), Status: models.EventConfirmed})
	require.NoError(t, err)
	assert.Equal(t, models.EventConfirmed, up.Status)
}

func TestServiceListFromAcrossZones(t *testing.T) {
	svc, _, ent := setup(t)
	ctx := context.Background()
	sc := tenancy.Scope{UserID: 1, TenantID: ent.ID}
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	// 08:00 Paris is 06:00 UTC in summer.
	start := time.Date(2025, 6, 10, 8, 0, 0, 0, paris)
	_, err = svc.Create(ctx, sc, EventInput{Title: "Matin", StartsAt: start, EndsAt: start.Add(time.Hour)})
	require.NoError(t, err)

	list, err := svc.List(ctx, sc, time.Date(2025, 6, 10, 6, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].StartsAt.Equal(start))

	list, err = svc.List(ctx, sc, time.Date(2025, 6, 10, 9, 30, 0, 0, paris))
	require.NoError(t, err)
	assert.Empty(t, list)
}
