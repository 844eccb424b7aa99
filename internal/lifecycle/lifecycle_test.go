package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/diewo77/go-chantiers/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Service, tenancy.Scope, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	ent := models.Entreprise{Name: "Dupont BTP", Code: "DUPONT01", SubscriptionStatus: models.SubscriptionActive}
	require.NoError(t, db.Create(&ent).Error)
	svc := NewService(db)
	svc.now = func() time.Time { return time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC) }
	return svc, tenancy.Scope{UserID: 1, TenantID: ent.ID, Role: models.RoleOwner}, db
}

func bathroomQuote() QuoteInput {
	return QuoteInput{DocumentInput{
		Title:      "Rénovation salle de bain",
		ClientName: "Jean Dupont",
		Lines: []ledger.Line{
			{Description: "Carrelage", Quantity: decimal.NewFromInt(2), Unit: "m²", UnitPriceHT: decimal.NewFromInt(50)},
			{Description: ""},
		},
	}}
}

func TestQuoteTransitionsExhaustive(t *testing.T) {
	allowed := map[[2]models.QuoteStatus]bool{
		{models.QuoteDraft, models.QuoteSent}:     true,
		{models.QuoteSent, models.QuoteAccepted}:  true,
		{models.QuoteSent, models.QuoteRefused}:   true,
		{models.QuoteAccepted, models.QuoteDraft}: true,
		{models.QuoteRefused, models.QuoteDraft}:  true,
	}
	for _, from := range models.QuoteStatuses {
		for _, to := range models.QuoteStatuses {
			want := allowed[[2]models.QuoteStatus{from, to}]
			assert.Equal(t, want, CanTransitionQuote(from, to), "%s → %s", from, to)
		}
	}
}

func TestQuoteTransitionsPersisted(t *testing.T) {
	svc, sc, db := setup(t)
	ctx := context.Background()

	for _, from := range models.QuoteStatuses {
		for _, to := range models.QuoteStatuses {
			q, err := svc.CreateQuote(ctx, sc, bathroomQuote())
			require.NoError(t, err)
			require.NoError(t, db.Model(&models.Quote{}).Where("id = ?", q.ID).Update("status", from).Error)

			_, err = svc.TransitionQuote(ctx, sc, q.ID, to)
			var stored models.Quote
			require.NoError(t, db.First(&stored, q.ID).Error)
			if CanTransitionQuote(from, to) {
				assert.NoError(t, err, "%s → %s", from, to)
				assert.Equal(t, to, stored.Status)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s → %s", from, to)
				assert.Equal(t, from, stored.Status)
			}
		}
	}
}

func TestInvoiceTransitions(t *testing.T) {
	tests := []struct {
		from, to models.InvoiceStatus
		want     bool
	}{
		{models.InvoiceDraft, models.InvoiceSent, true},
		{models.InvoiceDraft, models.InvoicePaid, true},
		{models.InvoiceSent, models.InvoicePaid, true},
		{models.InvoiceSent, models.InvoiceDraft, false},
		{models.InvoicePaid, models.InvoiceDraft, false},
		{models.InvoicePaid, models.InvoiceSent, false},
		{models.InvoicePaid, models.InvoicePaid, false},
		{models.InvoiceDraft, models.InvoiceDraft, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransitionInvoice(tt.from, tt.to), "%s → %s", tt.from, tt.to)
	}
}

func TestParseQuoteStatus(t *testing.T) {
	tests := map[string]models.QuoteStatus{
		"brouillon": models.QuoteDraft,
		"envoye":    models.QuoteSent,
		"Envoyé":    models.QuoteSent,
		"accepte":   models.QuoteAccepted,
		"refuse":    models.QuoteRefused,
		" sent ":    models.QuoteSent,
	}
	for in, want := range tests {
		got, err := ParseQuoteStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseQuoteStatus("signé")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestCreateQuoteTotals(t *testing.T) {
	svc, sc, _ := setup(t)
	q, err := svc.CreateQuote(context.Background(), sc, bathroomQuote())
	require.NoError(t, err)

	assert.Equal(t, "DEV-2025-0001", q.Number)
	assert.Equal(t, models.QuoteDraft, q.Status)
	assert.Equal(t, "100.00€", ledger.FormatEUR(q.AmountHT))

	loaded, err := svc.GetQuote(context.Background(), sc, q.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 1, "blank rows are not saved")
	tot := loaded.Totals()
	assert.Equal(t, "100.00€", ledger.FormatEUR(tot.HT))
	assert.Equal(t, "120.00€", ledger.FormatEUR(tot.TTC))

	second, err := svc.CreateQuote(context.Background(), sc, bathroomQuote())
	require.NoError(t, err)
	assert.Equal(t, "DEV-2025-0002", second.Number)
}

func TestUpdateQuoteKeepsTVARate(t *testing.T) {
	svc, sc, _ := setup(t)
	ctx := context.Background()
	in := bathroomQuote()
	rate := decimal.RequireFromString("5.5")
	in.TVARate = &rate
	q, err := svc.CreateQuote(ctx, sc, in)
	require.NoError(t, err)

	in.TVARate = nil
	in.Lines = nil
	in.AmountHT = decimal.NewFromInt(300)
	_, err = svc.UpdateQuote(ctx, sc, q.ID, in)
	require.NoError(t, err)

	loaded, err := svc.GetQuote(ctx, sc, q.ID)
	require.NoError(t, err)
	assert.True(t, loaded.TVARate.Equal(rate), "rate %s", loaded.TVARate)
	assert.Empty(t, loaded.Lines)
	assert.True(t, loaded.AmountHT.Equal(decimal.NewFromInt(300)), "lump sum kept without lines")
}

func TestCreateQuoteValidation(t *testing.T) {
	svc, sc, db := setup(t)
	neg := decimal.NewFromInt(-5)
	in := QuoteInput{DocumentInput{TVARate: &neg}}
	_, err := svc.CreateQuote(context.Background(), sc, in)

	var v validation.Violations
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "required", v["title"])
	assert.Equal(t, "required", v["client_name"])
	assert.Equal(t, "out_of_range", v["tva_rate"])

	var count int64
	db.Model(&models.Quote{}).Count(&count)
	assert.Zero(t, count)
}

func TestTenantIsolation(t *testing.T) {
	svc, sc, db := setup(t)
	ctx := context.Background()
	q, err := svc.CreateQuote(ctx, sc, bathroomQuote())
	require.NoError(t, err)

	other := models.Entreprise{Name: "Autre", Code: "AUTRE001"}
	require.NoError(t, db.Create(&other).Error)
	intruder := tenancy.Scope{UserID: 99, TenantID: other.ID}

	_, err = svc.GetQuote(ctx, intruder, q.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = svc.TransitionQuote(ctx, intruder, q.ID, models.QuoteSent)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, svc.DeleteQuote(ctx, intruder, q.ID), gorm.ErrRecordNotFound)

	list, err := svc.ListQuotes(ctx, intruder, Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSentQuoteAcceptedBecomesConvertible(t *testing.T) {
	svc, sc, _ := setup(t)
	ctx := context.Background()
	q, err := svc.CreateQuote(ctx, sc, bathroomQuote())
	require.NoError(t, err)
	_, err = svc.TransitionQuote(ctx, sc, q.ID, models.QuoteSent)
	require.NoError(t, err)
	assert.False(t, CanConvert(q))

	to, err := ParseQuoteStatus("accepte")
	require.NoError(t, err)
	q, err = svc.TransitionQuote(ctx, sc, q.ID, to)
	require.NoError(t, err)
	assert.Equal(t, "Accepté", QuoteLabel(q.Status))
	assert.True(t, CanConvert(q))
}

func TestConvertQuoteIdempotent(t *testing.T) {
	svc, sc, db := setup(t)
	ctx := context.Background()
	q, err := svc.CreateQuote(ctx, sc, bathroomQuote())
	require.NoError(t, err)

	_, err = svc.ConvertQuote(ctx, sc, q.ID)
	assert.ErrorIs(t, err, ErrQuoteNotAccepted, "draft quotes cannot be invoiced")

	_, err = svc.TransitionQuote(ctx, sc, q.ID, models.QuoteSent)
	require.NoError(t, err)
	_, err = svc.TransitionQuote(ctx, sc, q.ID, models.QuoteAccepted)
	require.NoError(t, err)

	first, err := svc.ConvertQuote(ctx, sc, q.ID)
	require.NoError(t, err)
	assert.False(t, first.AlreadyInvoiced)
	assert.Equal(t, "FAC-2025-0001", first.Invoice.Number)
	assert.Equal(t, models.InvoiceDraft, first.Invoice.Status)
	assert.Equal(t, "Rénovation salle de bain", first.Invoice.Title)
	assert.Equal(t, "Jean Dupont", first.Invoice.ClientName)
	assert.True(t, first.Invoice.TVARate.Equal(decimal.NewFromInt(20)))

	second, err := svc.ConvertQuote(ctx, sc, q.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyInvoiced)
	assert.Equal(t, first.InvoiceID, second.InvoiceID)

	var count int64
	db.Model(&models.Invoice{}).Where("quote_id = ?", q.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	inv, err := svc.GetInvoice(ctx, sc, first.InvoiceID)
	require.NoError(t, err)
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, "Carrelage", inv.Lines[0].Description)
	assert.Equal(t, "120.00€", ledger.FormatEUR(inv.Totals().TTC))

	stored, err := svc.GetQuote(ctx, sc, q.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.InvoiceID)
	assert.Equal(t, first.InvoiceID, *stored.InvoiceID)
	assert.False(t, CanConvert(stored))
}

func TestDeleteInvoiceFreesQuote(t *testing.T) {
	svc, sc, _ := setup(t)
	ctx := context.Background()
	q, err := svc.CreateQuote(ctx, sc, bathroomQuote())
	require.NoError(t, err)
	_, err = svc.TransitionQuote(ctx, sc, q.ID, models.QuoteSent)
	require.NoError(t, err)
	_, err = svc.TransitionQuote(ctx, sc, q.ID, models.QuoteAccepted)
	require.NoError(t, err)
	conv, err := svc.ConvertQuote(ctx, sc, q.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteInvoice(ctx, sc, conv.InvoiceID))

	stored, err := svc.GetQuote(ctx, sc, q.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.InvoiceID)

	again, err := svc.ConvertQuote(ctx, sc, q.ID)
	require.NoError(t, err)
	assert.False(t, again.AlreadyInvoiced)
}

func TestInvoiceMarkPaid(t *testing.T) {
	svc, sc, _ := setup(t)
	ctx := context.Background()
	inv, err := svc.CreateInvoice(ctx, sc, InvoiceInput{
		DocumentInput: DocumentInput{Title: "Pose fenêtres", ClientName: "Marie Martin", AmountHT: decimal.NewFromInt(1000)},
		DueDate:       "2025-06-30",
		ClientCity:    "Nantes",
	})
	require.NoError(t, err)
	require.NotNil(t, inv.DueDate)

	inv, err = svc.TransitionInvoice(ctx, sc, inv.ID, models.InvoiceSent)
	require.NoError(t, err)

	_, err = svc.UpdateInvoice(ctx, sc, inv.ID, InvoiceInput{DocumentInput: DocumentInput{Title: "x", ClientName: "y"}})
	assert.ErrorIs(t, err, ErrInvoiceLocked)

	inv, err = svc.TransitionInvoice(ctx, sc, inv.ID, models.InvoicePaid)
	require.NoError(t, err)
	require.NotNil(t, inv.PaidAt)

	stored, err := svc.GetInvoice(ctx, sc, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, stored.Status)
	require.NotNil(t, stored.PaidAt)

	_, err = svc.TransitionInvoice(ctx, sc, inv.ID, models.InvoiceDraft)
	assert.ErrorIs(t, err, ErrInvalidTransition, "paid is irreversible")
}

func TestListQuotesFilter(t *testing.T) {
	svc, sc, _ := setup(t)
	ctx := context.Background()
	_, err := svc.CreateQuote(ctx, sc, bathroomQuote())
	require.NoError(t, err)
	kitchen := bathroomQuote()
	kitchen.Title = "Cuisine équipée"
	kitchen.ClientName = "Paul Durand"
	_, err = svc.CreateQuote(ctx, sc, kitchen)
	require.NoError(t, err)

	list, err := svc.ListQuotes(ctx, sc, Filter{Query: "durand"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Cuisine équipée", list[0].Title)

	list, err = svc.ListQuotes(ctx, sc, Filter{Status: string(models.QuoteDraft)})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
