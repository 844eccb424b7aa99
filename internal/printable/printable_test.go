package printable

import (
	"strings"
	"testing"
	"time"

	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func company() *models.Entreprise {
	return &models.Entreprise{Name: "Durand BTP", City: "Lyon", PostalCode: "69003", SIRET: "12345678901234"}
}

func TestRenderBathroomQuote(t *testing.T) {
	q := &models.Quote{
		Number:     "DEV-2026-0001",
		Title:      "Salle de bain",
		ClientName: "Mme Martin",
		Status:     models.QuoteSent,
		TVARate:    decimal.NewFromInt(20),
		CreatedAt:  time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	lines := []ledger.Line{
		{Description: "Carrelage", Quantity: decimal.NewFromInt(10), Unit: "m2", UnitPriceHT: decimal.NewFromInt(8)},
		{Description: "Joints", Quantity: decimal.NewFromInt(1), UnitPriceHT: decimal.NewFromInt(20)},
		{Description: "", Quantity: decimal.NewFromInt(3), UnitPriceHT: decimal.NewFromInt(999)},
	}

	html, err := Render(FromQuote(q), lines, company(), "Paul")
	require.NoError(t, err)

	assert.Contains(t, html, "@page { size: A4;")
	assert.Contains(t, html, "window.print()")
	assert.Contains(t, html, "350")
	assert.Contains(t, html, "DEV-2026-0001")
	assert.Contains(t, html, "04/03/2026")
	assert.Contains(t, html, "Envoyé")
	assert.Contains(t, html, "100.00€")
	assert.Contains(t, html, "20.00€")
	assert.Contains(t, html, "120.00€")
	assert.Contains(t, html, "Établi par Paul")
	assert.NotContains(t, html, "999")
	assert.Equal(t, 1, strings.Count(html, "<td>Carrelage</td>"))
	assert.Equal(t, 1, strings.Count(html, "<td>Joints</td>"))
}

func TestRenderLumpSumInvoice(t *testing.T) {
	due := datatypes.Date(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	inv := &models.Invoice{
		Number:        "FAC-2026-0007",
		Title:         "Forfait toiture",
		ClientName:    "M. Petit",
		ClientAddress: "3 rue Haute",
		ClientCity:    "Annecy",
		AmountHT:      decimal.NewFromInt(1000),
		TVARate:       decimal.RequireFromString("5.5"),
		Status:        models.InvoicePaid,
		DueDate:       &due,
		PaymentMethod: "Virement",
	}

	html, err := Render(FromInvoice(inv), nil, company(), "")
	require.NoError(t, err)

	assert.Contains(t, html, "Facture")
	assert.Contains(t, html, "Payée")
	assert.Contains(t, html, "01/05/2026")
	assert.Contains(t, html, "1000.00€")
	assert.Contains(t, html, "55.00€")
	assert.Contains(t, html, "1055.00€")
	assert.Contains(t, html, "Virement")
	assert.NotContains(t, html, "<table class=\"lines\">")
	assert.NotContains(t, html, "Établi par")
}

func TestRenderEscapesContent(t *testing.T) {
	doc := Document{Kind: KindQuote, Title: "<script>alert(1)</script>", ClientName: "X", TVARate: ledger.DefaultTVARate}
	html, err := Render(doc, nil, company(), "")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>alert(1)</script>")
}

func TestRenderRequiresCompany(t *testing.T) {
	_, err := Render(Document{Kind: KindQuote}, nil, nil, "")
	assert.ErrorIs(t, err, ErrNoCompany)
}

func TestRenderMatchesLedger(t *testing.T) {
	lines := []ledger.Line{
		{Description: "A", Quantity: decimal.RequireFromString("2.5"), UnitPriceHT: decimal.RequireFromString("13.37")},
		{Description: "B", Quantity: decimal.NewFromInt(3), UnitPriceHT: decimal.RequireFromString("0.99")},
	}
	rate := decimal.NewFromInt(10)
	want := ledger.Compute(lines, rate)

	html, err := Render(Document{Kind: KindQuote, ClientName: "C", TVARate: rate}, lines, company(), "")
	require.NoError(t, err)
	assert.Contains(t, html, ledger.FormatEUR(want.HT))
	assert.Contains(t, html, ledger.FormatEUR(want.TVA))
	assert.Contains(t, html, ledger.FormatEUR(want.TTC))
}
