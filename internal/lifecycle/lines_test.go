package lifecycle

import (
	"context"
	"strconv"
	"testing"

	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineID(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func TestEditQuoteLines(t *testing.T) {
	svc, sc, _ := setup(t)
	ctx := context.Background()
	q, err := svc.CreateQuote(ctx, sc, bathroomQuote())
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)

	q, err = svc.EditQuoteLines(ctx, sc, q.ID, LineEdit{Op: LineAdd, Line: ledger.Line{
		Description: "Joints", Quantity: decimal.NewFromInt(1), Unit: "u", UnitPriceHT: decimal.NewFromInt(20),
	}})
	require.NoError(t, err)
	require.Len(t, q.Lines, 2)
	assert.True(t, q.AmountHT.Equal(decimal.NewFromInt(120)), "got %s", q.AmountHT)

	joints := lineID(q.Lines[1].ID)
	q, err = svc.EditQuoteLines(ctx, sc, q.ID, LineEdit{Op: LineMove, ID: joints, To: 0})
	require.NoError(t, err)
	assert.Equal(t, "Joints", q.Lines[0].Description)
	assert.Equal(t, "Carrelage", q.Lines[1].Description)

	carrelage := lineID(q.Lines[1].ID)
	q, err = svc.EditQuoteLines(ctx, sc, q.ID, LineEdit{Op: LineUpdate, ID: carrelage, Line: ledger.Line{
		Description: "Carrelage grès", Quantity: decimal.NewFromInt(3), Unit: "m²", UnitPriceHT: decimal.NewFromInt(50),
	}})
	require.NoError(t, err)
	assert.Equal(t, "Carrelage grès", q.Lines[1].Description)
	assert.True(t, q.AmountHT.Equal(decimal.NewFromInt(170)), "got %s", q.AmountHT)

	q, err = svc.EditQuoteLines(ctx, sc, q.ID, LineEdit{Op: LineRemove, ID: lineID(q.Lines[0].ID)})
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)
	assert.True(t, q.AmountHT.Equal(decimal.NewFromInt(150)), "got %s", q.AmountHT)

	stored, err := svc.GetQuote(ctx, sc, q.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, "Carrelage grès", stored.Lines[0].Description)
	assert.True(t, stored.Totals().TTC.Equal(decimal.NewFromInt(180)))
}

func TestEditQuoteLinesErrors(t *testing.T) {
	svc, sc, _ := setup(t)
	ctx := context.Background()
	q, err := svc.CreateQuote(ctx, sc, bathroomQuote())
	require.NoError(t, err)

	_, err = svc.EditQuoteLines(ctx, sc, q.ID, LineEdit{Op: LineRemove, ID: "999999"})
	assert.ErrorIs(t, err, ledger.ErrLineNotFound)

	_, err = svc.EditQuoteLines(ctx, sc, q.ID, LineEdit{Op: "swap", ID: "1"})
	var v validation.Violations
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "invalid_choice", v["op"])

	_, err = svc.EditQuoteLines(ctx, sc, q.ID, LineEdit{Op: LineAdd, Line: ledger.Line{Description: "Plinthes"}})
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "must_be_positive", v["lines.1.quantity"])
}

func TestEditInvoiceLines(t *testing.T) {
	svc, sc, _ := setup(t)
	ctx := context.Background()
	inv, err := svc.CreateInvoice(ctx, sc, InvoiceInput{
		DocumentInput: DocumentInput{
			Title:      "Pose fenêtres",
			ClientName: "Marie Martin",
			Lines: []ledger.Line{
				{Description: "Fenêtre PVC", Quantity: decimal.NewFromInt(2), UnitPriceHT: decimal.NewFromInt(400)},
			},
		},
		DueDate:    "2025-06-30",
		ClientCity: "Nantes",
	})
	require.NoError(t, err)

	inv, err = svc.EditInvoiceLines(ctx, sc, inv.ID, LineEdit{Op: LineAdd, Line: ledger.Line{
		Description: "Dépose", Quantity: decimal.NewFromInt(1), UnitPriceHT: decimal.NewFromInt(150),
	}})
	require.NoError(t, err)
	assert.True(t, inv.AmountHT.Equal(decimal.NewFromInt(950)))
	assert.Equal(t, "Nantes", inv.ClientCity)
	require.NotNil(t, inv.DueDate)

	_, err = svc.TransitionInvoice(ctx, sc, inv.ID, models.InvoiceSent)
	require.NoError(t, err)
	_, err = svc.EditInvoiceLines(ctx, sc, inv.ID, LineEdit{Op: LineRemove, ID: lineID(inv.Lines[0].ID)})
	assert.ErrorIs(t, err, ErrInvoiceLocked)
}

func TestHistory(t *testing.T) {
	svc, sc, _ := setup(t)
	ctx := context.Background()
	q, err := svc.CreateQuote(ctx, sc, bathroomQuote())
	require.NoError(t, err)
	_, err = svc.TransitionQuote(ctx, sc, q.ID, models.QuoteSent)
	require.NoError(t, err)

	entries, err := svc.History(ctx, sc, "quote", q.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "transition", entries[0].Action)
	assert.Equal(t, "create", entries[1].Action)

	other := sc
	other.TenantID = sc.TenantID + 1
	entries, err = svc.History(ctx, other, "quote", q.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
