package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeBathroomRenovation(t *testing.T) {
	lines := []Line{{Description: "Rénovation salle de bain", Quantity: d("2"), Unit: "m²", UnitPriceHT: d("50")}}

	tot := Compute(lines, DefaultTVARate)
	assert.Equal(t, "100.00€", FormatEUR(tot.HT))
	assert.Equal(t, "20.00€", FormatEUR(tot.TVA))
	assert.Equal(t, "120.00€", FormatEUR(tot.TTC))
}

func TestComputeIgnoresBlankRows(t *testing.T) {
	lines := []Line{
		{Description: "Peinture", Quantity: d("3"), UnitPriceHT: d("12.5")},
		{Description: "   ", Quantity: d("100"), UnitPriceHT: d("100")},
		{Description: "", Quantity: d("1"), UnitPriceHT: d("9")},
		{Description: "Enduit", Quantity: d("1.5"), UnitPriceHT: d("10")},
	}
	tot := Compute(lines, d("0"))
	assert.True(t, tot.HT.Equal(d("52.5")), "got %s", tot.HT)
	assert.True(t, tot.TTC.Equal(tot.HT))

	kept := Persistable(lines)
	require.Len(t, kept, 2)
	assert.Equal(t, "Peinture", kept[0].Description)
	assert.Equal(t, "Enduit", kept[1].Description)
}

func TestComputeTTCProperty(t *testing.T) {
	lines := []Line{
		{Description: "a", Quantity: d("4"), UnitPriceHT: d("25")},
		{Description: "b", Quantity: d("2"), UnitPriceHT: d("150")},
	}
	for _, pct := range []string{"0", "5.5", "10", "20"} {
		tot := Compute(lines, d(pct))
		want := tot.HT.Mul(decimal.NewFromInt(1).Add(d(pct).Div(decimal.NewFromInt(100)))).Round(2)
		assert.True(t, tot.TTC.Equal(want), "pct %s: ttc %s want %s", pct, tot.TTC, want)
	}
}

func TestAmountHT(t *testing.T) {
	stored := d("750")

	amount, itemized := AmountHT(nil, stored)
	assert.False(t, itemized)
	assert.True(t, amount.Equal(stored))

	amount, itemized = AmountHT([]Line{{Description: ""}}, stored)
	assert.False(t, itemized, "blank rows alone keep the lump sum")
	assert.True(t, amount.Equal(stored))

	amount, itemized = AmountHT([]Line{{Description: "Pose", Quantity: d("1"), UnitPriceHT: d("80")}}, stored)
	assert.True(t, itemized)
	assert.True(t, amount.Equal(d("80")))
}

func TestSheetEditing(t *testing.T) {
	s := NewSheet(
		Line{Description: "first", Quantity: d("1"), UnitPriceHT: d("10")},
		Line{Description: "second", Quantity: d("1"), UnitPriceHT: d("20")},
	)
	require.Equal(t, 2, s.Len())
	third := s.Add(Line{})
	assert.NotEmpty(t, third)
	assert.True(t, s.Lines()[2].Quantity.Equal(d("1")), "new blank row starts at quantity 1")

	require.NoError(t, s.Update(third, func(l *Line) {
		l.Description = "third"
		l.UnitPriceHT = d("30")
	}))
	assert.True(t, s.Totals(d("0")).HT.Equal(d("60")))

	require.NoError(t, s.Move(third, 0))
	assert.Equal(t, "third", s.Lines()[0].Description)
	assert.Equal(t, third, s.Lines()[0].ID)

	first := s.Lines()[1].ID
	require.NoError(t, s.Remove(first))
	assert.Equal(t, []string{"third", "second"}, descriptions(s.Lines()))

	require.NoError(t, s.RemoveAt(1))
	assert.Equal(t, []string{"third"}, descriptions(s.Lines()))

	assert.ErrorIs(t, s.Remove("missing"), ErrLineNotFound)
	assert.ErrorIs(t, s.RemoveAt(5), ErrLineNotFound)
	assert.ErrorIs(t, s.Update("missing", func(*Line) {}), ErrLineNotFound)
}

func TestSheetMoveClamps(t *testing.T) {
	s := NewSheet(Line{Description: "a"}, Line{Description: "b"}, Line{Description: "c"})
	id := s.Lines()[0].ID
	require.NoError(t, s.Move(id, 99))
	assert.Equal(t, []string{"b", "c", "a"}, descriptions(s.Lines()))
	require.NoError(t, s.Move(id, -3))
	assert.Equal(t, []string{"a", "b", "c"}, descriptions(s.Lines()))
}

func TestFormatEUR(t *testing.T) {
	assert.Equal(t, "0.00€", FormatEUR(decimal.Zero))
	assert.Equal(t, "1234.50€", FormatEUR(d("1234.5")))
	assert.Equal(t, "0.01€", FormatEUR(d("0.005")))
}

func descriptions(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Description
	}
	return out
}
