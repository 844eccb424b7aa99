// Package ledger holds the quantity × unit price line collections attached to
// quotes and invoices, and the HT/TVA/TTC totals computed from them.
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultTVARate is the TVA percentage applied when a document has none.
var DefaultTVARate = decimal.NewFromInt(20)

var hundred = decimal.NewFromInt(100)

// Line is one priced row of a document.
type Line struct {
	// ID is a synthetic identifier used while editing; it is not persisted.
	ID          string          `json:"id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPriceHT decimal.Decimal `json:"unit_price_ht"`
}

// TotalHT returns quantity × unit price.
func (l Line) TotalHT() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPriceHT)
}

// IsBlank reports whether the row is a draft with no description.
// Blank rows are neither saved nor counted.
func (l Line) IsBlank() bool {
	return strings.TrimSpace(l.Description) == ""
}

// Persistable returns the lines that would be saved, in order.
func Persistable(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.IsBlank() {
			continue
		}
		l.Description = strings.TrimSpace(l.Description)
		out = append(out, l)
	}
	return out
}

// Totals is the HT/TVA/TTC breakdown of a document.
type Totals struct {
	HT      decimal.Decimal `json:"total_ht"`
	TVARate decimal.Decimal `json:"tva_rate"`
	TVA     decimal.Decimal `json:"tva_amount"`
	TTC     decimal.Decimal `json:"total_ttc"`
}

// SumHT adds up the line totals of non-blank rows.
func SumHT(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if l.IsBlank() {
			continue
		}
		sum = sum.Add(l.TotalHT())
	}
	return sum.Round(2)
}

// Compute returns the totals of lines for a TVA percentage.
func Compute(lines []Line, tvaPct decimal.Decimal) Totals {
	return FromHT(SumHT(lines), tvaPct)
}

// FromHT applies a TVA percentage to a pre-tax amount.
func FromHT(ht, tvaPct decimal.Decimal) Totals {
	ht = ht.Round(2)
	tva := ht.Mul(tvaPct).Div(hundred).Round(2)
	return Totals{
		HT:      ht,
		TVARate: tvaPct,
		TVA:     tva,
		TTC:     ht.Add(tva),
	}
}

// AmountHT resolves the pre-tax amount of a document: the line sum when
// persistable lines exist, otherwise the stored lump-sum amount. The second
// return value tells whether the document is itemized.
func AmountHT(lines []Line, stored decimal.Decimal) (decimal.Decimal, bool) {
	if len(Persistable(lines)) == 0 {
		return stored.Round(2), false
	}
	return SumHT(lines), true
}

// FormatEUR renders an amount the way documents print it, e.g. "100.00€".
func FormatEUR(d decimal.Decimal) string {
	return d.StringFixed(2) + "€"
}
