package models

import (
	"strconv"

	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/shopspring/decimal"
)

// DocumentLine holds the priced columns shared by quote and invoice lines.
type DocumentLine struct {
	Position    int             `gorm:"not null;default:0" json:"position"`
	Description string          `gorm:"size:500;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	Unit        string          `gorm:"size:20" json:"unit"`
	UnitPriceHT decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price_ht"`
}

// TotalHT returns quantity × unit price.
func (l DocumentLine) TotalHT() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPriceHT)
}

// Ledger converts the row to a ledger line. id is the row identifier, used
// as the synthetic line id.
func (l DocumentLine) Ledger(id uint) ledger.Line {
	return ledger.Line{
		ID:          strconv.FormatUint(uint64(id), 10),
		Description: l.Description,
		Quantity:    l.Quantity,
		Unit:        l.Unit,
		UnitPriceHT: l.UnitPriceHT,
	}
}

// DocumentLines turns edited ledger lines into rows ready to persist.
// Blank rows are dropped and positions follow the remaining order.
func DocumentLines(lines []ledger.Line) []DocumentLine {
	kept := ledger.Persistable(lines)
	out := make([]DocumentLine, len(kept))
	for i, l := range kept {
		out[i] = DocumentLine{
			Position:    i,
			Description: l.Description,
			Quantity:    l.Quantity,
			Unit:        l.Unit,
			UnitPriceHT: l.UnitPriceHT,
		}
	}
	return out
}
