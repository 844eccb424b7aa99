package models

import (
	"time"

	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/shopspring/decimal"
)

// QuoteStatus represents the status of a quote (devis).
type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRefused  QuoteStatus = "refused"
)

// QuoteStatuses lists every quote state.
var QuoteStatuses = []QuoteStatus{QuoteDraft, QuoteSent, QuoteAccepted, QuoteRefused}

// Quote is a priced proposal. Client fields are copied strings, not a
// reference to a Client row.
type Quote struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	EntrepriseID uint      `gorm:"index;not null;uniqueIndex:idx_quote_tenant_number,priority:1" json:"entreprise_id"`
	CreatedBy    uint      `json:"created_by"`

	Number        string `gorm:"size:20;uniqueIndex:idx_quote_tenant_number,priority:2" json:"number"`
	Title         string `gorm:"size:255;not null" json:"title"`
	ClientName    string `gorm:"size:255;not null" json:"client_name"`
	ClientContact string `gorm:"size:255" json:"client_contact,omitempty"`
	Description   string `gorm:"type:text" json:"description,omitempty"`

	AmountHT decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_ht"`
	TVARate  decimal.Decimal `gorm:"type:decimal(5,2);not null;default:20" json:"tva_rate"`

	Status QuoteStatus `gorm:"size:20;not null;default:'draft'" json:"status"`
	// InvoiceID remembers the invoice produced from this quote.
	InvoiceID *uint `gorm:"index" json:"invoice_id,omitempty"`

	Lines []QuoteLine `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

// GetTenantID implements the tenant ownership contract.
func (q *Quote) GetTenantID() uint {
	return q.EntrepriseID
}

// LedgerLines returns the quote lines in position order as ledger lines.
func (q *Quote) LedgerLines() []ledger.Line {
	out := make([]ledger.Line, len(q.Lines))
	for i, l := range q.Lines {
		out[i] = l.Ledger(l.ID)
	}
	return out
}

// Totals resolves HT/TVA/TTC from lines, or from the stored amount for a
// lump-sum quote.
func (q *Quote) Totals() ledger.Totals {
	ht, _ := ledger.AmountHT(q.LedgerLines(), q.AmountHT)
	return ledger.FromHT(ht, q.TVARate)
}

// Invoiced reports whether the quote was already converted.
func (q *Quote) Invoiced() bool {
	return q.InvoiceID != nil && *q.InvoiceID != 0
}

// QuoteLine is one priced row of a quote.
type QuoteLine struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	QuoteID      uint `gorm:"index;not null" json:"quote_id"`
	EntrepriseID uint `gorm:"index;not null" json:"entreprise_id"`
	DocumentLine `gorm:"embedded"`
}
