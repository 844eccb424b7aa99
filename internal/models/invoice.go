package models

import (
	"time"

	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus represents the status of an invoice (facture).
type InvoiceStatus string

const (
	InvoiceDraft InvoiceStatus = "draft"
	InvoiceSent  InvoiceStatus = "sent"
	InvoicePaid  InvoiceStatus = "paid"
)

// InvoiceStatuses lists every invoice state.
var InvoiceStatuses = []InvoiceStatus{InvoiceDraft, InvoiceSent, InvoicePaid}

// InvoiceQuoteIndex is the unique index guaranteeing at most one invoice per
// quote inside a tenant.
const InvoiceQuoteIndex = "idx_invoice_tenant_quote"

// Invoice is a billing document, optionally produced from a quote.
type Invoice struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	EntrepriseID uint      `gorm:"index;not null;uniqueIndex:idx_invoice_tenant_quote,priority:1;uniqueIndex:idx_invoice_tenant_number,priority:1" json:"entreprise_id"`
	CreatedBy    uint      `json:"created_by"`

	// QuoteID links the originating quote. NULLs never collide in the
	// unique index, so free-standing invoices are unaffected.
	QuoteID *uint `gorm:"uniqueIndex:idx_invoice_tenant_quote,priority:2" json:"quote_id,omitempty"`

	Number        string `gorm:"size:20;uniqueIndex:idx_invoice_tenant_number,priority:2" json:"number"`
	Title         string `gorm:"size:255;not null" json:"title"`
	ClientName    string `gorm:"size:255;not null" json:"client_name"`
	ClientContact string `gorm:"size:255" json:"client_contact,omitempty"`
	Description   string `gorm:"type:text" json:"description,omitempty"`

	ClientAddress    string `gorm:"size:500" json:"client_address,omitempty"`
	ClientPostalCode string `gorm:"size:20" json:"client_postal_code,omitempty"`
	ClientCity       string `gorm:"size:100" json:"client_city,omitempty"`

	AmountHT decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_ht"`
	TVARate  decimal.Decimal `gorm:"type:decimal(5,2);not null;default:20" json:"tva_rate"`

	DueDate       *datatypes.Date `json:"due_date,omitempty"`
	PaymentMethod string          `gorm:"size:50" json:"payment_method,omitempty"`
	Status        InvoiceStatus   `gorm:"size:20;not null;default:'draft'" json:"status"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`

	Lines []InvoiceLine `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

// GetTenantID implements the tenant ownership contract.
func (i *Invoice) GetTenantID() uint {
	return i.EntrepriseID
}

// CanEdit returns true if the invoice can still be edited.
func (i *Invoice) CanEdit() bool {
	return i.Status == InvoiceDraft
}

// LedgerLines returns the invoice lines in position order as ledger lines.
func (i *Invoice) LedgerLines() []ledger.Line {
	out := make([]ledger.Line, len(i.Lines))
	for n, l := range i.Lines {
		out[n] = l.Ledger(l.ID)
	}
	return out
}

// Totals resolves HT/TVA/TTC from lines, or from the stored amount.
func (i *Invoice) Totals() ledger.Totals {
	ht, _ := ledger.AmountHT(i.LedgerLines(), i.AmountHT)
	return ledger.FromHT(ht, i.TVARate)
}

// ClientFullAddress joins the denormalized address fields.
func (i *Invoice) ClientFullAddress() string {
	addr := i.ClientAddress
	city := i.ClientPostalCode
	if i.ClientCity != "" {
		if city != "" {
			city += " "
		}
		city += i.ClientCity
	}
	if city != "" {
		if addr != "" {
			addr += "\n"
		}
		addr += city
	}
	return addr
}

// InvoiceLine is one priced row of an invoice.
type InvoiceLine struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	InvoiceID    uint `gorm:"index;not null" json:"invoice_id"`
	EntrepriseID uint `gorm:"index;not null" json:"entreprise_id"`
	DocumentLine `gorm:"embedded"`
}
