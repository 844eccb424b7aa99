package lifecycle

import (
	"strconv"
	"time"

	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/diewo77/go-chantiers/validation"
	"github.com/shopspring/decimal"
)

var maxTVA = decimal.NewFromInt(100)

// DocumentInput is the editable content shared by quotes and invoices.
type DocumentInput struct {
	Title         string           `json:"title"`
	ClientName    string           `json:"client_name"`
	ClientContact string           `json:"client_contact"`
	Description   string           `json:"description"`
	AmountHT      decimal.Decimal  `json:"amount_ht"`
	TVARate       *decimal.Decimal `json:"tva_rate"`
	Lines         []ledger.Line    `json:"lines"`
}

// Validate collects field violations. Blank lines are ignored.
func (in DocumentInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("title", in.Title, v)
	validation.MaxLen("title", in.Title, 255, v)
	validation.Required("client_name", in.ClientName, v)
	validation.NonNegative("amount_ht", in.AmountHT, v)
	if in.TVARate != nil {
		validation.RangeDecimal("tva_rate", *in.TVARate, decimal.Zero, maxTVA, v)
	}
	for i, l := range in.Lines {
		if l.IsBlank() {
			continue
		}
		field := "lines." + strconv.Itoa(i)
		if !l.Quantity.IsPositive() {
			v[field+".quantity"] = "must_be_positive"
		}
		validation.NonNegative(field+".unit_price_ht", l.UnitPriceHT, v)
		validation.MaxLen(field+".description", l.Description, 500, v)
	}
	return v
}

// QuoteInput creates or edits a quote.
type QuoteInput struct {
	DocumentInput
}

// InvoiceInput creates or edits an invoice.
type InvoiceInput struct {
	DocumentInput
	ClientAddress    string `json:"client_address"`
	ClientPostalCode string `json:"client_postal_code"`
	ClientCity       string `json:"client_city"`
	// DueDate is a calendar date, YYYY-MM-DD.
	DueDate       string `json:"due_date"`
	PaymentMethod string `json:"payment_method"`
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ParseDueDate returns the due date, or nil when none was given.
func (in InvoiceInput) ParseDueDate() (*time.Time, error) {
	if in.DueDate == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, in.DueDate)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate adds invoice-only checks to the document checks.
func (in InvoiceInput) Validate() validation.Violations {
	v := in.DocumentInput.Validate()
	validation.MaxLen("payment_method", in.PaymentMethod, 50, v)
	if _, err := in.ParseDueDate(); err != nil {
		v["due_date"] = "invalid_date"
	}
	return v
}
