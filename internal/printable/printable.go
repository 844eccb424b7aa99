// Package printable renders quotes and invoices as standalone HTML pages
// sized for A4 printing. Rendering performs no I/O: callers load the
// document, its lines and the company profile beforehand.
package printable

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"time"

	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/diewo77/go-chantiers/internal/lifecycle"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/shopspring/decimal"
)

//go:embed templates/document.html
var files embed.FS

// PrintDelay is how long the page waits before opening the print dialog.
const PrintDelay = 350 * time.Millisecond

// Kind distinguishes the two printable documents.
type Kind string

const (
	KindQuote   Kind = "quote"
	KindInvoice Kind = "invoice"
)

// Heading is the printed title of the document kind.
func (k Kind) Heading() string {
	if k == KindInvoice {
		return "Facture"
	}
	return "Devis"
}

// Document is the printable view of a quote or an invoice.
type Document struct {
	Kind          Kind
	Number        string
	Title         string
	Status        string
	IssuedAt      time.Time
	DueDate       *time.Time
	ClientName    string
	ClientContact string
	ClientAddress string
	Description   string
	PaymentMethod string
	AmountHT      decimal.Decimal
	TVARate       decimal.Decimal
}

// FromQuote builds the printable view of q.
func FromQuote(q *models.Quote) Document {
	return Document{
		Kind:          KindQuote,
		Number:        q.Number,
		Title:         q.Title,
		Status:        lifecycle.QuoteLabel(q.Status),
		IssuedAt:      q.CreatedAt,
		ClientName:    q.ClientName,
		ClientContact: q.ClientContact,
		Description:   q.Description,
		AmountHT:      q.AmountHT,
		TVARate:       q.TVARate,
	}
}

// FromInvoice builds the printable view of inv.
func FromInvoice(inv *models.Invoice) Document {
	d := Document{
		Kind:          KindInvoice,
		Number:        inv.Number,
		Title:         inv.Title,
		Status:        lifecycle.InvoiceLabel(inv.Status),
		IssuedAt:      inv.CreatedAt,
		ClientName:    inv.ClientName,
		ClientContact: inv.ClientContact,
		ClientAddress: inv.ClientFullAddress(),
		Description:   inv.Description,
		PaymentMethod: inv.PaymentMethod,
		AmountHT:      inv.AmountHT,
		TVARate:       inv.TVARate,
	}
	if inv.DueDate != nil {
		due := time.Time(*inv.DueDate)
		d.DueDate = &due
	}
	return d
}

type page struct {
	Doc      Document
	Company  *models.Entreprise
	Author   string
	Lines    []ledger.Line
	Itemized bool
	Totals   ledger.Totals
	DelayMS  int64
}

var tpl = template.Must(template.New("document.html").Funcs(template.FuncMap{
	"money": ledger.FormatEUR,
	"qty":   func(d decimal.Decimal) string { return d.String() },
	"rate":  func(d decimal.Decimal) string { return d.String() + " %" },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02/01/2006")
	},
}).ParseFS(files, "templates/document.html"))

// ErrNoCompany is returned when the company profile is missing.
var ErrNoCompany = errors.New("printable: company profile required")

// Render produces the HTML page for doc. Blank lines are skipped; when no
// line remains the stored lump-sum amount is printed instead. The author
// name is optional.
func Render(doc Document, lines []ledger.Line, company *models.Entreprise, author string) (string, error) {
	if company == nil {
		return "", ErrNoCompany
	}
	rate := doc.TVARate
	if rate.IsNegative() {
		rate = ledger.DefaultTVARate
	}
	kept := ledger.Persistable(lines)
	ht, itemized := ledger.AmountHT(kept, doc.AmountHT)
	p := page{
		Doc:      doc,
		Company:  company,
		Author:   author,
		Lines:    kept,
		Itemized: itemized,
		Totals:   ledger.FromHT(ht, rate),
		DelayMS:  PrintDelay.Milliseconds(),
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}
