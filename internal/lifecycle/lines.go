package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/diewo77/go-chantiers/internal/audit"
	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/diewo77/go-chantiers/validation"
	"github.com/shopspring/decimal"
)

// Line edit operations.
const (
	LineAdd    = "add"
	LineUpdate = "update"
	LineRemove = "remove"
	LineMove   = "move"
)

// LineEdit is a single change to the lines of a document. ID is the line
// id returned with the document; To is the target position of a move.
type LineEdit struct {
	Op   string      `json:"op"`
	ID   string      `json:"id"`
	Line ledger.Line `json:"line"`
	To   int         `json:"to"`
}

// Validate checks the shape of the edit. The resulting lines are validated
// with the rest of the document.
func (e LineEdit) Validate() validation.Violations {
	v := validation.Violations{}
	validation.OneOf("op", e.Op, []string{LineAdd, LineUpdate, LineRemove, LineMove}, v)
	switch e.Op {
	case LineAdd:
		validation.Required("line.description", e.Line.Description, v)
	case LineUpdate:
		validation.Required("id", e.ID, v)
		validation.Required("line.description", e.Line.Description, v)
	case LineRemove, LineMove:
		validation.Required("id", e.ID, v)
	}
	return v
}

func (e LineEdit) apply(sheet *ledger.Sheet) error {
	switch e.Op {
	case LineAdd:
		l := e.Line
		l.ID = ""
		sheet.Add(l)
		return nil
	case LineUpdate:
		return sheet.Update(e.ID, func(l *ledger.Line) { *l = e.Line })
	case LineRemove:
		return sheet.Remove(e.ID)
	case LineMove:
		return sheet.Move(e.ID, e.To)
	}
	return nil
}

// EditQuoteLines applies one line edit to a quote and saves the quote with
// its recomputed amount.
func (s *Service) EditQuoteLines(ctx context.Context, sc tenancy.Scope, id uint, edit LineEdit) (*models.Quote, error) {
	if err := edit.Validate().Err(); err != nil {
		return nil, err
	}
	q, err := s.GetQuote(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	sheet := ledger.NewSheet(q.LedgerLines()...)
	if err := edit.apply(sheet); err != nil {
		return nil, fmt.Errorf("quote %d line %s: %w", id, edit.ID, err)
	}
	in := QuoteInput{DocumentInput: documentInput(q.Title, q.ClientName, q.ClientContact, q.Description, q.AmountHT, q.TVARate, sheet)}
	return s.UpdateQuote(ctx, sc, id, in)
}

// EditInvoiceLines applies one line edit to a draft invoice.
func (s *Service) EditInvoiceLines(ctx context.Context, sc tenancy.Scope, id uint, edit LineEdit) (*models.Invoice, error) {
	if err := edit.Validate().Err(); err != nil {
		return nil, err
	}
	inv, err := s.GetInvoice(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	if !inv.CanEdit() {
		return nil, ErrInvoiceLocked
	}
	sheet := ledger.NewSheet(inv.LedgerLines()...)
	if err := edit.apply(sheet); err != nil {
		return nil, fmt.Errorf("invoice %d line %s: %w", id, edit.ID, err)
	}
	in := InvoiceInput{
		DocumentInput:    documentInput(inv.Title, inv.ClientName, inv.ClientContact, inv.Description, inv.AmountHT, inv.TVARate, sheet),
		ClientAddress:    inv.ClientAddress,
		ClientPostalCode: inv.ClientPostalCode,
		ClientCity:       inv.ClientCity,
		PaymentMethod:    inv.PaymentMethod,
	}
	if inv.DueDate != nil {
		in.DueDate = time.Time(*inv.DueDate).Format(DateLayout)
	}
	return s.UpdateInvoice(ctx, sc, id, in)
}

func documentInput(title, clientName, clientContact, description string, amountHT, tvaRate decimal.Decimal, sheet *ledger.Sheet) DocumentInput {
	return DocumentInput{
		Title:         title,
		ClientName:    clientName,
		ClientContact: clientContact,
		Description:   description,
		AmountHT:      amountHT,
		TVARate:       &tvaRate,
		Lines:         sheet.Lines(),
	}
}

// History returns the latest audit entries of a quote or an invoice.
func (s *Service) History(ctx context.Context, sc tenancy.Scope, entityType string, id uint) ([]models.AuditLog, error) {
	entries, err := audit.List(ctx, s.db, sc, entityType, id)
	if err != nil {
		return nil, fmt.Errorf("%s %d history: %w", entityType, id, err)
	}
	return entries, nil
}
