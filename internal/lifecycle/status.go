// Package lifecycle implements the quote and invoice state machines and the
// conversion of an accepted quote into an invoice.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/go-chantiers/internal/models"
)

var (
	// ErrInvalidTransition is returned for any status change outside the
	// allowed edges.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownStatus is returned when a status string cannot be parsed.
	ErrUnknownStatus = errors.New("unknown status")
	// ErrQuoteNotAccepted is returned when converting a quote that is not
	// accepted.
	ErrQuoteNotAccepted = errors.New("quote is not accepted")
	// ErrInvoiceLocked is returned when editing an invoice that left draft.
	ErrInvoiceLocked = errors.New("invoice is no longer a draft")
)

var quoteEdges = map[models.QuoteStatus][]models.QuoteStatus{
	models.QuoteDraft:    {models.QuoteSent},
	models.QuoteSent:     {models.QuoteAccepted, models.QuoteRefused},
	models.QuoteAccepted: {models.QuoteDraft},
	models.QuoteRefused:  {models.QuoteDraft},
}

var invoiceEdges = map[models.InvoiceStatus][]models.InvoiceStatus{
	models.InvoiceDraft: {models.InvoiceSent, models.InvoicePaid},
	models.InvoiceSent:  {models.InvoicePaid},
}

// CanTransitionQuote reports whether from → to is an allowed edge.
func CanTransitionQuote(from, to models.QuoteStatus) bool {
	for _, s := range quoteEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanTransitionInvoice reports whether from → to is an allowed edge. Paid
// is terminal.
func CanTransitionInvoice(from, to models.InvoiceStatus) bool {
	for _, s := range invoiceEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextQuoteStatuses lists the states reachable from s.
func NextQuoteStatuses(s models.QuoteStatus) []models.QuoteStatus {
	return append([]models.QuoteStatus(nil), quoteEdges[s]...)
}

var quoteAliases = map[string]models.QuoteStatus{
	"draft":     models.QuoteDraft,
	"brouillon": models.QuoteDraft,
	"sent":      models.QuoteSent,
	"envoye":    models.QuoteSent,
	"envoyé":    models.QuoteSent,
	"accepted":  models.QuoteAccepted,
	"accepte":   models.QuoteAccepted,
	"accepté":   models.QuoteAccepted,
	"refused":   models.QuoteRefused,
	"refuse":    models.QuoteRefused,
	"refusé":    models.QuoteRefused,
}

var invoiceAliases = map[string]models.InvoiceStatus{
	"draft":     models.InvoiceDraft,
	"brouillon": models.InvoiceDraft,
	"sent":      models.InvoiceSent,
	"envoyee":   models.InvoiceSent,
	"envoyée":   models.InvoiceSent,
	"paid":      models.InvoicePaid,
	"payee":     models.InvoicePaid,
	"payée":     models.InvoicePaid,
}

// ParseQuoteStatus accepts the canonical English values and the French
// labels, with or without accents.
func ParseQuoteStatus(s string) (models.QuoteStatus, error) {
	if st, ok := quoteAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// ParseInvoiceStatus is the invoice counterpart of ParseQuoteStatus.
func ParseInvoiceStatus(s string) (models.InvoiceStatus, error) {
	if st, ok := invoiceAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// QuoteLabel is the badge text shown for a quote status.
func QuoteLabel(s models.QuoteStatus) string {
	switch s {
	case models.QuoteDraft:
		return "Brouillon"
	case models.QuoteSent:
		return "Envoyé"
	case models.QuoteAccepted:
		return "Accepté"
	case models.QuoteRefused:
		return "Refusé"
	}
	return string(s)
}

// InvoiceLabel is the badge text shown for an invoice status.
func InvoiceLabel(s models.InvoiceStatus) string {
	switch s {
	case models.InvoiceDraft:
		return "Brouillon"
	case models.InvoiceSent:
		return "Envoyée"
	case models.InvoicePaid:
		return "Payée"
	}
	return string(s)
}

// CanConvert reports whether the "Facturer ce devis" action is offered.
func CanConvert(q *models.Quote) bool {
	return q.Status == models.QuoteAccepted && !q.Invoiced()
}
