package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-chantiers/httpx"
	"github.com/diewo77/go-chantiers/internal/access"
	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/diewo77/go-chantiers/internal/lifecycle"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/printable"
	"github.com/diewo77/go-chantiers/internal/services"
	"github.com/diewo77/go-chantiers/internal/tenancy"
)

// Conversion outcomes reported to the observer.
const (
	ConversionCreated         = "created"
	ConversionAlreadyInvoiced = "already_invoiced"
	ConversionRejected        = "rejected"
	ConversionError           = "error"
)

type quoteView struct {
	*models.Quote
	StatusLabel  string               `json:"status_label"`
	NextStatuses []models.QuoteStatus `json:"next_statuses"`
	CanConvert   bool                 `json:"can_convert"`
	Totals       ledger.Totals        `json:"totals"`
}

func newQuoteView(q *models.Quote) quoteView {
	return quoteView{
		Quote:        q,
		StatusLabel:  lifecycle.QuoteLabel(q.Status),
		NextStatuses: lifecycle.NextQuoteStatuses(q.Status),
		CanConvert:   lifecycle.CanConvert(q),
		Totals:       q.Totals(),
	}
}

type invoiceView struct {
	*models.Invoice
	StatusLabel string        `json:"status_label"`
	Editable    bool          `json:"editable"`
	Totals      ledger.Totals `json:"totals"`
}

func newInvoiceView(inv *models.Invoice) invoiceView {
	return invoiceView{
		Invoice:     inv,
		StatusLabel: lifecycle.InvoiceLabel(inv.Status),
		Editable:    inv.CanEdit(),
		Totals:      inv.Totals(),
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

func filterFrom(r *http.Request) lifecycle.Filter {
	q := r.URL.Query()
	return lifecycle.Filter{Status: q.Get("status"), Query: q.Get("q")}
}

// ─────────────────────────────────────────────────────────────────────────────
// Quotes
// ─────────────────────────────────────────────────────────────────────────────

type QuoteHandler struct {
	Responder
	docs     *lifecycle.Service
	accounts *services.AccountService
	observe  func(outcome string)
}

// NewQuoteHandler creates the quote handler. observe receives the outcome
// of every conversion attempt and may be nil.
func NewQuoteHandler(rs Responder, docs *lifecycle.Service, accounts *services.AccountService, observe func(string)) *QuoteHandler {
	if observe == nil {
		observe = func(string) {}
	}
	return &QuoteHandler{Responder: rs, docs: docs, accounts: accounts, observe: observe}
}

func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	list, err := h.docs.ListQuotes(r.Context(), sc, filterFrom(r))
	if err != nil {
		h.Error(w, r, "list quotes", err)
		return
	}
	out := make([]quoteView, 0, len(list))
	for i := range list {
		out = append(out, newQuoteView(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *QuoteHandler) load(w http.ResponseWriter, r *http.Request, action access.Action) (tenancy.Scope, *models.Quote, bool) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return sc, nil, false
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return sc, nil, false
	}
	q, err := h.docs.GetQuote(r.Context(), sc, id)
	if err != nil {
		h.Error(w, r, "get quote", err)
		return sc, nil, false
	}
	if !h.Allowed(w, r, action, access.ResourceQuote, q) {
		return sc, nil, false
	}
	return sc, q, true
}

func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, q, ok := h.load(w, r, access.ActionView)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, newQuoteView(q))
}

func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	var in lifecycle.QuoteInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "create quote", err)
		return
	}
	q, err := h.docs.CreateQuote(r.Context(), sc, in)
	if err != nil {
		h.Error(w, r, "create quote", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newQuoteView(q))
}

func (h *QuoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	sc, q, ok := h.load(w, r, access.ActionUpdate)
	if !ok {
		return
	}
	var in lifecycle.QuoteInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "update quote", err)
		return
	}
	q, err := h.docs.UpdateQuote(r.Context(), sc, q.ID, in)
	if err != nil {
		h.Error(w, r, "update quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newQuoteView(q))
}

func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sc, q, ok := h.load(w, r, access.ActionDelete)
	if !ok {
		return
	}
	if err := h.docs.DeleteQuote(r.Context(), sc, q.ID); err != nil {
		h.Error(w, r, "delete quote", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Transition accepts {"status": "..."} with English or French values.
func (h *QuoteHandler) Transition(w http.ResponseWriter, r *http.Request) {
	sc, q, ok := h.load(w, r, access.ActionTransition)
	if !ok {
		return
	}
	var in statusRequest
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "transition quote", err)
		return
	}
	to, err := lifecycle.ParseQuoteStatus(in.Status)
	if err != nil {
		h.Error(w, r, "transition quote", err)
		return
	}
	q, err = h.docs.TransitionQuote(r.Context(), sc, q.ID, to)
	if err != nil {
		h.Error(w, r, "transition quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newQuoteView(q))
}

// Convert turns an accepted quote into an invoice. A repeated call answers
// 200 with the invoice created the first time.
func (h *QuoteHandler) Convert(w http.ResponseWriter, r *http.Request) {
	sc, q, ok := h.load(w, r, access.ActionConvert)
	if !ok {
		return
	}
	conv, err := h.docs.ConvertQuote(r.Context(), sc, q.ID)
	if err != nil {
		if errors.Is(err, lifecycle.ErrQuoteNotAccepted) {
			h.observe(ConversionRejected)
		} else {
			h.observe(ConversionError)
		}
		h.Error(w, r, "convert quote", err)
		return
	}
	status := http.StatusCreated
	if conv.AlreadyInvoiced {
		status = http.StatusOK
		h.observe(ConversionAlreadyInvoiced)
	} else {
		h.observe(ConversionCreated)
		h.Logger.InfoContext(r.Context(), "quote invoiced",
			"tenant", sc.TenantID, "quote", q.ID, "invoice", conv.InvoiceID)
	}
	httpx.JSON(w, status, conv)
}

// EditLines applies one line edit, e.g. {"op":"move","id":"12","to":0}.
func (h *QuoteHandler) EditLines(w http.ResponseWriter, r *http.Request) {
	sc, q, ok := h.load(w, r, access.ActionUpdate)
	if !ok {
		return
	}
	var edit lifecycle.LineEdit
	if err := httpx.Decode(w, r, &edit); err != nil {
		h.Error(w, r, "edit quote lines", err)
		return
	}
	q, err := h.docs.EditQuoteLines(r.Context(), sc, q.ID, edit)
	if err != nil {
		h.Error(w, r, "edit quote lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newQuoteView(q))
}

func (h *QuoteHandler) History(w http.ResponseWriter, r *http.Request) {
	sc, q, ok := h.load(w, r, access.ActionView)
	if !ok {
		return
	}
	entries, err := h.docs.History(r.Context(), sc, access.ResourceQuote, q.ID)
	if err != nil {
		h.Error(w, r, "quote history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

// Print renders the quote as a printable page.
func (h *QuoteHandler) Print(w http.ResponseWriter, r *http.Request) {
	sc, q, ok := h.load(w, r, access.ActionView)
	if !ok {
		return
	}
	printDocument(h.Responder, h.accounts, w, r, sc, printable.FromQuote(q), q.LedgerLines())
}

// ─────────────────────────────────────────────────────────────────────────────
// Invoices
// ─────────────────────────────────────────────────────────────────────────────

type InvoiceHandler struct {
	Responder
	docs     *lifecycle.Service
	accounts *services.AccountService
}

func NewInvoiceHandler(rs Responder, docs *lifecycle.Service, accounts *services.AccountService) *InvoiceHandler {
	return &InvoiceHandler{Responder: rs, docs: docs, accounts: accounts}
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	list, err := h.docs.ListInvoices(r.Context(), sc, filterFrom(r))
	if err != nil {
		h.Error(w, r, "list invoices", err)
		return
	}
	out := make([]invoiceView, 0, len(list))
	for i := range list {
		out = append(out, newInvoiceView(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *InvoiceHandler) load(w http.ResponseWriter, r *http.Request, action access.Action) (tenancy.Scope, *models.Invoice, bool) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return sc, nil, false
	}
	id, ok := h.ID(w, r, "id")
	if !ok {
		return sc, nil, false
	}
	inv, err := h.docs.GetInvoice(r.Context(), sc, id)
	if err != nil {
		h.Error(w, r, "get invoice", err)
		return sc, nil, false
	}
	if !h.Allowed(w, r, action, access.ResourceInvoice, inv) {
		return sc, nil, false
	}
	return sc, inv, true
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, inv, ok := h.load(w, r, access.ActionView)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, newInvoiceView(inv))
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.Scope(w, r)
	if !ok {
		return
	}
	var in lifecycle.InvoiceInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "create invoice", err)
		return
	}
	inv, err := h.docs.CreateInvoice(r.Context(), sc, in)
	if err != nil {
		h.Error(w, r, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newInvoiceView(inv))
}

func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	sc, inv, ok := h.load(w, r, access.ActionUpdate)
	if !ok {
		return
	}
	var in lifecycle.InvoiceInput
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "update invoice", err)
		return
	}
	inv, err := h.docs.UpdateInvoice(r.Context(), sc, inv.ID, in)
	if err != nil {
		h.Error(w, r, "update invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newInvoiceView(inv))
}

func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sc, inv, ok := h.load(w, r, access.ActionDelete)
	if !ok {
		return
	}
	if err := h.docs.DeleteInvoice(r.Context(), sc, inv.ID); err != nil {
		h.Error(w, r, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InvoiceHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var in statusRequest
	if err := httpx.Decode(w, r, &in); err != nil {
		h.Error(w, r, "transition invoice", err)
		return
	}
	to, err := lifecycle.ParseInvoiceStatus(in.Status)
	if err != nil {
		h.Error(w, r, "transition invoice", err)
		return
	}
	h.transition(w, r, to)
}

// Send marks a draft invoice as sent.
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.InvoiceSent)
}

// Pay marks a sent invoice as paid.
func (h *InvoiceHandler) Pay(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.InvoicePaid)
}

func (h *InvoiceHandler) transition(w http.ResponseWriter, r *http.Request, to models.InvoiceStatus) {
	sc, inv, ok := h.load(w, r, access.ActionTransition)
	if !ok {
		return
	}
	inv, err := h.docs.TransitionInvoice(r.Context(), sc, inv.ID, to)
	if err != nil {
		h.Error(w, r, "transition invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newInvoiceView(inv))
}

func (h *InvoiceHandler) EditLines(w http.ResponseWriter, r *http.Request) {
	sc, inv, ok := h.load(w, r, access.ActionUpdate)
	if !ok {
		return
	}
	var edit lifecycle.LineEdit
	if err := httpx.Decode(w, r, &edit); err != nil {
		h.Error(w, r, "edit invoice lines", err)
		return
	}
	inv, err := h.docs.EditInvoiceLines(r.Context(), sc, inv.ID, edit)
	if err != nil {
		h.Error(w, r, "edit invoice lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newInvoiceView(inv))
}

func (h *InvoiceHandler) History(w http.ResponseWriter, r *http.Request) {
	sc, inv, ok := h.load(w, r, access.ActionView)
	if !ok {
		return
	}
	entries, err := h.docs.History(r.Context(), sc, access.ResourceInvoice, inv.ID)
	if err != nil {
		h.Error(w, r, "invoice history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *InvoiceHandler) Print(w http.ResponseWriter, r *http.Request) {
	sc, inv, ok := h.load(w, r, access.ActionView)
	if !ok {
		return
	}
	printDocument(h.Responder, h.accounts, w, r, sc, printable.FromInvoice(inv), inv.LedgerLines())
}

func printDocument(rs Responder, accounts *services.AccountService, w http.ResponseWriter, r *http.Request, sc tenancy.Scope, doc printable.Document, lines []ledger.Line) {
	company, err := accounts.Company(r.Context(), sc.TenantID)
	if err != nil {
		rs.Error(w, r, "print company", err)
		return
	}
	author := sc.Name
	if author == "" {
		author = sc.Email
	}
	page, err := printable.Render(doc, lines, company, author)
	if err != nil {
		rs.Error(w, r, "print", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}
