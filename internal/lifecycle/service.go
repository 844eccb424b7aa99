package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/go-chantiers/internal/audit"
	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// numberAttempts bounds retries when two documents race for the same number.
const numberAttempts = 3

// Service persists quotes and invoices for one tenant at a time.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates a lifecycle service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Filter narrows document listings.
type Filter struct {
	Status string
	Query  string
}

func (f Filter) apply(db *gorm.DB) *gorm.DB {
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		db = db.Where("LOWER(title) LIKE ? OR LOWER(client_name) LIKE ? OR LOWER(number) LIKE ?", like, like, like)
	}
	return db
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

// ─────────────────────────────────────────────────────────────────────────────
// Quotes
// ─────────────────────────────────────────────────────────────────────────────

// ListQuotes returns the tenant's quotes, newest first.
func (s *Service) ListQuotes(ctx context.Context, sc tenancy.Scope, f Filter) ([]models.Quote, error) {
	var quotes []models.Quote
	err := f.apply(s.db.WithContext(ctx).Scopes(tenancy.Owned(sc))).
		Order("created_at DESC, id DESC").
		Find(&quotes).Error
	return quotes, err
}

// GetQuote loads a quote and its lines. A quote of another tenant is
// reported as gorm.ErrRecordNotFound.
func (s *Service) GetQuote(ctx context.Context, sc tenancy.Scope, id uint) (*models.Quote, error) {
	var q models.Quote
	err := s.db.WithContext(ctx).
		Scopes(tenancy.Owned(sc)).
		Preload("Lines", orderedLines).
		Where("id = ?", id).
		First(&q).Error
	if err != nil {
		return nil, fmt.Errorf("quote %d: %w", id, err)
	}
	return &q, nil
}

// CreateQuote inserts a draft quote with its lines and computed amount.
func (s *Service) CreateQuote(ctx context.Context, sc tenancy.Scope, in QuoteInput) (*models.Quote, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	var q *models.Quote
	err := s.withNumberRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := models.NextNumber(tx, &models.Quote{}, models.QuotePrefix, sc.TenantID, s.now().Year())
			if err != nil {
				return err
			}
			q = &models.Quote{
				EntrepriseID: sc.TenantID,
				CreatedBy:    sc.UserID,
				Number:       number,
				Status:       models.QuoteDraft,
				TVARate:      ledger.DefaultTVARate,
			}
			applyQuote(q, in)
			q.Lines = quoteLines(sc.TenantID, in.Lines)
			if err := tx.Create(q).Error; err != nil {
				return err
			}
			return audit.Record(ctx, tx, sc, "quote", q.ID, audit.ActionCreate, map[string]any{"number": q.Number})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}
	return q, nil
}

// UpdateQuote replaces the content and lines of a quote. The status is
// left untouched.
func (s *Service) UpdateQuote(ctx context.Context, sc tenancy.Scope, id uint, in QuoteInput) (*models.Quote, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	q, err := s.GetQuote(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	applyQuote(q, in)
	q.Lines = quoteLines(sc.TenantID, in.Lines)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quote_id = ? AND entreprise_id = ?", q.ID, sc.TenantID).Delete(&models.QuoteLine{}).Error; err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(q).Error; err != nil {
			return err
		}
		for i := range q.Lines {
			q.Lines[i].QuoteID = q.ID
		}
		if len(q.Lines) > 0 {
			if err := tx.Create(&q.Lines).Error; err != nil {
				return err
			}
		}
		return audit.Record(ctx, tx, sc, "quote", q.ID, audit.ActionUpdate, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("update quote %d: %w", id, err)
	}
	return q, nil
}

// DeleteQuote removes a quote and its lines.
func (s *Service) DeleteQuote(ctx context.Context, sc tenancy.Scope, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Scopes(tenancy.Owned(sc)).Where("id = ?", id).Delete(&models.Quote{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("quote %d: %w", id, gorm.ErrRecordNotFound)
		}
		if err := tx.Where("quote_id = ?", id).Delete(&models.QuoteLine{}).Error; err != nil {
			return err
		}
		return audit.Record(ctx, tx, sc, "quote", id, audit.ActionDelete, nil)
	})
}

// TransitionQuote moves a quote to status to along an allowed edge. The
// update is conditional on the status read, so a concurrent change makes
// it fail with ErrInvalidTransition instead of skipping a state.
func (s *Service) TransitionQuote(ctx context.Context, sc tenancy.Scope, id uint, to models.QuoteStatus) (*models.Quote, error) {
	q, err := s.GetQuote(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	from := q.Status
	if !CanTransitionQuote(from, to) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Quote{}).
			Where("id = ? AND entreprise_id = ? AND status = ?", id, sc.TenantID, from).
			Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, from)
		}
		return audit.Record(ctx, tx, sc, "quote", id, audit.ActionTransition, map[string]any{"from": string(from), "to": string(to)})
	})
	if err != nil {
		return nil, err
	}
	q.Status = to
	return q, nil
}

// Conversion is the outcome of ConvertQuote.
type Conversion struct {
	Invoice         *models.Invoice `json:"invoice"`
	InvoiceID       uint            `json:"invoice_id"`
	AlreadyInvoiced bool            `json:"already_invoiced"`
}

// ConvertQuote creates the invoice of an accepted quote. Calling it again
// returns the invoice created the first time with AlreadyInvoiced set.
// Invoice, lines and the back-reference on the quote are written in one
// transaction; a concurrent duplicate is stopped by the unique index on
// (entreprise_id, quote_id) and resolved to the winning row.
func (s *Service) ConvertQuote(ctx context.Context, sc tenancy.Scope, id uint) (*Conversion, error) {
	q, err := s.GetQuote(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	if existing, err := s.invoiceForQuote(ctx, sc, q.ID); err == nil {
		return &Conversion{Invoice: existing, InvoiceID: existing.ID, AlreadyInvoiced: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if q.Status != models.QuoteAccepted {
		return nil, fmt.Errorf("%w: status %s", ErrQuoteNotAccepted, q.Status)
	}

	var inv *models.Invoice
	for attempt := 0; attempt < numberAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := models.NextNumber(tx, &models.Invoice{}, models.InvoicePrefix, sc.TenantID, s.now().Year())
			if err != nil {
				return err
			}
			inv = invoiceFromQuote(q, sc, number)
			if err := tx.Create(inv).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Quote{}).
				Where("id = ? AND entreprise_id = ?", q.ID, sc.TenantID).
				Update("invoice_id", inv.ID).Error; err != nil {
				return err
			}
			return audit.Record(ctx, tx, sc, "quote", q.ID, audit.ActionConvert, map[string]any{"invoice_id": inv.ID, "number": inv.Number})
		})
		if err == nil {
			return &Conversion{Invoice: inv, InvoiceID: inv.ID}, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("convert quote %d: %w", id, err)
		}
		// Either another request converted the quote first, or it took
		// the invoice number. Only the former ends the loop.
		if existing, rerr := s.invoiceForQuote(ctx, sc, q.ID); rerr == nil {
			return &Conversion{Invoice: existing, InvoiceID: existing.ID, AlreadyInvoiced: true}, nil
		}
	}
	return nil, fmt.Errorf("convert quote %d: %w", id, err)
}

func (s *Service) invoiceForQuote(ctx context.Context, sc tenancy.Scope, quoteID uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Scopes(tenancy.Owned(sc)).
		Where("quote_id = ?", quoteID).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func invoiceFromQuote(q *models.Quote, sc tenancy.Scope, number string) *models.Invoice {
	quoteID := q.ID
	ht, _ := ledger.AmountHT(q.LedgerLines(), q.AmountHT)
	inv := &models.Invoice{
		EntrepriseID:  sc.TenantID,
		CreatedBy:     sc.UserID,
		QuoteID:       &quoteID,
		Number:        number,
		Title:         q.Title,
		ClientName:    q.ClientName,
		ClientContact: q.ClientContact,
		Description:   q.Description,
		AmountHT:      ht,
		TVARate:       q.TVARate,
		Status:        models.InvoiceDraft,
	}
	inv.Lines = make([]models.InvoiceLine, len(q.Lines))
	for i, l := range q.Lines {
		inv.Lines[i] = models.InvoiceLine{EntrepriseID: sc.TenantID, DocumentLine: l.DocumentLine}
	}
	return inv
}

// ─────────────────────────────────────────────────────────────────────────────
// Invoices
// ─────────────────────────────────────────────────────────────────────────────

// ListInvoices returns the tenant's invoices, newest first.
func (s *Service) ListInvoices(ctx context.Context, sc tenancy.Scope, f Filter) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := f.apply(s.db.WithContext(ctx).Scopes(tenancy.Owned(sc))).
		Order("created_at DESC, id DESC").
		Find(&invoices).Error
	return invoices, err
}

// GetInvoice loads an invoice and its lines.
func (s *Service) GetInvoice(ctx context.Context, sc tenancy.Scope, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Scopes(tenancy.Owned(sc)).
		Preload("Lines", orderedLines).
		Where("id = ?", id).
		First(&inv).Error
	if err != nil {
		return nil, fmt.Errorf("invoice %d: %w", id, err)
	}
	return &inv, nil
}

// CreateInvoice inserts a free-standing draft invoice.
func (s *Service) CreateInvoice(ctx context.Context, sc tenancy.Scope, in InvoiceInput) (*models.Invoice, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	var inv *models.Invoice
	err := s.withNumberRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := models.NextNumber(tx, &models.Invoice{}, models.InvoicePrefix, sc.TenantID, s.now().Year())
			if err != nil {
				return err
			}
			inv = &models.Invoice{
				EntrepriseID: sc.TenantID,
				CreatedBy:    sc.UserID,
				Number:       number,
				Status:       models.InvoiceDraft,
				TVARate:      ledger.DefaultTVARate,
			}
			applyInvoice(inv, in)
			inv.Lines = invoiceLines(sc.TenantID, in.Lines)
			if err := tx.Create(inv).Error; err != nil {
				return err
			}
			return audit.Record(ctx, tx, sc, "invoice", inv.ID, audit.ActionCreate, map[string]any{"number": inv.Number})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}

// UpdateInvoice replaces the content of a draft invoice.
func (s *Service) UpdateInvoice(ctx context.Context, sc tenancy.Scope, id uint, in InvoiceInput) (*models.Invoice, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	inv, err := s.GetInvoice(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	if !inv.CanEdit() {
		return nil, ErrInvoiceLocked
	}
	applyInvoice(inv, in)
	inv.Lines = invoiceLines(sc.TenantID, in.Lines)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ? AND entreprise_id = ?", inv.ID, sc.TenantID).Delete(&models.InvoiceLine{}).Error; err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(inv).Error; err != nil {
			return err
		}
		for i := range inv.Lines {
			inv.Lines[i].InvoiceID = inv.ID
		}
		if len(inv.Lines) > 0 {
			if err := tx.Create(&inv.Lines).Error; err != nil {
				return err
			}
		}
		return audit.Record(ctx, tx, sc, "invoice", inv.ID, audit.ActionUpdate, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("update invoice %d: %w", id, err)
	}
	return inv, nil
}

// DeleteInvoice removes an invoice and frees its originating quote so it
// can be converted again.
func (s *Service) DeleteInvoice(ctx context.Context, sc tenancy.Scope, id uint) error {
	inv, err := s.GetInvoice(ctx, sc, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceLine{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Invoice{}, inv.ID).Error; err != nil {
			return err
		}
		if inv.QuoteID != nil {
			if err := tx.Model(&models.Quote{}).
				Where("id = ? AND entreprise_id = ?", *inv.QuoteID, sc.TenantID).
				Update("invoice_id", nil).Error; err != nil {
				return err
			}
		}
		return audit.Record(ctx, tx, sc, "invoice", inv.ID, audit.ActionDelete, nil)
	})
}

// TransitionInvoice moves an invoice along an allowed edge. Reaching paid
// stamps paid_at.
func (s *Service) TransitionInvoice(ctx context.Context, sc tenancy.Scope, id uint, to models.InvoiceStatus) (*models.Invoice, error) {
	inv, err := s.GetInvoice(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	from := inv.Status
	if !CanTransitionInvoice(from, to) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	updates := map[string]any{"status": to}
	if to == models.InvoicePaid {
		paidAt := s.now()
		updates["paid_at"] = paidAt
		inv.PaidAt = &paidAt
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND entreprise_id = ? AND status = ?", id, sc.TenantID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, from)
		}
		return audit.Record(ctx, tx, sc, "invoice", id, audit.ActionTransition, map[string]any{"from": string(from), "to": string(to)})
	})
	if err != nil {
		return nil, err
	}
	inv.Status = to
	return inv, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) withNumberRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		if err = fn(); !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}

func applyQuote(q *models.Quote, in QuoteInput) {
	q.Title = strings.TrimSpace(in.Title)
	q.ClientName = strings.TrimSpace(in.ClientName)
	q.ClientContact = strings.TrimSpace(in.ClientContact)
	q.Description = in.Description
	if in.TVARate != nil {
		q.TVARate = *in.TVARate
	}
	q.AmountHT, _ = ledger.AmountHT(in.Lines, in.AmountHT)
}

func applyInvoice(inv *models.Invoice, in InvoiceInput) {
	inv.Title = strings.TrimSpace(in.Title)
	inv.ClientName = strings.TrimSpace(in.ClientName)
	inv.ClientContact = strings.TrimSpace(in.ClientContact)
	inv.Description = in.Description
	if in.TVARate != nil {
		inv.TVARate = *in.TVARate
	}
	inv.AmountHT, _ = ledger.AmountHT(in.Lines, in.AmountHT)
	inv.ClientAddress = strings.TrimSpace(in.ClientAddress)
	inv.ClientPostalCode = strings.TrimSpace(in.ClientPostalCode)
	inv.ClientCity = strings.TrimSpace(in.ClientCity)
	inv.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	inv.DueDate = nil
	if due, _ := in.ParseDueDate(); due != nil {
		d := datatypes.Date(*due)
		inv.DueDate = &d
	}
}

func quoteLines(tenantID uint, lines []ledger.Line) []models.QuoteLine {
	rows := models.DocumentLines(lines)
	out := make([]models.QuoteLine, len(rows))
	for i, r := range rows {
		out[i] = models.QuoteLine{EntrepriseID: tenantID, DocumentLine: r}
	}
	return out
}

func invoiceLines(tenantID uint, lines []ledger.Line) []models.InvoiceLine {
	rows := models.DocumentLines(lines)
	out := make([]models.InvoiceLine, len(rows))
	for i, r := range rows {
		out[i] = models.InvoiceLine{EntrepriseID: tenantID, DocumentLine: r}
	}
	return out
}
