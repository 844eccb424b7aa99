package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/diewo77/go-chantiers/internal/audit"
	"github.com/diewo77/go-chantiers/internal/lifecycle"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/storage"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/diewo77/go-chantiers/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChantierInput creates or edits a job site. Dates are YYYY-MM-DD.
type ChantierInput struct {
	ClientID  uint                  `json:"client_id"`
	Title     string                `json:"title"`
	Status    models.ChantierStatus `json:"status"`
	Trade     string                `json:"trade"`
	StartDate string                `json:"start_date"`
	EndDate   string                `json:"end_date"`
	Notes     string                `json:"notes"`
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(lifecycle.DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (in ChantierInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("title", in.Title, v)
	validation.MaxLen("title", in.Title, 255, v)
	validation.MaxLen("trade", in.Trade, 100, v)
	if in.ClientID == 0 {
		v["client_id"] = "required"
	}
	if in.Status != "" && !in.Status.Valid() {
		v["status"] = "invalid_choice"
	}
	start, err := parseDate(in.StartDate)
	if err != nil {
		v["start_date"] = "invalid_date"
	}
	end, err := parseDate(in.EndDate)
	if err != nil {
		v["end_date"] = "invalid_date"
	}
	if start != nil && end != nil && end.Before(*start) {
		v["end_date"] = "must_be_after_start"
	}
	return v
}

// ChantierFilter narrows the job site list.
type ChantierFilter struct {
	Status   string
	ClientID uint
	Query    string
}

// ChantierService manages job sites and their notes and checklists.
type ChantierService struct {
	db     *gorm.DB
	bucket storage.Bucket
	logger *slog.Logger
}

// NewChantierService creates the service. bucket may be nil when photos are
// disabled.
func NewChantierService(db *gorm.DB, bucket storage.Bucket, logger *slog.Logger) *ChantierService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChantierService{db: db, bucket: bucket, logger: logger}
}

func (s *ChantierService) List(ctx context.Context, sc tenancy.Scope, f ChantierFilter) ([]models.Chantier, error) {
	q := s.db.WithContext(ctx).Scopes(tenancy.Owned(sc)).Preload("Client")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(trade) LIKE ?", like, like)
	}
	var out []models.Chantier
	err := q.Order("updated_at DESC, id DESC").Find(&out).Error
	return out, err
}

// Get loads a job site with its client, notes, checklist and photos.
func (s *ChantierService) Get(ctx context.Context, sc tenancy.Scope, id uint) (*models.Chantier, error) {
	var c models.Chantier
	err := s.db.WithContext(ctx).
		Scopes(tenancy.Owned(sc)).
		Preload("Client").
		Preload("NoteEntries", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id DESC") }).
		Preload("Checklist", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Photos", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id DESC") }).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, fmt.Errorf("chantier %d: %w", id, err)
	}
	return &c, nil
}

// exists reports a missing or foreign job site as gorm.ErrRecordNotFound.
func (s *ChantierService) exists(ctx context.Context, sc tenancy.Scope, id uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Chantier{}).Scopes(tenancy.Owned(sc)).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("chantier %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *ChantierService) checkClient(ctx context.Context, sc tenancy.Scope, clientID uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Client{}).Scopes(tenancy.Owned(sc)).Where("id = ?", clientID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return validation.Violations{"client_id": "not_found"}
	}
	return nil
}

func (s *ChantierService) Create(ctx context.Context, sc tenancy.Scope, in ChantierInput) (*models.Chantier, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	if err := s.checkClient(ctx, sc, in.ClientID); err != nil {
		return nil, err
	}
	c := &models.Chantier{EntrepriseID: sc.TenantID}
	applyChantier(c, in)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return audit.Record(ctx, tx, sc, "chantier", c.ID, audit.ActionCreate, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("create chantier: %w", err)
	}
	return c, nil
}

func (s *ChantierService) Update(ctx context.Context, sc tenancy.Scope, id uint, in ChantierInput) (*models.Chantier, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	var c models.Chantier
	if err := s.db.WithContext(ctx).Scopes(tenancy.Owned(sc)).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, fmt.Errorf("chantier %d: %w", id, err)
	}
	if err := s.checkClient(ctx, sc, in.ClientID); err != nil {
		return nil, err
	}
	applyChantier(&c, in)
	if err := s.db.WithContext(ctx).Omit("Client").Save(&c).Error; err != nil {
		return nil, fmt.Errorf("update chantier %d: %w", id, err)
	}
	return &c, nil
}

// Delete removes the job site with its notes, checklist and photos. Photo
// objects are removed after the rows; failures there are only logged.
func (s *ChantierService) Delete(ctx context.Context, sc tenancy.Scope, id uint) error {
	if err := s.exists(ctx, sc, id); err != nil {
		return err
	}
	var keys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ChantierPhoto{}).Scopes(tenancy.Owned(sc)).Where("chantier_id = ?", id).Pluck("object_key", &keys).Error; err != nil {
			return err
		}
		for _, child := range []any{&models.ChantierNote{}, &models.ChantierChecklistItem{}, &models.ChantierPhoto{}} {
			if err := tx.Scopes(tenancy.Owned(sc)).Where("chantier_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.AgendaEvent{}).Scopes(tenancy.Owned(sc)).Where("chantier_id = ?", id).Update("chantier_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Scopes(tenancy.Owned(sc)).Where("id = ?", id).Delete(&models.Chantier{}).Error; err != nil {
			return err
		}
		return audit.Record(ctx, tx, sc, "chantier", id, audit.ActionDelete, map[string]any{"photos": len(keys)})
	})
	if err != nil {
		return fmt.Errorf("delete chantier %d: %w", id, err)
	}
	removeObjects(ctx, s.bucket, s.logger, keys)
	return nil
}

// removeObjects deletes photo objects once their rows are gone. Failures only
// leave orphans behind, so they are logged.
func removeObjects(ctx context.Context, bucket storage.Bucket, logger *slog.Logger, keys []string) {
	if bucket == nil {
		return
	}
	for _, k := range keys {
		if err := bucket.Delete(ctx, k); err != nil {
			logger.Warn("photo object not removed", "key", k, "err", err)
		}
	}
}

func applyChantier(c *models.Chantier, in ChantierInput) {
	c.ClientID = in.ClientID
	c.Title = strings.TrimSpace(in.Title)
	c.Status = in.Status
	if c.Status == "" {
		c.Status = models.ChantierToSchedule
	}
	c.Trade = in.Trade
	c.Notes = in.Notes
	c.StartDate = toDate(in.StartDate)
	c.EndDate = toDate(in.EndDate)
}

func toDate(s string) *datatypes.Date {
	t, err := parseDate(s)
	if err != nil || t == nil {
		return nil
	}
	d := datatypes.Date(*t)
	return &d
}

// ─────────────────────────────────────────────────────────────────────────────
// Notes
// ─────────────────────────────────────────────────────────────────────────────

// AddNote appends a journal entry written by the caller.
func (s *ChantierService) AddNote(ctx context.Context, sc tenancy.Scope, chantierID uint, body string) (*models.ChantierNote, error) {
	v := validation.Violations{}
	validation.Required("body", body, v)
	validation.MaxLen("body", body, 5000, v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := s.exists(ctx, sc, chantierID); err != nil {
		return nil, err
	}
	n := &models.ChantierNote{EntrepriseID: sc.TenantID, ChantierID: chantierID, AuthorID: sc.UserID, Body: strings.TrimSpace(body)}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("add note: %w", err)
	}
	return n, nil
}

// DeleteNote removes a journal entry of the job site.
func (s *ChantierService) DeleteNote(ctx context.Context, sc tenancy.Scope, chantierID, noteID uint) error {
	res := s.db.WithContext(ctx).Scopes(tenancy.Owned(sc)).
		Where("id = ? AND chantier_id = ?", noteID, chantierID).
		Delete(&models.ChantierNote{})
	if res.Error != nil {
		return fmt.Errorf("delete note %d: %w", noteID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("note %d: %w", noteID, gorm.ErrRecordNotFound)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Checklist
// ─────────────────────────────────────────────────────────────────────────────

// AddChecklistItem appends an unchecked item at the end of the list.
func (s *ChantierService) AddChecklistItem(ctx context.Context, sc tenancy.Scope, chantierID uint, label string) (*models.ChantierChecklistItem, error) {
	v := validation.Violations{}
	validation.Required("label", label, v)
	validation.MaxLen("label", label, 255, v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := s.exists(ctx, sc, chantierID); err != nil {
		return nil, err
	}
	var maxPos sql.NullInt64
	if err := s.db.WithContext(ctx).Model(&models.ChantierChecklistItem{}).
		Scopes(tenancy.Owned(sc)).
		Where("chantier_id = ?", chantierID).
		Select("MAX(position)").Scan(&maxPos).Error; err != nil {
		return nil, err
	}
	item := &models.ChantierChecklistItem{EntrepriseID: sc.TenantID, ChantierID: chantierID, Label: strings.TrimSpace(label)}
	if maxPos.Valid {
		item.Position = int(maxPos.Int64) + 1
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("add checklist item: %w", err)
	}
	return item, nil
}

// ToggleChecklistItem sets the done flag, or flips it when done is nil.
func (s *ChantierService) ToggleChecklistItem(ctx context.Context, sc tenancy.Scope, chantierID, itemID uint, done *bool) (*models.ChantierChecklistItem, error) {
	var item models.ChantierChecklistItem
	err := s.db.WithContext(ctx).Scopes(tenancy.Owned(sc)).
		Where("id = ? AND chantier_id = ?", itemID, chantierID).
		First(&item).Error
	if err != nil {
		return nil, fmt.Errorf("checklist item %d: %w", itemID, err)
	}
	if done == nil {
		item.Done = !item.Done
	} else {
		item.Done = *done
	}
	if err := s.db.WithContext(ctx).Model(&item).Update("done", item.Done).Error; err != nil {
		return nil, fmt.Errorf("toggle checklist item %d: %w", itemID, err)
	}
	return &item, nil
}

// DeleteChecklistItem removes one checklist entry.
func (s *ChantierService) DeleteChecklistItem(ctx context.Context, sc tenancy.Scope, chantierID, itemID uint) error {
	res := s.db.WithContext(ctx).Scopes(tenancy.Owned(sc)).
		Where("id = ? AND chantier_id = ?", itemID, chantierID).
		Delete(&models.ChantierChecklistItem{})
	if res.Error != nil {
		return fmt.Errorf("delete checklist item %d: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("checklist item %d: %w", itemID, gorm.ErrRecordNotFound)
	}
	return nil
}

// ErrNoBucket is returned by photo operations when storage is disabled.
var ErrNoBucket = errors.New("photo storage is not configured")
