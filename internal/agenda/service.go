package agenda

import (
	"context"
	"fmt"
	"time"

	"github.com/diewo77/go-chantiers/internal/audit"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"github.com/diewo77/go-chantiers/validation"
	"gorm.io/gorm"
)

// EventInput creates or edits an agenda event.
type EventInput struct {
	Title      string             `json:"title"`
	StartsAt   time.Time          `json:"starts_at"`
	EndsAt     time.Time          `json:"ends_at"`
	ChantierID *uint              `json:"chantier_id"`
	Notes      string             `json:"notes"`
	Status     models.EventStatus `json:"status"`
}

// Validate checks the event fields. An empty status means planned.
func (in EventInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("title", in.Title, v)
	validation.MaxLen("title", in.Title, 255, v)
	if in.StartsAt.IsZero() {
		v["starts_at"] = "required"
	}
	if in.EndsAt.IsZero() {
		v["ends_at"] = "required"
	}
	if !in.StartsAt.IsZero() && !in.EndsAt.IsZero() {
		validation.After("ends_at", in.StartsAt, in.EndsAt, v)
	}
	if in.Status != "" && !in.Status.Valid() {
		v["status"] = "invalid_choice"
	}
	return v
}

// Service stores events. Each user only sees the events they created.
type Service struct {
	db *gorm.DB
}

// NewService creates an agenda service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func mine(sc tenancy.Scope) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Scopes(tenancy.Owned(sc)).Where("created_by = ?", sc.UserID)
	}
}

// List returns the caller's events ordered by start time. A non-zero from
// drops events that ended before it. Times are stored in UTC.
func (s *Service) List(ctx context.Context, sc tenancy.Scope, from time.Time) ([]models.AgendaEvent, error) {
	q := s.db.WithContext(ctx).Scopes(mine(sc))
	if !from.IsZero() {
		q = q.Where("ends_at >= ?", from.UTC())
	}
	var events []models.AgendaEvent
	err := q.Order("starts_at ASC, id ASC").Find(&events).Error
	return events, err
}

// Get loads one of the caller's events.
func (s *Service) Get(ctx context.Context, sc tenancy.Scope, id uint) (*models.AgendaEvent, error) {
	var e models.AgendaEvent
	if err := s.db.WithContext(ctx).Scopes(mine(sc)).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, fmt.Errorf("agenda event %d: %w", id, err)
	}
	return &e, nil
}

// Create inserts an event owned by the caller.
func (s *Service) Create(ctx context.Context, sc tenancy.Scope, in EventInput) (*models.AgendaEvent, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	if err := s.checkChantier(ctx, sc, in.ChantierID); err != nil {
		return nil, err
	}
	e := &models.AgendaEvent{EntrepriseID: sc.TenantID, CreatedBy: sc.UserID}
	apply(e, in)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(e).Error; err != nil {
			return err
		}
		return audit.Record(ctx, tx, sc, "agenda_event", e.ID, audit.ActionCreate, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("create agenda event: %w", err)
	}
	return e, nil
}

// Update replaces the event fields.
func (s *Service) Update(ctx context.Context, sc tenancy.Scope, id uint, in EventInput) (*models.AgendaEvent, error) {
	if err := in.Validate().Err(); err != nil {
		return nil, err
	}
	e, err := s.Get(ctx, sc, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkChantier(ctx, sc, in.ChantierID); err != nil {
		return nil, err
	}
	apply(e, in)
	if err := s.db.WithContext(ctx).Save(e).Error; err != nil {
		return nil, fmt.Errorf("update agenda event %d: %w", id, err)
	}
	return e, nil
}

// Delete removes one of the caller's events.
func (s *Service) Delete(ctx context.Context, sc tenancy.Scope, id uint) error {
	res := s.db.WithContext(ctx).Scopes(mine(sc)).Where("id = ?", id).Delete(&models.AgendaEvent{})
	if res.Error != nil {
		return fmt.Errorf("delete agenda event %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("agenda event %d: %w", id, gorm.ErrRecordNotFound)
	}
	return audit.Record(ctx, s.db, sc, "agenda_event", id, audit.ActionDelete, nil)
}

// checkChantier makes sure a linked job site belongs to the tenant.
func (s *Service) checkChantier(ctx context.Context, sc tenancy.Scope, id *uint) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Chantier{}).Scopes(tenancy.Owned(sc)).Where("id = ?", *id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return validation.Violations{"chantier_id": "not_found"}
	}
	return nil
}

func apply(e *models.AgendaEvent, in EventInput) {
	e.Title = in.Title
	e.StartsAt = in.StartsAt.UTC()
	e.EndsAt = in.EndsAt.UTC()
	e.ChantierID = in.ChantierID
	e.Notes = in.Notes
	e.Status = in.Status
	if e.Status == "" {
		e.Status = models.EventPlanned
	}
}
