package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/diewo77/go-chantiers/internal/audit"
	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/storage"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"gorm.io/gorm"
)

// ErrUnknownType is returned for an unsupported admin delete target.
var ErrUnknownType = errors.New("unknown entity type")

// AdminTypes lists the entity types accepted by AdminService.Delete.
var AdminTypes = []string{"client", "chantier", "quote", "invoice", "agenda_event"}

// AdminService performs operator deletes across tenants.
type AdminService struct {
	db     *gorm.DB
	bucket storage.Bucket
	logger *slog.Logger
}

// NewAdminService creates the service. bucket may be nil when photos are
// disabled.
func NewAdminService(db *gorm.DB, bucket storage.Bucket, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{db: db, bucket: bucket, logger: logger}
}

// children lists the dependent tables removed with a parent row.
var children = map[string][]struct {
	model  any
	column string
}{
	"chantier": {
		{&models.ChantierNote{}, "chantier_id"},
		{&models.ChantierChecklistItem{}, "chantier_id"},
		{&models.ChantierPhoto{}, "chantier_id"},
	},
	"quote":   {{&models.QuoteLine{}, "quote_id"}},
	"invoice": {{&models.InvoiceLine{}, "invoice_id"}},
}

func modelFor(kind string) (any, bool) {
	switch kind {
	case "client":
		return &models.Client{}, true
	case "chantier":
		return &models.Chantier{}, true
	case "quote":
		return &models.Quote{}, true
	case "invoice":
		return &models.Invoice{}, true
	case "agenda_event":
		return &models.AgendaEvent{}, true
	}
	return nil, false
}

// Delete removes a row of any tenant with its dependents. The audit entry is
// written in the row's tenant with the operator as user.
func (s *AdminService) Delete(ctx context.Context, operator tenancy.Scope, kind string, id uint) error {
	model, ok := modelFor(kind)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, kind)
	}
	var keys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(model).Error; err != nil {
			return fmt.Errorf("%s %d: %w", kind, id, err)
		}
		owned, ok := model.(models.TenantOwned)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownType, kind)
		}
		tenantID := owned.GetTenantID()
		if kind == "chantier" {
			if err := tx.Model(&models.ChantierPhoto{}).Where("chantier_id = ?", id).Pluck("object_key", &keys).Error; err != nil {
				return err
			}
		}
		for _, c := range children[kind] {
			if err := tx.Where(c.column+" = ?", id).Delete(c.model).Error; err != nil {
				return err
			}
		}
		switch kind {
		case "invoice":
			if err := tx.Model(&models.Quote{}).Where("invoice_id = ?", id).Update("invoice_id", nil).Error; err != nil {
				return err
			}
		case "quote":
			if err := tx.Model(&models.Invoice{}).Where("quote_id = ?", id).Update("quote_id", nil).Error; err != nil {
				return err
			}
		case "chantier":
			if err := tx.Model(&models.AgendaEvent{}).Where("chantier_id = ?", id).Update("chantier_id", nil).Error; err != nil {
				return err
			}
		case "client":
			var n int64
			if err := tx.Model(&models.Chantier{}).Where("client_id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return ErrClientInUse
			}
		}
		if err := tx.Delete(model).Error; err != nil {
			return err
		}
		sc := tenancy.Scope{UserID: operator.UserID, TenantID: tenantID}
		return audit.Record(ctx, tx, sc, kind, id, audit.ActionAdminPurge, map[string]any{"operator": operator.Email})
	})
	if err != nil {
		return err
	}
	removeObjects(ctx, s.bucket, s.logger, keys)
	return nil
}
