// Package audit appends entries to the audit_logs table.
package audit

import (
	"context"

	"github.com/diewo77/go-chantiers/internal/models"
	"github.com/diewo77/go-chantiers/internal/tenancy"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actions recorded by the application.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionTransition = "transition"
	ActionConvert    = "convert"
	ActionAdminPurge = "admin_delete"
)

// Record writes one entry using db, which may be a transaction.
func Record(ctx context.Context, db *gorm.DB, s tenancy.Scope, entityType string, entityID uint, action string, details map[string]any) error {
	entry := models.AuditLog{
		EntrepriseID: s.TenantID,
		UserID:       s.UserID,
		EntityType:   entityType,
		EntityID:     entityID,
		Action:       action,
	}
	if len(details) > 0 {
		entry.Details = datatypes.JSONMap(details)
	}
	return db.WithContext(ctx).Create(&entry).Error
}

// List returns the most recent entries of an entity inside the tenant.
func List(ctx context.Context, db *gorm.DB, s tenancy.Scope, entityType string, entityID uint) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := db.WithContext(ctx).
		Scopes(tenancy.Owned(s)).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("id DESC").
		Limit(50).
		Find(&out).Error
	return out, err
}
