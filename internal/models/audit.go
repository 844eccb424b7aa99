package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records a state change made through the API.
type AuditLog struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time         `gorm:"index" json:"created_at"`
	EntrepriseID uint              `gorm:"index" json:"entreprise_id"`
	UserID       uint              `gorm:"index" json:"user_id"`
	EntityType   string            `gorm:"size:50;index:idx_audit_entity,priority:1" json:"entity_type"`
	EntityID     uint              `gorm:"index:idx_audit_entity,priority:2" json:"entity_id"`
	Action       string            `gorm:"size:50;not null" json:"action"`
	Details      datatypes.JSONMap `json:"details,omitempty"`
}
