// Package models declares the persisted tables of the application.
package models

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// TenantOwned is implemented by every row that belongs to a tenant.
type TenantOwned interface {
	GetTenantID() uint
}

// All returns every model, parents first, for auto-migration.
func All() []any {
	return []any{
		&Entreprise{},
		&User{},
		&Client{},
		&Chantier{},
		&ChantierNote{},
		&ChantierChecklistItem{},
		&ChantierPhoto{},
		&Quote{},
		&QuoteLine{},
		&Invoice{},
		&InvoiceLine{},
		&AgendaEvent{},
		&AuditLog{},
	}
}

// Number prefixes.
const (
	QuotePrefix   = "DEV"
	InvoicePrefix = "FAC"
)

// NextNumber returns the next document number for a tenant and year.
// Format: PREFIX-YYYY-NNNN (e.g., FAC-2025-0001). model selects the table.
// The sequence grows past four digits, so the maximum is taken numerically.
func NextNumber(db *gorm.DB, model any, prefix string, tenantID uint, year int) (string, error) {
	head := fmt.Sprintf("%s-%d-", prefix, year)
	var numbers []string
	err := db.Model(model).
		Where("entreprise_id = ? AND number LIKE ?", tenantID, head+"%").
		Pluck("number", &numbers).Error
	if err != nil {
		return "", err
	}
	seq := 0
	for _, n := range numbers {
		if v, err := strconv.Atoi(strings.TrimPrefix(n, head)); err == nil && v > seq {
			seq = v
		}
	}
	return fmt.Sprintf("%s%04d", head, seq+1), nil
}
