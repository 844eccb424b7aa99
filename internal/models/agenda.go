package models

import "time"

// EventStatus is the state of an agenda entry.
type EventStatus string

const (
	EventPlanned   EventStatus = "planned"
	EventConfirmed EventStatus = "confirmed"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Valid reports whether s is a known event state.
func (s EventStatus) Valid() bool {
	switch s {
	case EventPlanned, EventConfirmed, EventCompleted, EventCancelled:
		return true
	}
	return false
}

// AgendaEvent is a calendar entry, visible to the user who created it.
type AgendaEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	EntrepriseID uint      `gorm:"index:idx_agenda_owner,priority:1;not null" json:"entreprise_id"`
	CreatedBy    uint      `gorm:"index:idx_agenda_owner,priority:2;not null" json:"created_by"`

	Title      string      `gorm:"size:255;not null" json:"title"`
	StartsAt   time.Time   `gorm:"index;not null" json:"starts_at"`
	EndsAt     time.Time   `gorm:"not null" json:"ends_at"`
	ChantierID *uint       `gorm:"index" json:"chantier_id,omitempty"`
	Notes      string      `gorm:"type:text" json:"notes,omitempty"`
	Status     EventStatus `gorm:"size:20;not null;default:'planned'" json:"status"`
}

// GetTenantID implements the tenant ownership contract.
func (e *AgendaEvent) GetTenantID() uint {
	return e.EntrepriseID
}
