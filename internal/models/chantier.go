package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChantierStatus is the progress state of a job site.
type ChantierStatus string

const (
	ChantierToSchedule ChantierStatus = "to_schedule"
	ChantierInProgress ChantierStatus = "in_progress"
	ChantierWaiting    ChantierStatus = "waiting"
	ChantierInPayment  ChantierStatus = "in_payment"
	ChantierDone       ChantierStatus = "done"
)

// ChantierStatuses lists the accepted job site states in display order.
var ChantierStatuses = []ChantierStatus{
	ChantierToSchedule,
	ChantierInProgress,
	ChantierWaiting,
	ChantierInPayment,
	ChantierDone,
}

// Valid reports whether s is a known job site state.
func (s ChantierStatus) Valid() bool {
	for _, v := range ChantierStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Chantier is a job site attached to a client.
type Chantier struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	EntrepriseID uint      `gorm:"index;not null" json:"entreprise_id"`

	ClientID uint    `gorm:"index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	Title     string          `gorm:"size:255;not null" json:"title"`
	Status    ChantierStatus  `gorm:"size:20;not null;default:'to_schedule'" json:"status"`
	Trade     string          `gorm:"size:100" json:"trade,omitempty"`
	StartDate *datatypes.Date `json:"start_date,omitempty"`
	EndDate   *datatypes.Date `json:"end_date,omitempty"`
	Notes     string          `gorm:"type:text" json:"notes,omitempty"`

	NoteEntries []ChantierNote          `gorm:"foreignKey:ChantierID;constraint:OnDelete:CASCADE" json:"note_entries,omitempty"`
	Checklist   []ChantierChecklistItem `gorm:"foreignKey:ChantierID;constraint:OnDelete:CASCADE" json:"checklist,omitempty"`
	Photos      []ChantierPhoto         `gorm:"foreignKey:ChantierID;constraint:OnDelete:CASCADE" json:"photos,omitempty"`
}

// GetTenantID implements the tenant ownership contract.
func (c *Chantier) GetTenantID() uint {
	return c.EntrepriseID
}

// ChantierNote is a free-text journal entry on a job site.
type ChantierNote struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	EntrepriseID uint      `gorm:"index;not null" json:"entreprise_id"`
	ChantierID   uint      `gorm:"index;not null" json:"chantier_id"`
	AuthorID     uint      `gorm:"index" json:"author_id"`
	Body         string    `gorm:"type:text;not null" json:"body"`
}

// GetTenantID implements the tenant ownership contract.
func (n *ChantierNote) GetTenantID() uint {
	return n.EntrepriseID
}

// ChantierChecklistItem is one checkbox of a job site checklist.
type ChantierChecklistItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	EntrepriseID uint      `gorm:"index;not null" json:"entreprise_id"`
	ChantierID   uint      `gorm:"index;not null" json:"chantier_id"`
	Label        string    `gorm:"size:255;not null" json:"label"`
	Done         bool      `gorm:"not null;default:false" json:"done"`
	Position     int       `gorm:"default:0" json:"position"`
}

// GetTenantID implements the tenant ownership contract.
func (c *ChantierChecklistItem) GetTenantID() uint {
	return c.EntrepriseID
}

// ChantierPhoto is the metadata row of a photo stored in the object bucket.
type ChantierPhoto struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	EntrepriseID uint      `gorm:"index;not null" json:"entreprise_id"`
	ChantierID   uint      `gorm:"index;not null" json:"chantier_id"`
	UploadedBy   uint      `json:"uploaded_by"`
	// ObjectKey is "{tenant}/{chantier}/{photoId}.{ext}".
	ObjectKey   string `gorm:"size:255;uniqueIndex;not null" json:"object_key"`
	ContentType string `gorm:"size:100" json:"content_type"`
	Size        int64  `json:"size"`
	Caption     string `gorm:"size:500" json:"caption,omitempty"`
	// URL is filled at read time with a signed download link.
	URL string `gorm:"-" json:"url,omitempty"`
}

// GetTenantID implements the tenant ownership contract.
func (p *ChantierPhoto) GetTenantID() uint {
	return p.EntrepriseID
}
